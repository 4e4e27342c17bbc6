package scoring

import "sync"

// BusinessContext describes what a service is worth to the business.
// Registered per service id by the host.
type BusinessContext struct {
	ServiceID      string  `json:"service_id"`
	Tier           int     `json:"tier"` // 1 = most important
	HourlyRevenue  float64 `json:"hourly_revenue"`
	DailyRevenue   float64 `json:"daily_revenue"`
	MonthlyRevenue float64 `json:"monthly_revenue"`
	TotalUsers     int     `json:"total_users"`
	AffectedUsers  int     `json:"affected_users"`
	VIPUsers       int     `json:"vip_users"`
}

// ContextRegistry maps service ids to business contexts. Implementations
// must be safe for concurrent use.
type ContextRegistry interface {
	Get(serviceID string) (*BusinessContext, bool)
	Register(ctx *BusinessContext)
}

// MemoryRegistry is the default in-memory context registry
type MemoryRegistry struct {
	mu       sync.RWMutex
	contexts map[string]*BusinessContext
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{contexts: make(map[string]*BusinessContext)}
}

// Get returns the context for a service id
func (r *MemoryRegistry) Get(serviceID string) (*BusinessContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.contexts[serviceID]
	return ctx, ok
}

// Register adds or replaces a service's business context
func (r *MemoryRegistry) Register(ctx *BusinessContext) {
	if ctx == nil || ctx.ServiceID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[ctx.ServiceID] = ctx
}
