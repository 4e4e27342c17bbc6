package store

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/alertpipe/alertpipe/internal/scoring"
)

// Registry is the database-backed business context registry
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a registry over the given database
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Get loads the business context for a service id
func (r *Registry) Get(serviceID string) (*scoring.BusinessContext, bool) {
	var record BusinessContextRecord
	err := r.db.Where("service_id = ?", serviceID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to load business context for %s: %v", serviceID, err)
		return nil, false
	}

	return &scoring.BusinessContext{
		ServiceID:      record.ServiceID,
		Tier:           record.Tier,
		HourlyRevenue:  record.HourlyRevenue,
		DailyRevenue:   record.DailyRevenue,
		MonthlyRevenue: record.MonthlyRevenue,
		TotalUsers:     record.TotalUsers,
		AffectedUsers:  record.AffectedUsers,
		VIPUsers:       record.VIPUsers,
	}, true
}

// Register adds or replaces a service's business context
func (r *Registry) Register(ctx *scoring.BusinessContext) {
	if ctx == nil || ctx.ServiceID == "" {
		return
	}

	record := BusinessContextRecord{
		ServiceID:      ctx.ServiceID,
		Tier:           ctx.Tier,
		HourlyRevenue:  ctx.HourlyRevenue,
		DailyRevenue:   ctx.DailyRevenue,
		MonthlyRevenue: ctx.MonthlyRevenue,
		TotalUsers:     ctx.TotalUsers,
		AffectedUsers:  ctx.AffectedUsers,
		VIPUsers:       ctx.VIPUsers,
	}

	var existing BusinessContextRecord
	err := r.db.Where("service_id = ?", ctx.ServiceID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(&record).Error; err != nil {
			log.Printf("Failed to save business context for %s: %v", ctx.ServiceID, err)
		}
		return
	}
	if err != nil {
		log.Printf("Failed to look up business context for %s: %v", ctx.ServiceID, err)
		return
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	if err := r.db.Save(&record).Error; err != nil {
		log.Printf("Failed to update business context for %s: %v", ctx.ServiceID, err)
	}
}
