package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/alertpipe/alertpipe/internal/api"
)

// AuthConfig configures the API-key layer that guards webhook ingestion.
// Monitoring systems authenticate with a static key; the operator API and
// websocket paths go on the skip list and are covered by JWT instead.
type AuthConfig struct {
	APIKeys   []string
	SkipPaths []string
	Enabled   bool
}

// AuthMiddleware validates ingest API keys. Keys can be swapped at runtime
// with SetAPIKeys, so access is guarded by a mutex.
type AuthMiddleware struct {
	mu     sync.RWMutex
	config *AuthConfig
	skip   skipList
}

// NewAuthMiddleware creates the API-key middleware
func NewAuthMiddleware(config *AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{
		config: config,
		skip:   newSkipList(config.SkipPaths),
	}
}

// SetAPIKeys replaces the valid key set. An empty set disables the check,
// leaving the webhook open.
func (m *AuthMiddleware) SetAPIKeys(keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config.APIKeys = keys
	m.config.Enabled = len(keys) > 0

	if m.config.Enabled {
		log.Printf("AuthMiddleware: Loaded %d API keys, webhook authentication enabled", len(keys))
	} else {
		log.Printf("AuthMiddleware: No API keys configured, webhook authentication disabled")
	}
}

// Wrap enforces API-key authentication on every path not on the skip list
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		enabled := m.config.Enabled
		apiKeys := m.config.APIKeys
		m.mu.RUnlock()

		if !enabled || m.skip.matches(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" {
			m.unauthorized(w, "Missing API key")
			return
		}
		if !validAPIKey(key, apiKeys) {
			log.Printf("AuthMiddleware: Invalid API key attempt from %s", r.RemoteAddr)
			m.unauthorized(w, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractAPIKey pulls the key from the Authorization header (Bearer or
// ApiKey scheme) or the X-API-Key header. Monitoring senders differ in
// which one they can emit.
func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	for _, scheme := range []string{"Bearer ", "ApiKey "} {
		if strings.HasPrefix(auth, scheme) {
			return strings.TrimPrefix(auth, scheme)
		}
	}
	return r.Header.Get("X-API-Key")
}

// validAPIKey compares the provided key against every valid key in
// constant time.
func validAPIKey(provided string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer realm=\"API\"")
	api.RespondError(w, http.StatusUnauthorized, message)
}

// skipList matches request paths exempt from an auth layer. Entries match
// exactly, or by prefix when they end in *.
type skipList struct {
	exact    map[string]bool
	prefixes []string
}

func newSkipList(paths []string) skipList {
	s := skipList{exact: make(map[string]bool)}
	for _, p := range paths {
		if strings.HasSuffix(p, "*") {
			s.prefixes = append(s.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		s.exact[p] = true
	}
	return s
}

func (s skipList) matches(path string) bool {
	if s.exact[path] {
		return true
	}
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
