package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler records whether the request made it through the middleware
func okHandler(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})
}

// newWebhookAuth mirrors the server wiring: only /webhook/* is guarded,
// everything else is skipped for the JWT layer to handle.
func newWebhookAuth(keys ...string) *AuthMiddleware {
	m := NewAuthMiddleware(&AuthConfig{
		SkipPaths: []string{"/health", "/auth/*", "/api/*", "/ws/*"},
	})
	m.SetAPIKeys(keys)
	return m
}

func doRequest(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWrap_WebhookRequiresKey(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", http.Header{"X-API-Key": {"nope"}}, http.StatusUnauthorized},
		{"valid X-API-Key", http.Header{"X-API-Key": {"zbx-key"}}, http.StatusOK},
		{"valid bearer", http.Header{"Authorization": {"Bearer zbx-key"}}, http.StatusOK},
		{"valid ApiKey scheme", http.Header{"Authorization": {"ApiKey prom-key"}}, http.StatusOK},
		{"bearer with wrong key", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			h := newWebhookAuth("zbx-key", "prom-key").Wrap(okHandler(&reached))

			w := doRequest(t, h, "/webhook/alert", tt.header)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if reached != (tt.status == http.StatusOK) {
				t.Errorf("handler reached = %v with status %d", reached, w.Code)
			}
		})
	}
}

func TestWrap_SkippedPathsBypassKeyCheck(t *testing.T) {
	// The operator surface never needs an ingest key; it is covered by the
	// JWT layer behind this one.
	for _, path := range []string{"/health", "/auth/login", "/api/analytics/query", "/ws/events"} {
		t.Run(path, func(t *testing.T) {
			reached := false
			h := newWebhookAuth("zbx-key").Wrap(okHandler(&reached))

			if w := doRequest(t, h, path, nil); w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200 without a key", w.Code)
			}
			if !reached {
				t.Error("skipped path should reach the handler")
			}
		})
	}
}

func TestWrap_NoKeysConfiguredLeavesWebhookOpen(t *testing.T) {
	reached := false
	h := newWebhookAuth().Wrap(okHandler(&reached))

	if w := doRequest(t, h, "/webhook/alert", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
	if !reached {
		t.Error("open webhook should reach the handler")
	}
}

func TestSetAPIKeys_HotSwap(t *testing.T) {
	m := newWebhookAuth("old-key")
	reached := false
	h := m.Wrap(okHandler(&reached))

	m.SetAPIKeys([]string{"new-key"})

	if w := doRequest(t, h, "/webhook/alert", http.Header{"X-API-Key": {"old-key"}}); w.Code != http.StatusUnauthorized {
		t.Errorf("rotated-out key status = %d, want 401", w.Code)
	}
	if w := doRequest(t, h, "/webhook/alert", http.Header{"X-API-Key": {"new-key"}}); w.Code != http.StatusOK {
		t.Errorf("new key status = %d, want 200", w.Code)
	}

	// Clearing the key set reopens the webhook.
	m.SetAPIKeys(nil)
	if w := doRequest(t, h, "/webhook/alert", nil); w.Code != http.StatusOK {
		t.Errorf("status after clearing keys = %d, want 200", w.Code)
	}
}

func TestUnauthorizedResponseShape(t *testing.T) {
	h := newWebhookAuth("zbx-key").Wrap(okHandler(new(bool)))

	w := doRequest(t, h, "/webhook/alert", nil)
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 should carry a WWW-Authenticate challenge")
	}
}

func TestSkipList(t *testing.T) {
	s := newSkipList([]string{"/health", "/api/*"})

	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/healthz", false},
		{"/api/alerts", true},
		{"/api", false},
		{"/webhook/alert", false},
	}
	for _, tt := range tests {
		if got := s.matches(tt.path); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
