package alerts

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for boundary checks
var validate = validator.New()

// ValidationError is returned when an incoming alert violates the input
// contract. The offending alert id (when present) is attached for diagnosis.
type ValidationError struct {
	AlertID string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.AlertID == "" {
		return fmt.Sprintf("invalid alert: %s", e.Reason)
	}
	return fmt.Sprintf("invalid alert %s: %s", e.AlertID, e.Reason)
}

// RawAlert is the open boundary representation of an incoming alert before
// it enters the core. Metadata and tags stay open maps; required fields are
// checked with an explicit schema pass rather than defensive nil-checks
// downstream.
type RawAlert struct {
	ID        string                 `json:"id" validate:"required"`
	Timestamp time.Time              `json:"timestamp" validate:"required"`
	Severity  string                 `json:"severity" validate:"required"`
	Source    string                 `json:"source" validate:"required"`
	Message   string                 `json:"message" validate:"required"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Tags      []string               `json:"tags,omitempty"`
}

// ParseAlert validates a raw alert and converts it into a core Alert.
// Malformed input is rejected with a *ValidationError and never reaches an
// existing group.
func ParseAlert(raw *RawAlert) (*Alert, error) {
	if raw == nil {
		return nil, &ValidationError{Reason: "alert is nil"}
	}
	if err := validate.Struct(raw); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			return nil, &ValidationError{
				AlertID: raw.ID,
				Reason:  fmt.Sprintf("missing required field %q", fieldErrs[0].Field()),
			}
		}
		return nil, &ValidationError{AlertID: raw.ID, Reason: err.Error()}
	}

	return &Alert{
		ID:        raw.ID,
		Timestamp: raw.Timestamp,
		Severity:  NormalizeSeverity(raw.Severity),
		Source:    raw.Source,
		Message:   raw.Message,
		Metadata:  raw.Metadata,
		Tags:      raw.Tags,
		Count:     1,
	}, nil
}
