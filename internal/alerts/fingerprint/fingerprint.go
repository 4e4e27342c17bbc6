package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// DefaultFields is the default attribute subset hashed into the fingerprint
var DefaultFields = []string{"source", "severity", "message"}

// Compute returns a deterministic grouping key over the configured subset of
// alert attributes. Fields are sorted before serialization so the result is
// order-independent; the message field is normalized first. An empty field
// list falls back to DefaultFields.
func Compute(a *alerts.Alert, fields []string) string {
	if len(fields) == 0 {
		fields = DefaultFields
	}

	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	parts := make([]string, 0, len(sorted))
	for _, field := range sorted {
		parts = append(parts, field+"="+fieldValue(a, field))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

// fieldValue extracts the serialized value of a named alert attribute
func fieldValue(a *alerts.Alert, field string) string {
	switch field {
	case "source":
		return a.Source
	case "severity":
		return string(a.Severity)
	case "message":
		return NormalizeMessage(a.Message)
	case "tags":
		tags := make([]string, len(a.Tags))
		copy(tags, a.Tags)
		sort.Strings(tags)
		return strings.Join(tags, ",")
	default:
		if a.Metadata != nil {
			if v, ok := a.Metadata[field].(string); ok {
				return v
			}
		}
		return ""
	}
}
