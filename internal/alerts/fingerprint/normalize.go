// Package fingerprint computes canonical grouping keys for alerts and
// pairwise similarity scores between alerts. It is a pure leaf utility used
// by the deduplication engine: no side effects, no randomness, stable across
// process restarts.
package fingerprint

import "regexp"

// Volatile value patterns, replaced before hashing so alerts differing only
// in ids, addresses or counters collapse to the same fingerprint. UUIDs and
// IPs are matched before bare digit runs so their digits aren't shredded.
var (
	uuidPattern  = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	digitPattern = regexp.MustCompile(`\d+`)
)

// NormalizeMessage replaces volatile tokens (UUIDs, emails, IPv4 addresses,
// digit runs) with placeholders.
func NormalizeMessage(msg string) string {
	msg = uuidPattern.ReplaceAllString(msg, "<uuid>")
	msg = emailPattern.ReplaceAllString(msg, "<email>")
	msg = ipv4Pattern.ReplaceAllString(msg, "<ip>")
	msg = digitPattern.ReplaceAllString(msg, "<num>")
	return msg
}
