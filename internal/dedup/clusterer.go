package dedup

import (
	"hash/fnv"
	"strings"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/alerts/fingerprint"
)

// Clusterer assigns alerts to coarse candidate buckets when exact and fuzzy
// fingerprint matching fail. Implementations backed by remote services must
// bound their call time. A clusterer error never aborts processing; the
// engine falls back to a rule-based linear scan.
type Clusterer interface {
	// Bucket returns a deterministic cluster key for the alert
	Bucket(a *alerts.Alert) (string, error)
}

// FeatureHashClusterer is the default clusterer: a deterministic
// feature-hash bucketer over the alert source and the leading tokens of the
// normalized message. No remote calls, no state.
type FeatureHashClusterer struct {
	// Buckets bounds the keyspace; zero means 256
	Buckets uint32
}

// Bucket hashes the alert's stable features into one of n buckets
func (c *FeatureHashClusterer) Bucket(a *alerts.Alert) (string, error) {
	n := c.Buckets
	if n == 0 {
		n = 256
	}

	normalized := fingerprint.NormalizeMessage(a.Message)
	tokens := strings.Fields(normalized)
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}

	h := fnv.New32a()
	h.Write([]byte(a.Source))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(tokens, " ")))

	return bucketName(h.Sum32() % n), nil
}

func bucketName(n uint32) string {
	const digits = "0123456789"
	if n == 0 {
		return "bucket-0"
	}
	var b [10]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = digits[n%10]
		n /= 10
	}
	return "bucket-" + string(b[i:])
}
