package fingerprint

import (
	"github.com/alertpipe/alertpipe/internal/alerts"
)

// Similarity weights. The tag component only applies when both alerts carry
// tags; remaining weights are renormalized by the total applied weight.
const (
	weightSource   = 0.3
	weightSeverity = 0.2
	weightMessage  = 0.4
	weightTags     = 0.1
)

// severityLevels is the ordinal span of the severity scale (4 levels)
const severityLevels = 4

// Similarity computes a weighted pairwise similarity score in [0,1] between
// two alerts: source equality, severity closeness (linear decay over the
// ordinal distance), normalized-message Levenshtein ratio, and tag-set
// Jaccard similarity.
func Similarity(a, b *alerts.Alert) float64 {
	score := 0.0
	applied := 0.0

	if a.Source == b.Source {
		score += weightSource
	}
	applied += weightSource

	dist := a.Severity.Rank() - b.Severity.Rank()
	if dist < 0 {
		dist = -dist
	}
	score += weightSeverity * (1.0 - float64(dist)/float64(severityLevels-1))
	applied += weightSeverity

	score += weightMessage * messageSimilarity(a.Message, b.Message)
	applied += weightMessage

	if len(a.Tags) > 0 && len(b.Tags) > 0 {
		score += weightTags * jaccard(a.Tags, b.Tags)
		applied += weightTags
	}

	return score / applied
}

// messageSimilarity is the Levenshtein ratio 1 - distance/maxLen over
// normalized messages.
func messageSimilarity(m1, m2 string) float64 {
	n1 := NormalizeMessage(m1)
	n2 := NormalizeMessage(m2)
	if n1 == n2 {
		return 1.0
	}
	maxLen := len(n1)
	if len(n2) > maxLen {
		maxLen = len(n2)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(n1, n2))/float64(maxLen)
}

// levenshtein computes the edit distance between two strings using a
// two-row dynamic programming table.
func levenshtein(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}

// jaccard computes intersection-over-union of two tag sets
func jaccard(t1, t2 []string) float64 {
	set1 := make(map[string]bool, len(t1))
	for _, t := range t1 {
		set1[t] = true
	}
	set2 := make(map[string]bool, len(t2))
	for _, t := range t2 {
		set2[t] = true
	}

	intersection := 0
	for t := range set1 {
		if set2[t] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
