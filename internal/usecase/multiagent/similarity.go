package multiagent

import (
	"strings"
	"unicode"
)

// Similarity decides whether two answers agree.
type Similarity interface {
	Similar(a, b string) bool
}

// SimilarityFunc adapts a function to Similarity.
type SimilarityFunc func(a, b string) bool

func (f SimilarityFunc) Similar(a, b string) bool { return f(a, b) }

// TokenOverlap treats answers as similar when one normalized answer contains
// the other, or when the shared tokens exceed Threshold of the longer
// answer's token count.
type TokenOverlap struct {
	Threshold float64
}

// DefaultSimilarity is TokenOverlap with a 0.3 threshold.
var DefaultSimilarity Similarity = TokenOverlap{Threshold: 0.3}

func (t TokenOverlap) Similar(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return na == nb
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	ta, tb := strings.Fields(na), strings.Fields(nb)
	set := make(map[string]bool, len(ta))
	for _, w := range ta {
		set[w] = true
	}
	shared := 0
	counted := make(map[string]bool, len(tb))
	for _, w := range tb {
		if set[w] && !counted[w] {
			counted[w] = true
			shared++
		}
	}
	longer := max(len(ta), len(tb))
	return float64(shared)/float64(longer) > t.Threshold
}

// normalize lowercases s, drops punctuation and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
