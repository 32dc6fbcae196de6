package similarity

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Lexical scores the share of a's word count matched by words of b.
// Words are lower-cased whitespace-separated fields. The score is
// |{w in words(b) : w in set(words(a))}| / |words(a)|, capped at 1,
// so repeated words in b can saturate it and Score(a, b) != Score(b, a).
type Lexical struct{}

// NewLexical returns the offline word-overlap scorer.
func NewLexical() Lexical {
	return Lexical{}
}

// Name implements Scorer.
func (Lexical) Name() string { return "lexical" }

// Score implements Scorer.
func (Lexical) Score(_ context.Context, a, b string) (float64, error) {
	wordsA := strings.Fields(strings.ToLower(a))
	if len(wordsA) == 0 {
		return 0, nil
	}
	vocab := mapset.NewThreadUnsafeSet(wordsA...)

	var common int
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if vocab.Contains(w) {
			common++
		}
	}
	return min(float64(common)/float64(len(wordsA)), 1), nil
}
