// Package similarity scores how much of one text appears in another.
//
// A Scorer compares two texts and returns a value in [0, 1]. Document scores
// whole texts in one call; Sentences aligns the sentences of A against those
// of B and reports the strongest and average alignment.
package similarity

import (
	"context"
	"math"
	"strings"
)

// Scorer compares text a against text b. Scores fall in [0, 1] and the
// argument order is significant: implementations may be asymmetric.
type Scorer interface {
	Score(ctx context.Context, a, b string) (float64, error)
	Name() string
}

// Prober is implemented by scorers that depend on an external backend.
type Prober interface {
	Ready(ctx context.Context) error
}

// SentenceScore summarizes a sentence-level alignment.
type SentenceScore struct {
	// Max is the highest score of any sentence pair.
	Max float64 `json:"max"`
	// Average is the mean, over the sentences of A, of each sentence's best score.
	Average float64 `json:"average"`
	// Best holds the best score per sentence of A, in order.
	Best []float64 `json:"-"`
}

// Ready reports whether s can currently score. Scorers without a backend are always ready.
func Ready(ctx context.Context, s Scorer) error {
	if p, ok := s.(Prober); ok {
		return p.Ready(ctx)
	}
	return nil
}

// Document scores a against b as whole texts. Blank input scores 0 without
// calling the scorer.
func Document(ctx context.Context, s Scorer, a, b string) (float64, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, nil
	}
	score, err := s.Score(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return clamp(score), nil
}

// SplitSentences splits text on '.', trims each piece and drops empty ones.
func SplitSentences(text string) []string {
	parts := strings.Split(text, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sentences aligns every sentence of a with its best match in b.
//
// This costs len(A)*len(B) scorer calls, which dominates batch runtime for
// long texts and network-backed scorers.
func Sentences(ctx context.Context, s Scorer, a, b string) (SentenceScore, error) {
	sa, sb := SplitSentences(a), SplitSentences(b)
	if len(sa) == 0 || len(sb) == 0 {
		return SentenceScore{}, nil
	}

	res := SentenceScore{Best: make([]float64, len(sa))}
	var sum float64
	for i, x := range sa {
		var best float64
		for _, y := range sb {
			if err := ctx.Err(); err != nil {
				return SentenceScore{}, err
			}
			score, err := s.Score(ctx, x, y)
			if err != nil {
				return SentenceScore{}, err
			}
			best = max(best, clamp(score))
		}
		res.Best[i] = best
		res.Max = max(res.Max, best)
		sum += best
	}
	res.Average = sum / float64(len(sa))
	return res, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
