// Package compare scores every pair of submissions and classifies the
// pairs whose similarity reaches the reporting threshold.
//
// A batch of N submissions costs N*(N-1)/2 document scores, and in
// sentence mode each of those is itself quadratic in sentence count.
package compare

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/raphaelgruber/plagscan/internal/models"
	"github.com/raphaelgruber/plagscan/internal/similarity"
	"golang.org/x/sync/errgroup"
)

// Mode selects how a pair of texts is scored.
type Mode string

const (
	// ModeDocument scores the two texts in a single call.
	ModeDocument Mode = "document"
	// ModeSentence aligns the sentences of the first text against the second.
	ModeSentence Mode = "sentence"
)

// ParseMode parses a comparison mode; the empty string means ModeDocument.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDocument:
		return ModeDocument, nil
	case ModeSentence:
		return ModeSentence, nil
	default:
		return "", fmt.Errorf("unknown comparison mode %q", s)
	}
}

// DefaultThreshold is the reporting threshold in percent.
const DefaultThreshold = 70.0

// sentenceMatchScore is the best-match score at which a sentence counts as matched.
const sentenceMatchScore = 0.5

// Options configures Compare.
type Options struct {
	// Threshold in percent; pairs below it are not reported.
	Threshold float64
	Mode      Mode
	// Workers bounds concurrent pair scoring. Values below 2 score sequentially.
	Workers int
	// Progress, if set, is called after each scored pair. Calls are serialized.
	Progress func(done, total int)
}

// Classify maps a similarity percentage to a status. The second result is
// false when pct is below the reporting threshold.
func Classify(pct, threshold float64) (models.Status, bool) {
	switch {
	case pct < threshold:
		return "", false
	case pct >= models.IdenticalPercent:
		return models.StatusIdentical, true
	case pct >= models.FlaggedPercent:
		return models.StatusFlagged, true
	default:
		return models.StatusSuspicious, true
	}
}

type pair struct {
	i, j int
}

// Compare scores every pair (i, j) with i < j, passing submission i's text as
// the first argument. Pairs where either text is empty are skipped. Reported
// results are ordered by (i, j) whatever the worker count. The first scorer
// error cancels the remaining work and is returned.
func Compare(ctx context.Context, scorer similarity.Scorer, subs []models.Submission, opts Options) ([]models.ComparisonResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeDocument
	}

	texts := make([]string, len(subs))
	for i, s := range subs {
		texts[i] = s.Text()
	}

	var pairs []pair
	for i := range subs {
		for j := i + 1; j < len(subs); j++ {
			if texts[i] == "" || texts[j] == "" {
				continue
			}
			pairs = append(pairs, pair{i, j})
		}
	}

	slots := make([]*models.ComparisonResult, len(pairs))
	var mu sync.Mutex
	done := 0
	report := func() {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		opts.Progress(done, len(pairs))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for k, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := scorePair(gctx, scorer, opts, texts[p.i], texts[p.j])
			if err != nil {
				return fmt.Errorf("compare %s with %s: %w", subs[p.i].ID, subs[p.j].ID, err)
			}
			status, ok := Classify(res.Similarity, opts.Threshold)
			if ok {
				res.PairID = fmt.Sprintf("%d-%d", p.i+1, p.j+1)
				res.SubmissionA = subs[p.i].ID
				res.SubmissionB = subs[p.j].ID
				res.Status = status
				slots[k] = &res
			}
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]models.ComparisonResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

func scorePair(ctx context.Context, scorer similarity.Scorer, opts Options, a, b string) (models.ComparisonResult, error) {
	if opts.Mode == ModeSentence {
		ss, err := similarity.Sentences(ctx, scorer, a, b)
		if err != nil {
			return models.ComparisonResult{}, err
		}
		matched := 0
		for _, best := range ss.Best {
			if best >= sentenceMatchScore {
				matched++
			}
		}
		return models.ComparisonResult{
			Similarity:       percent(ss.Average),
			MatchedSentences: matched,
			MaxSentenceScore: round2(ss.Max),
		}, nil
	}

	score, err := similarity.Document(ctx, scorer, a, b)
	if err != nil {
		return models.ComparisonResult{}, err
	}
	return models.ComparisonResult{Similarity: percent(score)}, nil
}

// percent converts a [0,1] score to a percentage rounded to two decimals.
func percent(score float64) float64 {
	return round2(score * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
