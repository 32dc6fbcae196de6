package similarity

import (
	"context"
	"time"

	"github.com/raphaelgruber/plagscan/internal/metrics"
)

// Instrumented records the duration of every Score call.
type Instrumented struct {
	next    Scorer
	metrics *metrics.Collector
}

// Instrument wraps s so that each Score call is timed under metrics.OpScoring.
func Instrument(s Scorer, c *metrics.Collector) *Instrumented {
	return &Instrumented{next: s, metrics: c}
}

// Name implements Scorer.
func (i *Instrumented) Name() string { return i.next.Name() }

// Score implements Scorer.
func (i *Instrumented) Score(ctx context.Context, a, b string) (float64, error) {
	start := time.Now()
	score, err := i.next.Score(ctx, a, b)
	if err != nil {
		i.metrics.RecordFailure(metrics.OpScoring, time.Since(start))
		return 0, err
	}
	i.metrics.RecordTiming(metrics.OpScoring, time.Since(start))
	return score, nil
}

// Ready forwards to the wrapped scorer.
func (i *Instrumented) Ready(ctx context.Context) error {
	return Ready(ctx, i.next)
}
