package similarity

import (
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/plagscan/internal/config"
	"github.com/raphaelgruber/plagscan/internal/metrics"
)

// New builds the scorer selected by cfg.Scorer. When c is non-nil the scorer is
// instrumented.
func New(cfg config.Config, c *metrics.Collector, logger *slog.Logger) (Scorer, error) {
	var s Scorer
	switch cfg.Scorer {
	case config.ScorerLexical, "":
		s = NewLexical()
	case config.ScorerEmbedding:
		e, err := NewEmbeddingFromConfig(cfg, WithMetrics(c), WithLogger(logger))
		if err != nil {
			return nil, err
		}
		s = e
	default:
		return nil, fmt.Errorf("unknown scorer %q", cfg.Scorer)
	}

	if c != nil {
		s = Instrument(s, c)
	}
	return s, nil
}
