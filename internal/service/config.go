package service

import (
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/plagscan/internal/archive"
	"github.com/raphaelgruber/plagscan/internal/config"
	"github.com/raphaelgruber/plagscan/internal/extract"
	"github.com/raphaelgruber/plagscan/internal/metrics"
	"github.com/raphaelgruber/plagscan/internal/similarity"
)

// NewFromConfig wires the scorer, extractor and metrics selected by cfg.
func NewFromConfig(cfg config.Config, logger *slog.Logger) (*BatchService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	collector := metrics.NewCollector()
	scorer, err := similarity.New(cfg, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("init scorer: %w", err)
	}
	threshold := cfg.DefaultPercent
	return NewBatchService(scorer, extract.New(logger), Options{
		WorkRoot:         cfg.WorkDir,
		ResultsRoot:      cfg.ResultsDir,
		DefaultThreshold: &threshold,
		Workers:          cfg.Workers,
		Archive: archive.Options{
			MaxEntries:    cfg.MaxEntries,
			MaxEntryBytes: cfg.MaxEntryBytes,
			Policy:        policyFromConfig(cfg.AbortOnCopyFailure),
		},
		Metrics: collector,
		Logger:  logger,
	}), nil
}

func policyFromConfig(abort bool) archive.FailurePolicy {
	if abort {
		return archive.PolicyAbortSubmission
	}
	return archive.PolicyDegrade
}
