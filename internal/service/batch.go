// Package service runs plagiarism checks: batch archives and ad-hoc text pairs.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/raphaelgruber/plagscan/internal/archive"
	"github.com/raphaelgruber/plagscan/internal/compare"
	"github.com/raphaelgruber/plagscan/internal/extract"
	"github.com/raphaelgruber/plagscan/internal/metrics"
	"github.com/raphaelgruber/plagscan/internal/models"
	"github.com/raphaelgruber/plagscan/internal/report"
	"github.com/raphaelgruber/plagscan/internal/similarity"
)

// Options configures a BatchService.
type Options struct {
	// WorkRoot holds per-batch scratch directories, removed when a batch ends.
	WorkRoot string
	// ResultsRoot receives the files of nested-mode submissions, per batch.
	ResultsRoot string
	// DefaultThreshold applies when a request has no threshold (percent);
	// nil means compare.DefaultThreshold.
	DefaultThreshold *float64
	// Workers is the default pair-scoring concurrency.
	Workers int
	// Archive carries extraction limits and the failure policy; Allowed is set per request.
	Archive archive.Options
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// BatchService runs the ingest, extract, compare and report pipeline.
type BatchService struct {
	scorer    similarity.Scorer
	extractor *extract.Extractor
	opts      Options
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewBatchService creates a batch service.
func NewBatchService(scorer similarity.Scorer, extractor *extract.Extractor, opts Options) *BatchService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.WorkRoot == "" {
		opts.WorkRoot = filepath.Join(os.TempDir(), "plagscan")
	}
	if opts.ResultsRoot == "" {
		opts.ResultsRoot = "results"
	}
	if opts.DefaultThreshold == nil {
		threshold := compare.DefaultThreshold
		opts.DefaultThreshold = &threshold
	}
	opts.Archive.Logger = opts.Logger
	return &BatchService{
		scorer:    scorer,
		extractor: extractor,
		opts:      opts,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Scorer returns the scorer used by the service.
func (s *BatchService) Scorer() similarity.Scorer { return s.scorer }

// Metrics returns the service's metrics collector.
func (s *BatchService) Metrics() *metrics.Collector { return s.metrics }

// Extractor returns the text extractor used for submission files.
func (s *BatchService) Extractor() *extract.Extractor { return s.extractor }

// BatchRequest describes one uploaded assignment.
type BatchRequest struct {
	Archive     io.Reader
	ArchiveName string
	// Label names the assignment; defaults to the archive name without extension.
	Label string
	// Threshold in percent; nil means the service default.
	Threshold *float64
	// Extensions is a comma list or a JSON object of extension flags. Empty
	// means every extension the extractor supports.
	Extensions string
	Mode       archive.Mode
	// DetectionMode is accepted for client compatibility and recorded only.
	DetectionMode string
	Compare       compare.Mode
	// Workers overrides the service default when positive.
	Workers int
	// Progress is forwarded to the comparator.
	Progress func(done, total int)
}

// Run executes a batch and returns its report. Scratch data is removed on
// every exit path; nested-mode submission files stay under ResultsRoot.
func (s *BatchService) Run(ctx context.Context, req BatchRequest) (*models.BatchReport, error) {
	threshold, allowed, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if err := similarity.Ready(ctx, s.scorer); err != nil {
		s.logger.Warn("scorer not ready", "scorer", s.scorer.Name(), "error", err)
		return nil, capabilityError(err)
	}

	batchID := uuid.NewString()
	label := req.Label
	if strings.TrimSpace(label) == "" {
		label = archive.Stem(req.ArchiveName)
	}
	logger := s.logger.With("batch", batchID)
	logger.Info("batch started", "assignment", label, "archive", req.ArchiveName,
		"threshold", threshold, "mode", req.Mode, "comparison", req.Compare, "detection_mode", req.DetectionMode)
	start := time.Now()

	workDir := filepath.Join(s.opts.WorkRoot, batchID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, internalError("prepare work directory", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove work directory", "dir", workDir, "error", err)
		}
	}()

	// Nested ingestion persists submissions here; a failed batch leaves nothing behind.
	resultsDir := filepath.Join(s.opts.ResultsRoot, batchID)
	succeeded := false
	defer func() {
		if succeeded {
			return
		}
		if err := os.RemoveAll(resultsDir); err != nil {
			logger.Warn("failed to remove results directory", "dir", resultsDir, "error", err)
		}
	}()

	archivePath, err := saveUpload(workDir, req.ArchiveName, req.Archive)
	if err != nil {
		return nil, err
	}

	ingestOpts := s.opts.Archive
	ingestOpts.Allowed = allowed
	ingestOpts.Logger = logger
	ingestStart := time.Now()
	ingested, err := archive.New(ingestOpts).Ingest(ctx, req.Mode, archivePath, workDir, resultsDir)
	if err != nil {
		s.metrics.RecordFailure(metrics.OpIngestion, time.Since(ingestStart))
		return nil, classifyIngestError(err)
	}
	s.metrics.RecordTiming(metrics.OpIngestion, time.Since(ingestStart))
	for _, skipped := range ingested.Skipped {
		logger.Warn("submission archive skipped", "archive", skipped)
	}

	subs := s.extractAll(ingested.Submissions)

	workers := s.opts.Workers
	if req.Workers > 0 {
		workers = req.Workers
	}
	compareStart := time.Now()
	results, err := compare.Compare(ctx, s.scorer, subs, compare.Options{
		Threshold: threshold,
		Mode:      req.Compare,
		Workers:   workers,
		Progress:  req.Progress,
	})
	if err != nil {
		s.metrics.RecordFailure(metrics.OpComparison, time.Since(compareStart))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, internalError("batch canceled", ctxErr)
		}
		logger.Error("comparison failed", "error", err)
		return nil, internalError("comparison failed", err)
	}
	s.metrics.RecordTiming(metrics.OpComparison, time.Since(compareStart))
	s.metrics.IncBatches()

	rep := report.Build(batchID, label, subs, results)
	logger.Info("batch complete",
		"mode", ingested.Mode,
		"submissions", rep.TotalSubmissions,
		"pairs", rep.Stats.TotalPairs,
		"high_risk", rep.Stats.HighRiskCount,
		"duration_ms", time.Since(start).Milliseconds())
	succeeded = true
	return rep, nil
}

func (s *BatchService) validate(req BatchRequest) (float64, mapset.Set[string], error) {
	if req.Archive == nil {
		return 0, nil, inputError("assignment file is required", nil)
	}
	if !archive.IsArchive(req.ArchiveName) {
		return 0, nil, inputError("unsupported archive type", fmt.Errorf("%w: %s", archive.ErrUnsupportedArchive, filepath.Base(req.ArchiveName)))
	}

	threshold := *s.opts.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 || threshold > 100 {
		return 0, nil, inputError(fmt.Sprintf("similarity threshold must be between 0 and 100, got %v", threshold), nil)
	}

	var allowed mapset.Set[string]
	if strings.TrimSpace(req.Extensions) == "" {
		allowed = archive.NewExtensionSet(s.extractor.Extensions()...)
	} else {
		parsed, err := archive.ParseExtensions(req.Extensions)
		if err != nil {
			return 0, nil, inputError("invalid allowed extensions", err)
		}
		allowed = parsed
	}
	if allowed.Cardinality() == 0 {
		return 0, nil, inputError("no allowed extensions selected", nil)
	}
	return threshold, allowed, nil
}

// extractAll turns ingested file lists into submissions with text.
func (s *BatchService) extractAll(found []archive.SubmissionFiles) []models.Submission {
	subs := make([]models.Submission, 0, len(found))
	for _, sf := range found {
		sub := models.Submission{ID: sf.ID, Files: make([]models.ExtractedFile, 0, len(sf.Files))}
		for _, path := range sf.Files {
			rel, err := filepath.Rel(sf.Root, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			start := time.Now()
			text := s.extractor.Text(path)
			s.metrics.RecordTiming(metrics.OpExtraction, time.Since(start))

			sub.Files = append(sub.Files, models.ExtractedFile{
				Path:    path,
				RelPath: filepath.ToSlash(rel),
				Type:    strings.ToLower(filepath.Ext(path)),
				Text:    text,
			})
		}
		if sub.Empty() {
			s.logger.Warn("submission has no extractable text", "submission", sub.ID, "files", len(sub.Files))
		}
		subs = append(subs, sub)
	}
	return subs
}

// saveUpload writes the uploaded archive into dir.
func saveUpload(dir, name string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	path := filepath.Join(dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", internalError("store upload", err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", internalError("store upload", err)
	}
	if n == 0 {
		return "", inputError(ErrEmptyUpload.Error(), ErrEmptyUpload)
	}
	return path, nil
}

// classifyIngestError maps archive failures to service errors.
func classifyIngestError(err error) error {
	switch {
	case errors.Is(err, archive.ErrNoValidFiles):
		return inputError("no valid files found in the archive", err)
	case errors.Is(err, archive.ErrInsufficientSubmissions):
		return inputError("at least two submissions are required", err)
	case errors.Is(err, archive.ErrPathTraversal):
		return inputError("archive contains unsafe paths", err)
	case errors.Is(err, archive.ErrUnsupportedArchive):
		return inputError("archive could not be read", err)
	case errors.Is(err, archive.ErrArchiveLimit):
		return inputError("archive exceeds extraction limits", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return internalError("batch canceled", err)
	default:
		return internalError("archive processing failed", err)
	}
}
