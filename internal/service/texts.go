package service

import (
	"context"
	"strings"

	"github.com/raphaelgruber/plagscan/internal/similarity"
)

// plagiarismScore is the document score above which a text pair is reported as plagiarized.
const plagiarismScore = 0.5

// SimpleResult is the outcome of a whole-text comparison.
type SimpleResult struct {
	SimilarityScore float64 `json:"similarity_score"`
	IsPlagiarized   bool    `json:"is_plagiarized"`
	Interpretation  string  `json:"interpretation"`
}

// SentenceInterpretation explains the two sentence-level scores.
type SentenceInterpretation struct {
	OverallMax string `json:"overall_max"`
	Average    string `json:"average"`
}

// SentenceResult is the outcome of a sentence-level comparison.
type SentenceResult struct {
	OverallMaxScore float64                `json:"overall_max_score"`
	AverageScore    float64                `json:"average_score"`
	Interpretation  SentenceInterpretation `json:"interpretation"`
}

// HealthStatus reports whether the service can score.
type HealthStatus struct {
	Status  string `json:"status"`
	Scorer  string `json:"scorer"`
	Message string `json:"message,omitempty"`
}

// Healthy reports whether the status is "ok".
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

// CompareTexts scores text b against text a as whole documents.
func (s *BatchService) CompareTexts(ctx context.Context, a, b string) (*SimpleResult, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return nil, inputError(ErrMissingText.Error(), ErrMissingText)
	}
	score, err := similarity.Document(ctx, s.scorer, a, b)
	if err != nil {
		return nil, capabilityError(err)
	}
	return &SimpleResult{
		SimilarityScore: score,
		IsPlagiarized:   score > plagiarismScore,
		Interpretation:  "probability that text_b is plagiarized from text_a",
	}, nil
}

// CompareSentences aligns the sentences of a against those of b.
func (s *BatchService) CompareSentences(ctx context.Context, a, b string) (*SentenceResult, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return nil, inputError(ErrMissingText.Error(), ErrMissingText)
	}
	ss, err := similarity.Sentences(ctx, s.scorer, a, b)
	if err != nil {
		return nil, capabilityError(err)
	}
	return &SentenceResult{
		OverallMaxScore: ss.Max,
		AverageScore:    ss.Average,
		Interpretation: SentenceInterpretation{
			OverallMax: "highest similarity between any sentence pair",
			Average:    "average similarity across all sentence pairs from text_a",
		},
	}, nil
}

// Health probes the scorer backend.
func (s *BatchService) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{Status: "ok", Scorer: s.scorer.Name()}
	if err := similarity.Ready(ctx, s.scorer); err != nil {
		status.Status = "unavailable"
		status.Message = err.Error()
	}
	return status
}
