package models

// Status classifies a reported pair.
type Status string

const (
	StatusIdentical  Status = "Identical"
	StatusFlagged    Status = "Flagged"
	StatusSuspicious Status = "Suspicious"
)

// Classification bands in percent. They do not depend on the reporting threshold.
const (
	IdenticalPercent = 90.0
	FlaggedPercent   = 75.0
)

// ComparisonResult is the outcome of scoring one unordered pair of submissions.
type ComparisonResult struct {
	// PairID is derived from the pair's positions in the input ordering.
	PairID      string `json:"pairId"`
	SubmissionA string `json:"submissionA"`
	SubmissionB string `json:"submissionB"`
	// Similarity is a percentage in [0,100].
	Similarity float64 `json:"similarity"`
	Status     Status  `json:"status"`
	// MatchedSentences is only populated in sentence mode.
	MatchedSentences int `json:"matchedSentences"`
	// MaxSentenceScore is the best single sentence match in [0,1] (sentence mode only).
	MaxSentenceScore float64 `json:"maxSentenceScore,omitempty"`
}
