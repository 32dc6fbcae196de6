package models

// Stats holds batch-level aggregates over the reported pairs.
type Stats struct {
	TotalPairs    int     `json:"totalPairs" yaml:"totalPairs"`
	AvgSimilarity float64 `json:"avgSimilarity" yaml:"avgSimilarity"`
	HighRiskCount int     `json:"highRiskCount" yaml:"highRiskCount"`
}

// BatchReport is built once per request and never persisted by the pipeline.
type BatchReport struct {
	BatchID          string             `json:"assignment_id" yaml:"batchId"`
	Assignment       string             `json:"assignment" yaml:"assignment"`
	TotalSubmissions int                `json:"totalSubmissions" yaml:"totalSubmissions"`
	Submissions      []string           `json:"submissions" yaml:"submissions"`
	Pairs            []ComparisonResult `json:"pairs" yaml:"pairs"`
	Stats            Stats              `json:"stats" yaml:"stats"`
	// ByStatus counts reported pairs per classification.
	ByStatus map[Status]int `json:"byStatus" yaml:"byStatus"`
}
