// Package report aggregates comparison results into batch reports.
package report

import (
	"math"

	"github.com/raphaelgruber/plagscan/internal/models"
)

// Aggregate computes batch statistics over the reported pairs.
func Aggregate(results []models.ComparisonResult) models.Stats {
	if len(results) == 0 {
		return models.Stats{}
	}

	var sum float64
	high := 0
	for _, r := range results {
		sum += r.Similarity
		if r.Similarity >= models.IdenticalPercent {
			high++
		}
	}
	return models.Stats{
		TotalPairs:    len(results),
		AvgSimilarity: math.Round(sum/float64(len(results))*100) / 100,
		HighRiskCount: high,
	}
}

// Summarize counts reported pairs per status. Every status is present.
func Summarize(results []models.ComparisonResult) map[models.Status]int {
	counts := map[models.Status]int{
		models.StatusIdentical:  0,
		models.StatusFlagged:    0,
		models.StatusSuspicious: 0,
	}
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// Build assembles the report for one batch.
func Build(batchID, label string, subs []models.Submission, results []models.ComparisonResult) *models.BatchReport {
	ids := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	if results == nil {
		results = []models.ComparisonResult{}
	}
	return &models.BatchReport{
		BatchID:          batchID,
		Assignment:       label,
		TotalSubmissions: len(subs),
		Submissions:      ids,
		Pairs:            results,
		Stats:            Aggregate(results),
		ByStatus:         Summarize(results),
	}
}
