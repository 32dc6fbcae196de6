package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/raphaelgruber/plagscan/internal/models"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", f)
	}
}

// writeReport renders a batch report in the requested format.
func writeReport(w io.Writer, rep *models.BatchReport, format string, theme Theme) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, renderReport(rep, theme))
		return err
	}
}

// renderReport builds the human readable report.
func renderReport(rep *models.BatchReport, theme Theme) string {
	var sb strings.Builder

	sb.WriteString(theme.statusStyle().Bold(true).Render(rep.Assignment))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Submissions: %d  Pairs reported: %d  Average: %.2f%%  High risk: %d\n",
		rep.TotalSubmissions, rep.Stats.TotalPairs, rep.Stats.AvgSimilarity, rep.Stats.HighRiskCount)

	if len(rep.Pairs) == 0 {
		sb.WriteString(theme.completedStyle().Render("No similar pairs found."))
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("\n")
	sb.WriteString(pairTable(rep.Pairs, theme))
	sb.WriteString("\n")

	counts := make([]string, 0, len(rep.ByStatus))
	for _, s := range []models.Status{models.StatusIdentical, models.StatusFlagged, models.StatusSuspicious} {
		counts = append(counts, theme.pairStyle(s).Render(fmt.Sprintf("%s: %d", s, rep.ByStatus[s])))
	}
	sb.WriteString(strings.Join(counts, "  "))
	sb.WriteString("\n")
	return sb.String()
}

func pairTable(pairs []models.ComparisonResult, theme Theme) string {
	sentences := false
	for _, p := range pairs {
		if p.MatchedSentences > 0 || p.MaxSentenceScore > 0 {
			sentences = true
			break
		}
	}

	headers := []string{"PAIR", "SUBMISSION A", "SUBMISSION B", "SIMILARITY", "STATUS"}
	if sentences {
		headers = append(headers, "MATCHED", "BEST")
	}

	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		row := []string{
			p.PairID,
			p.SubmissionA,
			p.SubmissionB,
			fmt.Sprintf("%.2f%%", p.Similarity),
			string(p.Status),
		}
		if sentences {
			row = append(row, fmt.Sprintf("%d", p.MatchedSentences), fmt.Sprintf("%.2f", p.MaxSentenceScore))
		}
		rows = append(rows, row)
	}

	statusCol := 4
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Hint)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Bold(true)
			}
			if col == statusCol && row >= 0 && row < len(pairs) {
				return theme.pairStyle(pairs[row].Status).Padding(0, 1)
			}
			return base
		})
	return t.String()
}

// writeTextResult renders the outcome of a two-file comparison.
func writeTextResult(w io.Writer, format string, v any, summary string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, summary)
		return err
	}
}
