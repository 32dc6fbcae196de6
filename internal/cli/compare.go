package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/plagscan/internal/archive"
	"github.com/spf13/cobra"
)

var (
	compareSentences bool
	compareFormat    string
)

var compareCmd = &cobra.Command{
	Use:   "compare <original> <suspect>",
	Short: "Score one file against another",
	Long: `Score how much of the suspect file is covered by the original.

The score is directional: it answers whether <suspect> was copied from
<original>. With --sentences every sentence of the original is aligned
with its best match in the suspect.

Examples:
  plagscan compare essay_a.docx essay_b.docx
  plagscan compare a.py b.py --sentences --format json`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().BoolVarP(&compareSentences, "sentences", "s", false, "compare sentence by sentence")
	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", "table", "output format: table, json or yaml")
}

func runCompare(cmd *cobra.Command, args []string) error {
	if err := validateFormat(compareFormat); err != nil {
		return err
	}

	a, err := readText(args[0])
	if err != nil {
		return err
	}
	b, err := readText(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if compareSentences {
		res, err := batchSvc.CompareSentences(ctx, a, b)
		if err != nil {
			return err
		}
		summary := fmt.Sprintf("Best sentence match: %.2f%%\nAverage best match:  %.2f%%",
			res.OverallMaxScore*100, res.AverageScore*100)
		return writeTextResult(out, compareFormat, res, summary)
	}

	res, err := batchSvc.CompareTexts(ctx, a, b)
	if err != nil {
		return err
	}
	verdict := defaultTheme.completedStyle().Render("not plagiarized")
	if res.IsPlagiarized {
		verdict = defaultTheme.errorStyle().Render("plagiarized")
	}
	summary := fmt.Sprintf("Similarity: %.2f%% (%s)", res.SimilarityScore*100, verdict)
	return writeTextResult(out, compareFormat, res, summary)
}

// readText extracts the text of a file the way batch submissions are read.
func readText(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	ext := archive.NormalizeExtension(filepath.Ext(path))
	ex := batchSvc.Extractor()
	if !ex.Supported(ext) {
		return "", fmt.Errorf("%s: unsupported file type %q", path, ext)
	}
	return ex.Text(path), nil
}
