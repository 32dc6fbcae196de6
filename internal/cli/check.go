package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/raphaelgruber/plagscan/internal/archive"
	"github.com/raphaelgruber/plagscan/internal/compare"
	"github.com/raphaelgruber/plagscan/internal/models"
	"github.com/raphaelgruber/plagscan/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	checkName       string
	checkThreshold  float64
	checkExtensions string
	checkMode       string
	checkCompare    string
	checkWorkers    int
	checkFormat     string
	checkNoProgress bool
	checkFailOn     string
)

var checkCmd = &cobra.Command{
	Use:   "check <archive>",
	Short: "Check an assignment archive for similar submissions",
	Long: `Check an archive of submissions and report similar pairs.

Flat archives hold one folder (or one loose file) per submission. Nested
archives hold one inner archive per submission; their files are kept under
the results directory. The layout is detected unless --mode is given.

Examples:
  plagscan check hw1.zip
  plagscan check hw1.zip --extensions py,java --threshold 60
  plagscan check batch.tar.gz --mode nested --compare sentence
  plagscan check hw1.zip --format json > report.json
  plagscan check hw1.zip --fail-on flagged`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkName, "name", "n", "", "assignment name (default: archive name)")
	checkCmd.Flags().Float64VarP(&checkThreshold, "threshold", "t", 0, "report threshold in percent (default from config, 70)")
	checkCmd.Flags().StringVarP(&checkExtensions, "extensions", "e", "", "allowed extensions, comma separated (default: all supported)")
	checkCmd.Flags().StringVarP(&checkMode, "mode", "m", "auto", "archive layout: auto, flat or nested")
	checkCmd.Flags().StringVarP(&checkCompare, "compare", "c", "document", "comparison mode: document or sentence")
	checkCmd.Flags().IntVarP(&checkWorkers, "workers", "w", 0, "concurrent pair scoring (default from config)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "table", "output format: table, json or yaml")
	checkCmd.Flags().BoolVar(&checkNoProgress, "no-progress", false, "disable the progress bar")
	checkCmd.Flags().StringVar(&checkFailOn, "fail-on", "", "exit non-zero if a pair reaches this status: identical, flagged or suspicious")
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	mode, err := archive.ParseMode(checkMode)
	if err != nil {
		return err
	}
	cmpMode, err := compare.ParseMode(checkCompare)
	if err != nil {
		return err
	}
	failOn, err := parseFailOn(checkFailOn)
	if err != nil {
		return err
	}
	if err := validateFormat(checkFormat); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	req := service.BatchRequest{
		Archive:     f,
		ArchiveName: filepath.Base(path),
		Label:       checkName,
		Extensions:  checkExtensions,
		Mode:        mode,
		Compare:     cmpMode,
		Workers:     checkWorkers,
	}
	if cmd.Flags().Changed("threshold") {
		req.Threshold = &checkThreshold
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rep *models.BatchReport
	if !checkNoProgress && term.IsTerminal(int(os.Stderr.Fd())) {
		rep, err = runWithProgress(ctx, func(ctx context.Context, progress func(done, total int)) (*models.BatchReport, error) {
			req.Progress = progress
			return batchSvc.Run(ctx, req)
		})
	} else {
		rep, err = batchSvc.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), rep, checkFormat, defaultTheme); err != nil {
		return err
	}
	if failOn != "" && reachesStatus(rep, failOn) {
		return fmt.Errorf("found pairs with status %s or higher", failOn)
	}
	return nil
}

// statusRank orders statuses by severity.
var statusRank = map[models.Status]int{
	models.StatusSuspicious: 1,
	models.StatusFlagged:    2,
	models.StatusIdentical:  3,
}

func parseFailOn(s string) (models.Status, error) {
	switch s {
	case "":
		return "", nil
	case "identical":
		return models.StatusIdentical, nil
	case "flagged":
		return models.StatusFlagged, nil
	case "suspicious":
		return models.StatusSuspicious, nil
	default:
		return "", fmt.Errorf("unknown status %q for --fail-on", s)
	}
}

// reachesStatus reports whether any pair is at least as severe as floor.
func reachesStatus(rep *models.BatchReport, floor models.Status) bool {
	for _, p := range rep.Pairs {
		if statusRank[p.Status] >= statusRank[floor] {
			return true
		}
	}
	return false
}
