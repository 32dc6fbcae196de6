// Package archive extracts uploaded submission archives into a working
// directory and discovers the files that belong to each submission.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Sentinel errors for ingestion.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoValidFiles indicates that nothing matching the allowed extensions was found.
	ErrNoValidFiles = errors.New("no valid files found")

	// ErrInsufficientSubmissions indicates fewer than two comparable submissions.
	ErrInsufficientSubmissions = errors.New("at least two submissions are required")

	// ErrPathTraversal indicates an entry whose path would escape the extraction directory.
	ErrPathTraversal = errors.New("archive entry escapes extraction directory")

	// ErrUnsupportedArchive indicates a file that is not a readable archive.
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	// ErrArchiveLimit indicates an archive exceeding the entry count or entry size limits.
	ErrArchiveLimit = errors.New("archive exceeds extraction limits")
)

// Mode selects how a master archive maps to submissions.
type Mode string

const (
	// ModeAuto picks ModeNested when the archive holds inner archives, ModeFlat otherwise.
	ModeAuto Mode = "auto"
	// ModeFlat treats top-level folders (or loose files) as submissions.
	ModeFlat Mode = "flat"
	// ModeNested treats every inner archive as one submission.
	ModeNested Mode = "nested"
)

// ParseMode parses a mode name; the empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeFlat:
		return ModeFlat, nil
	case ModeNested:
		return ModeNested, nil
	default:
		return "", fmt.Errorf("unknown archive mode %q", s)
	}
}

// FailurePolicy decides what happens to a submission when one of its files
// cannot be copied into the results area.
type FailurePolicy int

const (
	// PolicyDegrade logs the failure and keeps the rest of the submission.
	PolicyDegrade FailurePolicy = iota
	// PolicyAbortSubmission drops the whole submission.
	PolicyAbortSubmission
)

// Default extraction limits.
const (
	DefaultMaxEntries    = 10000
	DefaultMaxEntryBytes = 64 << 20
)

// Options configures an Ingestor.
type Options struct {
	// Allowed holds lower-case, dot-prefixed extensions. Required.
	Allowed mapset.Set[string]
	// MaxEntries bounds the number of entries per archive (0 = default).
	MaxEntries int
	// MaxEntryBytes bounds the uncompressed size of a single entry (0 = default).
	MaxEntryBytes int64
	Policy        FailurePolicy
	Logger        *slog.Logger
}

// SubmissionFiles lists the retained files of one submission.
type SubmissionFiles struct {
	ID string
	// Root is the directory the files live under.
	Root string
	// Files are absolute paths in lexical order.
	Files []string
}

// Result is the outcome of ingesting one master archive.
type Result struct {
	Mode        Mode
	Submissions []SubmissionFiles
	// Skipped names inner archives that could not be extracted.
	Skipped []string
}

// FileCount returns the number of retained files across all submissions.
func (r *Result) FileCount() int {
	n := 0
	for _, s := range r.Submissions {
		n += len(s.Files)
	}
	return n
}

// Ingestor extracts archives, enforcing path and type constraints.
type Ingestor struct {
	allowed       mapset.Set[string]
	maxEntries    int
	maxEntryBytes int64
	policy        FailurePolicy
	logger        *slog.Logger
}

// New creates an Ingestor.
func New(opts Options) *Ingestor {
	if opts.Allowed == nil {
		opts.Allowed = mapset.NewSet[string]()
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxEntryBytes <= 0 {
		opts.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ingestor{
		allowed:       opts.Allowed,
		maxEntries:    opts.MaxEntries,
		maxEntryBytes: opts.MaxEntryBytes,
		policy:        opts.Policy,
		logger:        opts.Logger,
	}
}

// Allowed returns the extension allow-set.
func (in *Ingestor) Allowed() mapset.Set[string] {
	return in.allowed
}

// validate applies the submission-count rules shared by both modes.
func validate(res *Result) error {
	kept := res.Submissions[:0]
	for _, s := range res.Submissions {
		if len(s.Files) > 0 {
			kept = append(kept, s)
		}
	}
	res.Submissions = kept

	if res.FileCount() == 0 {
		return ErrNoValidFiles
	}
	if len(res.Submissions) < 2 {
		return fmt.Errorf("%w: found %d", ErrInsufficientSubmissions, len(res.Submissions))
	}
	return nil
}
