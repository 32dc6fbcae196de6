package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/raphaelgruber/plagscan/internal/models"
)

// macOSMetadataDir is added by Finder-created zips and never holds submissions.
const macOSMetadataDir = "__MACOSX"

// CollectFiles walks root recursively and returns all regular files with an
// allowed extension, in lexical order.
func (in *Ingestor) CollectFiles(root string) ([]string, error) {
	var files []string
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == macOSMetadataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), "._") {
			return nil
		}
		if in.allowedFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	return files, nil
}

// Detect reports ModeNested if the archive contains at least one inner archive.
func (in *Ingestor) Detect(archivePath string) (Mode, error) {
	names, err := entryNames(archivePath)
	if err != nil {
		return "", err
	}
	master := filepath.Base(archivePath)
	for _, name := range names {
		base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
		if IsArchive(base) && base != master && !strings.Contains(name, macOSMetadataDir) {
			return ModeNested, nil
		}
	}
	return ModeFlat, nil
}

// Ingest dispatches to IngestFlat or IngestNested. workDir receives all
// temporary state; resultsDir receives nested-mode submission files.
func (in *Ingestor) Ingest(ctx context.Context, mode Mode, archivePath, workDir, resultsDir string) (*Result, error) {
	if mode == ModeAuto || mode == "" {
		detected, err := in.Detect(archivePath)
		if err != nil {
			return nil, err
		}
		mode = detected
		in.logger.Debug("detected archive mode", "mode", mode, "archive", filepath.Base(archivePath))
	}

	switch mode {
	case ModeFlat:
		return in.IngestFlat(ctx, archivePath, filepath.Join(workDir, "flat"))
	case ModeNested:
		return in.IngestNested(ctx, archivePath, workDir, resultsDir)
	default:
		return nil, fmt.Errorf("unknown archive mode %q", mode)
	}
}

// IngestFlat extracts a single-level archive into dest. Each top-level folder is a
// submission; each top-level loose file with an allowed extension is its own
// submission. A lone wrapper folder (a zipped assignment directory) is descended into.
func (in *Ingestor) IngestFlat(ctx context.Context, archivePath, dest string) (*Result, error) {
	if err := in.Extract(archivePath, dest); err != nil {
		return nil, err
	}

	root, err := submissionRoot(dest)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read extraction root: %w", err)
	}

	res := &Result{Mode: ModeFlat}
	ids := newIDAllocator()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if skipEntry(e.Name()) {
			continue
		}
		path := filepath.Join(root, e.Name())
		switch {
		case e.IsDir():
			files, err := in.CollectFiles(path)
			if err != nil {
				return nil, err
			}
			res.Submissions = append(res.Submissions, SubmissionFiles{
				ID:    ids.next(e.Name()),
				Root:  path,
				Files: files,
			})
		case e.Type().IsRegular() && in.allowedFile(e.Name()):
			res.Submissions = append(res.Submissions, SubmissionFiles{
				ID:    ids.next(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))),
				Root:  root,
				Files: []string{path},
			})
		}
	}

	if err := validate(res); err != nil {
		return nil, err
	}
	in.logger.Info("flat archive ingested", "submissions", len(res.Submissions), "files", res.FileCount())
	return res, nil
}

// IngestNested extracts a master archive holding one inner archive per submission.
// Inner archives are unpacked into a scratch directory under workDir and their
// allowed files copied to resultsDir/<submission>/ keeping their internal paths.
// The scratch directory is removed before returning.
func (in *Ingestor) IngestNested(ctx context.Context, archivePath, workDir, resultsDir string) (*Result, error) {
	scratch, err := os.MkdirTemp(workDir, "nested-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	master := filepath.Base(archivePath)
	if err := in.Extract(archivePath, scratch); err != nil {
		return nil, err
	}

	var inner []string
	err = filepath.WalkDir(scratch, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == macOSMetadataDir {
			return filepath.SkipDir
		}
		if d.Type().IsRegular() && IsArchive(d.Name()) && d.Name() != master {
			inner = append(inner, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan master archive: %w", err)
	}
	if len(inner) == 0 {
		return nil, fmt.Errorf("%w: no inner submission archives in %s", ErrNoValidFiles, master)
	}
	in.logger.Info("found submission archives", "count", len(inner))

	res := &Result{Mode: ModeNested}
	ids := newIDAllocator()
	for _, path := range inner {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := ids.next(Stem(path))
		sub, err := in.saveSubmission(path, id, scratch, resultsDir)
		if err != nil {
			in.logger.Warn("skipping submission archive", "submission", id, "archive", filepath.Base(path), "error", err)
			res.Skipped = append(res.Skipped, filepath.Base(path))
			continue
		}
		res.Submissions = append(res.Submissions, sub)
	}

	if err := validate(res); err != nil {
		return nil, err
	}
	in.logger.Info("nested archive ingested", "submissions", len(res.Submissions), "files", res.FileCount(), "skipped", len(res.Skipped))
	return res, nil
}

// saveSubmission extracts one inner archive and copies its allowed files into
// resultsDir/<id>/.
func (in *Ingestor) saveSubmission(innerPath, id, scratch, resultsDir string) (SubmissionFiles, error) {
	tmp, err := os.MkdirTemp(scratch, "extract-*")
	if err != nil {
		return SubmissionFiles{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := in.Extract(innerPath, tmp); err != nil {
		return SubmissionFiles{}, err
	}
	found, err := in.CollectFiles(tmp)
	if err != nil {
		return SubmissionFiles{}, err
	}

	finalDir := filepath.Join(resultsDir, id)
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return SubmissionFiles{}, fmt.Errorf("create submission dir: %w", err)
	}

	sub := SubmissionFiles{ID: id, Root: finalDir}
	for _, src := range found {
		rel, err := filepath.Rel(tmp, src)
		if err == nil {
			err = copyFile(src, filepath.Join(finalDir, rel))
		}
		if err != nil {
			if in.policy == PolicyAbortSubmission {
				_ = os.RemoveAll(finalDir)
				return SubmissionFiles{}, fmt.Errorf("copy %s: %w", rel, err)
			}
			in.logger.Warn("failed to save submission file", "submission", id, "file", rel, "error", err)
			continue
		}
		sub.Files = append(sub.Files, filepath.Join(finalDir, rel))
		in.logger.Debug("saved submission file", "submission", id, "file", rel)
	}
	return sub, nil
}

// copyFile copies src to dst, creating parent directories on demand.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// submissionRoot descends through lone wrapper directories. A lone directory
// holding only files is a single submission and is not descended into.
func submissionRoot(dir string) (string, error) {
	for {
		visible, err := visibleEntries(dir)
		if err != nil {
			return "", err
		}
		if len(visible) != 1 || !visible[0].IsDir() {
			return dir, nil
		}
		next := filepath.Join(dir, visible[0].Name())
		children, err := visibleEntries(next)
		if err != nil {
			return "", err
		}
		if !slices.ContainsFunc(children, fs.DirEntry.IsDir) {
			return dir, nil
		}
		dir = next
	}
}

func visibleEntries(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read extraction root: %w", err)
	}
	var visible []fs.DirEntry
	for _, e := range entries {
		if !skipEntry(e.Name()) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

func skipEntry(name string) bool {
	return name == macOSMetadataDir || strings.HasPrefix(name, ".")
}

// idAllocator hands out filesystem-safe, unique submission identifiers.
type idAllocator struct {
	used map[string]bool
	// suffix is the last numeric suffix tried per base name.
	suffix map[string]int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: make(map[string]bool), suffix: make(map[string]int)}
}

// next returns name as an identifier, or name-N with the smallest N >= 2
// that no earlier identifier has taken.
func (a *idAllocator) next(name string) string {
	base := models.SafeName(name)
	if base == "" {
		base = "submission"
	}
	id := base
	for a.used[id] {
		n := max(a.suffix[base], 1) + 1
		a.suffix[base] = n
		id = base + "-" + strconv.Itoa(n)
	}
	a.used[id] = true
	return id
}
