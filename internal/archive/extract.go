package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// kind identifies a supported container format.
type kind int

const (
	kindNone kind = iota
	kindZip
	kindTar
	kindTarGz
	kindTarZst
)

// kindOf detects the archive format from the file name.
func kindOf(name string) kind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return kindZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return kindTarGz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return kindTarZst
	case strings.HasSuffix(lower, ".tar"):
		return kindTar
	default:
		return kindNone
	}
}

// IsArchive reports whether name looks like a supported archive.
func IsArchive(name string) bool {
	return kindOf(name) != kindNone
}

// Stem strips a (possibly double) archive extension from a base name.
func Stem(name string) string {
	base := filepath.Base(name)
	lower := strings.ToLower(base)
	for _, suffix := range []string{".tar.gz", ".tar.zst", ".tgz", ".tzst", ".tar", ".zip"} {
		if strings.HasSuffix(lower, suffix) {
			return base[:len(base)-len(suffix)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SafeJoin resolves an archive entry name against dest and fails with
// ErrPathTraversal if the result would land outside dest.
func SafeJoin(dest, name string) (string, error) {
	// Archives built on Windows may use backslashes.
	name = strings.ReplaceAll(name, "\\", "/")
	local := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if local == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	return filepath.Join(dest, local), nil
}

// Extract unpacks one archive into dest, creating dest if needed.
// Non-regular entries (symlinks, devices) are skipped.
func (in *Ingestor) Extract(archivePath, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}

	switch kindOf(archivePath) {
	case kindZip:
		return in.extractZip(archivePath, dest)
	case kindTar, kindTarGz, kindTarZst:
		f, err := os.Open(archivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer f.Close()

		r, closeFn, err := tarStream(archivePath, f)
		if err != nil {
			return err
		}
		defer closeFn()
		return in.extractTar(tar.NewReader(r), dest)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archivePath))
	}
}

// tarStream wraps f with the decompressor matching the file name.
func tarStream(name string, f io.Reader) (io.Reader, func(), error) {
	switch kindOf(name) {
	case kindTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: gzip: %v", ErrUnsupportedArchive, err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case kindTarZst:
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: zstd: %v", ErrUnsupportedArchive, err)
		}
		return dec, dec.Close, nil
	default:
		return f, func() {}, nil
	}
}

func (in *Ingestor) extractZip(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
	}
	defer zr.Close()

	if len(zr.File) > in.maxEntries {
		return fmt.Errorf("%w: %d entries", ErrArchiveLimit, len(zr.File))
	}

	for _, f := range zr.File {
		target, err := SafeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		if mode.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir: %w", err)
			}
			continue
		}
		if !mode.IsRegular() {
			in.logger.Debug("skipping non-regular archive entry", "entry", f.Name, "mode", mode.String())
			continue
		}
		if f.UncompressedSize64 > uint64(in.maxEntryBytes) {
			return fmt.Errorf("%w: %s is %d bytes", ErrArchiveLimit, f.Name, f.UncompressedSize64)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		err = in.writeEntry(target, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("write entry %s: %w", f.Name, err)
		}
	}
	return nil
}

func (in *Ingestor) extractTar(tr *tar.Reader, dest string) error {
	for count := 0; ; count++ {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: tar: %v", ErrUnsupportedArchive, err)
		}
		if count >= in.maxEntries {
			return fmt.Errorf("%w: more than %d entries", ErrArchiveLimit, in.maxEntries)
		}

		target, err := SafeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir: %w", err)
			}
		case tar.TypeReg:
			if hdr.Size > in.maxEntryBytes {
				return fmt.Errorf("%w: %s is %d bytes", ErrArchiveLimit, hdr.Name, hdr.Size)
			}
			if err := in.writeEntry(target, tr); err != nil {
				return fmt.Errorf("write entry %s: %w", hdr.Name, err)
			}
		default:
			in.logger.Debug("skipping non-regular archive entry", "entry", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

// writeEntry copies at most maxEntryBytes from r into a new file at target.
// Declared sizes can lie, so the limit is enforced on the stream as well.
func (in *Ingestor) writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(r, in.maxEntryBytes+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if n > in.maxEntryBytes {
		_ = os.Remove(target)
		return fmt.Errorf("%w: entry larger than %d bytes", ErrArchiveLimit, in.maxEntryBytes)
	}
	return nil
}

// entryNames lists the entry names of an archive without extracting it.
func entryNames(archivePath string) ([]string, error) {
	switch kindOf(archivePath) {
	case kindZip:
		zr, err := zip.OpenReader(archivePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
		}
		defer zr.Close()
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		return names, nil
	case kindTar, kindTarGz, kindTarZst:
		f, err := os.Open(archivePath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		defer f.Close()
		r, closeFn, err := tarStream(archivePath, f)
		if err != nil {
			return nil, err
		}
		defer closeFn()

		var names []string
		tr := tar.NewReader(r)
		for {
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return names, nil
			}
			if err != nil {
				return nil, fmt.Errorf("%w: tar: %v", ErrUnsupportedArchive, err)
			}
			names = append(names, hdr.Name)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archivePath))
	}
}
