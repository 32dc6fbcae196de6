package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// entry is one file in a test archive.
type entry struct {
	name string
	body string
}

func buildZipBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err, "create zip entry %s", e.name)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return b.Bytes()
}

func writeZip(t *testing.T, path string, entries []entry) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buildZipBytes(t, entries), 0o644))
	return path
}

func buildTarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var b bytes.Buffer
	tw := tar.NewWriter(&b)
	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return b.Bytes()
}

func writeTarGz(t *testing.T, path string, entries []entry) string {
	t.Helper()
	var b bytes.Buffer
	gz := gzip.NewWriter(&b)
	_, err := gz.Write(buildTarBytes(t, entries))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func writeTarZst(t *testing.T, path string, entries []entry) string {
	t.Helper()
	var b bytes.Buffer
	enc, err := zstd.NewWriter(&b)
	require.NoError(t, err)
	_, err = io.Copy(enc, bytes.NewReader(buildTarBytes(t, entries)))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func testIngestor(exts ...string) *Ingestor {
	if len(exts) == 0 {
		exts = []string{".py", ".txt"}
	}
	return New(Options{
		Allowed: NewExtensionSet(exts...),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}
