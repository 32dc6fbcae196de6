package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submissionIDs(res *Result) []string {
	ids := make([]string, 0, len(res.Submissions))
	for _, s := range res.Submissions {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestIngestFlat(t *testing.T) {
	tests := []struct {
		name    string
		entries []entry
		wantIDs []string
		wantErr error
	}{
		{
			name: "folder per student",
			entries: []entry{
				{"alice/main.py", "print(1)"},
				{"alice/helper.exe", "MZ"},
				{"bob/src/main.py", "print(2)"},
				{"carol/readme.txt", "notes"},
			},
			wantIDs: []string{"alice", "bob", "carol"},
		},
		{
			name: "single wrapper folder is descended",
			entries: []entry{
				{"hw1/alice/a.py", "x"},
				{"hw1/bob/b.py", "y"},
			},
			wantIDs: []string{"alice", "bob"},
		},
		{
			name: "loose files are submissions",
			entries: []entry{
				{"alice.py", "x"},
				{"bob.py", "y"},
				{"ignored.exe", "z"},
			},
			wantIDs: []string{"alice", "bob"},
		},
		{
			name: "macOS metadata is ignored",
			entries: []entry{
				{"__MACOSX/alice/._a.py", "junk"},
				{"alice/a.py", "x"},
				{"alice/._a.py", "junk"},
				{"bob/b.py", "y"},
			},
			wantIDs: []string{"alice", "bob"},
		},
		{
			name: "folders without allowed files are dropped",
			entries: []entry{
				{"alice/a.py", "x"},
				{"bob/b.exe", "y"},
				{"carol/c.py", "z"},
			},
			wantIDs: []string{"alice", "carol"},
		},
		{
			name:    "no allowed files",
			entries: []entry{{"alice/a.exe", "x"}, {"bob/b.bin", "y"}},
			wantErr: ErrNoValidFiles,
		},
		{
			name:    "one submission",
			entries: []entry{{"alice/a.py", "x"}, {"alice/b.py", "y"}},
			wantErr: ErrInsufficientSubmissions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			path := writeZip(t, filepath.Join(base, "batch.zip"), tt.entries)

			res, err := testIngestor().IngestFlat(context.Background(), path, filepath.Join(base, "out"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ModeFlat, res.Mode)
			assert.Equal(t, tt.wantIDs, submissionIDs(res))
		})
	}
}

func TestIngestFlatKeepsOnlyAllowedFiles(t *testing.T) {
	base := t.TempDir()
	path := writeZip(t, filepath.Join(base, "batch.zip"), []entry{
		{"alice/main.py", "print(1)"},
		{"alice/lib/util.py", "def f(): pass"},
		{"alice/data.bin", "\x00"},
		{"bob/main.PY", "print(2)"},
	})

	res, err := testIngestor(".py").IngestFlat(context.Background(), path, filepath.Join(base, "out"))
	require.NoError(t, err)
	require.Len(t, res.Submissions, 2)

	alice := res.Submissions[0]
	require.Len(t, alice.Files, 2)
	assert.Equal(t, filepath.Join(alice.Root, "lib", "util.py"), alice.Files[0])
	assert.Equal(t, filepath.Join(alice.Root, "main.py"), alice.Files[1])
	assert.Len(t, res.Submissions[1].Files, 1, "extension match is case-insensitive")
}

func TestIngestNested(t *testing.T) {
	base := t.TempDir()
	workDir := filepath.Join(base, "work")
	resultsDir := filepath.Join(base, "results")
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{
		{"alice.zip", string(buildZipBytes(t, []entry{{"src/main.py", "print('alice')"}, {"build/out.o", "bin"}}))},
		{"bob.zip", string(buildZipBytes(t, []entry{{"main.py", "print('bob')"}}))},
		{"subs/carol.zip", string(buildZipBytes(t, []entry{{"carol/hw.txt", "essay"}}))},
		{"readme.txt", "instructions"},
	})

	res, err := testIngestor().IngestNested(context.Background(), master, workDir, resultsDir)
	require.NoError(t, err)
	assert.Equal(t, ModeNested, res.Mode)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, submissionIDs(res))
	assert.Empty(t, res.Skipped)

	got, err := os.ReadFile(filepath.Join(resultsDir, "alice", "src", "main.py"))
	require.NoError(t, err, "internal paths are preserved")
	assert.Equal(t, "print('alice')", string(got))
	assert.NoFileExists(t, filepath.Join(resultsDir, "alice", "build", "out.o"))
	assert.FileExists(t, filepath.Join(resultsDir, "carol", "carol", "hw.txt"))

	leftovers, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "scratch directories are removed")
}

func TestIngestNestedSkipsMasterName(t *testing.T) {
	base := t.TempDir()
	inner := string(buildZipBytes(t, []entry{{"a.py", "x"}}))
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{
		{"batch.zip", inner},
		{"alice.zip", inner},
		{"bob.zip", inner},
	})

	res, err := testIngestor().IngestNested(context.Background(), master, base, filepath.Join(base, "results"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, submissionIDs(res))
}

func TestIngestNestedUniqueIDs(t *testing.T) {
	base := t.TempDir()
	resultsDir := filepath.Join(base, "results")
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{
		{"x/alice.zip", string(buildZipBytes(t, []entry{{"a.py", "x alice"}}))},
		{"y/alice.zip", string(buildZipBytes(t, []entry{{"a.py", "y alice"}}))},
		{"alice-2.zip", string(buildZipBytes(t, []entry{{"a.py", "alice two"}}))},
	})

	res, err := testIngestor().IngestNested(context.Background(), master, base, resultsDir)
	require.NoError(t, err)

	ids := submissionIDs(res)
	assert.ElementsMatch(t, []string{"alice", "alice-2", "alice-3"}, ids)

	dirs, err := os.ReadDir(resultsDir)
	require.NoError(t, err)
	assert.Len(t, dirs, 3, "one results folder per submission")

	texts := make(map[string]bool)
	for _, id := range ids {
		got, err := os.ReadFile(filepath.Join(resultsDir, id, "a.py"))
		require.NoError(t, err)
		texts[string(got)] = true
	}
	assert.Len(t, texts, 3, "no submission overwrites another")
}

func TestIDAllocator(t *testing.T) {
	ids := newIDAllocator()
	got := []string{
		ids.next("alice-2"),
		ids.next("alice"),
		ids.next("alice"),
		ids.next("alice"),
		ids.next(""),
		ids.next(""),
	}
	assert.Equal(t, []string{"alice-2", "alice", "alice-3", "alice-4", "submission", "submission-2"}, got)
}

func TestIngestNestedSingleSubmission(t *testing.T) {
	base := t.TempDir()
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{
		{"alice.zip", string(buildZipBytes(t, []entry{{"a.py", "x"}, {"b.py", "y"}, {"c.py", "z"}}))},
	})

	_, err := testIngestor().IngestNested(context.Background(), master, base, filepath.Join(base, "results"))
	assert.ErrorIs(t, err, ErrInsufficientSubmissions)
}

func TestIngestNestedWithoutInnerArchives(t *testing.T) {
	base := t.TempDir()
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{{"alice/a.py", "x"}})

	_, err := testIngestor().IngestNested(context.Background(), master, base, filepath.Join(base, "results"))
	assert.ErrorIs(t, err, ErrNoValidFiles)
}

func TestIngestNestedSkipsHostileInnerArchive(t *testing.T) {
	base := t.TempDir()
	resultsDir := filepath.Join(base, "deep", "results")
	inner := string(buildZipBytes(t, []entry{{"a.py", "x"}}))
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{
		{"alice.zip", inner},
		{"bob.zip", inner},
		{"mallory.zip", string(buildZipBytes(t, []entry{{"../../etc/passwd.txt", "root"}}))},
		{"broken.zip", "not really a zip"},
	})

	res, err := testIngestor().IngestNested(context.Background(), master, base, resultsDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, submissionIDs(res))
	assert.ElementsMatch(t, []string{"mallory.zip", "broken.zip"}, res.Skipped)
	assert.NoFileExists(t, filepath.Join(base, "etc", "passwd.txt"))
	assert.NoFileExists(t, filepath.Join(base, "deep", "etc", "passwd.txt"))
}

func TestIngestMasterTraversalAborts(t *testing.T) {
	base := t.TempDir()
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{
		{"alice/a.py", "x"},
		{"../../etc/passwd", "root"},
	})

	_, err := testIngestor().Ingest(context.Background(), ModeAuto, master, base, filepath.Join(base, "results"))
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestIngestCanceled(t *testing.T) {
	base := t.TempDir()
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{{"alice/a.py", "x"}, {"bob/b.py", "y"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testIngestor().IngestFlat(ctx, master, filepath.Join(base, "out"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetect(t *testing.T) {
	base := t.TempDir()
	inner := string(buildZipBytes(t, []entry{{"a.py", "x"}}))

	tests := []struct {
		name    string
		path    string
		entries []entry
		want    Mode
	}{
		{"folders", "flat.zip", []entry{{"alice/a.py", "x"}}, ModeFlat},
		{"inner zip", "nested.zip", []entry{{"alice.zip", inner}}, ModeNested},
		{"inner archive in folder", "deep.zip", []entry{{"subs/alice.tar.gz", "x"}}, ModeNested},
		{"only self-named entry", "self.zip", []entry{{"self.zip", inner}, {"a/b.py", "x"}}, ModeFlat},
		{"macOS metadata only", "mac.zip", []entry{{"__MACOSX/._alice.zip", "x"}, {"a/b.py", "x"}}, ModeFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeZip(t, filepath.Join(base, tt.path), tt.entries)
			got, err := testIngestor().Detect(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIngestAutoMode(t *testing.T) {
	base := t.TempDir()
	inner := string(buildZipBytes(t, []entry{{"a.py", "x"}}))
	master := writeZip(t, filepath.Join(base, "batch.zip"), []entry{{"alice.zip", inner}, {"bob.zip", inner}})

	res, err := testIngestor().Ingest(context.Background(), ModeAuto, master, base, filepath.Join(base, "results"))
	require.NoError(t, err)
	assert.Equal(t, ModeNested, res.Mode)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "AUTO": ModeAuto, " flat ": ModeFlat, "nested": ModeNested} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("sideways")
	assert.Error(t, err)
}

func TestParseExtensions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"comma list", ".py, java ,.TXT", []string{".py", ".java", ".txt"}, false},
		{"blank items", "py,,", []string{".py"}, false},
		{"flag map", `{"py": true, ".c": false, "Go": true}`, []string{".py", ".go"}, false},
		{"bad json", `{"py": tru`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExtensions(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got.ToSlice())
		})
	}
}
