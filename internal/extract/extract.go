// Package extract turns submission files into plain text for scoring.
package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// Strategy extracts the text content of the file at path.
type Strategy func(path string) (string, error)

// plainExtensions are read as UTF-8 text.
var plainExtensions = []string{
	".txt", ".py", ".java", ".c", ".cpp", ".h", ".hpp", ".js", ".ts", ".go", ".rs",
	".cs", ".rb", ".php", ".html", ".css", ".json", ".xml", ".csv", ".sql", ".sh",
	".kt", ".swift", ".m", ".r", ".tex",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor maps file extensions to extraction strategies.
type Extractor struct {
	strategies map[string]Strategy
	logger     *slog.Logger
}

// New creates an Extractor with the built-in strategies.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	strategies := make(map[string]Strategy, len(plainExtensions)+3)
	for _, ext := range plainExtensions {
		strategies[ext] = PlainText
	}
	strategies[".md"] = Markdown
	strategies[".docx"] = DOCX
	strategies[".pdf"] = PDF
	return &Extractor{strategies: strategies, logger: logger}
}

// Supported reports whether ext (with or without leading dot) has a strategy.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.strategies[normalize(ext)]
	return ok
}

// Extensions returns the supported extensions, sorted.
func (e *Extractor) Extensions() []string {
	exts := make([]string, 0, len(e.strategies))
	for ext := range e.strategies {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Text returns the text of the file at path. Unknown extensions and
// extraction failures yield "", the latter logged at WARN.
func (e *Extractor) Text(path string) string {
	strategy, ok := e.strategies[normalize(filepath.Ext(path))]
	if !ok {
		return ""
	}
	text, err := strategy(path)
	if err != nil {
		e.logger.Warn("text extraction failed", "file", filepath.Base(path), "error", err)
		return ""
	}
	return text
}

// PlainText reads path as UTF-8, replacing invalid sequences with U+FFFD
// and dropping a leading byte order mark.
func PlainText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return decodeUTF8(raw), nil
}

func decodeUTF8(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

func normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
