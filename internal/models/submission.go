// Package models defines the data structures shared by the comparison pipeline.
package models

import "strings"

// ExtractedFile is one retained file inside a submission.
type ExtractedFile struct {
	// Path is the absolute path of the file on disk.
	Path string `json:"-"`
	// RelPath is the path relative to the submission root.
	RelPath string `json:"path"`
	// Type is the lower-cased extension, e.g. ".py".
	Type string `json:"type"`
	// Text is the extracted content; empty when extraction failed.
	Text string `json:"-"`
}

// Submission is one student's set of extracted files.
type Submission struct {
	ID    string          `json:"id"`
	Files []ExtractedFile `json:"files"`
}

// fileSeparator joins the texts of a submission's files.
const fileSeparator = "\n\n"

// Text returns the submission's comparable text: the non-empty file texts
// in file order.
func (s Submission) Text() string {
	parts := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, fileSeparator)
}

// Empty reports whether the submission has nothing to compare.
func (s Submission) Empty() bool {
	return s.Text() == ""
}
