// Package bookmark reads annotation and saved-word rows from the Kobo
// device database (KoboReader.sqlite). Access is strictly read-only; the
// store is handed an opened *sql.DB owned by the caller.
package bookmark

import (
	"fmt"
	"time"
)

// Kind distinguishes the two annotation variants the device writes.
type Kind int

const (
	// KindNote is a highlight with an attached user note.
	KindNote Kind = iota
	// KindHighlight is a bare highlight.
	KindHighlight
)

// String returns the log's name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindHighlight:
		return "highlight"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a Type column value to a Kind. Values outside the two
// known variants are fatal: they mean the firmware schema moved under us.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "note":
		return KindNote, nil
	case "highlight":
		return KindHighlight, nil
	}
	return 0, fmt.Errorf("unknown bookmark type %q", s)
}

// Bookmark is one row of the device's Bookmark table, with both timestamps
// normalized to UTC and text fields trimmed.
type Bookmark struct {
	VolumeID           string
	ContentID          string
	StartContainerPath string
	StartOffset        int
	EndContainerPath   string
	EndOffset          int
	Text               string
	Annotation         string // "" when the row has no note
	DateCreated        time.Time
	ChapterProgress    float64
	DateModified       time.Time
	Kind               Kind
}

// Word is one row of the device's WordList table (vocabulary saved from the
// built-in dictionaries).
type Word struct {
	Text        string
	VolumeID    string
	DictSuffix  string
	DateCreated time.Time
}
