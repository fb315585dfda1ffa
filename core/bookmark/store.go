package bookmark

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// The device writes its two timestamp columns in different formats:
// DateCreated is UTC-naive with fractional seconds, DateModified carries a
// zone offset. Both are normalized to UTC on read.
const (
	createdLayout  = "2006-01-02T15:04:05.999999999"
	modifiedLayout = "2006-01-02T15:04:05Z07:00"
)

// Store reads annotation rows from an opened device database.
type Store struct {
	db *sql.DB
}

// NewStore wraps a read-only database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Bookmarks returns every annotation row in the log.
func (s *Store) Bookmarks(ctx context.Context) ([]*Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT VolumeID, ContentID,
		       StartContainerPath, StartOffset,
		       EndContainerPath, EndOffset,
		       Text, Annotation,
		       DateCreated, ChapterProgress, DateModified, Type
		FROM Bookmark`)
	if err != nil {
		return nil, fmt.Errorf("query Bookmark: %w", err)
	}
	defer rows.Close()

	var bookmarks []*Bookmark
	for rows.Next() {
		var (
			bm         Bookmark
			text       string
			annotation sql.NullString
			created    string
			modified   string
			kind       string
		)
		if err := rows.Scan(
			&bm.VolumeID, &bm.ContentID,
			&bm.StartContainerPath, &bm.StartOffset,
			&bm.EndContainerPath, &bm.EndOffset,
			&text, &annotation,
			&created, &bm.ChapterProgress, &modified, &kind,
		); err != nil {
			return nil, fmt.Errorf("scan Bookmark row: %w", err)
		}

		bm.Text = strings.TrimSpace(text)
		if annotation.Valid {
			bm.Annotation = strings.TrimSpace(annotation.String)
		}

		if bm.DateCreated, err = parseUTC(created, createdLayout); err != nil {
			return nil, fmt.Errorf("Bookmark.DateCreated: %w", err)
		}
		if bm.DateModified, err = parseUTC(modified, modifiedLayout); err != nil {
			return nil, fmt.Errorf("Bookmark.DateModified: %w", err)
		}
		if bm.Kind, err = ParseKind(kind); err != nil {
			return nil, err
		}

		bookmarks = append(bookmarks, &bm)
	}
	return bookmarks, rows.Err()
}

// Words returns every saved-word row in the log.
func (s *Store) Words(ctx context.Context) ([]*Word, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT Text, VolumeId, DictSuffix, DateCreated
		FROM WordList`)
	if err != nil {
		return nil, fmt.Errorf("query WordList: %w", err)
	}
	defer rows.Close()

	var words []*Word
	for rows.Next() {
		var (
			w       Word
			created string
		)
		if err := rows.Scan(&w.Text, &w.VolumeID, &w.DictSuffix, &created); err != nil {
			return nil, fmt.Errorf("scan WordList row: %w", err)
		}
		if w.DateCreated, err = parseUTC(created, modifiedLayout); err != nil {
			return nil, fmt.Errorf("WordList.DateCreated: %w", err)
		}
		words = append(words, &w)
	}
	return words, rows.Err()
}

func parseUTC(value, layout string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
