// Package export drives a full bookmark export: read the annotation log,
// group rows by book, resolve each annotation against its container, and
// write one Markdown document per book.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Jormii/IKobo/core/annotate"
	"github.com/Jormii/IKobo/core/bookmark"
	"github.com/Jormii/IKobo/core/kepub"
	"github.com/Jormii/IKobo/core/markdown"
	"github.com/Jormii/IKobo/core/sqlite"
	"github.com/Jormii/IKobo/internal/filter"
	"github.com/Jormii/IKobo/internal/logging"
)

// Options configure one export run.
type Options struct {
	DBPath     string // path to KoboReader.sqlite
	DeviceRoot string // mount point standing in for /mnt/onboard
	OutDir     string // destination directory for the documents
	Encoding   string // IANA text encoding of container members; "" is utf-8
	Filter     string // bookmark filter expression; "" exports everything
}

// Run exports every annotated book. Volumes that are not kepub containers,
// or whose container file is gone from the device, are skipped with a
// warning; anything else wrong with a book fails the run.
func Run(ctx context.Context, opts Options) error {
	if _, err := os.Stat(opts.DBPath); err != nil {
		return fmt.Errorf("device database: %w", err)
	}
	if _, err := os.Stat(opts.DeviceRoot); err != nil {
		return fmt.Errorf("device root: %w", err)
	}
	if info, err := os.Stat(opts.OutDir); err != nil {
		return fmt.Errorf("output directory: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("output directory: %s is not a directory", opts.OutDir)
	}

	match, err := filter.Compile(opts.Filter)
	if err != nil {
		return err
	}

	db, err := sqlite.OpenReadOnly(opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	bookmarks, err := bookmark.NewStore(db).Bookmarks(ctx)
	if err != nil {
		return err
	}

	total := len(bookmarks)
	byVolume, order := groupByVolume(bookmarks, match)
	logging.Info("export_started",
		"annotations", total,
		"selected", selected(byVolume),
		"volumes", len(order),
	)

	for _, volumeID := range order {
		if err := exportVolume(ctx, volumeID, byVolume[volumeID], opts); err != nil {
			return err
		}
	}
	return nil
}

// groupByVolume partitions the filtered rows by volume, preserving the
// log's first-seen volume order.
func groupByVolume(bookmarks []*bookmark.Bookmark, match *filter.Filter) (map[string][]*bookmark.Bookmark, []string) {
	byVolume := make(map[string][]*bookmark.Bookmark)
	var order []string
	for _, bm := range bookmarks {
		if !match.Match(bm) {
			continue
		}
		if _, seen := byVolume[bm.VolumeID]; !seen {
			order = append(order, bm.VolumeID)
		}
		byVolume[bm.VolumeID] = append(byVolume[bm.VolumeID], bm)
	}
	return byVolume, order
}

func selected(byVolume map[string][]*bookmark.Bookmark) int {
	n := 0
	for _, bms := range byVolume {
		n += len(bms)
	}
	return n
}

func exportVolume(ctx context.Context, volumeID string, bookmarks []*bookmark.Bookmark, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	book, meta, err := kepub.Open(volumeID, opts.DeviceRoot, opts.Encoding)
	switch {
	case errors.Is(err, kepub.ErrNotKepub):
		logging.VolumeSkipped(volumeID, "not a kepub container")
		return nil
	case errors.Is(err, fs.ErrNotExist):
		logging.VolumeSkipped(volumeID, "container file missing from device")
		return nil
	case err != nil:
		return err
	}
	defer book.Close()

	pairs := make([]*annotate.Pair, 0, len(bookmarks))
	for _, bm := range bookmarks {
		resolved, err := annotate.Resolve(bm, book, opts.DeviceRoot)
		if err != nil {
			return fmt.Errorf("%s: %w", volumeID, err)
		}
		pairs = append(pairs, &annotate.Pair{Bookmark: bm, Context: resolved})
	}

	annotate.Sort(pairs, meta)
	groups := annotate.Merge(pairs)

	renderer := markdown.New(book, meta, opts.OutDir)
	doc, err := renderer.Render(groups)
	if err != nil {
		return fmt.Errorf("%s: %w", volumeID, err)
	}

	outPath := filepath.Join(opts.OutDir, renderer.FileName())
	if err := os.WriteFile(outPath, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	logging.BookExported(volumeID, outPath, len(pairs), len(groups))
	return nil
}
