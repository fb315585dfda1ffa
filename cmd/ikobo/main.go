// Command ikobo exports Kobo e-reader annotations to Markdown and syncs
// saved vocabulary into Anki flashcards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/Jormii/IKobo/core/sqlite"
	"github.com/Jormii/IKobo/internal/backup"
	"github.com/Jormii/IKobo/internal/export"
	"github.com/Jormii/IKobo/internal/logging"
	"github.com/Jormii/IKobo/internal/words"
)

const version = "1.0.0"

// databaseRelPath is where the firmware keeps the annotation log under the
// device mount point.
const databaseRelPath = ".kobo/KoboReader.sqlite"

// CLI defines the command-line interface for ikobo.
var CLI struct {
	// Global flags
	Verbose bool `name:"verbose" short:"v" help:"Enable debug logging"`
	JSONLog bool `name:"json-log" help:"Emit logs as JSON"`

	// Command groups (noun-first organization)
	Bookmarks BookmarksGroup `cmd:"" help:"Annotation operations (export)"`
	Words     WordsGroup     `cmd:"" help:"Saved-word operations (sync)"`
	Device    DeviceGroup    `cmd:"" help:"Device operations (backup)"`
	Version   VersionCmd     `cmd:"" help:"Print version information"`
}

// BookmarksGroup contains annotation operations.
type BookmarksGroup struct {
	Export ExportCmd `cmd:"" help:"Export annotations to Markdown documents"`
}

// WordsGroup contains saved-word operations.
type WordsGroup struct {
	Sync SyncCmd `cmd:"" help:"Sync saved words into Anki flashcards"`
}

// DeviceGroup contains device maintenance operations.
type DeviceGroup struct {
	Backup BackupCmd `cmd:"" help:"Snapshot the device database to an archive"`
}

// ExportCmd exports annotations to Markdown documents, one per book.
type ExportCmd struct {
	DeviceRoot string `name:"device-root" required:"" help:"Device mount point (the directory mounted at /mnt/onboard)" type:"existingdir"`
	DB         string `name:"db" help:"Path to KoboReader.sqlite (default: <device-root>/.kobo/KoboReader.sqlite)" type:"path"`
	Out        string `name:"out" required:"" help:"Output directory for the Markdown documents (must exist)" type:"existingdir"`
	Encoding   string `name:"encoding" help:"IANA text encoding of book markup (default utf-8)"`
	Filter     string `name:"filter" help:"Bookmark filter expression, e.g. 'kind == note and volume =~ \"quijote\"'"`
}

func (c *ExportCmd) Run() error {
	return export.Run(signalContext(), export.Options{
		DBPath:     databasePath(c.DB, c.DeviceRoot),
		DeviceRoot: c.DeviceRoot,
		OutDir:     c.Out,
		Encoding:   c.Encoding,
		Filter:     c.Filter,
	})
}

// SyncCmd syncs the device's saved-word list into Anki.
type SyncCmd struct {
	DeviceRoot string `name:"device-root" help:"Device mount point" type:"existingdir"`
	DB         string `name:"db" help:"Path to KoboReader.sqlite (default: <device-root>/.kobo/KoboReader.sqlite)" type:"path"`
	AnkiURL    string `name:"anki-url" help:"AnkiConnect address (default http://127.0.0.1:8765)"`
	DictURL    string `name:"dict-url" help:"Dictionary endpoint override"`
}

func (c *SyncCmd) Run() error {
	if c.DB == "" && c.DeviceRoot == "" {
		return fmt.Errorf("either --db or --device-root is required")
	}
	return words.Run(signalContext(), words.Options{
		DBPath:      databasePath(c.DB, c.DeviceRoot),
		AnkiBaseURL: c.AnkiURL,
		DictBaseURL: c.DictURL,
	})
}

// BackupCmd snapshots the device database into a tar.xz archive.
type BackupCmd struct {
	DeviceRoot string `name:"device-root" required:"" help:"Device mount point" type:"existingdir"`
	Out        string `name:"out" default:"." help:"Directory to write the archive to" type:"path"`
}

func (c *BackupCmd) Run() error {
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	path, err := backup.Snapshot(c.DeviceRoot, c.Out)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("ikobo version %s (sqlite driver: %s)\n", version, sqlite.DriverType())
	return nil
}

func databasePath(db, deviceRoot string) string {
	if db != "" {
		return db
	}
	return filepath.Join(deviceRoot, filepath.FromSlash(databaseRelPath))
}

// signalContext returns a context cancelled on interrupt, so a half-done
// export stops between volumes instead of mid-file.
func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctx
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("ikobo"),
		kong.Description("Kobo annotation exporter and flashcard builder"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	level := logging.LevelInfo
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if CLI.JSONLog {
		format = logging.FormatJSON
	}
	logging.Init(level, format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
