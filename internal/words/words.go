// Package words syncs the device's saved-word list into Anki: each word is
// looked up in its dictionary, shaped into note fields, and created or
// updated in the deck mapped to its dictionary suffix.
package words

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Jormii/IKobo/core/anki"
	"github.com/Jormii/IKobo/core/bookmark"
	"github.com/Jormii/IKobo/core/dict"
	"github.com/Jormii/IKobo/core/sqlite"
	"github.com/Jormii/IKobo/internal/logging"
)

// koboTextField tags each note with the word exactly as the device saved
// it, so later syncs find the note again even after its headword field is
// reformatted.
const koboTextField = "kobo_text"

// target binds one device dictionary suffix to the Anki deck and note
// model its words belong to.
type target struct {
	Deck string
	Type string // Anki model name
}

// targets maps DictSuffix values to their decks. Words with an unmapped
// suffix are skipped with a warning.
var targets = map[string]target{
	"-es": {Deck: "RAE", Type: "RAE"},
}

// Options configure one sync run.
type Options struct {
	DBPath      string // path to KoboReader.sqlite
	AnkiBaseURL string // "" means the AnkiConnect default
	DictBaseURL string // "" means the dictionary default
}

// Run syncs every saved word. Every deck named by the suffix map must
// exist before any note is written; a missing deck aborts the run up
// front. Per-word Anki failures are logged with the full response payload
// and counted, not fatal.
func Run(ctx context.Context, opts Options) error {
	if _, err := os.Stat(opts.DBPath); err != nil {
		return fmt.Errorf("device database: %w", err)
	}

	db, err := sqlite.OpenReadOnly(opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	words, err := bookmark.NewStore(db).Words(ctx)
	if err != nil {
		return err
	}

	var ankiOpts []anki.Option
	if opts.AnkiBaseURL != "" {
		ankiOpts = append(ankiOpts, anki.WithBaseURL(opts.AnkiBaseURL))
	}
	ankiClient := anki.NewClient(ankiOpts...)

	var dictOpts []dict.Option
	if opts.DictBaseURL != "" {
		dictOpts = append(dictOpts, dict.WithBaseURL(opts.DictBaseURL))
	}
	dictClient := dict.NewClient(dictOpts...)

	if err := checkDecks(ctx, ankiClient); err != nil {
		return err
	}

	logging.Info("words_sync_started", "words", len(words))

	failed := 0
	for _, word := range words {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := syncWord(ctx, word, ankiClient, dictClient); err != nil {
			var respErr *anki.ResponseError
			if !errors.As(err, &respErr) {
				return err
			}
			logging.AnkiError(respErr.Action, respErr.Payload, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d words failed to sync", failed, len(words))
	}
	return nil
}

// checkDecks verifies every target deck exists. Running against a profile
// missing a deck would silently create notes in Anki's default deck, so
// this aborts before the first write.
func checkDecks(ctx context.Context, client *anki.Client) error {
	decks, err := client.DeckNames(ctx)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(decks))
	for _, deck := range decks {
		present[deck] = true
	}
	for _, t := range targets {
		if !present[t.Deck] {
			return fmt.Errorf("anki deck %q does not exist", t.Deck)
		}
	}
	return nil
}

func syncWord(ctx context.Context, word *bookmark.Word, ankiClient *anki.Client, dictClient *dict.Client) error {
	t, ok := targets[word.DictSuffix]
	if !ok {
		logging.Warn("word_skipped",
			"word", word.Text,
			"reason", "unmapped dictionary suffix",
			"dict_suffix", word.DictSuffix,
		)
		return nil
	}

	result, err := dictClient.Lookup(ctx, word.Text)
	if err != nil {
		return err
	}
	if result == nil {
		logging.Warn("word_skipped",
			"word", word.Text,
			"reason", "not found in dictionary",
		)
		return nil
	}

	fields := result.Fields()
	fields[koboTextField] = word.Text

	ids, err := ankiClient.FindNotes(ctx, t.Deck, koboTextField+":"+word.Text)
	if err != nil {
		return err
	}

	switch len(ids) {
	case 0:
		id, err := ankiClient.AddNote(ctx, t.Deck, anki.Note{Type: t.Type, Fields: fields})
		if err != nil {
			return err
		}
		logging.Debug("note_added", "word", word.Text, "note_id", id)
	case 1:
		if err := ankiClient.UpdateNoteFields(ctx, ids[0], fields); err != nil {
			return err
		}
		logging.Debug("note_updated", "word", word.Text, "note_id", ids[0])
	default:
		return fmt.Errorf("word %q matches %d notes in deck %q", word.Text, len(ids), t.Deck)
	}
	return nil
}
