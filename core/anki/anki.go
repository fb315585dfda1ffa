// Package anki is a client for the AnkiConnect JSON-RPC-over-HTTP protocol.
// Every request carries {action, params, version} and every well-formed
// response contains exactly an "error" and a "result" key; anything else is
// reported as a protocol violation with the full payload attached.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the address AnkiConnect listens on locally.
	DefaultBaseURL = "http://127.0.0.1:8765"

	// ProtocolVersion is the AnkiConnect API version spoken.
	ProtocolVersion = 6

	defaultTimeout = 30 * time.Second
)

// Note is one flashcard to create or update.
type Note struct {
	Type   string            // Anki model name
	Fields map[string]string // field name -> HTML content
}

// Client talks to one AnkiConnect endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default AnkiConnect address.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient creates an AnkiConnect client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeckNames returns the names of all decks.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var decks []string
	if err := c.call(ctx, "deckNames", struct{}{}, &decks); err != nil {
		return nil, err
	}
	return decks, nil
}

// AddNote creates a note in the given deck and returns its id.
func (c *Client) AddNote(ctx context.Context, deck string, note Note) (int64, error) {
	params := map[string]any{
		"note": map[string]any{
			"deckName":  deck,
			"modelName": note.Type,
			"fields":    note.Fields,
		},
	}
	var id int64
	if err := c.call(ctx, "addNote", params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateNoteFields replaces the fields of an existing note.
func (c *Client) UpdateNoteFields(ctx context.Context, noteID int64, fields map[string]string) error {
	params := map[string]any{
		"note": map[string]any{
			"id":     noteID,
			"fields": fields,
		},
	}
	return c.call(ctx, "updateNoteFields", params, nil)
}

// FindNotes returns the ids of the notes in a deck matching an Anki search
// query. Both terms are quoted: an unquoted multi-word field value would
// split into separate search terms.
func (c *Client) FindNotes(ctx context.Context, deck, query string) ([]int64, error) {
	params := map[string]any{
		"query": fmt.Sprintf("%q %q", "deck:"+deck, query),
	}
	var ids []int64
	if err := c.call(ctx, "findNotes", params, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

type request struct {
	Action  string `json:"action"`
	Params  any    `json:"params"`
	Version int    `json:"version"`
}

// call performs one round trip and validates the response envelope: exactly
// the keys "error" and "result", with a null error.
func (c *Client) call(ctx context.Context, action string, params, out any) error {
	body, err := json.Marshal(request{Action: action, Params: params, Version: ProtocolVersion})
	if err != nil {
		return fmt.Errorf("anki %s: marshal request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("anki %s: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anki %s: %w", action, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anki %s: read response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &ResponseError{Action: action, Reason: resp.Status, Payload: payload}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return &ResponseError{Action: action, Reason: "response is not a JSON object", Payload: payload}
	}
	if len(envelope) != 2 {
		return &ResponseError{Action: action, Reason: "unexpected number of response fields", Payload: payload}
	}
	for _, key := range []string{"error", "result"} {
		if _, ok := envelope[key]; !ok {
			return &ResponseError{Action: action, Reason: key + " key missing", Payload: payload}
		}
	}
	if errMsg := string(envelope["error"]); errMsg != "null" {
		return &ResponseError{Action: action, Reason: "request failed: " + errMsg, Payload: payload}
	}

	if out != nil {
		if err := json.Unmarshal(envelope["result"], out); err != nil {
			return &ResponseError{Action: action, Reason: "malformed result: " + err.Error(), Payload: payload}
		}
	}
	return nil
}
