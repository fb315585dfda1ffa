// Package dict looks up harvested vocabulary on dle.rae.es and shapes the
// entries into flashcard fields. The site's article markup is walked with
// the same closed-dispatch discipline as the book renderer: paragraph
// classes outside the known set are a fatal unhandled case, not something
// to skip silently.
package dict

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Jormii/IKobo/core/dom"
)

const (
	// DefaultBaseURL is the RAE dictionary endpoint.
	DefaultBaseURL = "https://dle.rae.es"

	defaultTimeout = 30 * time.Second
)

// Client fetches and parses dictionary pages.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a dictionary client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "ikobo/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches a word's dictionary page and parses its articles.
// A page with no articles means the word is unknown; that is a miss, not an
// error, and Lookup returns nil.
func (c *Client) Lookup(ctx context.Context, word string) (*Result, error) {
	pageURL := c.baseURL + "/" + url.PathEscape(word)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dict lookup %q: %w", word, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dict lookup %q: %w", word, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dict lookup %q: %s", word, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dict lookup %q: read response: %w", word, err)
	}

	root, err := dom.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("dict lookup %q: %w", word, err)
	}

	articleEls := root.FindAll("article")
	if len(articleEls) == 0 {
		return nil, nil
	}

	result := &Result{URL: pageURL}
	for _, el := range articleEls {
		article, err := parseArticle(el)
		if err != nil {
			return nil, fmt.Errorf("dict lookup %q: %w", word, err)
		}
		result.Articles = append(result.Articles, article)
	}
	return result, nil
}
