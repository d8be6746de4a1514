// Package fetch downloads text attachments so their contents can be
// inlined into completion input. HTML bodies are reduced to readable
// text; other text subtypes are inlined raw.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/herald-bot/herald/internal/httpkit"
)

// DefaultTimeout is the HTTP request timeout for attachment downloads.
const DefaultTimeout = 30 * time.Second

// DefaultMaxBytes is the maximum attachment body size (1 MB). Chat
// attachments larger than this are cut off rather than ballooning the
// completion input.
const DefaultMaxBytes int64 = 1 * 1024 * 1024

// DefaultMaxChars is the character limit for inlined text.
const DefaultMaxChars = 50000

// Fetcher downloads attachment bodies for inlining.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	maxChars int
}

// New creates a Fetcher with default limits.
func New() *Fetcher {
	return &Fetcher{
		client: httpkit.NewClient(
			httpkit.WithTimeout(DefaultTimeout),
		),
		maxBytes: DefaultMaxBytes,
		maxChars: DefaultMaxChars,
	}
}

// Inline downloads the attachment at rawURL and returns its contents as
// text. contentType is the media type declared by the chat platform;
// HTML is reduced to readable text, everything else under text/ is
// returned as-is. Bodies that are not valid UTF-8 are an error.
func (f *Fetcher) Inline(ctx context.Context, rawURL, contentType string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("fetch: url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: invalid url: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpkit.DrainAndClose(resp.Body, 1024)
		return "", fmt.Errorf("fetch: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("fetch: read body: %w", err)
	}

	// Prefer the declared type; fall back to what the server says.
	ct := contentType
	if ct == "" {
		ct = resp.Header.Get("Content-Type")
	}

	var content string
	if isHTML(ct) {
		content = ExtractText(string(body))
	} else {
		if !utf8.Valid(body) {
			return "", fmt.Errorf("fetch: %s is not valid UTF-8 text", rawURL)
		}
		content = string(body)
	}

	return truncateUTF8(content, f.maxChars), nil
}

func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// truncateUTF8 truncates a string to maxChars runes, never cutting a
// multi-byte character in half.
func truncateUTF8(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	count := 0
	for i := range s {
		if count >= maxChars {
			return s[:i]
		}
		count++
	}
	return s
}
