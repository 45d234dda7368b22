// Package textsrc extracts readable Japanese text from HTML pages so it can be
// scanned with the lookup engine.
package textsrc

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses (<rp>...</rp>)
// from HTML content. Readability extracts all text including furigana, which
// leads to duplication (e.g. "漢字" becomes "漢字かんじ").
// This function operates on bytes and is generally safe for Shift_JIS as well,
// because <, >, r, t, p are ASCII and < is not a trailing byte in Shift_JIS.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}

// Article is the readable part of a page.
type Article struct {
	Title string
	Text  string
}

// Extract reads an HTML page, strips furigana and returns its main text.
// pageURL may be empty; it only helps resolve relative links.
func Extract(r io.Reader, pageURL string) (Article, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Article{}, fmt.Errorf("read page: %w", err)
	}
	if pageURL == "" {
		pageURL = "http://localhost/"
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return Article{}, fmt.Errorf("parse page url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(content)), u)
	if err != nil {
		return Article{}, fmt.Errorf("readability: %w", err)
	}
	return Article{
		Title: strings.TrimSpace(article.Title),
		Text:  strings.TrimSpace(article.TextContent),
	}, nil
}
