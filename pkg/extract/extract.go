// Package extract turns fetched documents into readable text and link lists.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/anaskhan96/soup"
	"golang.org/x/net/html"
)

// ErrUnsupportedContent is returned for payloads that are not text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// Link is an anchor found in a document.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// Document is the readable form of a fetched payload.
type Document struct {
	Title string
	Text  string
	Links []Link

	// HTML reports whether the payload was parsed as markup
	HTML bool
}

// Extract converts body into a Document. HTML is reduced to its visible text
// and links resolved against baseURL; other textual types are returned verbatim.
// Legacy encodings are transcoded to UTF-8 first.
func Extract(body []byte, contentType, baseURL string) (*Document, error) {
	kind := classify(body, contentType)
	if kind != kindBinary {
		body, _ = ToUTF8(body, contentType)
	}

	switch kind {
	case kindHTML:
		return extractHTML(body, baseURL)
	case kindText:
		return &Document{Text: string(body)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
}

// Textual reports whether body is markup or text rather than binary data.
func Textual(body []byte, contentType string) bool {
	return classify(body, contentType) != kindBinary
}

type contentKind int

const (
	kindBinary contentKind = iota
	kindText
	kindHTML
)

func classify(body []byte, contentType string) contentKind {
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = mt
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return kindHTML
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/json",
		mediaType == "application/xml",
		mediaType == "application/javascript",
		strings.HasSuffix(mediaType, "+json"),
		strings.HasSuffix(mediaType, "+xml"):
		return kindText
	case utf8.Valid(body) && !bytes.ContainsRune(body, 0):
		return kindText
	default:
		return kindBinary
	}
}

func extractHTML(body []byte, baseURL string) (*Document, error) {
	node, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	root := soup.HTMLParse(string(body))
	if root.Error != nil {
		return nil, fmt.Errorf("parse html: %w", root.Error)
	}

	doc := &Document{
		HTML: true,
		Text: Text(node),
	}
	if title := root.Find("title"); title.Error == nil {
		doc.Title = collapse(title.FullText())
	}
	doc.Links = links(root, baseURL)
	return doc, nil
}

// links collects anchors, resolved against the document base and deduplicated
// with fragments removed. In-page and script links are skipped.
func links(root soup.Root, baseURL string) []Link {
	base, _ := url.Parse(baseURL)
	if b := root.Find("base"); b.Error == nil {
		if href := strings.TrimSpace(b.Attrs()["href"]); href != "" {
			if ref, err := url.Parse(href); err == nil {
				if base != nil {
					base = base.ResolveReference(ref)
				} else {
					base = ref
				}
			}
		}
	}

	seen := make(map[string]bool)
	var out []Link
	for _, a := range root.FindAll("a") {
		href := strings.TrimSpace(a.Attrs()["href"])
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		ref.Fragment = ""
		ref.RawFragment = ""

		resolved := ref.String()
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, Link{URL: resolved, Text: collapse(a.FullText())})
	}
	return out
}

// collapse joins the fields of s with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens text to at most max runes, cutting at a line or word
// boundary when one is close. It reports whether text was shortened.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}

	runes := []rune(text)
	cut := string(runes[:max])
	if i := strings.LastIndexAny(cut, "\n "); i > max*3/4 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n"), true
}
