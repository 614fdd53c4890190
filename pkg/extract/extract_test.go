package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html>
<head>
  <title>  Example
     Page </title>
  <style>body { color: red }</style>
  <script>var hidden = "script text";</script>
</head>
<body>
  <nav><a href="/">Home</a> <a href="#top">Top</a></nav>
  <h1>Welcome</h1>
  <p>Hello <b>bold</b>   world.
     Second line.</p>
  <noscript>Enable JavaScript</noscript>
  <template><p>template text</p></template>
  <svg><text>svg text</text></svg>
  <ul><li>one</li><li>two</li></ul>
  <p><a href="docs/intro.html#setup">Intro docs</a>
     <a href="https://other.example/x">Other</a>
     <a href="/">Home again</a>
     <a href="javascript:void(0)">Click</a>
     <a href="mailto:team@example.com">Mail</a></p>
  <pre>line 1
  indented</pre>
</body>
</html>`

func TestExtract_HTML(t *testing.T) {
	doc, err := Extract([]byte(page), "text/html; charset=utf-8", "https://example.com/guide/index.html")
	require.NoError(t, err)

	assert.True(t, doc.HTML)
	assert.Equal(t, "Example Page", doc.Title)

	assert.Contains(t, doc.Text, "Welcome")
	assert.Contains(t, doc.Text, "Hello bold world. Second line.")
	assert.Contains(t, doc.Text, "- one\n- two")
	assert.Contains(t, doc.Text, "line 1\n  indented")

	for _, hidden := range []string{"script text", "color: red", "Enable JavaScript", "template text", "svg text"} {
		assert.NotContains(t, doc.Text, hidden)
	}
	assert.NotContains(t, doc.Text, "\n\n\n", "blank lines should be collapsed")
}

func TestExtract_Links(t *testing.T) {
	doc, err := Extract([]byte(page), "text/html", "https://example.com/guide/index.html")
	require.NoError(t, err)

	urls := make([]string, 0, len(doc.Links))
	for _, l := range doc.Links {
		urls = append(urls, l.URL)
	}

	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/guide/docs/intro.html",
		"https://other.example/x",
		"mailto:team@example.com",
	}, urls)
	assert.Equal(t, "Home", doc.Links[0].Text)
	assert.Equal(t, "Intro docs", doc.Links[1].Text)
}

func TestExtract_BaseElement(t *testing.T) {
	body := `<html><head><base href="https://cdn.example/assets/"></head>
<body><a href="file.txt">file</a></body></html>`

	doc, err := Extract([]byte(body), "text/html", "https://example.com/page")
	require.NoError(t, err)
	require.Len(t, doc.Links, 1)
	assert.Equal(t, "https://cdn.example/assets/file.txt", doc.Links[0].URL)
}

func TestExtract_SniffsHTML(t *testing.T) {
	doc, err := Extract([]byte("<html><body><p>sniffed</p></body></html>"), "", "https://example.com")
	require.NoError(t, err)
	assert.True(t, doc.HTML)
	assert.Equal(t, "sniffed", doc.Text)
}

func TestExtract_Verbatim(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"plain text", "text/plain; charset=utf-8", "  keep   spacing\n"},
		{"json", "application/json", `{"a": 1}`},
		{"problem json", "application/problem+json", `{"title": "x"}`},
		{"markdown", "text/markdown", "# Title\n\n*text*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Extract([]byte(tt.body), tt.contentType, "https://example.com")
			require.NoError(t, err)
			assert.False(t, doc.HTML)
			assert.Equal(t, tt.body, doc.Text)
			assert.Empty(t, doc.Links)
		})
	}
}

func TestExtract_Binary(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err := Extract(png, "image/png", "https://example.com/a.png")
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestTruncate(t *testing.T) {
	text := strings.Repeat("word ", 100)

	out, truncated := Truncate(text, 52)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(out), 52)
	assert.False(t, strings.HasSuffix(out, " "))
	assert.True(t, strings.HasSuffix(out, "word"), "should cut at a word boundary")

	out, truncated = Truncate("short", 100)
	assert.False(t, truncated)
	assert.Equal(t, "short", out)

	out, truncated = Truncate("unbounded", 0)
	assert.False(t, truncated)
	assert.Equal(t, "unbounded", out)

	out, truncated = Truncate("héllo wörld", 4)
	assert.True(t, truncated)
	assert.Equal(t, "héll", out)
}

func TestToUTF8(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		contentType string
		want        string
		encoding    string
	}{
		{"utf8 declared", []byte("café"), "text/plain; charset=utf-8", "café", "utf-8"},
		{"latin1 header", []byte("caf\xe9"), "text/plain; charset=iso-8859-1", "café", "windows-1252"},
		{"meta declaration", []byte(`<meta charset="iso-8859-1"><p>na\xefve</p>`), "text/html", `<meta charset="iso-8859-1"><p>naïve</p>`, "windows-1252"},
		{"undeclared utf8", []byte("<p>über</p>"), "text/html", "<p>über</p>", "utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc := ToUTF8(tt.body, tt.contentType)
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, tt.encoding, enc)
		})
	}
}

func TestExtract_LegacyEncoding(t *testing.T) {
	body := []byte("<html><head><title>Caf\xe9</title></head><body><p>cr\xe8me br\xfbl\xe9e</p></body></html>")

	doc, err := Extract(body, "text/html; charset=ISO-8859-1", "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Café", doc.Title)
	assert.Contains(t, doc.Text, "crème brûlée")
}
