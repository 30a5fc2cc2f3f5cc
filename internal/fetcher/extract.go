package fetcher

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const noTitle = "No title"

// Extractor turns a decoded html document into a title and a single text blob.
type Extractor interface {
	Name() string
	Extract(r io.Reader, pageURL *url.URL) (title, text string, err error)
}

// NewExtractor returns the extractor registered under name.
func NewExtractor(name string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "goquery":
		return Goquery{}, nil
	case "readability":
		return Readability{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor: %s", name)
	}
}

// Goquery keeps every visible text node of the document.
type Goquery struct{}

func (Goquery) Name() string { return "goquery" }

func (Goquery) Extract(r io.Reader, _ *url.URL) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	title := collapse(doc.Find("title").First().Text())

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}

	return title, collapse(text), nil
}

// Readability keeps the main article body only.
type Readability struct{}

func (Readability) Name() string { return "readability" }

func (Readability) Extract(r io.Reader, pageURL *url.URL) (string, string, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", "", fmt.Errorf("readability: %w", err)
	}
	return collapse(article.Title), collapse(article.TextContent), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
