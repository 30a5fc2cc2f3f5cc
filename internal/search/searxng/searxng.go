// Package searxng is a search pager for a self-hosted SearXNG instance.
package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/search"
)

const maxErrorBody = 512

type Client struct {
	baseURL    string
	language   string
	HTTPClient *http.Client
}

func New(baseURL, language string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "searxng" }

type response struct {
	Query   string   `json:"query"`
	Results []result `json:"results"`
}

type result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Engine        string  `json:"engine"`
	PublishedDate string  `json:"publishedDate"`
	Score         float64 `json:"score"`
}

// Fetch requests one page of news results. The cursor is the page number; an
// empty cursor is the first page.
func (c *Client) Fetch(ctx context.Context, query, cursor string) (search.Page, error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 {
			return search.Page{}, fmt.Errorf("invalid searxng page cursor %q", cursor)
		}
		page = n
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return search.Page{}, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/search"

	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("categories", "news")
	q.Set("pageno", strconv.Itoa(page))
	if c.language != "" {
		q.Set("language", c.language)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return search.Page{}, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return search.Page{}, fmt.Errorf("searxng request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return search.Page{}, &search.StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded response
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return search.Page{}, fmt.Errorf("decode response failed: %w", err)
	}

	articles := make([]leads.Article, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		articles = append(articles, leads.Article{
			URL:         strings.TrimSpace(r.URL),
			Title:       strings.TrimSpace(r.Title),
			Snippet:     strings.TrimSpace(r.Content),
			Source:      search.NormalizeDomain(r.URL),
			PublishedAt: r.PublishedDate,
		})
	}

	next := ""
	if len(articles) > 0 {
		next = strconv.Itoa(page + 1)
	}
	return search.Page{Articles: articles, Next: next}, nil
}
