// Package newsdata is a search pager for the NewsData.io latest news endpoint.
package newsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/search"
)

const (
	apiURL          = "https://newsdata.io/api/1/latest"
	statusSuccess   = "success"
	paidPlanContent = "ONLY AVAILABLE IN PAID PLANS"
	maxErrorBody    = 512
)

type Client struct {
	APIURL     string
	HTTPClient *http.Client
	apiKey     string
	language   string
	logger     *zap.Logger
}

func New(apiKey, language string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		APIURL:     apiURL,
		HTTPClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		language:   language,
		logger:     logger,
	}
}

func (c *Client) Name() string { return "newsdata" }

type response struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Results      any    `json:"results"`
	NextPage     string `json:"nextPage"`
}

type item struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	PubDate     string   `json:"pubDate"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	Keywords    []string `json:"keywords"`
	Creator     []string `json:"creator"`
	Category    []string `json:"category"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Fetch requests one page. The cursor is the nextPage token of the previous page.
func (c *Client) Fetch(ctx context.Context, query, cursor string) (search.Page, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("q", query)
	if c.language != "" {
		q.Set("language", c.language)
	}
	if cursor != "" {
		q.Set("page", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL, nil)
	if err != nil {
		return search.Page{}, err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("make request", zap.String("query", query), zap.String("page", cursor))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return search.Page{}, fmt.Errorf("newsdata request: %w", redact(err, c.APIURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return search.Page{}, &search.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return search.Page{}, fmt.Errorf("decoding newsdata response: %w", err)
	}

	return decodePage(raw)
}

// redact drops the request url, which carries the api key, from transport errors.
func redact(err error, endpoint string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: endpoint, Err: urlErr.Err}
	}
	return err
}

func decodePage(raw map[string]any) (search.Page, error) {
	var r response
	if err := decode(raw, &r); err != nil {
		return search.Page{}, fmt.Errorf("decoding newsdata envelope: %w", err)
	}

	if r.Status != statusSuccess {
		var apiErr apiError
		_ = decode(r.Results, &apiErr)
		return search.Page{}, fmt.Errorf("%w: newsdata status %q: %s %s", search.ErrProvider, r.Status, apiErr.Code, apiErr.Message)
	}

	var items []item
	if err := decode(r.Results, &items); err != nil {
		return search.Page{}, fmt.Errorf("decoding newsdata results: %w", err)
	}

	articles := make([]leads.Article, 0, len(items))
	for _, it := range items {
		articles = append(articles, it.article())
	}

	return search.Page{Articles: articles, Next: strings.TrimSpace(r.NextPage)}, nil
}

func (it item) article() leads.Article {
	source := it.SourceName
	if source == "" {
		source = it.SourceID
	}
	content := strings.TrimSpace(it.Content)
	if strings.EqualFold(content, paidPlanContent) {
		content = ""
	}
	return leads.Article{
		URL:         strings.TrimSpace(it.Link),
		Title:       strings.TrimSpace(it.Title),
		Snippet:     strings.TrimSpace(it.Description),
		Source:      source,
		Content:     content,
		PublishedAt: it.PubDate,
		Keywords:    it.Keywords,
		Categories:  it.Category,
		Creators:    it.Creator,
	}
}

// decode tolerates the loose typing of the API: nulls, scalars in place of lists
// and numbers in place of strings.
func decode(input, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
