// Package verify checks guessed email addresses against the Hunter.io email
// verifier. Results are advisory only.
package verify

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

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/logger"
)

const (
	defaultBaseURL = "https://api.hunter.io/v2"
	maxErrorBody   = 512

	ResultDeliverable   = "deliverable"
	ResultUndeliverable = "undeliverable"
	ResultRisky         = "risky"
)

var ErrNoAPIKey = errors.New("hunter api key is not configured")

// Result is the verifier verdict for one address.
type Result struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Result string `json:"result"`
	Score  int    `json:"score"`
}

func (r Result) Deliverable() bool {
	return r.Result == ResultDeliverable
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

func New(apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		logger:     logger.Component(log, "verify"),
	}
}

type response struct {
	Data   Result `json:"data"`
	Errors []struct {
		ID      string `json:"id"`
		Code    int    `json:"code"`
		Details string `json:"details"`
	} `json:"errors"`
}

// Verify asks Hunter about email.
func (c *Client) Verify(ctx context.Context, email string) (Result, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Result{}, ErrNoAPIKey
	}

	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+"/email-verifier", nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request failed: %w", err)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("hunter request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read hunter response: %w", err)
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil && resp.StatusCode == http.StatusOK {
		return Result{}, fmt.Errorf("decode hunter response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		details := strings.TrimSpace(string(body))
		if len(details) > maxErrorBody {
			details = details[:maxErrorBody]
		}
		if len(decoded.Errors) > 0 {
			details = decoded.Errors[0].Details
		}
		return Result{}, fmt.Errorf("hunter bad status: %d: %s", resp.StatusCode, details)
	}

	if decoded.Data.Email == "" {
		decoded.Data.Email = email
	}

	c.logger.Debug("email verified",
		zap.String("email", email),
		zap.String("result", decoded.Data.Result),
		zap.String("status", decoded.Data.Status),
		zap.Int("score", decoded.Data.Score),
	)

	return decoded.Data, nil
}
