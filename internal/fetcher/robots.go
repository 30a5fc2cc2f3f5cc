package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBytes = 512 << 10

// robots caches robots.txt rules per host. A nil entry permits everything.
type robots struct {
	mu     sync.Mutex
	client *http.Client
	agent  string
	hosts  map[string]*robotstxt.Group
	logger *zap.Logger
}

func newRobots(client *http.Client, agent string, logger *zap.Logger) *robots {
	return &robots{
		client: client,
		agent:  agent,
		hosts:  make(map[string]*robotstxt.Group),
		logger: logger,
	}
}

// allowed reports whether the agent may fetch u. Any failure to obtain the
// rules permits the fetch.
func (r *robots) allowed(ctx context.Context, u *url.URL) bool {
	key := u.Scheme + "://" + u.Host

	r.mu.Lock()
	group, ok := r.hosts[key]
	r.mu.Unlock()

	if !ok {
		group = r.load(ctx, key)
		r.mu.Lock()
		r.hosts[key] = group
		r.mu.Unlock()
	}

	if group == nil {
		return true
	}
	return group.Test(u.RequestURI())
}

func (r *robots) load(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, permitting", zap.String("host", origin), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("robots.txt not served, permitting", zap.String("host", origin), zap.Int("status", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		r.logger.Debug("robots.txt unparsable, permitting", zap.String("host", origin), zap.Error(err))
		return nil
	}
	return data.FindGroup(r.agent)
}
