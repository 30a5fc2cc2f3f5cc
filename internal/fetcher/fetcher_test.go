package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/config"
)

var longParagraph = strings.Repeat("Acme Corp appointed a new CHRO to lead employee engagement. ", 5)

func articleHTML(title string) string {
	head := ""
	if title != "" {
		head = "<title>" + title + "</title>"
	}
	return `<html><head>` + head + `<style>body{color:red}</style></head><body>
<script>var tracking = "should not appear";</script>
<noscript>enable javascript</noscript>
<h1>Acme   news</h1>
<p>` + longParagraph + `</p>
</body></html>`
}

type site struct {
	robots     string
	robotsCode int
	pages      map[string]func(w http.ResponseWriter)
	hits       atomic.Int32
	robotsHits atomic.Int32
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/robots.txt" {
		s.robotsHits.Add(1)
		code := s.robotsCode
		if code == 0 {
			code = http.StatusNotFound
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(s.robots))
		return
	}
	s.hits.Add(1)
	h, ok := s.pages[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w)
}

func html(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func newTestFetcher(opts Options) *Fetcher {
	return New(opts, zap.NewNop())
}

func TestFetchExtractsVisibleText(t *testing.T) {
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": html(articleHTML("Acme hires CHRO"))}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	page, ok := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/a")

	require.True(t, ok)
	assert.Equal(t, "Acme hires CHRO", page.Title)
	assert.Equal(t, srv.URL+"/a", page.URL)
	assert.True(t, strings.HasPrefix(page.Content, "Acme news Acme Corp appointed"), page.Content)
	assert.NotContains(t, page.Content, "tracking")
	assert.NotContains(t, page.Content, "enable javascript")
	assert.NotContains(t, page.Content, "color:red")
	assert.NotContains(t, page.Content, "  ")
}

func TestFetchMissingTitle(t *testing.T) {
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": html(articleHTML(""))}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	page, ok := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/a")

	require.True(t, ok)
	assert.Equal(t, "No title", page.Title)
}

func TestFetchShortContentIsNotRetried(t *testing.T) {
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": html("<html><title>t</title><body>too short</body></html>")}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, ok := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/a")

	assert.False(t, ok)
	assert.Equal(t, int32(1), s.hits.Load())
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": func(w http.ResponseWriter) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		html(articleHTML("ok"))(w)
	}}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	page, ok := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/a")

	require.True(t, ok)
	assert.Equal(t, "ok", page.Title)
	assert.Equal(t, int32(3), s.hits.Load())
}

func TestFetchRetriesClientTimeout(t *testing.T) {
	var calls atomic.Int32
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": func(w http.ResponseWriter) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		html(articleHTML("slow start"))(w)
	}}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	f := newTestFetcher(Options{Timeout: 100 * time.Millisecond, Attempts: 3, RetryDelay: time.Millisecond})
	page, ok := f.Fetch(context.Background(), srv.URL+"/a")

	require.True(t, ok)
	assert.Equal(t, "slow start", page.Title)
	assert.GreaterOrEqual(t, s.hits.Load(), int32(2))
}

func TestTransientTimeouts(t *testing.T) {
	timeout := &url.Error{Op: "Get", URL: "https://hrdive.com/a", Err: timeoutError{}}
	assert.True(t, transient(fmt.Errorf("request: %w", timeout)))
	assert.False(t, transient(fmt.Errorf("request: %w", context.Canceled)))
	assert.False(t, transient(&statusError{code: http.StatusNotFound}))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "client timeout exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
func (timeoutError) Unwrap() error   { return context.DeadlineExceeded }

func TestFetchGivesUpAfterAttempts(t *testing.T) {
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusTooManyRequests)
	}}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, ok := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/a")

	assert.False(t, ok)
	assert.Equal(t, int32(3), s.hits.Load())
}

func TestFetchClientErrorIsPermanent(t *testing.T) {
	s := &site{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, ok := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/missing")

	assert.False(t, ok)
	assert.Equal(t, int32(1), s.hits.Load())
}

func TestFetchInvalidURL(t *testing.T) {
	f := newTestFetcher(Options{})
	for _, raw := range []string{"", "ftp://example.com/a", "not a url", "https://"} {
		_, ok := f.Fetch(context.Background(), raw)
		assert.False(t, ok, raw)
	}
}

func TestFetchRespectsRobots(t *testing.T) {
	s := &site{
		robots:     "User-agent: *\nDisallow: /private\n",
		robotsCode: http.StatusOK,
		pages: map[string]func(http.ResponseWriter){
			"/private/a": html(articleHTML("secret")),
			"/public/a":  html(articleHTML("public")),
		},
	}
	srv := httptest.NewServer(s)
	defer srv.Close()

	f := newTestFetcher(Options{RespectRobots: true})

	_, ok := f.Fetch(context.Background(), srv.URL+"/private/a")
	assert.False(t, ok)
	assert.Equal(t, int32(0), s.hits.Load())

	_, ok = f.Fetch(context.Background(), srv.URL+"/public/a")
	assert.True(t, ok)
	assert.Equal(t, int32(1), s.robotsHits.Load(), "robots rules are cached per host")
}

func TestFetchRobotsFailOpen(t *testing.T) {
	s := &site{
		robots:     "User-agent: *\nDisallow: /\n",
		robotsCode: http.StatusInternalServerError,
		pages:      map[string]func(http.ResponseWriter){"/a": html(articleHTML("t"))},
	}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, ok := newTestFetcher(Options{RespectRobots: true}).Fetch(context.Background(), srv.URL+"/a")

	assert.True(t, ok)
}

func TestFetchDecodesCharset(t *testing.T) {
	body := []byte("<html><title>Caf\xe9</title><body><p>" + longParagraph + "</p></body></html>")
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write(body)
	}}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	page, ok := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/a")

	require.True(t, ok)
	assert.Equal(t, "Café", page.Title)
}

func TestFetchUsesCache(t *testing.T) {
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": html(articleHTML("cached"))}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	cache, err := NewCache(t.TempDir(), time.Hour)
	require.NoError(t, err)
	f := newTestFetcher(Options{Cache: cache})

	first, ok := f.Fetch(context.Background(), srv.URL+"/a")
	require.True(t, ok)
	second, ok := f.Fetch(context.Background(), srv.URL+"/a")
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), s.hits.Load())
}

func TestFetchCacheKeyIgnoresSurroundingSpace(t *testing.T) {
	s := &site{pages: map[string]func(http.ResponseWriter){"/a": html(articleHTML("cached"))}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	cache, err := NewCache(t.TempDir(), time.Hour)
	require.NoError(t, err)
	f := newTestFetcher(Options{Cache: cache})

	_, ok := f.Fetch(context.Background(), "  "+srv.URL+"/a\n")
	require.True(t, ok)
	page, ok := f.Fetch(context.Background(), " "+srv.URL+"/a ")
	require.True(t, ok)

	assert.Equal(t, srv.URL+"/a", page.URL)
	assert.Equal(t, int32(1), s.hits.Load())
}

func TestCacheExpires(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	require.NoError(t, err)
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	page := Page{URL: "https://hrdive.com/a", Title: "t", Content: "c"}
	require.NoError(t, cache.Put(page))

	got, ok := cache.Get(page.URL)
	require.True(t, ok)
	assert.Equal(t, page, got)

	_, ok = cache.Get("https://hrdive.com/other")
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = cache.Get(page.URL)
	assert.False(t, ok)
}

func TestReadabilityExtractor(t *testing.T) {
	doc := `<html><head><title>Acme evaluates HR platforms</title></head><body>
<nav><a href="/">Home</a> <a href="/news">News</a></nav>
<article><h1>Acme evaluates HR platforms</h1>
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
</article>
<footer>Copyright</footer>
</body></html>`
	u, _ := url.Parse("https://www.hrdive.com/news/acme")

	title, text, err := Readability{}.Extract(strings.NewReader(doc), u)

	require.NoError(t, err)
	assert.Contains(t, title, "Acme evaluates HR platforms")
	assert.Contains(t, text, "employee engagement")
}

func TestNewExtractor(t *testing.T) {
	for name, want := range map[string]string{"": "goquery", "goquery": "goquery", "Readability": "readability"} {
		ex, err := NewExtractor(name)
		require.NoError(t, err)
		assert.Equal(t, want, ex.Name())
	}
	_, err := NewExtractor("lynx")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := *config.Default().Fetcher
	cfg.Extractor = "readability"
	cfg.CacheDir = t.TempDir()

	opts, err := FromConfig(&cfg, "agent/1.0")

	require.NoError(t, err)
	assert.Equal(t, "readability", opts.Extractor.Name())
	assert.NotNil(t, opts.Cache)
	assert.Equal(t, 3, opts.Attempts)
	assert.Equal(t, "agent/1.0", opts.UserAgent)
	assert.True(t, opts.RespectRobots)
}
