package searxng

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/prospector/internal/search"
)

func TestFetchPages(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "news", r.URL.Query().Get("categories"))
		pages = append(pages, r.URL.Query().Get("pageno"))
		if r.URL.Query().Get("pageno") == "1" {
			_, _ = w.Write([]byte(`{"query":"q","results":[{"title":"Acme hires CHRO","url":"https://www.forbes.com/acme","content":"snippet","publishedDate":"2026-10-02T10:00:00"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"query":"q","results":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "en", time.Second)

	first, err := c.Fetch(context.Background(), "q", "")
	require.NoError(t, err)
	require.Len(t, first.Articles, 1)
	assert.Equal(t, "forbes.com", first.Articles[0].Source)
	assert.Equal(t, "snippet", first.Articles[0].Snippet)
	assert.Equal(t, "2", first.Next)

	second, err := c.Fetch(context.Background(), "q", first.Next)
	require.NoError(t, err)
	assert.Empty(t, second.Articles)
	assert.Empty(t, second.Next)
	assert.Equal(t, []string{"1", "2"}, pages)
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Fetch(context.Background(), "q", "")

	var status *search.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.Code)
}

func TestFetchRejectsBadCursor(t *testing.T) {
	_, err := New("http://localhost", "", time.Second).Fetch(context.Background(), "q", "abc")
	assert.Error(t, err)
}
