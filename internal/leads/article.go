package leads

import "strings"

// Article is a normalized search result. The URL is the key within a run.
type Article struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet,omitempty"`
	Source      string   `json:"source,omitempty"`
	Content     string   `json:"content,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Creators    []string `json:"creators,omitempty"`
}

// Usable reports whether the article carries the fields needed for extraction.
func (a Article) Usable() bool {
	return strings.TrimSpace(a.URL) != "" && strings.TrimSpace(a.Title) != ""
}
