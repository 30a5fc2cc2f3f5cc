package outreach

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Summary counts drafts for reporting.
type Summary struct {
	Total       int         `json:"total"`
	NeedsReview int         `json:"needs_review"`
	BySignal    map[int]int `json:"by_signal"`
}

func Summarize(drafts []Draft) Summary {
	s := Summary{Total: len(drafts), BySignal: make(map[int]int)}
	for _, d := range drafts {
		if d.NeedsReview {
			s.NeedsReview++
		}
		s.BySignal[d.SignalType]++
	}
	return s
}

// Text renders the draft as a plain message with headers.
func (d Draft) Text() string {
	to := d.To
	if to == "" {
		to = "(needs review)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\n", to)
	fmt.Fprintf(&b, "Subject: %s\n\n", d.Subject)
	b.WriteString(d.Body)
	b.WriteString("\n")
	return b.String()
}

// WriteDir writes one text file per draft plus drafts.json and returns the written paths.
func WriteDir(dir string, drafts []Draft) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create drafts dir: %w", err)
	}

	paths := make([]string, 0, len(drafts)+1)
	for i, d := range drafts {
		path := filepath.Join(dir, fmt.Sprintf("%03d-%s.txt", i+1, slug(d.Company)))
		if err := os.WriteFile(path, []byte(d.Text()), 0o644); err != nil {
			return paths, fmt.Errorf("write draft %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	data, err := json.MarshalIndent(drafts, "", "  ")
	if err != nil {
		return paths, err
	}
	index := filepath.Join(dir, "drafts.json")
	if err := os.WriteFile(index, data, 0o644); err != nil {
		return paths, fmt.Errorf("write draft index: %w", err)
	}
	return append(paths, index), nil
}

func slug(s string) string {
	s = strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if s == "" {
		return "draft"
	}
	return s
}
