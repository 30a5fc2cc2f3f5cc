package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/spigell/prospector/internal/leads"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	answerPrefixes = []string{
		"company name:",
		"company:",
		"person name:",
		"person:",
		"full name:",
		"name:",
		"email:",
		"answer:",
	}

	// answers meaning the model found nothing.
	noAnswer = map[string]bool{
		"":              true,
		"none":          true,
		"n/a":           true,
		"unknown":       true,
		"null":          true,
		"not found":     true,
		"not mentioned": true,
	}
)

// ExtractJSON strips markdown code fences around a model answer.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// ParseList decodes a json array of strings, tolerating fences and prose
// around the array.
func ParseList(raw string) ([]string, error) {
	cleaned := ExtractJSON(raw)
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no json array in answer")
	}

	var items []any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("parse json array: %w", err)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

// cleanAnswer reduces a short model answer to its first meaningful line
// without labels, quotes or markdown emphasis.
func cleanAnswer(raw string) string {
	raw = ExtractJSON(raw)

	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	lower := strings.ToLower(line)
	for _, prefix := range answerPrefixes {
		if strings.HasPrefix(lower, prefix) {
			line = strings.TrimSpace(line[len(prefix):])
			break
		}
	}

	line = strings.Trim(line, "\"'`*_ ")
	if noAnswer[strings.ToLower(strings.TrimSuffix(line, "."))] {
		return ""
	}
	return line
}

// parseEmail takes the last line mentioning an address and validates it.
func parseEmail(raw string) (string, bool) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "@") {
			continue
		}

		for _, field := range strings.Fields(line) {
			if !strings.Contains(field, "@") {
				continue
			}
			candidate := strings.Trim(field, "\"'`*<>()[],;.:")
			if emailPattern.MatchString(candidate) {
				return strings.ToLower(candidate), true
			}
		}
		return "", false
	}
	return "", false
}

// normalizeDate renders a loosely formatted publication date as YYYY-MM-DD,
// falling back to today.
func normalizeDate(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.Format(leads.DateLayout)
		}
	}
	return now.Format(leads.DateLayout)
}

// Relevance scores content against keywords. Coverage is the share of
// keywords present, case-insensitively; every occurrence adds 0.1, up to 0.3.
func Relevance(content string, keywords []string) float64 {
	if strings.TrimSpace(content) == "" {
		return 0
	}

	lower := strings.ToLower(content)
	seen := make(map[string]bool, len(keywords))
	total, present, occurrences := 0, 0, 0

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		total++

		if n := strings.Count(lower, kw); n > 0 {
			present++
			occurrences += n
		}
	}

	if total == 0 {
		return 0
	}

	coverage := min(1, float64(present)/float64(total))
	bonus := min(0.3, 0.1*float64(occurrences))
	return min(1, coverage+bonus)
}
