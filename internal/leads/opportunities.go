package leads

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	highQualityScore = 0.8
	recentWindow     = 30 * 24 * time.Hour
)

type Opportunities struct {
	Items []Opportunity
}

func NewOpportunities(items ...Opportunity) *Opportunities {
	return &Opportunities{Items: append([]Opportunity(nil), items...)}
}

func (o *Opportunities) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Items)
}

func (o *Opportunities) Append(items ...Opportunity) {
	o.Items = append(o.Items, items...)
}

// Dedupe keeps one opportunity per (company, person) pair. The highest relevance
// score wins; on equal scores the earliest item is kept. Survivors stay at the
// position where their key was first seen. Dropped items are returned.
func (o *Opportunities) Dedupe() []Opportunity {
	index := make(map[string]int, len(o.Items))
	kept := make([]Opportunity, 0, len(o.Items))
	var dropped []Opportunity

	for _, item := range o.Items {
		key := item.DedupeKey()
		pos, seen := index[key]
		if !seen {
			index[key] = len(kept)
			kept = append(kept, item)
			continue
		}
		if item.RelevanceScore() > kept[pos].RelevanceScore() {
			dropped = append(dropped, kept[pos])
			kept[pos] = item
			continue
		}
		dropped = append(dropped, item)
	}

	o.Items = kept
	return dropped
}

// Rank sorts by relevance score descending. Equal scores keep their relative order.
func (o *Opportunities) Rank() {
	sort.SliceStable(o.Items, func(i, j int) bool {
		return o.Items[i].RelevanceScore() > o.Items[j].RelevanceScore()
	})
}

// Exclude drops opportunities for which drop returns true and returns them.
func (o *Opportunities) Exclude(drop func(Opportunity) bool) []Opportunity {
	kept := o.Items[:0:0]
	var dropped []Opportunity
	for _, item := range o.Items {
		if drop(item) {
			dropped = append(dropped, item)
			continue
		}
		kept = append(kept, item)
	}
	o.Items = kept
	return dropped
}

// ExcludeCompanies drops opportunities whose company matches one of names, case-insensitively.
func (o *Opportunities) ExcludeCompanies(names []string) []Opportunity {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			set[name] = struct{}{}
		}
	}
	return o.Exclude(func(item Opportunity) bool {
		_, found := set[strings.ToLower(item.Company())]
		return found
	})
}

// Companies returns the distinct company names in order of appearance.
func (o *Opportunities) Companies() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, item := range o.Items {
		key := strings.ToLower(item.Company())
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, item.Company())
	}
	return names
}

// BySignal groups the opportunities by signal type, preserving order inside each group.
func (o *Opportunities) BySignal() map[int][]Opportunity {
	groups := make(map[int][]Opportunity)
	for _, item := range o.Items {
		groups[item.SignalType()] = append(groups[item.SignalType()], item)
	}
	return groups
}

// ReportBySignal builds a readable summary keyed by signal name.
func (o *Opportunities) ReportBySignal(signals Signals) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range o.Items {
		name := signals.Name(item.SignalType())
		if name == "" {
			name = "unknown"
		}
		key := fmt.Sprintf("%s (%d)", name, item.SignalType())
		report[key] = append(report[key], map[string]string{
			"company": item.Company(),
			"person":  item.Person(),
			"email":   item.Email(),
			"score":   strconv.FormatFloat(item.RelevanceScore(), 'f', 2, 64),
			"url":     item.URL(),
		})
	}
	return report
}

// Quality summarizes a set of opportunities.
type Quality struct {
	Total             int     `json:"total"`
	AverageScore      float64 `json:"average_score"`
	HighQuality       int     `json:"high_quality"`
	EmailsFound       int     `json:"emails_found"`
	Recent            int     `json:"recent"`
	QualityPercentage float64 `json:"quality_percentage"`
}

// Quality computes metrics relative to now.
func (o *Opportunities) Quality(now time.Time) Quality {
	q := Quality{Total: o.Len()}
	if q.Total == 0 {
		return q
	}

	var sum float64
	for _, item := range o.Items {
		sum += item.RelevanceScore()
		if item.RelevanceScore() >= highQualityScore {
			q.HighQuality++
		}
		if item.HasEmail() {
			q.EmailsFound++
		}
		if published := item.PublishedAt(); !published.IsZero() && now.Sub(published) <= recentWindow {
			q.Recent++
		}
	}

	q.AverageScore = round(sum/float64(q.Total), 3)
	q.QualityPercentage = round(float64(q.HighQuality)/float64(q.Total)*100, 1)
	return q
}

func (o *Opportunities) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "opportunities_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(o.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
