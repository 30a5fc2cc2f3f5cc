package leads

import (
	"encoding/json"
	"os"
	"strings"
	"time"
)

// Contacted is the history of companies that already received outreach.
type Contacted struct {
	Items []*ContactedCompany
}

type ContactedCompany struct {
	Company     string
	Person      string
	Email       string
	URL         string
	ContactedAt time.Time
}

// ToContacted records every opportunity as contacted at now.
func (o *Opportunities) ToContacted(now time.Time) *Contacted {
	contacted := &Contacted{}
	for _, item := range o.Items {
		contacted.Items = append(contacted.Items, &ContactedCompany{
			Company:     item.Company(),
			Person:      item.Person(),
			Email:       item.Email(),
			URL:         item.URL(),
			ContactedAt: now.UTC(),
		})
	}
	return contacted
}

// ContactedFromFile reads a history file. An empty file is an empty history.
func ContactedFromFile(path string) (*Contacted, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &Contacted{}, nil
	}

	var contacted Contacted
	if err := json.NewDecoder(file).Decode(&contacted); err != nil {
		return nil, err
	}
	return &contacted, nil
}

func (c *Contacted) Append(s *Contacted) {
	c.Items = append(c.Items, s.Items...)
}

// Companies returns the distinct company names of the history.
func (c *Contacted) Companies() []string {
	seen := make(map[string]struct{}, len(c.Items))
	names := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		key := strings.ToLower(strings.TrimSpace(item.Company))
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, item.Company)
	}
	return names
}

func (c *Contacted) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
