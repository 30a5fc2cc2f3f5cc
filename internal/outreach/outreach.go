// Package outreach renders email drafts for accepted opportunities.
package outreach

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spigell/prospector/internal/leads"
)

//go:embed templates.yaml
var defaultTemplates []byte

const (
	PlaceholderCompany       = "company_name"
	PlaceholderPerson        = "person_name"
	PlaceholderSenderName    = "sender_name"
	PlaceholderSenderTitle   = "sender_title"
	PlaceholderSenderCompany = "sender_company"
	PlaceholderSignal        = "signal_name"
)

var known = map[string]bool{
	PlaceholderCompany:       true,
	PlaceholderPerson:        true,
	PlaceholderSenderName:    true,
	PlaceholderSenderTitle:   true,
	PlaceholderSenderCompany: true,
	PlaceholderSignal:        true,
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

var ErrTemplateNotFound = errors.New("template not found")

// Sender identifies who signs the drafts.
type Sender struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Company string `yaml:"company"`
}

// Template is one draft layout. Only declared placeholders may be used.
type Template struct {
	Placeholders []string `yaml:"placeholders"`
	Subject      string   `yaml:"subject"`
	Opening      string   `yaml:"opening"`
	Body         string   `yaml:"body"`
	Closing      string   `yaml:"closing"`
}

// Set is a validated collection of templates keyed by template id.
type Set struct {
	Sender    Sender              `yaml:"sender"`
	Defaults  map[string]string   `yaml:"defaults"`
	Fallback  string              `yaml:"fallback"`
	Templates map[string]Template `yaml:"templates"`
}

// Draft is a rendered email that is ready for review. It is never sent.
type Draft struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Company     string `json:"company"`
	Person      string `json:"person"`
	SignalType  int    `json:"signal_type"`
	Template    string `json:"template"`
	NeedsReview bool   `json:"needs_review"`
}

// Default returns the embedded template set.
func Default() (*Set, error) {
	return Parse(defaultTemplates)
}

// FromFile loads a template set from a yaml file.
func FromFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes and validates a template set.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// Validate checks every template for required parts and undeclared placeholders.
func (s *Set) Validate() error {
	if len(s.Templates) == 0 {
		return errors.New("no templates defined")
	}
	if s.Fallback != "" {
		if _, ok := s.Templates[s.Fallback]; !ok {
			return fmt.Errorf("fallback %q: %w", s.Fallback, ErrTemplateNotFound)
		}
	}

	for _, name := range s.Names() {
		if err := s.Templates[name].validate(); err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
	}
	return nil
}

func (t Template) validate() error {
	declared := make(map[string]bool, len(t.Placeholders))
	for _, p := range t.Placeholders {
		if !known[p] {
			return fmt.Errorf("unknown placeholder %q declared", p)
		}
		declared[p] = true
	}

	for part, text := range t.parts() {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%s is empty", part)
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			if !declared[m[1]] {
				return fmt.Errorf("%s uses undeclared placeholder %q", part, m[1])
			}
		}
	}
	return nil
}

func (t Template) parts() map[string]string {
	return map[string]string{
		"subject": t.Subject,
		"opening": t.Opening,
		"body":    t.Body,
		"closing": t.Closing,
	}
}

// Names returns the template ids in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Templates))
	for name := range s.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithSender overrides non-empty sender fields.
func (s *Set) WithSender(sender Sender) *Set {
	if sender.Name != "" {
		s.Sender.Name = sender.Name
	}
	if sender.Title != "" {
		s.Sender.Title = sender.Title
	}
	if sender.Company != "" {
		s.Sender.Company = sender.Company
	}
	return s
}

// Lookup returns the template with the given id, or the fallback template.
func (s *Set) Lookup(id string) (string, Template, error) {
	if t, ok := s.Templates[id]; ok {
		return id, t, nil
	}
	if t, ok := s.Templates[s.Fallback]; ok {
		return s.Fallback, t, nil
	}
	return "", Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

// Render fills the template of the opportunity signal. Missing values fall
// back to the set defaults.
func (s *Set) Render(opp leads.Opportunity, signals leads.Signals) (Draft, error) {
	signal, _ := signals.Lookup(opp.SignalType())

	name, t, err := s.Lookup(signal.TemplateID)
	if err != nil {
		return Draft{}, err
	}

	vars := map[string]string{
		PlaceholderCompany:       opp.Company(),
		PlaceholderSenderName:    s.Sender.Name,
		PlaceholderSenderTitle:   s.Sender.Title,
		PlaceholderSenderCompany: s.Sender.Company,
		PlaceholderSignal:        signal.Name,
	}
	if opp.HasPerson() {
		vars[PlaceholderPerson] = opp.Person()
	}

	render := func(text string) string {
		return fill(text, vars, s.Defaults)
	}

	draft := Draft{
		Subject:    render(t.Subject),
		Body:       strings.Join([]string{render(t.Opening), render(t.Body), render(t.Closing)}, "\n\n"),
		Company:    opp.Company(),
		Person:     opp.Person(),
		SignalType: opp.SignalType(),
		Template:   name,
	}
	if opp.HasEmail() {
		draft.To = opp.Email()
	} else {
		draft.NeedsReview = true
	}
	return draft, nil
}

func fill(text string, vars, defaults map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		if v := strings.TrimSpace(vars[key]); v != "" {
			return v
		}
		return defaults[key]
	})
}

// RenderAll renders a draft for each opportunity in order.
func (s *Set) RenderAll(o *leads.Opportunities, signals leads.Signals) ([]Draft, error) {
	drafts := make([]Draft, 0, o.Len())
	for _, item := range o.Items {
		d, err := s.Render(item, signals)
		if err != nil {
			return nil, fmt.Errorf("render draft for %s: %w", item.Company(), err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
