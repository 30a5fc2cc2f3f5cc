package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// UnknownPerson marks an opportunity without an identified contact.
	UnknownPerson = "Unknown"
	// EmailNeedsValidation marks an opportunity without a usable email guess.
	EmailNeedsValidation = "Manual validation needed"
	// DateLayout is the normalized publication date format.
	DateLayout = "2006-01-02"

	maxContentLength = 1000
)

// ErrInvalidOpportunity is returned when opportunity fields break the record invariants.
var ErrInvalidOpportunity = errors.New("invalid opportunity")

var validate = validator.New()

// OpportunityParams holds the raw values an Opportunity is built from.
type OpportunityParams struct {
	Title          string  `validate:"required"`
	Company        string  `validate:"required"`
	Person         string
	Email          string
	URL            string
	Date           string
	Content        string
	RelevanceScore float64 `validate:"gte=0,lte=1"`
	SignalType     int     `validate:"min=1,max=6"`
	Source         string
}

// Opportunity is a validated candidate lead. It is immutable after construction.
type Opportunity struct {
	title          string
	company        string
	person         string
	email          string
	url            string
	date           string
	content        string
	relevanceScore float64
	signalType     int
	source         string
}

// NewOpportunity validates params and builds an Opportunity. Person and email
// default to their sentinels and content is truncated to the stored length.
func NewOpportunity(p OpportunityParams) (Opportunity, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Company = strings.TrimSpace(p.Company)
	p.Person = strings.TrimSpace(p.Person)
	p.Email = strings.TrimSpace(p.Email)

	if err := validate.Struct(p); err != nil {
		return Opportunity{}, fmt.Errorf("%w: %v", ErrInvalidOpportunity, err)
	}

	if p.Person == "" {
		p.Person = UnknownPerson
	}
	if p.Email == "" {
		p.Email = EmailNeedsValidation
	}

	content := []rune(p.Content)
	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}

	return Opportunity{
		title:          p.Title,
		company:        p.Company,
		person:         p.Person,
		email:          p.Email,
		url:            p.URL,
		date:           p.Date,
		content:        string(content),
		relevanceScore: p.RelevanceScore,
		signalType:     p.SignalType,
		source:         p.Source,
	}, nil
}

func (o Opportunity) Title() string           { return o.title }
func (o Opportunity) Company() string         { return o.company }
func (o Opportunity) Person() string          { return o.person }
func (o Opportunity) Email() string           { return o.email }
func (o Opportunity) URL() string             { return o.url }
func (o Opportunity) Date() string            { return o.date }
func (o Opportunity) Content() string         { return o.content }
func (o Opportunity) RelevanceScore() float64 { return o.relevanceScore }
func (o Opportunity) SignalType() int         { return o.signalType }
func (o Opportunity) Source() string          { return o.source }

// HasPerson reports whether a contact was identified.
func (o Opportunity) HasPerson() bool {
	return o.person != "" && !strings.EqualFold(o.person, UnknownPerson)
}

// HasEmail reports whether the email field holds a guess rather than the sentinel.
func (o Opportunity) HasEmail() bool {
	return o.email != "" && o.email != EmailNeedsValidation
}

// DedupeKey is the lower-cased (company, person) pair used for de-duplication.
func (o Opportunity) DedupeKey() string {
	return strings.ToLower(o.company) + "\x00" + strings.ToLower(o.person)
}

// PublishedAt parses the normalized date. The zero time is returned when it cannot be parsed.
func (o Opportunity) PublishedAt() time.Time {
	t, err := time.Parse(DateLayout, o.date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CSVHeader is the canonical column order of the tabular projection.
var CSVHeader = []string{"Title", "Company", "Person", "Email", "URL", "Date", "Relevance Score", "Signal Type", "Source"}

// CSVRecord returns the opportunity in CSVHeader order.
func (o Opportunity) CSVRecord() []string {
	return []string{
		o.title,
		o.company,
		o.person,
		o.email,
		o.url,
		o.date,
		strconv.FormatFloat(o.relevanceScore, 'g', -1, 64),
		strconv.Itoa(o.signalType),
		o.source,
	}
}

// Row is the flat key-value shape handed to persistence sinks.
type Row struct {
	Company        string    `json:"company"`
	Person         string    `json:"person"`
	Email          string    `json:"email"`
	RelevanceScore float64   `json:"relevance_score"`
	SignalType     int       `json:"signal_type"`
	SourceURL      string    `json:"source_url"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
	Timestamp      time.Time `json:"timestamp"`
	RunID          string    `json:"run_id,omitempty"`
}

const (
	StatusNew         = "new"
	StatusNeedsReview = "needs_review"
)

// Row projects the opportunity into a persistence row stamped with ts.
func (o Opportunity) Row(ts time.Time) Row {
	status := StatusNew
	notes := o.title
	if !o.HasEmail() {
		status = StatusNeedsReview
	}
	return Row{
		Company:        o.company,
		Person:         o.person,
		Email:          o.email,
		RelevanceScore: o.relevanceScore,
		SignalType:     o.signalType,
		SourceURL:      o.url,
		Status:         status,
		Notes:          notes,
		Timestamp:      ts,
	}
}

type opportunityJSON struct {
	Title          string  `json:"title"`
	Company        string  `json:"company"`
	Person         string  `json:"person"`
	Email          string  `json:"email"`
	URL            string  `json:"url"`
	Date           string  `json:"date"`
	Content        string  `json:"content,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	SignalType     int     `json:"signal_type"`
	Source         string  `json:"source"`
}

func (o Opportunity) MarshalJSON() ([]byte, error) {
	return json.Marshal(opportunityJSON{
		Title:          o.title,
		Company:        o.company,
		Person:         o.person,
		Email:          o.email,
		URL:            o.url,
		Date:           o.date,
		Content:        o.content,
		RelevanceScore: o.relevanceScore,
		SignalType:     o.signalType,
		Source:         o.source,
	})
}
