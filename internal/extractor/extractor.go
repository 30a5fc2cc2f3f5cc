// Package extractor turns search articles into validated opportunities.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/fetcher"
	"github.com/spigell/prospector/internal/inference"
	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/logger"
	"github.com/spigell/prospector/internal/utils"
	"github.com/spigell/prospector/internal/verify"
)

//go:embed company.md
var companyPrompt string

//go:embed person.md
var personPrompt string

//go:embed email.md
var emailPrompt string

const (
	promptTextLimit = 500
	minPersonText   = 10

	DefaultMinRelevance = 0.7
)

const (
	StageInput      = "input"
	StageContent    = "content"
	StageCompany    = "company"
	StageRelevance  = "relevance"
	StageValidation = "validation"
)

// Rejection explains why an article did not become an opportunity.
type Rejection struct {
	Stage  string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("article rejected at %s: %s", r.Stage, r.Reason)
}

func reject(stage, format string, args ...any) error {
	return &Rejection{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a Rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// Inferer answers prompts. It never fails; unavailable answers are fallback texts.
type Inferer interface {
	Infer(ctx context.Context, prompt, category string) string
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Page, bool)
}

type Verifier interface {
	Verify(ctx context.Context, email string) (verify.Result, error)
}

type Options struct {
	Keywords     []string
	MinRelevance float64
	Signals      leads.Signals
	Verifier     Verifier
	Now          func() time.Time
}

type Extractor struct {
	inferer      Inferer
	fetcher      Fetcher
	verifier     Verifier
	keywords     []string
	minRelevance float64
	signals      leads.Signals
	now          func() time.Time
	logger       *zap.Logger
}

func New(inferer Inferer, fetcher Fetcher, opts Options, log *zap.Logger) *Extractor {
	if opts.MinRelevance <= 0 {
		opts.MinRelevance = DefaultMinRelevance
	}
	if opts.Signals == nil {
		opts.Signals = leads.DefaultSignals()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Extractor{
		inferer:      inferer,
		fetcher:      fetcher,
		verifier:     opts.Verifier,
		keywords:     opts.Keywords,
		minRelevance: opts.MinRelevance,
		signals:      opts.Signals,
		now:          opts.Now,
		logger:       logger.Component(log, "extractor"),
	}
}

// Extract builds an opportunity from article for signalType. Any article that
// cannot be turned into a lead yields a *Rejection.
func (e *Extractor) Extract(ctx context.Context, article leads.Article, signalType int) (leads.Opportunity, error) {
	ctx, span := otel.Tracer("prospector/extractor").Start(ctx, "extractor.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("url", article.URL), attribute.Int("signal_type", signalType))

	log := e.logger.With(zap.String("url", article.URL), zap.Int(logger.FieldSignal, signalType))

	opp, err := e.extract(ctx, log, article, signalType)
	if err != nil {
		var r *Rejection
		if errors.As(err, &r) {
			span.SetAttributes(attribute.String("rejected_at", r.Stage))
			log.Debug("article rejected", zap.String("stage", r.Stage), zap.String("reason", r.Reason))
		} else {
			span.RecordError(err)
		}
		return leads.Opportunity{}, err
	}

	log.Info("opportunity extracted",
		zap.String("company", opp.Company()),
		zap.String("person", opp.Person()),
		zap.Float64("relevance", opp.RelevanceScore()),
	)
	return opp, nil
}

func (e *Extractor) extract(ctx context.Context, log *zap.Logger, article leads.Article, signalType int) (leads.Opportunity, error) {
	if !article.Usable() {
		return leads.Opportunity{}, reject(StageInput, "missing title or url")
	}

	content := strings.TrimSpace(article.Content)
	if content == "" {
		if e.fetcher == nil {
			return leads.Opportunity{}, reject(StageContent, "no content and no fetcher")
		}
		page, ok := e.fetcher.Fetch(ctx, article.URL)
		if !ok || strings.TrimSpace(page.Content) == "" {
			return leads.Opportunity{}, reject(StageContent, "page content unavailable")
		}
		content = page.Content
	}

	company := e.company(ctx, content)
	if company == "" {
		return leads.Opportunity{}, reject(StageCompany, "company not identified")
	}

	person := e.person(ctx, content)

	score := Relevance(content, e.keywords)
	threshold := e.signals.ThresholdFor(signalType, e.minRelevance)
	if score < threshold {
		return leads.Opportunity{}, reject(StageRelevance, "score %.2f below threshold %.2f", score, threshold)
	}

	email := ""
	if person != "" {
		email = e.email(ctx, log, company, person)
	}

	opp, err := leads.NewOpportunity(leads.OpportunityParams{
		Title:          article.Title,
		Company:        company,
		Person:         person,
		Email:          email,
		URL:            article.URL,
		Date:           normalizeDate(article.PublishedAt, e.now()),
		Content:        content,
		RelevanceScore: score,
		SignalType:     signalType,
		Source:         article.Source,
	})
	if err != nil {
		return leads.Opportunity{}, reject(StageValidation, "%v", err)
	}
	return opp, nil
}

func (e *Extractor) company(ctx context.Context, content string) string {
	answer := e.inferer.Infer(ctx, buildPrompt(companyPrompt, map[string]string{
		"TEXT": utils.Head(content, promptTextLimit),
	}), inference.CategoryCompany)
	return usable(answer)
}

func (e *Extractor) person(ctx context.Context, content string) string {
	if len([]rune(strings.TrimSpace(content))) < minPersonText {
		return ""
	}
	answer := e.inferer.Infer(ctx, buildPrompt(personPrompt, map[string]string{
		"TEXT": utils.Head(content, promptTextLimit),
	}), inference.CategoryPerson)

	person := usable(answer)
	if strings.EqualFold(person, leads.UnknownPerson) {
		return ""
	}
	return person
}

func (e *Extractor) email(ctx context.Context, log *zap.Logger, company, person string) string {
	answer := e.inferer.Infer(ctx, buildPrompt(emailPrompt, map[string]string{
		"COMPANY": company,
		"PERSON":  person,
	}), inference.CategoryEmailFinder)

	email, ok := parseEmail(answer)
	if !ok {
		log.Debug("no valid email guess", zap.String("answer", utils.TruncateForLog(answer, 80)))
		return ""
	}

	if e.verifier != nil {
		res, err := e.verifier.Verify(ctx, email)
		switch {
		case err != nil:
			log.Debug("email verification failed", zap.String("email", email), zap.Error(err))
		case !res.Deliverable():
			log.Info("email guess not confirmed", zap.String("email", email), zap.String("result", res.Result))
		}
	}
	return email
}

func usable(answer string) string {
	if inference.IsFallback(strings.TrimSpace(answer)) {
		return ""
	}
	return cleanAnswer(answer)
}

func buildPrompt(template string, values map[string]string) string {
	prompt := strings.TrimSpace(template)
	for key, value := range values {
		prompt = strings.ReplaceAll(prompt, "{{"+key+"}}", value)
	}
	return prompt
}
