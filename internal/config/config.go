// Package config holds the run configuration loaded by the cli.
package config

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/prospector/internal/leads"
)

type Config struct {
	Search      *Search              `mapstructure:"search" validate:"required"`
	Fetcher     *Fetcher             `mapstructure:"fetcher" validate:"required"`
	Inference   *Inference           `mapstructure:"inference" validate:"required"`
	Quality     *Quality             `mapstructure:"quality" validate:"required"`
	Signals     map[int]SignalConfig `mapstructure:"signals"`
	Run         *Run                 `mapstructure:"run" validate:"required"`
	Output      *Output              `mapstructure:"output"`
	Sink        *Sink                `mapstructure:"sink" validate:"required"`
	Verify      *Verify              `mapstructure:"verify"`
	Outreach    *Outreach            `mapstructure:"outreach"`
	ExcludeFile string               `mapstructure:"exclude-file"`
	UserAgent   string               `mapstructure:"user-agent"`
}

type Search struct {
	Provider       string        `mapstructure:"provider" validate:"oneof=newsdata searxng"`
	BaseURL        string        `mapstructure:"base-url"`
	APIKey         string        `mapstructure:"api-key" json:"-"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Language       string        `mapstructure:"language"`
	DailyCallLimit int           `mapstructure:"daily-call-limit" validate:"gte=1"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries        int           `mapstructure:"retries" validate:"gte=1"`
	MaxPages       int           `mapstructure:"max-pages" validate:"gte=1"`
	PagePause      time.Duration `mapstructure:"page-pause" validate:"gte=0"`
	Domains        []string      `mapstructure:"domains"`
}

type Fetcher struct {
	Extractor     string        `mapstructure:"extractor" validate:"oneof=goquery readability"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries       int           `mapstructure:"retries" validate:"gte=1"`
	RespectRobots bool          `mapstructure:"respect-robots"`
	MaxBodyBytes  int64         `mapstructure:"max-body-bytes" validate:"gte=0"`
	CacheDir      string        `mapstructure:"cache-dir"`
	CacheTTL      time.Duration `mapstructure:"cache-ttl" validate:"gte=0"`
}

type Inference struct {
	Provider          string        `mapstructure:"provider" validate:"oneof=gemini openai ollama none"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base-url"`
	APIKey            string        `mapstructure:"api-key" json:"-"`
	APIKeyFile        string        `mapstructure:"api-key-file"`
	MaxRetries        int           `mapstructure:"max-retries" validate:"gte=1"`
	RetryDelay        time.Duration `mapstructure:"retry-delay" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	QueueSize         int           `mapstructure:"queue-size" validate:"gte=1"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute" validate:"gte=0"`
	Async             bool          `mapstructure:"async"`
}

type Quality struct {
	MinRelevance      float64  `mapstructure:"min-relevance" validate:"gte=0,lte=1"`
	Keywords          []string `mapstructure:"keywords" validate:"min=1,dive,required"`
	ExcludedCompanies []string `mapstructure:"excluded-companies"`
}

type SignalConfig struct {
	TemplateID string   `mapstructure:"template-id"`
	Threshold  float64  `mapstructure:"threshold" validate:"gte=0,lte=1"`
	Queries    []string `mapstructure:"queries"`
}

type Run struct {
	Workers          int           `mapstructure:"workers" validate:"gte=1"`
	Target           int           `mapstructure:"target" validate:"gte=1"`
	ResultsPerSignal int           `mapstructure:"results-per-signal" validate:"gte=1"`
	SignalPause      time.Duration `mapstructure:"signal-pause" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	LockFile         string        `mapstructure:"lock-file" validate:"required"`
	Signals          []int         `mapstructure:"signals"`
	ExpandQueries    bool          `mapstructure:"expand-queries"`
}

type Output struct {
	CSV       string `mapstructure:"csv"`
	DraftsDir string `mapstructure:"drafts-dir"`
}

type Sink struct {
	Kind    string `mapstructure:"kind" validate:"oneof=none file postgres"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn" json:"-"`
	DSNFile string `mapstructure:"dsn-file"`
	Table   string `mapstructure:"table"`
}

type Verify struct {
	Enabled    bool   `mapstructure:"enabled"`
	BaseURL    string `mapstructure:"base-url"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type Outreach struct {
	TemplatesFile string `mapstructure:"templates-file"`
	SenderName    string `mapstructure:"sender-name"`
	SenderTitle   string `mapstructure:"sender-title"`
	SenderCompany string `mapstructure:"sender-company"`
}

// DefaultKeywords drive relevance scoring when none are configured.
var DefaultKeywords = []string{
	"reducing burnout",
	"improve productivity",
	"HR tech",
	"CHRO",
	"employee engagement",
}

// DefaultDomains is the allow-list of publication domains.
var DefaultDomains = []string{
	"nytimes.com",
	"wsj.com",
	"forbes.com",
	"hrdive.com",
	"harvardbusinessreview.org",
	"techcrunch.com",
	"reuters.com",
	"ft.com",
	"shrm.org",
	"peoplematters.in",
}

// Default returns a configuration populated with production defaults.
func Default() *Config {
	return &Config{
		Search: &Search{
			Provider:       "newsdata",
			Language:       "en",
			DailyCallLimit: 50,
			Timeout:        30 * time.Second,
			Retries:        3,
			MaxPages:       5,
			PagePause:      time.Second,
			Domains:        append([]string(nil), DefaultDomains...),
		},
		Fetcher: &Fetcher{
			Extractor:     "goquery",
			Timeout:       30 * time.Second,
			Retries:       3,
			RespectRobots: true,
			MaxBodyBytes:  5 << 20,
			CacheTTL:      24 * time.Hour,
		},
		Inference: &Inference{
			Provider:   "gemini",
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
			Timeout:    30 * time.Second,
			QueueSize:  100,
		},
		Quality: &Quality{
			MinRelevance: 0.7,
			Keywords:     append([]string(nil), DefaultKeywords...),
		},
		Run: &Run{
			Workers:          5,
			Target:           50,
			ResultsPerSignal: 10,
			SignalPause:      2 * time.Second,
			Timeout:          time.Hour,
			LockFile:         "outbound.lock",
		},
		Output: &Output{
			CSV: "opportunities.csv",
		},
		Sink: &Sink{
			Kind:  "none",
			Table: "opportunities",
		},
		Verify:   &Verify{},
		Outreach: &Outreach{},
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	for id, signal := range c.Signals {
		if !leads.ValidSignal(id) {
			return fmt.Errorf("signals: unknown signal id %d", id)
		}
		if err := validate.Struct(signal); err != nil {
			return fmt.Errorf("signals.%d: %w", id, err)
		}
	}

	for _, id := range c.Run.Signals {
		if !leads.ValidSignal(id) {
			return fmt.Errorf("run.signals: unknown signal id %d", id)
		}
	}

	if c.Sink.Kind == "file" && c.Sink.Path == "" {
		return errors.New("sink.path is required for the file sink")
	}

	return nil
}

// SignalOverrides converts the configured signal settings into catalog overrides.
func (c *Config) SignalOverrides() map[int]leads.Override {
	overrides := make(map[int]leads.Override, len(c.Signals))
	for id, s := range c.Signals {
		overrides[id] = leads.Override{TemplateID: s.TemplateID, Threshold: s.Threshold, Queries: s.Queries}
	}
	return overrides
}

// RunSignals returns the configured signal ids in ascending order, or nil for all.
func (c *Config) RunSignals() []int {
	if len(c.Run.Signals) == 0 {
		return nil
	}
	ids := append([]int(nil), c.Run.Signals...)
	sort.Ints(ids)
	return ids
}

// Load decodes all viper settings on top of the defaults and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
