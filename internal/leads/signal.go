package leads

import "sort"

// Signal describes one of the predefined outreach intents.
type Signal struct {
	ID         int
	Name       string
	TemplateID string
	Queries    []string
	// Threshold overrides the global minimum relevance score when positive.
	Threshold float64
}

// Signals is a catalog of signal categories keyed by id.
type Signals map[int]Signal

// Override carries per-signal configuration applied on top of the built-in catalog.
type Override struct {
	TemplateID string
	Threshold  float64
	Queries    []string
}

const (
	SignalHRTechEvaluations = 1
	SignalNewLeadership     = 2
	SignalHighIntentContent = 3
	SignalTechStackChange   = 4
	SignalExpansion         = 5
	SignalHiringDownsizing  = 6
)

var catalog = []Signal{
	{
		ID:         SignalHRTechEvaluations,
		Name:       "HR tech evaluations",
		TemplateID: "hr_tech_evaluations",
		Queries: []string{
			"HR technology evaluation software solutions",
			"HR tech assessment tools",
			"human resources technology evaluation",
		},
	},
	{
		ID:         SignalNewLeadership,
		Name:       "New leadership ≤90 days",
		TemplateID: "new_leadership",
		Queries: []string{
			"new CHRO chief human resources officer appointed",
			"new HR director hired",
			"chief people officer appointment",
		},
	},
	{
		ID:         SignalHighIntentContent,
		Name:       "High-intent website/content",
		TemplateID: "high_intent_content",
		Queries: []string{
			"HR tech content website blog",
			"human resources technology insights",
			"HR software case studies",
		},
	},
	{
		ID:         SignalTechStackChange,
		Name:       "Tech stack change",
		TemplateID: "tech_stack_change",
		Queries: []string{
			"HR system migration technology change",
			"workday implementation project",
			"HR tech stack transition",
		},
	},
	{
		ID:         SignalExpansion,
		Name:       "Expansion",
		TemplateID: "expansion",
		Queries: []string{
			"company expansion growth hiring HR",
			"startup funding HR technology",
			"HR tech investment announcement",
		},
	},
	{
		ID:         SignalHiringDownsizing,
		Name:       "Hiring/downsizing",
		TemplateID: "hiring_downsizing",
		Queries: []string{
			"HR team hiring downsizing restructuring",
			"human resources job openings",
			"HR director recruitment",
		},
	},
}

// DefaultSignals returns a fresh copy of the built-in catalog.
func DefaultSignals() Signals {
	signals := make(Signals, len(catalog))
	for _, s := range catalog {
		s.Queries = append([]string(nil), s.Queries...)
		signals[s.ID] = s
	}
	return signals
}

// ValidSignal reports whether id is one of the enumerated categories.
func ValidSignal(id int) bool {
	return id >= SignalHRTechEvaluations && id <= SignalHiringDownsizing
}

// WithOverrides returns a copy of the catalog with the provided overrides applied.
// Overrides for unknown ids are ignored.
func (s Signals) WithOverrides(overrides map[int]Override) Signals {
	out := make(Signals, len(s))
	for id, signal := range s {
		signal.Queries = append([]string(nil), signal.Queries...)
		if o, ok := overrides[id]; ok {
			if o.TemplateID != "" {
				signal.TemplateID = o.TemplateID
			}
			if o.Threshold > 0 {
				signal.Threshold = o.Threshold
			}
			if len(o.Queries) > 0 {
				signal.Queries = append([]string(nil), o.Queries...)
			}
		}
		out[id] = signal
	}
	return out
}

// Lookup returns the signal with the given id.
func (s Signals) Lookup(id int) (Signal, bool) {
	signal, ok := s[id]
	return signal, ok
}

// Queries returns the query set for a signal. Unknown ids fall back to the
// technology evaluation queries.
func (s Signals) Queries(id int) []string {
	if signal, ok := s[id]; ok && len(signal.Queries) > 0 {
		return append([]string(nil), signal.Queries...)
	}
	if signal, ok := s[SignalHRTechEvaluations]; ok {
		return append([]string(nil), signal.Queries...)
	}
	return nil
}

// ThresholdFor returns the signal override when set, otherwise fallback.
func (s Signals) ThresholdFor(id int, fallback float64) float64 {
	if signal, ok := s[id]; ok && signal.Threshold > 0 {
		return signal.Threshold
	}
	return fallback
}

// Name returns a readable signal name, or an empty string for unknown ids.
func (s Signals) Name(id int) string {
	return s[id].Name
}

// IDs returns the catalog ids in ascending order.
func (s Signals) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
