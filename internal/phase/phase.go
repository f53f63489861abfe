// Package phase maps free-text progress messages onto the fixed list of
// report-generation phases and derives the percentage shown to the user.
package phase

import (
	"strings"

	"github.com/JakeFAU/signal-news/internal/report"
)

// Phase is one named stage of the report-generation sequence.
type Phase struct {
	ID          string `json:"id"`
	Ordinal     int    `json:"ordinal"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// aliases are matched case-insensitively against step text, but only
	// when no phase ID appears in it.
	aliases []string
}

var phases = []Phase{
	{
		ID:          "search",
		Ordinal:     0,
		Title:       "Search Phase",
		Description: "Refining search query and finding relevant articles",
	},
	{
		ID:          "profile",
		Ordinal:     1,
		Title:       "Profiling Phase",
		Description: "Analyzing article relevance and quality",
		aliases:     []string{"relevance"},
	},
	{
		ID:          "select",
		Ordinal:     2,
		Title:       "Selection Phase",
		Description: "Selecting the best sources for analysis",
	},
	{
		ID:          "synthesize",
		Ordinal:     3,
		Title:       "Synthesis Phase",
		Description: "Generating comprehensive analysis",
		aliases:     []string{"synthesis", "generating"},
	},
	{
		ID:          "edit",
		Ordinal:     4,
		Title:       "Editing Phase",
		Description: "Polishing final report",
		aliases:     []string{"polish"},
	},
}

// All returns the phases in order. The slice is a copy.
func All() []Phase {
	out := make([]Phase, len(phases))
	copy(out, phases)
	return out
}

// Count is the number of phases.
func Count() int {
	return len(phases)
}

// Match returns the first phase, in list order, whose ID is contained in text.
// Only when no ID matches are the aliases tried, again in list order.
func Match(text string) (Phase, bool) {
	lower := strings.ToLower(text)
	if lower == "" {
		return Phase{}, false
	}
	for _, p := range phases {
		if strings.Contains(lower, p.ID) {
			return p, true
		}
	}
	for _, p := range phases {
		for _, alias := range p.aliases {
			if strings.Contains(lower, alias) {
				return p, true
			}
		}
	}
	return Phase{}, false
}

// Percent is the completion percentage once phase p has been reached.
func Percent(p Phase) float64 {
	return float64(p.Ordinal+1) / float64(len(phases)) * 100
}

// Tracker folds step messages into a report.GenerationState. The percentage
// only moves forward during a run. A Tracker is not safe for concurrent use.
type Tracker struct {
	state report.GenerationState
	index int
}

// NewTracker returns a tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{index: -1}
}

// Start marks the beginning of a run and clears any previous progress.
func (t *Tracker) Start() report.GenerationState {
	t.index = -1
	t.state = report.GenerationState{IsGenerating: true}
	return t.state
}

// Observe records text as the current step. On a match the percentage is raised
// to the phase's value; an unmatched message leaves phase and percentage as they were.
func (t *Tracker) Observe(text string) report.GenerationState {
	t.state.CurrentStep = text
	p, ok := Match(text)
	if !ok || p.Ordinal < t.index {
		return t.state
	}
	t.index = p.Ordinal
	t.state.Phase = p.ID
	t.state.Percent = Percent(p)
	return t.state
}

// State returns the current snapshot.
func (t *Tracker) State() report.GenerationState {
	return t.state
}

// Index is the ordinal of the furthest phase reached, or -1.
func (t *Tracker) Index() int {
	return t.index
}

// Reset returns the tracker to idle, as on completion, error or cancellation.
func (t *Tracker) Reset() {
	t.index = -1
	t.state = report.GenerationState{}
}
