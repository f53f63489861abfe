// Package report defines the core types shared across the report service.
package report

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals that a report or generation job does not exist.
var ErrNotFound = errors.New("report not found")

// ErrInvalidPreferences is returned when a preference value is outside the supported set.
var ErrInvalidPreferences = errors.New("invalid report preferences")

// Focus selects the angle a report takes on its topic.
type Focus string

// Supported focus values.
const (
	FocusGeneral   Focus = "General Overview"
	FocusTechnical Focus = "Technical Details"
	FocusMarket    Focus = "Market Impact"
	FocusEthical   Focus = "Ethical Implications"
	FocusExpert    Focus = "Expert Analysis"
)

// Tone selects the writing register of a report.
type Tone string

// Supported tone values.
const (
	ToneNeutral        Tone = "Neutral"
	ToneAnalytical     Tone = "Analytical"
	ToneOptimistic     Tone = "Optimistic"
	ToneCritical       Tone = "Critical"
	ToneConversational Tone = "Conversational"
)

// Depth bounds.
const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 3
)

var depthLabels = map[int]string{
	1: "Quick Summary",
	2: "Brief Report",
	3: "Balanced Report",
	4: "Detailed Analysis",
	5: "Deep Dive",
}

// Focuses lists the focus values in display order.
func Focuses() []Focus {
	return []Focus{FocusGeneral, FocusTechnical, FocusMarket, FocusEthical, FocusExpert}
}

// Tones lists the tone values in display order.
func Tones() []Tone {
	return []Tone{ToneNeutral, ToneAnalytical, ToneOptimistic, ToneCritical, ToneConversational}
}

// Preferences captures how the user wants a report shaped.
type Preferences struct {
	Focus Focus `json:"focus"`
	Depth int   `json:"depth"`
	Tone  Tone  `json:"tone"`
}

// DefaultPreferences returns the preferences a fresh form starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		Focus: FocusGeneral,
		Depth: DefaultDepth,
		Tone:  ToneNeutral,
	}
}

// ClampDepth forces depth into [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	switch {
	case depth < MinDepth:
		return MinDepth
	case depth > MaxDepth:
		return MaxDepth
	default:
		return depth
	}
}

// DepthLabel returns the human label for a (clamped) depth.
func DepthLabel(depth int) string {
	return depthLabels[ClampDepth(depth)]
}

// Normalize fills empty fields with defaults, clamps depth and validates the enums.
func (p Preferences) Normalize() (Preferences, error) {
	out := p
	if out.Focus == "" {
		out.Focus = FocusGeneral
	}
	if out.Tone == "" {
		out.Tone = ToneNeutral
	}
	if out.Depth == 0 {
		out.Depth = DefaultDepth
	}
	out.Depth = ClampDepth(out.Depth)
	if !validFocus(out.Focus) {
		return Preferences{}, fmt.Errorf("%w: unknown focus %q", ErrInvalidPreferences, out.Focus)
	}
	if !validTone(out.Tone) {
		return Preferences{}, fmt.Errorf("%w: unknown tone %q", ErrInvalidPreferences, out.Tone)
	}
	return out, nil
}

func validFocus(f Focus) bool {
	for _, v := range Focuses() {
		if v == f {
			return true
		}
	}
	return false
}

func validTone(t Tone) bool {
	for _, v := range Tones() {
		if v == t {
			return true
		}
	}
	return false
}

// Source is an article cited by a report.
type Source struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Stats records what the generation pipeline did for a report.
type Stats struct {
	SearchQueries   []string  `json:"searchQueries"`
	SourcesAnalyzed int       `json:"sourcesAnalyzed"`
	SourcesSelected int       `json:"sourcesSelected"`
	ProcessingTime  int       `json:"processingTime"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Report is the full artifact returned by the report lookup.
type Report struct {
	ID            string      `json:"id"`
	Topic         string      `json:"topic"`
	Content       string      `json:"content"`
	Preferences   Preferences `json:"preferences"`
	Stats         Stats       `json:"stats"`
	Sources       []Source    `json:"sources"`
	RelatedTopics []string    `json:"relatedTopics"`
	CreatedAt     time.Time   `json:"createdAt"`
	ContentURI    string      `json:"-"`
	ContentHash   string      `json:"-"`
}

// Summary is the history view of a report.
type Summary struct {
	ID          string      `json:"id"`
	Topic       string      `json:"topic"`
	CreatedAt   time.Time   `json:"createdAt"`
	Preferences Preferences `json:"preferences"`
}

// Summarize projects a Report into its history entry.
func (r Report) Summarize() Summary {
	return Summary{
		ID:          r.ID,
		Topic:       r.Topic,
		CreatedAt:   r.CreatedAt,
		Preferences: r.Preferences,
	}
}

// NewsItem is one entry of the daily news feed.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
	Category    string    `json:"category"`
	URL         string    `json:"url"`
}

// TrendingTopic is a suggested topic with the query it pre-fills.
type TrendingTopic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Topic       string `json:"topic"`
	Icon        string `json:"icon"`
}
