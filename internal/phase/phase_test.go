package phase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchIdentifierAnywhereAnyCase(t *testing.T) {
	t.Parallel()

	wrappers := []string{"%s", "working on %s now", "...%s...", "[%s]"}
	for _, p := range All() {
		want := float64(p.Ordinal+1) / 5 * 100
		for _, id := range []string{p.ID, strings.ToUpper(p.ID), strings.ToUpper(p.ID[:1]) + p.ID[1:]} {
			for _, w := range wrappers {
				text := fmt.Sprintf(w, id)
				got, ok := Match(text)
				require.True(t, ok, "expected match for %q", text)
				require.Equal(t, p.ID, got.ID, "text %q", text)
				require.InDelta(t, want, Percent(got), 1e-9, "text %q", text)
			}
		}
	}
}

func TestMatchUnknownText(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "Found articles from sources", "warming up"} {
		_, ok := Match(text)
		require.False(t, ok, "text %q", text)
	}
}

func TestMatchRelevanceMapsToProfile(t *testing.T) {
	t.Parallel()

	p, ok := Match("Analyzing article relevance...")
	require.True(t, ok)
	require.Equal(t, "profile", p.ID)
	require.Equal(t, 1, p.Ordinal)
	require.InDelta(t, 40.0, Percent(p), 1e-9)
}

func TestMatchPrefersEarlierPhase(t *testing.T) {
	t.Parallel()

	p, ok := Match("select then search")
	require.True(t, ok)
	require.Equal(t, "search", p.ID)
}

func TestMatchIdentifierBeatsEarlierAlias(t *testing.T) {
	t.Parallel()

	aliases := []string{"relevance", "synthesis", "generating", "polish"}
	for _, p := range All() {
		want := float64(p.Ordinal+1) / 5 * 100
		for _, alias := range aliases {
			for _, text := range []string{
				fmt.Sprintf("Checking %s before the %s", alias, p.ID),
				fmt.Sprintf("%s the %s pass", strings.ToUpper(p.ID), alias),
			} {
				got, ok := Match(text)
				require.True(t, ok, text)
				require.Equal(t, p.ID, got.ID, text)
				require.InDelta(t, want, Percent(got), 1e-9, text)
			}
		}
	}

	p, ok := Match("Checking relevance before the edit")
	require.True(t, ok)
	require.Equal(t, "edit", p.ID)
	require.InDelta(t, 100.0, Percent(p), 1e-9)
}

func TestMatchAliasesApplyWithoutIdentifier(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Analyzing article relevance...":       "profile",
		"Generating comprehensive analysis...": "synthesize",
		"Synthesis underway":                   "synthesize",
		"Polishing final report...":            "edit",
		"relevance and polish":                 "profile",
	}
	for text, want := range tests {
		got, ok := Match(text)
		require.True(t, ok, text)
		require.Equal(t, want, got.ID, text)
	}
}

func TestTrackerCannedSequence(t *testing.T) {
	t.Parallel()

	steps := []struct {
		text    string
		phase   string
		percent float64
	}{
		{"Refining search query...", "search", 20},
		{"Found articles from sources", "search", 20},
		{"Analyzing article relevance...", "profile", 40},
		{"Profiled articles", "profile", 40},
		{"Selecting best sources...", "select", 60},
		{"Selected high-quality articles", "select", 60},
		{"Generating comprehensive analysis...", "synthesize", 80},
		{"Polishing final report...", "edit", 100},
	}

	tr := NewTracker()
	tr.Start()
	for _, s := range steps {
		st := tr.Observe(s.text)
		require.True(t, st.IsGenerating)
		require.Equal(t, s.text, st.CurrentStep)
		require.Equal(t, s.phase, st.Phase, "step %q", s.text)
		require.InDelta(t, s.percent, st.Percent, 1e-9, "step %q", s.text)
	}
}

func TestTrackerUnmatchedLeavesPercentUnchanged(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Start()
	require.InDelta(t, 0.0, tr.Observe("nothing to see").Percent, 1e-9)

	tr.Observe("select")
	st := tr.Observe("still thinking")
	require.InDelta(t, 60.0, st.Percent, 1e-9)
	require.Equal(t, "still thinking", st.CurrentStep)
	require.Equal(t, "select", st.Phase)
}

func TestTrackerNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Start()
	tr.Observe("Polishing final report...")
	st := tr.Observe("Refining search query...")
	require.InDelta(t, 100.0, st.Percent, 1e-9)
	require.Equal(t, "edit", st.Phase)
	require.Equal(t, 4, tr.Index())
}

func TestTrackerReset(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Start()
	tr.Observe("search")
	tr.Reset()
	st := tr.State()
	require.False(t, st.IsGenerating)
	require.Empty(t, st.CurrentStep)
	require.Zero(t, st.Percent)
	require.Equal(t, -1, tr.Index())
}

func TestAllReturnsCopy(t *testing.T) {
	t.Parallel()

	ps := All()
	require.Len(t, ps, Count())
	ps[0].ID = "mutated"
	require.Equal(t, "search", All()[0].ID)
}
