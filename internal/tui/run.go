package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/simulator"
)

// ErrCanceled is returned by Run when the user stops the generation.
var ErrCanceled = errors.New("generation canceled")

// Options configures Run. Nil readers and writers fall back to the terminal.
type Options struct {
	Input  io.Reader
	Output io.Writer
	// Headless disables the renderer and reads no input.
	Headless bool
}

// Run drives sim for topic in the terminal and returns the new report ID.
// The simulation is stopped when ctx ends or the user quits.
func Run(ctx context.Context, sim *simulator.Simulator, topic string, prefs report.Preferences, opts Options) (string, error) {
	h := sim.Start(ctx)
	defer h.Cancel()

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	if opts.Headless {
		progOpts = append(progOpts, tea.WithoutRenderer(), tea.WithInput(nil))
	}

	final, err := tea.NewProgram(New(h, topic, prefs), progOpts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}
		return "", fmt.Errorf("run tui: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return "", fmt.Errorf("unexpected model type %T", final)
	}
	switch {
	case m.Err() != nil:
		return "", m.Err()
	case m.Canceled():
		return "", ErrCanceled
	}
	return m.ReportID(), nil
}
