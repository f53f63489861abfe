package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/config"
	"github.com/JakeFAU/signal-news/internal/id/uuid"
	"github.com/JakeFAU/signal-news/internal/logging"
	"github.com/JakeFAU/signal-news/internal/phase"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/simulator"
	"github.com/JakeFAU/signal-news/internal/tui"
)

type generateOptions struct {
	topic string
	focus string
	depth int
	tone  string
	plain bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [topic]",
		Short: "Run a simulated report generation in the terminal",
		Long: `Plays back the generation steps with the configured pacing and shows the
phase and percentage as they advance. Press ctrl+c to cancel. With --plain,
steps are printed one per line instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.topic = args[0]
			}
			return runGenerate(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.topic, "topic", "", "report topic")
	cmd.Flags().StringVar(&opts.focus, "focus", string(report.FocusGeneral), "report focus")
	cmd.Flags().IntVar(&opts.depth, "depth", report.DefaultDepth, "analysis depth (1-5)")
	cmd.Flags().StringVar(&opts.tone, "tone", string(report.ToneNeutral), "report tone")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print steps as lines instead of the interactive view")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	topic := strings.TrimSpace(opts.topic)
	if topic == "" {
		return errors.New("topic is required")
	}
	prefs, err := report.Preferences{
		Focus: report.Focus(opts.focus),
		Depth: opts.depth,
		Tone:  report.Tone(opts.tone),
	}.Normalize()
	if err != nil {
		return err
	}

	cfg, err := config.Load(root.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := zap.NewNop()
	if opts.plain {
		if logger, err = logging.Build(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level}); err != nil {
			return fmt.Errorf("logger init failed: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	sim, err := simulator.New(simulator.Config{
		Steps:    simulator.DefaultSteps(),
		Interval: cfg.StepInterval(),
		Settle:   cfg.Settle(),
		Quiet:    cfg.Quiet(),
	}, uuid.NewReportIDGenerator(), logger.Named("simulator"))
	if err != nil {
		return fmt.Errorf("simulator init failed: %w", err)
	}

	if opts.plain {
		return generatePlain(cmd, sim, topic, prefs, logger)
	}
	id, err := tui.Run(cmd.Context(), sim, topic, prefs, tui.Options{
		Input:  cmd.InOrStdin(),
		Output: cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func generatePlain(cmd *cobra.Command, sim *simulator.Simulator, topic string, prefs report.Preferences, logger *zap.Logger) error {
	out := cmd.OutOrStdout()
	tracker := phase.NewTracker()
	tracker.Start()
	logger.Info("generation started", zap.String("topic", topic), zap.String("focus", string(prefs.Focus)))

	id, err := sim.Run(cmd.Context(), func(step simulator.Step) {
		state := tracker.Observe(step.Text)
		writeStep(out, step, state)
	})
	if err != nil {
		tracker.Reset()
		return fmt.Errorf("generation: %w", err)
	}
	fmt.Fprintf(out, "report %s\n", id)
	logger.Info("generation finished", zap.String("report_id", id))
	return nil
}

func writeStep(w io.Writer, step simulator.Step, state report.GenerationState) {
	ph := state.Phase
	if ph == "" {
		ph = "-"
	}
	fmt.Fprintf(w, "[%d/%d] %-11s %3.0f%%  %s\n", step.Index+1, step.Total, ph, state.Percent, step.Text)
}
