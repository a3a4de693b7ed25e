package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"echojudge/internal/loops"
	"echojudge/internal/signature"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	signatureID string
	noLearning  bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "echojudge",
	Short: "echojudge - adaptive judgment decision-loop engine",
	Long: `echojudge runs natural-language inputs through named reasoning loops.

A signature profile proposes a loop for each input, a reinforcement value
table overrides the proposal once it has learned better, and an adaptive
learning engine evolves the profiles when recurring failure patterns appear.

Learned state (value table, signature adaptations, observations) persists as
JSON snapshots under the data directory and is safe to delete.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// judgeCmd runs one judgment
var judgeCmd = &cobra.Command{
	Use:   "judge [input text]",
	Short: "Run one input through the judgment pipeline",
	Long: `Derives a judgment context from the input text, selects and executes a
reasoning loop, records the reward and prints the outcome.

Example:
  echojudge judge "I keep failing at this and I'm not sure why"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runJudge,
}

// learnCmd runs one adaptive learning cycle
var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Run one adaptive learning cycle over recorded observations",
	Long: `Scans the trailing observation window for recurring failure patterns,
generates corrective actions and applies them to the signature profiles,
honoring the per-signature cooldown.`,
	RunE: runLearn,
}

// statsCmd prints learned-state statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show value-table and learning statistics",
	RunE:  runStats,
}

// benchCmd drives concurrent judgments
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Drive concurrent judgments and report throughput",
	RunE:  runBench,
}

var (
	benchCount       int
	benchConcurrency int
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "echojudge.yaml", "path to the config file")

	judgeCmd.Flags().StringVarP(&signatureID, "signature", "s", "", "signature profile id (default Echo-Aurora)")
	judgeCmd.Flags().BoolVar(&noLearning, "no-learning", false, "disable reinforcement updates for this call")

	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 200, "total judgments to run")
	benchCmd.Flags().IntVarP(&benchConcurrency, "concurrency", "c", 8, "concurrent workers")

	rootCmd.AddCommand(judgeCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runJudge(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(logger)
	if err != nil {
		return err
	}

	if signatureID == "" {
		signatureID = signature.DefaultID
	}
	input := strings.Join(args, " ")
	jc := deriveContext(input)

	outcome := rt.orch.Run(cmd.Context(), input, signatureID, jc, !noLearning)
	if err := rt.flush(); err != nil {
		return err
	}
	return printJSON(outcome)
}

func runLearn(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(logger)
	if err != nil {
		return err
	}

	report := rt.learner.RunCycle()
	if err := rt.flush(); err != nil {
		return err
	}

	logger.Info("learning cycle complete",
		zap.Int("patterns", report.PatternsDetected),
		zap.Int("executed", report.ActionsExecuted),
		zap.Duration("duration", report.Duration))
	return printJSON(report)
}

func runStats(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(logger)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"value_table":      rt.engine.Statistics(),
		"learning":         rt.learner.LearningSummary(),
		"observations":     rt.observations.Len(),
		"signature_states": rt.signatureStates(),
	})
}

func runBench(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(logger)
	if err != nil {
		return err
	}

	signatures := rt.registry.IDs()
	contexts := []*loops.JudgmentContext{
		{Complexity: 0.9, Uncertainty: 0.2},
		{EmotionalIntensity: 0.8},
		{Uncertainty: 0.9},
		{Complexity: 0.3, EmotionalIntensity: 0.3},
		{FailureDetected: true},
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(benchConcurrency)
	for i := 0; i < benchCount; i++ {
		i := i
		g.Go(func() error {
			jc := *contexts[i%len(contexts)]
			rt.orch.Run(ctx, fmt.Sprintf("bench input %d", i), signatures[i%len(signatures)], &jc, true)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := rt.flush(); err != nil {
		return err
	}

	summary := rt.orch.PerformanceSummary()
	return printJSON(map[string]any{
		"judgments":   benchCount,
		"elapsed":     elapsed.String(),
		"per_second":  float64(benchCount) / elapsed.Seconds(),
		"performance": summary,
		"value_table": rt.engine.Statistics(),
	})
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
