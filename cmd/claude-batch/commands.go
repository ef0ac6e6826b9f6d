package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/config"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/featurelist"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/history"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/notify"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/pipeline"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/report"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/schedule"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/scheduler"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
	"github.com/hochfrequenz/claude-batch-pipeline/tui"
	"github.com/hochfrequenz/claude-batch-pipeline/web/api"
	"github.com/spf13/cobra"
)

var (
	runBatchID       string
	runStateDir      string
	runMaxRetries    int
	runMinCoverage   float64
	runCtxThreshold  float64
	runDryRun        bool
	cleanupForce     bool
	historyLimit     int
	serveHost        string
	servePort        int
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run FEATURES_FILE",
		Short: "Run a new batch over the features in FILE",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runBatchID, "batch-id", "", "use a fixed batch id instead of a generated one")
	runCmd.Flags().StringVar(&runStateDir, "state-dir", "", "override the state directory")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "override max retry attempts per feature")
	runCmd.Flags().Float64Var(&runMinCoverage, "min-coverage", 0, "override minimum coverage percentage")
	runCmd.Flags().Float64Var(&runCtxThreshold, "context-threshold", 0, "override the context reset threshold")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "create and print the batch without running it")
	rootCmd.AddCommand(runCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume BATCH_ID",
		Short: "Resume an interrupted batch",
		Args:  cobra.ExactArgs(1),
		RunE:  runResume,
	}
	resumeCmd.Flags().StringVar(&runStateDir, "state-dir", "", "override the state directory")
	rootCmd.AddCommand(resumeCmd)

	statusCmd := &cobra.Command{
		Use:   "status [BATCH_ID]",
		Short: "Show batch status",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	reportCmd := &cobra.Command{
		Use:   "report BATCH_ID",
		Short: "Print the full accounting report for a batch",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
	rootCmd.AddCommand(reportCmd)

	cleanupCmd := &cobra.Command{
		Use:   "cleanup BATCH_ID",
		Short: "Archive a finished batch and remove its state file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCleanup,
	}
	cleanupCmd.Flags().BoolVar(&cleanupForce, "force", false, "clean up even if the batch is not finished")
	rootCmd.AddCommand(cleanupCmd)

	historyCmd := &cobra.Command{
		Use:   "history [BATCH_ID]",
		Short: "List archived batches, or show one batch's features",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of batches to list")
	rootCmd.AddCommand(historyCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule SCHEDULE_FILE",
		Short: "Run batches on a cron schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedule,
	}
	rootCmd.AddCommand(scheduleCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the batch status server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on")
	rootCmd.AddCommand(serveCmd)

	tuiCmd := &cobra.Command{
		Use:   "tui BATCH_ID",
		Short: "Watch a batch in the terminal dashboard",
		Args:  cobra.ExactArgs(1),
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if runStateDir != "" {
		cfg.Batch.StateDir = config.ExpandPath(runStateDir)
	}
	if runMaxRetries > 0 {
		cfg.Batch.MaxRetries = runMaxRetries
	}
	if runMinCoverage > 0 {
		cfg.Batch.MinCoverage = runMinCoverage
	}
	if runCtxThreshold > 0 {
		cfg.Batch.ContextThreshold = runCtxThreshold
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*statestore.Store, error) {
	return statestore.New(cfg.Batch.StateDir, cfg.Batch.LockTimeout)
}

func newScheduler(cfg *config.Config, store *statestore.Store) *scheduler.Scheduler {
	runner := pipeline.NewClaudeRunner(cfg.Claude.WorkDir, cfg.Claude.Model)
	return scheduler.New(store, runner, scheduler.Options{
		MinCoverage:      cfg.Batch.MinCoverage,
		MaxRetries:       cfg.Batch.MaxRetries,
		ContextThreshold: cfg.Batch.ContextThreshold,
		ContextBaseline:  cfg.Batch.ContextBaseline,
		Progress:         os.Stdout,
	})
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if len(notifiers) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so an
// interrupted run leaves a resumable state file behind instead of dying
// mid-transition.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	features, err := featurelist.Load(args[0])
	if err != nil {
		return err
	}

	if runDryRun {
		fmt.Printf("Would run %d features:\n", len(features))
		for i, f := range features {
			fmt.Printf("  [%d] %s\n", i, f)
		}
		return nil
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	sched := newScheduler(cfg, store)

	var state *domain.BatchState
	if runBatchID != "" {
		state, err = sched.CreateWithID(ctx, runBatchID, features)
	} else {
		state, err = sched.Create(ctx, features)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Batch %s: %d features\n", state.BatchID, len(features))
	return executeBatch(ctx, cfg, store, sched, state.BatchID)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return executeBatch(ctx, cfg, store, newScheduler(cfg, store), args[0])
}

// executeBatch runs (or resumes) a batch, prints the final report, and
// sends the completion notification. The exit code follows from the
// report: only a fully completed batch returns nil.
func executeBatch(ctx context.Context, cfg *config.Config, store *statestore.Store, sched *scheduler.Scheduler, batchID string) error {
	state, err := sched.Run(ctx, batchID)
	if err != nil {
		if errors.Is(err, context.Canceled) && state != nil {
			fmt.Fprintf(os.Stderr, "interrupted; resume with: claude-batch resume %s\n", batchID)
			return errNotClean
		}
		return err
	}

	summary := report.Summarize(state)
	fmt.Println()
	report.Render(os.Stdout, state, summary)

	if err := buildNotifier(cfg).Send(summary.Notification()); err != nil {
		fmt.Fprintf(os.Stderr, "notification failed: %v\n", err)
	}

	if !summary.Clean() {
		return errNotClean
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		state, err := store.Load(args[0])
		if err != nil {
			return err
		}
		report.Render(os.Stdout, state, report.Summarize(state))
		return nil
	}

	ids, err := store.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No batches")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTATUS\tCOMPLETED\tFAILED\tPENDING\tCONTEXT")
	for _, id := range ids {
		state, err := store.Load(id)
		if err != nil {
			fmt.Fprintf(tw, "%s\t(unreadable: %v)\n", id, err)
			continue
		}
		s := report.Summarize(state)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.0f\n",
			id, state.Status, s.CompletedCount, s.FailedCount, s.SkippedCount, state.ContextEstimate)
	}
	return tw.Flush()
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	state, err := store.Load(args[0])
	if err != nil {
		return err
	}
	report.Render(os.Stdout, state, report.Summarize(state))
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	batchID := args[0]

	state, err := store.Load(batchID)
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			// Already gone; cleanup is idempotent
			return store.Cleanup(batchID)
		}
		return err
	}
	if !state.IsTerminal() && !cleanupForce {
		return fmt.Errorf("batch %s is %s, not finished; use --force to clean up anyway", batchID, state.Status)
	}

	archive, err := history.New(cfg.Batch.HistoryPath)
	if err != nil {
		return err
	}
	defer archive.Close()
	if err := archive.Archive(state); err != nil {
		return err
	}

	if err := store.Cleanup(batchID); err != nil {
		return err
	}
	fmt.Printf("Batch %s archived and cleaned up\n", batchID)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	archive, err := history.New(cfg.Batch.HistoryPath)
	if err != nil {
		return err
	}
	defer archive.Close()

	if len(args) == 1 {
		features, err := archive.GetFeatures(args[0])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, f := range features {
			if f.FailureReason != "" {
				fmt.Fprintf(tw, "  [%d]\t%s\t%s\t%s\n", f.Index, f.Disposition, f.Feature, f.FailureReason)
			} else {
				fmt.Fprintf(tw, "  [%d]\t%s\t%s\n", f.Index, f.Disposition, f.Feature)
			}
		}
		return tw.Flush()
	}

	batches, err := archive.ListBatches(historyLimit)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Println("No archived batches")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTATUS\tFEATURES\tCOMPLETED\tFAILED\tSKIPPED\tFINISHED")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			b.BatchID, b.Status, b.FeatureCount, b.CompletedCount, b.FailedCount, b.SkippedCount,
			b.FinishedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	schedCfg, err := schedule.LoadConfig(args[0])
	if err != nil {
		return err
	}
	if len(schedCfg.Batches) == 0 {
		return fmt.Errorf("no batches defined in %s", args[0])
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	cronSched, err := schedule.NewScheduler(schedCfg.Batches)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	notifier := buildNotifier(cfg)
	fmt.Printf("Scheduling %d batch(es)\n", len(schedCfg.Batches))

	cronSched.Start(ctx, func(ctx context.Context, entry schedule.Entry) error {
		features, err := featurelist.Load(entry.FeaturesFile)
		if err != nil {
			return err
		}
		sched := newScheduler(cfg, store)
		state, err := sched.Create(ctx, features)
		if err != nil {
			return err
		}
		fmt.Printf("[%s] running batch %s (%d features)\n", entry.Name, state.BatchID, len(features))

		final, err := sched.Run(ctx, state.BatchID)
		if err != nil {
			return err
		}
		summary := report.Summarize(final)
		report.Render(os.Stdout, final, summary)
		if entry.NotifyOnComplete {
			if err := notifier.Send(summary.Notification()); err != nil {
				fmt.Fprintf(os.Stderr, "notification failed: %v\n", err)
			}
		}
		return nil
	})
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Web.Host = serveHost
	}
	if servePort > 0 {
		cfg.Web.Port = servePort
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	fmt.Printf("Serving batch status on http://%s\n", addr)
	return api.NewServer(store, addr).Start(ctx)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	program := tea.NewProgram(tui.NewModel(store, args[0]), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
