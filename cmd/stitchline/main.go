package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"stitchline/internal/adapters/storage/sqlite"
	"stitchline/internal/app"
	"stitchline/internal/config"
	"stitchline/internal/domain"
	"stitchline/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// engines bundles the wired application services for command handlers.
type engines struct {
	lifecycle *app.LifecycleEngine
	quality   *app.QualityControlEngine
	stats     *app.StatsAggregator
	repo      *sqlite.Repository
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("stitchline", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath string
		dbPath     string
		appName    string
		devMode    bool
		showVer    bool
	)
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("STITCHLINE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("STITCHLINE_APP_NAME")); envApp != "" {
		appName = envApp
	} else {
		appName = "stitchline"
	}
	fs.StringVar(&configPath, "config", "", "path to config TOML")
	fs.StringVar(&dbPath, "db", "", "path to sqlite database")
	fs.StringVar(&appName, "app", appName, "application name for config/data path resolution")
	fs.BoolVar(&devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	fs.BoolVar(&showVer, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVer {
		_, _ = fmt.Fprintf(stdout, "stitchline %s\n", version)
		return nil
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: devMode,
	})
	if err != nil {
		return err
	}

	command := firstArg(fs.Args())
	switch command {
	case "paths":
		_, _ = fmt.Fprintf(stdout, "app: %s\n", appName)
		_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", devMode)
		_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
		_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
		_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
		return nil
	case "seed", "assign", "progress", "status", "inspect", "bulk-inspect", "pending", "queue", "worker", "stats", "orders", "operations":
		// Continue.
	case "":
		return fmt.Errorf("a command is required: seed | assign | progress | status | inspect | bulk-inspect | pending | queue | worker | stats | orders | operations | paths")
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	dbOverridden := strings.TrimSpace(dbPath) != ""
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("STITCHLINE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("STITCHLINE_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	defaultCfg := config.Default(dbPath)
	cfg, err := config.Load(configPath, defaultCfg)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, appName, devMode, cfg.Logging, time.Now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", appName, "dev_mode", devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", dbPath)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()

	notifier := app.NewNotifier()
	notifier.Subscribe(loggingSubscriber{logger: logger})
	quality := app.NewQualityControlEngine(repo, repo, repo, repo, notifier, time.Now)
	quality.SetBulkParallelism(cfg.Quality.BulkParallelism)
	eng := engines{
		lifecycle: app.NewLifecycleEngine(repo, repo, repo, notifier, uuid.NewString, time.Now),
		quality:   quality,
		stats:     app.NewStatsAggregator(repo, repo, repo, repo),
		repo:      repo,
	}

	logger.Info("command flow start", "command", command)
	switch command {
	case "seed":
		err = runSeed(ctx, eng, fs.Args()[1:], stdout)
	case "assign":
		err = runAssign(ctx, eng, fs.Args()[1:], stdout)
	case "progress":
		err = runProgress(ctx, eng, fs.Args()[1:], stdout)
	case "status":
		err = runStatus(ctx, eng, fs.Args()[1:], stdout)
	case "inspect":
		err = runInspect(ctx, eng, fs.Args()[1:], stdout)
	case "bulk-inspect":
		err = runBulkInspect(ctx, eng, fs.Args()[1:], stdout, cfg.Quality.DefaultBulkNotes)
	case "pending":
		err = runPending(ctx, eng, fs.Args()[1:], stdout)
	case "queue":
		err = runQueue(ctx, eng, fs.Args()[1:], stdout)
	case "worker":
		err = runWorker(ctx, eng, fs.Args()[1:], stdout)
	case "stats":
		err = runStats(ctx, eng, fs.Args()[1:], stdout)
	case "orders":
		err = runOrders(ctx, eng, stdout)
	case "operations":
		err = runOperations(ctx, eng, stdout)
	}
	if err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	logger.Info("command flow complete", "command", command)
	return nil
}

// runSeed loads a small demo directory and catalog for local use.
func runSeed(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse seed flags: %w", err)
	}

	workers := []domain.Worker{
		{ID: "w-anna", Name: "Anna Petrova", Role: "worker", Brigade: "A", Position: "seamstress"},
		{ID: "w-boris", Name: "Boris Ivanov", Role: "worker", Brigade: "A", Position: "cutter"},
		{ID: "w-vera", Name: "Vera Sokolova", Role: "worker", Brigade: "B", Position: "seamstress"},
		{ID: "m-marta", Name: "Marta Orlova", Role: "master", Brigade: "A", Position: "master"},
	}
	products := []domain.Product{
		{ID: "p-shirt", Article: "SHT-001", Name: "Classic shirt"},
		{ID: "p-dress", Article: "DRS-014", Name: "Summer dress"},
	}
	operations := []domain.Operation{
		{ID: "op-cut", Name: "Cut panels", ProductID: "p-shirt", StandardMinutes: 8, SequenceOrder: 1},
		{ID: "op-collar", Name: "Sew collar", ProductID: "p-shirt", StandardMinutes: 12, SequenceOrder: 2},
		{ID: "op-buttons", Name: "Attach buttons", ProductID: "p-shirt", StandardMinutes: 5, SequenceOrder: 3},
		{ID: "op-hem", Name: "Hem dress", ProductID: "p-dress", StandardMinutes: 10, SequenceOrder: 1},
	}
	orders := []domain.Order{
		{ID: "ord-100", OrderNumber: "N-100", CustomerName: "Atelier Nord", ProductID: "p-shirt", Quantity: 200, Status: "in_progress", Priority: 2},
		{ID: "ord-101", OrderNumber: "N-101", CustomerName: "Modehaus Brandt", ProductID: "p-dress", Quantity: 80, Status: "new", Priority: 1},
	}

	for _, w := range workers {
		if err := eng.repo.CreateWorker(ctx, w); err != nil {
			return err
		}
	}
	for _, p := range products {
		if err := eng.repo.CreateProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, op := range operations {
		if err := eng.repo.CreateOperation(ctx, op); err != nil {
			return err
		}
	}
	for _, o := range orders {
		if err := eng.repo.CreateOrder(ctx, o); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(stdout, "seeded %d workers, %d products, %d operations, %d orders\n",
		len(workers), len(products), len(operations), len(orders))
	return nil
}

// runAssign runs the requested command flow.
func runAssign(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline assign", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		workerID    string
		operationID string
		orderID     string
		planned     int
	)
	fs.StringVar(&workerID, "worker", "", "worker id")
	fs.StringVar(&operationID, "operation", "", "operation id")
	fs.StringVar(&orderID, "order", "", "order id")
	fs.IntVar(&planned, "planned", 0, "planned quantity")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse assign flags: %w", err)
	}

	assignment, err := eng.lifecycle.Assign(ctx, workerID, operationID, orderID, planned)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "assignment %s created: worker=%s operation=%s planned=%d status=%s\n",
		assignment.ID, assignment.WorkerID, assignment.OperationID, assignment.PlannedQty, assignment.Status)
	return nil
}

// runProgress runs the requested command flow.
func runProgress(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline progress", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		id       string
		produced int
		defects  int
	)
	fs.StringVar(&id, "id", "", "assignment id")
	fs.IntVar(&produced, "produced", 0, "produced quantity to add")
	fs.IntVar(&defects, "defects", 0, "defective quantity within the produced amount")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse progress flags: %w", err)
	}

	assignment, err := eng.lifecycle.RecordProgress(ctx, id, produced, defects)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "assignment %s: actual=%d/%d defects=%d status=%s\n",
		assignment.ID, assignment.ActualQty, assignment.PlannedQty, assignment.Defects, assignment.Status)
	return nil
}

// runStatus runs the requested command flow.
func runStatus(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		id string
		to string
	)
	fs.StringVar(&id, "id", "", "assignment id")
	fs.StringVar(&to, "to", "", "target status (in_progress | completed | cancelled)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse status flags: %w", err)
	}

	target := domain.NormalizeStatus(domain.Status(to))
	if !domain.IsValidStatus(target) {
		return fmt.Errorf("unknown status %q", to)
	}
	assignment, err := eng.lifecycle.SetStatus(ctx, id, target)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "assignment %s is now %s\n", assignment.ID, assignment.Status)
	return nil
}

// runInspect runs the requested command flow.
func runInspect(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline inspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		id          string
		inspectorID string
		approved    int
		defects     int
		notes       string
		reject      bool
	)
	fs.StringVar(&id, "id", "", "assignment id")
	fs.StringVar(&inspectorID, "inspector", "", "inspector id")
	fs.IntVar(&approved, "approved", 0, "approved quantity")
	fs.IntVar(&defects, "defects", -1, "defects found (defaults to full quantity on reject)")
	fs.StringVar(&notes, "notes", "", "free-text inspection notes")
	fs.BoolVar(&reject, "reject", false, "reject the assignment outcome")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse inspect flags: %w", err)
	}

	if !reject && defects < 0 {
		defects = 0
	}
	record, assignment, err := eng.quality.Inspect(ctx, app.InspectInput{
		AssignmentID: id,
		InspectorID:  inspectorID,
		ApprovedQty:  approved,
		DefectsFound: defects,
		Notes:        notes,
		Approve:      !reject,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "inspection %d recorded: %s, defects_found=%d; assignment %s actual=%d defects=%d\n",
		record.ID, record.Outcome, record.DefectsFound, assignment.ID, assignment.ActualQty, assignment.Defects)
	return nil
}

// runBulkInspect runs the requested command flow.
func runBulkInspect(ctx context.Context, eng engines, args []string, stdout io.Writer, defaultNotes string) error {
	fs := flag.NewFlagSet("stitchline bulk-inspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		workerID    string
		inspectorID string
		notes       string
	)
	fs.StringVar(&workerID, "worker", "", "worker id")
	fs.StringVar(&inspectorID, "inspector", "", "inspector id")
	fs.StringVar(&notes, "notes", defaultNotes, "free-text inspection notes")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse bulk-inspect flags: %w", err)
	}

	result, err := eng.quality.BulkInspect(ctx, workerID, inspectorID, notes)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "bulk inspection: %d of %d eligible assignments approved\n", result.Inspected, result.Eligible)
	return nil
}

// runPending runs the requested command flow.
func runPending(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline pending", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var asJSON bool
	fs.BoolVar(&asJSON, "json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse pending flags: %w", err)
	}

	pending, err := eng.quality.ListPending(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(stdout, pending)
	}
	if len(pending) == 0 {
		_, _ = fmt.Fprintln(stdout, "no assignments awaiting inspection")
		return nil
	}
	for _, a := range pending {
		_, _ = fmt.Fprintf(stdout, "%s  worker=%s actual=%d defects=%d completed=%s\n",
			a.ID, a.WorkerID, a.ActualQty, a.Defects, formatTimePtr(a.EndTime))
	}
	return nil
}

// runQueue runs the requested command flow.
func runQueue(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline queue", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		workerID string
		asJSON   bool
	)
	fs.StringVar(&workerID, "worker", "", "restrict to one worker")
	fs.BoolVar(&asJSON, "json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse queue flags: %w", err)
	}

	var (
		items []domain.QualityItem
		err   error
	)
	if strings.TrimSpace(workerID) == "" {
		items, err = eng.quality.Queue(ctx)
	} else {
		items, err = eng.quality.WorkerQueue(ctx, workerID)
	}
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(stdout, items)
	}
	for _, item := range items {
		state := "unchecked"
		if item.Checked {
			state = string(item.Current.Outcome)
		}
		_, _ = fmt.Fprintf(stdout, "%s  %s / %s / %s  actual=%d defects=%d  %s\n",
			item.Assignment.ID, item.WorkerName, item.OperationName, item.ProductName,
			item.Assignment.ActualQty, item.Assignment.Defects, state)
	}
	return nil
}

// runWorker runs the requested command flow.
func runWorker(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline worker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		id     string
		asJSON bool
	)
	fs.StringVar(&id, "id", "", "worker id")
	fs.BoolVar(&asJSON, "json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse worker flags: %w", err)
	}

	stats, err := eng.stats.WorkerStats(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(stdout, stats)
	}
	_, _ = fmt.Fprintf(stdout, "worker %s: completed=%d defects=%d\n", id, stats.Completed, stats.Defects)
	for _, a := range stats.Active {
		_, _ = fmt.Fprintf(stdout, "  active   %s  %d/%d  %s\n", a.ID, a.ActualQty, a.PlannedQty, a.Status)
	}
	for _, a := range stats.Recent {
		_, _ = fmt.Fprintf(stdout, "  recent   %s  %d/%d  completed=%s\n", a.ID, a.ActualQty, a.PlannedQty, formatTimePtr(a.EndTime))
	}
	return nil
}

// runStats runs the requested command flow.
func runStats(ctx context.Context, eng engines, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stitchline stats", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		brigade     string
		performance bool
		asJSON      bool
	)
	fs.StringVar(&brigade, "brigade", "", "show one brigade's summary")
	fs.BoolVar(&performance, "performance", false, "show per-brigade quality percentages")
	fs.BoolVar(&asJSON, "json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse stats flags: %w", err)
	}

	switch {
	case performance:
		byBrigade, err := eng.stats.BrigadePerformance(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(stdout, byBrigade)
		}
		for name, quality := range byBrigade {
			_, _ = fmt.Fprintf(stdout, "brigade %s: quality %.1f%%\n", name, quality)
		}
		return nil
	case strings.TrimSpace(brigade) != "":
		summary, err := eng.stats.BrigadeSummary(ctx, brigade)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(stdout, summary)
		}
		_, _ = fmt.Fprintf(stdout, "brigade %s: workers=%d completed=%d defects=%d quality=%.1f%%\n",
			summary.Brigade, summary.WorkerCount, summary.TotalCompleted, summary.TotalDefects, summary.QualityPercent)
		for _, w := range summary.TopWorkers {
			_, _ = fmt.Fprintf(stdout, "  %s (%s): completed=%d defects=%d\n", w.WorkerName, w.Position, w.TotalCompleted, w.TotalDefects)
		}
		return nil
	default:
		summary, err := eng.stats.GlobalSummary(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(stdout, summary)
		}
		_, _ = fmt.Fprintf(stdout, "completed assignments: %d (checked: %d)\n", summary.TotalAssignments, summary.CheckedCount)
		_, _ = fmt.Fprintf(stdout, "completed quantity: %d, defects: %d, quality: %.1f%%\n",
			summary.TotalCompleted, summary.TotalDefects, summary.QualityPercent)
		_, _ = fmt.Fprintf(stdout, "workers: %d\n", summary.TotalWorkers)
		for _, w := range summary.Workers {
			_, _ = fmt.Fprintf(stdout, "  %s (%s): assignments=%d checked=%d completed=%d defects=%d rate=%.1f%%\n",
				w.WorkerName, w.Position, w.TotalAssignments, w.CheckedCount, w.TotalCompleted, w.TotalDefects, w.DefectRate)
		}
		return nil
	}
}

// runOrders runs the requested command flow.
func runOrders(ctx context.Context, eng engines, stdout io.Writer) error {
	summary, err := eng.stats.OrderSummary(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "orders: total=%d completed=%d in_progress=%d\n",
		summary.TotalOrders, summary.CompletedOrders, summary.InProgressOrders)

	active, err := eng.repo.ListActiveOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range active {
		_, _ = fmt.Fprintf(stdout, "  %s  %s  %s  qty=%d priority=%d %s deadline=%s\n",
			o.ID, o.OrderNumber, o.CustomerName, o.Quantity, o.Priority, o.Status, formatTimePtr(o.Deadline))
	}
	return nil
}

// runOperations lists the operation catalog in production sequence.
func runOperations(ctx context.Context, eng engines, stdout io.Writer) error {
	operations, err := eng.repo.ListOperations(ctx)
	if err != nil {
		return err
	}
	for _, op := range operations {
		_, _ = fmt.Fprintf(stdout, "%s  %s  product=%s  %dmin  seq=%d\n",
			op.ID, op.Name, op.ProductID, op.StandardMinutes, op.SequenceOrder)
	}
	return nil
}

// loggingSubscriber forwards change notifications to the runtime log.
type loggingSubscriber struct {
	logger *runtimeLogger
}

func (s loggingSubscriber) HandleEvent(event app.Event) {
	s.logger.Debug("change event", "kind", event.Kind, "assignment_id", event.AssignmentID, "worker_id", event.WorkerID, "status", event.Status)
}

// writeJSON encodes v to stdout with indentation.
func writeJSON(stdout io.Writer, v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatTimePtr renders an optional timestamp for table output.
func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// firstArg returns the first positional argument, if any.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	sinks     []*charmLog.Logger
	closeFile func() error
	devLog    string
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}

	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})

	logger := &runtimeLogger{
		sinks: []*charmLog.Logger{consoleLogger},
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	devLogPath, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	// Keep file output parseable and unstyled while preserving styled console logs.
	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// Debug logs a debug event to all configured sinks.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		sink.Debug(msg, keyvals...)
	}
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		sink.Info(msg, keyvals...)
	}
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		sink.Warn(msg, keyvals...)
	}
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		sink.Error(msg, keyvals...)
	}
}

// devLogFilePath resolves a workspace-local dev log file path for the current run day.
func devLogFilePath(configDir, appName string, now time.Time) (string, error) {
	baseDir := strings.TrimSpace(configDir)
	if baseDir == "" {
		baseDir = ".stitchline/log"
	}
	if !filepath.IsAbs(baseDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		baseDir = filepath.Join(cwd, baseDir)
	}
	fileName := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102"))
	return filepath.Join(filepath.Clean(baseDir), fileName), nil
}

// sanitizeLogFileStem normalizes app names into safe file-name segments.
func sanitizeLogFileStem(appName string) string {
	stem := strings.TrimSpace(appName)
	if stem == "" {
		return "stitchline"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem = strings.Trim(replacer.Replace(stem), "-")
	if stem == "" {
		return "stitchline"
	}
	return stem
}
