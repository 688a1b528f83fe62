package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lulu_studio/asset"
	"lulu_studio/core"
	"lulu_studio/db"
	"lulu_studio/history"
	"lulu_studio/imagegen"
	"lulu_studio/logging"
	"lulu_studio/metrics"
	"lulu_studio/shutdown"
	"lulu_studio/studio"
	"lulu_studio/webui"
)

// metricsNamespace prefixes every Prometheus series.
const metricsNamespace = "lulu_studio"

// appOptions selects which parts of the App a command needs.
type appOptions struct {
	// client builds the remote client and the orchestrator.
	client bool
	// serve keeps info logs on the console and adds the WebSocket feed.
	serve bool
}

// App is the wired studio shared by the commands.
type App struct {
	Config *core.Config
	Logger *logging.Logger

	History  *history.Store
	Exporter *imagegen.Exporter

	Metrics     *metrics.MetricsStore
	Prometheus  *metrics.Prometheus
	Broadcaster *webui.WebSocketBroadcaster

	// Keys is nil unless the provider is Gemini.
	Keys   *imagegen.KeyRing
	Client imagegen.Client
	Studio *studio.Orchestrator

	// Database and Activity are nil for the file backend.
	Database *db.Database
	Activity *db.Repository
	recorder *db.ActivityRecorder

	unsubscribe func()
}

// loadConfig loads the configuration. Errors are configuration errors.
func loadConfig() (*core.Config, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, withExitCode(core.ExitCodeConfig, err)
	}
	return cfg, nil
}

// newLogger builds the logger for a command. Outside serve the console only
// shows warnings so log lines do not mix with command output.
func newLogger(cfg *core.Config, opts appOptions) (*logging.Logger, error) {
	level := logging.ParseLogLevelString(cfg.LogLevel, zapcore.InfoLevel)
	logOpts := logging.Options{
		DevMode: cfg.DevMode,
		Level:   level,
		File:    logging.DefaultFileWriterConfig(),
	}
	if cfg.LogFile != "" {
		logOpts.FilePath = cfg.LogFile
		if !filepath.IsAbs(cfg.LogFile) {
			logOpts.FilePath = filepath.Join(cfg.DataDir, cfg.LogFile)
		}
	}
	if !opts.serve && !verbose {
		quiet := zapcore.WarnLevel
		logOpts.ConsoleLevel = &quiet
	}
	return logging.NewLogger(logOpts)
}

// newApp wires storage, metrics and, when asked, the remote client and
// orchestrator. The caller owns the App and must Close it.
func newApp(ctx context.Context, cfg *core.Config, opts appOptions) (app *App, err error) {
	if err := core.EnsureDirectory(cfg.DataDir); err != nil {
		return nil, withExitCode(core.ExitCodeConfig, fmt.Errorf("create data directory: %w", err))
	}
	logger, err := newLogger(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	slot, err := app.openSlot()
	if err != nil {
		return nil, err
	}
	app.History = history.Open(ctx, slot,
		history.WithLimit(cfg.HistoryLimit),
		history.WithLogger(logger.Named("history")),
	)

	provider := cfg.ResolveProvider()
	app.Prometheus = metrics.NewPrometheus(metricsNamespace)
	storeCfg := metrics.DefaultStoreConfig()
	storeCfg.Version = core.Version
	storeCfg.Provider = provider
	storeCfg.Prometheus = app.Prometheus
	app.Metrics = metrics.NewMetricsStore(storeCfg, time.Now())
	app.updateHistoryStatus()

	recorders := []metrics.TaskRecorder{app.Metrics}
	if app.Database != nil {
		app.Activity = db.NewRepository(app.Database)
		app.recorder = db.NewActivityRecorder(app.Activity, logger.Named("activity"))
		recorders = append(recorders, app.recorder)
	}
	if opts.serve {
		app.Broadcaster = webui.NewWebSocketBroadcaster(logger)
		recorders = append(recorders, app.Broadcaster)
	}

	app.Exporter, err = imagegen.NewExporter(cfg, logger.Named("export"))
	if err != nil {
		return nil, err
	}

	if !opts.client {
		return app, nil
	}

	if provider == core.ProviderGemini {
		app.Keys = imagegen.NewKeyRing(cfg.GeminiAPIKey, cfg.AllowKeySelection)
	}
	app.Client, err = imagegen.NewClientFromConfig(cfg, app.Keys, logger)
	if err != nil {
		return nil, withExitCode(core.ExitCodeConfig, err)
	}

	defaults := studio.Settings{
		AspectRatio: asset.AspectRatio(cfg.DefaultAspectRatio),
		Style:       cfg.DefaultStyle,
	}
	studioCfg := studio.Config{
		Client:   app.Client,
		History:  app.History,
		Recorder: metrics.Fanout(recorders...),
		Logger:   logger,
		Defaults: defaults,
	}
	if app.Keys != nil {
		studioCfg.Credentials = app.Keys
	}
	app.Studio, err = studio.New(studioCfg)
	if err != nil {
		return nil, err
	}
	app.unsubscribe = app.Studio.Subscribe(func(studio.Snapshot) {
		app.updateHistoryStatus()
	})

	logger.Info("Studio ready",
		zap.String("provider", provider),
		zap.String("storage", cfg.StorageBackend),
		zap.String("slot", cfg.HistorySlot),
		zap.Int("history", app.History.Len()),
	)
	return app, nil
}

func (a *App) openSlot() (history.Slot, error) {
	cfg := a.Config
	switch cfg.StorageBackend {
	case core.StorageSQLite:
		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.Database = database
		return db.NewSlotRepository(database, cfg.HistorySlot), nil
	default:
		slot, err := history.NewFileSlot(cfg.HistorySlot, cfg.SlotFilePath())
		if err != nil {
			return nil, fmt.Errorf("open history slot: %w", err)
		}
		return slot, nil
	}
}

func (a *App) updateHistoryStatus() {
	a.Metrics.UpdateHistoryStatus(metrics.HistoryStatus{
		Slot:         a.History.SlotName(),
		Backend:      a.Config.StorageBackend,
		Count:        a.History.Len(),
		SaveFailures: a.History.SaveFailures(),
		LastUpdate:   time.Now(),
	})
}

// registerShutdown hands the App's resources to m in place of Close.
func (a *App) registerShutdown(m *shutdown.Manager) {
	if a.recorder != nil {
		m.Register("activity-log", shutdown.PriorityHistory, a.recorder.Close)
	}
	if a.Database != nil {
		m.Register("database", shutdown.PriorityDatabase, func(ctx context.Context) error {
			return a.Database.Close()
		})
	}
	m.Register("upscale-temp-files", shutdown.PriorityTempFiles, shutdown.CleanupUpscaleTemp(a.Logger))
	m.Register("logger", shutdown.PriorityLogger, func(ctx context.Context) error {
		// Syncing a console on stderr fails on some platforms; that is not a shutdown failure.
		_ = a.Logger.Sync()
		return nil
	})
}

// Close releases everything the App opened. It is safe on a partly built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close(ctx))
	}
	if a.Database != nil {
		errs = append(errs, a.Database.Close())
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

// withApp loads the configuration, builds an App and runs fn, closing the
// App afterwards.
func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, app *App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	if err := app.Close(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
