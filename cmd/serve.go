package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lulu_studio/core"
	"lulu_studio/core/validation"
	"lulu_studio/shutdown"
	"lulu_studio/webui"
)

var (
	serveHost       string
	servePort       int
	serveNoValidate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web studio",
	Long: `Run the web studio on HOST:PORT (default localhost:3000).

The configuration is checked first; use --skip-checks to start anyway.
Ctrl+C waits for a running generation to finish and be saved; press it
twice to exit immediately.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Interface to bind (overrides HOST)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveNoValidate, "skip-checks", false, "Skip the startup configuration checks")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	if !serveNoValidate {
		result := validation.NewValidationSuite(cfg).
			WithOutput(cmd.OutOrStdout()).
			WithEnvPath(envFile).
			ValidateQuick()
		if !result.Success {
			return suiteError(result)
		}
	}

	app, err := newApp(cmd.Context(), cfg, appOptions{client: true, serve: true})
	if err != nil {
		return err
	}
	logger := app.Logger
	mgr := shutdown.NewManager(logger)

	serverCfg := webui.DefaultServerConfig()
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	serverCfg.VersionInfo = webui.VersionInfo{
		Version:   core.Version,
		BuildDate: core.BuildTime,
		GitCommit: core.GitCommit,
	}
	deps := webui.ServerDeps{
		Studio:      app.Studio,
		Images:      app.Exporter,
		Metrics:     app.Metrics,
		Prometheus:  app.Prometheus.Handler(),
		Broadcaster: app.Broadcaster,
		Runner:      mgr,
		Logger:      logger,
	}
	if app.Activity != nil {
		deps.Activity = app.Activity
	}
	server, err := webui.NewServer(serverCfg, deps)
	if err != nil {
		app.Close(context.Background())
		return err
	}

	mgr.Register("http-server", shutdown.PriorityHTTP, server.Shutdown)
	app.registerShutdown(mgr)
	mgr.Start()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(mgr.Context())
	}()

	printSuccess(cmd.OutOrStdout(), "Lulu Studio running at http://%s", server.Addr())
	dimColor.Fprintln(cmd.OutOrStdout(), "  Press Ctrl+C to stop")

	var runErr error
	select {
	case <-mgr.Context().Done():
		logger.Info("Shutdown requested")
	case err := <-serveErr:
		// Start only returns early when the listener fails.
		if err != nil {
			runErr = fmt.Errorf("web server: %w", err)
		}
		mgr.Trigger()
	}

	if err := mgr.Shutdown(); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	printSuccess(cmd.OutOrStdout(), "Goodbye!")
	return runErr
}
