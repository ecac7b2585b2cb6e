package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/storyforge/internal/batches"
	"github.com/jackzampolin/storyforge/internal/jobcfg"
	"github.com/jackzampolin/storyforge/internal/metrics"
	"github.com/jackzampolin/storyforge/internal/server"
	"github.com/jackzampolin/storyforge/internal/svcctx"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storyforge server",
	Long: `Start the storyforge HTTP server.

Batches started through the API run in the background and outlive the
request that started them. Edits to the config file are picked up without
a restart; running batches keep the settings they started with.

The server provides:
  - /health             - Basic server health check
  - /status             - Backend reachability and progress summary
  - /batches            - Start (POST) and list (GET) batches
  - /batches/{id}       - Batch record with live progress
  - /batches/{id}/stop  - Stop a running batch
  - /metrics            - Prometheus metrics

Examples:
  storyforge serve                    # Start on server.host:server.port
  storyforge serve --port 3000        # Start on custom port
  storyforge serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		if err := a.home.EnsureExists(); err != nil {
			return err
		}
		a.config.WatchConfig()

		cfg := a.config.Get()
		m := metrics.New()
		b := jobcfg.NewBuilder(cfg, a.logger, m)
		client := b.Backend()

		p, err := b.Planner(client)
		if err != nil {
			return err
		}
		bm := batches.NewManager(batches.Config{
			Planner:    p,
			ArchiveDir: a.home.RunsPath(),
			Logger:     a.logger,
		})

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		services := &svcctx.Services{
			Backend: client,
			Batches: bm,
			Config:  a.config,
			Metrics: m,
			Logger:  a.logger,
			Home:    a.home,
		}

		srv, err := server.New(server.Config{
			Host:           host,
			Port:           port,
			Services:       services,
			ConfigManager:  a.config,
			PlannerFactory: jobcfg.PlannerFactory(client, a.logger, m),
			Logger:         a.logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (default server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8090", "Port to listen on (default server.port)")

	rootCmd.AddCommand(serveCmd)
}
