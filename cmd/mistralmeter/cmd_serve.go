package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malekgatoufi/mistralmeter/internal/webapi"
	"github.com/malekgatoufi/mistralmeter/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var port int
	var datasetsDir string
	var corsOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP evaluation API server",
		Long: `Start an HTTP server exposing the evaluation engine as a JSON API.

The server binds to loopback (127.0.0.1) and stores results in memory;
they are lost when the process exits.

Endpoints:
  GET  /api/health          Health check
  GET  /api/models          List known models
  GET  /api/datasets        List datasets in the datasets directory
  POST /api/evaluate        Evaluate one prompt (runs > 1 for variance)
  POST /api/evaluate/stream Stream response tokens as server-sent events
  POST /api/evaluate/batch  Evaluate a list of prompts
  POST /api/compare         Compare two models on one prompt
  POST /api/cost            Estimate cost for a token count
  GET  /api/results         List stored results
  GET  /api/results/{id}    Get one stored result`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, 0)
			if err != nil {
				return err
			}

			if port == 0 {
				port = cfg.Server.Port
			}
			if datasetsDir == "" {
				datasetsDir = cfg.Paths.Datasets
			}

			handlers := webapi.NewHandlers(eng, webapi.NewMemoryStore(), datasetsDir)
			server := webserver.New(webserver.Config{
				Port:        port,
				Handlers:    handlers,
				CORSOrigins: corsOrigins,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVar(&datasetsDir, "datasets", "", "Directory of dataset files served by the API (default from config)")
	cmd.Flags().StringArrayVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origin (can be repeated)")

	return cmd
}
