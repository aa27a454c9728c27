package main

import (
	"InsMarket/internal/observability"
	"InsMarket/internal/query"
	"InsMarket/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP/JSON",
		Long: `Serve the SQL store read-only over HTTP/JSON.

Routes:
  GET /runs
  GET /runs/{run}/integrity
  GET /runs/{run}/accounts/{account}     e.g. insurer:3:capital
  GET /runs/{run}/insurers/{insurer}
  GET /runs/{run}/journals?account=&after=&limit=
  GET /metrics, /healthz, /readyz

Examples:
  insmarket serve --store-dsn runs.db --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFor(cmd, "serve")
			addr, _ := cmd.Flags().GetString("addr")

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			metrics := observability.NewMetrics(reg)

			store, err := openStore(cmd, metrics)
			if err != nil {
				return err
			}
			defer store.Close()

			health := observability.NewHealthChecker()
			srv, err := server.NewHTTPServer(addr, &server.ServerDeps{
				QueryService:  query.NewQueryService(store),
				HealthChecker: health,
				Registry:      reg,
				Logger:        logger,
			})
			if err != nil {
				return err
			}
			health.SetReady(true)
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	return cmd
}
