// Package main provides the itemforge-mcp binary, an MCP server for AI agents.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/itemforge/pkg/assets"
	"github.com/ormasoftchile/itemforge/pkg/config"
	imcp "github.com/ormasoftchile/itemforge/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/itemforge/pkg/logging"
	"github.com/ormasoftchile/itemforge/pkg/pipeline"
	"github.com/ormasoftchile/itemforge/pkg/widgets"
)

var version = "dev"

var (
	configPath  string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:           "itemforge-mcp",
	Short:         "Serve the itemforge tools over MCP on stdio",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	h := &imcp.Handlers{
		Resolver: assets.NewResolver(cfg.Assets, assets.WithLogger(log)),
		Catalog:  widgets.Default(),
	}

	b, err := cfg.NewBackend(log, "")
	if err != nil {
		// Resolve, plan and schema still work without a backend.
		log.Warn("generation disabled", zap.Error(err))
	} else {
		h.Orchestrator = pipeline.New(b,
			pipeline.WithCatalog(h.Catalog),
			pipeline.WithLimits(cfg.Limits),
			pipeline.WithLogger(log),
			pipeline.WithMetrics(pipeline.NewMetrics(prometheus.DefaultRegisterer)),
		)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	return server.ServeStdio(imcp.NewServer(version, h))
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to the itemforge YAML config")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}
