package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/espalier-ai/espalier"
	"github.com/espalier-ai/espalier/internal/httpapi"
	"github.com/espalier-ai/espalier/internal/logging"
	"github.com/espalier-ai/espalier/pkg/adapters/memory"
	redisstore "github.com/espalier-ai/espalier/pkg/adapters/redis"
	"github.com/espalier-ai/espalier/pkg/adapters/rest"
	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// serveConfig is the process configuration, read from the environment
// and overridable by flags.
type serveConfig struct {
	Port              string        `env:"ESPALIER_PORT" envDefault:"5005"`
	ActionEndpoint    string        `env:"ESPALIER_ACTION_ENDPOINT"`
	ActionToken       string        `env:"ESPALIER_ACTION_TOKEN"`
	ActionTimeout     time.Duration `env:"ESPALIER_ACTION_TIMEOUT" envDefault:"10s"`
	CompressThreshold int           `env:"ESPALIER_COMPRESS_THRESHOLD"`
	RedisAddr         string        `env:"ESPALIER_REDIS_ADDR"`
	RedisPassword     string        `env:"ESPALIER_REDIS_PASSWORD"`
	RedisDB           int           `env:"ESPALIER_REDIS_DB"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP action execution server",
	Long:  `Serves the engine over HTTP: one endpoint per conversation turn, with tracker persistence in memory or Redis.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("port", "", "Port to listen on (overrides ESPALIER_PORT)")
	serveCmd.Flags().String("action-endpoint", "", "Action server URL (overrides ESPALIER_ACTION_ENDPOINT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	var cfg serveConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if endpoint, _ := cmd.Flags().GetString("action-endpoint"); endpoint != "" {
		cfg.ActionEndpoint = endpoint
	}

	domainPath, _ := cmd.Flags().GetString("domain")
	d, err := domain.LoadFile(domainPath)
	if err != nil {
		return err
	}

	logger := logging.New(slog.LevelInfo)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	opts := []espalier.Option{
		espalier.WithLogger(logger),
		espalier.WithMetrics(reg),
	}
	if cfg.ActionEndpoint != "" {
		opts = append(opts, espalier.WithActionServer(rest.Config{
			URL:               cfg.ActionEndpoint,
			Token:             cfg.ActionToken,
			Timeout:           cfg.ActionTimeout,
			CompressThreshold: cfg.CompressThreshold,
		}))
	}
	engine := espalier.New(opts...)

	var store ports.TrackerStore
	if cfg.RedisAddr != "" {
		store = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		logger.Info("using redis tracker store", "addr", cfg.RedisAddr)
	} else {
		store = memory.New()
		logger.Info("using in-memory tracker store")
	}

	handler := httpapi.NewHandler(engine, store, d,
		httpapi.WithLogger(logger),
		httpapi.WithHandler("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting espalier server", "addr", srv.Addr, "domain", d.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown did not complete", "error", err)
			return srv.Close()
		}
	}
	return nil
}
