// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Avalanche-io/edl-changelog/internal/compare"
	"github.com/Avalanche-io/edl-changelog/internal/config"
	"github.com/Avalanche-io/edl-changelog/internal/logging"
	"github.com/Avalanche-io/edl-changelog/internal/publish"
	httptransport "github.com/Avalanche-io/edl-changelog/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config load: %v", err)
	}

	logger := logging.New(cfg.Logging)

	opts, err := compare.OptionsFromConfig(cfg)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	var publisher compare.Publisher
	if cfg.NATS.URL != "" {
		p, err := publish.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject, cfg.NATS.MaxReconnect, cfg.NATS.ReconnectWait, logger)
		if err != nil {
			logger.Fatalf("Failed to create NATS publisher: %v", err)
		}
		defer p.Close()
		publisher = p
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	handler := httptransport.NewRouter(httptransport.Deps{
		Comparer:     compare.NewService(opts, logger, publisher),
		Logger:       logger,
		FPS:          cfg.FPS,
		Delimiter:    cfg.Delimiter(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Version:      Version,
		Commit:       Commit,
		BuildDate:    BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":       cfg.HTTP.Addr,
			"version":    Version,
			"commit":     Commit,
			"build_date": BuildDate,
		}).Info("api listening")

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Errorf("server failed: %v", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
}
