// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"

	"github.com/Avalanche-io/edl-changelog/changelog"
	"github.com/Avalanche-io/edl-changelog/internal/compare"
	"github.com/Avalanche-io/edl-changelog/internal/config"
	"github.com/Avalanche-io/edl-changelog/internal/logging"
	"github.com/Avalanche-io/edl-changelog/internal/publish"
)

type cliFlags struct {
	ConfigPath  string
	OldPath     string
	NewPath     string
	FPS         int
	KeyStrategy string
	Collision   string
	OutputPath  string
	Delimiter   string
	Clipboard   bool
	FailOnEmpty bool
}

func main() {
	flags := parseFlags()
	if flags.OldPath == "" || flags.NewPath == "" {
		fmt.Fprintln(os.Stderr, "usage: edldiff -old OLD.edl -new NEW.edl [-fps 25] [-key identity|timeline] [-o out.csv]")
		os.Exit(2)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		logrus.Fatalf("config load: %v", err)
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, flags, logger, publisher); err != nil {
		logger.Errorf("edldiff: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts compare.Options, flags *cliFlags, logger *logrus.Logger, publisher compare.Publisher) error {
	oldFile, err := os.Open(flags.OldPath)
	if err != nil {
		return err
	}
	defer oldFile.Close()

	newFile, err := os.Open(flags.NewPath)
	if err != nil {
		return err
	}
	defer newFile.Close()

	svc := compare.NewService(opts, logger, publisher)
	report, err := svc.Compare(ctx, compare.Request{
		OldName: filepath.Base(flags.OldPath),
		NewName: filepath.Base(flags.NewPath),
		Old:     oldFile,
		New:     newFile,
	})
	if err != nil {
		return err
	}

	for _, w := range report.Warnings {
		logger.Warn(w)
	}

	var buf bytes.Buffer
	cw := changelog.NewWriter(&buf)
	cw.SetDelimiter(cfg.Delimiter())
	if err := cw.Write(report.Records); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}

	if cfg.Output.Path == "" {
		if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
			return err
		}
	} else {
		if err := os.WriteFile(cfg.Output.Path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", cfg.Output.Path, err)
		}
		logger.Infof("changelog written to %s", cfg.Output.Path)
	}

	if flags.Clipboard {
		if err := clipboard.WriteAll(buf.String()); err != nil {
			logger.Warnf("copy to clipboard: %v", err)
		}
	}
	return nil
}

func applyFlags(cfg *config.Config, f *cliFlags) {
	if f.FPS != 0 {
		cfg.FPS = f.FPS
	}
	if f.KeyStrategy != "" {
		cfg.KeyStrategy = f.KeyStrategy
	}
	if f.Collision != "" {
		cfg.Collision = f.Collision
	}
	if f.OutputPath != "" {
		cfg.Output.Path = f.OutputPath
	}
	if f.Delimiter != "" {
		cfg.Output.Delimiter = f.Delimiter
	}
	if f.FailOnEmpty {
		cfg.FailOnEmpty = true
	}
}

func parseFlags() *cliFlags {
	f := &cliFlags{}
	flag.StringVar(&f.ConfigPath, "config", "", "path to YAML config file")
	flag.StringVar(&f.OldPath, "old", "", "old EDL file")
	flag.StringVar(&f.NewPath, "new", "", "new EDL file")
	flag.IntVar(&f.FPS, "fps", 0, "frame rate for both files (default from config, 25)")
	flag.StringVar(&f.KeyStrategy, "key", "", "matching key: identity or timeline")
	flag.StringVar(&f.Collision, "collision", "", "duplicate key policy: last or first")
	flag.StringVar(&f.OutputPath, "o", "", "write changelog to file instead of stdout")
	flag.StringVar(&f.Delimiter, "delimiter", "", "output field delimiter")
	flag.BoolVar(&f.Clipboard, "clipboard", false, "also copy the changelog to the clipboard")
	flag.BoolVar(&f.FailOnEmpty, "fail-on-empty", false, "fail when either EDL has no events")
	flag.Parse()
	return f
}
