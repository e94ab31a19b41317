package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sveniu/ssh-scankeys/agentscan"
	"github.com/sveniu/ssh-scankeys/authkeys"
	"github.com/sveniu/ssh-scankeys/config"
	"github.com/sveniu/ssh-scankeys/keyscan"
	"github.com/sveniu/ssh-scankeys/logger"
	"github.com/sveniu/ssh-scankeys/output"
	"github.com/sveniu/ssh-scankeys/tracing"
	"github.com/sveniu/ssh-scankeys/version"
)

// Exit statuses: 1 for configuration problems, 2 when the scan cannot run at
// all (no readable root, unusable output destination).
const (
	exitUsage  = 1
	exitNoRoot = 2
)

func main() {
	if err := tracing.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start trace: %v\n", err)
	} else {
		defer tracing.Stop()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(exitUsage)
	}

	logger.Init(cfg.LogLevel)
	logger.Debugf("ssh-scankeys %s starting in %s mode", version.Version, cfg.Mode)

	startTime := time.Now()
	metrics := output.Metrics{
		StartTime: startTime.Format(time.RFC3339),
	}

	w, err := output.New(cfg, &metrics)
	if err != nil {
		logger.Errorf("Failed to initialize output: %v", err)
		os.Exit(exitNoRoot)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	// Agent queries are independent of the file pipeline and run alongside it.
	var wg sync.WaitGroup
	if cfg.ScanAgents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agentscan.Scan(ctx, cfg, w)
		}()
	}

	if cfg.ScanKeys {
		if err := keyscan.Scan(ctx, cfg, w); err != nil {
			if errors.Is(err, keyscan.ErrNoReadableRoot) {
				logger.Errorf("Key scan aborted: %v", err)
				wg.Wait()
				w.Close()
				os.Exit(exitNoRoot)
			}
			logger.Errorf("Key scan failed: %v", err)
		}
	}

	if cfg.ScanAuthorized {
		if err := authkeys.Scan(ctx, cfg, w); err != nil {
			logger.Errorf("Authorized keys scan failed: %v", err)
		}
	}

	wg.Wait()

	metrics.EndTime = time.Now().Format(time.RFC3339)
	w.SetMetrics(metrics)
	logger.Infof("Scan completed in %s", time.Since(startTime).Round(time.Millisecond))
}

func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Interrupt signal received. Shutting down...")
	cancel()
}
