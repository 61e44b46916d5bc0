package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dj-oyu/people-count-monitor/internal/config"
	"github.com/dj-oyu/people-count-monitor/internal/logger"
)

func main() {
	var (
		configPath string
		logLevel   string
		logColor   bool
		httpAddr   string
		minPeople  int
	)
	defaults := config.DefaultConfig()

	flag.StringVar(&configPath, "config", "", "YAML config file (optional; the built-in opencv/dnn defaults need a -tags gocv build)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error, silent)")
	flag.BoolVar(&logColor, "log-color", true, "Enable colored log output")
	flag.StringVar(&httpAddr, "http", defaults.HTTPAddr, "HTTP server address (empty disables the web monitor)")
	flag.IntVar(&minPeople, "min-people", defaults.MinPeople, "Minimum number of people required in view")
	flag.Parse()

	// Initialize logger
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	l := logger.Init(level, os.Stderr, logColor)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	// Explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.HTTPAddr = httpAddr
		case "min-people":
			cfg.MinPeople = minPeople
		}
	})
	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logFile, err := logger.RollingFile(cfg.LogDir, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	l.AddOutput(logFile)

	logger.Info("Main", "People count monitor starting...")
	logger.Info("Main", "Log level: %s, log dir: %s", level, cfg.LogDir)

	code := run(cfg)
	logFile.Close()
	os.Exit(code)
}

func run(cfg config.Config) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("Main", "Startup failed: %v", err)
		return 1
	}

	if err := a.start(ctx); err != nil {
		logger.Error("Main", "Failed to start monitoring: %v", err)
		a.shutdown()
		return 1
	}

	// Wait for shutdown signal or loop exit
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("Main", "Received %s, stopping monitoring...", sig)
	case <-a.monitor.Done():
		if msg := a.monitor.State().LastError; msg != "" {
			logger.Error("Main", "Monitoring ended: %s", msg)
			exitCode = 1
		}
	}

	a.shutdown()
	logger.Info("Main", "Shutdown complete")
	return exitCode
}
