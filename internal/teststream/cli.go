package teststream

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/heartline/heartline/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "stream_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the stream test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Heartline Stream Test Tool
==========================

A concurrent tool for streaming synthetic heartbeat samples into a running
heartline service and reading back its aggregation statistics.

Usage:
  go run cmd/test-stream/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9090")
  -subjects int
        Number of concurrent subjects to simulate (default 10)
  -duration duration
        How long to stream samples (default 2m)
  -interval duration
        Interval between samples per subject (default 1s)
  -workers int
        Number of concurrent submission workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -log string
        Log file for test output (default: stream_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Stream with default settings
  go run cmd/test-stream/main.go

  # Simulate a larger cohort at a faster rate
  go run cmd/test-stream/main.go -subjects 100 -interval 250ms -duration 5m

  # Point at a non-default service address
  go run cmd/test-stream/main.go -url http://localhost:8080
`)
}
