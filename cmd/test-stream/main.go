package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/heartline/heartline/internal/teststream"
)

// Default configuration constants.
const (
	defaultSubjects       = 10
	defaultDuration       = 2 * time.Minute
	defaultSampleInterval = 1 * time.Second
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 10 * time.Second
	defaultTestTimeout    = 30 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9090", "Base URL of the service")
		subjects = flag.Int("subjects", defaultSubjects, "Number of concurrent subjects to simulate")
		duration = flag.Duration("duration", defaultDuration, "How long to stream samples")
		interval = flag.Duration("interval", defaultSampleInterval, "Interval between samples per subject")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submission workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Log file for test output (default: stream_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		teststream.ShowHelp()
		return
	}

	if err := teststream.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &teststream.Config{
		BaseURL:        *baseURL,
		Subjects:       *subjects,
		Duration:       *duration,
		SampleInterval: *interval,
		Workers:        *workers,
		Timeout:        *timeout,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	if err := teststream.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
