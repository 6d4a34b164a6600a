package teststream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heartline/heartline/pkg/logger"
)

// settleDelay gives the service time to close and flush the last windows
// before the final stats read.
const settleDelay = 5 * time.Second

// Run executes the complete heartbeat stream test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting heartline stream test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("subjects", config.Subjects),
		logger.Duration("duration", config.Duration),
		logger.Duration("interval", config.SampleInterval),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	profiles := newSubjectProfiles(config.Subjects)

	if err := streamSamples(ctx, config, profiles, stats); err != nil {
		return fmt.Errorf("sample submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for open windows to close")
	time.Sleep(settleDelay)

	if err := reportServiceStats(ctx, config); err != nil {
		logger.Get().Warn(ctx, "failed to read service stats", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Any 200 counts as healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != statusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// reportServiceStats fetches and logs the aggregator's view of the run.
func reportServiceStats(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)

	resp, err := client.Get(ctx, config.BaseURL+"/stats")
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read stats body: %w", err)
	}
	if resp.StatusCode != statusOK {
		return fmt.Errorf("stats request failed with status: %d", resp.StatusCode)
	}

	var serviceStats map[string]interface{}
	if err := json.Unmarshal(body, &serviceStats); err != nil {
		return fmt.Errorf("failed to decode stats: %w", err)
	}

	logger.Get().Info(ctx, "service statistics", logger.Any("stats", serviceStats))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, samplesPerSecond float64

	if stats.SamplesSubmitted > 0 {
		successRate = float64(stats.SamplesAccepted) / float64(stats.SamplesSubmitted) * 100
	}

	if stats.Duration > 0 {
		samplesPerSecond = float64(stats.SamplesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("samplesGenerated", stats.SamplesGenerated),
		logger.Int("samplesSubmitted", stats.SamplesSubmitted),
		logger.Int("samplesAccepted", stats.SamplesAccepted),
		logger.Int("samplesRejected", stats.SamplesRejected),
		logger.Int("samplesFailed", stats.SamplesFailed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("samplesPerSecond", samplesPerSecond))
}
