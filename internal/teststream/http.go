package teststream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heartline/heartline/pkg/logger"
)

// HTTP status code constants.
const (
	statusOK       = 200
	statusAccepted = 202
)

// Worker configuration constants.
const (
	workerChannelMultiplier = 2
	progressReportInterval  = 1 * time.Second
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// streamSamples drives the sample generators for the configured duration
// and submits readings concurrently through a worker pool.
func streamSamples(ctx context.Context, config *Config, profiles []subjectProfile, stats *Stats) error {
	logger.Get().Info(ctx, "streaming samples",
		logger.Int("subjects", len(profiles)),
		logger.Int("workers", config.Workers),
		logger.Duration("duration", config.Duration),
		logger.Duration("interval", config.SampleInterval))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/samples"

	var (
		generated int64
		submitted int64
		accepted  int64
		rejected  int64
		failed    int64
	)

	sampleChan := make(chan Sample, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	var lastReport atomic.Int64

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for sample := range sampleChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result := submitSingleSample(ctx, client, url, sample)

				atomic.AddInt64(&submitted, 1)
				switch result {
				case "accepted":
					atomic.AddInt64(&accepted, 1)
				case "rejected":
					atomic.AddInt64(&rejected, 1)
				case "failed":
					atomic.AddInt64(&failed, 1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressReportInterval) && lastReport.CompareAndSwap(last, now) {
					logger.Get().Info(ctx, "submission progress",
						logger.Int64("submitted", atomic.LoadInt64(&submitted)),
						logger.Int64("accepted", atomic.LoadInt64(&accepted)),
						logger.Int64("rejected", atomic.LoadInt64(&rejected)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}()
	}

	// Generate samples on a shared ticker; every tick emits one reading
	// per subject.
	go func() {
		defer close(sampleChan)

		ticker := time.NewTicker(config.SampleInterval)
		defer ticker.Stop()

		start := time.Now()
		deadline := start.Add(config.Duration)

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if now.After(deadline) {
					return
				}
				elapsed := now.Sub(start)
				for _, p := range profiles {
					select {
					case <-ctx.Done():
						return
					case sampleChan <- p.nextSample(elapsed):
						atomic.AddInt64(&generated, 1)
					}
				}
			}
		}
	}()

	wg.Wait()

	stats.SamplesGenerated = int(atomic.LoadInt64(&generated))
	stats.SamplesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.SamplesAccepted = int(atomic.LoadInt64(&accepted))
	stats.SamplesRejected = int(atomic.LoadInt64(&rejected))
	stats.SamplesFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "sample submission completed",
		logger.Int("accepted", stats.SamplesAccepted),
		logger.Int("rejected", stats.SamplesRejected),
		logger.Int("failed", stats.SamplesFailed))

	return nil
}

// submitSingleSample submits a single sample and returns the result
func submitSingleSample(ctx context.Context, client *HTTPClient, url string, sample Sample) string {
	resp, err := client.Post(ctx, url, sample)
	if err != nil {
		return "failed"
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	switch resp.StatusCode {
	case statusAccepted:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Status != "accepted" {
			return "rejected"
		}
		return "accepted"
	case statusOK:
		return "accepted"
	default:
		return "rejected"
	}
}
