package main

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const maxBackoff = 5 * time.Second

type loadConfig struct {
	StreamURL   string
	Connections int
	Duration    time.Duration
}

type loadResult struct {
	Attempts uint64
	Failures uint64
	Events   uint64
}

func (r loadResult) FailureRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Failures) / float64(r.Attempts)
}

// runLoad holds cfg.Connections board streams open until the duration ends,
// reconnecting with backoff, and counts the snapshots received.
func runLoad(ctx context.Context, cfg loadConfig, client *http.Client, logger *log.Logger) loadResult {
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var attempts, failures, events atomic.Uint64
	var wg sync.WaitGroup
	wg.Add(cfg.Connections)
	for i := range cfg.Connections {
		go func() {
			defer wg.Done()
			backoff := time.Second
			for ctx.Err() == nil {
				attempts.Add(1)
				n, err := readStream(ctx, client, cfg.StreamURL)
				events.Add(n)
				if ctx.Err() != nil {
					return
				}
				failures.Add(1)
				logger.WithError(err).WithField("conn", i).Debug("stream dropped")
				if n > 0 {
					backoff = time.Second
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, maxBackoff)
			}
		}()
	}
	wg.Wait()
	return loadResult{Attempts: attempts.Load(), Failures: failures.Load(), Events: events.Load()}
}

// readStream counts SSE data lines until the stream ends.
func readStream(ctx context.Context, client *http.Client, url string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &statusError{code: resp.StatusCode}
	}
	var n uint64
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data:") {
			n++
		}
	}
	return n, scanner.Err()
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "unexpected status " + http.StatusText(e.code) }
