package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/obsdemo/pkg/tracing"
)

// defaultEndpoints cycles through every demo route, including the
// failing ones, so each metric label set gets traffic.
var defaultEndpoints = []string{
	"/",
	"/hello",
	"/fibonacci/recursive/20",
	"/fibonacci/iterative/50",
	"/error",
	"/fibonacci/recursive/99",
}

// simulator generates predictable traffic against a running server
type simulator struct {
	target    string
	endpoints []string
	client    *http.Client
	logger    *zap.Logger
}

func newSimulator(target string, logger *zap.Logger) *simulator {
	return &simulator{
		target:    target,
		endpoints: defaultEndpoints,
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
	}
}

// run makes one request per tick until ctx is cancelled or limit requests
// have been sent. A limit of 0 means no limit.
func (s *simulator) run(ctx context.Context, interval time.Duration, limit int) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("traffic simulator started",
		zap.String("target", s.target),
		zap.Duration("interval", interval),
	)

	sent := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("traffic simulator stopped", zap.Int("requests", sent))
			return sent
		case <-ticker.C:
			// Cycle through endpoints in order for predictability
			endpoint := s.endpoints[sent%len(s.endpoints)]
			sent++

			status, traceID, err := s.hit(ctx, endpoint)
			if err != nil {
				s.logger.Warn("traffic request failed", zap.String("endpoint", endpoint), zap.Error(err))
			} else {
				s.logger.Info("traffic request",
					zap.Int("n", sent),
					zap.String("endpoint", endpoint),
					zap.Int("status", status),
					zap.String("trace_id", traceID.String()),
				)
			}

			if limit > 0 && sent >= limit {
				return sent
			}
		}
	}
}

// hit requests one endpoint and returns its status and trace ID. A
// response without a valid X-Trace-ID is an error.
func (s *simulator) hit(ctx context.Context, endpoint string) (int, tracing.TraceID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.target+endpoint, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	traceID, err := tracing.ParseTraceID(resp.Header.Get(tracing.HeaderTraceID))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("response %d from %s: %w", resp.StatusCode, endpoint, err)
	}
	return resp.StatusCode, traceID, nil
}
