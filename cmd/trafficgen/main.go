// Command trafficgen sends a steady stream of requests to the demo
// server so its metrics, logs and live feed have something to show.
//
// Environment:
//
//	TRAFFIC_TARGET    base URL of the server (default http://localhost:3000)
//	TRAFFIC_INTERVAL  delay between requests (default 1s)
//	TRAFFIC_LIMIT     stop after this many requests, 0 for no limit
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/obsdemo/pkg/logging"
)

const (
	defaultTarget   = "http://localhost:3000"
	defaultInterval = time.Second
)

func main() {
	logger := logging.NewStdout()
	defer logger.Sync() //nolint:errcheck

	target := getEnv("TRAFFIC_TARGET", defaultTarget)
	interval := getEnvDuration(logger, "TRAFFIC_INTERVAL", defaultInterval)
	limit := getEnvInt(logger, "TRAFFIC_LIMIT", 0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	newSimulator(target, logger).run(ctx, interval, limit)
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvDuration gets a positive duration from an environment variable or returns default
func getEnvDuration(logger *zap.Logger, key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil && parsed > 0 {
			return parsed
		}
		logger.Warn("invalid environment value, using default",
			zap.String("key", key), zap.String("value", val), zap.Duration("default", defaultValue))
	}
	return defaultValue
}

// getEnvInt gets a non-negative int from an environment variable or returns default
func getEnvInt(logger *zap.Logger, key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
		logger.Warn("invalid environment value, using default",
			zap.String("key", key), zap.String("value", val), zap.Int("default", defaultValue))
	}
	return defaultValue
}
