// Package logging builds the process logger.
//
// Every record is a single JSON object on its own line with the keys
// timestamp, level and message, followed by any structured fields:
//
//	{"timestamp":"2025-01-02T15:04:05.000Z","level":"info","message":"request completed","trace_id":"...","method":"GET","path":"/","status":200,"duration":0.0012}
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EncoderConfig returns the JSON encoder settings shared by all records.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
}

// New returns a JSON logger writing to w at info level and above.
// Writes are serialized so concurrent records never interleave.
func New(w io.Writer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(EncoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(zap.InfoLevel),
	)
	return zap.New(core)
}

// NewStdout returns the process logger writing to standard output.
func NewStdout() *zap.Logger {
	return New(os.Stdout)
}
