// Package logger builds the process logger: zerolog underneath, slog on top,
// with request-scoped fields carried in the context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	SampleN   int // keep 1 of every N events; 0 keeps all
	Scenario  string
	Component string
}

type ctxKey string

const (
	ctxReqIDKey  ctxKey = "request_id"
	ctxRoute     ctxKey = "route"
	ctxComponent ctxKey = "component"
	ctxScenario  ctxKey = "scenario"
)

// contextFields are copied from the context onto every line, in this order.
var contextFields = []ctxKey{ctxReqIDKey, ctxScenario, ctxComponent, ctxRoute}

func withValue(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func value(ctx context.Context, k ctxKey) string {
	s, _ := ctx.Value(k).(string)
	return s
}

// WithRequestID stores reqID, minting one when it is empty.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return withValue(ctx, ctxReqIDKey, reqID)
}

// WithRoute tags log lines with the matched route pattern, e.g. /search.
func WithRoute(ctx context.Context, route string) context.Context {
	return withValue(ctx, ctxRoute, route)
}

func WithScenario(ctx context.Context, scenario string) context.Context {
	return withValue(ctx, ctxScenario, scenario)
}

func WithComponent(ctx context.Context, component string) context.Context {
	return withValue(ctx, ctxComponent, component)
}

func RequestID(ctx context.Context) string { return value(ctx, ctxReqIDKey) }

func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// ParseLevel maps LOG_LEVEL values onto zerolog levels; unknown values mean info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Build configures zerolog globals (field names, level) and returns the root
// logger. Lines go to stdout when out is nil.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "msg"
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out)
	if cfg.SampleN > 1 {
		n := uint32(math.MaxUint32)
		if uint64(cfg.SampleN) < uint64(n) {
			n = uint32(cfg.SampleN)
		}
		zl = zl.Sample(&zerolog.BasicSampler{N: n})
	}

	w := zl.With().Timestamp()
	if cfg.Scenario != "" {
		w = w.Str("scenario", cfg.Scenario)
	}
	if cfg.Component != "" {
		w = w.Str("component", cfg.Component)
	}
	return w.Logger()
}

// New builds the zerolog root and returns it wrapped as a slog logger.
func New(cfg Config, out io.Writer) *slog.Logger {
	zl := Build(cfg, out)
	return NewSlog(&zl)
}

// FromContext returns parent extended with the context fields that are set.
// A nil parent discards output.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	base := zerolog.Nop()
	if parent != nil {
		base = *parent
	}
	w := base.With()
	for _, k := range contextFields {
		if v := value(ctx, k); v != "" {
			w = w.Str(string(k), v)
		}
	}
	l := w.Logger()
	return &l
}
