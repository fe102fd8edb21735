// Package logger provides the process-wide structured logger backed by
// zerolog. Call Init once at startup, then Get or Component anywhere.
//
// Every line passes through a redacting writer: fields named after
// credentials are replaced before they reach the output.
package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger behaviour at initialisation time.
type Options struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Defaults to "info" when empty or unrecognised.
	Level string
	// Pretty enables coloured console output for development. JSON otherwise.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service is attached to every line as the "service" field when set.
	Service string
}

// redacted replaces the value of any field in sensitiveFields.
const redacted = "[REDACTED]"

var sensitiveFields = map[string]struct{}{
	"password":           {},
	"password_hash":      {},
	"temporary_password": {},
	"token":              {},
	"authorization":      {},
}

var (
	mu       sync.RWMutex
	instance *zerolog.Logger
)

// Init builds the process logger. Only the first call has any effect until
// Reset is called.
func Init(opts Options) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return *instance
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	ctx := zerolog.New(redactWriter{next: out}).
		Level(lvl).
		With().
		Timestamp().
		Caller()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	l := ctx.Logger()
	instance = &l
	return l
}

// Get returns the process logger. Panics if Init has not been called yet.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("logger: Get() called before Init()")
	}
	return *instance
}

// Component returns the process logger tagged with a "component" field.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset drops the process logger so the next Init rebuilds it. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
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

// redactWriter receives one JSON object per Write from zerolog.
type redactWriter struct {
	next io.Writer
}

func (w redactWriter) Write(p []byte) (int, error) {
	if !mayHoldSecret(p) {
		return w.next.Write(p)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(p, &fields); err != nil {
		return w.next.Write(p)
	}
	changed := false
	for k := range fields {
		if _, ok := sensitiveFields[strings.ToLower(k)]; ok {
			fields[k] = json.RawMessage(`"` + redacted + `"`)
			changed = true
		}
	}
	if !changed {
		return w.next.Write(p)
	}

	line, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}
	if _, err := w.next.Write(append(line, '\n')); err != nil {
		return 0, err
	}
	return len(p), nil
}

// mayHoldSecret is a cheap prefilter so ordinary lines skip decoding.
func mayHoldSecret(p []byte) bool {
	lower := bytes.ToLower(p)
	return bytes.Contains(lower, []byte("password")) ||
		bytes.Contains(lower, []byte(`"token"`)) ||
		bytes.Contains(lower, []byte(`"authorization"`))
}
