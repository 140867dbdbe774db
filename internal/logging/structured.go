// Package logging provides structured logging for AWS API calls and audit
// logging for command invocations. API call entries are appended as JSON
// lines to ~/.config/snapprof/logs/api-<date>.jsonl. Audit entries are
// appended as JSON lines to ~/.config/snapprof/audit.log.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines the interface for structured AWS API call logging.
// Implementations record service, operation, duration, and result for
// each AWS SDK call.
type Logger interface {
	Log(service, operation string, duration time.Duration, err error)
	SetStderr(w io.Writer)
	Close() error
}

// StructuredLogEntry is the decoded shape of one API call log line.
type StructuredLogEntry struct {
	Timestamp  string `json:"time"`
	Level      string `json:"level"`
	Service    string `json:"service"`
	Operation  string `json:"operation"`
	DurationMs int64  `json:"duration_ms"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message"`
}

// structuredLogger appends zerolog JSON lines to a daily file and, in debug
// mode, mirrors each entry to stderr in console format.
type structuredLogger struct {
	mu     sync.Mutex
	file   *os.File
	debug  bool
	logger zerolog.Logger
}

// NewStructuredLogger creates a Logger that appends to dir/api-<date>.jsonl.
// The directory is created automatically if it does not exist.
func NewStructuredLogger(dir string, debug bool) (Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	name := fmt.Sprintf("api-%s.jsonl", time.Now().UTC().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open api log: %w", err)
	}

	l := &structuredLogger{file: f, debug: debug}
	l.build(os.Stderr)
	return l, nil
}

// Discard returns a Logger that drops every entry. Used when the log
// directory is unavailable so commands still run.
func Discard() Logger {
	return &structuredLogger{logger: zerolog.Nop()}
}

func (l *structuredLogger) build(stderr io.Writer) {
	var w io.Writer = l.file
	if l.debug && stderr != nil {
		w = zerolog.MultiLevelWriter(l.file, zerolog.ConsoleWriter{
			Out:        stderr,
			NoColor:    true,
			TimeFormat: "15:04:05",
		})
	}
	l.logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetStderr overrides the writer used for debug output.
func (l *structuredLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	l.build(w)
}

// Log records a single AWS API call. Write failures are ignored; logging
// must never fail a command.
func (l *structuredLogger) Log(service, operation string, duration time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := l.logger.Info()
	result := "success"
	if err != nil {
		ev = l.logger.Error().Err(err)
		result = "error"
	}

	ev.Str("service", service).
		Str("operation", operation).
		Int64("duration_ms", duration.Milliseconds()).
		Str("result", result).
		Msg("aws api call")
}

// Close closes the underlying log file.
func (l *structuredLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.logger = zerolog.Nop()
	return err
}
