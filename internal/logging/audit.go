package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Auditor defines the interface for command invocation audit logging.
// Each command execution is recorded with its context for traceability.
type Auditor interface {
	LogCommand(command string, args []string, region string) error
	Close() error
}

// AuditLogEntry is the decoded shape of one audit log line.
type AuditLogEntry struct {
	Timestamp string `json:"time"`
	Command   string `json:"command"`
	Args      string `json:"args"`
	Region    string `json:"region"`
	Message   string `json:"message"`
}

// auditLogger appends JSON Lines entries to a single audit log file.
type auditLogger struct {
	file   *os.File
	out    *errWriter
	logger zerolog.Logger
}

// errWriter remembers the last write error so LogCommand can report it.
// zerolog itself only hands write errors to its global ErrorHandler.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// NewAuditLogger creates an Auditor that appends entries to the file at path.
// The parent directory and file are created automatically if they do not exist.
func NewAuditLogger(path string) (Auditor, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	out := &errWriter{w: f}
	return &auditLogger{
		file:   f,
		out:    out,
		logger: zerolog.New(out).With().Timestamp().Logger(),
	}, nil
}

// LogCommand records a single command invocation as a JSON Lines entry.
func (a *auditLogger) LogCommand(command string, args []string, region string) error {
	a.out.err = nil
	a.logger.Log().
		Str("command", command).
		Str("args", strings.Join(args, " ")).
		Str("region", region).
		Msg("command invoked")
	if a.out.err != nil {
		return fmt.Errorf("write audit entry: %w", a.out.err)
	}
	return nil
}

// Close closes the underlying audit log file.
func (a *auditLogger) Close() error {
	return a.file.Close()
}
