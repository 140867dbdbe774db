// Package progress provides TTY detection and a progress spinner for the
// long waits in snapprof (snapshot completion, cross-region copies).
//
// In interactive mode (stdout is a terminal and SNAPPROF_NO_SPINNER is not
// "1") the Spinner redraws one line with a braille frame and the elapsed
// time since Start. Otherwise every Start and Update is a plain timestamped
// line:
//
//	[12:34:56] Waiting for snap-0abc to complete...
//
// All methods are safe to call in any order; Stop or Fail before Start just
// prints the message.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Frames are the braille characters used in interactive mode.
var Frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const tickInterval = 100 * time.Millisecond

// Spinner displays progress to the user.
type Spinner struct {
	// Interactive selects animated (TTY) or plain-line output. New sets it
	// from the environment; tests override it directly.
	Interactive bool

	// Writer is the destination for all output.
	Writer io.Writer

	mu      sync.Mutex
	msg     string
	started time.Time
	running bool
	stop    chan struct{}
	done    chan struct{}
	frame   int
	now     func() time.Time
}

// New constructs a Spinner writing to w, or os.Stdout when w is nil.
func New(w io.Writer) *Spinner {
	if w == nil {
		w = os.Stdout
	}
	return &Spinner{
		Interactive: IsInteractive(),
		Writer:      w,
		now:         time.Now,
	}
}

// NewQuiet returns a Spinner that discards everything. Used for --json runs
// where stdout carries machine-readable output only.
func NewQuiet() *Spinner {
	return &Spinner{Writer: io.Discard, now: time.Now}
}

// IsInteractive reports whether animated output should be used.
func IsInteractive() bool {
	if os.Getenv("SNAPPROF_NO_SPINNER") == "1" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Start begins progress display with msg and resets the elapsed clock.
// Calling Start on a running Spinner only replaces the message.
func (s *Spinner) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg
	if s.running {
		return
	}
	s.started = s.now()

	if !s.Interactive {
		s.writeLine(msg)
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.spin()
}

// Update changes the displayed message.
func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg
	if !s.Interactive {
		s.writeLine(msg)
	}
}

// Stop halts the spinner and prints a final success message.
func (s *Spinner) Stop(msg string) { s.finish(msg) }

// Fail halts the spinner and prints a final failure message.
func (s *Spinner) Fail(msg string) { s.finish(msg) }

func (s *Spinner) finish(msg string) {
	s.mu.Lock()
	if s.running {
		close(s.stop)
		s.running = false
		s.mu.Unlock()

		// Let the ticker goroutine exit before clearing its line.
		<-s.done

		s.mu.Lock()
		fmt.Fprint(s.Writer, "\r\033[K")
		if msg != "" {
			fmt.Fprintln(s.Writer, msg)
		}
		s.mu.Unlock()
		return
	}
	defer s.mu.Unlock()

	if msg == "" {
		return
	}
	if s.Interactive {
		fmt.Fprintln(s.Writer, msg)
		return
	}
	s.writeLine(msg)
}

func (s *Spinner) spin() {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := Frames[s.frame%len(Frames)]
			s.frame++
			elapsed := s.now().Sub(s.started).Truncate(time.Second)
			fmt.Fprintf(s.Writer, "\r\033[K%s %s (%s)", frame, s.msg, elapsed)
			s.mu.Unlock()
		}
	}
}

// writeLine writes one timestamped line. Must be called with mu held.
func (s *Spinner) writeLine(msg string) {
	fmt.Fprintf(s.Writer, "[%s] %s\n", s.now().Format("15:04:05"), msg)
}
