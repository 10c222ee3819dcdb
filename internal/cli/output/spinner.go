package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message while a pipeline runs. On a non-terminal
// writer it prints the message once and never redraws.
type Spinner struct {
	w        io.Writer
	message  string
	interval time.Duration
	animate  bool

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		interval: 100 * time.Millisecond,
		animate:  IsTerminal(w),
		done:     make(chan struct{}),
	}
}

// Start starts the spinner.
func (s *Spinner) Start() {
	if !s.animate {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() { s.stop("") }

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) { s.stop("✓ " + message) }

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) { s.stop("✗ " + message) }

func (s *Spinner) stop(final string) {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.animate {
			fmt.Fprint(s.w, "\r\033[K")
		}
		if final != "" {
			fmt.Fprintln(s.w, final)
		}
	})
}
