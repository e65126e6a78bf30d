// Package progress renders per-address migration progress. It is a pure
// side channel: implementations receive notifications from the batch
// orchestrator and never influence migration results.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/pendergraft/veriport/internal/migration"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// For returns a Reporter for f. When interactive display is requested and f
// is a terminal it returns an animated multi-line Spinner; otherwise plain
// line output.
func For(f *os.File, interactive bool) migration.Reporter {
	if interactive && term.IsTerminal(int(f.Fd())) {
		return NewSpinner(f)
	}
	return NewPrinter(f)
}

// Printer emits one line per notification. Safe for non-terminal output
// such as CI logs and pipes.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a line-oriented progress reporter
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Started(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s - copying\n", address)
}

func (p *Printer) Finished(address string, outcome migration.Outcome, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s - %s\n", address, statusText(outcome, err))
}

// Spinner renders one animated line per in-flight address, redrawing in
// place until Stop is called.
type Spinner struct {
	mu    sync.Mutex
	w     io.Writer
	rows  []*spinnerRow
	index map[string]*spinnerRow
	drawn int
	frame int
	stop  chan struct{}
	done  chan struct{}
}

type spinnerRow struct {
	address  string
	finished bool
	status   string
}

// NewSpinner creates an animated reporter writing to w and starts its
// render loop
func NewSpinner(w io.Writer) *Spinner {
	s := &Spinner{
		w:     w,
		index: make(map[string]*spinnerRow),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Spinner) Started(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[address]; ok {
		return
	}
	row := &spinnerRow{address: address}
	s.rows = append(s.rows, row)
	s.index[address] = row
}

func (s *Spinner) Finished(address string, outcome migration.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.index[address]
	if !ok {
		row = &spinnerRow{address: address}
		s.rows = append(s.rows, row)
		s.index[address] = row
	}
	row.finished = true
	row.status = statusText(outcome, err)
}

// Stop halts the render loop and draws the final state
func (s *Spinner) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Spinner) loop() {
	defer close(s.done)
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.render()
		case <-s.stop:
			s.render()
			return
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drawn > 0 {
		fmt.Fprintf(s.w, "\033[%dA", s.drawn)
	}
	for _, row := range s.rows {
		fmt.Fprint(s.w, "\033[2K")
		if row.finished {
			fmt.Fprintf(s.w, "%s - %s\n", row.address, row.status)
		} else {
			fmt.Fprintf(s.w, "%s - copying %s\n", row.address, spinnerFrames[s.frame])
		}
	}
	s.drawn = len(s.rows)
	s.frame = (s.frame + 1) % len(spinnerFrames)
}

func statusText(outcome migration.Outcome, err error) string {
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	switch outcome {
	case migration.OutcomeSuccess:
		return "success ✔"
	case migration.OutcomeAlreadyVerified:
		return "already verified ✔"
	default:
		return outcome.String()
	}
}
