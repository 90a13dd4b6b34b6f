// Package progressui renders build progress to a terminal, falling back to
// plain line-oriented output for pipes and CI, grounded on the teacher's
// internal/ui package (Stage/ProgressEvent/Renderer split between a
// bubbletea TUI and a plain writer) trimmed to the handful of stages the
// cxp build command actually reports.
package progressui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one phase of a build run.
type Stage int

const (
	StageScan Stage = iota
	StageChunk
	StageEmbed
	StageIndex
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageScan:
		return "scan"
	case StageChunk:
		return "chunk"
	case StageEmbed:
		return "embed"
	case StageIndex:
		return "index"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one progress update emitted during a build.
type Event struct {
	Stage   Stage
	Current int
	Total   int
	Detail  string
}

// Summary is the final report shown when a build finishes.
type Summary struct {
	Archives int
	Files    int
	Chunks   int
	Duration time.Duration
	Warnings int
}

// Reporter receives build progress. Callers update it from a single
// goroutine; it does not need to be safe for concurrent Update calls.
type Reporter interface {
	Update(Event)
	Warn(msg string)
	Finish(Summary)
}

// New picks a terminal renderer for an interactive TTY and a plain
// line-oriented renderer otherwise (pipes, redirected files, CI runners).
func New(out io.Writer) Reporter {
	return newReporter(out, false)
}

// NewForced always returns the plain line-oriented renderer, regardless of
// whether out is a terminal.
func NewForced(out io.Writer) Reporter {
	return newReporter(out, true)
}

func newReporter(out io.Writer, forcePlain bool) Reporter {
	if !forcePlain {
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return newTTYReporter(f)
		}
	}
	return newPlainReporter(out)
}

// plainReporter writes one line per event, safe for logs and CI.
type plainReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func newPlainReporter(out io.Writer) *plainReporter {
	return &plainReporter{out: out}
}

func (r *plainReporter) Update(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Total > 0 {
		fmt.Fprintf(r.out, "[%s] %d/%d %s\n", e.Stage, e.Current, e.Total, e.Detail)
	} else {
		fmt.Fprintf(r.out, "[%s] %s\n", e.Stage, e.Detail)
	}
}

func (r *plainReporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "warn: %s\n", msg)
}

func (r *plainReporter) Finish(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "built %d archive(s), %d files, %d chunks in %s", s.Archives, s.Files, s.Chunks, s.Duration.Round(10*time.Millisecond))
	if s.Warnings > 0 {
		fmt.Fprintf(r.out, " (%d warnings)", s.Warnings)
	}
	fmt.Fprintln(r.out)
}
