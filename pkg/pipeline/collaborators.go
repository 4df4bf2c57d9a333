package pipeline

import (
	"log/slog"
	"time"
)

// Hologram is the source stack a run reconstructs from. Time indices are
// 1-based and run up to Len.
type Hologram interface {
	Width() int
	Height() int
	Len() int
	Title() string

	// Frame returns the intensity samples of slice t as a [y][x] grid.
	Frame(t int) ([][]float64, error)

	// Label returns the label of slice t, or "" when it has none.
	Label(t int) string
}

// SliceLabel returns the label of slice t, falling back to the stack title.
func SliceLabel(h Hologram, t int) string {
	if l := h.Label(t); l != "" {
		return l
	}
	return h.Title()
}

// Canceler is polled once per propagation distance.
type Canceler interface {
	Canceled() bool
}

// CancelFunc adapts a function to Canceler.
type CancelFunc func() bool

func (f CancelFunc) Canceled() bool { return f() }

// Status receives human-readable progress text.
type Status interface {
	ShowStatus(msg string)
}

// LogStatus writes status text through slog at info level.
type LogStatus struct {
	Logger *slog.Logger
}

func (s LogStatus) ShowStatus(msg string) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info(msg)
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCanceled  Outcome = "canceled"
)

// Observer is notified about hook timings and run outcomes.
type Observer interface {
	ObserveHook(stage Stage, plugin string, d time.Duration)
	ObserveRun(outcome Outcome, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveHook(Stage, string, time.Duration) {}
func (nopObserver) ObserveRun(Outcome, time.Duration)        {}
