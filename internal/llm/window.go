package llm

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/signaldesk/pkg/clock"
)

// Window is a process-local sliding-window limiter: at most max calls
// are admitted in any trailing span.
// ⭐ SSOT: 생성 호출의 유일한 공유 가변 상태 - mu 하나로만 보호
type Window struct {
	mu     sync.Mutex
	calls  []time.Time // admission timestamps, oldest first
	max    int
	span   time.Duration
	margin time.Duration
	clock  clock.Clock
}

// NewWindow creates a limiter admitting max calls per span.
// margin is added to every computed wait so the oldest call has surely left the window.
func NewWindow(max int, span, margin time.Duration, clk clock.Clock) *Window {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Window{
		calls:  make([]time.Time, 0, max),
		max:    max,
		span:   span,
		margin: margin,
		clock:  clk,
	}
}

// Acquire blocks until a call may be issued and records it.
// It returns how long the caller was held back.
func (w *Window) Acquire(ctx context.Context) (time.Duration, error) {
	_, waited, err := w.acquire(ctx)
	return waited, err
}

func (w *Window) acquire(ctx context.Context) (time.Time, time.Duration, error) {
	var waited time.Duration

	w.mu.Lock()
	for {
		now := w.clock.Now()
		w.evict(now)

		if len(w.calls) < w.max {
			w.calls = append(w.calls, now)
			w.mu.Unlock()
			return now, waited, nil
		}

		wait := w.span - now.Sub(w.calls[0]) + w.margin

		// never sleep holding the lock; re-check after waking
		w.mu.Unlock()
		if err := w.clock.Sleep(ctx, wait); err != nil {
			return time.Time{}, waited, err
		}
		waited += wait
		w.mu.Lock()
	}
}

// evict drops timestamps that have left the window. Caller holds mu.
func (w *Window) evict(now time.Time) {
	i := 0
	for i < len(w.calls) && now.Sub(w.calls[i]) >= w.span {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

// InFlight returns the number of calls currently inside the window
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(w.clock.Now())
	return len(w.calls)
}
