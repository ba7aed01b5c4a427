package orchestrator

import (
	"sync"

	"github.com/wonny/signaldesk/internal/contracts"
)

// maxHistory bounds the retained cycle results
const maxHistory = 100

// History stores recent cycle results
type History struct {
	mu      sync.RWMutex
	results []contracts.CycleResult
}

// Add appends a result, keeping only the last maxHistory
func (h *History) Add(result contracts.CycleResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results = append(h.results, result)
	if len(h.results) > maxHistory {
		h.results = h.results[len(h.results)-maxHistory:]
	}
}

// Latest returns the latest n results, oldest first
func (h *History) Latest(n int) []contracts.CycleResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.results) {
		n = len(h.results)
	}
	if n <= 0 {
		return []contracts.CycleResult{}
	}

	out := make([]contracts.CycleResult, n)
	copy(out, h.results[len(h.results)-n:])
	return out
}

// Failed returns every failed result
func (h *History) Failed() []contracts.CycleResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	failed := make([]contracts.CycleResult, 0)
	for _, r := range h.results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// SuccessRate returns the share of successful cycles (0.0 - 1.0)
func (h *History) SuccessRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.results) == 0 {
		return 0.0
	}

	ok := 0
	for _, r := range h.results {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(h.results))
}
