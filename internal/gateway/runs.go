package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// runs tracks in-flight react runs per session so they can be cancelled.
type runs struct {
	mu      sync.Mutex
	cancels map[string]map[string]context.CancelFunc
}

func newRuns() *runs {
	return &runs{cancels: make(map[string]map[string]context.CancelFunc)}
}

func (r *runs) start(sessionID string, cancel context.CancelFunc) (runID string, done func()) {
	runID = uuid.NewString()
	r.mu.Lock()
	if r.cancels[sessionID] == nil {
		r.cancels[sessionID] = make(map[string]context.CancelFunc)
	}
	r.cancels[sessionID][runID] = cancel
	r.mu.Unlock()

	return runID, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.cancels[sessionID], runID)
		if len(r.cancels[sessionID]) == 0 {
			delete(r.cancels, sessionID)
		}
	}
}

// cancel stops every run of sessionID and reports how many there were.
func (r *runs) cancel(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.cancels[sessionID] {
		c()
		n++
	}
	return n
}
