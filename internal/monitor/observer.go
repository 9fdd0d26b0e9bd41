package monitor

import (
	"sync"

	"codeberg.org/mutker/airco2ctl/internal/logger"
)

// Observer receives every completed snapshot. Observers run inline on the
// acquisition goroutine and should return quickly; a slow observer delays
// the next poll cycle for everyone.
type Observer interface {
	Observe(Snapshot)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }

// registry is an append-only, lock-protected observer list. Dispatch
// order equals registration order.
type registry struct {
	mu        sync.Mutex
	observers []Observer
}

func (r *registry) add(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// dispatch invokes every registered observer in order. The lock is held
// for the whole dispatch, so a registration racing with an in-flight
// dispatch takes effect from the next cycle.
func (r *registry) dispatch(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.observers {
		observe(o, s)
	}
}

// observe shields the dispatch loop from a panicking observer so the
// remaining observers still receive the snapshot.
func observe(o Observer, s Snapshot) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error().Interface("panic", v).Msg("Observer panicked")
		}
	}()

	o.Observe(s)
}
