package events

import (
	"fmt"
	"sync"

	"pointsbot/internal/logger"
)

// Registry is the process-wide directory of live events: at most one Open
// or Resolving event per kind. It is passed explicitly to every command
// handler; there is no package-level instance.
type Registry struct {
	mu   sync.Mutex
	live map[Kind]*Event
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[Kind]*Event)}
}

// StartEvent registers ev as the live event of its kind and joins the
// initiating participant, reserving the wager. When an event of the same
// kind is already live the returned rejection message is non-empty; this
// is an expected outcome, not an error. The check and the registration are
// one atomic step per kind. If the initiator's reservation fails the event
// is cancelled, evicted and the error returned.
func (r *Registry) StartEvent(ev *Event, initiator Participant) (string, error) {
	r.mu.Lock()
	if _, ok := r.live[ev.Kind]; ok {
		r.mu.Unlock()
		return fmt.Sprintf("A %s is already running, join that one instead!", ev.Kind), nil
	}
	// The event is not visible to anyone else yet, so the callback can be
	// installed without taking the event lock.
	ev.evict = r.remove
	r.live[ev.Kind] = ev
	r.mu.Unlock()

	if _, err := ev.AddParticipant(initiator); err != nil {
		if cancelErr := ev.Cancel(); cancelErr != nil {
			logger.Debug(initiator.Username, "event_cancel_failed", fmt.Sprintf("event_id=%s error=%s", ev.ID, cancelErr.Error()))
		}
		return "", err
	}

	logger.Debug(initiator.Username, "event_started", fmt.Sprintf("event_id=%s kind=%s wager=%d", ev.ID, ev.Kind, initiator.Wager))
	return "", nil
}

// Live returns the live events of the given kind, reflecting only events
// currently Open or Resolving. Terminal events are evicted in the same
// step as their transition, so map membership already implies liveness;
// the state filter guards the snapshot taken outside the lock.
func (r *Registry) Live(kind Kind) []*Event {
	r.mu.Lock()
	var snapshot []*Event
	if ev, ok := r.live[kind]; ok {
		snapshot = append(snapshot, ev)
	}
	r.mu.Unlock()

	var out []*Event
	for _, ev := range snapshot {
		switch ev.State() {
		case StateOpen, StateResolving:
			out = append(out, ev)
		}
	}
	return out
}

// All returns every live event across kinds.
func (r *Registry) All() []*Event {
	r.mu.Lock()
	snapshot := make([]*Event, 0, len(r.live))
	for _, ev := range r.live {
		snapshot = append(snapshot, ev)
	}
	r.mu.Unlock()

	var out []*Event
	for _, ev := range snapshot {
		switch ev.State() {
		case StateOpen, StateResolving:
			out = append(out, ev)
		}
	}
	return out
}

// remove evicts a terminal event. Called by the event with its own lock
// held; the registry lock is always acquired after an event lock, never
// the other way around while an event lock is wanted.
func (r *Registry) remove(ev *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[ev.Kind] == ev {
		delete(r.live, ev.Kind)
	}
}
