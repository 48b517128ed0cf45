package events

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pointsbot/internal/logger"
	"pointsbot/internal/storage"
)

// State is the lifecycle state of an event.
type State string

const (
	StateOpen      State = "OPEN"
	StateResolving State = "RESOLVING"
	StateClosed    State = "CLOSED"
	StateCancelled State = "CANCELLED"
)

// ErrInvalidState is returned when an operation is attempted against an
// event that is not in the required state. Indicates a caller or scheduler
// bug; callers log it and never retry.
var ErrInvalidState = errors.New("event is not in the required state")

// Ledger is the slice of the points ledger the event engine mutates through.
type Ledger interface {
	ChangeBalance(username string, delta int64, logType storage.LogType) (int64, error)
}

// Messenger delivers outbound chat messages. Fire-and-forget: delivery
// failure never rolls back a state transition or a ledger mutation.
type Messenger interface {
	Send(destination, text string)
}

// Rule computes the payout deltas for a closed participant set. It must be
// a pure, total function: no side effects, defined for every input.
type Rule func(participants []Participant) map[string]int64

// Config carries the collaborators an event needs at construction time.
type Config struct {
	OpenFor     time.Duration
	Ledger      Ledger
	Messenger   Messenger
	Destination string
}

// Event is one instance of a timed multiplayer wager activity. Participant
// mutation is atomic per event; wagers are reserved through the ledger at
// join time and paid out when the event resolves.
type Event struct {
	ID   uuid.UUID
	Kind Kind

	mu           sync.Mutex
	state        State
	participants map[string]Participant
	order        []string

	createdAt time.Time
	deadline  time.Time

	rule        Rule
	ledger      Ledger
	messenger   Messenger
	destination string

	// evict is installed by the registry before the event is published;
	// called with the event lock held on every terminal transition.
	evict func(*Event)
}

func newEvent(kind Kind, rule Rule, cfg Config) *Event {
	now := time.Now()
	return &Event{
		ID:           uuid.New(),
		Kind:         kind,
		state:        StateOpen,
		participants: make(map[string]Participant),
		createdAt:    now,
		deadline:     now.Add(cfg.OpenFor),
		rule:         rule,
		ledger:       cfg.Ledger,
		messenger:    cfg.Messenger,
		destination:  cfg.Destination,
	}
}

// State returns the current lifecycle state.
func (e *Event) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CreatedAt returns when the event was opened.
func (e *Event) CreatedAt() time.Time {
	return e.createdAt
}

// Deadline returns when the scheduler should request resolution. The event
// only exposes the deadline; the timing policy belongs to the worker.
func (e *Event) Deadline() time.Time {
	return e.deadline
}

// Participants returns a snapshot of the participants in join order.
func (e *Event) Participants() []Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.participantsLocked()
}

func (e *Event) participantsLocked() []Participant {
	out := make([]Participant, 0, len(e.order))
	for _, username := range e.order {
		out = append(out, e.participants[username])
	}
	return out
}

// AddParticipant joins a participant to an Open event, reserving the wager
// through the ledger. A repeat join by the same username returns false with
// no error and no ledger mutation. The duplicate check and the reservation
// execute as one critical section, so concurrent joins by the same user
// debit the balance exactly once.
func (e *Event) AddParticipant(p Participant) (bool, error) {
	e.mu.Lock()
	if e.state != StateOpen {
		e.mu.Unlock()
		return false, ErrInvalidState
	}
	if _, ok := e.participants[p.Username]; ok {
		e.mu.Unlock()
		return false, nil
	}
	if _, err := e.ledger.ChangeBalance(p.Username, -p.Wager, storage.LogTypeReserve); err != nil {
		e.mu.Unlock()
		return false, err
	}
	e.participants[p.Username] = p
	e.order = append(e.order, p.Username)
	count := len(e.order)
	e.mu.Unlock()

	logger.Debug(p.Username, "event_joined", fmt.Sprintf("event_id=%s kind=%s wager=%d participants=%d", e.ID, e.Kind, p.Wager, count))
	e.notify(fmt.Sprintf("%s joined the %s with a wager of %d points!", p.Username, e.Kind, p.Wager))
	return true, nil
}

// RequestResolution moves an Open event through Resolving to Closed,
// applying every payout computed by the kind's rule. Valid only from Open;
// from any other state it is a no-op signalling ErrInvalidState. A payout
// that fails on the persistence layer aborts resolution and propagates
// unmodified; the event stays in Resolving for operator attention.
func (e *Event) RequestResolution() error {
	e.mu.Lock()
	if e.state != StateOpen {
		e.mu.Unlock()
		return ErrInvalidState
	}
	e.state = StateResolving
	snapshot := e.participantsLocked()
	e.mu.Unlock()

	payouts := e.rule(snapshot)

	// Apply in username order so payout application is deterministic.
	usernames := make([]string, 0, len(payouts))
	for username := range payouts {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	var totalPaid int64
	for _, username := range usernames {
		delta := payouts[username]
		if delta == 0 {
			continue
		}
		if _, err := e.ledger.ChangeBalance(username, delta, storage.LogTypePayout); err != nil {
			logger.Debug(username, "payout_failed", fmt.Sprintf("event_id=%s delta=%d error=%s", e.ID, delta, err.Error()))
			return fmt.Errorf("failed to apply payout for %s: %w", username, err)
		}
		totalPaid += delta
	}

	e.mu.Lock()
	e.state = StateClosed
	if e.evict != nil {
		e.evict(e)
	}
	e.mu.Unlock()

	logger.Debug("", "event_closed", fmt.Sprintf("event_id=%s kind=%s participants=%d total_paid=%d", e.ID, e.Kind, len(snapshot), totalPaid))
	e.notify(e.summary(snapshot, payouts))
	return nil
}

// Cancel aborts an Open event. Reserved wagers, if any, are refunded
// through the ledger so no point is destroyed. Valid only from Open.
func (e *Event) Cancel() error {
	e.mu.Lock()
	if e.state != StateOpen {
		e.mu.Unlock()
		return ErrInvalidState
	}
	e.state = StateCancelled
	snapshot := e.participantsLocked()
	if e.evict != nil {
		e.evict(e)
	}
	e.mu.Unlock()

	for _, p := range snapshot {
		if _, err := e.ledger.ChangeBalance(p.Username, p.Wager, storage.LogTypeRefund); err != nil {
			logger.Debug(p.Username, "refund_failed", fmt.Sprintf("event_id=%s wager=%d error=%s", e.ID, p.Wager, err.Error()))
		}
	}

	logger.Debug("", "event_cancelled", fmt.Sprintf("event_id=%s kind=%s refunded=%d", e.ID, e.Kind, len(snapshot)))
	if len(snapshot) > 0 {
		e.notify(fmt.Sprintf("The %s was called off, all wagers have been returned.", e.Kind))
	}
	return nil
}

// summary renders a human-readable resolution message.
func (e *Event) summary(participants []Participant, payouts map[string]int64) string {
	var winners []string
	for _, p := range participants {
		if payouts[p.Username] > 0 {
			winners = append(winners, fmt.Sprintf("%s (+%d)", p.Username, payouts[p.Username]))
		}
	}
	if len(winners) == 0 {
		return fmt.Sprintf("The %s is over. Nobody walked away with points this time.", e.Kind)
	}
	msg := fmt.Sprintf("The %s is over! Payouts: ", e.Kind)
	for i, w := range winners {
		if i > 0 {
			msg += ", "
		}
		msg += w
	}
	return msg
}

func (e *Event) notify(text string) {
	if e.messenger == nil {
		return
	}
	e.messenger.Send(e.destination, text)
}
