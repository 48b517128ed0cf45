package service

import (
	"sync"
	"testing"
	"time"

	"pointsbot/internal/events"
	"pointsbot/internal/storage"
)

type stubLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

func (s *stubLedger) ChangeBalance(username string, delta int64, logType storage.LogType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[username] += delta
	return s.balances[username], nil
}

type stubSink struct{}

func (stubSink) Send(destination, text string) {}

func dueEvent(t *testing.T, reg *events.Registry, lg events.Ledger) *events.Event {
	t.Helper()
	ev := events.NewBankheist(events.Config{
		OpenFor:   -time.Second,
		Ledger:    lg,
		Messenger: stubSink{},
	})
	p, err := events.NewParticipant("alice", 10)
	if err != nil {
		t.Fatalf("NewParticipant failed: %v", err)
	}
	if rejection, err := reg.StartEvent(ev, p); err != nil || rejection != "" {
		t.Fatalf("StartEvent failed: rejection=%q err=%v", rejection, err)
	}
	return ev
}

func TestWorkerResolvesDueEvents(t *testing.T) {
	lg := &stubLedger{balances: map[string]int64{"alice": 100}}
	reg := events.NewRegistry()
	ev := dueEvent(t, reg, lg)

	w := NewEventWorker(reg, time.Minute)
	defer w.Stop()
	w.resolveDueEvents()

	if ev.State() != events.StateClosed {
		t.Errorf("Expected due event to be closed, got %s", ev.State())
	}
	if len(reg.Live(events.KindBankheist)) != 0 {
		t.Error("Expected resolved event to be evicted from the registry")
	}
}

func TestWorkerLeavesFutureEventsOpen(t *testing.T) {
	lg := &stubLedger{balances: map[string]int64{"alice": 100}}
	reg := events.NewRegistry()

	ev := events.NewBankheist(events.Config{
		OpenFor:   time.Hour,
		Ledger:    lg,
		Messenger: stubSink{},
	})
	p, err := events.NewParticipant("alice", 10)
	if err != nil {
		t.Fatalf("NewParticipant failed: %v", err)
	}
	if rejection, err := reg.StartEvent(ev, p); err != nil || rejection != "" {
		t.Fatalf("StartEvent failed: rejection=%q err=%v", rejection, err)
	}

	w := NewEventWorker(reg, time.Minute)
	defer w.Stop()
	w.resolveDueEvents()

	if ev.State() != events.StateOpen {
		t.Errorf("Expected future event to stay open, got %s", ev.State())
	}
}

func TestWorkerStartStop(t *testing.T) {
	lg := &stubLedger{balances: map[string]int64{"alice": 100}}
	reg := events.NewRegistry()
	ev := dueEvent(t, reg, lg)

	w := NewEventWorker(reg, 10*time.Millisecond)
	w.Start()
	defer w.Stop()

	// Start runs a scan immediately
	if ev.State() != events.StateClosed {
		t.Errorf("Expected event resolved on startup scan, got %s", ev.State())
	}
}
