package events

import (
	"errors"
	"sync"
	"testing"

	"pointsbot/internal/ledger"
)

func TestStartEventRegistersAndJoinsInitiator(t *testing.T) {
	fl := newFakeLedger(map[string]int64{"alice": 100})
	reg := NewRegistry()
	ev := NewBankheist(testConfig(fl, &fakeSink{}))

	rejection, err := reg.StartEvent(ev, mustParticipant(t, "alice", 30))
	if err != nil {
		t.Fatalf("StartEvent failed: %v", err)
	}
	if rejection != "" {
		t.Fatalf("Expected no rejection, got %q", rejection)
	}
	if got := fl.balance("alice"); got != 70 {
		t.Errorf("Expected initiator's wager reserved (70), got %d", got)
	}
	live := reg.Live(KindBankheist)
	if len(live) != 1 || live[0] != ev {
		t.Errorf("Expected the event to be live, got %v", live)
	}
	if len(ev.Participants()) != 1 {
		t.Errorf("Expected 1 participant, got %d", len(ev.Participants()))
	}
}

func TestStartEventConflictRejected(t *testing.T) {
	fl := newFakeLedger(map[string]int64{"alice": 100, "bob": 100})
	reg := NewRegistry()

	first := NewBankheist(testConfig(fl, &fakeSink{}))
	if rejection, err := reg.StartEvent(first, mustParticipant(t, "alice", 30)); err != nil || rejection != "" {
		t.Fatalf("first StartEvent failed: rejection=%q err=%v", rejection, err)
	}

	second := NewBankheist(testConfig(fl, &fakeSink{}))
	rejection, err := reg.StartEvent(second, mustParticipant(t, "bob", 30))
	if err != nil {
		t.Fatalf("conflicting StartEvent should not error: %v", err)
	}
	if rejection == "" {
		t.Fatal("Expected a rejection message for a second event of the same kind")
	}
	if got := fl.balance("bob"); got != 100 {
		t.Errorf("Expected bob's balance untouched by rejection, got %d", got)
	}
	if len(reg.Live(KindBankheist)) != 1 {
		t.Errorf("Expected exactly 1 live event, got %d", len(reg.Live(KindBankheist)))
	}
}

func TestConcurrentStartEventExactlyOneWins(t *testing.T) {
	balances := make(map[string]int64)
	usernames := []string{"u0", "u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	for _, username := range usernames {
		balances[username] = 100
	}
	fl := newFakeLedger(balances)
	reg := NewRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	rejected := 0
	for _, username := range usernames {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			ev := NewBankheist(testConfig(fl, &fakeSink{}))
			rejection, err := reg.StartEvent(ev, mustParticipant(t, username, 10))
			if err != nil {
				t.Errorf("StartEvent failed: %v", err)
				return
			}
			mu.Lock()
			if rejection == "" {
				started++
			} else {
				rejected++
			}
			mu.Unlock()
		}(username)
	}
	wg.Wait()

	if started != 1 {
		t.Errorf("Expected exactly 1 started event, got %d", started)
	}
	if rejected != len(usernames)-1 {
		t.Errorf("Expected %d rejections, got %d", len(usernames)-1, rejected)
	}
	if len(reg.Live(KindBankheist)) != 1 {
		t.Errorf("Expected 1 live event, got %d", len(reg.Live(KindBankheist)))
	}
}

func TestStartEventInitiatorInsufficientFunds(t *testing.T) {
	fl := newFakeLedger(map[string]int64{"alice": 5})
	reg := NewRegistry()
	ev := NewBankheist(testConfig(fl, &fakeSink{}))

	rejection, err := reg.StartEvent(ev, mustParticipant(t, "alice", 30))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v (rejection=%q)", err, rejection)
	}
	if ev.State() != StateCancelled {
		t.Errorf("Expected the stillborn event to be cancelled, got %s", ev.State())
	}
	if len(reg.Live(KindBankheist)) != 0 {
		t.Error("Expected no live events after a failed start")
	}
	if got := fl.balance("alice"); got != 5 {
		t.Errorf("Expected balance unchanged at 5, got %d", got)
	}
}

func TestEvictionOnResolution(t *testing.T) {
	fl := newFakeLedger(map[string]int64{"alice": 100})
	reg := NewRegistry()
	ev := NewBankheist(testConfig(fl, &fakeSink{}))
	if _, err := reg.StartEvent(ev, mustParticipant(t, "alice", 30)); err != nil {
		t.Fatalf("StartEvent failed: %v", err)
	}

	if err := ev.RequestResolution(); err != nil {
		t.Fatalf("RequestResolution failed: %v", err)
	}
	if len(reg.Live(KindBankheist)) != 0 {
		t.Error("Expected registry to no longer list the closed event")
	}

	// A new event of the same kind can start immediately
	next := NewBankheist(testConfig(fl, &fakeSink{}))
	rejection, err := reg.StartEvent(next, mustParticipant(t, "alice", 10))
	if err != nil || rejection != "" {
		t.Errorf("Expected a new event to start after eviction: rejection=%q err=%v", rejection, err)
	}
}

func TestEvictionOnCancel(t *testing.T) {
	fl := newFakeLedger(map[string]int64{"alice": 100})
	reg := NewRegistry()
	ev := NewBankheist(testConfig(fl, &fakeSink{}))
	if _, err := reg.StartEvent(ev, mustParticipant(t, "alice", 30)); err != nil {
		t.Fatalf("StartEvent failed: %v", err)
	}

	if err := ev.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(reg.Live(KindBankheist)) != 0 {
		t.Error("Expected registry to no longer list the cancelled event")
	}
}

func TestLiveFiltersByKind(t *testing.T) {
	fl := newFakeLedger(map[string]int64{"alice": 100, "bob": 100})
	reg := NewRegistry()

	heist := NewBankheist(testConfig(fl, &fakeSink{}))
	if _, err := reg.StartEvent(heist, mustParticipant(t, "alice", 10)); err != nil {
		t.Fatalf("StartEvent heist failed: %v", err)
	}
	raffle := NewRaffle(7, testConfig(fl, &fakeSink{}))
	if _, err := reg.StartEvent(raffle, mustParticipant(t, "bob", 10)); err != nil {
		t.Fatalf("StartEvent raffle failed: %v", err)
	}

	if got := reg.Live(KindBankheist); len(got) != 1 || got[0] != heist {
		t.Errorf("Expected only the heist for KindBankheist, got %v", got)
	}
	if got := reg.Live(KindRaffle); len(got) != 1 || got[0] != raffle {
		t.Errorf("Expected only the raffle for KindRaffle, got %v", got)
	}
	if got := reg.All(); len(got) != 2 {
		t.Errorf("Expected 2 live events in total, got %d", len(got))
	}
}
