package events

// Kind identifies an event variant. The set of kinds is closed: adding a
// new activity means adding a constant and a constructor here, not a type
// switch at the call sites.
type Kind string

const (
	KindBankheist Kind = "bank heist"
	KindRaffle    Kind = "raffle"
)

// NewBankheist returns a cooperative heist event. Every crew member wagers
// points; the bigger the crew, the bigger the haul multiplier.
func NewBankheist(cfg Config) *Event {
	return newEvent(KindBankheist, bankheistRule, cfg)
}

// bankheistRule pays every crew member a multiple of their wager based on
// the final crew size: 3x for 10+, 2x for 5+, 1.5x otherwise.
func bankheistRule(participants []Participant) map[string]int64 {
	payouts := make(map[string]int64, len(participants))
	for _, p := range participants {
		var payout int64
		switch {
		case len(participants) >= 10:
			payout = p.Wager * 3
		case len(participants) >= 5:
			payout = p.Wager * 2
		default:
			payout = p.Wager * 3 / 2
		}
		payouts[p.Username] = payout
	}
	return payouts
}

// NewRaffle returns a winner-takes-all raffle. The draw is fixed by a seed
// chosen when the raffle starts, so the rule stays a pure function of the
// final participant set.
func NewRaffle(seed int64, cfg Config) *Event {
	rule := func(participants []Participant) map[string]int64 {
		if len(participants) == 0 {
			return map[string]int64{}
		}
		var pot int64
		for _, p := range participants {
			pot += p.Wager
		}
		winner := participants[int(seed%int64(len(participants)))]
		return map[string]int64{winner.Username: pot}
	}
	return newEvent(KindRaffle, rule, cfg)
}
