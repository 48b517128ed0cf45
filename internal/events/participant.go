package events

import "errors"

// ErrInvalidWager is returned when a participant is constructed with a
// non-positive wager. Rejected before any state mutation.
var ErrInvalidWager = errors.New("wager must be a positive number of points")

// Participant binds a user to a committed wager. Immutable once created;
// an event holds at most one participant per username.
type Participant struct {
	Username string `json:"username"`
	Wager    int64  `json:"wager"`
}

// NewParticipant validates the wager and returns the participant.
func NewParticipant(username string, wager int64) (Participant, error) {
	if wager <= 0 {
		return Participant{}, ErrInvalidWager
	}
	return Participant{Username: username, Wager: wager}, nil
}
