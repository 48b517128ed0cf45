package storage

import (
	"time"
)

// User represents a chat community member
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Username   string    `json:"username" db:"username"`
	FirstName  string    `json:"first_name" db:"first_name"`
	Balance    int64     `json:"balance" db:"balance"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// LogType classifies a point log entry by the operation that produced it
type LogType string

const (
	LogTypeWelcome LogType = "WELCOME"
	LogTypeReserve LogType = "RESERVE"
	LogTypePayout  LogType = "PAYOUT"
	LogTypeRefund  LogType = "REFUND"
	LogTypeGive    LogType = "GIVE"
)

// PointLogEntry is an immutable audit record for one balance mutation.
// Entries are append-only; they are never updated or deleted.
type PointLogEntry struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	EventType    LogType   `json:"event_type" db:"event_type"`
	PointsBefore int64     `json:"points_before" db:"points_before"`
	Delta        int64     `json:"delta" db:"delta"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// LeaderboardEntry is a single row of the top-balances query
type LeaderboardEntry struct {
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}
