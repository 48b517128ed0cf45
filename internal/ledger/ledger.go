package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"pointsbot/internal/logger"
	"pointsbot/internal/storage"
)

// ErrInsufficientFunds is returned when a debit would drive a balance negative.
// The mutation is rejected whole: no balance change, no log entry.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger owns all balance mutation. Every change commits the new balance and
// its point log entry in one transaction, serialized per user. Mutations for
// different users proceed in parallel.
type Ledger struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Ledger backed by the storage database.
func New() *Ledger {
	return &Ledger{locks: make(map[string]*sync.Mutex)}
}

// userLock returns the mutex serializing mutations for one user.
func (l *Ledger) userLock(username string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[username]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[username] = lock
	}
	return lock
}

// ChangeBalance applies delta to the user's balance and appends a point log
// entry, atomically. A negative delta that would overdraw the balance fails
// with ErrInsufficientFunds and leaves both balance and log untouched.
func (l *Ledger) ChangeBalance(username string, delta int64, logType storage.LogType) (int64, error) {
	lock := l.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	db := storage.DB()
	if db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRow(`
		SELECT balance FROM users WHERE username = ?
	`, username).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("unknown user %q", username)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	if delta < 0 && balance+delta < 0 {
		return 0, ErrInsufficientFunds
	}

	_, err = tx.Exec(`
		UPDATE users
		SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		WHERE username = ?
	`, delta, username)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO point_logs (username, event_type, points_before, delta)
		VALUES (?, ?, ?, ?)
	`, username, logType, balance, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to insert point log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug(username, "balance_changed", fmt.Sprintf("delta=%d type=%s balance=%d", delta, logType, balance+delta))
	return balance + delta, nil
}

// GetBalance returns the user's committed balance.
func (l *Ledger) GetBalance(username string) (int64, error) {
	db := storage.DB()
	if db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var balance int64
	err := db.QueryRow(`
		SELECT balance FROM users WHERE username = ?
	`, username).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("unknown user %q", username)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// GetTopByBalance returns the top n users by balance, descending, ties
// broken by earliest account creation.
func (l *Ledger) GetTopByBalance(n int) ([]storage.LeaderboardEntry, error) {
	return storage.GetTopUsers(n)
}
