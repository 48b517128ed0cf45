package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var db *sql.DB

// InitDB initializes the SQLite database connection with WAL mode
func InitDB(dbPath string) error {
	var err error

	absPath := dbPath
	if dbPath != ":memory:" {
		absPath, err = filepath.Abs(dbPath)
		if err != nil {
			return err
		}
	}

	db, err = sql.Open("sqlite", absPath)
	if err != nil {
		return err
	}

	// Enable WAL mode for better concurrency
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return err
	}

	if err := runMigrations(); err != nil {
		return err
	}

	return nil
}

// DB returns the database connection
func DB() *sql.DB {
	return db
}

// runMigrations creates the necessary tables
func runMigrations() error {
	usersTable := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE,
			username TEXT UNIQUE NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			balance INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	pointLogsTable := `
		CREATE TABLE IF NOT EXISTS point_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			event_type TEXT NOT NULL,
			points_before INTEGER NOT NULL,
			delta INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_point_logs_username ON point_logs(username);
		CREATE INDEX IF NOT EXISTS idx_point_logs_created_at ON point_logs(created_at);
	`

	_, err := db.Exec(usersTable)
	if err != nil {
		return err
	}

	_, err = db.Exec(pointLogsTable)
	if err != nil {
		return err
	}

	_, err = db.Exec(createIndexes)
	if err != nil {
		return err
	}

	return nil
}

// CloseDB closes the database connection
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// GetUserByUsername retrieves a user by username
func GetUserByUsername(username string) (*User, error) {
	var user User
	var telegramID sql.NullInt64
	err := db.QueryRow(`
		SELECT id, telegram_id, username, first_name, balance, created_at, updated_at
		FROM users
		WHERE username = ?
	`, username).Scan(
		&user.ID,
		&telegramID,
		&user.Username,
		&user.FirstName,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	if telegramID.Valid {
		user.TelegramID = telegramID.Int64
	}
	return &user, nil
}

// GetUserByTelegramID retrieves a user by their Telegram ID
func GetUserByTelegramID(telegramID int64) (*User, error) {
	var user User
	err := db.QueryRow(`
		SELECT id, telegram_id, username, first_name, balance, created_at, updated_at
		FROM users
		WHERE telegram_id = ?
	`, telegramID).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram_id: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user with a welcome grant. The grant and its
// point log entry commit in the same transaction as the user row.
func CreateUser(telegramID int64, username, firstName string, welcomeGrant int64) (*User, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO users (telegram_id, username, first_name, balance)
		VALUES (?, ?, ?, ?)
	`, telegramID, username, firstName, welcomeGrant)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	if welcomeGrant > 0 {
		_, err = tx.Exec(`
			INSERT INTO point_logs (username, event_type, points_before, delta)
			VALUES (?, ?, 0, ?)
		`, username, LogTypeWelcome, welcomeGrant)
		if err != nil {
			return nil, fmt.Errorf("failed to insert welcome grant log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return GetUserByUsername(username)
}

// GetTopUsers returns the top n users by balance, descending, ties broken
// by earliest account creation. Computed on demand, never cached.
func GetTopUsers(n int) ([]LeaderboardEntry, error) {
	rows, err := db.Query(`
		SELECT username, balance
		FROM users
		ORDER BY balance DESC, created_at ASC, id ASC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

// GetPointLog returns the most recent point log entries for a user,
// newest first, capped at limit.
func GetPointLog(username string, limit int) ([]PointLogEntry, error) {
	rows, err := db.Query(`
		SELECT id, username, event_type, points_before, delta, created_at
		FROM point_logs
		WHERE username = ?
		ORDER BY id DESC
		LIMIT ?
	`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query point log: %w", err)
	}
	defer rows.Close()

	var entries []PointLogEntry
	for rows.Next() {
		var e PointLogEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.EventType, &e.PointsBefore, &e.Delta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan point log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating point log: %w", err)
	}
	return entries, nil
}
