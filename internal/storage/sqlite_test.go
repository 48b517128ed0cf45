package storage

import (
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := InitDB(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
}

func cleanupTestDB(t *testing.T) {
	CloseDB()
}

func TestCreateUser(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	user, err := CreateUser(12345, "testuser", "Test User", 500)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Error("Expected non-zero user ID")
	}
	if user.Username != "testuser" {
		t.Errorf("Expected username 'testuser', got %s", user.Username)
	}
	if user.Balance != 500 {
		t.Errorf("Expected initial balance 500, got %d", user.Balance)
	}
}

func TestCreateUserWritesWelcomeGrantLog(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	_, err := CreateUser(12345, "grantuser", "Grant User", 500)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	entries, err := GetPointLog("grantuser", 10)
	if err != nil {
		t.Fatalf("GetPointLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].EventType != LogTypeWelcome {
		t.Errorf("Expected event type %s, got %s", LogTypeWelcome, entries[0].EventType)
	}
	if entries[0].PointsBefore != 0 {
		t.Errorf("Expected points_before 0, got %d", entries[0].PointsBefore)
	}
	if entries[0].Delta != 500 {
		t.Errorf("Expected delta 500, got %d", entries[0].Delta)
	}
}

func TestCreateUserZeroGrantNoLog(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	user, err := CreateUser(12346, "nogrant", "No Grant", 0)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Balance != 0 {
		t.Errorf("Expected balance 0, got %d", user.Balance)
	}

	entries, err := GetPointLog("nogrant", 10)
	if err != nil {
		t.Fatalf("GetPointLog failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no log entries, got %d", len(entries))
	}
}

func TestGetUserByUsername(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	_, err := CreateUser(99999, "uniqueuser", "Unique User", 500)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := GetUserByUsername("uniqueuser")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if user == nil {
		t.Fatal("Expected user, got nil")
	}
	if user.TelegramID != 99999 {
		t.Errorf("Expected TelegramID 99999, got %d", user.TelegramID)
	}
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	user, err := GetUserByUsername("nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername should not fail for non-existent user: %v", err)
	}
	if user != nil {
		t.Error("Expected nil user for non-existent username")
	}
}

func TestGetUserByTelegramID(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	_, err := CreateUser(88888, "idtest", "ID Test", 500)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := GetUserByTelegramID(88888)
	if err != nil {
		t.Fatalf("GetUserByTelegramID failed: %v", err)
	}
	if user == nil {
		t.Fatal("Expected user, got nil")
	}
	if user.Username != "idtest" {
		t.Errorf("Expected username 'idtest', got %s", user.Username)
	}
}

func TestGetTopUsersOrdering(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	_, _ = CreateUser(1, "poor", "Poor", 100)
	_, _ = CreateUser(2, "rich", "Rich", 900)
	_, _ = CreateUser(3, "middle", "Middle", 500)

	top, err := GetTopUsers(10)
	if err != nil {
		t.Fatalf("GetTopUsers failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(top))
	}
	if top[0].Username != "rich" || top[1].Username != "middle" || top[2].Username != "poor" {
		t.Errorf("Unexpected ordering: %v", top)
	}
}

func TestGetTopUsersTieBrokenByCreation(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	// Same balance; the earlier account wins the tie
	_, _ = CreateUser(10, "first", "First", 500)
	_, _ = CreateUser(11, "second", "Second", 500)

	top, err := GetTopUsers(2)
	if err != nil {
		t.Fatalf("GetTopUsers failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(top))
	}
	if top[0].Username != "first" {
		t.Errorf("Expected 'first' to rank above 'second' on tie, got %s", top[0].Username)
	}
}

func TestGetTopUsersLimit(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	_, _ = CreateUser(20, "u1", "U1", 100)
	_, _ = CreateUser(21, "u2", "U2", 200)
	_, _ = CreateUser(22, "u3", "U3", 300)

	top, err := GetTopUsers(2)
	if err != nil {
		t.Fatalf("GetTopUsers failed: %v", err)
	}
	if len(top) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(top))
	}
}

func TestGetPointLogNewestFirst(t *testing.T) {
	setupTestDB(t)
	defer cleanupTestDB(t)

	_, err := CreateUser(30, "loguser", "Log User", 500)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err = db.Exec(`INSERT INTO point_logs (username, event_type, points_before, delta) VALUES (?, ?, 500, -30)`, "loguser", LogTypeReserve)
	if err != nil {
		t.Fatalf("failed to insert log entry: %v", err)
	}

	entries, err := GetPointLog("loguser", 10)
	if err != nil {
		t.Fatalf("GetPointLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventType != LogTypeReserve {
		t.Errorf("Expected newest entry first, got %s", entries[0].EventType)
	}
}
