package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vincentbai/formtrack/internal/models"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "formtrack-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func record(event string) models.Record {
	return models.Record{
		"event":     event,
		"path":      "/contact-us",
		"timestamp": "2009-02-13T23:31:30.000Z",
	}
}

func countRows(t *testing.T, db *Database) int {
	t.Helper()

	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("Failed to query count: %v", err)
	}
	return count
}

func TestNewDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if db == nil {
		t.Fatal("Expected non-nil database")
	}
	if db.db == nil {
		t.Fatal("Expected non-nil sql.DB")
	}
}

func TestValidateRecord(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tests := []struct {
		name      string
		sessionID string
		record    models.Record
		wantError bool
	}{
		{"valid form_start", "s1", record(models.EventFormStart), false},
		{"empty session", "", record(models.EventFormStart), true},
		{"empty event", "s1", record(""), true},
		{"unknown event", "s1", record("click"), true},
		{"missing path", "s1", models.Record{"event": models.EventFormStart, "timestamp": "t"}, true},
		{"missing timestamp", "s1", models.Record{"event": models.EventFormStart, "path": "/"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.ValidateRecord(tt.sessionID, tt.record)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateRecord() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestInsertAndListRecords(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	interaction := record(models.EventFieldInteraction)
	interaction["field"] = "email"
	interaction["value"] = "a@b.com"
	interaction["count"] = 1
	submit := record(models.EventFormSubmit)
	submit["data"] = map[string]string{"email": "a@b.com"}

	records := []models.Record{record(models.EventFormStart), interaction, submit}
	if err := db.InsertRecords("s1", records); err != nil {
		t.Fatalf("Failed to insert records: %v", err)
	}
	if err := db.InsertRecords("s2", []models.Record{record(models.EventFormStart)}); err != nil {
		t.Fatalf("Failed to insert second session: %v", err)
	}

	got, err := db.ListRecords("s1")
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	if got[0].Name() != models.EventFormStart || got[2].Name() != models.EventFormSubmit {
		t.Errorf("Unexpected order: %v", got)
	}
	if got[1]["count"] != float64(1) || got[1]["field"] != "email" {
		t.Errorf("Unexpected interaction record %v", got[1])
	}
	data, ok := got[2]["data"].(map[string]any)
	if !ok || data["email"] != "a@b.com" {
		t.Errorf("Unexpected submit data %v", got[2]["data"])
	}

	sessions, err := db.Sessions()
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "s1" || sessions[1] != "s2" {
		t.Errorf("Unexpected sessions %v", sessions)
	}
}

func TestListRecordsUnknownSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := db.ListRecords("missing")
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", got)
	}
}

func TestInsertRecordsInvalidRollsBack(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	records := []models.Record{record(models.EventFormStart), record("bogus")}
	if err := db.InsertRecords("s1", records); err == nil {
		t.Fatal("Expected error for invalid record")
	}
	if count := countRows(t, db); count != 0 {
		t.Errorf("Expected 0 events after rollback, got %d", count)
	}
}

func TestInsertRecordsUnencodable(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	bad := record(models.EventFormStart)
	bad["data"] = make(chan int)
	if err := db.InsertRecords("s1", []models.Record{bad}); err == nil {
		t.Fatal("Expected marshal error")
	}
}

func TestQueue(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	q := db.Queue("s1")
	if err := q.Push(record(models.EventFormStart)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := q.Push(record("bogus")); err == nil {
		t.Error("Expected Push to surface validation errors")
	}
	if count := countRows(t, db); count != 1 {
		t.Errorf("Expected 1 stored event, got %d", count)
	}
}

func TestDatabaseClose(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(filepath.Join(tmpDir, "close.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}
