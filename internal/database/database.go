package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vincentbai/formtrack/internal/datalayer"
	"github.com/vincentbai/formtrack/internal/models"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

type Database struct {
	db              *sql.DB
	validEventTypes map[string]bool
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{
		db: db,
		validEventTypes: map[string]bool{
			models.EventFormStart:        true,
			models.EventFieldInteraction: true,
			models.EventFormSubmit:       true,
		},
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events(
	  id         INTEGER PRIMARY KEY,
	  session_id TEXT    NOT NULL,
	  ts_iso     TEXT    NOT NULL,
	  path       TEXT    NOT NULL,
	  event      TEXT    NOT NULL CHECK (event IN ('form_start','form_field_interaction','form_submit')),
	  data_json  TEXT    NOT NULL CHECK (json_valid(data_json))
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_event   ON events(event);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ValidateRecord(sessionID string, record models.Record) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if record.Name() == "" {
		return fmt.Errorf("event cannot be empty")
	}
	if !d.validEventTypes[record.Name()] {
		return fmt.Errorf("invalid event type: %s", record.Name())
	}
	if record.Path() == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if record.Timestamp() == "" {
		return fmt.Errorf("timestamp cannot be empty")
	}
	return nil
}

// InsertRecords stores all records for a session in one transaction; an
// invalid record rolls back the whole batch.
func (d *Database) InsertRecords(sessionID string, records []models.Record) error {
	transaction, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(`INSERT INTO events(session_id, ts_iso, path, event, data_json) VALUES(?,?,?,?,json(?))`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, record := range records {
		if err := d.ValidateRecord(sessionID, record); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("invalid record: %w", err)
		}

		jsonData, err := json.Marshal(record)
		if err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if _, err := statement.Exec(sessionID, record.Timestamp(), record.Path(), record.Name(), string(jsonData)); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListRecords returns a session's records in insertion order. Numbers come
// back as float64 after the JSON round trip.
func (d *Database) ListRecords(sessionID string) ([]models.Record, error) {
	rows, err := d.db.Query(`SELECT data_json FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var record models.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// Sessions lists distinct session IDs in order of first appearance.
func (d *Database) Sessions() ([]string, error) {
	rows, err := d.db.Query(`SELECT session_id FROM events GROUP BY session_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}

// Queue returns a data layer that writes each record straight into sessionID.
func (d *Database) Queue(sessionID string) datalayer.Queue {
	return datalayer.Func(func(record models.Record) error {
		return d.InsertRecords(sessionID, []models.Record{record})
	})
}
