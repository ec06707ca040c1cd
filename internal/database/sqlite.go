package database

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"reel-go/internal/database/migrations"
	"reel-go/internal/reel"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation is one row of CLI history.
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Operation  string
	Parameters string
	Status     string
}

// EventFilter narrows event listings. Zero values match everything; Limit
// of 0 means no limit.
type EventFilter struct {
	Dir         string
	ContentType reel.ContentType
	Limit       int
}

// SQLiteJournal records CLI operations and every ledger and queue event in
// SQLite. Events are tagged with the operation that is currently running.
type SQLiteJournal struct {
	db    *sql.DB
	path  string
	clock reel.Clock

	mu          sync.Mutex
	operationID sql.NullInt64
}

var _ reel.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens the journal at path, which may be ":memory:".
// The schema is not migrated; see MigrateUp and CheckMigrations.
func NewSQLiteJournal(path string, clock reel.Clock) (*SQLiteJournal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteJournalFromDB(db, path, clock), nil
}

// NewSQLiteJournalFromDB wraps an already configured connection.
func NewSQLiteJournalFromDB(db *sql.DB, path string, clock reel.Clock) *SQLiteJournal {
	if clock == nil {
		clock = reel.RealClock{}
	}
	return &SQLiteJournal{db: db, path: path, clock: clock}
}

// OpenConnection opens a SQLite database with foreign keys enforced and a
// single connection, so ":memory:" databases survive across queries.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Operations

func (s *SQLiteJournal) CreateOperation(operation, parameters string) (*Operation, error) {
	op := &Operation{
		StartedAt:  s.clock.Now().UTC(),
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
	}
	res, err := s.db.Exec(
		`INSERT INTO operations (started_at, operation, parameters, status) VALUES (?, ?, ?, ?)`,
		op.StartedAt, op.Operation, op.Parameters, op.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	s.mu.Lock()
	s.operationID = sql.NullInt64{Int64: op.ID, Valid: true}
	s.mu.Unlock()
	return op, nil
}

func (s *SQLiteJournal) FinishOperation(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		s.clock.Now().UTC(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}

	s.mu.Lock()
	if s.operationID.Valid && s.operationID.Int64 == id {
		s.operationID = sql.NullInt64{}
	}
	s.mu.Unlock()
	return nil
}

// ListOperations returns the newest operations first.
func (s *SQLiteJournal) ListOperations(limit int) ([]*Operation, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, operation, parameters, status
		 FROM operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.StartedAt, &op.FinishedAt, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (s *SQLiteJournal) MaxOperationID() (int64, error) {
	var id int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max operation id: %w", err)
	}
	return id, nil
}

// Events

func (s *SQLiteJournal) currentOperation() sql.NullInt64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operationID
}

func (s *SQLiteJournal) LedgerEvent(ev reel.LedgerEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO ledger_events (operation_id, dir, content_type, action, version, producer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.currentOperation(), ev.Dir, string(ev.ContentType), ev.Action, ev.Version, ev.Producer, ev.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("journaling ledger event: %w", err)
	}
	return nil
}

func (s *SQLiteJournal) JobEvent(ev reel.JobEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO job_events (operation_id, dir, content_type, target_version, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.currentOperation(), ev.Dir, string(ev.ContentType), ev.TargetVersion, string(ev.Status), ev.Error, ev.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("journaling job event: %w", err)
	}
	return nil
}

// where builds the WHERE clause shared by the event listings.
func (f EventFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Dir != "" {
		conds = append(conds, "dir = ?")
		args = append(args, f.Dir)
	}
	if f.ContentType != "" {
		conds = append(conds, "content_type = ?")
		args = append(args, string(f.ContentType))
	}
	clause := ""
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}
	clause += " ORDER BY id DESC"
	if f.Limit > 0 {
		clause += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return clause, args
}

// ListLedgerEvents returns matching events, newest first.
func (s *SQLiteJournal) ListLedgerEvents(f EventFilter) ([]reel.LedgerEvent, error) {
	clause, args := f.where()
	rows, err := s.db.Query(`SELECT dir, content_type, action, version, producer, created_at FROM ledger_events`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ledger events: %w", err)
	}
	defer rows.Close()

	var events []reel.LedgerEvent
	for rows.Next() {
		var ev reel.LedgerEvent
		var ct string
		if err := rows.Scan(&ev.Dir, &ct, &ev.Action, &ev.Version, &ev.Producer, &ev.At); err != nil {
			return nil, fmt.Errorf("scanning ledger event: %w", err)
		}
		ev.ContentType = reel.ContentType(ct)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListJobEvents returns matching queue transitions, newest first.
func (s *SQLiteJournal) ListJobEvents(f EventFilter) ([]reel.JobEvent, error) {
	clause, args := f.where()
	rows, err := s.db.Query(`SELECT dir, content_type, target_version, status, error, created_at FROM job_events`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("listing job events: %w", err)
	}
	defer rows.Close()

	var events []reel.JobEvent
	for rows.Next() {
		var ev reel.JobEvent
		var ct, status string
		if err := rows.Scan(&ev.Dir, &ct, &ev.TargetVersion, &status, &ev.Error, &ev.At); err != nil {
			return nil, fmt.Errorf("scanning job event: %w", err)
		}
		ev.ContentType = reel.ContentType(ct)
		ev.Status = reel.JobStatus(status)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Path returns the database file path, or ":memory:".
func (s *SQLiteJournal) Path() string {
	return s.path
}

func (s *SQLiteJournal) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

func (s *SQLiteJournal) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo writes a consistent copy of the journal to destPath using VACUUM INTO.
func (s *SQLiteJournal) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

func (s *SQLiteJournal) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
