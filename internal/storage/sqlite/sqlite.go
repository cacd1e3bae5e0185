package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"focusflow/internal/models"
	"focusflow/internal/storage"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

func NewSQLiteStore(dbPath string) storage.Storage {
	return &SQLiteStore{dbPath: dbPath, now: time.Now}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	notes TEXT,
	is_done INTEGER NOT NULL DEFAULT 0,
	date TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks (owner_id, created_at);

CREATE TABLE IF NOT EXISTS subtasks (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	is_done INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subtasks_task ON subtasks (task_id, position);

CREATE TABLE IF NOT EXISTS intervals (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	duration_minutes REAL NOT NULL,
	kind TEXT NOT NULL,
	label TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_intervals_owner ON intervals (owner_id, created_at);
`

func (s *SQLiteStore) Init(ctx context.Context) error {
	// Ensure directory exists
	dir := filepath.Dir(s.dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create db directory %s: %w", dir, err)
	}

	log.Printf("Initializing SQLite database at: %s", s.dbPath)
	// WAL plus a busy timeout lets the CLI report read while the daemon writes.
	// _fk turns on foreign keys so deleting a task cascades to its subtasks.
	db, err := sql.Open("sqlite3", s.dbPath+"?_journal=WAL&_timeout=5000&_fk=true")
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	s.db = db

	// SQLite is happiest with a single writer connection
	s.db.SetMaxOpenConns(1)
	s.db.SetMaxIdleConns(1)
	s.db.SetConnMaxLifetime(time.Minute * 5)

	if err := s.db.PingContext(ctx); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables if they don't exist
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Println("Database initialized successfully.")
	return nil
}

// --- Tasks ---

func (s *SQLiteStore) CreateTask(ctx context.Context, t *models.Task) error {
	now := s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = now
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (id, owner_id, title, notes, is_done, date, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Notes, t.Done, t.Date, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTasksForOwner(ctx context.Context, ownerID string, r models.DateRange) ([]models.Task, error) {
	query := `SELECT id, owner_id, title, notes, is_done, date, created_at, updated_at
	          FROM tasks
	          WHERE owner_id = ?`
	args := []interface{}{ownerID}
	query, args = withRange(query, args, "created_at", r)
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var notes sql.NullString
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &notes, &t.Done, &t.Date, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		t.Notes = notes.String
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) SetTaskDone(ctx context.Context, taskID string, done bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET is_done = ?, updated_at = ? WHERE id = ?`,
		done, s.now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", taskID, err)
	}
	return expectOneRow(res, "task", taskID)
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return expectOneRow(res, "task", taskID)
}

// --- Subtasks ---

func (s *SQLiteStore) CreateSubtasks(ctx context.Context, taskID string, titles []string) ([]models.Subtask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Subtasks need a live parent
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up task %s: %w", taskID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, storage.ErrNotFound)
	}

	// New subtasks go after the existing ones
	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM subtasks WHERE task_id = ?`, taskID).Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to read subtask position: %w", err)
	}

	now := s.now().UTC()
	created := make([]models.Subtask, 0, len(titles))
	for _, title := range titles {
		st := models.Subtask{ID: uuid.New().String(), TaskID: taskID, Title: title, Position: next, CreatedAt: now}
		if err := st.Validate(); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO subtasks (id, task_id, title, is_done, position, created_at)
		          VALUES (?, ?, ?, 0, ?, ?)`, st.ID, st.TaskID, st.Title, st.Position, st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to insert subtask: %w", err)
		}
		created = append(created, st)
		next++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit subtasks: %w", err)
	}
	return created, nil
}

func (s *SQLiteStore) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, title, is_done, position, created_at
	          FROM subtasks WHERE task_id = ? ORDER BY position ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []models.Subtask
	for rows.Next() {
		var st models.Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Done, &st.Position, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subtask row: %w", err)
		}
		subtasks = append(subtasks, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subtask rows: %w", err)
	}
	return subtasks, nil
}

func (s *SQLiteStore) SetSubtaskDone(ctx context.Context, subtaskID string, done bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subtasks SET is_done = ? WHERE id = ?`, done, subtaskID)
	if err != nil {
		return fmt.Errorf("failed to update subtask %s: %w", subtaskID, err)
	}
	return expectOneRow(res, "subtask", subtaskID)
}

// --- Intervals ---

func (s *SQLiteStore) AppendInterval(ctx context.Context, rec models.IntervalRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO intervals (id, owner_id, duration_minutes, kind, label, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.DurationMinutes, rec.Kind, rec.Label, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert interval: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListIntervals(ctx context.Context, ownerID string, r models.DateRange) ([]models.IntervalRecord, error) {
	query := `SELECT id, owner_id, duration_minutes, kind, label, created_at
	          FROM intervals
	          WHERE owner_id = ?`
	args := []interface{}{ownerID}
	query, args = withRange(query, args, "created_at", r)
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}
	defer rows.Close()

	var records []models.IntervalRecord
	for rows.Next() {
		var rec models.IntervalRecord
		var label sql.NullString
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.DurationMinutes, &rec.Kind, &label, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interval row: %w", err)
		}
		rec.Label = label.String
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interval rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		log.Println("Closing database connection.")
		return s.db.Close()
	}
	return nil
}

func withRange(query string, args []interface{}, column string, r models.DateRange) (string, []interface{}) {
	var clauses []string
	if !r.From.IsZero() {
		clauses = append(clauses, column+" >= ?")
		args = append(args, r.From.UTC())
	}
	if !r.To.IsZero() {
		clauses = append(clauses, column+" <= ?")
		args = append(args, r.To.UTC())
	}
	if len(clauses) > 0 {
		query += " AND " + strings.Join(clauses, " AND ")
	}
	return query, args
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
