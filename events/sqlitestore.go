package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store (§3's EventStore schema): a single
// file database suitable for development and single-process deployments,
// grounded on the teacher's SQLiteStore (WAL mode, busy_timeout, a single
// writer connection).
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// migrates the events/threads/messages/thinking_events/tool_executions
// tables.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			element_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			element_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			blob TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_element ON events(element_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			status TEXT NOT NULL,
			cancellation_reason TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
		`CREATE TABLE IF NOT EXISTS thinking_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_thinking_thread ON thinking_events(thread_id)`,
		`CREATE TABLE IF NOT EXISTS tool_executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			args TEXT NOT NULL,
			result TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_exec_thread ON tool_executions(thread_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ThreadID(elementID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var threadID string
	ctx := context.Background()
	err := s.db.QueryRowContext(ctx, `SELECT thread_id FROM threads WHERE element_id = ?`, elementID).Scan(&threadID)
	if err == nil {
		return threadID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("query thread: %w", err)
	}

	threadID = uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO threads (element_id, thread_id) VALUES (?, ?)`, elementID, threadID); err != nil {
		return "", fmt.Errorf("insert thread: %w", err)
	}
	return threadID, nil
}

func (s *SQLiteStore) AppendEvent(elementID, eventType string, blob []byte, ts time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO events (element_id, event_type, blob, timestamp) VALUES (?, ?, ?, ?)`,
		elementID, eventType, string(blob), ts)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertMessage(msg StoredMessage) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO messages (message_id, thread_id, role, content, status, cancellation_reason, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			content = excluded.content,
			status = excluded.status,
			cancellation_reason = excluded.cancellation_reason,
			updated_at = excluded.updated_at
	`, msg.MessageID, msg.ThreadID, msg.Role, msg.Content, string(msg.Status), msg.CancellationReason, msg.StartedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendThinking(threadID, message string, ts time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO thinking_events (thread_id, message, timestamp) VALUES (?, ?, ?)`, threadID, message, ts)
	if err != nil {
		return fmt.Errorf("append thinking: %w", err)
	}
	return nil
}

func (s *SQLiteStore) StartToolExecution(threadID, toolName string, args map[string]any, ts time.Time) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(), `
		INSERT INTO tool_executions (thread_id, tool_name, args, status, start_time)
		VALUES (?, ?, ?, ?, ?)
	`, threadID, toolName, string(argsJSON), string(ToolRunning), ts)
	if err != nil {
		return fmt.Errorf("start tool execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EndToolExecution(threadID, toolName string, result map[string]any, ts time.Time) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(), `
		UPDATE tool_executions SET status = ?, result = ?, end_time = ?
		WHERE id = (
			SELECT id FROM tool_executions
			WHERE thread_id = ? AND tool_name = ? AND status = ?
			ORDER BY id DESC LIMIT 1
		)
	`, string(ToolComplete), string(resultJSON), ts, threadID, toolName, string(ToolRunning))
	if err != nil {
		return fmt.Errorf("end tool execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ThinkingEvents(threadID string) ([]ThinkingEvent, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT thread_id, message, timestamp FROM thinking_events WHERE thread_id = ? ORDER BY id ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query thinking events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ThinkingEvent
	for rows.Next() {
		var e ThinkingEvent
		if err := rows.Scan(&e.ThreadID, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan thinking event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ToolExecutions(threadID string) ([]ToolExecution, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT thread_id, tool_name, args, result, status, start_time, end_time
		FROM tool_executions WHERE thread_id = ? ORDER BY id ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query tool executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ToolExecution
	for rows.Next() {
		var (
			e          ToolExecution
			argsJSON   string
			resultJSON string
			status     string
			endTime    sql.NullTime
		)
		if err := rows.Scan(&e.ThreadID, &e.ToolName, &argsJSON, &resultJSON, &status, &e.StartTime, &endTime); err != nil {
			return nil, fmt.Errorf("scan tool execution: %w", err)
		}
		e.Status = ToolStatus(status)
		if endTime.Valid {
			e.EndTime = endTime.Time
		}
		if argsJSON != "" {
			if err := json.Unmarshal([]byte(argsJSON), &e.Args); err != nil {
				return nil, fmt.Errorf("unmarshal args: %w", err)
			}
		}
		if resultJSON != "" {
			if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Messages(threadID string) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT message_id, thread_id, role, content, status, cancellation_reason, started_at, updated_at
		FROM messages WHERE thread_id = ? ORDER BY started_at ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var status string
		if err := rows.Scan(&m.MessageID, &m.ThreadID, &m.Role, &m.Content, &status, &m.CancellationReason, &m.StartedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Status = MessageStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
