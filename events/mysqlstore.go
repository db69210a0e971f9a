package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLStore is a MySQL/MariaDB-backed Store for production deployments
// that want the event history to survive the engine process restarting,
// grounded on the teacher's MySQLStore connection-pool configuration.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a connection pool against dsn and migrates the
// schema. dsn must include parseTime=true so TIMESTAMP columns scan into
// time.Time directly.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			element_id VARCHAR(255) PRIMARY KEY,
			thread_id VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			element_id VARCHAR(255) NOT NULL,
			event_type VARCHAR(128) NOT NULL,
			blob MEDIUMTEXT NOT NULL,
			timestamp TIMESTAMP(6) NOT NULL,
			INDEX idx_events_element (element_id),
			INDEX idx_events_type (event_type),
			INDEX idx_events_timestamp (timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id VARCHAR(64) PRIMARY KEY,
			thread_id VARCHAR(64) NOT NULL,
			role VARCHAR(32) NOT NULL,
			content MEDIUMTEXT NOT NULL,
			status VARCHAR(16) NOT NULL,
			cancellation_reason VARCHAR(512) NOT NULL DEFAULT '',
			started_at TIMESTAMP(6) NOT NULL,
			updated_at TIMESTAMP(6) NOT NULL,
			INDEX idx_messages_thread (thread_id)
		)`,
		`CREATE TABLE IF NOT EXISTS thinking_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(64) NOT NULL,
			message MEDIUMTEXT NOT NULL,
			timestamp TIMESTAMP(6) NOT NULL,
			INDEX idx_thinking_thread (thread_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tool_executions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(64) NOT NULL,
			tool_name VARCHAR(255) NOT NULL,
			args MEDIUMTEXT NOT NULL,
			result MEDIUMTEXT NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL,
			start_time TIMESTAMP(6) NOT NULL,
			end_time TIMESTAMP(6) NULL,
			INDEX idx_tool_exec_thread (thread_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *MySQLStore) ThreadID(elementID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	var threadID string
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

func (s *MySQLStore) AppendEvent(elementID, eventType string, blob []byte, ts time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO events (element_id, event_type, blob, timestamp) VALUES (?, ?, ?, ?)`,
		elementID, eventType, string(blob), ts)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *MySQLStore) UpsertMessage(msg StoredMessage) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO messages (message_id, thread_id, role, content, status, cancellation_reason, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			content = VALUES(content),
			status = VALUES(status),
			cancellation_reason = VALUES(cancellation_reason),
			updated_at = VALUES(updated_at)
	`, msg.MessageID, msg.ThreadID, msg.Role, msg.Content, string(msg.Status), msg.CancellationReason, msg.StartedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

func (s *MySQLStore) AppendThinking(threadID, message string, ts time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO thinking_events (thread_id, message, timestamp) VALUES (?, ?, ?)`, threadID, message, ts)
	if err != nil {
		return fmt.Errorf("append thinking: %w", err)
	}
	return nil
}

func (s *MySQLStore) StartToolExecution(threadID, toolName string, args map[string]any, ts time.Time) error {
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

func (s *MySQLStore) EndToolExecution(threadID, toolName string, result map[string]any, ts time.Time) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(), `
		UPDATE tool_executions SET status = ?, result = ?, end_time = ?
		WHERE id = (
			SELECT id FROM (
				SELECT id FROM tool_executions
				WHERE thread_id = ? AND tool_name = ? AND status = ?
				ORDER BY id DESC LIMIT 1
			) AS latest
		)
	`, string(ToolComplete), string(resultJSON), ts, threadID, toolName, string(ToolRunning))
	if err != nil {
		return fmt.Errorf("end tool execution: %w", err)
	}
	return nil
}

func (s *MySQLStore) ThinkingEvents(threadID string) ([]ThinkingEvent, error) {
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

func (s *MySQLStore) ToolExecutions(threadID string) ([]ToolExecution, error) {
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

func (s *MySQLStore) Messages(threadID string) ([]StoredMessage, error) {
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

func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
