package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		serverUrl TEXT NOT NULL,
		startedAt REAL NOT NULL,
		endedAt REAL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		sequenceNumber INTEGER NOT NULL,
		createdAt REAL NOT NULL,
		UNIQUE(sessionId, sequenceNumber)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(createdAt);
`

// Store provides access to the conversation history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path with WAL.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; also keeps :memory: on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records a new session.
func (s *Store) StartSession(serverURL string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		ServerURL: serverURL,
		StartedAt: s.now(),
	}
	if _, err := s.db.Exec(`
		INSERT INTO sessions (id, serverUrl, startedAt) VALUES (?, ?, ?)
	`, sess.ID, sess.ServerURL, unixFromTime(sess.StartedAt)); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(id string) error {
	res, err := s.db.Exec(`UPDATE sessions SET endedAt = ? WHERE id = ?`, unixFromTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// AppendMessage adds a message at the end of the session's log.
func (s *Store) AppendMessage(sessionID string, sender Sender, text string) (Message, error) {
	m := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Text:      text,
		CreatedAt: s.now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Message{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRow(`
		SELECT COALESCE(MAX(sequenceNumber), 0) + 1 FROM messages WHERE sessionId = ?
	`, sessionID).Scan(&m.SequenceNumber); err != nil {
		return Message{}, fmt.Errorf("next sequence: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO messages (id, sessionId, sender, text, sequenceNumber, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.SessionID, string(m.Sender), m.Text, m.SequenceNumber, unixFromTime(m.CreatedAt)); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

// AppendText extends an existing message, used for streamed assistant text.
func (s *Store) AppendText(messageID, text string) error {
	res, err := s.db.Exec(`UPDATE messages SET text = text || ? WHERE id = ?`, text, messageID)
	if err != nil {
		return fmt.Errorf("append text: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("append text to %s: %w", messageID, sql.ErrNoRows)
	}
	return nil
}

// RecentMessages returns up to limit of the newest messages across all
// sessions, oldest first.
func (s *Store) RecentMessages(limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT id, sessionId, sender, text, sequenceNumber, createdAt FROM (
			SELECT m.id, m.sessionId, m.sender, m.text, m.sequenceNumber, m.createdAt, s.startedAt
			FROM messages m JOIN sessions s ON s.id = m.sessionId
			ORDER BY s.startedAt DESC, m.sequenceNumber DESC
			LIMIT ?
		) ORDER BY startedAt ASC, sequenceNumber ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var sender string
		var createdAt float64
		if err := rows.Scan(&m.ID, &m.SessionID, &sender, &m.Text, &m.SequenceNumber, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = Sender(sender)
		m.CreatedAt = timeFromUnix(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// LatestSession returns the most recent session, or nil if there is none.
func (s *Store) LatestSession() (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, serverUrl, startedAt, endedAt
		FROM sessions
		ORDER BY startedAt DESC
		LIMIT 1
	`)

	var sess Session
	var startedAt float64
	var endedAt sql.NullFloat64
	if err := row.Scan(&sess.ID, &sess.ServerURL, &startedAt, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.StartedAt = timeFromUnix(startedAt)
	if endedAt.Valid {
		t := timeFromUnix(endedAt.Float64)
		sess.EndedAt = &t
	}
	return &sess, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
