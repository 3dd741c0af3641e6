// Package db persists the conversation log to SQLite so it survives restarts.
package db

import "time"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Session is one run of the console against a server.
type Session struct {
	ID        string
	ServerURL string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Message is one conversation log entry. Assistant messages grow as text
// chunks arrive.
type Message struct {
	ID             string
	SessionID      string
	Sender         Sender
	Text           string
	SequenceNumber int
	CreatedAt      time.Time
}
