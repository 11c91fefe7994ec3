// Package store persists conversations in SQLite so clients can list and
// reopen past elicitation chats. Persistence is optional; the server runs
// without it when no database path is configured.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    TEXT NOT NULL REFERENCES chats(id),
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);
`

// Chat is one persisted conversation.
type Chat struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// Message is one persisted turn. Sender is "user" or "assistant".
type Message struct {
	ChatID    string `json:"chat_id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Store wraps the SQLite database holding chats and messages.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateChat inserts a new chat and returns it.
func (s *Store) CreateChat(title string) (*Chat, error) {
	chat := &Chat{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	_, err := s.db.Exec(
		`INSERT INTO chats (id, title, created_at) VALUES (?, ?, ?)`,
		chat.ID, chat.Title, chat.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}
	return chat, nil
}

// AppendMessage stores one turn of a chat.
func (s *Store) AppendMessage(chatID, sender, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (chat_id, sender, content, created_at) VALUES (?, ?, ?, ?)`,
		chatID, sender, content, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListChats returns all chats, newest first.
func (s *Store) ListChats() ([]Chat, error) {
	rows, err := s.db.Query(`SELECT id, title, created_at FROM chats ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// Messages returns the turns of one chat in append order.
func (s *Store) Messages(chatID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT chat_id, sender, content, created_at FROM messages WHERE chat_id = ? ORDER BY id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ChatID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
