package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nexuschat/nexus-relay/internal/store"
)

// Store implements store.MessageStore on SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id   TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	author     TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	reply_to   INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(group_id, chat_id, id DESC);
`

// New opens (and if needed initializes) the message journal at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendMessage inserts a message and returns the assigned id.
func (s *Store) AppendMessage(ctx context.Context, msg *store.Message) (int64, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (group_id, chat_id, author, role, content, reply_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.GroupID, msg.ChatID, msg.Author, string(msg.Role), msg.Content, msg.ReplyTo, msg.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return id, nil
}

// UpdateMessage replaces the content of a message owned by author.
func (s *Store) UpdateMessage(ctx context.Context, id int64, author, content string) error {
	owner, err := s.messageAuthor(ctx, id)
	if err != nil {
		return err
	}
	if owner != author {
		return store.ErrNotAuthor
	}

	_, err = s.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message owned by author.
func (s *Store) DeleteMessage(ctx context.Context, id int64, author string) error {
	owner, err := s.messageAuthor(ctx, id)
	if err != nil {
		return err
	}
	if owner != author {
		return store.ErrNotAuthor
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// History returns up to limit most recent room messages, oldest first.
func (s *Store) History(ctx context.Context, groupID, chatID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, group_id, chat_id, author, role, content, reply_to, created_at
		FROM messages
		WHERE group_id = ? AND chat_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, groupID, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var m store.Message
		var role string
		if err := rows.Scan(&m.ID, &m.GroupID, &m.ChatID, &m.Author, &role, &m.Content, &m.ReplyTo, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = store.Role(role)
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	// Query is newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (s *Store) messageAuthor(ctx context.Context, id int64) (string, error) {
	var author string
	err := s.db.QueryRowContext(ctx, `SELECT author FROM messages WHERE id = ?`, id).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query message author: %w", err)
	}
	return author, nil
}
