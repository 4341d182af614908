package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Dhanush032/realtime-chat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	visibility TEXT NOT NULL DEFAULT 'public',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_access (
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	body       TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (room_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_messages_room_seq ON messages (room_id, seq);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
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

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// Append persists a message inside a transaction that computes the next
// per-room sequence number, so concurrent appends to the same room can
// never be assigned the same value and the series has no gaps.
func (s *SQLiteStore) Append(ctx context.Context, roomID, senderID, body string) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE room_id = ?`, roomID,
	).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("next seq: %w", err)
	}

	createdAt := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (room_id, sender_id, body, seq, created_at) VALUES (?, ?, ?, ?, ?)`,
		roomID, senderID, body, seq, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append tx: %w", err)
	}

	return &store.Message{
		ID:        id,
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		Seq:       seq,
		CreatedAt: createdAt,
	}, nil
}

// ReadRange returns up to limit messages in ascending sequence order.
// fromSeq <= 0 selects the newest limit messages instead.
func (s *SQLiteStore) ReadRange(ctx context.Context, roomID string, fromSeq int64, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, room_id, sender_id, body, seq, created_at
		FROM messages
		WHERE room_id = ? AND seq >= ?
		ORDER BY seq ASC
		LIMIT ?
	`
	args := []any{roomID, fromSeq, limit}
	tail := fromSeq <= 0
	if tail {
		query = `
			SELECT id, room_id, sender_id, body, seq, created_at
			FROM messages
			WHERE room_id = ?
			ORDER BY seq DESC
			LIMIT ?
		`
		args = []any{roomID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Body, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if tail {
		// Newest-first query; restore ascending order.
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, nil
}

// ==== RoomDirectory implementation ====

// EnsureRoom returns the room, creating a public room named after its id
// when it does not exist yet.
func (s *SQLiteStore) EnsureRoom(ctx context.Context, roomID string) (*store.Room, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, visibility, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		roomID, roomID, store.VisibilityPublic, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure room: %w", err)
	}
	return s.GetRoom(ctx, roomID)
}

// CreateRoom creates a room with explicit metadata.
func (s *SQLiteStore) CreateRoom(ctx context.Context, roomID, name string, visibility store.RoomVisibility) (*store.Room, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, visibility, created_at) VALUES (?, ?, ?, ?)`,
		roomID, name, visibility, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return s.GetRoom(ctx, roomID)
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*store.Room, error) {
	var room store.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, visibility, created_at FROM rooms WHERE id = ?`, roomID,
	).Scan(&room.ID, &room.Name, &room.Visibility, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// ListRooms lists all rooms ordered by creation time.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, visibility, created_at FROM rooms ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Visibility, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// Authorize reports whether userID may join roomID. Public rooms admit
// everyone; private rooms require a grant in room_access.
func (s *SQLiteStore) Authorize(ctx context.Context, roomID, userID string) (bool, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown rooms are implicitly created public on join.
			return true, nil
		}
		return false, err
	}
	if room.Visibility == store.VisibilityPublic {
		return true, nil
	}

	var n int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM room_access WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query room access: %w", err)
	}
	return n > 0, nil
}

// GrantAccess allows userID into a private room.
func (s *SQLiteStore) GrantAccess(ctx context.Context, roomID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_access (room_id, user_id) VALUES (?, ?)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("grant access: %w", err)
	}
	return nil
}
