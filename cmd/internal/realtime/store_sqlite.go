package realtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// SQLiteStore is a single-node Store backed by a file database. It keeps the
// same table shapes as the Postgres store so deployments can move between the
// two without touching handler logic.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and bootstraps) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	profile_pic TEXT NOT NULL DEFAULT '',
	fcm_token TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT
);
CREATE TABLE IF NOT EXISTS user_rooms (
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	join_room TEXT NOT NULL,
	leave_room TEXT,
	PRIMARY KEY (room_id, user_id)
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	message TEXT NOT NULL,
	is_read INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_unread ON messages(room_id, is_read);
CREATE TABLE IF NOT EXISTS map_users (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE,
	socket_id TEXT NOT NULL
);
`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// PutUser seeds or replaces a user row (dev mode; user rows are otherwise
// owned by the REST application).
func (s *SQLiteStore) PutUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, profile_pic, fcm_token) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, profile_pic = excluded.profile_pic, fcm_token = excluded.fcm_token`,
		string(u.ID), u.Name, u.AvatarURL, u.PushToken,
	)
	return err
}

// FindUser returns the user row or ErrUserNotFound.
func (s *SQLiteStore) FindUser(ctx context.Context, id v1.UserID) (User, error) {
	var u User
	var uid string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, profile_pic, fcm_token FROM users WHERE id = ?`,
		string(id),
	).Scan(&uid, &u.Name, &u.AvatarURL, &u.PushToken)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	u.ID = v1.UserID(uid)
	return u, nil
}

// CreateRoom inserts a room row.
func (s *SQLiteStore) CreateRoom(ctx context.Context, creator v1.UserID, now time.Time) (RoomRecord, error) {
	if _, err := s.FindUser(ctx, creator); err != nil {
		return RoomRecord{}, err
	}

	id := NewID(now)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, user_id, start_time) VALUES (?, ?, ?)`,
		id, string(creator), sqliteTime(now),
	); err != nil {
		return RoomRecord{}, fmt.Errorf("create room: %w", err)
	}
	return RoomRecord{ID: v1.RoomID(id), CreatorID: creator, StartedAt: now}, nil
}

// EndRoom stamps the room end time and closes every open membership.
func (s *SQLiteStore) EndRoom(ctx context.Context, roomID v1.RoomID, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET end_time = ? WHERE id = ?`,
		sqliteTime(now), string(roomID),
	)
	if err != nil {
		return fmt.Errorf("end room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE user_rooms SET leave_room = ? WHERE room_id = ? AND leave_room IS NULL`,
		sqliteTime(now), string(roomID),
	); err != nil {
		return fmt.Errorf("close memberships: %w", err)
	}
	return nil
}

// AddMember inserts a membership row if absent.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_rooms (room_id, user_id, join_room) VALUES (?, ?, ?)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		string(roomID), string(userID), sqliteTime(now),
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// LeaveRoom stamps the membership leave time.
func (s *SQLiteStore) LeaveRoom(ctx context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_rooms SET leave_room = ? WHERE room_id = ? AND user_id = ? AND leave_room IS NULL`,
		sqliteTime(now), string(roomID), string(userID),
	)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	return nil
}

// FindMembers returns all membership rows for the room.
func (s *SQLiteStore) FindMembers(ctx context.Context, roomID v1.RoomID) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, user_id, join_room, leave_room FROM user_rooms WHERE room_id = ?`,
		string(roomID),
	)
	if err != nil {
		return nil, fmt.Errorf("find members: %w", err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var (
			m        Membership
			rid, uid string
			joined   string
			left     sql.NullString
		)
		if err := rows.Scan(&rid, &uid, &joined, &left); err != nil {
			return nil, err
		}
		m.RoomID = v1.RoomID(rid)
		m.UserID = v1.UserID(uid)
		m.JoinedAt, _ = time.Parse(time.RFC3339Nano, joined)
		if left.Valid {
			t, err := time.Parse(time.RFC3339Nano, left.String)
			if err == nil {
				m.LeftAt = &t
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMessage inserts an unread message row.
func (s *SQLiteStore) CreateMessage(ctx context.Context, roomID v1.RoomID, userID v1.UserID, text string) (StoredMessage, error) {
	now := time.Now().UTC()
	id := NewID(now)

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, user_id, message, is_read, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		id, string(roomID), string(userID), text, sqliteTime(now),
	); err != nil {
		return StoredMessage{}, fmt.Errorf("create message: %w", err)
	}
	return StoredMessage{
		ID:        id,
		RoomID:    roomID,
		UserID:    userID,
		Text:      text,
		CreatedAt: now,
	}, nil
}

// CountUnread counts unread messages in the room matching the filter.
func (s *SQLiteStore) CountUnread(ctx context.Context, roomID v1.RoomID, f UnreadFilter) (int64, error) {
	if f.AuthoredBy == "" && f.NotAuthoredBy == "" {
		return 0, errors.New("empty unread filter")
	}

	var (
		n   int64
		err error
	)
	if f.AuthoredBy != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE room_id = ? AND user_id = ? AND is_read = 0`,
			string(roomID), string(f.AuthoredBy),
		).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE room_id = ? AND user_id <> ? AND is_read = 0`,
			string(roomID), string(f.NotAuthoredBy),
		).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flips unread messages not authored by excludeUser to read.
func (s *SQLiteStore) MarkRead(ctx context.Context, roomID v1.RoomID, excludeUser v1.UserID) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE room_id = ? AND user_id <> ? AND is_read = 0`,
		string(roomID), string(excludeUser),
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpsertSessionMapping persists userId <-> connectionID (last writer wins).
func (s *SQLiteStore) UpsertSessionMapping(ctx context.Context, userID v1.UserID, connectionID string) (SessionMapping, bool, error) {
	existing, err := s.FindSessionMapping(ctx, userID)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx,
			`UPDATE map_users SET socket_id = ? WHERE user_id = ?`,
			connectionID, string(userID),
		); err != nil {
			return SessionMapping{}, false, fmt.Errorf("resync session mapping: %w", err)
		}
		existing.ConnectionID = connectionID
		return existing, true, nil

	case errors.Is(err, ErrSessionNotFound):
		m := SessionMapping{ID: NewID(time.Now().UTC()), UserID: userID, ConnectionID: connectionID}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO map_users (id, user_id, socket_id) VALUES (?, ?, ?)`,
			m.ID, string(userID), connectionID,
		); err != nil {
			return SessionMapping{}, false, fmt.Errorf("insert session mapping: %w", err)
		}
		return m, false, nil

	default:
		return SessionMapping{}, false, err
	}
}

// DeleteSessionMapping removes any mapping owning connectionID.
func (s *SQLiteStore) DeleteSessionMapping(ctx context.Context, connectionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM map_users WHERE socket_id = ?`,
		connectionID,
	); err != nil {
		return fmt.Errorf("delete session mapping: %w", err)
	}
	return nil
}

// FindSessionMapping returns the mapping for userID or ErrSessionNotFound.
func (s *SQLiteStore) FindSessionMapping(ctx context.Context, userID v1.UserID) (SessionMapping, error) {
	var m SessionMapping
	var id, uid, sid string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, socket_id FROM map_users WHERE user_id = ?`,
		string(userID),
	).Scan(&id, &uid, &sid)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionMapping{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionMapping{}, fmt.Errorf("find session mapping: %w", err)
	}
	m.ID, m.UserID, m.ConnectionID = id, v1.UserID(uid), sid
	return m, nil
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
