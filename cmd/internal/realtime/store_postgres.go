package realtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// PostgresStore is the production Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Schema: users/rooms/user_rooms/messages are owned by the REST application;
// this store only reads them plus writes messages, read flags, room/member
// rows, and the map_users session table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "public").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("realtime: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("realtime: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "public",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("realtime: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// FindUser returns the user row or ErrUserNotFound.
func (s *PostgresStore) FindUser(ctx context.Context, id v1.UserID) (User, error) {
	users := pgIdent(s.schema, "users")

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(profile_pic, ''), COALESCE(fcm_token, '')
		   FROM `+users+` WHERE id = $1`,
		string(id),
	).Scan(&u.ID, &u.Name, &u.AvatarURL, &u.PushToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// CreateRoom inserts a room row with the given start time.
func (s *PostgresStore) CreateRoom(ctx context.Context, creator v1.UserID, now time.Time) (RoomRecord, error) {
	if _, err := s.FindUser(ctx, creator); err != nil {
		return RoomRecord{}, err
	}

	rooms := pgIdent(s.schema, "rooms")

	var r RoomRecord
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+rooms+` (id, user_id, start_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $3, $3)
		 RETURNING id, user_id, start_time`,
		NewID(now), string(creator), now,
	).Scan(&r.ID, &r.CreatorID, &r.StartedAt)
	if err != nil {
		return RoomRecord{}, fmt.Errorf("create room: %w", err)
	}
	return r, nil
}

// EndRoom stamps the room end time and closes every open membership.
func (s *PostgresStore) EndRoom(ctx context.Context, roomID v1.RoomID, now time.Time) error {
	rooms := pgIdent(s.schema, "rooms")
	userRooms := pgIdent(s.schema, "user_rooms")

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx,
		`UPDATE `+rooms+` SET end_time = $2, updated_at = $2 WHERE id = $1`,
		string(roomID), now,
	)
	if err != nil {
		return fmt.Errorf("end room: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrRoomNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+userRooms+` SET leave_room = $2 WHERE room_id = $1 AND leave_room IS NULL`,
		string(roomID), now,
	); err != nil {
		return fmt.Errorf("close memberships: %w", err)
	}

	return tx.Commit(ctx)
}

// AddMember inserts a membership row if absent.
func (s *PostgresStore) AddMember(ctx context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error {
	userRooms := pgIdent(s.schema, "user_rooms")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+userRooms+` (room_id, user_id, join_room, created_at, updated_at)
		 VALUES ($1, $2, $3, $3, $3)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		string(roomID), string(userID), now,
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// LeaveRoom stamps the membership leave time.
func (s *PostgresStore) LeaveRoom(ctx context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error {
	userRooms := pgIdent(s.schema, "user_rooms")

	_, err := s.pool.Exec(ctx,
		`UPDATE `+userRooms+` SET leave_room = $3 WHERE room_id = $1 AND user_id = $2 AND leave_room IS NULL`,
		string(roomID), string(userID), now,
	)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	return nil
}

// FindMembers returns all membership rows for the room.
func (s *PostgresStore) FindMembers(ctx context.Context, roomID v1.RoomID) ([]Membership, error) {
	userRooms := pgIdent(s.schema, "user_rooms")

	rows, err := s.pool.Query(ctx,
		`SELECT room_id, user_id, join_room, leave_room
		   FROM `+userRooms+` WHERE room_id = $1`,
		string(roomID),
	)
	if err != nil {
		return nil, fmt.Errorf("find members: %w", err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.JoinedAt, &m.LeftAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMessage inserts an unread message row.
func (s *PostgresStore) CreateMessage(ctx context.Context, roomID v1.RoomID, userID v1.UserID, text string) (StoredMessage, error) {
	messages := pgIdent(s.schema, "messages")

	now := time.Now().UTC()
	id := NewID(now)

	var m StoredMessage
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+messages+` (id, room_id, user_id, message, is_read, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		 RETURNING id, room_id, user_id, message, is_read, created_at`,
		id, string(roomID), string(userID), text, now,
	).Scan(&m.ID, &m.RoomID, &m.UserID, &m.Text, &m.Read, &m.CreatedAt)
	if err != nil {
		return StoredMessage{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// CountUnread counts unread messages in the room matching the filter.
func (s *PostgresStore) CountUnread(ctx context.Context, roomID v1.RoomID, f UnreadFilter) (int64, error) {
	if f.AuthoredBy == "" && f.NotAuthoredBy == "" {
		return 0, errors.New("empty unread filter")
	}

	messages := pgIdent(s.schema, "messages")

	var (
		n   int64
		err error
	)
	if f.AuthoredBy != "" {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM `+messages+`
			  WHERE room_id = $1 AND user_id = $2 AND is_read = FALSE`,
			string(roomID), string(f.AuthoredBy),
		).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM `+messages+`
			  WHERE room_id = $1 AND user_id <> $2 AND is_read = FALSE`,
			string(roomID), string(f.NotAuthoredBy),
		).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flips unread messages not authored by excludeUser to read.
func (s *PostgresStore) MarkRead(ctx context.Context, roomID v1.RoomID, excludeUser v1.UserID) (int64, error) {
	messages := pgIdent(s.schema, "messages")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+messages+` SET is_read = TRUE, updated_at = now()
		  WHERE room_id = $1 AND user_id <> $2 AND is_read = FALSE`,
		string(roomID), string(excludeUser),
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return ct.RowsAffected(), nil
}

// UpsertSessionMapping persists userId <-> connectionID (last writer wins).
func (s *PostgresStore) UpsertSessionMapping(ctx context.Context, userID v1.UserID, connectionID string) (SessionMapping, bool, error) {
	mapUsers := pgIdent(s.schema, "map_users")

	now := time.Now().UTC()

	var (
		m        SessionMapping
		inserted bool
	)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+mapUsers+` (id, user_id, socket_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (user_id) DO UPDATE
		    SET socket_id = EXCLUDED.socket_id, updated_at = EXCLUDED.updated_at
		 RETURNING id, user_id, socket_id, (xmax = 0)`,
		NewID(now), string(userID), connectionID, now,
	).Scan(&m.ID, &m.UserID, &m.ConnectionID, &inserted)
	if err != nil {
		return SessionMapping{}, false, fmt.Errorf("upsert session mapping: %w", err)
	}
	return m, !inserted, nil
}

// DeleteSessionMapping removes any mapping owning connectionID.
func (s *PostgresStore) DeleteSessionMapping(ctx context.Context, connectionID string) error {
	mapUsers := pgIdent(s.schema, "map_users")

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM `+mapUsers+` WHERE socket_id = $1`,
		connectionID,
	); err != nil {
		return fmt.Errorf("delete session mapping: %w", err)
	}
	return nil
}

// FindSessionMapping returns the mapping for userID or ErrSessionNotFound.
func (s *PostgresStore) FindSessionMapping(ctx context.Context, userID v1.UserID) (SessionMapping, error) {
	mapUsers := pgIdent(s.schema, "map_users")

	var m SessionMapping
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, socket_id FROM `+mapUsers+` WHERE user_id = $1`,
		string(userID),
	).Scan(&m.ID, &m.UserID, &m.ConnectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionMapping{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionMapping{}, fmt.Errorf("find session mapping: %w", err)
	}
	return m, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
