package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
	_ "modernc.org/sqlite"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/repository/migrations"
	"github.com/mcdev12/todoroom/go/internal/sqlutil"
)

// SQLiteRepository stores rooms in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; the version checks do the rest
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applySQLiteMigrations(ctx, db, migrations.SQLite, "sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close closes the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// CreateRoom inserts a room, its roles and the outbox events.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *models.Room, outbox []events.OutboxEvent) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rooms (id, name, description, head_count, point_cap, matching_type, state,
			                   visibility, owner_id, password_hash, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			room.ID, room.Name, room.Description, room.HeadCount, room.PointCap,
			string(room.MatchingType), string(room.State), room.Visibility,
			sqlutil.ToNullUUID(room.OwnerID), room.PasswordHash, room.Version,
			sqlutil.ToMillis(room.CreatedAt), sqlutil.ToMillis(room.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}

		for _, role := range room.Roles {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO roles (room_id, id, name, description) VALUES (?, ?, ?, ?)`,
				room.ID, role.ID, role.Name, role.Description,
			)
			if err != nil {
				return fmt.Errorf("insert role %d: %w", role.ID, err)
			}
		}
		return insertSQLiteOutbox(ctx, tx, outbox)
	})
}

// LoadRoom returns the full snapshot of a room.
func (r *SQLiteRepository) LoadRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return loadSQLiteRoom(ctx, r.db, id)
}

// AddParticipant inserts a participant and their bids if the room is still
// OPEN at expectedVersion.
func (r *SQLiteRepository) AddParticipant(ctx context.Context, roomID uuid.UUID, participant models.Participant, bids []models.Bid, expectedVersion int64, outbox []events.OutboxEvent) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if err := bumpSQLiteVersion(ctx, tx, roomID, expectedVersion, sqlutil.ToMillis(participant.JoinedAt)); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO participants (id, room_id, name, user_id, join_order, joined_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			participant.ID, roomID, participant.Name, sqlutil.ToNullUUID(participant.UserID),
			participant.JoinOrder, sqlutil.ToMillis(participant.JoinedAt),
		)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}

		for _, bid := range bids {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO bids (participant_id, room_id, role_id, points, comment)
				VALUES (?, ?, ?, ?, ?)`,
				participant.ID, roomID, bid.RoleID, bid.Points, sqlutil.ToSqlString(bid.Comment),
			)
			if err != nil {
				return fmt.Errorf("insert bid on role %d: %w", bid.RoleID, err)
			}
		}
		return insertSQLiteOutbox(ctx, tx, outbox)
	})
}

// SaveAssignment publishes the winners of a room if it is still OPEN at
// expectedVersion.
func (r *SQLiteRepository) SaveAssignment(ctx context.Context, room *models.Room, expectedVersion int64, outbox []events.OutboxEvent) error {
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE rooms
			SET state = ?, drawn_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ? AND state = ?`,
			string(models.RoomStateDrawn), sqlutil.ToNullMillis(room.DrawnAt), sqlutil.ToMillis(room.UpdatedAt),
			room.ID, expectedVersion, string(models.RoomStateOpen),
		)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		if err := sqliteCASResult(ctx, tx, res, room.ID); err != nil {
			return err
		}

		for _, role := range room.Roles {
			_, err := tx.ExecContext(ctx,
				`UPDATE roles SET winner_id = ? WHERE room_id = ? AND id = ?`,
				sqlutil.ToNullUUID(role.Winner), room.ID, role.ID,
			)
			if err != nil {
				return fmt.Errorf("update role %d: %w", role.ID, err)
			}
		}
		return insertSQLiteOutbox(ctx, tx, outbox)
	})
	if err != nil {
		return err
	}
	room.Version = expectedVersion + 1
	return nil
}

// ListRooms returns rooms matching the filter, newest first.
func (r *SQLiteRepository) ListRooms(ctx context.Context, filter RoomFilter) ([]*models.Room, error) {
	var (
		where []string
		args  []any
	)
	if filter.PublicOnly {
		where = append(where, "visibility = 1")
	}
	if filter.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if filter.ParticipantUserID != nil {
		where = append(where, "id IN (SELECT room_id FROM participants WHERE user_id = ?)")
		args = append(args, *filter.ParticipantUserID)
	}

	query := "SELECT id FROM rooms"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, filter.limit())

	ids, err := scanSQLiteIDs(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]*models.Room, 0, len(ids))
	for _, id := range ids {
		room, err := loadSQLiteRoom(ctx, r.db, id)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// FetchUnsentOutbox returns up to limit unsent events, oldest first.
func (r *SQLiteRepository) FetchUnsentOutbox(ctx context.Context, limit int) ([]events.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, event_type, payload, created_at
		FROM room_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []events.OutboxEvent
	for rows.Next() {
		event, err := scanSQLiteOutbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// FetchOutboxByID returns one unsent event.
func (r *SQLiteRepository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*events.OutboxEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, room_id, event_type, payload, created_at
		FROM room_outbox
		WHERE id = ? AND sent_at IS NULL`, id)
	event, err := scanSQLiteOutbox(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOutboxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkOutboxSent stamps an event as published.
func (r *SQLiteRepository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE room_outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL`,
		sqlutil.ToMillis(timeNow()), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func loadSQLiteRoom(ctx context.Context, q sqlQuerier, id uuid.UUID) (*models.Room, error) {
	var (
		room                 models.Room
		matchingType, state  string
		ownerID              uuid.NullUUID
		createdAt, updatedAt int64
		drawnAt              sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, description, head_count, point_cap, matching_type, state, visibility,
		       owner_id, password_hash, version, created_at, updated_at, drawn_at
		FROM rooms WHERE id = ?`, id).Scan(
		&room.ID, &room.Name, &room.Description, &room.HeadCount, &room.PointCap, &matchingType,
		&state, &room.Visibility, &ownerID, &room.PasswordHash, &room.Version,
		&createdAt, &updatedAt, &drawnAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	room.MatchingType = models.MatchingType(matchingType)
	room.State = models.RoomState(state)
	room.OwnerID = sqlutil.FromNullUUID(ownerID)
	room.CreatedAt = sqlutil.FromMillis(createdAt)
	room.UpdatedAt = sqlutil.FromMillis(updatedAt)
	room.DrawnAt = sqlutil.FromNullMillis(drawnAt)

	if err := loadSQLiteRoles(ctx, q, &room); err != nil {
		return nil, err
	}
	if err := loadSQLiteParticipants(ctx, q, &room); err != nil {
		return nil, err
	}
	if err := loadSQLiteBids(ctx, q, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func loadSQLiteRoles(ctx context.Context, q sqlQuerier, room *models.Room) error {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, description, winner_id FROM roles WHERE room_id = ? ORDER BY id`, room.ID)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()

	room.Roles = []models.Role{}
	for rows.Next() {
		var (
			role   models.Role
			winner uuid.NullUUID
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &winner); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
		role.Winner = sqlutil.FromNullUUID(winner)
		room.Roles = append(room.Roles, role)
	}
	return rows.Err()
}

func loadSQLiteParticipants(ctx context.Context, q sqlQuerier, room *models.Room) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, user_id, join_order, joined_at
		FROM participants WHERE room_id = ? ORDER BY join_order`, room.ID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	room.Participants = []models.Participant{}
	for rows.Next() {
		var (
			p        models.Participant
			userID   uuid.NullUUID
			joinedAt int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &userID, &p.JoinOrder, &joinedAt); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		p.RoomID = room.ID
		p.UserID = sqlutil.FromNullUUID(userID)
		p.JoinedAt = sqlutil.FromMillis(joinedAt)
		room.Participants = append(room.Participants, p)
	}
	return rows.Err()
}

func loadSQLiteBids(ctx context.Context, q sqlQuerier, room *models.Room) error {
	rows, err := q.QueryContext(ctx, `
		SELECT b.participant_id, b.role_id, b.points, b.comment
		FROM bids b JOIN participants p ON p.id = b.participant_id
		WHERE b.room_id = ?
		ORDER BY p.join_order, b.role_id`, room.ID)
	if err != nil {
		return fmt.Errorf("load bids: %w", err)
	}
	defer rows.Close()

	room.Bids = []models.Bid{}
	for rows.Next() {
		var (
			bid     models.Bid
			comment sql.NullString
		)
		if err := rows.Scan(&bid.ParticipantID, &bid.RoleID, &bid.Points, &comment); err != nil {
			return fmt.Errorf("scan bid: %w", err)
		}
		bid.Comment = sqlutil.FromSqlStringPtr(comment)
		room.Bids = append(room.Bids, bid)
	}
	return rows.Err()
}

// bumpSQLiteVersion is the check-and-set every write to an open room goes through.
func bumpSQLiteVersion(ctx context.Context, tx *sql.Tx, roomID uuid.UUID, expectedVersion int64, updatedAt int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE rooms SET version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND state = ?`,
		updatedAt, roomID, expectedVersion, string(models.RoomStateOpen),
	)
	if err != nil {
		return fmt.Errorf("update room version: %w", err)
	}
	return sqliteCASResult(ctx, tx, res, roomID)
}

func sqliteCASResult(ctx context.Context, tx *sql.Tx, res sql.Result, roomID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var found int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	if err != nil {
		return err
	}
	return ErrVersionConflict
}

func insertSQLiteOutbox(ctx context.Context, tx *sql.Tx, outbox []events.OutboxEvent) error {
	for _, event := range outbox {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO room_outbox (id, room_id, event_type, payload, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			event.ID, event.RoomID, event.EventType,
			pqtype.NullRawMessage{RawMessage: event.Payload, Valid: true},
			sqlutil.ToMillis(event.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert %s outbox event: %w", event.EventType, err)
		}
	}
	return nil
}

func scanSQLiteOutbox(row rowScanner) (events.OutboxEvent, error) {
	var (
		event     events.OutboxEvent
		payload   pqtype.NullRawMessage
		createdAt int64
	)
	if err := row.Scan(&event.ID, &event.RoomID, &event.EventType, &payload, &createdAt); err != nil {
		return events.OutboxEvent{}, err
	}
	event.Payload = payload.RawMessage
	event.CreatedAt = sqlutil.FromMillis(createdAt)
	return event, nil
}

func scanSQLiteIDs(ctx context.Context, q sqlQuerier, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
