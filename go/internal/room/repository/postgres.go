package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/repository/migrations"
	"github.com/mcdev12/todoroom/go/internal/sqlutil"
)

// NotifyChannel is the channel every outbox insert notifies with the event id.
const NotifyChannel = "room_outbox_events"

// PostgresRepository stores rooms in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps an open pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate applies the embedded schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	return applyPostgresMigrations(ctx, r.pool, migrations.Postgres, "postgres")
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateRoom inserts a room, its roles and the outbox events.
func (r *PostgresRepository) CreateRoom(ctx context.Context, room *models.Room, outbox []events.OutboxEvent) error {
	return sqlutil.RunPgx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO rooms (id, name, description, head_count, point_cap, matching_type, state,
			                   visibility, owner_id, password_hash, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			room.ID, room.Name, room.Description, room.HeadCount, room.PointCap,
			string(room.MatchingType), string(room.State), room.Visibility,
			room.OwnerID, room.PasswordHash, room.Version, room.CreatedAt, room.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}

		batch := &pgx.Batch{}
		for _, role := range room.Roles {
			batch.Queue(`INSERT INTO roles (room_id, id, name, description) VALUES ($1, $2, $3, $4)`,
				room.ID, role.ID, role.Name, role.Description)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert roles: %w", err)
		}
		return insertPgOutbox(ctx, tx, outbox)
	})
}

// LoadRoom returns the full snapshot of a room.
func (r *PostgresRepository) LoadRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return loadPgRoom(ctx, r.pool, id)
}

// AddParticipant inserts a participant and their bids if the room is still
// OPEN at expectedVersion.
func (r *PostgresRepository) AddParticipant(ctx context.Context, roomID uuid.UUID, participant models.Participant, bids []models.Bid, expectedVersion int64, outbox []events.OutboxEvent) error {
	return sqlutil.RunPgx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE rooms SET version = version + 1, updated_at = $1
			WHERE id = $2 AND version = $3 AND state = $4`,
			participant.JoinedAt, roomID, expectedVersion, string(models.RoomStateOpen),
		)
		if err != nil {
			return fmt.Errorf("update room version: %w", err)
		}
		if err := pgCASResult(ctx, tx, tag.RowsAffected(), roomID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO participants (id, room_id, name, user_id, join_order, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			participant.ID, roomID, participant.Name, participant.UserID,
			participant.JoinOrder, participant.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}

		if len(bids) > 0 {
			rows := make([][]any, len(bids))
			for i, bid := range bids {
				rows[i] = []any{participant.ID, roomID, bid.RoleID, bid.Points, bid.Comment}
			}
			_, err := tx.CopyFrom(ctx,
				pgx.Identifier{"bids"},
				[]string{"participant_id", "room_id", "role_id", "points", "comment"},
				pgx.CopyFromRows(rows),
			)
			if err != nil {
				return fmt.Errorf("insert bids: %w", err)
			}
		}
		return insertPgOutbox(ctx, tx, outbox)
	})
}

// SaveAssignment publishes the winners of a room if it is still OPEN at
// expectedVersion.
func (r *PostgresRepository) SaveAssignment(ctx context.Context, room *models.Room, expectedVersion int64, outbox []events.OutboxEvent) error {
	err := sqlutil.RunPgx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE rooms
			SET state = $1, drawn_at = $2, updated_at = $3, version = version + 1
			WHERE id = $4 AND version = $5 AND state = $6`,
			string(models.RoomStateDrawn), room.DrawnAt, room.UpdatedAt,
			room.ID, expectedVersion, string(models.RoomStateOpen),
		)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		if err := pgCASResult(ctx, tx, tag.RowsAffected(), room.ID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, role := range room.Roles {
			batch.Queue(`UPDATE roles SET winner_id = $1 WHERE room_id = $2 AND id = $3`,
				role.Winner, room.ID, role.ID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("update winners: %w", err)
		}
		return insertPgOutbox(ctx, tx, outbox)
	})
	if err != nil {
		return err
	}
	room.Version = expectedVersion + 1
	return nil
}

// ListRooms returns rooms matching the filter, newest first.
func (r *PostgresRepository) ListRooms(ctx context.Context, filter RoomFilter) ([]*models.Room, error) {
	var (
		where []string
		args  []any
	)
	if filter.PublicOnly {
		where = append(where, "visibility")
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.ParticipantUserID != nil {
		args = append(args, *filter.ParticipantUserID)
		where = append(where, fmt.Sprintf("id IN (SELECT room_id FROM participants WHERE user_id = $%d)", len(args)))
	}

	query := "SELECT id FROM rooms"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]*models.Room, 0, len(ids))
	for _, id := range ids {
		room, err := loadPgRoom(ctx, r.pool, id)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// FetchUnsentOutbox returns up to limit unsent events, oldest first.
func (r *PostgresRepository) FetchUnsentOutbox(ctx context.Context, limit int) ([]events.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, event_type, payload, created_at
		FROM room_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []events.OutboxEvent
	for rows.Next() {
		event, err := scanPgOutbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// FetchOutboxByID returns one unsent event.
func (r *PostgresRepository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*events.OutboxEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, room_id, event_type, payload, created_at
		FROM room_outbox
		WHERE id = $1 AND sent_at IS NULL`, id)
	event, err := scanPgOutbox(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOutboxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkOutboxSent stamps an event as published.
func (r *PostgresRepository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE room_outbox SET sent_at = $1 WHERE id = $2 AND sent_at IS NULL`, timeNow().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}

func loadPgRoom(ctx context.Context, q pgQuerier, id uuid.UUID) (*models.Room, error) {
	var (
		room                models.Room
		matchingType, state string
	)
	err := q.QueryRow(ctx, `
		SELECT id, name, description, head_count, point_cap, matching_type, state, visibility,
		       owner_id, password_hash, version, created_at, updated_at, drawn_at
		FROM rooms WHERE id = $1`, id).Scan(
		&room.ID, &room.Name, &room.Description, &room.HeadCount, &room.PointCap, &matchingType,
		&state, &room.Visibility, &room.OwnerID, &room.PasswordHash, &room.Version,
		&room.CreatedAt, &room.UpdatedAt, &room.DrawnAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	room.MatchingType = models.MatchingType(matchingType)
	room.State = models.RoomState(state)
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	if room.DrawnAt != nil {
		t := room.DrawnAt.UTC()
		room.DrawnAt = &t
	}

	rows, err := q.Query(ctx,
		`SELECT id, name, description, winner_id FROM roles WHERE room_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	room.Roles, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Role, error) {
		var role models.Role
		err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Winner)
		return role, err
	})
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, room_id, name, user_id, join_order, joined_at
		FROM participants WHERE room_id = $1 ORDER BY join_order`, id)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	room.Participants, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Participant, error) {
		var p models.Participant
		err := row.Scan(&p.ID, &p.RoomID, &p.Name, &p.UserID, &p.JoinOrder, &p.JoinedAt)
		p.JoinedAt = p.JoinedAt.UTC()
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT b.participant_id, b.role_id, b.points, b.comment
		FROM bids b JOIN participants p ON p.id = b.participant_id
		WHERE b.room_id = $1
		ORDER BY p.join_order, b.role_id`, id)
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}
	room.Bids, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Bid, error) {
		var bid models.Bid
		err := row.Scan(&bid.ParticipantID, &bid.RoleID, &bid.Points, &bid.Comment)
		return bid, err
	})
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}
	return &room, nil
}

func pgCASResult(ctx context.Context, tx pgx.Tx, affected int64, roomID uuid.UUID) error {
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return ErrVersionConflict
}

// insertPgOutbox writes events; the notify trigger fires on commit.
func insertPgOutbox(ctx context.Context, tx pgx.Tx, outbox []events.OutboxEvent) error {
	for _, event := range outbox {
		_, err := tx.Exec(ctx, `
			INSERT INTO room_outbox (id, room_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			event.ID, event.RoomID, event.EventType, string(event.Payload), event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert %s outbox event: %w", event.EventType, err)
		}
	}
	return nil
}

func scanPgOutbox(row pgx.Row) (events.OutboxEvent, error) {
	var (
		event     events.OutboxEvent
		payload   pqtype.NullRawMessage
		createdAt time.Time
	)
	if err := row.Scan(&event.ID, &event.RoomID, &event.EventType, &payload, &createdAt); err != nil {
		return events.OutboxEvent{}, err
	}
	event.Payload = payload.RawMessage
	event.CreatedAt = createdAt.UTC()
	return event, nil
}
