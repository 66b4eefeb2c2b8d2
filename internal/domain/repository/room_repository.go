package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

const roomColumns = `id, room_code, created_by, player1_id, player2_id, mode, difficulty,
	time_limit, status, created_at, locked_at, started_at, ended_at`

type pgRoomRepository struct {
	db *sql.DB
}

func NewPgRoomRepository(db *sql.DB) RoomRepository {
	return &pgRoomRepository{db: db}
}

func scanRoom(row rowScanner) (*model.Room, error) {
	room := &model.Room{}
	err := row.Scan(
		&room.ID, &room.RoomCode, &room.CreatedBy, &room.Player1ID, &room.Player2ID, &room.Mode, &room.Difficulty,
		&room.TimeLimit, &room.Status, &room.CreatedAt, &room.LockedAt, &room.StartedAt, &room.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *pgRoomRepository) CreateRoom(ctx context.Context, room *model.Room) error {
	query := `INSERT INTO rooms (id, room_code, created_by, player1_id, player2_id, mode, difficulty, time_limit, status, created_at, locked_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.RoomCode, room.CreatedBy, room.Player1ID, room.Player2ID, room.Mode, room.Difficulty,
		room.TimeLimit, room.Status, room.CreatedAt, room.LockedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("room code %s already in use: %w", room.RoomCode, common.ErrConflict)
		}
		return fmt.Errorf("pgRoomRepository.CreateRoom: %w", err)
	}
	return nil
}

func (r *pgRoomRepository) GetRoomByID(ctx context.Context, id string) (*model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgRoomRepository.GetRoomByID: %w", err)
	}
	return room, nil
}

func (r *pgRoomRepository) GetRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room code %s: %w", code, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgRoomRepository.GetRoomByCode: %w", err)
	}
	return room, nil
}

func (r *pgRoomRepository) FindWaitingQuickplayRooms(ctx context.Context, difficulty model.Difficulty, excludeUserID string, limit int) ([]model.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms
	          WHERE status = 'waiting' AND mode = 'quickplay' AND difficulty = $1
	            AND player2_id IS NULL AND player1_id <> $2
	          ORDER BY created_at
	          LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, difficulty, excludeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgRoomRepository.FindWaitingQuickplayRooms: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("pgRoomRepository.FindWaitingQuickplayRooms scan: %w", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (r *pgRoomRepository) ClaimRoom(ctx context.Context, roomID, userID string, at time.Time) (*model.Room, error) {
	query := `UPDATE rooms SET player2_id = $2, status = 'locked', locked_at = $3
	          WHERE id = $1 AND status = 'waiting' AND player2_id IS NULL AND player1_id <> $2
	          RETURNING ` + roomColumns

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, roomID, userID, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s cannot be joined: %w", roomID, common.ErrInvalidRoomState)
		}
		return nil, fmt.Errorf("pgRoomRepository.ClaimRoom: %w", err)
	}
	return room, nil
}

func (r *pgRoomRepository) LockRoom(ctx context.Context, roomID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET status = 'locked', locked_at = COALESCE(locked_at, $2)
		 WHERE id = $1 AND status = 'waiting' AND player2_id IS NOT NULL`, roomID, at)
	if err != nil {
		return false, fmt.Errorf("pgRoomRepository.LockRoom: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgRoomRepository.LockRoom rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgRoomRepository) CompleteRoom(ctx context.Context, roomID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET status = 'completed', ended_at = $2 WHERE id = $1 AND status = 'active'`, roomID, at)
	if err != nil {
		return false, fmt.Errorf("pgRoomRepository.CompleteRoom: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgRoomRepository.CompleteRoom rows: %w", err)
	}
	return n == 1, nil
}
