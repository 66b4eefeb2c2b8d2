package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
)

const matchColumns = `id, room_id, problem_id, player1_id, player2_id, player1_score, player2_score, started_at`

type pgMatchRepository struct {
	db *sql.DB
}

func NewPgMatchRepository(db *sql.DB) MatchRepository {
	return &pgMatchRepository{db: db}
}

func scanMatch(row rowScanner) (*model.Match, error) {
	m := &model.Match{}
	err := row.Scan(&m.ID, &m.RoomID, &m.ProblemID, &m.Player1ID, &m.Player2ID, &m.Player1Score, &m.Player2Score, &m.StartedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *pgMatchRepository) StartMatch(ctx context.Context, m *model.Match) (*model.Match, *model.Room, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("pgMatchRepository.StartMatch begin: %w", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO matches (id, room_id, problem_id, player1_id, player2_id, started_at)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           ON CONFLICT (room_id) DO NOTHING
	           RETURNING ` + matchColumns

	created := true
	match, err := scanMatch(tx.QueryRowContext(ctx, insert, m.ID, m.RoomID, m.ProblemID, m.Player1ID, m.Player2ID, m.StartedAt))
	if errors.Is(err, sql.ErrNoRows) {
		created = false
		match, err = scanMatch(tx.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE room_id = $1`, m.RoomID))
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("pgMatchRepository.StartMatch insert: %w", err)
	}

	var room *model.Room
	if created {
		activate := `UPDATE rooms SET status = 'active', started_at = $2
		             WHERE id = $1 AND status = 'locked'
		             RETURNING ` + roomColumns
		room, err = scanRoom(tx.QueryRowContext(ctx, activate, m.RoomID, m.StartedAt))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, false, fmt.Errorf("room %s is not locked: %w", m.RoomID, common.ErrInvalidRoomState)
		}
	} else {
		room, err = scanRoom(tx.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, m.RoomID))
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("pgMatchRepository.StartMatch room: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("pgMatchRepository.StartMatch commit: %w", err)
	}
	return match, room, created, nil
}

func (r *pgMatchRepository) GetMatchByID(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("match %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgMatchRepository.GetMatchByID: %w", err)
	}
	return m, nil
}

func (r *pgMatchRepository) GetMatchByRoomID(ctx context.Context, roomID string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE room_id = $1`, roomID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("match for room %s: %w", roomID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgMatchRepository.GetMatchByRoomID: %w", err)
	}
	return m, nil
}

func (r *pgMatchRepository) SetPlayerScore(ctx context.Context, matchID string, slot int, score int) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE matches SET player1_score = $2 WHERE id = $1`
	case 2:
		query = `UPDATE matches SET player2_score = $2 WHERE id = $1`
	default:
		return fmt.Errorf("invalid player slot %d: %w", slot, common.ErrBadRequest)
	}
	res, err := r.db.ExecContext(ctx, query, matchID, score)
	if err != nil {
		return fmt.Errorf("pgMatchRepository.SetPlayerScore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %s: %w", matchID, common.ErrNotFound)
	}
	return nil
}
