package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

type DraftRepository interface {
	SaveDraft(ctx context.Context, d *model.Draft) error
	GetDraft(ctx context.Context, matchID, userID string) (*model.Draft, error)
}

type redisDraftRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDraftRepository keeps one draft per (match, user); every save refreshes the TTL.
func NewRedisDraftRepository(rdb *redis.Client, ttl time.Duration) DraftRepository {
	return &redisDraftRepository{rdb: rdb, ttl: ttl}
}

func draftKey(matchID, userID string) string {
	return "draft:" + matchID + ":" + userID
}

func (r *redisDraftRepository) SaveDraft(ctx context.Context, d *model.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := r.rdb.Set(ctx, draftKey(d.MatchID, d.UserID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redisDraftRepository.SaveDraft: %w", err)
	}
	return nil
}

func (r *redisDraftRepository) GetDraft(ctx context.Context, matchID, userID string) (*model.Draft, error) {
	raw, err := r.rdb.Get(ctx, draftKey(matchID, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("draft for match %s: %w", matchID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("redisDraftRepository.GetDraft: %w", err)
	}
	var d model.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}
