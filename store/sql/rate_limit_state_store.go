package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/npdadmin/syncengine/ratelimit"
	"github.com/uptrace/bun"
)

type RateLimitStateStore struct {
	db   *bun.DB
	repo repository.Repository[*rateLimitStateRecord]
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*rateLimitStateRecord](db, rateLimitStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rate-limit state repository wiring: %w", err)
		}
	}
	return &RateLimitStateStore{db: db, repo: repo}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key ratelimit.Key) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	providerID, bucketKey, err := normalizeRateLimitKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}
	record := &rateLimitStateRecord{}
	scanErr := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.bucket_key = ?", bucketKey).
		Limit(1).
		Scan(ctx)
	if scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return ratelimit.State{}, ratelimit.ErrStateNotFound
		}
		return ratelimit.State{}, scanErr
	}
	return record.toState(), nil
}

func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	providerID, bucketKey, err := normalizeRateLimitKey(state.Key)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	record := &rateLimitStateRecord{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		BucketKey:  bucketKey,
		Remaining:  state.Remaining,
		Limit:      state.Limit,
		Metadata:   copyAnyMap(state.Metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if state.ResetAt != nil {
		value := state.ResetAt.UTC()
		record.ResetAt = &value
	}
	if state.ThrottledUntil != nil {
		value := state.ThrottledUntil.UTC()
		record.ThrottledUntil = &value
	}
	if state.RetryAfter != nil {
		value := state.RetryAfter.Milliseconds()
		record.RetryAfterMS = &value
	}

	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (provider_id, bucket_key) DO UPDATE").
		Set("remaining = EXCLUDED.remaining").
		Set("limit_value = EXCLUDED.limit_value").
		Set("reset_at = EXCLUDED.reset_at").
		Set("throttled_until = EXCLUDED.throttled_until").
		Set("retry_after_ms = EXCLUDED.retry_after_ms").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *rateLimitStateRecord) toState() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	state := ratelimit.State{
		Key:       ratelimit.Key{ProviderID: r.ProviderID, BucketKey: r.BucketKey},
		Limit:     r.Limit,
		Remaining: r.Remaining,
		UpdatedAt: r.UpdatedAt,
		Metadata:  copyAnyMap(r.Metadata),
	}
	if r.ResetAt != nil {
		value := *r.ResetAt
		state.ResetAt = &value
	}
	if r.ThrottledUntil != nil {
		value := *r.ThrottledUntil
		state.ThrottledUntil = &value
	}
	if r.RetryAfterMS != nil {
		value := time.Duration(*r.RetryAfterMS) * time.Millisecond
		state.RetryAfter = &value
	}
	return state
}

func normalizeRateLimitKey(key ratelimit.Key) (string, string, error) {
	providerID := strings.TrimSpace(strings.ToLower(key.ProviderID))
	bucketKey := strings.TrimSpace(strings.ToLower(key.BucketKey))
	if providerID == "" || bucketKey == "" {
		return "", "", fmt.Errorf("sqlstore: rate-limit provider id and bucket key are required")
	}
	return providerID, bucketKey, nil
}
