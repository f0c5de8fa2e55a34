package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/types"
)

// redisProjectRecordStore keeps the read model in Redis instead of Postgres.
// The record store is a plain keyed store, so a key-value backend satisfies
// the same contract; UpdateIf uses WATCH for the compare-and-swap.
type redisProjectRecordStore struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewRedisProjectRecordStore(rdb *redis.Client, baseLog *logger.Logger) ProjectRecordStore {
	return &redisProjectRecordStore{rdb: rdb, log: baseLog.With("repo", "RedisProjectRecordStore")}
}

func recordKey(id string) string {
	return "project_record:" + id
}

func (s *redisProjectRecordStore) Upsert(ctx context.Context, record *types.ProjectRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, recordKey(record.ID), b, 0).Err()
}

func (s *redisProjectRecordStore) Get(ctx context.Context, id string) (*types.ProjectRecord, error) {
	raw, err := s.rdb.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record types.ProjectRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode project record %s: %w", id, err)
	}
	return &record, nil
}

func (s *redisProjectRecordStore) UpdateIf(ctx context.Context, id string, expected types.Status, record *types.ProjectRecord) error {
	key := recordKey(id)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrStaleRecord
		}
		if err != nil {
			return err
		}
		var current types.ProjectRecord
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode project record %s: %w", id, err)
		}
		if current.Status != expected {
			return ErrStaleRecord
		}
		b, err := json.Marshal(record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}, key)
}
