package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prepdesk/attempt-engine/internal/models"
)

const (
	snapshotKeyPrefix = "attempt:snapshot:"
	lookupKeyPrefix   = "attempt:exam:"

	// Abandoned attempts age out; the server decides their fate anyway.
	snapshotTTL = 7 * 24 * time.Hour
	opTimeout   = 2 * time.Second
)

// redisStore persists snapshots in Redis. Useful when the engine daemon runs
// on a host with shared Redis rather than durable local disk.
type redisStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, logger *slog.Logger) Store {
	return &redisStore{client: client, logger: logger}
}

func (s *redisStore) LoadSnapshot(attemptID string) *models.Snapshot {
	ctx, cancel := s.opContext()
	defer cancel()

	data, err := s.client.Get(ctx, snapshotKeyPrefix+attemptID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Failed to load snapshot from redis", "attempt_id", attemptID, "error", err)
		}
		return nil
	}
	snap, err := unmarshalSnapshot(data)
	if err != nil {
		s.logger.Warn("Discarding corrupt snapshot", "attempt_id", attemptID, "error", err)
		return nil
	}
	if snap.AttemptID != attemptID {
		return nil
	}
	return snap
}

func (s *redisStore) SaveSnapshot(snap *models.Snapshot) {
	if snap == nil || snap.AttemptID == "" {
		return
	}
	data, err := marshalSnapshot(snap)
	if err != nil {
		s.logger.Warn("Failed to marshal snapshot", "attempt_id", snap.AttemptID, "error", err)
		return
	}

	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.client.Set(ctx, snapshotKeyPrefix+snap.AttemptID, data, snapshotTTL).Err(); err != nil {
		s.logger.Warn("Failed to save snapshot to redis", "attempt_id", snap.AttemptID, "error", err)
	}
}

func (s *redisStore) ClearAttempt(attemptID, examID string) {
	ctx, cancel := s.opContext()
	defer cancel()

	keys := []string{snapshotKeyPrefix + attemptID}
	if examID != "" {
		keys = append(keys, lookupKeyPrefix+examID)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("Failed to clear attempt keys", "attempt_id", attemptID, "error", err)
	}
}

func (s *redisStore) LastAttemptID(examID string) string {
	ctx, cancel := s.opContext()
	defer cancel()

	id, err := s.client.Get(ctx, lookupKeyPrefix+examID).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Failed to read attempt lookup", "exam_id", examID, "error", err)
		}
		return ""
	}
	return id
}

func (s *redisStore) RememberAttempt(examID, attemptID string) {
	if examID == "" || attemptID == "" {
		return
	}
	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.client.Set(ctx, lookupKeyPrefix+examID, attemptID, snapshotTTL).Err(); err != nil {
		s.logger.Warn("Failed to record attempt lookup",
			"exam_id", examID,
			"attempt_id", attemptID,
			"error", err)
	}
}

func (s *redisStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}
