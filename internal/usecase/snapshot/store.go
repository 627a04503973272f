// Package snapshot persists point-in-time venue state to Redis so an
// operator can inspect the venue or reseed a fresh instance.
package snapshot

import (
	"context"
	"encoding/json"

	"github.com/diznq/core-se/internal/view"
	"github.com/diznq/core-se/pkg/errors"
	"github.com/diznq/core-se/pkg/logger"
	"github.com/diznq/core-se/pkg/redis"
)

// Snapshot is the serialized venue state: the tick it was taken at plus
// projections of every account and book.
type Snapshot struct {
	Tick     int64                `json:"tick"`
	Accounts []view.AccountView   `json:"accounts"`
	Books    []view.OrderBookView `json:"books"`
}

// Store writes and reads venue snapshots under one Redis key.
type Store struct {
	key         string
	logger      *logger.Logger
	redisClient redis.Client
}

// NewStore creates a snapshot store on the given Redis key.
func NewStore(redisClient redis.Client, key string, log *logger.Logger) *Store {
	return &Store{
		key:         key,
		redisClient: redisClient,
		logger:      log,
	}
}

// Store serializes the snapshot and writes it to Redis, replacing any
// previous one.
func (s *Store) Store(ctx context.Context, snapshot *Snapshot) error {
	buf, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{Key: "key", Value: s.key})
		return errors.NewTracer(string(errors.SnapshotMarshalError)).Wrap(err)
	}

	if err := s.redisClient.Set(ctx, s.key, buf, 0); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{Key: "key", Value: s.key})
		return errors.NewTracer(string(errors.SnapshotStoreError)).Wrap(err)
	}

	s.logger.InfoContext(ctx, "snapshot stored",
		logger.Field{Key: "key", Value: s.key},
		logger.Field{Key: "tick", Value: snapshot.Tick},
		logger.Field{Key: "accounts", Value: len(snapshot.Accounts)},
		logger.Field{Key: "books", Value: len(snapshot.Books)},
	)
	return nil
}

// Load reads the latest snapshot from Redis. Returns nil without error
// when no snapshot has been stored yet.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.redisClient.Get(ctx, s.key)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{Key: "key", Value: s.key})
		return nil, errors.NewTracer(string(errors.SnapshotLoadError)).Wrap(err)
	}
	if data == "" {
		s.logger.Warn("no snapshot found", logger.Field{Key: "key", Value: s.key})
		return nil, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{Key: "key", Value: s.key})
		return nil, errors.NewTracer(string(errors.SnapshotLoadError)).Wrap(err)
	}
	return &snapshot, nil
}
