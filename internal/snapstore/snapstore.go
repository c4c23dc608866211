// Package snapstore persists blackboard snapshots to Redis so external
// tooling can inspect a run's state while it executes or after it
// terminates. All keys and channels are namespaced with the platform
// instance name.
package snapstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/embabel/goalrun/internal/blackboard"
)

// Record is one stored snapshot: the run's status at capture time plus the
// blackboard contents.
type Record struct {
	RunID    string              `json:"run_id"`
	Agent    string              `json:"agent"`
	Status   string              `json:"status"`
	TakenAt  time.Time           `json:"taken_at"`
	Snapshot blackboard.Snapshot `json:"snapshot"`
}

// Store provides instance-scoped snapshot operations. It is safe for
// concurrent use.
type Store struct {
	rdb      *redis.Client
	instance string
}

// New creates a snapshot store for the given instance.
func New(redisOpts *redis.Options, instance string) (*Store, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Store{rdb: redis.NewClient(redisOpts), instance: instance}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) snapshotKey(runID string) string {
	return fmt.Sprintf("goalrun:%s:snapshot:%s", s.instance, runID)
}

func (s *Store) runsKey() string {
	return fmt.Sprintf("goalrun:%s:runs", s.instance)
}

// EventsChannel is the pub/sub channel snapshot writes are announced on.
func (s *Store) EventsChannel() string {
	return fmt.Sprintf("goalrun:%s:snapshot_events", s.instance)
}

// Save writes the latest snapshot for a run, overwriting any previous one,
// and publishes the record to the events channel. Subscribers get the full
// record so they never need a follow-up read.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.snapshotKey(rec.RunID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot to Redis: %w", err)
	}
	if err := s.rdb.SAdd(ctx, s.runsKey(), rec.RunID).Err(); err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.EventsChannel(), data).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot event: %w", err)
	}
	return nil
}

// Latest retrieves the most recent snapshot for a run.
// Returns redis.Nil if no snapshot exists. Use IsNotFound to check.
func (s *Store) Latest(ctx context.Context, runID string) (Record, error) {
	data, err := s.rdb.Get(ctx, s.snapshotKey(runID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, redis.Nil
		}
		return Record{}, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return rec, nil
}

// RunIDs lists all runs that have at least one stored snapshot.
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.runsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return ids, nil
}

// Delete removes a run's snapshot and its listing entry.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := s.rdb.Del(ctx, s.snapshotKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if err := s.rdb.SRem(ctx, s.runsKey(), runID).Err(); err != nil {
		return fmt.Errorf("failed to deregister run: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the snapshot doesn't exist.
func IsNotFound(err error) bool {
	return err == redis.Nil
}
