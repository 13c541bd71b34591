// Package taskstatus tracks fetch-job states in redis with a bounded TTL.
package taskstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job states. Ids that were never recorded (or whose record expired) read as
// pending, matching the semantics of result backends that fabricate no row
// for unknown ids.
const (
	StatePending = "PENDING"
	StateStarted = "STARTED"
	StateSuccess = "SUCCESS"
	StateFailure = "FAILURE"
)

// Status is the queryable state of one fetch job.
type Status struct {
	TaskID     string `json:"task_id"`
	TaskStatus string `json:"task_status"`
	TaskResult string `json:"task_result"`
}

// Store persists job statuses under task:{id} keys.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(taskID string) string {
	return "task:" + taskID
}

// Set records the current state and optional result of a job.
func (s *Store) Set(ctx context.Context, taskID, state, result string) error {
	payload, err := json.Marshal(Status{
		TaskID:     taskID,
		TaskStatus: state,
		TaskResult: result,
	})
	if err != nil {
		return fmt.Errorf("marshal task status: %w", err)
	}
	if err := s.client.Set(ctx, key(taskID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write task status %s: %w", taskID, err)
	}
	return nil
}

// Get reads the current state of a job. Unknown ids come back pending.
func (s *Store) Get(ctx context.Context, taskID string) (Status, error) {
	raw, err := s.client.Get(ctx, key(taskID)).Result()
	if errors.Is(err, redis.Nil) {
		return Status{TaskID: taskID, TaskStatus: StatePending}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read task status %s: %w", taskID, err)
	}

	var st Status
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Status{}, fmt.Errorf("decode task status %s: %w", taskID, err)
	}
	return st, nil
}
