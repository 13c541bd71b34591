// Package coordinator is the dispatch side of the fetch state machine: it
// transitions the per-key busy/free flag and hands the job to the transport.
// The receiving worker owns the release; if publishing fails the flag is
// rolled back here so the key cannot stay stuck.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-cache-api/internal/flaglock"
	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/taskstatus"
)

// ErrTaskInProcessing signals that another fetch for the same key is already
// running. This is a normal outcome, not a failure.
var ErrTaskInProcessing = errors.New("task in processing")

// Flag is the busy/free mutual-exclusion flag.
type Flag interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Busy(ctx context.Context, key string) (bool, error)
}

// Publisher submits a job to the background transport.
type Publisher interface {
	Publish(ctx context.Context, job queue.Job) error
}

// StatusWriter seeds the job state readable from the status endpoint.
type StatusWriter interface {
	Set(ctx context.Context, taskID, state, result string) error
}

type Coordinator struct {
	flag      Flag
	status    StatusWriter
	publisher Publisher
	hostname  string
	now       func() time.Time
}

func New(flag Flag, status StatusWriter, publisher Publisher, hostname string) *Coordinator {
	return &Coordinator{
		flag:      flag,
		status:    status,
		publisher: publisher,
		hostname:  hostname,
		now:       time.Now,
	}
}

// Dispatch acquires the (host, day, job-type) flag and publishes the job,
// returning the assigned task id. Of two callers racing on the same key only
// one acquires; the other gets ErrTaskInProcessing and dispatches nothing.
func (c *Coordinator) Dispatch(ctx context.Context, job queue.Job) (string, error) {
	key := flaglock.Key(c.hostname, c.now(), job.TaskType)

	busy, err := c.flag.Busy(ctx, key)
	if err != nil {
		return "", err
	}
	if busy {
		return "", ErrTaskInProcessing
	}

	acquired, err := c.flag.Acquire(ctx, key)
	if err != nil {
		return "", err
	}
	if !acquired {
		return "", ErrTaskInProcessing
	}

	job.TaskID = uuid.NewString()
	job.LockKey = key

	// A failed status seed is not fatal: the poll loop treats an unknown id
	// as pending.
	if err := c.status.Set(ctx, job.TaskID, taskstatus.StatePending, ""); err != nil {
		log.Printf("ERROR: seed status for task %s: %v", job.TaskID, err)
	}

	if err := c.publisher.Publish(ctx, job); err != nil {
		if relErr := c.flag.Release(ctx, key); relErr != nil {
			log.Printf("ERROR: release flag after failed publish: %v", relErr)
		}
		return "", fmt.Errorf("dispatch task %s: %w", job.TaskID, err)
	}

	log.Printf("INFO: dispatched %s task %s (flag %s)", job.TaskType, job.TaskID, key)
	return job.TaskID, nil
}
