// Package worker executes fetch jobs: call the upstream provider, normalize
// the payload, and upsert the rows. Each persistence step gates the next and
// commits on its own; earlier writes are not rolled back when a later step
// fails.
package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/taskstatus"
	"github.com/i474232898/weather-cache-api/internal/weather"
	"github.com/i474232898/weather-cache-api/internal/weather/providers"
)

// Provider fetches raw payloads from the upstream weather API.
type Provider interface {
	History(ctx context.Context, location, lang, date string) (*providers.Payload, error)
	Forecast(ctx context.Context, location, lang string, days int) (*providers.Payload, error)
}

// ObservationWriter is the write surface of the observation store.
type ObservationWriter interface {
	InsertLocationIfAbsent(ctx context.Context, loc weather.LocationRow) error
	LocationID(ctx context.Context, loc weather.LocationRow) (int64, error)
	UpsertConditions(ctx context.Context, conds []weather.ConditionRow) error
	UpsertObservations(ctx context.Context, obs []weather.ObservationRow) (int64, error)
}

// Flag releases the busy/free key acquired at dispatch time.
type Flag interface {
	Release(ctx context.Context, key string) error
}

// StatusWriter records job state transitions.
type StatusWriter interface {
	Set(ctx context.Context, taskID, state, result string) error
}

type Worker struct {
	provider Provider
	store    ObservationWriter
	flag     Flag
	status   StatusWriter
}

func New(provider Provider, store ObservationWriter, flag Flag, status StatusWriter) *Worker {
	return &Worker{
		provider: provider,
		store:    store,
		flag:     flag,
		status:   status,
	}
}

// Handle runs one job to a terminal state. The flag named by the job is
// released on every exit path, success or failure, so a failed fetch cannot
// leave the key stuck busy.
func (w *Worker) Handle(ctx context.Context, job queue.Job) {
	log.Printf("INFO: task %s (%s) starting for %q", job.TaskID, job.TaskType, job.Query.Location)

	if err := w.status.Set(ctx, job.TaskID, taskstatus.StateStarted, ""); err != nil {
		log.Printf("ERROR: mark task %s started: %v", job.TaskID, err)
	}

	defer func() {
		if job.LockKey == "" {
			return
		}
		if err := w.flag.Release(ctx, job.LockKey); err != nil {
			log.Printf("ERROR: release flag %s: %v", job.LockKey, err)
		}
	}()

	var (
		result string
		err    error
	)
	switch job.TaskType {
	case queue.TypeUploadHistory:
		result, err = w.runHistory(ctx, job)
	case queue.TypeUploadForecast:
		result, err = w.runForecast(ctx, job)
	default:
		err = fmt.Errorf("unknown task type %q", job.TaskType)
	}

	if err != nil {
		log.Printf("ERROR: task %s failed: %v", job.TaskID, err)
		if stErr := w.status.Set(ctx, job.TaskID, taskstatus.StateFailure, err.Error()); stErr != nil {
			log.Printf("ERROR: mark task %s failed: %v", job.TaskID, stErr)
		}
		return
	}

	log.Printf("INFO: task %s finished: %s", job.TaskID, result)
	if stErr := w.status.Set(ctx, job.TaskID, taskstatus.StateSuccess, result); stErr != nil {
		log.Printf("ERROR: mark task %s succeeded: %v", job.TaskID, stErr)
	}
}

// runHistory fetches one upstream payload per requested date. A failed date
// is logged and skipped; the job only fails when no date could be cached.
func (w *Worker) runHistory(ctx context.Context, job queue.Job) (string, error) {
	if len(job.Dates) == 0 {
		return "", fmt.Errorf("history job %s carries no dates", job.TaskID)
	}

	var cached int
	for _, date := range job.Dates {
		payload, err := w.provider.History(ctx, job.Query.Location, job.Query.Lang, date)
		if err != nil {
			log.Printf("ERROR: fetch history for %s on %s: %v", job.Query.Location, date, err)
			continue
		}
		if err := w.persist(ctx, payload); err != nil {
			log.Printf("ERROR: persist history for %s on %s: %v", job.Query.Location, date, err)
			continue
		}
		cached++
	}

	if cached == 0 {
		return "", fmt.Errorf("no date out of %d could be cached", len(job.Dates))
	}
	return fmt.Sprintf("cached %d of %d dates", cached, len(job.Dates)), nil
}

func (w *Worker) runForecast(ctx context.Context, job queue.Job) (string, error) {
	days := weather.ClampForecastDays(job.Days)

	payload, err := w.provider.Forecast(ctx, job.Query.Location, job.Query.Lang, days)
	if err != nil {
		return "", fmt.Errorf("fetch forecast for %s: %w", job.Query.Location, err)
	}
	if err := w.persist(ctx, payload); err != nil {
		return "", fmt.Errorf("persist forecast for %s: %w", job.Query.Location, err)
	}
	return fmt.Sprintf("cached %d day forecast", days), nil
}

// persist runs the gated write pipeline: normalize, location insert, id
// lookup, condition upsert, observation upsert. The first failing step stops
// the job.
func (w *Worker) persist(ctx context.Context, payload *providers.Payload) error {
	n, err := providers.Normalize(payload)
	if err != nil {
		return err
	}

	if err := w.store.InsertLocationIfAbsent(ctx, n.Location); err != nil {
		return err
	}

	geoID, err := w.store.LocationID(ctx, n.Location)
	if err != nil {
		return err
	}

	if err := w.store.UpsertConditions(ctx, n.Conditions); err != nil {
		return err
	}

	for i := range n.Observations {
		n.Observations[i].GeoID = geoID
	}

	written, err := w.store.UpsertObservations(ctx, n.Observations)
	if err != nil {
		return err
	}

	log.Printf("INFO: upserted %d observation rows for %s, %s",
		written, n.Location.Name, n.Location.Country)
	return nil
}
