package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-cache-api/internal/coordinator"
	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/weather"
)

// Dispatcher submits a fetch job through the busy/free flag.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) (string, error)
}

// Scheduler periodically refreshes the forecast cache for configured
// locations so interactive requests mostly hit warm data.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	dispatcher Dispatcher
	locations  []weather.Location
	interval   time.Duration
}

// New creates a new Scheduler.
func New(locations []weather.Location, interval time.Duration, dispatcher Dispatcher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:  s,
		dispatcher: dispatcher,
		locations:  locations,
		interval:   interval,
	}
}

// Start schedules the periodic refresh and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 || s.interval <= 0 {
		log.Println("scheduler: no locations or interval configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running forecast refresh")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, loc := range s.locations {
			taskID, err := s.dispatcher.Dispatch(ctx, queue.Job{
				TaskType: queue.TypeUploadForecast,
				Query: queue.Query{
					Location: loc.City,
					Lang:     "en",
					Days:     weather.MaxForecastDays,
				},
				Days: weather.MaxForecastDays,
			})
			if errors.Is(err, coordinator.ErrTaskInProcessing) {
				// Another refresh holds the flag; the next tick retries.
				log.Printf("scheduler: forecast refresh for %s skipped, task in processing", loc.City)
				continue
			}
			if err != nil {
				log.Printf("scheduler: forecast refresh for %s failed: %v", loc.City, err)
				continue
			}
			log.Printf("scheduler: forecast refresh for %s dispatched as task %s", loc.City, taskID)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
