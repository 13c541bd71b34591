// Package taskapi exposes the internal job dispatch and status endpoints.
// Access is guarded by the shared token; the dispatch path is where the
// busy/free flag is acquired.
package taskapi

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-cache-api/internal/coordinator"
	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/taskstatus"
	"github.com/i474232898/weather-cache-api/internal/weather"
)

// Dispatcher submits a fetch job after acquiring its busy/free flag.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) (string, error)
}

// StatusReader answers task status lookups.
type StatusReader interface {
	Get(ctx context.Context, taskID string) (taskstatus.Status, error)
}

// taskRequest is the typed dispatch body. Querystring is a pointer so a
// missing key can be told apart from an empty one.
type taskRequest struct {
	Querystring *queue.Query `json:"querystring"`
	TaskType    string       `json:"task_type"`
	Token       string       `json:"token"`
	Location    string       `json:"location"`
	Dates       []string     `json:"dates"`
	Days        *int         `json:"days"`
}

// RegisterRoutes wires the tasks endpoints into the Fiber app.
func RegisterRoutes(app *fiber.App, dispatcher Dispatcher, statuses StatusReader, token string) {
	app.Post("/tasks", func(c *fiber.Ctx) error {
		var req taskRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Bad request: invalid JSON body",
			})
		}

		if req.Querystring == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Bad request: Specify querystring",
			})
		}
		if req.TaskType == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Bad request: Specify task_type",
			})
		}
		if req.Token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Bad request: Specify access token",
			})
		}
		if req.Token != token {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid access token",
			})
		}
		if req.Querystring.Location == "" && req.Location == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Bad request: Specify location",
			})
		}

		job, ok := buildJob(req)
		if !ok {
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
				"error": "not allowed method",
			})
		}

		taskID, err := dispatcher.Dispatch(c.Context(), job)
		if errors.Is(err, coordinator.ErrTaskInProcessing) {
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"warning": "task in processing",
			})
		}
		if err != nil {
			log.Printf("ERROR: dispatch %s task: %v", job.TaskType, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to start background task",
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"task_id": taskID,
		})
	})

	app.Get("/tasks/:id", func(c *fiber.Ctx) error {
		st, err := statuses.Get(c.Context(), c.Params("id"))
		if err != nil {
			log.Printf("ERROR: read task status: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to read task status",
			})
		}
		return c.JSON(fiber.Map{
			"current_task_status": st,
		})
	})
}

// buildJob normalizes the request into a job envelope. History jobs default
// to today's date when none is given; forecast day counts are clamped.
func buildJob(req taskRequest) (queue.Job, bool) {
	q := *req.Querystring
	if q.Lang == "" {
		q.Lang = "en"
	}
	if req.Location != "" {
		q.Location = req.Location
	}

	switch req.TaskType {
	case queue.TypeUploadHistory:
		dates := req.Dates
		if len(dates) == 0 {
			dates = []string{time.Now().Format(weather.DateLayout)}
		}
		return queue.Job{
			TaskType: queue.TypeUploadHistory,
			Query:    q,
			Dates:    dates,
		}, true

	case queue.TypeUploadForecast:
		days := weather.MaxForecastDays
		if req.Days != nil {
			days = weather.ClampForecastDays(*req.Days)
		}
		q.Days = days
		return queue.Job{
			TaskType: queue.TypeUploadForecast,
			Query:    q,
			Days:     days,
		}, true

	default:
		return queue.Job{}, false
	}
}
