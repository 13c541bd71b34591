// Package taskclient triggers background fetch jobs through the internal
// tasks endpoint and waits, bounded, for them to finish. The wait never
// blocks the user-facing request beyond attempts*delay: when the budget runs
// out the caller proceeds with whatever the store has.
package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/i474232898/weather-cache-api/internal/queue"
	"github.com/i474232898/weather-cache-api/internal/taskstatus"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	attempts   int
	delay      time.Duration
}

func New(httpClient *http.Client, baseURL, token string, attempts int, delay time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		attempts:   attempts,
		delay:      delay,
	}
}

type taskRequest struct {
	Querystring queue.Query `json:"querystring"`
	TaskType    string      `json:"task_type"`
	Token       string      `json:"token"`
	Dates       []string    `json:"dates,omitempty"`
	Days        int         `json:"days,omitempty"`
}

type dispatchResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	CurrentTaskStatus taskstatus.Status `json:"current_task_status"`
}

// TriggerHistory dispatches a history fetch for the given dates and polls
// for completion. It reports whether a job was accepted, plus the task id.
func (c *Client) TriggerHistory(ctx context.Context, city string, dates []string) (bool, string) {
	return c.run(ctx, taskRequest{
		Querystring: queue.Query{Location: city, Date: "", Lang: "en"},
		TaskType:    queue.TypeUploadHistory,
		Token:       c.token,
		Dates:       dates,
	})
}

// TriggerForecast dispatches a forecast fetch for the given day count.
func (c *Client) TriggerForecast(ctx context.Context, city string, days int) (bool, string) {
	return c.run(ctx, taskRequest{
		Querystring: queue.Query{Location: city, Lang: "en"},
		TaskType:    queue.TypeUploadForecast,
		Token:       c.token,
		Days:        days,
	})
}

func (c *Client) run(ctx context.Context, reqBody taskRequest) (bool, string) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		log.Printf("ERROR: marshal task request: %v", err)
		return false, ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("ERROR: build task request: %v", err)
		return false, ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("ERROR: dispatch task: %v", err)
		return false, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		log.Printf("ERROR: task dispatch refused with status %d", resp.StatusCode)
		return false, ""
	}

	var dispatched dispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&dispatched); err != nil {
		log.Printf("ERROR: decode dispatch response: %v", err)
		return false, ""
	}

	log.Printf("INFO: started background task %s", dispatched.TaskID)
	c.poll(ctx, dispatched.TaskID)
	return true, dispatched.TaskID
}

// poll checks the task status up to c.attempts times with a fixed delay,
// stopping early on the first observed success. A failed status read stops
// polling without retrying the dispatch; the caller proceeds regardless.
func (c *Client) poll(ctx context.Context, taskID string) {
	url := fmt.Sprintf("%s/%s", c.baseURL, taskID)

	for i := 0; i < c.attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			log.Printf("ERROR: build status request for task %s: %v", taskID, err)
			return
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Printf("ERROR: check status of task %s: %v", taskID, err)
			return
		}

		var st statusResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&st)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			log.Printf("ERROR: status check for task %s returned %d", taskID, resp.StatusCode)
			return
		}
		if decodeErr != nil {
			log.Printf("ERROR: decode status of task %s: %v", taskID, decodeErr)
			return
		}
		if st.CurrentTaskStatus.TaskStatus == taskstatus.StateSuccess {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.delay):
		}
	}
}
