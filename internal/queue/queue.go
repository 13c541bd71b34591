// Package queue carries fetch jobs between the API process and the worker
// over RabbitMQ. History and forecast jobs travel on separate queues so the
// two job types can be scaled independently.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Job types accepted by the dispatch endpoint.
const (
	TypeUploadHistory  = "upload_history"
	TypeUploadForecast = "upload_forecast"
)

// Query holds the upstream provider parameters a job carries.
type Query struct {
	Location string `json:"q"`
	Date     string `json:"dt,omitempty"`
	Lang     string `json:"lang,omitempty"`
	Days     int    `json:"days,omitempty"`
}

// Job is the envelope published per dispatched fetch. LockKey names the
// busy/free flag acquired at dispatch time; the worker releases exactly that
// key when the job reaches a terminal state.
type Job struct {
	TaskID   string   `json:"task_id"`
	TaskType string   `json:"task_type"`
	LockKey  string   `json:"lock_key"`
	Query    Query    `json:"querystring"`
	Dates    []string `json:"dates,omitempty"`
	Days     int      `json:"days,omitempty"`
}

// Broker wraps one AMQP connection and channel for both queues.
type Broker struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	historyQueue  string
	forecastQueue string
}

// Dial connects to RabbitMQ and declares both durable job queues.
func Dial(url, historyQueue, forecastQueue string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open: %w", err)
	}

	for _, q := range []string{historyQueue, forecastQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return &Broker{
		conn:          conn,
		ch:            ch,
		historyQueue:  historyQueue,
		forecastQueue: forecastQueue,
	}, nil
}

func (b *Broker) Close() {
	if b.ch != nil {
		if err := b.ch.Close(); err != nil {
			log.Printf("ERROR: rabbitmq channel close: %v", err)
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			log.Printf("ERROR: rabbitmq connection close: %v", err)
		}
	}
}

func (b *Broker) queueFor(taskType string) (string, error) {
	switch taskType {
	case TypeUploadHistory:
		return b.historyQueue, nil
	case TypeUploadForecast:
		return b.forecastQueue, nil
	default:
		return "", fmt.Errorf("unknown task type %q", taskType)
	}
}

// Publish enqueues one job on the queue matching its task type.
func (b *Broker) Publish(ctx context.Context, job Job) error {
	queueName, err := b.queueFor(job.TaskType)
	if err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.TaskID, err)
	}

	err = b.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.TaskID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.TaskID, err)
	}
	return nil
}

// Consume delivers jobs from both queues to the handler until the context is
// canceled. Deliveries are acknowledged after the handler returns; malformed
// payloads are dropped with a log line.
func (b *Broker) Consume(ctx context.Context, handler func(context.Context, Job)) error {
	if err := b.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}

	histDeliveries, err := b.ch.Consume(b.historyQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.historyQueue, err)
	}
	foreDeliveries, err := b.ch.Consume(b.forecastQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.forecastQueue, err)
	}

	for {
		var (
			d  amqp.Delivery
			ok bool
		)
		select {
		case <-ctx.Done():
			return nil
		case d, ok = <-histDeliveries:
		case d, ok = <-foreDeliveries:
		}
		if !ok {
			return errors.New("rabbitmq deliveries channel closed unexpectedly")
		}

		var job Job
		if err := json.Unmarshal(d.Body, &job); err != nil {
			log.Printf("ERROR: dropping malformed job payload: %v", err)
			_ = d.Ack(false)
			continue
		}

		handler(ctx, job)
		if err := d.Ack(false); err != nil {
			log.Printf("ERROR: ack job %s: %v", job.TaskID, err)
		}
	}
}
