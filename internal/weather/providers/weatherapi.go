package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

const rapidAPIHost = "weatherapi-com.p.rapidapi.com"

var (
	errAuthRejected = errors.New("weatherapi rejected the api key")
	errRateLimited  = errors.New("weatherapi rate limited")
	errServerError  = errors.New("weatherapi server error")
	errUnexpected   = errors.New("unexpected weatherapi status")
	errCircuitOpen  = errors.New("weatherapi circuit breaker open")
)

// WeatherAPIClient fetches raw history and forecast payloads from
// WeatherAPI.com via RapidAPI. The payload shape is treated as an opaque
// external schema; normalization happens separately.
//
// Rate limits and 5xx responses are retried with exponential backoff behind
// a circuit breaker. Key rejections (401/403) are terminal: retrying a bad
// key only burns quota.
type WeatherAPIClient struct {
	client      *http.Client
	apiKey      string
	historyURL  string
	forecastURL string

	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration

	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIClient(client *http.Client, apiKey, historyURL, forecastURL string) *WeatherAPIClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weatherapi",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &WeatherAPIClient{
		client:       client,
		apiKey:       apiKey,
		historyURL:   historyURL,
		forecastURL:  forecastURL,
		maxRetries:   3,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     5 * time.Second,
		circuit:      cb,
	}
}

// History fetches observed hourly weather for one calendar date.
func (c *WeatherAPIClient) History(ctx context.Context, location, lang, date string) (*Payload, error) {
	values := url.Values{}
	values.Set("q", location)
	values.Set("dt", date)
	if lang != "" {
		values.Set("lang", lang)
	}
	return c.get(ctx, c.historyURL, values)
}

// Forecast fetches predicted hourly weather for the next days days.
func (c *WeatherAPIClient) Forecast(ctx context.Context, location, lang string, days int) (*Payload, error) {
	values := url.Values{}
	values.Set("q", location)
	values.Set("days", strconv.Itoa(days))
	if lang != "" {
		values.Set("lang", lang)
	}
	return c.get(ctx, c.forecastURL, values)
}

func (c *WeatherAPIClient) get(ctx context.Context, baseURL string, values url.Values) (*Payload, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}

	resp, err := c.do(ctx, fmt.Sprintf("%s?%s", baseURL, values.Encode()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode weatherapi payload: %w", err)
	}
	return &payload, nil
}

// do executes the request with retries and the circuit breaker. Only
// transient failures (network errors, 429, 5xx) are retried.
func (c *WeatherAPIClient) do(ctx context.Context, u string) (*http.Response, error) {
	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", rapidAPIHost)

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := c.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return resp, nil
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errAuthRejected, resp.StatusCode)
			case resp.StatusCode == http.StatusTooManyRequests:
				resp.Body.Close()
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			default:
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt >= c.maxRetries {
			return nil, err
		}

		delay := c.initialDelay << attempt
		if c.maxDelay > 0 && delay > c.maxDelay {
			delay = c.maxDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// retryable reports whether a second attempt can plausibly succeed. Auth
// rejections and client-side status codes are terminal; rate limits, 5xx,
// and transport errors are not.
func retryable(err error) bool {
	if errors.Is(err, errAuthRejected) || errors.Is(err, errUnexpected) {
		return false
	}
	return true
}
