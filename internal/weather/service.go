package weather

import (
	"context"
	"log"
	"time"
)

// CacheStore is the read-only query surface over persisted observations.
type CacheStore interface {
	HistoryByDates(ctx context.Context, f LocationFilter, dates []string) ([]Row, error)
	ForecastRows(ctx context.Context, f LocationFilter) ([]Row, error)
}

// FetchTrigger dispatches a background fetch and waits, bounded, for it to
// finish. It reports whether a job was accepted plus the assigned task id.
type FetchTrigger interface {
	TriggerHistory(ctx context.Context, city string, dates []string) (bool, string)
	TriggerForecast(ctx context.Context, city string, days int) (bool, string)
}

// Service answers weather queries from the cache, filling gaps through the
// background fetch pipeline when the cache is incomplete.
type Service struct {
	store   CacheStore
	trigger FetchTrigger
	tz      *time.Location
	now     func() time.Time
}

func NewService(store CacheStore, trigger FetchTrigger, tz *time.Location) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{
		store:   store,
		trigger: trigger,
		tz:      tz,
		now:     time.Now,
	}
}

// History returns hourly observations for the requested dates, fetching any
// dates the cache does not fully hold. A fetch that fails or cannot be
// confirmed within the poll budget still yields a response, flagged in the
// metadata, assembled from whatever the store has.
func (s *Service) History(ctx context.Context, req HistoryRequest) (*Response, error) {
	dates := SplitDates(req.Dates)
	filter := ResolveLocation(req.City, req.Country)

	rows, err := s.store.HistoryByDates(ctx, filter, dates)
	if err != nil {
		return nil, err
	}

	message := MsgCacheOnly
	var taskID string

	gap := DateGap(DistinctCheckDates(rows), dates)
	if len(gap) > 0 {
		log.Printf("INFO: cache gap for %s: %v", req.City, gap)

		var confirmed bool
		confirmed, taskID = s.trigger.TriggerHistory(ctx, req.City, gap)
		if confirmed {
			message = MsgFetched
		} else {
			message = MsgCacheUnsure
		}

		filter.Match = MatchPrefix
		rows, err = s.store.HistoryByDates(ctx, filter, dates)
		if err != nil {
			return nil, err
		}
	}

	return s.assemble(rows, message, taskID), nil
}

// Forecast returns hourly predictions for the next 1-3 days. Unlike history,
// an incomplete forecast is re-fetched whole; no per-day diffing is done.
func (s *Service) Forecast(ctx context.Context, req ForecastRequest) (*Response, error) {
	days := ClampForecastDays(req.Days)
	filter := ResolveLocation(req.City, req.Country)

	rows, err := s.store.ForecastRows(ctx, filter)
	if err != nil {
		return nil, err
	}

	message := MsgCacheOnly
	var taskID string

	if len(DistinctCheckDates(rows)) < days {
		log.Printf("INFO: forecast cache for %s covers fewer than %d days", req.City, days)

		var confirmed bool
		confirmed, taskID = s.trigger.TriggerForecast(ctx, req.City, days)
		if confirmed {
			message = MsgFetched
		} else {
			message = MsgCacheUnsure
		}

		filter.Match = MatchPrefix
		rows, err = s.store.ForecastRows(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	return s.assemble(rows, message, taskID), nil
}

func (s *Service) assemble(rows []Row, message, taskID string) *Response {
	resp := &Response{
		CurrentTime: s.now().In(s.tz).Format(time.RFC3339),
		Metainfo:    Metainfo{Message: message},
		Data:        rows,
	}
	if resp.Data == nil {
		resp.Data = []Row{}
	}
	if taskID != "" {
		resp.Metainfo.BackendTask = &taskID
	}
	return resp
}
