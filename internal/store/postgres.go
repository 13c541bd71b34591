package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-cache-api/internal/weather"
)

// Store is the Postgres-backed observation cache. Request-serving code only
// reads from it; writes happen from the fetch worker.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a pgx pool against the given DSN.
func New(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// queryHistory selects hourly rows for the requested dates, restricted to
// dates that are complete: exactly 24 hourly rows, each written before the
// recorded update timestamp. The completeness date comes back as check_date.
const queryHistory = `
WITH geo AS (
        SELECT id, geo_name, geo_country
        FROM regional.geoid
        WHERE %s
        ORDER BY geo_name, geo_country
        LIMIT 1),
    meta AS (
        SELECT geo.id, geo.geo_name, geo.geo_country, lt.datetime::date AS date_
        FROM regional.local_temperature lt, geo
        WHERE lt.geo_id = geo.id
          AND lt.datetime_update > lt.datetime
        GROUP BY 1, 2, 3, 4
        HAVING count(*) = 24)
SELECT lt.datetime,
       lt.temp_c,
       lt.temp_c_feelslike,
       cd.condition_str,
       lt.uv_index,
       lt.humidity::float8,
       lt.pressure_mb,
       CASE WHEN lt.is_day THEN 'day' ELSE 'night' END,
       meta.geo_name || ', ' || meta.geo_country,
       lt.datetime::date
FROM regional.local_temperature lt,
     regional.conditionid cd,
     meta
WHERE meta.id = lt.geo_id
  AND cd.id = lt.condition_id
  AND meta.date_ = lt.datetime::date
  AND meta.date_ = ANY($%d::date[])
ORDER BY 1`

// queryForecast selects all hourly rows with a timestamp in the future. No
// per-date completeness check is applied to forecasts.
const queryForecast = `
WITH geo AS (
        SELECT id, geo_name, geo_country
        FROM regional.geoid
        WHERE %s
        ORDER BY geo_name, geo_country
        LIMIT 1)
SELECT lt.datetime,
       lt.temp_c,
       lt.temp_c_feelslike,
       cd.condition_str,
       lt.uv_index,
       lt.humidity::float8,
       lt.pressure_mb,
       CASE WHEN lt.is_day THEN 'day' ELSE 'night' END,
       geo.geo_name || ', ' || geo.geo_country,
       lt.datetime::date
FROM regional.local_temperature lt,
     regional.conditionid cd,
     geo
WHERE geo.id = lt.geo_id
  AND cd.id = lt.condition_id
  AND lt.datetime > CURRENT_TIMESTAMP
ORDER BY 1`

// HistoryByDates returns the complete cached rows for the requested dates.
func (s *Store) HistoryByDates(ctx context.Context, f weather.LocationFilter, dates []string) ([]weather.Row, error) {
	cond, args := locationCondition(f, 1)
	query := fmt.Sprintf(queryHistory, cond, len(args)+1)
	args = append(args, dates)

	return s.queryRows(ctx, query, args)
}

// ForecastRows returns all cached rows with timestamps in the future.
func (s *Store) ForecastRows(ctx context.Context, f weather.LocationFilter) ([]weather.Row, error) {
	cond, args := locationCondition(f, 1)
	query := fmt.Sprintf(queryForecast, cond)

	return s.queryRows(ctx, query, args)
}

func (s *Store) queryRows(ctx context.Context, query string, args []any) ([]weather.Row, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		log.Printf("ERROR: store query failed: %v", err)
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []weather.Row
	for rows.Next() {
		var (
			r         weather.Row
			datetime  time.Time
			checkDate time.Time
		)
		if err := rows.Scan(
			&datetime,
			&r.Temperature,
			&r.TemperatureFeelsLike,
			&r.ConditionWeather,
			&r.UVIndex,
			&r.Humidity,
			&r.PressureMb,
			&r.DayOrNight,
			&r.GeoLocation,
			&checkDate,
		); err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		r.Datetime = datetime.Format("2006-01-02T15:04:05")
		r.CheckDate = checkDate.Format(weather.DateLayout)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read observation rows: %w", err)
	}
	return out, nil
}
