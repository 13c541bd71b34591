package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/i474232898/weather-cache-api/internal/weather"
)

// Write operations are used by the fetch worker only. Each call commits on
// its own; there is no transaction spanning the whole normalization pipeline,
// so a failed step leaves earlier writes in place.

// InsertLocationIfAbsent creates the location row on first encounter.
// Existing rows are never updated.
func (s *Store) InsertLocationIfAbsent(ctx context.Context, loc weather.LocationRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO regional.geoid (geo_name, geo_country)
		 VALUES ($1, $2)
		 ON CONFLICT (geo_name, geo_country) DO NOTHING`,
		loc.Name, loc.Country,
	)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// LocationID resolves the assigned identifier of a stored location.
func (s *Store) LocationID(ctx context.Context, loc weather.LocationRow) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM regional.geoid WHERE geo_name = $1 AND geo_country = $2`,
		loc.Name, loc.Country,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select location id: %w", err)
	}
	return id, nil
}

// UpsertConditions writes condition-code descriptions, last write wins.
// Providers revise wording for the same code over time.
func (s *Store) UpsertConditions(ctx context.Context, conds []weather.ConditionRow) error {
	if len(conds) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, c := range conds {
		b.Queue(
			`INSERT INTO regional.conditionid (id, condition_str)
			 VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET condition_str = excluded.condition_str`,
			c.ID, c.Text,
		)
	}

	br := s.pool.SendBatch(ctx, b)
	for range conds {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert condition: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("upsert conditions: %w", err)
	}
	return nil
}

// UpsertObservations writes hourly rows keyed on (geo_id, datetime). A later
// fetch for an overlapping timestamp overwrites prior values: the provider's
// forecast becomes the provider's actual as time passes.
func (s *Store) UpsertObservations(ctx context.Context, obs []weather.ObservationRow) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, o := range obs {
		b.Queue(
			`INSERT INTO regional.local_temperature
			 (geo_id, datetime, datetime_update, temp_c, temp_c_feelslike,
			  condition_id, wind_speed_kph, wind_gust_kph, wind_direction,
			  uv_index, pressure_mb, humidity, cloud, is_day, latitude, longitude)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			 ON CONFLICT (geo_id, datetime) DO UPDATE SET
			   datetime_update = excluded.datetime_update,
			   temp_c = excluded.temp_c,
			   temp_c_feelslike = excluded.temp_c_feelslike,
			   condition_id = excluded.condition_id,
			   wind_speed_kph = excluded.wind_speed_kph,
			   wind_gust_kph = excluded.wind_gust_kph,
			   wind_direction = excluded.wind_direction,
			   uv_index = excluded.uv_index,
			   pressure_mb = excluded.pressure_mb,
			   humidity = excluded.humidity,
			   cloud = excluded.cloud,
			   is_day = excluded.is_day,
			   latitude = excluded.latitude,
			   longitude = excluded.longitude`,
			o.GeoID, o.Datetime, o.DatetimeUpdate, o.TempC, o.TempCFeelsLike,
			o.ConditionID, o.WindSpeedKph, o.WindGustKph, o.WindDirection,
			o.UVIndex, o.PressureMb, o.Humidity, o.Cloud, o.IsDay, o.Latitude, o.Longitude,
		)
	}

	br := s.pool.SendBatch(ctx, b)
	var total int64
	for range obs {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return total, fmt.Errorf("upsert observation: %w", err)
		}
		total += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return total, fmt.Errorf("upsert observations: %w", err)
	}
	return total, nil
}
