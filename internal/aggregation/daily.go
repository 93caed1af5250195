package aggregation

import (
	"fmt"
	"time"

	"github.com/nkrishnan/sensornet-server/internal/database"
)

// DailyAggregator builds per-node daily min/max summaries from the hourly
// rollups, plus the count of anomalous readings that day.
type DailyAggregator struct {
	db *database.DB
}

// NewDailyAggregator creates a new daily aggregator
func NewDailyAggregator(db *database.DB) *DailyAggregator {
	return &DailyAggregator{db: db}
}

// Aggregate performs daily aggregation for the specified date
func (d *DailyAggregator) Aggregate(targetDate time.Time) error {
	date := targetDate.Truncate(24 * time.Hour)

	fmt.Printf("Running daily aggregation for %s\n", date.Format("2006-01-02"))

	query := `
		INSERT INTO daily_summary (
			node_id, date,
			min_temp, max_temp,
			min_humidity, max_humidity,
			min_pressure, max_pressure,
			min_wind, max_wind,
			min_rain, max_rain,
			anomaly_count
		)
		SELECT
			h.node_id,
			$1::date AS date,
			MIN(h.avg_temp) AS min_temp,
			MAX(h.avg_temp) AS max_temp,
			MIN(h.avg_humidity) AS min_humidity,
			MAX(h.avg_humidity) AS max_humidity,
			MIN(h.avg_pressure) AS min_pressure,
			MAX(h.avg_pressure) AS max_pressure,
			MIN(h.avg_wind) AS min_wind,
			MAX(h.avg_wind) AS max_wind,
			MIN(h.avg_rain) AS min_rain,
			MAX(h.avg_rain) AS max_rain,
			COALESCE((
				SELECT COUNT(*)
				FROM readings r
				WHERE r.node_id = h.node_id
				  AND r.is_anomaly = true
				  AND r.timestamp >= $1::date
				  AND r.timestamp < $1::date + INTERVAL '1 day'
			), 0) AS anomaly_count
		FROM
			hourly_metrics h
		WHERE
			h.hour_timestamp >= $1::date AND h.hour_timestamp < $1::date + INTERVAL '1 day'
		GROUP BY
			h.node_id
		ON CONFLICT (node_id, date) DO UPDATE
		SET
			min_temp = EXCLUDED.min_temp,
			max_temp = EXCLUDED.max_temp,
			min_humidity = EXCLUDED.min_humidity,
			max_humidity = EXCLUDED.max_humidity,
			min_pressure = EXCLUDED.min_pressure,
			max_pressure = EXCLUDED.max_pressure,
			min_wind = EXCLUDED.min_wind,
			max_wind = EXCLUDED.max_wind,
			min_rain = EXCLUDED.min_rain,
			max_rain = EXCLUDED.max_rain,
			anomaly_count = EXCLUDED.anomaly_count
	`

	result, err := d.db.Exec(query, date)
	if err != nil {
		return fmt.Errorf("failed to aggregate daily data: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	fmt.Printf("Daily aggregation completed: %d nodes processed\n", rowsAffected)

	return nil
}

// AggregatePreviousDay aggregates the previous full day
func (d *DailyAggregator) AggregatePreviousDay() error {
	yesterday := time.Now().AddDate(0, 0, -1)
	return d.Aggregate(yesterday)
}

// CalculateNextRunTime calculates the next daily run from an HH:MM string.
func (d *DailyAggregator) CalculateNextRunTime(timeOfDay string) (time.Time, error) {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid daily time %q: %w", timeOfDay, err)
	}

	now := time.Now()
	nextRun := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if now.After(nextRun) {
		nextRun = nextRun.AddDate(0, 0, 1)
	}

	return nextRun, nil
}
