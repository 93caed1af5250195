package aggregation

import (
	"fmt"
	"time"

	"github.com/nkrishnan/sensornet-server/internal/database"
)

// HourlyAggregator rolls raw readings up into hourly per-node averages,
// including the average anomaly score for the hour.
type HourlyAggregator struct {
	db *database.DB
}

// NewHourlyAggregator creates a new hourly aggregator
func NewHourlyAggregator(db *database.DB) *HourlyAggregator {
	return &HourlyAggregator{db: db}
}

// Aggregate performs hourly aggregation for the specified hour
func (h *HourlyAggregator) Aggregate(targetHour time.Time) error {
	startTime := targetHour.Truncate(time.Hour)
	endTime := startTime.Add(time.Hour)

	fmt.Printf("Running hourly aggregation for %s\n", startTime.Format("2006-01-02 15:04:05"))

	query := `
		INSERT INTO hourly_metrics (
			node_id, hour_timestamp, avg_temp, avg_humidity, avg_pressure,
			avg_wind, avg_rain, avg_luminosity, avg_anomaly_score, sample_count
		)
		SELECT
			node_id,
			$1 AS hour_timestamp,
			AVG(temperature) AS avg_temp,
			AVG(humidity) AS avg_humidity,
			AVG(pressure) AS avg_pressure,
			AVG(wind_speed) AS avg_wind,
			AVG(rain_level) AS avg_rain,
			AVG(luminosity) AS avg_luminosity,
			AVG(anomaly_score) AS avg_anomaly_score,
			COUNT(*) AS sample_count
		FROM
			readings
		WHERE
			timestamp >= $1 AND timestamp < $2
		GROUP BY
			node_id
		ON CONFLICT (node_id, hour_timestamp) DO UPDATE
		SET
			avg_temp = EXCLUDED.avg_temp,
			avg_humidity = EXCLUDED.avg_humidity,
			avg_pressure = EXCLUDED.avg_pressure,
			avg_wind = EXCLUDED.avg_wind,
			avg_rain = EXCLUDED.avg_rain,
			avg_luminosity = EXCLUDED.avg_luminosity,
			avg_anomaly_score = EXCLUDED.avg_anomaly_score,
			sample_count = EXCLUDED.sample_count
	`

	result, err := h.db.Exec(query, startTime, endTime)
	if err != nil {
		return fmt.Errorf("failed to aggregate hourly data: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	fmt.Printf("Hourly aggregation completed: %d nodes processed\n", rowsAffected)

	return nil
}

// AggregatePreviousHour aggregates the previous full hour
func (h *HourlyAggregator) AggregatePreviousHour() error {
	now := time.Now()
	previousHour := now.Add(-1 * time.Hour).Truncate(time.Hour)
	return h.Aggregate(previousHour)
}

// CalculateNextRunTime calculates when the hourly aggregation should next
// run, delay minutes past each hour so late readings are included.
func (h *HourlyAggregator) CalculateNextRunTime(delay time.Duration) time.Time {
	now := time.Now()

	nextHour := now.Truncate(time.Hour).Add(time.Hour)
	nextRun := nextHour.Add(delay)

	if now.After(nextRun) {
		nextRun = nextRun.Add(time.Hour)
	}

	return nextRun
}
