package database

import (
	"time"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

// Node represents a registered sensor node
type Node struct {
	NodeID      string
	Name        string
	Lat         *float64
	Lon         *float64
	IsSimulated bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StoredReading is a persisted sensor reading with its anomaly assessment
type StoredReading struct {
	ID           int64
	NodeID       string
	Timestamp    time.Time
	Temperature  *float64
	Humidity     *float64
	Pressure     *float64
	Luminosity   *float64
	RainLevel    *float64
	WindSpeed    *float64
	AnomalyScore float64
	IsAnomaly    bool
	ReceivedAt   time.Time
}

// NewStoredReading converts a wire reading into its persisted form.
func NewStoredReading(r *protocol.Reading, receivedAt time.Time) *StoredReading {
	return &StoredReading{
		NodeID:       r.NodeID,
		Timestamp:    time.Unix(r.Timestamp, 0).UTC(),
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		Pressure:     r.Pressure,
		Luminosity:   r.Luminosity,
		RainLevel:    r.RainLevel,
		WindSpeed:    r.WindSpeed,
		AnomalyScore: r.AnomalyScore,
		IsAnomaly:    r.IsAnomaly,
		ReceivedAt:   receivedAt,
	}
}

// Reading converts a persisted reading back to its wire form.
func (sr *StoredReading) Reading() *protocol.Reading {
	return &protocol.Reading{
		NodeID:       sr.NodeID,
		Timestamp:    sr.Timestamp.Unix(),
		Temperature:  sr.Temperature,
		Humidity:     sr.Humidity,
		Pressure:     sr.Pressure,
		Luminosity:   sr.Luminosity,
		RainLevel:    sr.RainLevel,
		WindSpeed:    sr.WindSpeed,
		AnomalyScore: sr.AnomalyScore,
		IsAnomaly:    sr.IsAnomaly,
	}
}

// StoredAlert is a persisted alert event
type StoredAlert struct {
	ID           int64
	NodeID       string
	Timestamp    time.Time
	Type         string
	Severity     string
	Message      string
	Acknowledged bool
	CreatedAt    time.Time
}

// StoredPrediction is one persisted forecast horizon for a node
type StoredPrediction struct {
	ID                      int64
	NodeID                  string
	HorizonHours            int
	PredictedTemp           float64
	PredictedHumidity       float64
	PredictedPressure       float64
	ExtremeEventProbability float64
	EventType               *string
	GeneratedAt             time.Time
}

// HourlyMetric represents hourly aggregated readings for a node
type HourlyMetric struct {
	ID              int64
	NodeID          string
	HourTimestamp   time.Time
	AvgTemp         *float64
	AvgHumidity     *float64
	AvgPressure     *float64
	AvgWind         *float64
	AvgRain         *float64
	AvgLuminosity   *float64
	AvgAnomalyScore *float64
	SampleCount     int
	CreatedAt       time.Time
}

// DailySummary represents daily min/max data for a node
type DailySummary struct {
	ID           int64
	NodeID       string
	Date         time.Time
	MinTemp      *float64
	MaxTemp      *float64
	MinHumidity  *float64
	MaxHumidity  *float64
	MinPressure  *float64
	MaxPressure  *float64
	MinWind      *float64
	MaxWind      *float64
	MinRain      *float64
	MaxRain      *float64
	AnomalyCount int
	CreatedAt    time.Time
}
