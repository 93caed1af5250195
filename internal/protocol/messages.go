package protocol

import (
	"encoding/json"
	"fmt"
)

// Reading is one timestamped observation for one node. Sensor fields are
// pointers: a nil field means the sensor did not report and the value must be
// skipped by every threshold and statistic, never defaulted to zero.
type Reading struct {
	NodeID       string   `json:"node_id"`
	Timestamp    int64    `json:"timestamp"` // seconds since epoch
	Temperature  *float64 `json:"temperature,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	Pressure     *float64 `json:"pressure,omitempty"`
	Luminosity   *float64 `json:"luminosity,omitempty"`
	RainLevel    *float64 `json:"rain_level,omitempty"`
	WindSpeed    *float64 `json:"wind_speed,omitempty"`
	AnomalyScore float64  `json:"anomaly_score"`
	IsAnomaly    bool     `json:"is_anomaly"`
}

// Float returns a pointer to v, for building readings with optional fields.
func Float(v float64) *float64 {
	return &v
}

// RiskLevel classifies an anomaly score into an ordinal tier.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "normal"
	RiskElevated RiskLevel = "elevated"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AnalysisResult is the scorer output for one reading. Factors and
// recommendations are advisory strings for operators, never consumed by
// other components.
type AnalysisResult struct {
	AnomalyScore    float64   `json:"anomaly_score"`
	IsAnomaly       bool      `json:"is_anomaly"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Factors         []string  `json:"factors"`
	Recommendations []string  `json:"recommendations"`
}

// AlertType identifies the condition class an alert reports.
type AlertType string

const (
	AlertTypeTemp     AlertType = "TEMP"
	AlertTypeRain     AlertType = "RAIN"
	AlertTypeWind     AlertType = "WIND"
	AlertTypePressure AlertType = "PRESSURE"
	AlertTypeAnomaly  AlertType = "ANOMALY"
)

// AlertSeverity orders alerts by urgency.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertCandidate is a proposed alert derived from a single reading. The
// builder emits candidates without node or time attribution; the caller
// attaches those when promoting a candidate to an Alert.
type AlertCandidate struct {
	Type     AlertType     `json:"type"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Alert is a notable event for one node at one time.
type Alert struct {
	NodeID       string        `json:"node_id"`
	Timestamp    int64         `json:"timestamp"`
	Type         AlertType     `json:"type"`
	Severity     AlertSeverity `json:"severity"`
	Message      string        `json:"message"`
	Acknowledged bool          `json:"acknowledged"`
}

// EventType labels the dominant extreme event a forecast anticipates.
type EventType string

const (
	EventHeatwave     EventType = "HEATWAVE"
	EventHeavyRain    EventType = "HEAVY_RAIN"
	EventStrongWind   EventType = "STRONG_WIND"
	EventFog          EventType = "FOG"
	EventWeatherShift EventType = "WEATHER_SHIFT"
)

// Prediction is one forecast for one node at one future horizon. EventType is
// empty when the extreme-event probability is below the reporting threshold.
type Prediction struct {
	NodeID                  string    `json:"node_id"`
	HorizonHours            int       `json:"horizon_hours"`
	PredictedTemp           float64   `json:"predicted_temp"`
	PredictedHumidity       float64   `json:"predicted_humidity"`
	PredictedPressure       float64   `json:"predicted_pressure"`
	ExtremeEventProbability float64   `json:"extreme_event_probability"`
	EventType               EventType `json:"event_type,omitempty"`
}

// ParseReading parses a JSON line into a Reading and validates it.
func ParseReading(data []byte) (*Reading, error) {
	var reading Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := ValidateReading(&reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// ValidateReading checks the structural requirements of a reading. Values
// that are merely unusual (extreme temperature, low pressure) pass here; the
// analysis layers decide what is anomalous.
func ValidateReading(r *Reading) error {
	if r.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("timestamp is required")
	}
	if r.Humidity != nil && (*r.Humidity < 0 || *r.Humidity > 100) {
		return fmt.Errorf("humidity out of range: %.2f", *r.Humidity)
	}
	if r.Luminosity != nil && *r.Luminosity < 0 {
		return fmt.Errorf("luminosity must be non-negative: %.2f", *r.Luminosity)
	}
	if r.RainLevel != nil && *r.RainLevel < 0 {
		return fmt.Errorf("rain_level must be non-negative: %.2f", *r.RainLevel)
	}
	if r.WindSpeed != nil && *r.WindSpeed < 0 {
		return fmt.Errorf("wind_speed must be non-negative: %.2f", *r.WindSpeed)
	}
	return nil
}
