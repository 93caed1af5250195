package forecast

import (
	"math"
	"time"

	"github.com/nkrishnan/sensornet-server/internal/analysis"
	"github.com/nkrishnan/sensornet-server/internal/protocol"
	"github.com/nkrishnan/sensornet-server/internal/stats"
	"github.com/nkrishnan/sensornet-server/internal/window"
)

const (
	minReadings = 3

	probabilityFloor   = 0.02
	probabilityCeiling = 0.98

	// Below this probability a forecast names no event type.
	eventThreshold = 0.35

	anomalyBiasEntries = 10
)

// DefaultHorizons are the forecast lead times in hours.
var DefaultHorizons = []int{3, 6, 12, 24}

// Forecaster projects a node's near-future state from its sliding window
// using a linear trend, a diurnal cycle and a recent-anomaly bias. All
// horizons are regenerated together on every call; a forecast cycle is
// wholesale, never a patch of a single horizon.
type Forecaster struct {
	registry *window.Registry
	horizons []int
	noise    *analysis.Noise
}

// NewForecaster creates a forecaster over the given window registry. A nil
// noise source makes forecasts deterministic.
func NewForecaster(registry *window.Registry, horizons []int, noise *analysis.Noise) *Forecaster {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	return &Forecaster{registry: registry, horizons: horizons, noise: noise}
}

// Horizons returns the configured forecast lead times.
func (f *Forecaster) Horizons() []int {
	return f.horizons
}

// Predict returns one prediction per configured horizon for the node, or nil
// when the node has no window or fewer than three readings. Insufficient
// history is a normal outcome for a new node, not an error.
func (f *Forecaster) Predict(nodeID string) []protocol.Prediction {
	w, exists := f.registry.Get(nodeID)
	if !exists {
		return nil
	}

	snapshot := w.Snapshot()
	if len(snapshot) < minReadings {
		return nil
	}

	latest := snapshot[len(snapshot)-1]

	temps := collectField(snapshot, func(r *protocol.Reading) *float64 { return r.Temperature })
	hums := collectField(snapshot, func(r *protocol.Reading) *float64 { return r.Humidity })
	pressures := collectField(snapshot, func(r *protocol.Reading) *float64 { return r.Pressure })

	trend := fieldTrends{
		tempSlope:     stats.Slope(temps),
		humSlope:      stats.Slope(hums),
		pressureSlope: stats.Slope(pressures),
	}

	anchor := anchorPoint{
		temp:     lastOr(temps, 15),
		humidity: lastOr(hums, 60),
		pressure: lastOr(pressures, 1013),
	}

	bias := recentAnomalyBias(snapshot)

	predictions := make([]protocol.Prediction, 0, len(f.horizons))
	for _, horizon := range f.horizons {
		predictions = append(predictions, f.predictHorizon(nodeID, latest.Timestamp, horizon, anchor, trend, bias))
	}
	return predictions
}

// PredictFromReading is the window-free bootstrap path: scheduled forecast
// refreshes can run against the most recent persisted reading before any
// in-memory window exists. Same diurnal and noise shape, no trend term.
func (f *Forecaster) PredictFromReading(latest *protocol.Reading) []protocol.Prediction {
	if latest == nil {
		return nil
	}

	anchor := anchorPoint{
		temp:     valueOr(latest.Temperature, 15),
		humidity: valueOr(latest.Humidity, 60),
		pressure: valueOr(latest.Pressure, 1013),
	}
	bias := latest.AnomalyScore * 0.25

	predictions := make([]protocol.Prediction, 0, len(f.horizons))
	for _, horizon := range f.horizons {
		predictions = append(predictions, f.predictHorizon(latest.NodeID, latest.Timestamp, horizon, anchor, fieldTrends{}, bias))
	}
	return predictions
}

type fieldTrends struct {
	tempSlope     float64
	humSlope      float64
	pressureSlope float64
}

type anchorPoint struct {
	temp     float64
	humidity float64
	pressure float64
}

func (f *Forecaster) predictHorizon(nodeID string, latestTS int64, horizon int, anchor anchorPoint, trend fieldTrends, anomalyBias float64) protocol.Prediction {
	futureTS := latestTS + int64(horizon)*3600
	diurnal := diurnalFactor(futureTS)
	h := float64(horizon)

	predTemp := clamp(anchor.temp+trend.tempSlope*h*0.3+diurnal*2.5+f.noise.Range(-0.8, 0.8), -10, 55)
	predHum := clamp(anchor.humidity+trend.humSlope*h*0.3-diurnal*6+f.noise.Range(-2, 2), 5, 100)
	predPressure := clamp(anchor.pressure+trend.pressureSlope*h*0.2+f.noise.Range(-1, 1), 950, 1060)

	probability := 0.05
	if predTemp >= 38 {
		probability += 0.15
	}
	if predTemp <= 5 {
		probability += 0.12
	}
	if predHum >= 90 {
		probability += 0.12
	}
	if predPressure <= 1002 {
		probability += 0.18
	}
	probability += anomalyBias
	probability += math.Abs(trend.tempSlope) * 0.08
	probability += math.Abs(trend.pressureSlope) * 0.10
	probability += f.noise.Range(-0.02, 0.02)
	probability = clamp(probability, probabilityFloor, probabilityCeiling)

	return protocol.Prediction{
		NodeID:                  nodeID,
		HorizonHours:            horizon,
		PredictedTemp:           predTemp,
		PredictedHumidity:       predHum,
		PredictedPressure:       predPressure,
		ExtremeEventProbability: probability,
		EventType:               eventTypeFor(probability, predTemp, predHum, predPressure),
	}
}

// eventTypeFor picks the dominant event by priority once the probability
// clears the reporting threshold. Low predicted pressure stands in for a
// rain-bearing storm; there is no direct rain forecast.
func eventTypeFor(probability, predTemp, predHum, predPressure float64) protocol.EventType {
	if probability < eventThreshold {
		return ""
	}
	switch {
	case predTemp >= 38:
		return protocol.EventHeatwave
	case predPressure <= 1000:
		return protocol.EventHeavyRain
	case predHum >= 92:
		return protocol.EventFog
	default:
		return protocol.EventWeatherShift
	}
}

// diurnalFactor approximates the daily heating cycle: -1 around midnight,
// +1 around noon, crossing zero near 06:00 and 18:00 UTC.
func diurnalFactor(ts int64) float64 {
	hour := float64(time.Unix(ts, 0).UTC().Hour())
	return math.Sin(((hour - 6) * math.Pi) / 12)
}

func recentAnomalyBias(snapshot []*protocol.Reading) float64 {
	start := len(snapshot) - anomalyBiasEntries
	if start < 0 {
		start = 0
	}

	scores := make([]float64, 0, anomalyBiasEntries)
	for _, r := range snapshot[start:] {
		scores = append(scores, r.AnomalyScore)
	}
	return stats.Mean(scores) * 0.25
}

func collectField(snapshot []*protocol.Reading, field func(*protocol.Reading) *float64) []float64 {
	values := make([]float64, 0, len(snapshot))
	for _, r := range snapshot {
		if v := field(r); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

func lastOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
