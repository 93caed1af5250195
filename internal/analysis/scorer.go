package analysis

import (
	"fmt"
	"math"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
	"github.com/nkrishnan/sensornet-server/internal/stats"
)

const (
	// DefaultAnomalyThreshold is the is_anomaly cutoff for the full scorer.
	DefaultAnomalyThreshold = 0.65

	// BoundaryAnomalyThreshold is the stricter cutoff used when a reading is
	// scored before any window history exists.
	BoundaryAnomalyThreshold = 0.70

	jitterAmplitude = 0.03

	// The z-score layer needs a minimally populated window before a
	// deviation measure means anything.
	zScoreMinWindow  = 8
	zScoreMinSamples = 5

	// Gradients are only meaningful between readings close in time.
	gradientMaxSeconds = 600
)

// Scorer turns a reading into an anomaly assessment. It never mutates the
// window it reads; pushing the reading into the window is the caller's job.
type Scorer struct {
	threshold float64
	noise     *Noise
}

// NewScorer creates a scorer with the given deep-variant anomaly threshold.
// A nil noise source disables jitter.
func NewScorer(threshold float64, noise *Noise) *Scorer {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	return &Scorer{threshold: threshold, noise: noise}
}

// RiskLevelForScore maps an anomaly score to its risk tier. The mapping is a
// step function: scores at or above 0.85 are critical, 0.65 high, 0.40
// elevated, everything below is normal.
func RiskLevelForScore(score float64) protocol.RiskLevel {
	switch {
	case score >= 0.85:
		return protocol.RiskCritical
	case score >= 0.65:
		return protocol.RiskHigh
	case score >= 0.40:
		return protocol.RiskElevated
	default:
		return protocol.RiskNormal
	}
}

// ScoreWithHistory scores a reading using the full four-layer formula:
// absolute thresholds, rolling z-scores over the window, temporal gradients
// against the previous reading, and cross-sensor coherence. The window is a
// snapshot of the node's recent readings; the scorer works whether or not
// the reading itself is already in it.
func (s *Scorer) ScoreWithHistory(reading, previous *protocol.Reading, win []*protocol.Reading) *protocol.AnalysisResult {
	score := 0.0
	var factors []string

	// Layer 1: absolute physical thresholds
	if t := reading.Temperature; t != nil {
		if *t >= 42 {
			score += 0.35
			factors = append(factors, fmt.Sprintf("critical temperature: %.1f°C", *t))
		} else if *t >= 38 {
			score += 0.20
			factors = append(factors, fmt.Sprintf("high temperature: %.1f°C", *t))
		}
		if *t <= 8 {
			score += 0.25
			factors = append(factors, fmt.Sprintf("low temperature: %.1f°C", *t))
			if *t <= 0 {
				score += 0.15
				factors = append(factors, fmt.Sprintf("freeze conditions: %.1f°C", *t))
			}
		}
	}
	if h := reading.Humidity; h != nil {
		if *h >= 95 {
			score += 0.22
			factors = append(factors, fmt.Sprintf("saturated humidity: %.1f%%", *h))
		} else if *h <= 15 {
			score += 0.20
			factors = append(factors, fmt.Sprintf("very dry air: %.1f%%", *h))
		}
	}
	if p := reading.Pressure; p != nil {
		if *p <= 995 {
			score += 0.25
			factors = append(factors, fmt.Sprintf("low pressure: %.1f hPa", *p))
		} else if *p >= 1035 {
			score += 0.15
			factors = append(factors, fmt.Sprintf("high pressure: %.1f hPa", *p))
		}
	}
	if w := reading.WindSpeed; w != nil && *w >= 20 {
		score += 0.25
		factors = append(factors, fmt.Sprintf("violent wind: %.1f m/s", *w))
	}
	if r := reading.RainLevel; r != nil && *r >= 10 {
		score += 0.22
		factors = append(factors, fmt.Sprintf("intense rain: %.1f mm/h", *r))
	}

	// Layer 2: rolling z-score deviation per field
	if len(win) >= zScoreMinWindow {
		zs, zf := zScoreContribution(win, reading.Temperature, temperatureOf, "temperature")
		score += zs
		factors = append(factors, zf...)

		zs, zf = zScoreContribution(win, reading.Humidity, humidityOf, "humidity")
		score += zs
		factors = append(factors, zf...)

		zs, zf = zScoreContribution(win, reading.Pressure, pressureOf, "pressure")
		score += zs
		factors = append(factors, zf...)
	}

	// Layer 3: temporal gradient against the previous reading
	gs, gf := gradientContribution(reading, previous)
	score += gs
	factors = append(factors, gf...)

	// Layer 4: cross-sensor coherence
	if reading.Temperature != nil && reading.Humidity != nil && reading.Pressure != nil {
		if *reading.Pressure < 1000 && *reading.Humidity < 40 {
			// A depression should come with moist air; dry air under low
			// pressure points at a humidity sensor fault.
			score += 0.12
			factors = append(factors, fmt.Sprintf(
				"low pressure (%.1f hPa) with dry air (%.1f%%), possible humidity sensor fault",
				*reading.Pressure, *reading.Humidity))
		}
		if *reading.Temperature >= 35 && *reading.Humidity >= 70 {
			score += 0.15
			factors = append(factors, fmt.Sprintf(
				"dangerous heat index: %.1f°C at %.1f%% humidity",
				*reading.Temperature, *reading.Humidity))
		}
	}

	score += s.noise.Jitter(jitterAmplitude)

	return s.finalize(reading, score, factors, s.threshold)
}

// ScoreWithoutHistory is the boundary variant used for readings that are not
// yet in any window, such as freshly generated synthetic readings. It applies
// a reduced set of absolute thresholds plus a gradient check against the
// previous reading only, with its own constants and a stricter anomaly
// cutoff.
func (s *Scorer) ScoreWithoutHistory(reading, previous *protocol.Reading) *protocol.AnalysisResult {
	score := 0.0
	var factors []string

	if t := reading.Temperature; t != nil {
		if *t >= 37 {
			score += 0.30
			factors = append(factors, fmt.Sprintf("high temperature: %.1f°C", *t))
		} else if *t <= 15 {
			score += 0.20
			factors = append(factors, fmt.Sprintf("low temperature: %.1f°C", *t))
		}
	}
	if h := reading.Humidity; h != nil {
		if *h >= 94 {
			score += 0.20
			factors = append(factors, fmt.Sprintf("saturated humidity: %.1f%%", *h))
		} else if *h <= 25 {
			score += 0.15
			factors = append(factors, fmt.Sprintf("very dry air: %.1f%%", *h))
		}
	}
	if p := reading.Pressure; p != nil {
		if *p <= 1001 {
			score += 0.25
			factors = append(factors, fmt.Sprintf("low pressure: %.1f hPa", *p))
		} else if *p >= 1024 {
			score += 0.15
			factors = append(factors, fmt.Sprintf("high pressure: %.1f hPa", *p))
		}
	}
	if w := reading.WindSpeed; w != nil && *w >= 15 {
		score += 0.20
		factors = append(factors, fmt.Sprintf("strong wind: %.1f m/s", *w))
	}
	if r := reading.RainLevel; r != nil && *r >= 8 {
		score += 0.20
		factors = append(factors, fmt.Sprintf("heavy rain: %.1f mm/h", *r))
	}

	if previous != nil {
		if reading.Temperature != nil && previous.Temperature != nil {
			if delta := math.Abs(*reading.Temperature - *previous.Temperature); delta >= 3.5 {
				score += 0.20
				factors = append(factors, fmt.Sprintf("sudden temperature jump: %.1f°C", delta))
			}
		}
		if reading.Pressure != nil && previous.Pressure != nil {
			if drop := *previous.Pressure - *reading.Pressure; drop >= 6 {
				score += 0.20
				factors = append(factors, fmt.Sprintf("sudden pressure drop: %.1f hPa", drop))
			}
		}
	}

	score += s.noise.Jitter(jitterAmplitude)

	return s.finalize(reading, score, factors, BoundaryAnomalyThreshold)
}

func (s *Scorer) finalize(reading *protocol.Reading, score float64, factors []string, threshold float64) *protocol.AnalysisResult {
	score = math.Round(clamp(score, 0, 1)*10000) / 10000

	result := &protocol.AnalysisResult{
		AnomalyScore: score,
		IsAnomaly:    score >= threshold,
		RiskLevel:    RiskLevelForScore(score),
		Factors:      factors,
	}
	result.Recommendations = recommendations(reading, result.RiskLevel)
	return result
}

func recommendations(reading *protocol.Reading, risk protocol.RiskLevel) []string {
	var recs []string

	if risk == protocol.RiskCritical {
		recs = append(recs,
			"verify sensors on-site",
			"notify field team")
	}
	if reading.Temperature != nil && *reading.Temperature >= 40 {
		recs = append(recs, "check node cooling and shielding")
	}
	if reading.Pressure != nil && *reading.Pressure <= 998 {
		recs = append(recs, "prepare for incoming storm conditions")
	}
	if reading.Humidity != nil && *reading.Humidity >= 95 {
		recs = append(recs, "inspect enclosure for condensation")
	}
	if reading.WindSpeed != nil && *reading.WindSpeed >= 18 {
		recs = append(recs, "secure outdoor equipment")
	}

	return recs
}

func zScoreContribution(win []*protocol.Reading, value *float64, field func(*protocol.Reading) *float64, name string) (float64, []string) {
	if value == nil {
		return 0, nil
	}

	values := collectField(win, field)
	if len(values) < zScoreMinSamples {
		return 0, nil
	}

	mean := stats.Mean(values)
	stdDev := stats.StdDev(values, mean)
	if stdDev == 0 {
		// A flat field has no meaningful deviation; skipping also avoids
		// division by zero.
		return 0, nil
	}

	z := math.Abs(*value-mean) / stdDev
	if z > 3.0 {
		return 0.18, []string{fmt.Sprintf("%s deviates from recent history (z=%.2f)", name, z)}
	}
	if z > 2.5 {
		// Partial signal, not worth a factor string on its own.
		return 0.08, nil
	}
	return 0, nil
}

func gradientContribution(reading, previous *protocol.Reading) (float64, []string) {
	if previous == nil {
		return 0, nil
	}

	elapsed := reading.Timestamp - previous.Timestamp
	if elapsed <= 0 || elapsed >= gradientMaxSeconds {
		return 0, nil
	}
	minutes := float64(elapsed) / 60

	score := 0.0
	var factors []string

	if reading.Temperature != nil && previous.Temperature != nil {
		if delta := math.Abs(*reading.Temperature - *previous.Temperature); delta > 4 {
			score += 0.15
			factors = append(factors, fmt.Sprintf("rapid temperature change: %.1f°C in %.0f min", delta, minutes))
		}
	}
	if reading.Pressure != nil && previous.Pressure != nil {
		if delta := math.Abs(*reading.Pressure - *previous.Pressure); delta > 8 {
			score += 0.18
			factors = append(factors, fmt.Sprintf("rapid pressure change: %.1f hPa in %.0f min", delta, minutes))
		}
	}
	if reading.Humidity != nil && previous.Humidity != nil {
		if delta := math.Abs(*reading.Humidity - *previous.Humidity); delta > 20 {
			score += 0.10
			factors = append(factors, fmt.Sprintf("rapid humidity change: %.1f%% in %.0f min", delta, minutes))
		}
	}

	return score, factors
}

func collectField(win []*protocol.Reading, field func(*protocol.Reading) *float64) []float64 {
	values := make([]float64, 0, len(win))
	for _, r := range win {
		if v := field(r); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

func temperatureOf(r *protocol.Reading) *float64 { return r.Temperature }
func humidityOf(r *protocol.Reading) *float64    { return r.Humidity }
func pressureOf(r *protocol.Reading) *float64    { return r.Pressure }

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
