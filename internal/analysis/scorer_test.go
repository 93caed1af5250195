package analysis

import (
	"strings"
	"testing"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

// Scorer with jitter disabled; scoring must be fully deterministic then.
func newTestScorer() *Scorer {
	return NewScorer(DefaultAnomalyThreshold, nil)
}

func TestScoreWithHistory_CriticalTemperature(t *testing.T) {
	scorer := newTestScorer()
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(45),
		Humidity:    protocol.Float(50),
		Pressure:    protocol.Float(1013),
		WindSpeed:   protocol.Float(2),
		RainLevel:   protocol.Float(0),
	}

	result := scorer.ScoreWithHistory(reading, nil, nil)

	if result.AnomalyScore < 0.35 {
		t.Errorf("Expected score >= 0.35 for 45°C, got %f", result.AnomalyScore)
	}
	if result.RiskLevel == protocol.RiskNormal {
		t.Errorf("Expected at least elevated risk, got %s", result.RiskLevel)
	}
	if len(result.Factors) == 0 {
		t.Error("Expected a factor citing the critical temperature")
	}
}

func TestScoreWithHistory_PressureHumidityIncoherence(t *testing.T) {
	scorer := newTestScorer()
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(30),
		Pressure:    protocol.Float(995),
		Humidity:    protocol.Float(35),
	}

	result := scorer.ScoreWithHistory(reading, nil, nil)

	// Low pressure (+0.25) stacks with the pressure/humidity incoherence (+0.12)
	if result.AnomalyScore < 0.37 {
		t.Errorf("Expected score >= 0.37, got %f", result.AnomalyScore)
	}
}

func TestScoreWithHistory_FreezeStacksWithLowTemperature(t *testing.T) {
	scorer := newTestScorer()
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(-2),
	}

	result := scorer.ScoreWithHistory(reading, nil, nil)

	if result.AnomalyScore != 0.40 {
		t.Errorf("Expected score 0.40 (low temp + freeze), got %f", result.AnomalyScore)
	}
	if result.RiskLevel != protocol.RiskElevated {
		t.Errorf("Expected elevated risk, got %s", result.RiskLevel)
	}
}

func TestScoreWithHistory_PressureGradient(t *testing.T) {
	scorer := newTestScorer()
	previous := &protocol.Reading{
		NodeID:    "node-001",
		Timestamp: 1000,
		Pressure:  protocol.Float(1015),
	}
	reading := &protocol.Reading{
		NodeID:    "node-001",
		Timestamp: 1300, // 5 minutes later
		Pressure:  protocol.Float(1005),
	}

	result := scorer.ScoreWithHistory(reading, previous, nil)

	if result.AnomalyScore != 0.18 {
		t.Errorf("Expected gradient contribution 0.18, got %f", result.AnomalyScore)
	}

	found := false
	for _, f := range result.Factors {
		if strings.Contains(f, "pressure") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a pressure gradient factor, got %v", result.Factors)
	}
}

func TestScoreWithHistory_GradientIgnoredOutsideTimeBounds(t *testing.T) {
	scorer := newTestScorer()
	previous := &protocol.Reading{
		NodeID:    "node-001",
		Timestamp: 1000,
		Pressure:  protocol.Float(1015),
	}
	reading := &protocol.Reading{
		NodeID:    "node-001",
		Timestamp: 1000 + gradientMaxSeconds, // too far apart
		Pressure:  protocol.Float(1005),
	}

	result := scorer.ScoreWithHistory(reading, previous, nil)
	if result.AnomalyScore != 0 {
		t.Errorf("Expected no gradient contribution, got %f", result.AnomalyScore)
	}
}

func windowOfTemps(temps ...float64) []*protocol.Reading {
	win := make([]*protocol.Reading, len(temps))
	for i, temp := range temps {
		win[i] = &protocol.Reading{
			NodeID:      "node-001",
			Timestamp:   int64(1000 + i*60),
			Temperature: protocol.Float(temp),
		}
	}
	return win
}

func TestScoreWithHistory_ZScoreDeviation(t *testing.T) {
	scorer := newTestScorer()
	win := windowOfTemps(19.9, 20.1, 19.9, 20.1, 19.9, 20.1, 19.9, 20.1)
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   2000,
		Temperature: protocol.Float(25),
	}

	result := scorer.ScoreWithHistory(reading, nil, win)

	if result.AnomalyScore != 0.18 {
		t.Errorf("Expected z-score contribution 0.18, got %f", result.AnomalyScore)
	}

	found := false
	for _, f := range result.Factors {
		if strings.Contains(f, "z=") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a z-score factor, got %v", result.Factors)
	}
}

func TestScoreWithHistory_ZScoreSkippedOnSmallWindow(t *testing.T) {
	scorer := newTestScorer()
	win := windowOfTemps(19.9, 20.1, 19.9, 20.1, 19.9, 20.1, 19.9) // 7 readings
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   2000,
		Temperature: protocol.Float(25),
	}

	result := scorer.ScoreWithHistory(reading, nil, win)
	if result.AnomalyScore != 0 {
		t.Errorf("Expected no z-score contribution below 8 readings, got %f", result.AnomalyScore)
	}
}

func TestScoreWithHistory_ZScoreSkippedOnZeroVariance(t *testing.T) {
	scorer := newTestScorer()
	win := windowOfTemps(20, 20, 20, 20, 20, 20, 20, 20)
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   2000,
		Temperature: protocol.Float(25),
	}

	// Must not panic or contribute when the field has zero variance
	result := scorer.ScoreWithHistory(reading, nil, win)
	if result.AnomalyScore != 0 {
		t.Errorf("Expected no contribution from flat window, got %f", result.AnomalyScore)
	}
}

func TestScoreWithHistory_NilFieldsAreSkipped(t *testing.T) {
	scorer := newTestScorer()
	reading := &protocol.Reading{NodeID: "node-001", Timestamp: 1000}

	result := scorer.ScoreWithHistory(reading, nil, nil)

	if result.AnomalyScore != 0 {
		t.Errorf("Expected score 0 for empty reading, got %f", result.AnomalyScore)
	}
	if result.IsAnomaly {
		t.Error("Empty reading must not be an anomaly")
	}
	if result.RiskLevel != protocol.RiskNormal {
		t.Errorf("Expected normal risk, got %s", result.RiskLevel)
	}
	if len(result.Factors) != 0 {
		t.Errorf("Expected no factors, got %v", result.Factors)
	}
}

func TestScoreWithHistory_ScoreBoundsAndThreshold(t *testing.T) {
	scorer := newTestScorer()
	// Everything wrong at once: the sum of layers far exceeds 1
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(45),
		Humidity:    protocol.Float(96),
		Pressure:    protocol.Float(990),
		WindSpeed:   protocol.Float(25),
		RainLevel:   protocol.Float(15),
	}

	result := scorer.ScoreWithHistory(reading, nil, nil)

	if result.AnomalyScore < 0 || result.AnomalyScore > 1 {
		t.Errorf("Score out of [0,1]: %f", result.AnomalyScore)
	}
	if result.AnomalyScore != 1.0 {
		t.Errorf("Expected clamped score 1.0, got %f", result.AnomalyScore)
	}
	if !result.IsAnomaly {
		t.Error("Expected is_anomaly at clamped maximum")
	}
	if result.RiskLevel != protocol.RiskCritical {
		t.Errorf("Expected critical risk, got %s", result.RiskLevel)
	}
	if len(result.Recommendations) == 0 {
		t.Error("Expected recommendations at critical risk")
	}
}

func TestScoreWithoutHistory_BoundaryConstants(t *testing.T) {
	scorer := newTestScorer()

	// 0.30 (temp) + 0.20 (wind) + 0.15 (dry air) = 0.65: above the deep
	// threshold but below the boundary threshold of 0.70
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(37),
		WindSpeed:   protocol.Float(15),
		Humidity:    protocol.Float(25),
	}

	result := scorer.ScoreWithoutHistory(reading, nil)

	if result.AnomalyScore != 0.65 {
		t.Errorf("Expected score 0.65, got %f", result.AnomalyScore)
	}
	if result.IsAnomaly {
		t.Error("Boundary variant must use the 0.70 threshold")
	}
	if result.RiskLevel != protocol.RiskHigh {
		t.Errorf("Risk tiers are shared across variants, expected high, got %s", result.RiskLevel)
	}
}

func TestScoreWithoutHistory_GradientChecks(t *testing.T) {
	scorer := newTestScorer()
	previous := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(20),
		Pressure:    protocol.Float(1013),
	}
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1060,
		Temperature: protocol.Float(24), // jump of 4.0 >= 3.5
		Pressure:    protocol.Float(1006),
	}

	result := scorer.ScoreWithoutHistory(reading, previous)

	// temp jump (+0.20) and pressure drop of 7 hPa (+0.20)
	if result.AnomalyScore != 0.40 {
		t.Errorf("Expected score 0.40, got %f", result.AnomalyScore)
	}
}

func TestScoreDeterministicWithoutNoise(t *testing.T) {
	scorer := newTestScorer()
	win1 := windowOfTemps(19.9, 20.1, 19.9, 20.1, 19.9, 20.1, 19.9, 20.1)
	win2 := windowOfTemps(19.9, 20.1, 19.9, 20.1, 19.9, 20.1, 19.9, 20.1)
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   2000,
		Temperature: protocol.Float(39),
	}

	r1 := scorer.ScoreWithHistory(reading, nil, win1)
	r2 := scorer.ScoreWithHistory(reading, nil, win2)

	if r1.AnomalyScore != r2.AnomalyScore || r1.RiskLevel != r2.RiskLevel {
		t.Errorf("Scoring not deterministic: %v vs %v", r1, r2)
	}
}

func TestRiskLevelForScore_StepFunction(t *testing.T) {
	cases := []struct {
		score float64
		want  protocol.RiskLevel
	}{
		{0.0, protocol.RiskNormal},
		{0.39, protocol.RiskNormal},
		{0.40, protocol.RiskElevated},
		{0.64, protocol.RiskElevated},
		{0.65, protocol.RiskHigh},
		{0.84, protocol.RiskHigh},
		{0.85, protocol.RiskCritical},
		{1.0, protocol.RiskCritical},
	}

	for _, c := range cases {
		if got := RiskLevelForScore(c.score); got != c.want {
			t.Errorf("Score %.2f: expected %s, got %s", c.score, c.want, got)
		}
	}
}

func TestNoise_JitterBounds(t *testing.T) {
	noise := NewNoise(42)

	for i := 0; i < 1000; i++ {
		j := noise.Jitter(0.03)
		if j < -0.4*0.03 || j > 0.6*0.03 {
			t.Fatalf("Jitter out of bounds: %f", j)
		}
	}
}

func TestNoise_NilIsSilent(t *testing.T) {
	var noise *Noise
	if noise.Jitter(0.03) != 0 {
		t.Error("Nil noise must contribute nothing")
	}
	if noise.Range(-1, 1) != 0 {
		t.Error("Nil noise must contribute nothing")
	}
}
