package alerting

import (
	"strings"
	"testing"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

func TestBuildAlerts_CriticalTemperature(t *testing.T) {
	b := NewBuilder()
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(39),
		RainLevel:   protocol.Float(0),
		WindSpeed:   protocol.Float(0),
	}

	candidates := b.BuildAlerts(reading, nil)

	if len(candidates) != 1 {
		t.Fatalf("Expected exactly 1 alert, got %d: %v", len(candidates), candidates)
	}
	if candidates[0].Type != protocol.AlertTypeTemp {
		t.Errorf("Expected TEMP alert, got %s", candidates[0].Type)
	}
	if candidates[0].Severity != protocol.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", candidates[0].Severity)
	}
}

func TestBuildAlerts_TemperatureTiersAreExclusive(t *testing.T) {
	b := NewBuilder()
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(37),
	}

	candidates := b.BuildAlerts(reading, nil)

	if len(candidates) != 1 {
		t.Fatalf("Expected exactly 1 alert, got %d", len(candidates))
	}
	if candidates[0].Severity != protocol.SeverityWarning {
		t.Errorf("Expected warning severity at 37°C, got %s", candidates[0].Severity)
	}
}

func TestBuildAlerts_PressureDrop(t *testing.T) {
	b := NewBuilder()
	previous := &protocol.Reading{
		NodeID:    "node-001",
		Timestamp: 1000,
		Pressure:  protocol.Float(1015),
	}
	reading := &protocol.Reading{
		NodeID:    "node-001",
		Timestamp: 1300,
		Pressure:  protocol.Float(1005),
	}

	candidates := b.BuildAlerts(reading, previous)

	if len(candidates) != 1 {
		t.Fatalf("Expected exactly 1 alert, got %d: %v", len(candidates), candidates)
	}
	if candidates[0].Type != protocol.AlertTypePressure {
		t.Errorf("Expected PRESSURE alert, got %s", candidates[0].Type)
	}
	if candidates[0].Severity != protocol.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", candidates[0].Severity)
	}
	if !strings.Contains(candidates[0].Message, "10.0 hPa") {
		t.Errorf("Expected message citing the 10 hPa drop, got %q", candidates[0].Message)
	}
}

func TestBuildAlerts_PressureRiseIsSilent(t *testing.T) {
	b := NewBuilder()
	previous := &protocol.Reading{NodeID: "node-001", Timestamp: 1000, Pressure: protocol.Float(1005)}
	reading := &protocol.Reading{NodeID: "node-001", Timestamp: 1300, Pressure: protocol.Float(1015)}

	if candidates := b.BuildAlerts(reading, previous); len(candidates) != 0 {
		t.Errorf("Expected no alerts on rising pressure, got %v", candidates)
	}
}

func TestBuildAlerts_AnomalySeverityFollowsScore(t *testing.T) {
	b := NewBuilder()

	warning := &protocol.Reading{
		NodeID:       "node-001",
		Timestamp:    1000,
		AnomalyScore: 0.72,
		IsAnomaly:    true,
	}
	candidates := b.BuildAlerts(warning, nil)
	if len(candidates) != 1 || candidates[0].Severity != protocol.SeverityWarning {
		t.Errorf("Expected 1 warning ANOMALY alert, got %v", candidates)
	}
	if !strings.Contains(candidates[0].Message, "72%") {
		t.Errorf("Expected message citing score as percentage, got %q", candidates[0].Message)
	}

	critical := &protocol.Reading{
		NodeID:       "node-001",
		Timestamp:    1000,
		AnomalyScore: 0.91,
		IsAnomaly:    true,
	}
	candidates = b.BuildAlerts(critical, nil)
	if len(candidates) != 1 || candidates[0].Severity != protocol.SeverityCritical {
		t.Errorf("Expected 1 critical ANOMALY alert, got %v", candidates)
	}
}

func TestBuildAlerts_MultipleRulesFireIndependently(t *testing.T) {
	b := NewBuilder()
	reading := &protocol.Reading{
		NodeID:       "node-001",
		Timestamp:    1000,
		Temperature:  protocol.Float(40),
		RainLevel:    protocol.Float(12),
		WindSpeed:    protocol.Float(19),
		AnomalyScore: 0.9,
		IsAnomaly:    true,
	}

	candidates := b.BuildAlerts(reading, nil)

	if len(candidates) != 4 {
		t.Fatalf("Expected 4 alerts, got %d: %v", len(candidates), candidates)
	}

	seen := make(map[protocol.AlertType]bool)
	for _, c := range candidates {
		seen[c.Type] = true
	}
	for _, want := range []protocol.AlertType{
		protocol.AlertTypeTemp,
		protocol.AlertTypeRain,
		protocol.AlertTypeWind,
		protocol.AlertTypeAnomaly,
	} {
		if !seen[want] {
			t.Errorf("Expected a %s alert", want)
		}
	}
}

func TestBuildAlerts_QuietReading(t *testing.T) {
	b := NewBuilder()
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(21),
		Humidity:    protocol.Float(55),
		Pressure:    protocol.Float(1013),
	}

	if candidates := b.BuildAlerts(reading, nil); len(candidates) != 0 {
		t.Errorf("Expected no alerts, got %v", candidates)
	}
}

func TestBuildAlerts_Deterministic(t *testing.T) {
	b := NewBuilder()
	reading := &protocol.Reading{
		NodeID:      "node-001",
		Timestamp:   1000,
		Temperature: protocol.Float(39),
	}

	first := b.BuildAlerts(reading, nil)
	second := b.BuildAlerts(reading, nil)

	if len(first) != len(second) || first[0] != second[0] {
		t.Errorf("Builder not deterministic: %v vs %v", first, second)
	}
}

func TestPromote(t *testing.T) {
	candidate := protocol.AlertCandidate{
		Type:     protocol.AlertTypeWind,
		Severity: protocol.SeverityWarning,
		Message:  "Strong wind: 19.0 m/s",
	}

	alert := Promote(candidate, "node-007", 12345)

	if alert.NodeID != "node-007" || alert.Timestamp != 12345 {
		t.Errorf("Attribution not attached: %+v", alert)
	}
	if alert.Acknowledged {
		t.Error("New alerts start unacknowledged")
	}
}
