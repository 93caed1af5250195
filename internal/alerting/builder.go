package alerting

import (
	"fmt"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

// Builder derives alert candidates from a single reading and, optionally, its
// predecessor. It is stateless and deterministic: the same inputs always
// yield the same candidates, so re-deriving from a replayed reading is safe.
// Deduplication of repeated candidates is the Deduper's job.
type Builder struct{}

// NewBuilder creates a new alert builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildAlerts evaluates every alert rule independently; a reading can trigger
// zero to many candidates.
func (b *Builder) BuildAlerts(reading, previous *protocol.Reading) []protocol.AlertCandidate {
	var candidates []protocol.AlertCandidate

	if t := reading.Temperature; t != nil {
		// Only the higher temperature tier fires
		if *t >= 38.5 {
			candidates = append(candidates, protocol.AlertCandidate{
				Type:     protocol.AlertTypeTemp,
				Severity: protocol.SeverityCritical,
				Message:  fmt.Sprintf("Critical temperature: %.1f°C", *t),
			})
		} else if *t >= 36.5 {
			candidates = append(candidates, protocol.AlertCandidate{
				Type:     protocol.AlertTypeTemp,
				Severity: protocol.SeverityWarning,
				Message:  fmt.Sprintf("High temperature: %.1f°C", *t),
			})
		}
	}

	if r := reading.RainLevel; r != nil && *r >= 10 {
		candidates = append(candidates, protocol.AlertCandidate{
			Type:     protocol.AlertTypeRain,
			Severity: protocol.SeverityCritical,
			Message:  fmt.Sprintf("Intense rainfall: %.1f mm/h", *r),
		})
	}

	if w := reading.WindSpeed; w != nil && *w >= 18 {
		candidates = append(candidates, protocol.AlertCandidate{
			Type:     protocol.AlertTypeWind,
			Severity: protocol.SeverityWarning,
			Message:  fmt.Sprintf("Strong wind: %.1f m/s", *w),
		})
	}

	if previous != nil && reading.Pressure != nil && previous.Pressure != nil {
		if drop := *previous.Pressure - *reading.Pressure; drop >= 6 {
			candidates = append(candidates, protocol.AlertCandidate{
				Type:     protocol.AlertTypePressure,
				Severity: protocol.SeverityWarning,
				Message:  fmt.Sprintf("Rapid pressure drop: %.1f hPa", drop),
			})
		}
	}

	if reading.IsAnomaly {
		severity := protocol.SeverityWarning
		if reading.AnomalyScore > 0.85 {
			severity = protocol.SeverityCritical
		}
		candidates = append(candidates, protocol.AlertCandidate{
			Type:     protocol.AlertTypeAnomaly,
			Severity: severity,
			Message:  fmt.Sprintf("Anomalous conditions detected (score %.0f%%)", reading.AnomalyScore*100),
		})
	}

	return candidates
}

// Promote attaches node and time attribution to a candidate.
func Promote(candidate protocol.AlertCandidate, nodeID string, timestamp int64) protocol.Alert {
	return protocol.Alert{
		NodeID:    nodeID,
		Timestamp: timestamp,
		Type:      candidate.Type,
		Severity:  candidate.Severity,
		Message:   candidate.Message,
	}
}
