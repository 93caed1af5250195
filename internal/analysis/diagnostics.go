package analysis

import (
	"fmt"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
	"github.com/nkrishnan/sensornet-server/internal/stats"
)

// DiagnosisStatus is the overall verdict on a node's sensor stream.
type DiagnosisStatus string

const (
	DiagnosisInsufficientData DiagnosisStatus = "insufficient_data"
	DiagnosisHealthy          DiagnosisStatus = "healthy"
	DiagnosisAttention        DiagnosisStatus = "attention"
)

const (
	diagnoseMinReadings = 5

	// Over this many samples a near-zero variance means the sensor is
	// probably stuck, not stable.
	stuckSensorMinSamples = 10
	stuckSensorMaxStdDev  = 0.01

	elevatedAnomalyRate = 0.4
)

// NodeDiagnosis is the health assessment of one node's recent stream.
// AnomalyRate is a percentage of window readings at or above the anomaly
// threshold.
type NodeDiagnosis struct {
	NodeID       string                        `json:"node_id"`
	Status       DiagnosisStatus               `json:"status"`
	Issues       []string                      `json:"issues"`
	Stats        map[string]stats.FieldSummary `json:"stats"`
	AnomalyRate  float64                       `json:"anomaly_rate"`
	ReadingCount int                           `json:"reading_count"`
}

// Diagnose evaluates a node's window snapshot for signs of sensor
// malfunction. Fewer than five readings yield an insufficient_data verdict;
// that is a normal outcome for a freshly registered node, not an error.
func Diagnose(nodeID string, win []*protocol.Reading) *NodeDiagnosis {
	diagnosis := &NodeDiagnosis{
		NodeID:       nodeID,
		ReadingCount: len(win),
		Stats:        make(map[string]stats.FieldSummary),
	}

	if len(win) < diagnoseMinReadings {
		diagnosis.Status = DiagnosisInsufficientData
		return diagnosis
	}

	fields := []struct {
		name    string
		extract func(*protocol.Reading) *float64
		physMin float64
		physMax float64
		bounded bool
	}{
		{"temperature", temperatureOf, -40, 60, true},
		{"humidity", humidityOf, 0, 0, false},
		{"pressure", pressureOf, 870, 1085, true},
	}

	for _, field := range fields {
		values := collectField(win, field.extract)
		summary := stats.Summarize(values)
		diagnosis.Stats[field.name] = summary

		if summary.Count > stuckSensorMinSamples && summary.StdDev < stuckSensorMaxStdDev {
			diagnosis.Issues = append(diagnosis.Issues,
				fmt.Sprintf("possibly stuck %s sensor: no variance over %d samples", field.name, summary.Count))
		}
		if field.bounded && summary.Count > 0 && (summary.Min < field.physMin || summary.Max > field.physMax) {
			diagnosis.Issues = append(diagnosis.Issues,
				fmt.Sprintf("%s outside physical limits [%.0f, %.0f]: min=%.1f max=%.1f",
					field.name, field.physMin, field.physMax, summary.Min, summary.Max))
		}
	}

	anomalous := 0
	for _, r := range win {
		if r.AnomalyScore >= DefaultAnomalyThreshold {
			anomalous++
		}
	}
	rate := float64(anomalous) / float64(len(win))
	diagnosis.AnomalyRate = rate * 100
	if rate > elevatedAnomalyRate {
		diagnosis.Issues = append(diagnosis.Issues,
			fmt.Sprintf("elevated anomaly rate: %.0f%% of recent readings", rate*100))
	}

	if len(diagnosis.Issues) == 0 {
		diagnosis.Status = DiagnosisHealthy
	} else {
		diagnosis.Status = DiagnosisAttention
	}

	return diagnosis
}
