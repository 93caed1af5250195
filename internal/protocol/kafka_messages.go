package protocol

import (
	"encoding/json"
	"time"
)

// ReadingMessage is the internal Kafka envelope for a scored reading.
type ReadingMessage struct {
	EventID    string          `json:"event_id"`
	ReceivedAt time.Time       `json:"received_at"`
	Reading    Reading         `json:"reading"`
	Analysis   *AnalysisResult `json:"analysis,omitempty"`
}

// AlertMessage is the Kafka envelope for a deduplicated alert.
type AlertMessage struct {
	EventID string    `json:"event_id"`
	Alert   Alert     `json:"alert"`
	SentAt  time.Time `json:"sent_at"`
}

// ForecastMessage carries a full forecast cycle for one node. Predictions
// always cover every requested horizon; they are regenerated wholesale.
type ForecastMessage struct {
	NodeID      string       `json:"node_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Predictions []Prediction `json:"predictions"`
}

// EncodeReadingMessage encodes a ReadingMessage to JSON
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to ReadingMessage
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertMessage encodes an AlertMessage to JSON
func EncodeAlertMessage(msg *AlertMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeAlertMessage decodes JSON to AlertMessage
func DecodeAlertMessage(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeForecastMessage encodes a ForecastMessage to JSON
func EncodeForecastMessage(msg *ForecastMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeForecastMessage decodes JSON to ForecastMessage
func DecodeForecastMessage(data []byte) (*ForecastMessage, error) {
	var msg ForecastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
