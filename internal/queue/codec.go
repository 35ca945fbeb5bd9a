package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"
)

// PointMessage is one metric observation on the point subject
type PointMessage struct {
	MetricID string    `json:"metric_id"`
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
}

// Encode marshals v as JSON and compresses it with snappy
func Encode(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

// Decode reverses Encode. Uncompressed JSON objects are accepted as well, so plain
// producers such as the nats CLI can publish points.
func Decode(data []byte, v interface{}) error {
	if len(data) > 0 && data[0] == '{' && json.Unmarshal(data, v) == nil {
		return nil
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("failed to decompress message: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}

// EncodePoints encodes points into batch messages for subject
func EncodePoints(subject string, points []PointMessage) ([]BatchMessage, error) {
	messages := make([]BatchMessage, 0, len(points))
	for _, p := range points {
		data, err := Encode(p)
		if err != nil {
			return nil, err
		}
		messages = append(messages, BatchMessage{Subject: subject, Data: data})
	}
	return messages, nil
}
