package amqp

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Routing keys on the carsales exchange.
const (
	RoutingDatasetLoaded       = "dataset.loaded"
	RoutingAggregatesRefreshed = "aggregates.refreshed"
)

// NewRunID returns a fresh identifier for a load or aggregation run.
func NewRunID() string {
	return uuid.NewString()
}

// DatasetLoadedMessage announces that the relational store holds a new
// copy of the dataset.
type DatasetLoadedMessage struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Driver    string    `json:"driver"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetLoadedMessage stamps a message for a finished load.
func NewDatasetLoadedMessage(runID, source, driver string, rows int) *DatasetLoadedMessage {
	return &DatasetLoadedMessage{
		RunID:     runID,
		Source:    source,
		Driver:    driver,
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	}
}

// AggregatesRefreshedMessage announces a new aggregate bundle.
type AggregatesRefreshedMessage struct {
	RunID       string    `json:"run_id"`
	TriggeredBy string    `json:"triggered_by,omitempty"`
	BundlePath  string    `json:"bundle_path"`
	Tables      int       `json:"tables"`
	Rows        int       `json:"rows"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewAggregatesRefreshedMessage stamps a message for a finished aggregation.
func NewAggregatesRefreshedMessage(runID, triggeredBy, bundlePath string, tables, rows int) *AggregatesRefreshedMessage {
	return &AggregatesRefreshedMessage{
		RunID:       runID,
		TriggeredBy: triggeredBy,
		BundlePath:  bundlePath,
		Tables:      tables,
		Rows:        rows,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetLoadedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToJSON converts the message to JSON bytes
func (m *AggregatesRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetLoadedMessageFromJSON decodes a dataset.loaded body.
func DatasetLoadedMessageFromJSON(data []byte) (*DatasetLoadedMessage, error) {
	var msg DatasetLoadedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, fmt.Errorf("dataset.loaded message without run_id")
	}
	return &msg, nil
}

// AggregatesRefreshedMessageFromJSON decodes an aggregates.refreshed body.
func AggregatesRefreshedMessageFromJSON(data []byte) (*AggregatesRefreshedMessage, error) {
	var msg AggregatesRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, fmt.Errorf("aggregates.refreshed message without run_id")
	}
	return &msg, nil
}
