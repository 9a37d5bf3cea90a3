package http

import (
	"encoding/json"

	"github.com/GriffinCanCode/webview-mcp/internal/events"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/monitoring"
)

// ResultStore is where delivered results are kept until claimed.
type ResultStore interface {
	Put(id string, value json.RawMessage)
}

// ResultSink is the single ingestion path for results, shared by the HTTP
// callback and the store_execution_result host command.
type ResultSink struct {
	store   ResultStore
	metrics *monitoring.Metrics
	hub     *events.Hub
}

// NewResultSink creates a result sink
func NewResultSink(store ResultStore, metrics *monitoring.Metrics, hub *events.Hub) *ResultSink {
	return &ResultSink{store: store, metrics: metrics, hub: hub}
}

// Put stores value under id. A missing value is stored as null.
func (s *ResultSink) Put(id string, value json.RawMessage) {
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	s.store.Put(id, value)
	s.metrics.IncResultsStored()
	s.hub.Publish(events.Event{Type: events.ResultStored, ID: id})
}
