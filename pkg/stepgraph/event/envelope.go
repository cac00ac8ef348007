package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

// SchemaVersion is the envelope format version.
const SchemaVersion = 1

// Source identifies stepgraph as the producer.
const Source = "stepgraph"

// Envelope is the wire form of a run event.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion int             `json:"schema_version"`
	Payload       stepgraph.Event `json:"payload"`
}

// Wrap builds an envelope for e with a fresh ID.
func Wrap(e stepgraph.Event) Envelope {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Envelope{
		ID:            uuid.New().String(),
		Type:          string(e.Kind),
		Source:        Source,
		CorrelationID: e.RunID,
		Timestamp:     ts,
		SchemaVersion: SchemaVersion,
		Payload:       e,
	}
}
