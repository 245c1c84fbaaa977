package events

import "time"

const TypeArtworksCurated = "ARTWORKS_CURATED"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "ARTWORKS_CURATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewArtworksCurated announces a completed pipeline run.
func NewArtworksCurated(sessionID, queryID, query string, artworkCount int, placeholders int) BaseEvent {
	return BaseEvent{
		Type: TypeArtworksCurated,
		Data: map[string]interface{}{
			"session_id":        sessionID,
			"query_id":          queryID,
			"query":             query,
			"artwork_count":     artworkCount,
			"placeholder_count": placeholders,
		},
		OccurredAt: time.Now(),
	}
}
