package dto

import "art-curator-be/internal/model"

const (
	EnvelopeState   = "state"
	EnvelopeResults = "results"
	EnvelopeError   = "error"

	InboundQuery = "query"
)

// Envelope is every server to client push message.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type StatePayload struct {
	ProcessingStage model.ProcessingStage `json:"processingStage"`
	Query           string                `json:"query,omitempty"`
	Error           string                `json:"error,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// InboundMessage is what a client may send over the socket.
type InboundMessage struct {
	Type  string `json:"type"`
	Query string `json:"query"`
}

func StateEnvelope(s model.QueryState) Envelope {
	return Envelope{Type: EnvelopeState, Data: StatePayload{
		ProcessingStage: s.ProcessingStage,
		Query:           s.CurrentQuery,
		Error:           s.Error,
	}}
}

func ResultsEnvelope(s model.QueryState) Envelope {
	return Envelope{Type: EnvelopeResults, Data: ResultsResponse{
		Query:    s.CurrentQuery,
		Artworks: s.SelectedWorks,
	}}
}

func ErrorEnvelope(message string, err error) Envelope {
	payload := ErrorPayload{Message: message}
	if err != nil {
		payload.Error = err.Error()
	}
	return Envelope{Type: EnvelopeError, Data: payload}
}

// SnapshotEnvelopes is what an observer needs to catch up with s: the state,
// plus the results when the run has completed.
func SnapshotEnvelopes(s model.QueryState) []Envelope {
	envs := []Envelope{StateEnvelope(s)}
	if s.ProcessingStage == model.StageComplete {
		envs = append(envs, ResultsEnvelope(s))
	}
	return envs
}
