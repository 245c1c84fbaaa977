package dto

import (
	"time"

	"art-curator-be/internal/model"
)

type SubmitQueryRequest struct {
	Query string `json:"query" validate:"required"`
}

type SubmitQueryResponse struct {
	Message string `json:"message"`
	QueryId string `json:"queryId"`
}

type StatusResponse struct {
	State       model.ProcessingStage `json:"state"`
	LastUpdated time.Time             `json:"lastUpdated"`
	Query       string                `json:"query,omitempty"`
	Error       string                `json:"error,omitempty"`
}

type ResultsResponse struct {
	Query    string                   `json:"query"`
	Artworks []model.AnnotatedArtwork `json:"artworks"`
}

type ResultsNotReadyResponse struct {
	Message string                `json:"message"`
	State   model.ProcessingStage `json:"state"`
	Error   string                `json:"error,omitempty"`
}

type IndexResponse struct {
	Message   string   `json:"message"`
	Endpoints []string `json:"endpoints"`
}

// PipelineRunMessage is the hand-off from submit to the pipeline consumer.
type PipelineRunMessage struct {
	SessionID  string `json:"session_id"`
	Query      string `json:"query"`
	Generation uint64 `json:"generation"`
}
