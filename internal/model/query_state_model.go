package model

import "time"

type ProcessingStage string

const (
	StageIdle        ProcessingStage = "idle"
	StageAnalyzing   ProcessingStage = "analyzing"
	StageResearching ProcessingStage = "researching"
	StageFetching    ProcessingStage = "fetching"
	StageAnnotating  ProcessingStage = "annotating"
	StageComplete    ProcessingStage = "complete"
	StageError       ProcessingStage = "error"
)

// QueryState is the single mutable record per session. Generation tags the
// pipeline run that currently owns the session.
type QueryState struct {
	SessionID       string             `json:"sessionId"`
	QueryID         string             `json:"queryId,omitempty"`
	CurrentQuery    string             `json:"currentQuery,omitempty"`
	ProcessingStage ProcessingStage    `json:"processingStage"`
	SearchResults   []ArtworkCandidate `json:"searchResults,omitempty"`
	SelectedWorks   []AnnotatedArtwork `json:"selectedWorks,omitempty"`
	Error           string             `json:"error,omitempty"`
	Generation      uint64             `json:"generation"`
	LastUpdated     time.Time          `json:"lastUpdated"`
}

func NewQueryState(sessionID string) QueryState {
	return QueryState{
		SessionID:       sessionID,
		ProcessingStage: StageIdle,
		LastUpdated:     time.Now(),
	}
}

// QueryStatePatch is a partial update. Nil fields are left untouched;
// ClearResults/ClearError wipe their slots explicitly.
type QueryStatePatch struct {
	QueryID         *string
	CurrentQuery    *string
	ProcessingStage *ProcessingStage
	SearchResults   []ArtworkCandidate
	SelectedWorks   []AnnotatedArtwork
	Error           *string
	ClearResults    bool
	ClearError      bool
}

// Apply merges the patch into s and returns the result.
func (p QueryStatePatch) Apply(s QueryState) QueryState {
	if p.ClearResults {
		s.SearchResults = nil
		s.SelectedWorks = nil
	}
	if p.ClearError {
		s.Error = ""
	}
	if p.QueryID != nil {
		s.QueryID = *p.QueryID
	}
	if p.CurrentQuery != nil {
		s.CurrentQuery = *p.CurrentQuery
	}
	if p.ProcessingStage != nil {
		s.ProcessingStage = *p.ProcessingStage
	}
	if p.SearchResults != nil {
		s.SearchResults = p.SearchResults
	}
	if p.SelectedWorks != nil {
		s.SelectedWorks = p.SelectedWorks
	}
	if p.Error != nil {
		s.Error = *p.Error
	}
	s.LastUpdated = time.Now()
	return s
}

func StagePatch(stage ProcessingStage) QueryStatePatch {
	return QueryStatePatch{ProcessingStage: &stage}
}
