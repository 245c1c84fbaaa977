package model

// ArtworkCandidate is what the research stage produces, before an image or
// annotations are attached.
type ArtworkCandidate struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Artist         string   `json:"artist"`
	Year           int      `json:"year"`
	Period         string   `json:"period"`
	Location       string   `json:"location"`
	RelevanceScore *float64 `json:"relevanceScore,omitempty"`
}

// ArtworkWithImage always carries a renderable ImageURL; a placeholder is
// substituted when resolution fails.
type ArtworkWithImage struct {
	ArtworkCandidate
	ImageURL string `json:"imageUrl"`
}

type Annotations struct {
	HistoricalContext    string   `json:"historicalContext"`
	ArtisticStyle        string   `json:"artisticStyle"`
	BiblicalNarrative    string   `json:"biblicalNarrative"`
	InterestingDetails   []string `json:"interestingDetails"`
	UniqueInterpretation string   `json:"uniqueInterpretation"`
}

type AnnotatedArtwork struct {
	ArtworkWithImage
	Annotations Annotations `json:"annotations"`
}
