package constant

const (
	CuratorPersona = "You are an expert art historian specializing in biblical art. Always answer with the JSON structure you are asked for."

	AnnotationUnavailable = "Annotation could not be generated."

	ResearchFailedMessage = "Failed to find artworks for this query. Please try again."
	PipelineFailedMessage = "Something went wrong while curating artworks. Please try again."

	// ResearchPrompt receives the narrative and the number of works.
	ResearchPrompt = `
Find exactly %[2]d well-known artworks that depict the biblical narrative: "%[1]s".

Prefer paintings, frescoes and altarpieces held in public collections.

Format your answer as a JSON array of objects with these fields:
[
  {"title": "...", "artist": "...", "year": 1498, "period": "...", "location": "..."}
]

"year" must be a number. "location" is the museum or building where the work is kept.
Return only the JSON array.
`

	// AnnotationPrompt receives title, artist, year, period and the narrative.
	AnnotationPrompt = `
Write curatorial annotations for this artwork.

Title: %s
Artist: %s
Year: %d
Period: %s
Biblical narrative: %s

Respond with a single JSON object:
{
  "historicalContext": "2-3 sentences on when and why the work was made",
  "artisticStyle": "2-3 sentences on technique and style",
  "biblicalNarrative": "2-3 sentences on how the scene follows the scripture",
  "interestingDetails": ["five", "short", "observations", "about", "details"],
  "uniqueInterpretation": "what sets this depiction apart from others"
}
`
)
