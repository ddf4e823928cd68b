package intake

// PreviewLimit is the number of characters shown before truncation.
const PreviewLimit = 1000

// Source tells Preview which marker to append.
type Source int

const (
	SourceTyped Source = iota
	SourceFile
)

const (
	fileMarker  = "\n\n... [Full transcription loaded, showing first 1000 characters] ..."
	typedMarker = "\n\n... [Full text, showing first 1000 characters] ..."
)

// Preview returns text cut to PreviewLimit characters followed by the marker
// for src. Shorter text is returned unchanged. The marker is display only and
// never part of the text sent to the backend.
func Preview(text string, src Source) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	marker := typedMarker
	if src == SourceFile {
		marker = fileMarker
	}
	return string(runes[:PreviewLimit]) + marker
}
