package note

// TranscriptState tracks the confirmed transcript plus a provisional
// interim suffix. Only final transcription messages replace the confirmed
// text; interim text is fully discardable and never persisted.
type TranscriptState struct {
	full    string
	interim string
}

// ApplyFinal replaces the confirmed transcript wholesale and clears any
// pending interim suffix.
func (t *TranscriptState) ApplyFinal(fullTranscript string) {
	t.full = fullTranscript
	t.interim = ""
}

// ApplyInterim updates only the provisional suffix.
func (t *TranscriptState) ApplyInterim(text string) {
	t.interim = text
}

// Full returns the last confirmed complete transcript.
func (t *TranscriptState) Full() string {
	return t.full
}

// Interim returns the pending provisional suffix.
func (t *TranscriptState) Interim() string {
	return t.interim
}

// Display renders the transcript for the UI: the confirmed text followed by
// the interim suffix, separated by a single space.
func (t *TranscriptState) Display() string {
	if t.interim == "" {
		return t.full
	}
	return t.full + " " + t.interim
}

// Reset clears both confirmed and interim text.
func (t *TranscriptState) Reset() {
	t.full = ""
	t.interim = ""
}
