package stt

// Result is a single transcription result from the recognition service.
type Result struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates if this is a final transcription (true) or interim (false)
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// StartTime is the start time of the utterance in seconds
	StartTime float64

	// Duration is the duration of the utterance in seconds
	Duration float64
}

// Recognizer is the interface for streaming speech-to-text clients.
// One recognizer serves one dictation session.
type Recognizer interface {
	// Start begins a new transcription session
	Start() error

	// SendAudio sends a PCM16 audio chunk to the recognition service
	SendAudio(audioData []byte) error

	// Results returns the channel transcription results arrive on.
	// The channel is closed after Close.
	Results() <-chan *Result

	// Stop ends the transcription session, flushing pending audio
	Stop() error

	// Close closes the client and cleans up resources
	Close() error
}

// Factory creates a recognizer for a session's language tag.
type Factory func(language string) Recognizer
