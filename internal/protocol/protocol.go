// Package protocol defines the typed messages exchanged on a dictation
// session's transport. Control and text messages are self-describing JSON
// tagged by a type field; audio travels as untagged binary frames on the
// same connection.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/scribehealth/dictation-gateway/internal/note"
)

// MessageType tags every control/text message on the wire.
type MessageType string

const (
	// Client to server
	TypeInit MessageType = "init"
	TypeStop MessageType = "stop"

	// Server to client
	TypeReady         MessageType = "ready"
	TypeTranscription MessageType = "transcription"
	TypeSOAPUpdate    MessageType = "soap_update"
	TypeFinal         MessageType = "final"
	TypeError         MessageType = "error"
)

// Transcription status values.
const (
	StatusInterim = "interim"
	StatusFinal   = "final"
)

// ClientMessage is a control message sent from the client to the session
// coordinator.
type ClientMessage struct {
	Type           MessageType `json:"type"`
	Language       string      `json:"language,omitempty"`
	ContextEntries []string    `json:"contextEntries,omitempty"`
}

// ServerMessage is a control/text message sent from the session coordinator
// to the client. The populated fields depend on Type:
//
//	ready:         no payload
//	transcription: Status plus Text (interim) or FullTranscript (final)
//	soap_update:   Sections and advisory ChangedSections
//	final:         Transcript and Sections; always the last message
//	error:         Message, surfaced verbatim to the user
type ServerMessage struct {
	Type            MessageType    `json:"type"`
	Status          string         `json:"status,omitempty"`
	Text            string         `json:"text,omitempty"`
	FullTranscript  string         `json:"fullTranscript,omitempty"`
	Sections        *note.Sections `json:"sections,omitempty"`
	ChangedSections []string       `json:"changedSections,omitempty"`
	Transcript      string         `json:"transcript,omitempty"`
	Message         string         `json:"message,omitempty"`
}

// EncodeClient serializes a client control message.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("client message missing type")
	}
	return json.Marshal(msg)
}

// DecodeClient parses a client control message, validating the type tag.
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to parse client message: %w", err)
	}
	switch msg.Type {
	case TypeInit, TypeStop:
		return msg, nil
	default:
		return msg, fmt.Errorf("unknown client message type: %q", msg.Type)
	}
}

// EncodeServer serializes a server message.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("server message missing type")
	}
	return json.Marshal(msg)
}

// DecodeServer parses a server message, validating the type tag.
func DecodeServer(data []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to parse server message: %w", err)
	}
	switch msg.Type {
	case TypeReady, TypeTranscription, TypeSOAPUpdate, TypeFinal, TypeError:
		return msg, nil
	default:
		return msg, fmt.Errorf("unknown server message type: %q", msg.Type)
	}
}

// BatchRequest is the one-shot, non-streaming submission: free text or a
// WAV-encoded clip plus the language tag and context snapshot carried at
// init time on the streaming path.
type BatchRequest struct {
	Text           string   `json:"text,omitempty"`
	AudioWAV       []byte   `json:"audioWav,omitempty"` // base64 on the wire
	Language       string   `json:"language"`
	ContextEntries []string `json:"contextEntries,omitempty"`
}

// Validate checks that the request carries exactly one payload kind.
func (r BatchRequest) Validate() error {
	if r.Text == "" && len(r.AudioWAV) == 0 {
		return fmt.Errorf("either text or audioWav must be provided")
	}
	if r.Text != "" && len(r.AudioWAV) > 0 {
		return fmt.Errorf("text and audioWav are mutually exclusive")
	}
	return nil
}

// BatchResponse is structurally identical to the final streaming message's
// payload.
type BatchResponse struct {
	Transcript string        `json:"transcript"`
	Sections   note.Sections `json:"sections"`
}

// ErrorResponse is the batch endpoint's error payload.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
