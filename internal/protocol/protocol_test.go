package protocol

import (
	"testing"

	"github.com/scribehealth/dictation-gateway/internal/note"
)

func TestClientMessage_RoundTrip(t *testing.T) {
	msg := ClientMessage{
		Type:           TypeInit,
		Language:       "en-US",
		ContextEntries: []string{"symptom: headache for two days", "medication: ibuprofen"},
	}

	data, err := EncodeClient(msg)
	if err != nil {
		t.Fatalf("EncodeClient failed: %v", err)
	}

	decoded, err := DecodeClient(data)
	if err != nil {
		t.Fatalf("DecodeClient failed: %v", err)
	}
	if decoded.Type != TypeInit {
		t.Errorf("expected type init, got %s", decoded.Type)
	}
	if decoded.Language != "en-US" {
		t.Errorf("expected language en-US, got %s", decoded.Language)
	}
	if len(decoded.ContextEntries) != 2 {
		t.Errorf("expected 2 context entries, got %d", len(decoded.ContextEntries))
	}
}

func TestDecodeClient_UnknownType(t *testing.T) {
	if _, err := DecodeClient([]byte(`{"type":"ready"}`)); err == nil {
		t.Error("expected error decoding a server-only type as client message")
	}
	if _, err := DecodeClient([]byte(`{"type":"bogus"}`)); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := DecodeClient([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestServerMessage_SOAPUpdate(t *testing.T) {
	sections := &note.Sections{Subjective: "Headache x2 days"}
	data, err := EncodeServer(ServerMessage{
		Type:            TypeSOAPUpdate,
		Sections:        sections,
		ChangedSections: []string{"subjective"},
	})
	if err != nil {
		t.Fatalf("EncodeServer failed: %v", err)
	}

	decoded, err := DecodeServer(data)
	if err != nil {
		t.Fatalf("DecodeServer failed: %v", err)
	}
	if decoded.Type != TypeSOAPUpdate {
		t.Errorf("expected soap_update, got %s", decoded.Type)
	}
	if decoded.Sections == nil || decoded.Sections.Subjective != "Headache x2 days" {
		t.Errorf("sections not preserved: %+v", decoded.Sections)
	}
	if len(decoded.ChangedSections) != 1 || decoded.ChangedSections[0] != "subjective" {
		t.Errorf("changed sections not preserved: %v", decoded.ChangedSections)
	}
}

func TestDecodeServer_UnknownType(t *testing.T) {
	if _, err := DecodeServer([]byte(`{"type":"init"}`)); err == nil {
		t.Error("expected error decoding a client-only type as server message")
	}
}

func TestBatchRequest_Validate(t *testing.T) {
	cases := []struct {
		name    string
		req     BatchRequest
		wantErr bool
	}{
		{"text only", BatchRequest{Text: "dictation", Language: "en-US"}, false},
		{"audio only", BatchRequest{AudioWAV: []byte{1, 2, 3}, Language: "en-US"}, false},
		{"neither", BatchRequest{Language: "en-US"}, true},
		{"both", BatchRequest{Text: "x", AudioWAV: []byte{1}, Language: "en-US"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
