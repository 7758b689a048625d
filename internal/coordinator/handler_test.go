package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehealth/dictation-gateway/internal/audio"
	"github.com/scribehealth/dictation-gateway/internal/config"
	"github.com/scribehealth/dictation-gateway/internal/note"
	"github.com/scribehealth/dictation-gateway/internal/protocol"
	"github.com/scribehealth/dictation-gateway/internal/stt"
)

type fakeRecognizer struct {
	mu         sync.Mutex
	results    chan *stt.Result
	audioBytes int
	onStop     []*stt.Result
	closeOnce  sync.Once
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{results: make(chan *stt.Result, 16)}
}

func (f *fakeRecognizer) Start() error { return nil }

func (f *fakeRecognizer) SendAudio(data []byte) error {
	f.mu.Lock()
	f.audioBytes += len(data)
	f.mu.Unlock()
	return nil
}

func (f *fakeRecognizer) Results() <-chan *stt.Result { return f.results }

func (f *fakeRecognizer) Stop() error {
	for _, r := range f.onStop {
		f.results <- r
	}
	return nil
}

func (f *fakeRecognizer) Close() error {
	f.closeOnce.Do(func() { close(f.results) })
	return nil
}

func (f *fakeRecognizer) emit(r *stt.Result) { f.results <- r }

func (f *fakeRecognizer) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioBytes
}

type fakeDrafter struct {
	mu       sync.Mutex
	calls    []string
	sections note.Sections
	err      error
}

func (d *fakeDrafter) Draft(ctx context.Context, transcript string, contextEntries []string) (note.Sections, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, transcript)
	if d.err != nil {
		return note.Sections{}, d.err
	}
	return d.sections, nil
}

func (d *fakeDrafter) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func testCoordinatorConfig() *config.Config {
	return &config.Config{
		DefaultLanguage: "en-US",
		SampleRate:      16000,
		FinalDrainWait:  0,
		NoteGenTimeout:  5,
	}
}

func readServer(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "reading server message")
	msg, err := protocol.DecodeServer(data)
	require.NoError(t, err)
	return msg
}

func TestStreamingSession(t *testing.T) {
	rec := newFakeRecognizer()
	drafter := &fakeDrafter{sections: note.Sections{
		Subjective: "Chest pain for two days.",
		Assessment: "Possible angina.",
	}}
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return rec }, drafter)

	server := httptest.NewServer(h)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{
		Type:           protocol.TypeInit,
		Language:       "en-US",
		ContextEntries: []string{"allergy: penicillin"},
	}))
	require.Equal(t, protocol.TypeReady, readServer(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 8192)))
	require.Eventually(t, func() bool { return rec.received() == 8192 },
		2*time.Second, 5*time.Millisecond, "audio forwarded to recognizer")

	rec.emit(&stt.Result{Text: "patient reports", IsFinal: false})
	msg := readServer(t, conn)
	assert.Equal(t, protocol.TypeTranscription, msg.Type)
	assert.Equal(t, protocol.StatusInterim, msg.Status)
	assert.Equal(t, "patient reports", msg.Text)

	rec.emit(&stt.Result{Text: "patient reports chest pain", IsFinal: true})
	msg = readServer(t, conn)
	assert.Equal(t, protocol.TypeTranscription, msg.Type)
	assert.Equal(t, protocol.StatusFinal, msg.Status)
	assert.Equal(t, "patient reports chest pain", msg.FullTranscript)

	msg = readServer(t, conn)
	require.Equal(t, protocol.TypeSOAPUpdate, msg.Type)
	require.NotNil(t, msg.Sections)
	assert.Equal(t, "Chest pain for two days.", msg.Sections.Subjective)
	assert.NotEmpty(t, msg.ChangedSections)

	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeStop}))
	msg = readServer(t, conn)
	require.Equal(t, protocol.TypeFinal, msg.Type)
	assert.Equal(t, "patient reports chest pain", msg.Transcript)
	require.NotNil(t, msg.Sections)
	assert.Equal(t, "Possible angina.", msg.Sections.Assessment)

	// Interim draft plus the final draft.
	assert.GreaterOrEqual(t, drafter.callCount(), 2)
}

func TestStreamingSession_NoSpeechFinal(t *testing.T) {
	rec := newFakeRecognizer()
	drafter := &fakeDrafter{}
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return rec }, drafter)

	server := httptest.NewServer(h)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeInit}))
	require.Equal(t, protocol.TypeReady, readServer(t, conn).Type)

	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeStop}))
	msg := readServer(t, conn)
	require.Equal(t, protocol.TypeFinal, msg.Type)
	assert.Empty(t, msg.Transcript)
	// Nothing was dictated, so no draft calls.
	assert.Zero(t, drafter.callCount())
}

func TestStreamingSession_MessagesBeforeInitIgnored(t *testing.T) {
	rec := newFakeRecognizer()
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return rec }, &fakeDrafter{})

	server := httptest.NewServer(h)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Stop and garbage before init must not start a session.
	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeStop}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeInit}))
	require.Equal(t, protocol.TypeReady, readServer(t, conn).Type)
}

func postBatch(t *testing.T, h *Handler, req protocol.BatchRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/notes", bytes.NewReader(body))
	h.HandleBatch(w, r)
	return w
}

func TestHandleBatch_Text(t *testing.T) {
	drafter := &fakeDrafter{sections: note.Sections{Plan: "Follow up in two weeks."}}
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return newFakeRecognizer() }, drafter)

	w := postBatch(t, h, protocol.BatchRequest{Text: "follow up in two weeks", Language: "en-US"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp protocol.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "follow up in two weeks", resp.Transcript)
	assert.Equal(t, "Follow up in two weeks.", resp.Sections.Plan)
}

func TestHandleBatch_WAVClip(t *testing.T) {
	rec := newFakeRecognizer()
	rec.onStop = []*stt.Result{{Text: "patient reports dizziness", IsFinal: true}}
	drafter := &fakeDrafter{sections: note.Sections{Subjective: "Dizziness."}}
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return rec }, drafter)

	wav, err := audio.EncodeWAV(make([]int16, 16000), 16000)
	require.NoError(t, err)

	w := postBatch(t, h, protocol.BatchRequest{AudioWAV: wav, Language: "en-US"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp protocol.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "patient reports dizziness", resp.Transcript)
	assert.Equal(t, "Dizziness.", resp.Sections.Subjective)
}

func TestHandleBatch_RejectsEmptyAndAmbiguous(t *testing.T) {
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return newFakeRecognizer() }, &fakeDrafter{})

	w := postBatch(t, h, protocol.BatchRequest{Language: "en-US"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postBatch(t, h, protocol.BatchRequest{Text: "x", AudioWAV: []byte{1}, Language: "en-US"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleBatch_MalformedWAV(t *testing.T) {
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return newFakeRecognizer() }, &fakeDrafter{})

	w := postBatch(t, h, protocol.BatchRequest{AudioWAV: []byte("not a wav clip"), Language: "en-US"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var errResp protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "unreadable audio", errResp.Error)
}

func TestHandleBatch_DraftFailure(t *testing.T) {
	drafter := &fakeDrafter{err: context.DeadlineExceeded}
	h := NewHandler(testCoordinatorConfig(), func(language string) stt.Recognizer { return newFakeRecognizer() }, drafter)

	w := postBatch(t, h, protocol.BatchRequest{Text: "some dictation", Language: "en-US"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
