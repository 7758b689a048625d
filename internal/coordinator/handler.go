// Package coordinator is the server side of a dictation session: it owns
// the WebSocket connection, feeds audio frames to the recognizer, and turns
// transcription results into incremental note updates.
package coordinator

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scribehealth/dictation-gateway/internal/config"
	"github.com/scribehealth/dictation-gateway/internal/note"
	"github.com/scribehealth/dictation-gateway/internal/notegen"
	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/protocol"
	"github.com/scribehealth/dictation-gateway/internal/stt"
)

// Handler serves the streaming dictation endpoint.
type Handler struct {
	cfg      *config.Config
	factory  stt.Factory
	drafter  notegen.Drafter
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates the streaming session handler. Connection buffers are
// sized to one PCM16 audio frame.
func NewHandler(cfg *config.Config, factory stt.Factory, drafter notegen.Drafter) *Handler {
	frameBytes := cfg.FrameSamples * 2
	if frameBytes <= 0 {
		frameBytes = 8192
	}
	return &Handler{
		cfg:     cfg,
		factory: factory,
		drafter: drafter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  frameBytes,
			WriteBufferSize: frameBytes,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: observability.WithComponent("coordinator"),
	}
}

// ServeHTTP upgrades the connection and runs the session to completion.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sessionID := observability.NewCorrelationID()
	sess := &streamSession{
		handler: h,
		conn:    conn,
		id:      sessionID,
		logger:  observability.WithSession(sessionID, sessionID),
		metrics: observability.NewSessionMetrics(sessionID),
		regenCh: make(chan struct{}, 1),
	}
	sess.run()
}

// streamSession is one live dictation session.
type streamSession struct {
	handler *Handler
	conn    *websocket.Conn
	id      string
	logger  zerolog.Logger
	metrics *observability.SessionMetrics

	writeMu sync.Mutex

	recognizer stt.Recognizer

	// regenCh coalesces note regeneration requests; at most one is pending.
	regenCh chan struct{}

	mu             sync.Mutex
	finals         []string
	contextEntries []string
	lastSent       note.Sections
	hasSent        bool
}

func (s *streamSession) run() {
	defer s.conn.Close()
	s.metrics.RecordSessionStart("streaming")
	defer s.metrics.RecordSessionEnd()
	s.logger.Info().Msg("Session opened")

	init, ok := s.awaitInit()
	if !ok {
		return
	}

	language := init.Language
	if language == "" {
		language = s.handler.cfg.DefaultLanguage
	}
	s.mu.Lock()
	s.contextEntries = init.ContextEntries
	s.mu.Unlock()

	rec := s.handler.factory(language)
	if err := rec.Start(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to start recognizer")
		s.metrics.RecordError("recognizer_start", "coordinator")
		s.writeMessage(protocol.ServerMessage{
			Type:    protocol.TypeError,
			Message: "transcription service unavailable",
		})
		return
	}
	s.recognizer = rec
	defer rec.Close()

	transcriptDone := make(chan struct{})
	go s.transcriptLoop(transcriptDone)

	regenDone := make(chan struct{})
	regenCtx, cancelRegen := context.WithCancel(context.Background())
	defer cancelRegen()
	go s.noteLoop(regenCtx, regenDone)

	if !s.writeMessage(protocol.ServerMessage{Type: protocol.TypeReady}) {
		return
	}

	stopped := s.readLoop()
	if !stopped {
		// Connection died without a stop; nothing left to finalize.
		rec.Close()
		<-transcriptDone
		cancelRegen()
		<-regenDone
		s.logger.Info().Msg("Session closed without stop")
		return
	}

	s.finalize(transcriptDone, regenDone, cancelRegen)
}

// awaitInit reads messages until the init control message arrives.
func (s *streamSession) awaitInit() (protocol.ClientMessage, bool) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return protocol.ClientMessage{}, false
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg, err := protocol.DecodeClient(data)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Malformed message before init")
			continue
		}
		if msg.Type != protocol.TypeInit {
			s.logger.Warn().Str("type", string(msg.Type)).Msg("Unexpected message before init")
			continue
		}
		return msg, true
	}
}

// readLoop pumps the connection until stop or disconnect. It returns true
// when the client requested a clean stop.
func (s *streamSession) readLoop() bool {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Connection lost")
			return false
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.metrics.RecordAudioBytes("received", int64(len(data)))
			if err := s.recognizer.SendAudio(data); err != nil {
				s.logger.Error().Err(err).Msg("Failed to forward audio")
				s.metrics.RecordError("audio_forward", "coordinator")
				s.writeMessage(protocol.ServerMessage{
					Type:    protocol.TypeError,
					Message: "transcription service unavailable",
				})
				return false
			}

		case websocket.TextMessage:
			msg, err := protocol.DecodeClient(data)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Malformed client message")
				continue
			}
			if msg.Type == protocol.TypeStop {
				return true
			}
		}
	}
}

// finalize flushes the recognizer, drafts the definitive note, and sends
// the single final message.
func (s *streamSession) finalize(transcriptDone, regenDone chan struct{}, cancelRegen context.CancelFunc) {
	drainWait := s.handler.cfg.FinalDrainWaitDuration()

	if err := s.recognizer.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Recognizer stop failed")
	}
	select {
	case <-transcriptDone:
	case <-time.After(drainWait):
	}
	s.recognizer.Close()
	<-transcriptDone
	cancelRegen()
	<-regenDone

	transcript := s.fullTranscript()
	sections := s.snapshotSections()

	if strings.TrimSpace(transcript) != "" {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(s.handler.cfg.NoteGenTimeout)*time.Second)
		defer cancel()

		s.metrics.RecordNoteGenStart()
		drafted, err := s.handler.drafter.Draft(ctx, transcript, s.snapshotContext())
		s.metrics.RecordNoteGenEnd(err == nil)
		if err != nil {
			s.logger.Error().Err(err).Msg("Final note draft failed, sending last good sections")
		} else {
			sections = drafted
		}
	}

	s.writeMessage(protocol.ServerMessage{
		Type:       protocol.TypeFinal,
		Transcript: transcript,
		Sections:   &sections,
	})
	s.logger.Info().Msg("Session finalized")
}

// transcriptLoop relays recognition results to the client and schedules
// note regeneration after every final segment.
func (s *streamSession) transcriptLoop(done chan struct{}) {
	defer close(done)

	for res := range s.recognizer.Results() {
		if res.Text == "" {
			continue
		}
		if !res.IsFinal {
			s.writeMessage(protocol.ServerMessage{
				Type:   protocol.TypeTranscription,
				Status: protocol.StatusInterim,
				Text:   res.Text,
			})
			continue
		}

		s.mu.Lock()
		s.finals = append(s.finals, res.Text)
		full := strings.Join(s.finals, " ")
		s.mu.Unlock()

		s.writeMessage(protocol.ServerMessage{
			Type:           protocol.TypeTranscription,
			Status:         protocol.StatusFinal,
			FullTranscript: full,
		})

		select {
		case s.regenCh <- struct{}{}:
		default:
		}
	}
}

// noteLoop serializes note drafting: one in-flight generation, with at most
// one more queued behind it.
func (s *streamSession) noteLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.regenCh:
		}

		transcript := s.fullTranscript()
		if strings.TrimSpace(transcript) == "" {
			continue
		}

		genCtx, cancel := context.WithTimeout(ctx,
			time.Duration(s.handler.cfg.NoteGenTimeout)*time.Second)
		s.metrics.RecordNoteGenStart()
		sections, err := s.handler.drafter.Draft(genCtx, transcript, s.snapshotContext())
		s.metrics.RecordNoteGenEnd(err == nil)
		cancel()
		if err != nil {
			// Interim drafts are best effort; the next final retriggers.
			s.logger.Warn().Err(err).Msg("Interim note draft failed")
			continue
		}

		changed := s.diffAndStore(sections)
		if len(changed) == 0 {
			continue
		}
		s.writeMessage(protocol.ServerMessage{
			Type:            protocol.TypeSOAPUpdate,
			Sections:        &sections,
			ChangedSections: changed,
		})
	}
}

// diffAndStore compares freshly drafted sections against the last sent set
// and records the new set. Returns the names of sections that changed.
func (s *streamSession) diffAndStore(sections note.Sections) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for _, sec := range note.AllSections() {
		if !s.hasSent || sections.Get(sec) != s.lastSent.Get(sec) {
			changed = append(changed, string(sec))
		}
	}
	s.lastSent = sections
	s.hasSent = true
	return changed
}

func (s *streamSession) fullTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.finals, " ")
}

func (s *streamSession) snapshotContext() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextEntries
}

func (s *streamSession) snapshotSections() note.Sections {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent
}

// writeMessage sends a server message, serializing concurrent writers.
// It returns false when the connection is gone.
func (s *streamSession) writeMessage(msg protocol.ServerMessage) bool {
	data, err := protocol.EncodeServer(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode server message")
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug().Err(err).Msg("Write failed")
		return false
	}
	return true
}
