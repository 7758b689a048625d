// Package session drives one dictation attempt at a time through the
// streaming protocol: dialing, capture, incremental transcript and note
// state, the stop/finalize handshake, and the batch fallback when the
// streaming path is unavailable.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribehealth/dictation-gateway/internal/audio"
	"github.com/scribehealth/dictation-gateway/internal/note"
	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/protocol"
	"github.com/scribehealth/dictation-gateway/internal/transport"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingReady
	StateStreaming
	StateStopping
	StateFinalizing
	StateFallback
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateFinalizing:
		return "finalizing"
	case StateFallback:
		return "fallback"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Update is a snapshot pushed to the consumer whenever the session's
// observable state changes. Result is non-nil exactly once, on the update
// that completes the attempt.
type Update struct {
	State           State
	Transcript      string
	Sections        note.Sections
	ChangedSections []note.Section
	Notice          string
	Result          *note.Result
}

// Config wires a session's collaborators and tuning.
type Config struct {
	Dialer         transport.Dialer
	Batch          transport.BatchSubmitter
	Source         audio.Source
	Language       string
	ContextEntries []string

	SampleRate   int
	FrameSamples int

	// FinalizeTimeout bounds the wait for the final message after stop.
	FinalizeTimeout time.Duration

	// Fallback is the shared cool-down controller. Required.
	Fallback *FallbackController
}

// Session is reusable: after an attempt reaches complete or error, Start
// begins a fresh one. All methods are safe for concurrent use.
type Session struct {
	cfg     Config
	id      string
	logger  zerolog.Logger
	metrics *observability.SessionMetrics
	updates chan Update

	mu          sync.Mutex
	state       State
	doc         *note.Document
	ts          note.TranscriptState
	captured    []float32
	transport   transport.Transport
	stopCh      chan struct{}
	stopped     bool
	finishing   bool
	captureDone chan struct{}
	capturing   bool
	sendFailed  bool
	result      *note.Result
}

// New creates a session in the idle state.
func New(cfg Config) *Session {
	id := observability.NewCorrelationID()
	return &Session{
		cfg:     cfg,
		id:      id,
		logger:  observability.WithSession(id, id),
		metrics: observability.NewSessionMetrics(id),
		updates: make(chan Update, 64),
		state:   StateIdle,
		doc:     note.NewDocument(),
	}
}

// Updates returns the channel session snapshots arrive on. The channel
// stays open across attempts; the consumer must keep draining it.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the outcome of the last completed attempt, if any.
func (s *Session) Result() *note.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Start begins a new dictation attempt. It fails if an attempt is already
// in flight. When the cool-down window is open the attempt skips straight
// to batch capture mode instead of dialing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateComplete, StateError:
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("session already active in state %s", st)
	}

	s.doc = note.NewDocument()
	s.ts.Reset()
	s.captured = nil
	s.transport = nil
	s.stopCh = make(chan struct{})
	s.stopped = false
	s.finishing = false
	s.captureDone = nil
	s.capturing = false
	s.sendFailed = false
	s.result = nil

	if !s.cfg.Fallback.StreamingAllowed() {
		s.state = StateFallback
		s.mu.Unlock()
		s.metrics.RecordSessionStart("batch")
		s.logger.Info().Dur("remaining", s.cfg.Fallback.Remaining()).
			Msg("Streaming cool-down active, capturing for batch submission")
		return s.startBatchCapture("streaming temporarily unavailable, recording for batch submission")
	}

	s.state = StateConnecting
	s.mu.Unlock()
	s.emit(Update{})

	tr, err := s.cfg.Dialer.Dial(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to dial streaming endpoint")
		s.cfg.Fallback.Trip()
		s.metrics.RecordFallback("dial")
		s.setState(StateFallback)
		return s.startBatchCapture("could not reach the streaming service, recording for batch submission")
	}

	s.mu.Lock()
	s.transport = tr
	s.state = StateAwaitingReady
	s.mu.Unlock()

	err = tr.SendControl(protocol.ClientMessage{
		Type:           protocol.TypeInit,
		Language:       s.cfg.Language,
		ContextEntries: s.cfg.ContextEntries,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send init")
		tr.Close()
		s.cfg.Fallback.Trip()
		s.metrics.RecordFallback("init")
		s.setState(StateFallback)
		return s.startBatchCapture("could not reach the streaming service, recording for batch submission")
	}

	s.metrics.RecordSessionStart("streaming")
	s.emit(Update{})
	go s.run()
	return nil
}

// Stop ends the active attempt. The capture device is released immediately
// and unconditionally; the attempt then moves into its finalize phase. Stop
// is a no-op in idle, complete, and error states.
func (s *Session) Stop() {
	s.mu.Lock()
	st := s.state
	switch st {
	case StateIdle, StateComplete, StateError:
		s.mu.Unlock()
		return
	}
	alreadyStopped := s.stopped
	s.stopped = true
	s.mu.Unlock()

	s.stopCapture()
	if alreadyStopped {
		return
	}

	if st == StateFallback {
		s.kickFinishBatch()
		return
	}
	close(s.stopCh)
}

// kickFinishBatch submits the batch capture at most once per attempt. Both
// Stop and the fallback entry path may race to it when a stop lands while
// the dial is still in flight.
func (s *Session) kickFinishBatch() {
	s.stopCapture()

	s.mu.Lock()
	if s.finishing {
		s.mu.Unlock()
		return
	}
	s.finishing = true
	s.mu.Unlock()

	go s.finishBatch()
}

// run is the attempt's event loop. It is the single writer of terminal
// transitions, so the finalize timer and a late final message cannot both
// win.
func (s *Session) run() {
	s.mu.Lock()
	tr := s.transport
	stopC := s.stopCh
	s.mu.Unlock()

	var finalizeC <-chan time.Time

	for {
		select {
		case msg, ok := <-tr.Receive():
			if !ok {
				s.handleTransportFailure(tr.Err())
				return
			}
			if s.handleMessage(msg) {
				tr.Close()
				return
			}

		case <-stopC:
			stopC = nil
			s.setState(StateStopping)
			s.waitCaptureDrained()
			if err := tr.SendControl(protocol.ClientMessage{Type: protocol.TypeStop}); err != nil {
				s.handleTransportFailure(err)
				return
			}
			s.setState(StateFinalizing)
			s.emit(Update{})
			timer := time.NewTimer(s.cfg.FinalizeTimeout)
			defer timer.Stop()
			finalizeC = timer.C

		case <-finalizeC:
			s.metrics.RecordFinalizeTimeout()
			s.logger.Warn().Dur("timeout", s.cfg.FinalizeTimeout).
				Msg("No final message before timeout, using last known state")
			tr.Close()
			s.complete("the service did not confirm the note in time; showing the latest draft")
			return
		}
	}
}

// handleMessage applies one server message. It returns true when the
// attempt reached a terminal state.
func (s *Session) handleMessage(msg protocol.ServerMessage) bool {
	switch msg.Type {
	case protocol.TypeReady:
		s.mu.Lock()
		awaiting := s.state == StateAwaitingReady
		if awaiting {
			s.state = StateStreaming
		}
		s.mu.Unlock()
		if !awaiting {
			// Duplicate ready. Capture is already running.
			return false
		}
		if err := s.startCapture(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to open capture device")
			s.fail("could not open the audio capture device")
			return true
		}
		s.emit(Update{})
		return false

	case protocol.TypeTranscription:
		s.mu.Lock()
		if msg.Status == protocol.StatusFinal {
			s.ts.ApplyFinal(msg.FullTranscript)
		} else {
			s.ts.ApplyInterim(msg.Text)
		}
		s.mu.Unlock()
		s.emit(Update{})
		return false

	case protocol.TypeSOAPUpdate:
		if msg.Sections == nil {
			return false
		}
		s.mu.Lock()
		changed := s.doc.Apply(*msg.Sections)
		s.mu.Unlock()
		s.emit(Update{ChangedSections: changed})
		return false

	case protocol.TypeFinal:
		s.stopCapture()
		s.mu.Lock()
		s.ts.ApplyFinal(msg.Transcript)
		if msg.Sections != nil {
			s.doc.SetAll(*msg.Sections)
		}
		s.mu.Unlock()
		s.complete("")
		return true

	case protocol.TypeError:
		// The message text is surfaced verbatim; the attempt then falls
		// back on whatever audio has been captured.
		s.logger.Warn().Str("message", msg.Message).Msg("Server reported an error")
		s.emit(Update{Notice: msg.Message})
		s.mu.Lock()
		tr := s.transport
		s.mu.Unlock()
		if tr != nil {
			tr.Close()
		}
		s.handleTransportFailure(fmt.Errorf("server error: %s", msg.Message))
		return true

	default:
		return false
	}
}

// handleTransportFailure runs the mid-stream fallback: trip the cool-down,
// then resubmit the captured audio as a batch request. With nothing
// captured the attempt ends in the error state.
func (s *Session) handleTransportFailure(cause error) {
	s.stopCapture()
	s.waitCaptureDrained()
	s.cfg.Fallback.Trip()
	s.metrics.RecordFallback("transport")
	s.logger.Warn().Err(cause).Msg("Streaming connection lost, falling back to batch")

	s.mu.Lock()
	s.state = StateFallback
	samples := s.captured
	s.mu.Unlock()

	if len(samples) == 0 {
		s.fail("the streaming connection was lost before any audio was captured")
		return
	}

	s.emit(Update{Notice: "connection lost, resubmitting the captured audio"})
	s.submitCaptured(samples, true)
}

// startCapture opens the audio source and starts the pump that buffers
// every sample for fallback and streams frames while the attempt is in the
// streaming state.
func (s *Session) startCapture() error {
	ch, err := s.cfg.Source.Start()
	if err != nil {
		return err
	}
	done := make(chan struct{})
	s.mu.Lock()
	s.capturing = true
	s.captureDone = done
	s.mu.Unlock()
	go s.capturePump(ch, done)
	return nil
}

func (s *Session) stopCapture() {
	s.mu.Lock()
	active := s.capturing
	s.capturing = false
	s.mu.Unlock()
	if active {
		s.cfg.Source.Stop()
	}
}

func (s *Session) waitCaptureDrained() {
	s.mu.Lock()
	done := s.captureDone
	s.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func (s *Session) capturePump(ch <-chan []float32, done chan struct{}) {
	defer close(done)
	framer := audio.NewFramer(s.cfg.FrameSamples)

	for block := range ch {
		s.mu.Lock()
		s.captured = append(s.captured, block...)
		streaming := s.state == StateStreaming && !s.sendFailed
		tr := s.transport
		s.mu.Unlock()

		frames := framer.Push(block)
		if !streaming || tr == nil {
			for range frames {
				s.metrics.RecordFrameDropped()
			}
			continue
		}
		for _, frame := range frames {
			if err := tr.SendFrame(frame); err != nil {
				// Keep capturing for fallback; the receive loop owns the
				// failure transition.
				s.logger.Debug().Err(err).Msg("Frame send failed")
				s.mu.Lock()
				s.sendFailed = true
				s.mu.Unlock()
				break
			}
			s.metrics.RecordAudioBytes("sent", int64(len(frame)))
		}
	}

	// Pad and send the partial tail so the recognizer sees the full clip.
	s.mu.Lock()
	streaming := !s.sendFailed
	tr := s.transport
	s.mu.Unlock()
	if tail := framer.Flush(); tail != nil && streaming && tr != nil {
		if err := tr.SendFrame(tail); err == nil {
			s.metrics.RecordAudioBytes("sent", int64(len(tail)))
		}
	}
}

// startBatchCapture records locally with no connection; Stop submits the
// clip in one batch request.
func (s *Session) startBatchCapture(notice string) error {
	if err := s.startCapture(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to open capture device")
		s.fail("could not open the audio capture device")
		return err
	}
	s.emit(Update{Notice: notice})

	// A stop issued while the dial was still in flight has already consumed
	// its signal; finish the attempt now instead of waiting for one that
	// will never come.
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		s.kickFinishBatch()
	}
	return nil
}

// finishBatch completes a batch capture attempt after Stop.
func (s *Session) finishBatch() {
	s.waitCaptureDrained()
	s.mu.Lock()
	samples := s.captured
	s.mu.Unlock()

	if len(samples) == 0 {
		s.fail("no audio was captured")
		return
	}
	s.submitCaptured(samples, false)
}

// submitCaptured encodes the captured samples as a WAV clip and submits it.
// When bestEffort is set, a submission failure still completes the attempt
// with the last known transcript and note state.
func (s *Session) submitCaptured(samples []float32, bestEffort bool) {
	wav, err := audio.EncodeWAVFromFloat(samples, s.cfg.SampleRate)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode captured audio")
		s.fail("could not encode the captured audio")
		return
	}
	s.metrics.RecordAudioBytes("batch", int64(len(wav)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	resp, err := s.cfg.Batch.Submit(ctx, protocol.BatchRequest{
		AudioWAV:       wav,
		Language:       s.cfg.Language,
		ContextEntries: s.cfg.ContextEntries,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Batch submission failed")
		s.metrics.RecordError("batch_submit", "session")
		if bestEffort {
			s.complete("the note service was unreachable; showing the latest draft")
			return
		}
		s.fail("the note service rejected the captured audio")
		return
	}

	s.mu.Lock()
	s.ts.ApplyFinal(resp.Transcript)
	s.doc.SetAll(resp.Sections)
	s.mu.Unlock()
	s.complete("")
}

// complete moves the attempt to the terminal complete state and publishes
// the result built from the current transcript and note state.
func (s *Session) complete(notice string) {
	s.mu.Lock()
	s.state = StateComplete
	res := &note.Result{
		Transcript: s.ts.Full(),
		Sections:   s.doc.Sections(),
	}
	s.result = res
	s.mu.Unlock()

	s.metrics.RecordSessionEnd()
	s.logger.Info().Msg("Session complete")
	s.emit(Update{Notice: notice, Result: res})
}

// fail moves the attempt to the terminal error state. The session stays
// usable; a later Start begins a fresh attempt.
func (s *Session) fail(notice string) {
	s.mu.Lock()
	s.state = StateError
	tr := s.transport
	s.mu.Unlock()
	if tr != nil {
		tr.Close()
	}

	s.metrics.RecordSessionEnd()
	s.metrics.RecordError("session_failed", "session")
	s.emit(Update{Notice: notice})
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// emit publishes a snapshot, filling in the state, transcript, and note
// sections the caller did not set.
func (s *Session) emit(u Update) {
	s.mu.Lock()
	u.State = s.state
	u.Transcript = s.ts.Display()
	u.Sections = s.doc.Sections()
	s.mu.Unlock()
	s.updates <- u
}
