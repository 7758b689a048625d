package stt

import (
	"context"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/scribehealth/dictation-gateway/internal/config"
	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/resilience"
)

// messageCallbackHandler implements the LiveMessageCallback interface.
// It embeds the default handler and overrides only the methods we customize.
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message overrides the default handler to send transcriptions to our channel
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// DeepgramRecognizer implements Recognizer using Deepgram's streaming API.
// Audio is linear16 PCM at the gateway's capture rate.
type DeepgramRecognizer struct {
	config         *config.Config
	language       string
	client         *listenClient.WSCallback
	results        chan *Result
	mu             sync.RWMutex
	isActive       bool
	ctx            context.Context
	cancel         context.CancelFunc
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
	closeOnce      sync.Once
}

// NewDeepgramRecognizer creates a streaming recognizer for one session.
func NewDeepgramRecognizer(cfg *config.Config, language string) *DeepgramRecognizer {
	ctx, cancel := context.WithCancel(context.Background())

	if language == "" {
		language = cfg.DefaultLanguage
	}

	circuitBreaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	return &DeepgramRecognizer{
		config:         cfg,
		language:       language,
		results:        make(chan *Result, 100),
		ctx:            ctx,
		cancel:         cancel,
		circuitBreaker: circuitBreaker,
		logger:         observability.WithComponent("stt"),
	}
}

// NewDeepgramFactory returns a Factory producing Deepgram recognizers.
func NewDeepgramFactory(cfg *config.Config) Factory {
	return func(language string) Recognizer {
		return NewDeepgramRecognizer(cfg, language)
	}
}

// Start begins a new Deepgram streaming transcription session
func (d *DeepgramRecognizer) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive {
		return fmt.Errorf("deepgram recognizer is already active")
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       d.language,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",     // End utterance after 1 second of silence
		VadEvents:      true,       // Enable voice activity detection events
		Encoding:       "linear16", // Raw PCM16
		Channels:       1,          // Mono
		SampleRate:     d.config.SampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleMessage,
		errorHandler: func(errorResponse *msginterfaces.ErrorResponse) error {
			d.logger.Error().Interface("response", errorResponse).Msg("Deepgram error")

			d.circuitBreaker.RecordResult(false)
			observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))
			observability.IncrementCircuitBreakerFailures("deepgram")

			select {
			case <-d.ctx.Done():
				return nil
			default:
				// Connection lost, mark as inactive
				d.mu.Lock()
				d.isActive = false
				d.mu.Unlock()

				go d.attemptReconnect()
			}
			return nil
		},
	}

	client, err := listenClient.NewWSUsingCallback(
		d.ctx,
		d.config.DeepgramAPIKey,
		nil, // ClientOptions - nil uses defaults
		tOptions,
		callback,
	)
	if err != nil {
		return fmt.Errorf("failed to create deepgram client: %w", err)
	}

	d.client = client
	d.isActive = true

	d.circuitBreaker.RecordResult(true)
	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))

	d.logger.Info().
		Str("model", d.config.DeepgramModel).
		Str("language", d.language).
		Int("sample_rate", d.config.SampleRate).
		Msg("Deepgram streaming recognizer started")
	return nil
}

// handleMessage processes messages from Deepgram
func (d *DeepgramRecognizer) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Metadata":
		d.logger.Debug().Interface("metadata", msg.Metadata).Msg("Deepgram metadata")

	case "SpeechStarted":
		d.logger.Debug().Msg("Deepgram speech started")

	case "UtteranceEnd":
		d.logger.Debug().Msg("Deepgram utterance ended")

	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}

		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		confidence := 0.0
		if alt.Confidence > 0 {
			confidence = alt.Confidence
		}

		startTime := msg.Start
		duration := msg.Duration
		if len(alt.Words) > 0 && duration == 0 {
			startTime = alt.Words[0].Start
			lastWord := alt.Words[len(alt.Words)-1]
			duration = lastWord.End - startTime
		}

		result := &Result{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: confidence,
			StartTime:  startTime,
			Duration:   duration,
		}

		select {
		case d.results <- result:
		default:
			d.logger.Warn().Msg("results channel full, dropping transcription")
		}

	default:
		d.logger.Debug().Str("type", msg.Type).Msg("Deepgram unknown message type")
	}
}

// SendAudio sends a PCM16 audio chunk to Deepgram
func (d *DeepgramRecognizer) SendAudio(audioData []byte) error {
	err := d.circuitBreaker.Call(func() error {
		d.mu.RLock()
		active := d.isActive
		client := d.client
		d.mu.RUnlock()

		if !active || client == nil {
			return fmt.Errorf("deepgram recognizer is not active")
		}

		if _, err := client.Write(audioData); err != nil {
			go d.attemptReconnect()
			return fmt.Errorf("failed to send audio to deepgram: %w", err)
		}
		return nil
	})

	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("deepgram")
	}

	return err
}

// attemptReconnect attempts to reconnect to Deepgram
func (d *DeepgramRecognizer) attemptReconnect() {
	select {
	case <-d.ctx.Done():
		return
	default:
	}

	d.mu.RLock()
	alreadyActive := d.isActive
	d.mu.RUnlock()

	if alreadyActive {
		return // Already reconnected
	}

	reconnectConfig := &resilience.ReconnectConfig{
		MaxAttempts: d.config.ReconnectMaxAttempts,
		Backoff:     time.Duration(d.config.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	if err := resilience.Reconnect(d.ctx, d.Start, reconnectConfig); err != nil {
		d.logger.Error().Err(err).Msg("failed to reconnect deepgram recognizer")
	} else {
		d.logger.Info().Msg("reconnected deepgram recognizer")
	}
}

// Results returns the channel receiving transcription results
func (d *DeepgramRecognizer) Results() <-chan *Result {
	return d.results
}

// Stop ends the Deepgram streaming session
func (d *DeepgramRecognizer) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isActive {
		return nil // Already stopped
	}

	// Send finish message to Deepgram so buffered audio is flushed
	d.client.Finish()

	d.isActive = false
	d.logger.Info().Msg("Deepgram streaming recognizer stopped")
	return nil
}

// Close closes the client and cleans up resources. Safe to call more than
// once.
func (d *DeepgramRecognizer) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.cancel() // Cancel context to stop any reconnection attempts

		err = d.Stop()

		// Close the results channel after a short delay to allow pending reads
		go func() {
			time.Sleep(100 * time.Millisecond)
			close(d.results)
		}()
	})
	return err
}

// IsActive returns whether the recognizer is currently active
func (d *DeepgramRecognizer) IsActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isActive
}
