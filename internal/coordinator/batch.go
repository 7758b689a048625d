package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/scribehealth/dictation-gateway/internal/audio"
	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/protocol"
	"github.com/scribehealth/dictation-gateway/internal/stt"
)

const maxBatchBodyBytes = 64 << 20 // generous ceiling for long WAV clips

// HandleBatch serves the one-shot submission endpoint: a WAV clip or free
// text in, a transcript and structured note out.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	metrics := observability.NewSessionMetrics(observability.NewCorrelationID())
	metrics.RecordSessionStart("batch")
	defer metrics.RecordSessionEnd()

	var req protocol.BatchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	language := req.Language
	if language == "" {
		language = h.cfg.DefaultLanguage
	}

	transcript := req.Text
	if len(req.AudioWAV) > 0 {
		samples, err := h.decodeClip(req.AudioWAV)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "unreadable audio", err.Error())
			return
		}

		drainWait := h.cfg.FinalDrainWaitDuration()
		metrics.RecordSTTStart()
		transcript, err = stt.Transcribe(r.Context(), h.factory, samples, language, drainWait)
		metrics.RecordSTTEnd(err == nil)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "transcription failed", err.Error())
			return
		}
	}

	metrics.RecordNoteGenStart()
	sections, err := h.drafter.Draft(r.Context(), transcript, req.ContextEntries)
	metrics.RecordNoteGenEnd(err == nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Batch note draft failed")
		writeError(w, http.StatusBadGateway, "note generation failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.BatchResponse{
		Transcript: transcript,
		Sections:   sections,
	})
}

// decodeClip parses the WAV container and resamples to the recognizer's
// expected rate when the clip was recorded at a different one.
func (h *Handler) decodeClip(wav []byte) ([]int16, error) {
	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, err
	}
	if rate == h.cfg.SampleRate {
		return samples, nil
	}

	floats := make([]float32, len(samples))
	for i, s := range samples {
		floats[i] = audio.Dequantize(s)
	}
	resampled := audio.Resample(floats, rate, h.cfg.SampleRate)
	out := make([]int16, len(resampled))
	for i, s := range resampled {
		out[i] = audio.Quantize(s)
	}
	return out, nil
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: msg, Detail: detail})
}
