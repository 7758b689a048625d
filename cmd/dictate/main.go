// Command dictate replays a WAV clip through the dictation gateway and
// prints the resulting structured note. It exercises both the streaming
// session path and the one-shot batch endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scribehealth/dictation-gateway/internal/audio"
	"github.com/scribehealth/dictation-gateway/internal/config"
	"github.com/scribehealth/dictation-gateway/internal/diary"
	"github.com/scribehealth/dictation-gateway/internal/note"
	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/protocol"
	"github.com/scribehealth/dictation-gateway/internal/session"
	"github.com/scribehealth/dictation-gateway/internal/transport"
)

func main() {
	var (
		serverURL    = flag.String("server", config.GetEnv("GATEWAY_URL", "http://localhost:8080"), "gateway base URL")
		clipPath     = flag.String("file", "", "WAV clip to dictate (required unless -diary-add)")
		language     = flag.String("language", "en-US", "language tag")
		batch        = flag.Bool("batch", false, "skip streaming and submit the clip in one request")
		realtime     = flag.Bool("realtime", false, "replay the clip at its natural pace")
		diaryPath    = flag.String("diary", "", "diary database for drafting context")
		diaryLimit   = flag.Int("diary-limit", 10, "diary entries to include as context")
		diaryAdd     = flag.String("diary-add", "", "add a diary entry as type=text and exit")
		frameSamples = flag.Int("frame-samples", 4096, "samples per streamed audio frame")
		finalizeWait = flag.Duration("finalize-timeout", 10*time.Second, "wait for the final note after stop")
		cooldown     = flag.Duration("fallback-cooldown", time.Minute, "streaming disabled for this long after a failure")
		logLevel     = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	observability.InitLogger(*logLevel, true)
	logger := observability.GetLogger()

	if *diaryAdd != "" {
		if *diaryPath == "" {
			fatal("diary-add requires -diary")
		}
		if err := addDiaryEntry(*diaryPath, *diaryAdd); err != nil {
			fatal("failed to add diary entry: %v", err)
		}
		return
	}

	if *clipPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	wav, err := os.ReadFile(*clipPath)
	if err != nil {
		fatal("failed to read clip: %v", err)
	}
	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		fatal("unreadable clip: %v", err)
	}
	logger.Info().Int("samples", len(samples)).Int("rate", rate).Msg("Clip loaded")

	var contextEntries []string
	if *diaryPath != "" {
		store, err := diary.Open(*diaryPath)
		if err != nil {
			fatal("failed to open diary: %v", err)
		}
		contextEntries, err = store.ContextSnapshot(context.Background(), *diaryLimit)
		store.Close()
		if err != nil {
			fatal("failed to read diary context: %v", err)
		}
	}

	submitter := transport.NewBatchClient(*serverURL, 2*time.Minute)

	if *batch {
		resp, err := submitter.Submit(context.Background(), protocol.BatchRequest{
			AudioWAV:       wav,
			Language:       *language,
			ContextEntries: contextEntries,
		})
		if err != nil {
			fatal("batch submission failed: %v", err)
		}
		printResult(&note.Result{Transcript: resp.Transcript, Sections: resp.Sections})
		return
	}

	floats := make([]float32, len(samples))
	for i, s := range samples {
		floats[i] = audio.Dequantize(s)
	}

	interval := time.Duration(0)
	if *realtime {
		interval = time.Duration(*frameSamples) * time.Second / time.Duration(rate)
	}
	source := audio.NewClipSource(floats, *frameSamples, interval)

	wsURL := "ws" + trimScheme(*serverURL) + "/v1/sessions/stream"
	sess := session.New(session.Config{
		Dialer:          transport.NewWSDialer(wsURL),
		Batch:           submitter,
		Source:          source,
		Language:        *language,
		ContextEntries:  contextEntries,
		SampleRate:      rate,
		FrameSamples:    *frameSamples,
		FinalizeTimeout: *finalizeWait,
		Fallback:        session.NewFallbackController(*cooldown),
	})

	if err := sess.Start(context.Background()); err != nil {
		fatal("failed to start session: %v", err)
	}

	// Stop once the clip has been replayed, or on interrupt.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		replay := time.Duration(len(floats)) * time.Second / time.Duration(rate)
		if !*realtime {
			replay = 2 * time.Second
		}
		select {
		case <-time.After(replay + time.Second):
		case <-quit:
			fmt.Fprintln(os.Stderr, "interrupted, finalizing")
		}
		sess.Stop()
	}()

	for u := range sess.Updates() {
		if u.Notice != "" {
			fmt.Fprintf(os.Stderr, "! %s\n", u.Notice)
		}
		if u.Transcript != "" && u.Result == nil {
			fmt.Fprintf(os.Stderr, "… %s\n", u.Transcript)
		}
		if u.Result != nil {
			printResult(u.Result)
			return
		}
		if u.State == session.StateError {
			os.Exit(1)
		}
	}
}

func addDiaryEntry(path, spec string) error {
	entryType, text := diary.TypeGeneral, spec
	for _, t := range []string{diary.TypeSymptom, diary.TypeFood, diary.TypeMood, diary.TypeGeneral} {
		prefix := t + "="
		if len(spec) > len(prefix) && spec[:len(prefix)] == prefix {
			entryType, text = t, spec[len(prefix):]
			break
		}
	}

	store, err := diary.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Add(context.Background(), entryType, text)
	if err != nil {
		return err
	}
	fmt.Printf("added %s entry #%d", entry.Type, entry.ID)
	if len(entry.Tags) > 0 {
		fmt.Printf(" tags=%v", entry.Tags)
	}
	fmt.Println()
	return nil
}

func printResult(res *note.Result) {
	fmt.Printf("\nTranscript:\n  %s\n\n", res.Transcript)
	for _, sec := range note.AllSections() {
		fmt.Printf("%s:\n  %s\n", titleFor(sec), res.Sections.Get(sec))
	}
}

func titleFor(sec note.Section) string {
	switch sec {
	case note.Subjective:
		return "Subjective"
	case note.Objective:
		return "Objective"
	case note.Assessment:
		return "Assessment"
	case note.Plan:
		return "Plan"
	default:
		return string(sec)
	}
}

func trimScheme(url string) string {
	for _, prefix := range []string{"https", "http"} {
		if len(url) > len(prefix) && url[:len(prefix)] == prefix {
			return url[len(prefix):]
		}
	}
	return url
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
