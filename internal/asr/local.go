package asr

import (
	"context"
	log "log/slog"
	"math"
	"strings"
	"time"

	"github.com/omotayoh/vRvoice/pkg/audioconv"
	"github.com/omotayoh/vRvoice/pkg/stt"
)

// LocalConfig tunes the offline recognizer's utterance segmentation.
type LocalConfig struct {
	SampleRate   int
	Language     string
	SilenceRMS   float64       // RMS below this counts as silence
	SilenceHold  time.Duration // silence run that closes an utterance
	MaxUtterance time.Duration // hard cap per utterance
}

func (c *LocalConfig) defaults() {
	if c.SilenceRMS <= 0 {
		c.SilenceRMS = 0.015
	}
	if c.SilenceHold <= 0 {
		c.SilenceHold = 600 * time.Millisecond
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = 10 * time.Second
	}
}

// LocalRecognizer is the offline Recognizer: it gates frames on an RMS
// silence threshold to segment utterances and batch-transcribes each segment
// with whisper.cpp. It emits final events only — whisper has no interim
// results.
type LocalRecognizer struct {
	tr  *stt.Transcriber
	cfg LocalConfig
}

// NewLocalRecognizer wraps a loaded whisper transcriber.
func NewLocalRecognizer(tr *stt.Transcriber, cfg LocalConfig) *LocalRecognizer {
	cfg.defaults()
	return &LocalRecognizer{tr: tr, cfg: cfg}
}

// Stream consumes src until it ends, emitting one final event per detected
// utterance.
func (r *LocalRecognizer) Stream(ctx context.Context, src FrameSource) (*Session, error) {
	sess := NewSession()
	go r.run(ctx, src, sess)
	return sess, nil
}

func (r *LocalRecognizer) run(ctx context.Context, src FrameSource, sess *Session) {
	var (
		utterance  []float32
		speaking   bool
		silence    time.Duration
		maxSamples = int(r.cfg.MaxUtterance.Seconds() * float64(r.cfg.SampleRate))
	)

	flush := func() {
		if len(utterance) == 0 {
			return
		}
		seg := utterance
		utterance, speaking, silence = nil, false, 0

		text, err := r.tr.TranscribePCM(ctx, seg, stt.Options{Language: r.cfg.Language})
		if err != nil {
			log.Error("Local transcription failed", "err", err)
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}
		sess.Emit(TranscriptEvent{Text: text, IsFinal: true})
	}

	for {
		frame, ok := src.Next(ctx)
		if !ok {
			flush()
			sess.Finish(nil)
			return
		}

		samples := audioconv.Float32FromPCM16(frame)
		frameDur := time.Duration(float64(len(samples)) / float64(r.cfg.SampleRate) * float64(time.Second))

		if rms(samples) > r.cfg.SilenceRMS {
			speaking = true
			silence = 0
			utterance = append(utterance, samples...)
		} else if speaking {
			silence += frameDur
			utterance = append(utterance, samples...)
			if silence >= r.cfg.SilenceHold {
				flush()
			}
		}

		if len(utterance) >= maxSamples {
			flush()
		}
	}
}

func rms(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s / float64(len(f)))
}
