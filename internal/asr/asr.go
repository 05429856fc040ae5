// Package asr drives speech recognition sessions over a frame source and
// yields transcript events. The remote backend speaks a bidirectional
// streaming protocol: one JSON config handshake, then binary PCM frames in,
// JSON result messages out.
package asr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omotayoh/vRvoice/internal/audio"
)

// ErrBackendUnavailable reports that the recognition backend could not reach
// a ready state within the configured timeout. Callers treat it as "no
// session established", not as a crash.
var ErrBackendUnavailable = errors.New("asr: backend unavailable")

// EncodingLinearPCM is the only audio encoding the pipeline produces.
const EncodingLinearPCM = "LINEAR_PCM"

// TranscriptEvent is one recognition result. Events for the same utterance
// arrive in emission order; only the last IsFinal event carries the committed
// text.
type TranscriptEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// StreamConfig is the recognition handshake plus client-side timing knobs.
type StreamConfig struct {
	URL             string        // backend websocket endpoint
	Encoding        string        // must name a supported encoding
	SampleRate      int           // Hz
	Language        string        // BCP-47 code, e.g. "en-US"
	Channels        int           // audio channel count
	MaxAlternatives int
	Punctuation     bool
	InterimResults  bool
	SilenceTail     time.Duration // zero-amplitude tail after the source ends; 0 for live input
	ReadyTimeout    time.Duration // bound on reaching a ready backend connection
}

// Validate resolves defaults and rejects misconfiguration at startup. An
// unknown encoding is an error here, never a silent fallback later.
func (c *StreamConfig) Validate() error {
	if c.URL == "" {
		return errors.New("asr: backend URL is required")
	}
	if c.Encoding == "" {
		c.Encoding = EncodingLinearPCM
	}
	if c.Encoding != EncodingLinearPCM {
		return fmt.Errorf("asr: unsupported encoding %q (supported: %s)", c.Encoding, EncodingLinearPCM)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("asr: invalid sample rate %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = 1
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 5 * time.Second
	}
	return nil
}

// FrameSource supplies audio frames until the stream ends.
type FrameSource interface {
	// Next blocks for the next frame and reports false at end of stream.
	Next(ctx context.Context) (audio.Frame, bool)
}

// Recognizer starts recognition sessions over a frame source.
type Recognizer interface {
	Stream(ctx context.Context, src FrameSource) (*Session, error)
}

// Session is one live recognition session.
type Session struct {
	events chan TranscriptEvent
	err    error
	done   chan struct{}
}

// NewSession creates an open session. Recognizer implementations feed it
// with Emit and close it with Finish.
func NewSession() *Session {
	return &Session{
		events: make(chan TranscriptEvent, 16),
		done:   make(chan struct{}),
	}
}

// Events returns the transcript sequence. The channel closes when the
// session ends, normally or not.
func (s *Session) Events() <-chan TranscriptEvent { return s.events }

// Err reports the mid-stream failure that terminated the session, if any.
// Valid only after Events is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Finish terminates the session, recording the fatal error if any. Must be
// called exactly once, after the last Emit.
func (s *Session) Finish(err error) {
	s.err = err
	close(s.done)
	close(s.events)
}

// Emit delivers one transcript event to the session's consumer.
func (s *Session) Emit(ev TranscriptEvent) {
	s.events <- ev
}
