package asr

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"
)

// handshake is the first message of a session, carrying the recognition
// configuration.
type handshake struct {
	Config recognitionConfig `json:"config"`
}

type recognitionConfig struct {
	Encoding          string `json:"encoding"`
	SampleRateHertz   int    `json:"sample_rate_hertz"`
	LanguageCode      string `json:"language_code"`
	AudioChannelCount int    `json:"audio_channel_count"`
	MaxAlternatives   int    `json:"max_alternatives"`
	EnablePunctuation bool   `json:"enable_automatic_punctuation"`
	InterimResults    bool   `json:"interim_results"`
}

// resultMessage is one backend reply, possibly carrying several results.
type resultMessage struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
		IsFinal bool `json:"is_final"`
	} `json:"results"`
}

// StreamClient is the remote Recognizer: a websocket session against the
// recognition backend. One handshake text message, then binary PCM frames,
// then an optional silence tail; results stream back concurrently.
type StreamClient struct {
	cfg StreamConfig
}

// NewStreamClient validates cfg and returns the client.
func NewStreamClient(cfg StreamConfig) (*StreamClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &StreamClient{cfg: cfg}, nil
}

// Stream opens a session and pumps src through it. A backend that is not
// ready within the configured timeout yields ErrBackendUnavailable and no
// session. Mid-stream failures terminate the event channel and surface via
// Session.Err; this layer never retries.
func (c *StreamClient) Stream(ctx context.Context, src FrameSource) (*Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()

	conn, _, err := ws.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		log.Warn("Recognition backend not reachable", "url", c.cfg.URL, "timeout", c.cfg.ReadyTimeout, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	hs := handshake{Config: recognitionConfig{
		Encoding:          c.cfg.Encoding,
		SampleRateHertz:   c.cfg.SampleRate,
		LanguageCode:      c.cfg.Language,
		AudioChannelCount: c.cfg.Channels,
		MaxAlternatives:   c.cfg.MaxAlternatives,
		EnablePunctuation: c.cfg.Punctuation,
		InterimResults:    c.cfg.InterimResults,
	}}
	if err := conn.WriteJSON(hs); err != nil {
		conn.Close()
		return nil, fmt.Errorf("asr: send handshake: %w", err)
	}

	sess := NewSession()
	go c.writeLoop(ctx, conn, src)
	go c.readLoop(conn, sess)
	return sess, nil
}

// writeLoop sends frames until the source ends, then the silence tail, then
// half-closes the stream so the backend can finalize the last utterance.
func (c *StreamClient) writeLoop(ctx context.Context, conn *ws.Conn, src FrameSource) {
	for {
		frame, ok := src.Next(ctx)
		if !ok {
			break
		}
		if len(frame) == 0 {
			continue
		}
		if err := conn.WriteMessage(ws.BinaryMessage, frame); err != nil {
			log.Error("Failed to send audio frame", "err", err)
			return
		}
	}

	if c.cfg.SilenceTail > 0 {
		tail := make([]byte, 2*int(c.cfg.SilenceTail.Seconds()*float64(c.cfg.SampleRate)))
		if err := conn.WriteMessage(ws.BinaryMessage, tail); err != nil {
			log.Error("Failed to send silence tail", "err", err)
			return
		}
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), deadline)
}

// readLoop forwards results carrying at least one alternative and closes the
// session when the backend stream ends.
func (c *StreamClient) readLoop(conn *ws.Conn, sess *Session) {
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				sess.Finish(nil)
				return
			}
			log.Error("Recognition stream failed", "err", err)
			sess.Finish(fmt.Errorf("asr: stream read: %w", err))
			return
		}

		var rm resultMessage
		if err := json.Unmarshal(msg, &rm); err != nil {
			log.Warn("Unparseable recognition result", "err", err)
			continue
		}
		for _, res := range rm.Results {
			if len(res.Alternatives) == 0 {
				continue
			}
			sess.Emit(TranscriptEvent{Text: res.Alternatives[0].Transcript, IsFinal: res.IsFinal})
		}
	}
}
