// Package app wires the recognition, routing and dispatch stages into the
// voice-command pipeline. Everything is passed in through the Pipeline
// struct; there is no package-level state, so multiple pipelines can coexist
// in one process.
package app

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"github.com/omotayoh/vRvoice/internal/asr"
	"github.com/omotayoh/vRvoice/internal/nlu"
	"github.com/omotayoh/vRvoice/pkg/wire"
)

// DefaultRestartDelay is the pause before re-establishing a recognition
// session after the previous one ended or failed to start.
const DefaultRestartDelay = 2 * time.Second

// CommandRouter resolves a final transcript to a command. *nlu.Router is the
// production implementation.
type CommandRouter interface {
	Route(ctx context.Context, text string) (nlu.Match, bool, error)
}

// Dispatcher delivers a resolved command to the scene-host listener.
// *dispatch.Client is the production implementation.
type Dispatcher interface {
	ActivatePair(group, name string) (wire.Response, error)
}

// Pipeline consumes recognition sessions and turns final transcripts into
// dispatched commands.
type Pipeline struct {
	Router     CommandRouter
	Dispatcher Dispatcher

	// Notify, when set, runs after every accepted dispatch. Failures are
	// logged, never propagated.
	Notify func() error

	// RestartDelay overrides DefaultRestartDelay when positive.
	RestartDelay time.Duration
}

// Run establishes recognition sessions over src until ctx is done,
// processing each session's events and restarting after the session ends.
// A backend that is temporarily unreachable is retried, not fatal.
func (p *Pipeline) Run(ctx context.Context, rec asr.Recognizer, src asr.FrameSource) error {
	delay := p.RestartDelay
	if delay <= 0 {
		delay = DefaultRestartDelay
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sess, err := rec.Stream(ctx, src)
		if err != nil {
			if errors.Is(err, asr.ErrBackendUnavailable) {
				log.Warn("Recognition backend unavailable, retrying", "delay", delay, "err", err)
				if err := sleep(ctx, delay); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if err := p.ProcessSession(ctx, sess); err != nil {
			return err
		}
		if err := sess.Err(); err != nil {
			log.Warn("Recognition session ended with error", "err", err)
		} else {
			log.Debug("Recognition session ended")
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// ProcessSession consumes one session: final transcripts with non-empty
// trimmed text are routed and dispatched, everything else is dropped. It
// returns when the session's event stream closes or ctx is done.
func (p *Pipeline) ProcessSession(ctx context.Context, sess *asr.Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			if !ev.IsFinal {
				continue
			}
			text := strings.TrimSpace(ev.Text)
			if text == "" {
				continue
			}
			p.handleTranscript(ctx, text)
		}
	}
}

// handleTranscript makes exactly one routing decision per final transcript.
func (p *Pipeline) handleTranscript(ctx context.Context, text string) {
	match, ok, err := p.Router.Route(ctx, text)
	if err != nil {
		log.Error("Routing failed", "text", text, "err", err)
		return
	}
	if !ok {
		log.Info("No command for transcript", "text", text)
		return
	}

	resp, err := p.Dispatcher.ActivatePair(match.Command.Group, match.Command.Name)
	if err != nil {
		log.Error("Dispatch failed", "group", match.Command.Group, "name", match.Command.Name, "err", err)
		return
	}
	if !resp.Ok {
		log.Warn("Dispatch rejected", "group", match.Command.Group, "name", match.Command.Name, "reason", resp.Error)
		return
	}

	log.Info("Command dispatched",
		"text", text,
		"phrase", match.Phrase,
		"score", match.Score,
		"group", match.Command.Group,
		"name", match.Command.Name,
	)
	if p.Notify != nil {
		if err := p.Notify(); err != nil {
			log.Debug("Confirmation chime failed", "err", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
