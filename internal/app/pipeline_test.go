package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/omotayoh/vRvoice/internal/asr"
	"github.com/omotayoh/vRvoice/internal/audio"
	"github.com/omotayoh/vRvoice/internal/nlu"
	"github.com/omotayoh/vRvoice/pkg/wire"
)

// scriptedRouter resolves fixed texts and counts decisions.
type scriptedRouter struct {
	mu      sync.Mutex
	matches map[string]nlu.Match
	calls   []string
}

func (r *scriptedRouter) Route(ctx context.Context, text string) (nlu.Match, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, text)
	m, ok := r.matches[text]
	return m, ok, nil
}

func (r *scriptedRouter) routed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// recordingDispatcher captures dispatched commands.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []nlu.Command
	resp wire.Response
	err  error
}

func (d *recordingDispatcher) ActivatePair(group, name string) (wire.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, nlu.Command{Group: group, Name: name})
	return d.resp, d.err
}

func (d *recordingDispatcher) dispatched() []nlu.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]nlu.Command(nil), d.sent...)
}

// scriptedRecognizer plays back one event script per Stream call.
type scriptedRecognizer struct {
	mu      sync.Mutex
	scripts [][]asr.TranscriptEvent
	dialErr error
	streams int
}

func (r *scriptedRecognizer) Stream(ctx context.Context, src asr.FrameSource) (*asr.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams++
	if r.dialErr != nil {
		err := r.dialErr
		r.dialErr = nil
		return nil, err
	}

	var script []asr.TranscriptEvent
	if len(r.scripts) > 0 {
		script = r.scripts[0]
		r.scripts = r.scripts[1:]
	}
	sess := asr.NewSession()
	go func() {
		for _, ev := range script {
			sess.Emit(ev)
		}
		sess.Finish(nil)
	}()
	return sess, nil
}

type nilSource struct{}

func (nilSource) Next(ctx context.Context) (audio.Frame, bool) {
	<-ctx.Done()
	return nil, false
}

func TestPipeline_DispatchesFinalTranscripts(t *testing.T) {
	t.Parallel()

	router := &scriptedRouter{matches: map[string]nlu.Match{
		"activate red interior": {
			Command: nlu.Command{Group: "Interior", Name: "Red"},
			Phrase:  "activate red interior",
			Score:   0.91,
		},
	}}
	disp := &recordingDispatcher{resp: wire.Response{Ok: true}}
	p := &Pipeline{Router: router, Dispatcher: disp}

	s := asr.NewSession()
	go func() {
		s.Emit(asr.TranscriptEvent{Text: "activate red", IsFinal: false})
		s.Emit(asr.TranscriptEvent{Text: "activate red interior", IsFinal: true})
		s.Emit(asr.TranscriptEvent{Text: "   ", IsFinal: true})
		s.Emit(asr.TranscriptEvent{Text: "", IsFinal: true})
		s.Finish(nil)
	}()

	if err := p.ProcessSession(context.Background(), s); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// One routing decision per usable final transcript.
	if got := router.routed(); len(got) != 1 || got[0] != "activate red interior" {
		t.Errorf("expected one routed transcript, got %v", got)
	}
	want := nlu.Command{Group: "Interior", Name: "Red"}
	if got := disp.dispatched(); len(got) != 1 || got[0] != want {
		t.Errorf("expected %+v dispatched once, got %v", want, got)
	}
}

func TestPipeline_UnmatchedTranscriptIsDropped(t *testing.T) {
	t.Parallel()

	router := &scriptedRouter{matches: map[string]nlu.Match{}}
	disp := &recordingDispatcher{resp: wire.Response{Ok: true}}
	p := &Pipeline{Router: router, Dispatcher: disp}

	s := asr.NewSession()
	go func() {
		s.Emit(asr.TranscriptEvent{Text: "mumble mumble", IsFinal: true})
		s.Finish(nil)
	}()

	if err := p.ProcessSession(context.Background(), s); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if got := disp.dispatched(); len(got) != 0 {
		t.Errorf("expected nothing dispatched, got %v", got)
	}
}

func TestPipeline_NotifyOnAcceptedDispatchOnly(t *testing.T) {
	t.Parallel()

	router := &scriptedRouter{matches: map[string]nlu.Match{
		"good": {Command: nlu.Command{Group: "G", Name: "N"}},
		"bad":  {Command: nlu.Command{Group: "G", Name: "X"}},
	}}

	var mu sync.Mutex
	chimes := 0
	disp := &recordingDispatcher{resp: wire.Response{Ok: true}}
	p := &Pipeline{
		Router:     router,
		Dispatcher: disp,
		Notify: func() error {
			mu.Lock()
			chimes++
			mu.Unlock()
			return nil
		},
	}

	s := asr.NewSession()
	go func() {
		s.Emit(asr.TranscriptEvent{Text: "good", IsFinal: true})
		s.Finish(nil)
	}()
	if err := p.ProcessSession(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	// Rejected dispatch must not chime.
	disp.resp = wire.Response{Ok: false, Error: wire.ErrUnknownAction}
	s2 := asr.NewSession()
	go func() {
		s2.Emit(asr.TranscriptEvent{Text: "bad", IsFinal: true})
		s2.Finish(nil)
	}()
	if err := p.ProcessSession(context.Background(), s2); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if chimes != 1 {
		t.Errorf("expected exactly one chime, got %d", chimes)
	}
}

func TestPipeline_RunRetriesUnavailableBackend(t *testing.T) {
	t.Parallel()

	router := &scriptedRouter{matches: map[string]nlu.Match{
		"open sunroof": {Command: nlu.Command{Group: "Roof", Name: "Open"}},
	}}
	disp := &recordingDispatcher{resp: wire.Response{Ok: true}}
	p := &Pipeline{Router: router, Dispatcher: disp, RestartDelay: 5 * time.Millisecond}

	rec := &scriptedRecognizer{
		dialErr: asr.ErrBackendUnavailable,
		scripts: [][]asr.TranscriptEvent{
			{{Text: "open sunroof", IsFinal: true}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, rec, nilSource{}) }()

	deadline := time.After(3 * time.Second)
	for len(disp.dispatched()) == 0 {
		select {
		case <-deadline:
			t.Fatal("pipeline never dispatched after backend recovery")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not stop on cancel")
	}

	rec.mu.Lock()
	streams := rec.streams
	rec.mu.Unlock()
	if streams < 2 {
		t.Errorf("expected at least one retry, got %d stream attempts", streams)
	}
}

func TestPipeline_RunFailsFastOnUnexpectedError(t *testing.T) {
	t.Parallel()

	boom := errors.New("corrupt handshake")
	rec := &scriptedRecognizer{dialErr: boom}
	p := &Pipeline{
		Router:       &scriptedRouter{},
		Dispatcher:   &recordingDispatcher{},
		RestartDelay: time.Millisecond,
	}

	err := p.Run(context.Background(), rec, nilSource{})
	if !errors.Is(err, boom) {
		t.Errorf("expected the stream error to propagate, got %v", err)
	}
}
