package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// CaptureConfig describes the microphone stream.
type CaptureConfig struct {
	SampleRate int           // Hz, e.g. 16000
	ChunkDur   time.Duration // duration of one frame, e.g. 100ms
}

// Blocksize returns the number of samples per frame.
func (c CaptureConfig) Blocksize() int {
	return int(float64(c.SampleRate) * c.ChunkDur.Seconds())
}

// Capture owns the portaudio input stream and feeds the frame queue from the
// device callback. The callback does nothing but a non-blocking enqueue;
// dropped frames are counted and reported from the control loop instead.
type Capture struct {
	cfg     CaptureConfig
	queue   *Queue
	stream  *portaudio.Stream
	dropped atomic.Uint64
}

// NewCapture prepares a capture against q. Start must be called before Run.
func NewCapture(cfg CaptureConfig, q *Queue) *Capture {
	return &Capture{cfg: cfg, queue: q}
}

// Start initializes portaudio and opens the default input device. A device
// that cannot be opened is a startup error; capture never limps along.
func (c *Capture) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: init portaudio: %w", err)
	}

	blocksize := c.cfg.Blocksize()
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.cfg.SampleRate), blocksize, c.callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("audio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("audio: start input stream: %w", err)
	}

	c.stream = stream
	log.Info("Capture started", "sample_rate", c.cfg.SampleRate, "blocksize", blocksize)
	return nil
}

// callback runs in the portaudio realtime context. Enqueue or drop, nothing else.
func (c *Capture) callback(in []int16) {
	frame := make(Frame, len(in)*2)
	for i, s := range in {
		frame[2*i] = byte(s)
		frame[2*i+1] = byte(s >> 8)
	}
	if !c.queue.TryPut(frame) {
		c.dropped.Add(1)
	}
}

// Run reports queue overflow until ctx is cancelled, then stops the stream.
func (c *Capture) Run(ctx context.Context) error {
	defer c.Stop()

	var reported uint64
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := c.dropped.Load(); n > reported {
				log.Warn("Audio queue full; frames dropped", "dropped", n-reported, "total", n)
				reported = n
			}
		}
	}
}

// Stop tears down the stream and portaudio. Safe to call once after Start.
func (c *Capture) Stop() {
	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
		c.stream = nil
		portaudio.Terminate()
		log.Info("Capture stopped", "dropped_total", c.dropped.Load())
	}
}
