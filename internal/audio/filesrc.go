package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/omotayoh/vRvoice/pkg/audioconv"
)

// FileSource replays a recorded audio file through the frame queue at the
// live capture cadence, so the full pipeline can run without a microphone.
type FileSource struct {
	path  string
	cfg   CaptureConfig
	queue *Queue
}

// NewFileSource prepares a replay of path into q using the capture framing.
func NewFileSource(path string, cfg CaptureConfig, q *Queue) *FileSource {
	return &FileSource{path: path, cfg: cfg, queue: q}
}

// Run decodes the file and pushes one frame per chunk period until the file
// or ctx is exhausted. Frames that do not fit the queue are dropped with a
// warning, same as live capture.
func (s *FileSource) Run(ctx context.Context) error {
	samples, err := audioconv.DecodeFile(ctx, s.path, s.cfg.SampleRate, audioconv.Options{})
	if err != nil {
		return fmt.Errorf("audio: decode %q: %w", s.path, err)
	}

	blocksize := s.cfg.Blocksize()
	log.Info("Replaying audio file", "path", s.path, "samples", len(samples), "blocksize", blocksize)

	ticker := time.NewTicker(s.cfg.ChunkDur)
	defer ticker.Stop()

	for off := 0; off < len(samples); off += blocksize {
		end := off + blocksize
		if end > len(samples) {
			end = len(samples)
		}
		if !s.queue.TryPut(audioconv.PCM16Bytes(samples[off:end])) {
			log.Warn("Audio queue full; replay frame dropped", "offset", off)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}

	log.Info("Audio file replay finished", "path", s.path)
	return nil
}
