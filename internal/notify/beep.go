// Package notify plays a short confirmation chime after an accepted voice
// command. The tone is generated in memory, so there is no audio asset to
// ship alongside the binary.
package notify

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const (
	toneHz     = 880
	toneLen    = 120 * time.Millisecond
	sampleRate = beep.SampleRate(44100)
)

var initOnce sync.Once

// Chime plays the confirmation tone and waits for it to finish. The speaker
// is initialised on first use and shared for the process lifetime.
func Chime() error {
	var initErr error
	initOnce.Do(func() {
		initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	if initErr != nil {
		return fmt.Errorf("notify: speaker init: %w", initErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(
		beep.Take(sampleRate.N(toneLen), sine(toneHz)),
		beep.Callback(func() { close(done) }),
	))
	<-done
	return nil
}

// sine is an endless sine-wave streamer at the given frequency.
func sine(freq float64) beep.Streamer {
	var pos int
	step := freq / float64(sampleRate)
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := 0.3 * math.Sin(2*math.Pi*step*float64(pos))
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return len(samples), true
	})
}
