package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"go.uber.org/zap"
)

type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StateIdle    PlaybackState = "idle"
)

// pollInterval is how often the watcher checks for natural completion.
const pollInterval = 15 * time.Millisecond

// speaker abstracts the audio device so the driver can be tested headless.
type speaker interface {
	play(sampleRate, channelCount int, pcm []byte) (handle, error)
}

type handle interface {
	IsPlaying() bool
	Close() error
}

// Driver owns the one active playback handle. Starting a new clip stops
// the previous one; natural completion transitions back to idle without an
// explicit Stop.
type Driver struct {
	speaker  speaker
	logger   *zap.Logger
	observer func(PlaybackState)

	mu         sync.Mutex
	active     handle
	generation uint64
}

func NewDriver(logger *zap.Logger) *Driver {
	return &Driver{speaker: &otoSpeaker{}, logger: logger}
}

// SetObserver registers the callback notified on every state transition.
// Must be called before the first Play.
func (d *Driver) SetObserver(fn func(PlaybackState)) {
	d.observer = fn
}

// Play encodes the buffer back to interleaved PCM16 and starts it on the
// speaker, stopping whatever was playing first.
func (d *Driver) Play(buf *Buffer) error {
	if buf == nil || buf.FrameCount() == 0 {
		return fmt.Errorf("empty audio buffer")
	}
	pcm := Encode(buf)

	d.mu.Lock()
	if d.active != nil {
		if err := d.active.Close(); err != nil {
			d.logger.Warn("closing previous playback handle", zap.Error(err))
		}
		d.active = nil
	}

	h, err := d.speaker.play(buf.SampleRate, len(buf.Channels), pcm)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("start playback: %w", err)
	}

	d.generation++
	gen := d.generation
	d.active = h
	d.mu.Unlock()

	d.notify(StatePlaying)
	go d.watch(gen, h)
	return nil
}

// watch polls the handle until the clip runs out, then releases it. A
// Stop or a newer Play bumps the generation, which makes this watcher
// leave the handle alone.
func (d *Driver) watch(gen uint64, h handle) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if h.IsPlaying() {
			continue
		}

		d.mu.Lock()
		stillActive := d.generation == gen && d.active == h
		if stillActive {
			d.active = nil
		}
		d.mu.Unlock()

		if stillActive {
			if err := h.Close(); err != nil {
				d.logger.Warn("closing finished playback handle", zap.Error(err))
			}
			d.notify(StateIdle)
		}
		return
	}
}

// Stop halts the active handle. Calling it when nothing is playing is a
// no-op, not an error.
func (d *Driver) Stop() {
	d.mu.Lock()
	h := d.active
	d.active = nil
	if h != nil {
		d.generation++
	}
	d.mu.Unlock()

	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		d.logger.Warn("closing stopped playback handle", zap.Error(err))
	}
	d.notify(StateIdle)
}

func (d *Driver) State() PlaybackState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil {
		return StatePlaying
	}
	return StateIdle
}

func (d *Driver) notify(state PlaybackState) {
	if d.observer != nil {
		d.observer(state)
	}
}

// otoSpeaker plays through the device speaker. oto allows one context per
// process with a fixed format, so the first clip pins the format; speech
// is always 24kHz mono in practice.
type otoSpeaker struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

func (s *otoSpeaker) play(sampleRate, channelCount int, pcm []byte) (handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		ctx, ready, err := oto.NewContext(sampleRate, channelCount, bytesPerSample)
		if err != nil {
			return nil, fmt.Errorf("oto context: %w", err)
		}
		<-ready
		s.ctx = ctx
		s.sampleRate = sampleRate
		s.channels = channelCount
	} else if sampleRate != s.sampleRate || channelCount != s.channels {
		return nil, fmt.Errorf("speaker pinned to %dHz/%dch, cannot play %dHz/%dch",
			s.sampleRate, s.channels, sampleRate, channelCount)
	}

	player := s.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	return player, nil
}
