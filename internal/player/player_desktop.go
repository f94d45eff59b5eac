//go:build !android && !ios

// Package player is the audio-only playback backend, built on beep. It
// needs no native media framework, so it is always compiled in and is the
// last choice for "auto".
package player

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gemini/internal/engine"
	"gemini/internal/sink"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// Use a fixed speaker sample rate and resample inputs so the device is
// initialised once.
const speakerSR = beep.SampleRate(44100)

var (
	initSpeaker = sync.OnceValue(func() error {
		return speaker.Init(speakerSR, speakerSR.N(time.Second/10))
	})

	errNoStream = errors.New("no stream loaded")
)

// Backend registers the beep pipeline as "beep".
type Backend struct{}

func init() { engine.Register(Backend{}) }

func (Backend) Name() string  { return "beep" }
func (Backend) Priority() int { return 10 }

// OpenAudio initialises the speaker. Failure means there is no audio device.
func (Backend) OpenAudio() (sink.Audio, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("speaker: %w", err)
	}
	return sink.NewOutput("speaker", func() error {
		speaker.Clear()
		return nil
	}), nil
}

func (Backend) Open(g *sink.Graph) (engine.Pipeline, error) {
	if g == nil || g.Audio == nil {
		return nil, errors.New("beep needs an audio sink")
	}
	if c, ok := g.Video.(*sink.Composite); ok {
		c.Clear()
	}
	return newPipeline(), nil
}

// Player plays local mp3, wav, flac and ogg files through the speaker.
type Player struct {
	mu      sync.Mutex
	gen     uint64
	stream  beep.StreamSeekCloser // decoder stream (seekable)
	ctrl    *beep.Ctrl
	sr      beep.SampleRate // source sample rate
	// started is cleared by the end callback, which runs under the speaker
	// lock and must not take mu.
	started atomic.Bool

	loads  *conc.WaitGroup
	events chan engine.Event
	done   chan struct{}
	closed bool
}

func newPipeline() *Player {
	return &Player{
		loads:  conc.NewWaitGroup(),
		events: make(chan engine.Event, 32),
		done:   make(chan struct{}),
	}
}

func (p *Player) Events() <-chan engine.Event { return p.events }

func (p *Player) emit(ev engine.Event) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

// sourcePath turns a file URI or a plain path into a path.
func sourcePath(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	var (
		st     beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		st, format, err = mp3.Decode(f)
	case ".wav":
		st, format, err = wav.Decode(f)
	case ".flac":
		st, format, err = flac.Decode(f)
	case ".ogg":
		st, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("unsupported format %q", ext)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, err
	}
	return st, format, nil
}

// Load stops the current stream and decodes uri in the background.
func (p *Player) Load(gen uint64, uri string) error {
	path, err := sourcePath(uri)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("pipeline closed")
	}
	p.gen = gen
	p.release()

	p.loads.Go(func() {
		st, format, err := decodeFile(path)
		if err != nil {
			p.emit(engine.Failure(gen, fmt.Errorf("%w: %v", engine.ErrSourceLoad, err)))
			return
		}

		p.mu.Lock()
		if p.gen != gen || p.closed {
			p.mu.Unlock()
			_ = st.Close()
			return
		}
		p.stream = st
		p.sr = format.SampleRate
		p.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, p.sr, speakerSR, st), Paused: true}
		total := p.durationLocked()
		p.mu.Unlock()

		logrus.WithFields(logrus.Fields{"path": path, "rate": format.SampleRate}).Debug("beep stream decoded")
		p.emit(engine.Duration(gen, total))
	})
	return nil
}

// release drops the current stream. p.mu must be held.
func (p *Player) release() {
	if p.stream == nil {
		return
	}
	speaker.Clear()
	_ = p.stream.Close()
	p.stream, p.ctrl = nil, nil
	p.started.Store(false)
}

func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.ctrl == nil {
		return errNoStream
	}
	if !p.started.Swap(true) {
		gen := p.gen
		speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
			p.started.Store(false)
			p.emit(engine.End(gen))
		})))
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return errNoStream
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// Seek moves to the absolute position d.
func (p *Player) Seek(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.sr == 0 {
		return errNoStream
	}
	target := max(p.sr.N(d), 0)
	// Some decoders (e.g. mp3) panic when seeking to exactly Len.
	if l := p.stream.Len(); l > 0 && target >= l {
		target = l - 1
	}
	speaker.Lock()
	defer speaker.Unlock()
	if err := p.stream.Seek(target); err != nil {
		return err
	}
	// Reset the resampler state after a seek.
	p.ctrl.Streamer = beep.Resample(4, p.sr, speakerSR, p.stream)
	return nil
}

func (p *Player) Position() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.sr == 0 {
		return 0, errNoStream
	}
	speaker.Lock()
	pos := p.stream.Position()
	speaker.Unlock()
	return p.sr.D(pos), nil
}

// durationLocked returns the stream length, 0 if unknown. p.mu must be held.
func (p *Player) durationLocked() time.Duration {
	if p.stream == nil || p.sr == 0 {
		return 0
	}
	l := p.stream.Len()
	if l <= 0 {
		return 0
	}
	return p.sr.D(l)
}

// Close stops playback, waits for pending decodes and closes Events.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.release()
	// No end callback can run once the mixer is empty.
	speaker.Clear()
	close(p.done)
	p.mu.Unlock()

	p.loads.Wait()
	close(p.events)
	return nil
}
