//go:build vlc && !android && !ios

package video

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gemini/internal/engine"
	"gemini/internal/sink"

	vlc "github.com/adrg/libvlc-go/v3"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

// Backend registers libVLC as "vlc".
type Backend struct{}

func init() { engine.Register(Backend{}) }

func (Backend) Name() string  { return "vlc" }
func (Backend) Priority() int { return 30 }

// OpenAudio initialises libVLC. Its audio output is created per player, so
// a failing Init is the only thing that can go wrong here.
func (Backend) OpenAudio() (sink.Audio, error) {
	if err := vlc.Init("--quiet", "--no-video-title-show"); err != nil {
		return nil, fmt.Errorf("libvlc init: %w", err)
	}
	return sink.NewOutput("libvlc", vlc.Release), nil
}

// Open creates a libVLC player. A direct sink embeds the video output in
// the native window; a composite sink runs libVLC without video and feeds
// the conversion stage from ffmpeg.
func (Backend) Open(g *sink.Graph) (engine.Pipeline, error) {
	p, err := vlc.NewPlayer()
	if err != nil {
		return nil, err
	}
	v := &Player{
		p:       p,
		events:  make(chan engine.Event, 32),
		signals: make(chan signal, 64),
		log:     logrus.WithField("component", "vlc"),
	}

	switch video := g.Video.(type) {
	case *sink.Direct:
		if err := embed(p, video.Context()); err != nil {
			_ = p.Release()
			return nil, err
		}
	case *sink.Composite:
		v.headless = true
		v.frames = &sink.FramePump{
			Grabber:  sink.FFmpeg{Width: video.Width()},
			Sink:     video,
			Interval: video.Interval(),
			Log:      v.log,
		}
		video.Clear()
	default:
		_ = p.Release()
		return nil, fmt.Errorf("unsupported video sink %T", g.Video)
	}

	v.worker = conc.NewWaitGroup()
	v.worker.Go(v.work)
	return v, nil
}

func embed(p *vlc.Player, ctx sink.Context) error {
	switch ctx.Platform {
	case sink.PlatformX11:
		return p.SetXWindow(uint32(ctx.Handle))
	case sink.PlatformWindows:
		return p.SetHWND(ctx.Handle)
	case sink.PlatformDarwin:
		return p.SetNSObject(ctx.Handle)
	}
	return fmt.Errorf("libvlc cannot embed into %s", ctx.Platform)
}

type signalKind int

const (
	durationChanged signalKind = iota
	stateChanged
)

// signal carries a libVLC callback to the worker. libVLC must not be called
// back into from its own callbacks.
type signal struct {
	gen  uint64
	kind signalKind
}

// Player is a libVLC pipeline.
type Player struct {
	p        *vlc.Player
	log      *logrus.Entry
	headless bool
	frames   *sink.FramePump

	mu       sync.Mutex
	gen      uint64
	uri      string
	media    *vlc.Media
	detach   func()
	reported bool
	closed   bool

	signals chan signal
	events  chan engine.Event
	worker  *conc.WaitGroup
}

func (v *Player) Events() <-chan engine.Event { return v.events }

func newMedia(uri string) (*vlc.Media, error) {
	if strings.Contains(uri, "://") {
		return vlc.NewMediaFromURL(uri)
	}
	return vlc.NewMediaFromPath(uri)
}

// Load replaces the media and starts parsing it. Duration arrives through
// the media's event manager.
func (v *Player) Load(gen uint64, uri string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errors.New("pipeline closed")
	}

	v.frames.Stop()
	_ = v.p.Stop()
	v.dropMedia()
	v.gen, v.uri, v.reported = gen, uri, false

	m, err := newMedia(uri)
	if err != nil {
		return err
	}
	if v.headless {
		if err := m.AddOptions(":no-video"); err != nil {
			m.Release()
			return err
		}
	}
	detach, err := v.watch(m, gen)
	if err != nil {
		m.Release()
		return err
	}
	if err := v.p.SetMedia(m); err != nil {
		detach()
		m.Release()
		return err
	}
	v.media, v.detach = m, detach

	if err := m.ParseWithOptions(-1, vlc.MediaParseLocal, vlc.MediaParseNetwork); err != nil {
		v.log.WithError(err).Debug("media parse request failed, waiting for playback to report length")
	}
	return nil
}

// watch forwards media events for gen to the worker.
func (v *Player) watch(m *vlc.Media, gen uint64) (func(), error) {
	em, err := m.EventManager()
	if err != nil {
		return nil, err
	}
	forward := func(kind signalKind) vlc.EventCallback {
		return func(vlc.Event, interface{}) {
			select {
			case v.signals <- signal{gen: gen, kind: kind}:
			default:
			}
		}
	}

	var ids []vlc.EventID
	for event, kind := range map[vlc.Event]signalKind{
		vlc.MediaDurationChanged: durationChanged,
		vlc.MediaParsedChanged:   durationChanged,
		vlc.MediaStateChanged:    stateChanged,
	} {
		id, err := em.Attach(event, forward(kind), nil)
		if err != nil {
			em.Detach(ids...)
			return nil, err
		}
		ids = append(ids, id)
	}
	return func() { em.Detach(ids...) }, nil
}

// dropMedia releases the current media. v.mu must be held.
func (v *Player) dropMedia() {
	if v.media == nil {
		return
	}
	v.detach()
	v.media.Release()
	v.media, v.detach = nil, nil
}

func (v *Player) work() {
	for sig := range v.signals {
		if ev, ok := v.inspect(sig); ok {
			v.events <- ev
		}
	}
}

// inspect turns a signal into an event if it still belongs to the current
// media.
func (v *Player) inspect(sig signal) (engine.Event, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || sig.gen != v.gen || v.media == nil {
		return engine.Event{}, false
	}

	switch sig.kind {
	case durationChanged:
		d, err := v.media.Duration()
		if err != nil || d <= 0 || v.reported {
			return engine.Event{}, false
		}
		v.reported = true
		return engine.Duration(sig.gen, d), true
	case stateChanged:
		st, err := v.media.State()
		if err != nil {
			return engine.Event{}, false
		}
		switch st {
		case vlc.MediaEnded:
			v.frames.Stop()
			return engine.End(sig.gen), true
		case vlc.MediaError:
			return engine.Failure(sig.gen, fmt.Errorf("%w: libvlc could not play %s", engine.ErrSourceLoad, v.uri)), true
		}
	}
	return engine.Event{}, false
}

func (v *Player) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.p.Play(); err != nil {
		return err
	}
	if v.headless {
		v.frames.Start(v.uri, v.position)
	}
	return nil
}

func (v *Player) Pause() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames.Stop()
	return v.p.SetPause(true)
}

func (v *Player) Seek(pos time.Duration) error {
	return v.p.SetMediaTime(int(pos / time.Millisecond))
}

func (v *Player) Position() (time.Duration, error) {
	ms, err := v.p.MediaTime()
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (v *Player) position() (time.Duration, bool) {
	if !v.p.IsPlaying() {
		return 0, false
	}
	pos, err := v.Position()
	return pos, err == nil
}

// Close stops playback, releases libVLC objects and closes Events.
func (v *Player) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.frames.Stop()
	err := v.p.Stop()
	v.dropMedia()
	err = multierr.Append(err, v.p.Release())
	close(v.signals)
	v.mu.Unlock()

	v.worker.Wait()
	close(v.events)
	return err
}
