//go:build mpv && !android && !ios

package mpv

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gemini/internal/engine"
	"gemini/internal/sink"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	libmpv "github.com/wildeyedskies/go-mpv/mpv"
)

// Backend registers libmpv as "mpv".
type Backend struct{}

func init() { engine.Register(Backend{}) }

func (Backend) Name() string  { return "mpv" }
func (Backend) Priority() int { return 20 }

// OpenAudio reports mpv's own audio output. It is created with the player.
func (Backend) OpenAudio() (sink.Audio, error) {
	return sink.NewOutput("mpv", nil), nil
}

// Open creates and initialises an mpv handle for g.
func (Backend) Open(g *sink.Graph) (engine.Pipeline, error) {
	m := libmpv.Create()
	if m == nil {
		return nil, errors.New("mpv_create failed")
	}
	p := &Player{
		m:      m,
		log:    logrus.WithField("component", "mpv"),
		events: make(chan engine.Event, 32),
		done:   make(chan struct{}),
	}

	opts := [][2]string{
		{"idle", "yes"},
		{"keep-open", "yes"},
		{"pause", "yes"},
		{"audio-display", "no"},
		{"terminal", "no"},
	}
	switch video := g.Video.(type) {
	case *sink.Direct:
		if err := m.SetOption("wid", libmpv.FORMAT_INT64, int64(video.Context().Handle)); err != nil {
			m.TerminateDestroy()
			return nil, fmt.Errorf("mpv wid: %w", err)
		}
	case *sink.Composite:
		opts = append(opts, [2]string{"video", "no"})
		p.frames = &sink.FramePump{
			Grabber:  sink.FFmpeg{Width: video.Width()},
			Sink:     video,
			Interval: video.Interval(),
			Log:      p.log,
		}
		video.Clear()
	default:
		m.TerminateDestroy()
		return nil, fmt.Errorf("unsupported video sink %T", g.Video)
	}
	for _, o := range opts {
		if err := m.SetOptionString(o[0], o[1]); err != nil {
			m.TerminateDestroy()
			return nil, fmt.Errorf("mpv option %s: %w", o[0], err)
		}
	}
	if err := m.Initialize(); err != nil {
		m.TerminateDestroy()
		return nil, err
	}
	if err := m.ObserveProperty(0, "eof-reached", libmpv.FORMAT_FLAG); err != nil {
		m.TerminateDestroy()
		return nil, err
	}

	p.loop = conc.NewWaitGroup()
	p.loop.Go(p.pump)
	return p, nil
}

// Player is an mpv pipeline. mpv reports files in the order they were
// loaded, so each START_FILE is matched to the oldest pending load.
type Player struct {
	m      *libmpv.Mpv
	log    *logrus.Entry
	frames *sink.FramePump

	mu      sync.Mutex
	uri     string
	pending []uint64
	current uint64
	loaded  bool
	ended   bool

	events chan engine.Event
	done   chan struct{}
	once   sync.Once
	loop   *conc.WaitGroup
}

func (p *Player) Events() <-chan engine.Event { return p.events }

func (p *Player) Load(gen uint64, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames.Stop()
	if err := p.m.SetProperty("pause", libmpv.FORMAT_FLAG, true); err != nil {
		p.log.WithError(err).Debug("pause before load")
	}
	if err := p.m.Command([]string{"loadfile", uri, "replace"}); err != nil {
		return err
	}
	p.pending = append(p.pending, gen)
	p.uri = uri
	return nil
}

func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.m.SetProperty("pause", libmpv.FORMAT_FLAG, false); err != nil {
		return err
	}
	p.ended = false
	if p.frames != nil {
		p.frames.Start(p.uri, p.position)
	}
	return nil
}

func (p *Player) Pause() error {
	p.frames.Stop()
	return p.m.SetProperty("pause", libmpv.FORMAT_FLAG, true)
}

func (p *Player) Seek(pos time.Duration) error {
	secs := strconv.FormatFloat(pos.Seconds(), 'f', 3, 64)
	return p.m.Command([]string{"seek", secs, "absolute"})
}

func (p *Player) Position() (time.Duration, error) {
	v, err := p.m.GetProperty("time-pos", libmpv.FORMAT_DOUBLE)
	if err != nil {
		return 0, err
	}
	secs, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("time-pos: unexpected %T", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (p *Player) position() (time.Duration, bool) {
	if paused, err := p.m.GetProperty("pause", libmpv.FORMAT_FLAG); err != nil || paused == true {
		return 0, false
	}
	pos, err := p.Position()
	return pos, err == nil
}

func (p *Player) duration() (time.Duration, bool) {
	v, err := p.m.GetProperty("duration", libmpv.FORMAT_DOUBLE)
	if err != nil {
		return 0, false
	}
	secs, ok := v.(float64)
	if !ok || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func (p *Player) pump() {
	for {
		select {
		case <-p.done:
			return
		default:
		}
		e := p.m.WaitEvent(1)
		if e == nil || e.Event_Id == libmpv.EVENT_NONE {
			continue
		}
		if e.Event_Id == libmpv.EVENT_SHUTDOWN {
			return
		}
		if ev, ok := p.translate(e); ok {
			select {
			case p.events <- ev:
			case <-p.done:
				return
			}
		}
	}
}

// translate maps an mpv event to an engine event for the file it belongs to.
func (p *Player) translate(e *libmpv.Event) (engine.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Event_Id {
	case libmpv.EVENT_START_FILE:
		if len(p.pending) > 0 {
			p.current, p.pending = p.pending[0], p.pending[1:]
		}
		p.loaded, p.ended = false, false

	case libmpv.EVENT_FILE_LOADED:
		p.loaded = true
		if d, ok := p.duration(); ok {
			return engine.Duration(p.current, d), true
		}
		p.log.WithField("uri", p.uri).Warn("mpv reports no duration")

	case libmpv.EVENT_END_FILE:
		if e.Error != nil {
			return engine.Failure(p.current, fmt.Errorf("%w: %v", engine.ErrSourceLoad, e.Error)), true
		}
		if !p.loaded {
			return engine.Failure(p.current, fmt.Errorf("%w: mpv could not open %s", engine.ErrSourceLoad, p.uri)), true
		}

	case libmpv.EVENT_PROPERTY_CHANGE:
		eof, err := p.m.GetProperty("eof-reached", libmpv.FORMAT_FLAG)
		if err == nil && eof == true && p.loaded && !p.ended {
			p.ended = true
			return engine.End(p.current), true
		}
	}
	return engine.Event{}, false
}

// Close stops the event pump, destroys the handle and closes Events.
func (p *Player) Close() error {
	p.once.Do(func() {
		p.frames.Stop()
		close(p.done)
		p.loop.Wait()
		p.m.TerminateDestroy()
		close(p.events)
	})
	return nil
}
