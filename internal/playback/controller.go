// Package playback is the state machine behind a player window. It turns
// UI intents into engine operations, folds engine events and position
// samples back into observable state, and keeps the position poller armed
// exactly while playing.
//
// A Controller is confined to the control loop: every method, and every
// callback it receives, runs on the goroutine that drains Config.Dispatch.
package playback

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"gemini/internal/engine"
	"gemini/internal/observe"
	"gemini/internal/poller"
	"gemini/internal/sink"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 500 * time.Millisecond

// maxSeekSeconds bounds seek targets before they become a time.Duration.
const maxSeekSeconds = 1e9

// SeekResult tells a caller what a seek intent did.
type SeekResult int

const (
	// SeekApplied means the pipeline was moved to the clamped target.
	SeekApplied SeekResult = iota
	// SeekRejected means the duration is not known yet. Nothing changed.
	SeekRejected
	// SeekIgnored means there is nothing seekable.
	SeekIgnored
)

func (r SeekResult) String() string {
	switch r {
	case SeekApplied:
		return "applied"
	case SeekRejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Config wires a Controller.
type Config struct {
	Builder sink.Builder
	Backend engine.Backend
	// Dispatch runs fn on the control loop, later and in call order.
	Dispatch     func(fn func())
	PollInterval time.Duration
	// NewTicker defaults to a time.Ticker.
	NewTicker func(time.Duration) poller.Ticker
	Log       *logrus.Entry
}

// Controller owns one engine and the observable state of a window.
type Controller struct {
	log      *logrus.Entry
	interval time.Duration
	engine   func() (*engine.Engine, error)
	poller   *poller.Poller
	closed   atomic.Bool
	// ended is set when the stream ran out; the next play restarts it.
	ended bool

	state       *observe.Value[State]
	uri         *observe.Value[string]
	playing     *observe.Value[bool]
	fullscreen  *observe.Value[bool]
	enabled     *observe.Value[bool]
	controls    *observe.Value[Controls]
	sliderRange *observe.Value[Range]
	sliderPos   *observe.Value[float64]
	elapsed     *observe.Value[string]
	total       *observe.Value[string]
	icon        *observe.Value[string]
	err         *observe.Value[error]
}

// New builds the controller and its engine. The error wraps
// sink.ErrSinkUnavailable when nothing could ever be played in the window.
func New(cfg Config) (*Controller, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.WithField("component", "playback")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c := &Controller{
		log:         log,
		interval:    interval,
		state:       observe.New(Idle),
		uri:         observe.New(""),
		playing:     observe.New(false),
		fullscreen:  observe.New(false),
		enabled:     observe.New(false),
		controls:    observe.New(Controls{}),
		sliderRange: observe.New(Range{}),
		sliderPos:   observe.New(0.0),
		elapsed:     observe.New(FormatClock(0)),
		total:       observe.New(FormatClock(0)),
		icon:        observe.New(IconPlay),
		err:         observe.NewWithEqual[error](nil, nil),
	}

	// Background callbacks only see the controller through a weak pointer.
	ref := weak.Make(c)
	live := func() *Controller {
		if c := ref.Value(); c != nil && !c.closed.Load() {
			return c
		}
		return nil
	}

	c.poller = poller.New(poller.Config{
		Dispatch: cfg.Dispatch,
		Tick: func() {
			if c := live(); c != nil {
				c.onTick()
			}
		},
		NewTicker: cfg.NewTicker,
		Log:       log.WithField("component", "poller"),
	})

	c.engine = sync.OnceValues(func() (*engine.Engine, error) {
		e := engine.New(engine.Config{
			Builder:  cfg.Builder,
			Backend:  cfg.Backend,
			Dispatch: cfg.Dispatch,
			OnEvent: func(ev engine.Event) {
				if c := live(); c != nil {
					c.onEvent(ev)
				}
			},
			Log: log.WithField("component", "engine"),
		})
		if err := e.Prepare(); err != nil {
			_ = e.Close()
			return nil, err
		}
		return e, nil
	})
	if _, err := c.engine(); err != nil {
		return nil, err
	}
	return c, nil
}

// State is the current playback state.
func (c *Controller) State() *observe.Value[State] { return c.state }

// URI is the active source, empty while Idle.
func (c *Controller) URI() *observe.Value[string] { return c.uri }

func (c *Controller) Playing() *observe.Value[bool] { return c.playing }

func (c *Controller) Fullscreen() *observe.Value[bool] { return c.fullscreen }

// ControlsEnabled is true in Ready, Playing and Paused.
func (c *Controller) ControlsEnabled() *observe.Value[bool] { return c.enabled }

// Controls is the per-widget form of ControlsEnabled.
func (c *Controller) Controls() *observe.Value[Controls] { return c.controls }

// SliderRange is [0, duration] in seconds once the duration is known.
func (c *Controller) SliderRange() *observe.Value[Range] { return c.sliderRange }

// SliderPosition is the displayed position in seconds.
func (c *Controller) SliderPosition() *observe.Value[float64] { return c.sliderPos }

func (c *Controller) ElapsedText() *observe.Value[string] { return c.elapsed }

func (c *Controller) DurationText() *observe.Value[string] { return c.total }

// Icon is the play/pause button icon name.
func (c *Controller) Icon() *observe.Value[string] { return c.icon }

// Error holds the last playback failure. It is cleared by LoadSource.
func (c *Controller) Error() *observe.Value[error] { return c.err }

// Polling reports whether position sampling is armed.
func (c *Controller) Polling() bool { return c.poller.Active() }

// Accelerated reports whether video renders through a hardware context.
func (c *Controller) Accelerated() bool {
	e, err := c.engine()
	return err == nil && e.Accelerated()
}

// LoadSource makes uri the active source. Any state is left for Loading.
func (c *Controller) LoadSource(uri string) {
	if c.closed.Load() {
		c.log.WithField("uri", uri).Debug("load after close ignored")
		return
	}
	e, err := c.engine()
	if err != nil {
		return
	}

	c.setState(Loading)
	c.ended = false
	c.err.Set(nil)
	c.uri.Set(uri)
	c.sliderRange.Set(Range{})
	c.total.Set(FormatClock(0))
	c.showPosition(0)
	e.SetSource(uri)
}

// TogglePlay plays from Ready or Paused and pauses from Playing.
func (c *Controller) TogglePlay() {
	if c.closed.Load() {
		return
	}
	e, err := c.engine()
	if err != nil {
		return
	}

	switch st := c.state.Get(); st {
	case Ready, Paused:
		if c.ended {
			if _, err := e.Seek(0); err == nil {
				c.showPosition(0)
			}
			c.ended = false
		}
		if e.Play() {
			c.setState(Playing)
		}
	case Playing:
		if e.Pause() {
			c.setState(Paused)
		}
	default:
		c.log.WithField("state", st).Debug("toggle play ignored")
	}
}

// Seek moves playback to seconds, clamped to the source duration. The
// position display updates immediately.
func (c *Controller) Seek(seconds float64) SeekResult {
	if c.closed.Load() || math.IsNaN(seconds) {
		return SeekIgnored
	}
	e, err := c.engine()
	if err != nil {
		return SeekIgnored
	}
	switch c.state.Get() {
	case Loading, Ready, Playing, Paused:
	default:
		return SeekIgnored
	}

	target := time.Duration(lo.Clamp(seconds, -maxSeekSeconds, maxSeekSeconds) * float64(time.Second))
	pos, err := e.Seek(target)
	if errors.Is(err, engine.ErrSeekRejected) {
		c.log.WithField("target", target).Debug("seek rejected, duration unknown")
		return SeekRejected
	}
	c.ended = false
	c.showPosition(pos)
	return SeekApplied
}

// SeekBy moves playback relative to the displayed position.
func (c *Controller) SeekBy(delta time.Duration) SeekResult {
	return c.Seek(c.sliderPos.Get() + delta.Seconds())
}

// ToggleFullscreen flips the fullscreen flag. Playback state is untouched.
func (c *Controller) ToggleFullscreen() {
	c.fullscreen.Set(!c.fullscreen.Get())
}

// SetFullscreen sets the fullscreen flag.
func (c *Controller) SetFullscreen(on bool) {
	c.fullscreen.Set(on)
}

// Previous acknowledges the intent. There is no playlist.
func (c *Controller) Previous() {
	c.log.WithField("uri", c.uri.Get()).Debug("previous requested")
}

// Next acknowledges the intent. There is no playlist.
func (c *Controller) Next() {
	c.log.WithField("uri", c.uri.Get()).Debug("next requested")
}

// Close stops sampling and releases the engine. Later intents are ignored.
func (c *Controller) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.poller.Stop()
	e, err := c.engine()
	if err != nil {
		return nil
	}
	return e.Close()
}

// setState is the only writer of state. It keeps the poller armed iff the
// new state is Playing, stopping it before anything is published.
func (c *Controller) setState(s State) {
	prev := c.state.Get()
	if s != Playing {
		c.poller.Stop()
	}

	c.state.Set(s)
	c.playing.Set(s == Playing)
	c.icon.Set(Icon(s))
	c.controls.Set(ControlsFor(s))
	c.enabled.Set(s.ControlsEnabled())

	if s == Playing && !c.poller.Active() {
		c.poller.Start(c.interval)
	}
	if prev != s {
		c.log.WithFields(logrus.Fields{"from": prev, "to": s}).Debug("state changed")
	}
}

func (c *Controller) onEvent(ev engine.Event) {
	st := c.state.Get()
	switch ev.Kind {
	case engine.DurationKnown:
		c.sliderRange.Set(Range{Min: 0, Max: ev.Value.Seconds()})
		c.total.Set(FormatClock(ev.Value))
		if st == Loading {
			c.setState(Ready)
			c.showPosition(0)
		}

	case engine.PositionAdvanced:
		if st.ControlsEnabled() {
			c.showPosition(ev.Value)
		}

	case engine.PlaybackError:
		c.log.WithError(ev.Err).WithField("uri", c.uri.Get()).Error("playback failed")
		c.err.Set(ev.Err)
		c.setState(Errored)

	case engine.EndReached:
		if st == Playing || st == Paused {
			c.ended = true
			c.showPosition(time.Duration(c.sliderRange.Get().Max * float64(time.Second)))
			c.setState(Ready)
		}
	}
}

func (c *Controller) onTick() {
	if c.state.Get() != Playing {
		return
	}
	e, err := c.engine()
	if err != nil {
		return
	}
	if pos, ok := e.Sample().Elapsed.Get(); ok {
		c.showPosition(pos)
	}
}

// showPosition updates slider and elapsed text, clamped to the known range.
func (c *Controller) showPosition(pos time.Duration) {
	secs := math.Max(pos.Seconds(), 0)
	if r := c.sliderRange.Get(); r.Max > 0 {
		secs = math.Min(secs, r.Max)
	}
	c.sliderPos.Set(secs)
	c.elapsed.Set(FormatClock(time.Duration(secs * float64(time.Second))))
}
