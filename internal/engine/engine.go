// Package engine owns the single media pipeline of a window. It builds the
// sink graph on first use, tags every source load with a generation and
// delivers pipeline events on the control loop, dropping those that belong
// to an abandoned load.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gemini/internal/sink"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

var (
	// ErrSeekRejected means the duration of the source is not known yet.
	// It is not a failure.
	ErrSeekRejected = errors.New("seek rejected: duration unknown")
	// ErrSourceLoad wraps the reason a source could not be loaded.
	ErrSourceLoad = errors.New("source load failed")
)

// Config wires an Engine to its collaborators.
type Config struct {
	Builder sink.Builder
	Backend Backend
	// Dispatch runs fn on the control loop. It must not run fn synchronously
	// and must preserve call order.
	Dispatch func(fn func())
	// OnEvent receives current-generation events on the control loop.
	OnEvent func(Event)
	Log     *logrus.Entry
}

// Engine drives one pipeline. Except for Close and Generation, its methods
// must be called on the control loop.
type Engine struct {
	cfg Config
	log *logrus.Entry

	graph    func() (*sink.Graph, error)
	pipeline func() (Pipeline, error)
	pump     *conc.WaitGroup

	gen    atomic.Uint64
	built  atomic.Bool
	closed atomic.Bool
	once   sync.Once

	// Owned by the control loop.
	uri      string
	ready    bool
	duration mo.Option[time.Duration]
	position mo.Option[time.Duration]
}

// New returns an engine. Nothing is built until Prepare.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = logrus.WithField("component", "engine")
	}
	e := &Engine{cfg: cfg, log: log}
	e.graph = sync.OnceValues(e.buildGraph)
	e.pipeline = sync.OnceValues(e.openPipeline)
	return e
}

func (e *Engine) buildGraph() (*sink.Graph, error) {
	e.built.Store(true)
	if e.cfg.Builder == nil {
		return nil, fmt.Errorf("%w: no sink builder", sink.ErrSinkUnavailable)
	}
	return e.cfg.Builder.Build()
}

func (e *Engine) openPipeline() (Pipeline, error) {
	g, err := e.graph()
	if err != nil {
		return nil, err
	}
	if e.cfg.Backend == nil {
		return nil, fmt.Errorf("%w: no playback backend", sink.ErrSinkUnavailable)
	}
	p, err := e.cfg.Backend.Open(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %s pipeline: %v", sink.ErrSinkUnavailable, e.cfg.Backend.Name(), err)
	}

	e.pump = conc.NewWaitGroup()
	events := p.Events()
	e.pump.Go(func() {
		for ev := range events {
			e.post(ev)
		}
	})
	e.log.WithFields(logrus.Fields{
		"backend":     e.cfg.Backend.Name(),
		"accelerated": g.Accelerated(),
	}).Debug("pipeline ready")
	return p, nil
}

// Prepare builds the sink graph and opens the pipeline. Later calls return
// the first result. The returned error wraps sink.ErrSinkUnavailable.
func (e *Engine) Prepare() error {
	_, err := e.pipeline()
	return err
}

// Accelerated reports whether the graph renders through a hardware context.
func (e *Engine) Accelerated() bool {
	if e.Prepare() != nil {
		return false
	}
	g, _ := e.graph()
	return g.Accelerated()
}

// Generation is the tag of the most recent SetSource.
func (e *Engine) Generation() uint64 { return e.gen.Load() }

// SetSource abandons the current load and starts loading uri. It does not
// block; readiness arrives as a DurationKnown event and failures as a
// PlaybackError event.
func (e *Engine) SetSource(uri string) uint64 {
	gen := e.gen.Add(1)
	e.uri = uri
	e.ready = false
	e.duration = mo.None[time.Duration]()
	e.position = mo.None[time.Duration]()

	p, err := e.pipeline()
	if err != nil {
		e.post(Failure(gen, err))
		return gen
	}
	e.log.WithFields(logrus.Fields{"uri": uri, "gen": gen}).Info("loading source")
	if err := p.Load(gen, uri); err != nil {
		e.post(Failure(gen, fmt.Errorf("%w: %s: %v", ErrSourceLoad, uri, err)))
	}
	return gen
}

// Play starts playback. It is a no-op before the source is ready.
func (e *Engine) Play() bool {
	return e.transport("play", Pipeline.Play)
}

// Pause pauses playback. It is a no-op before the source is ready.
func (e *Engine) Pause() bool {
	return e.transport("pause", Pipeline.Pause)
}

func (e *Engine) transport(op string, fn func(Pipeline) error) bool {
	p, err := e.pipeline()
	if err != nil || !e.ready {
		e.log.WithFields(logrus.Fields{"op": op, "gen": e.gen.Load()}).Warn("transport command before source is ready")
		return false
	}
	if err := fn(p); err != nil {
		e.post(Failure(e.gen.Load(), fmt.Errorf("%s: %w", op, err)))
		return false
	}
	return true
}

// Seek moves to target clamped to [0, duration] and returns the position
// applied. It returns ErrSeekRejected while the duration is unknown.
func (e *Engine) Seek(target time.Duration) (time.Duration, error) {
	total, ok := e.duration.Get()
	if !ok {
		return 0, ErrSeekRejected
	}
	p, err := e.pipeline()
	if err != nil {
		return 0, ErrSeekRejected
	}

	pos := lo.Clamp(target, 0, total)
	if err := p.Seek(pos); err != nil {
		e.log.WithError(err).WithField("position", pos).Warn("seek failed")
	}
	e.position = mo.Some(pos)
	return pos, nil
}

// Sample returns the latest position and duration of the current source.
func (e *Engine) Sample() PositionSample {
	s := PositionSample{Duration: e.duration, Elapsed: e.position}
	if !e.ready {
		return s
	}
	p, err := e.pipeline()
	if err != nil {
		return s
	}
	if pos, err := p.Position(); err == nil && pos >= 0 {
		s.Elapsed = mo.Some(pos)
	}
	return s
}

// Close releases the pipeline and the sink graph, including a graph whose
// pipeline failed to open. Events still queued on the control loop are
// dropped.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		e.closed.Store(true)
		if !e.built.Load() {
			return
		}
		if p, perr := e.pipeline(); perr == nil {
			err = p.Close()
			e.pump.Wait()
		}
		if g, gerr := e.graph(); gerr == nil {
			err = multierr.Append(err, g.Close())
		}
	})
	return err
}

func (e *Engine) post(ev Event) {
	if e.cfg.Dispatch == nil {
		return
	}
	e.cfg.Dispatch(func() { e.deliver(ev) })
}

// deliver runs on the control loop.
func (e *Engine) deliver(ev Event) {
	if e.closed.Load() {
		return
	}
	if cur := e.gen.Load(); ev.Gen != cur {
		e.log.WithFields(logrus.Fields{"event": ev.Kind, "gen": ev.Gen, "current": cur}).Debug("dropping stale event")
		return
	}

	switch ev.Kind {
	case DurationKnown:
		e.duration = mo.Some(ev.Value)
		e.ready = true
	case PositionAdvanced:
		e.position = mo.Some(ev.Value)
	case PlaybackError:
		e.ready = false
		e.log.WithError(ev.Err).WithField("uri", e.uri).Warn("playback error")
	}
	if e.cfg.OnEvent != nil {
		e.cfg.OnEvent(ev)
	}
}
