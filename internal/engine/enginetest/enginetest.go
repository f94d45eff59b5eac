// Package enginetest provides in-memory pipelines, backends and a control
// loop for tests of code built on package engine.
package enginetest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gemini/internal/engine"
	"gemini/internal/sink"
)

// Loop is a control loop driven by the test. Do queues a callback; Drain and
// Await run them on the calling goroutine.
type Loop struct {
	q chan func()
}

func NewLoop() *Loop {
	return &Loop{q: make(chan func(), 1024)}
}

// Do queues fn. It matches the engine.Config Dispatch signature.
func (l *Loop) Do(fn func()) { l.q <- fn }

// Drain runs queued callbacks, including ones they queue, until none are
// left. It returns how many ran.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.q:
			fn()
			n++
		default:
			return n
		}
	}
}

// Await runs n callbacks, waiting up to timeout for each, then drains the
// rest. It reports false if a callback did not arrive in time.
func (l *Loop) Await(n int, timeout time.Duration) bool {
	for range n {
		select {
		case fn := <-l.q:
			fn()
		case <-time.After(timeout):
			return false
		}
	}
	l.Drain()
	return true
}

// Pending reports how many callbacks are queued.
func (l *Loop) Pending() int { return len(l.q) }

// Load records one Pipeline.Load call.
type Load struct {
	Gen uint64
	URI string
}

// Pipeline is an engine.Pipeline that records commands. Events are injected
// with Emit.
type Pipeline struct {
	LoadErr error
	PlayErr error

	mu       sync.Mutex
	loads    []Load
	plays    int
	pauses   int
	seeks    []time.Duration
	position time.Duration
	closed   bool
	events   chan engine.Event
}

func NewPipeline() *Pipeline {
	return &Pipeline{events: make(chan engine.Event, 64)}
}

func (p *Pipeline) Load(gen uint64, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, Load{Gen: gen, URI: uri})
	p.position = 0
	return p.LoadErr
}

func (p *Pipeline) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return p.PlayErr
}

func (p *Pipeline) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
	return nil
}

func (p *Pipeline) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, pos)
	p.position = pos
	return nil
}

func (p *Pipeline) Position() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, nil
}

func (p *Pipeline) Events() <-chan engine.Event { return p.events }

func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	return nil
}

// Emit posts ev as if the media framework produced it. It is dropped after
// Close.
func (p *Pipeline) Emit(ev engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.events <- ev
}

// SetPosition sets what Position reports.
func (p *Pipeline) SetPosition(pos time.Duration) {
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
}

func (p *Pipeline) Loads() []Load {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Load(nil), p.loads...)
}

// LastGen is the generation of the most recent Load, or 0.
func (p *Pipeline) LastGen() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.loads) == 0 {
		return 0
	}
	return p.loads[len(p.loads)-1].Gen
}

func (p *Pipeline) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func (p *Pipeline) Pauses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauses
}

func (p *Pipeline) Seeks() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.seeks...)
}

func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Backend opens Pipe, or fails with OpenErr.
type Backend struct {
	Pipe    *Pipeline
	OpenErr error

	opens atomic.Int32
}

func (b *Backend) Name() string  { return "fake" }
func (b *Backend) Priority() int { return 0 }

func (b *Backend) OpenAudio() (sink.Audio, error) {
	return sink.NewOutput("fake", nil), nil
}

func (b *Backend) Open(g *sink.Graph) (engine.Pipeline, error) {
	b.opens.Add(1)
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	if g == nil {
		return nil, errors.New("nil graph")
	}
	return b.Pipe, nil
}

// Opens reports how many pipelines were opened.
func (b *Backend) Opens() int { return int(b.opens.Load()) }

// Builder returns a fixed graph and counts Build calls.
type Builder struct {
	Err error

	builds atomic.Int32
	closed atomic.Int32
}

func (b *Builder) Build() (*sink.Graph, error) {
	b.builds.Add(1)
	if b.Err != nil {
		return nil, b.Err
	}
	return &sink.Graph{
		Audio: sink.NewOutput("fake", func() error {
			b.closed.Add(1)
			return nil
		}),
		Video: sink.NewDirect(sink.Context{Platform: sink.PlatformX11, Handle: 1}),
	}, nil
}

// Builds reports how many graphs were built.
func (b *Builder) Builds() int { return int(b.builds.Load()) }

// Released reports how many graphs had their audio output closed.
func (b *Builder) Released() int { return int(b.closed.Load()) }
