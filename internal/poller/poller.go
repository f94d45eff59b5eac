// Package poller samples playback position on a fixed interval while
// playback runs.
package poller

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// Ticker is the subset of *time.Ticker the poller uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ *time.Ticker }

func (t stdTicker) C() <-chan time.Time { return t.Ticker.C }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }

// Config wires a Poller.
type Config struct {
	// Dispatch runs fn on the control loop.
	Dispatch func(fn func())
	// Tick is called on the control loop once per interval.
	Tick      func()
	NewTicker func(time.Duration) Ticker
	Log       *logrus.Entry
}

// Poller arms at most one periodic sampling at a time.
type Poller struct {
	cfg Config

	mu     sync.Mutex
	quit   chan struct{}
	wg     *conc.WaitGroup
	ticker Ticker

	// epoch invalidates ticks already handed to Dispatch when Stop runs.
	epoch atomic.Uint64
}

func New(cfg Config) *Poller {
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTicker
	}
	if cfg.Log == nil {
		cfg.Log = logrus.WithField("component", "poller")
	}
	return &Poller{cfg: cfg}
}

// Start arms sampling every interval. A running instance is stopped first,
// so there is never more than one.
func (p *Poller) Start(interval time.Duration) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	epoch := p.epoch.Load()
	quit := make(chan struct{})
	ticker := p.cfg.NewTicker(interval)
	p.quit, p.ticker = quit, ticker
	p.wg = conc.NewWaitGroup()
	p.wg.Go(func() {
		for {
			select {
			case <-quit:
				return
			case <-ticker.C():
				p.cfg.Dispatch(func() { p.fire(epoch) })
			}
		}
	})
	p.cfg.Log.WithField("interval", interval).Debug("position polling started")
}

// Stop cancels sampling and returns once the sampling goroutine has exited.
// It is a no-op when not running.
func (p *Poller) Stop() {
	p.mu.Lock()
	quit, wg, ticker := p.quit, p.wg, p.ticker
	p.quit, p.wg, p.ticker = nil, nil, nil
	p.mu.Unlock()

	if quit == nil {
		return
	}
	p.epoch.Add(1)
	close(quit)
	wg.Wait()
	ticker.Stop()
	p.cfg.Log.Debug("position polling stopped")
}

// Active reports whether sampling is armed.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quit != nil
}

func (p *Poller) fire(epoch uint64) {
	if p.epoch.Load() != epoch {
		return
	}
	p.cfg.Tick()
}
