//go:build !android && !ios

// Package discord mirrors what the player is doing into Discord Rich
// Presence. IPC happens on a worker goroutine; the control loop only hands
// over the latest state.
package discord

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gemini/internal/observe"

	"github.com/hugolgst/rich-go/client"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// DefaultClientID is the Discord application of the player.
const DefaultClientID = "1433179062808875028"

const reconnectCooldown = 2 * time.Second

// RPC is the part of rich-go the presence uses.
type RPC interface {
	Login(clientID string) error
	SetActivity(a client.Activity) error
	Logout()
}

type richGo struct{}

func (richGo) Login(id string) error               { return client.Login(id) }
func (richGo) SetActivity(a client.Activity) error { return client.SetActivity(a) }
func (richGo) Logout()                             { client.Logout() }

// Config selects the Discord application.
type Config struct {
	ClientID string
	// RPC and Available default to rich-go and an IPC socket probe.
	RPC       RPC
	Available func() bool
	Log       *logrus.Entry
}

type update struct {
	uri     string
	playing bool
}

// Presence publishes the current source and play state.
type Presence struct {
	clientID  string
	rpc       RPC
	available func() bool
	log       *logrus.Entry

	mu                 sync.Mutex
	connected          bool
	lastURI            string
	startTime          time.Time
	lastConnectAttempt time.Time
	latest             update

	wake chan struct{}
	quit chan struct{}
	wg   *conc.WaitGroup
	once sync.Once
}

// New starts the presence worker. Call Close to log out.
func New(cfg Config) *Presence {
	p := &Presence{
		clientID:  cfg.ClientID,
		rpc:       cfg.RPC,
		available: cfg.Available,
		log:       cfg.Log,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		wg:        conc.NewWaitGroup(),
	}
	if p.clientID == "" {
		p.clientID = DefaultClientID
	}
	if p.rpc == nil {
		p.rpc = richGo{}
	}
	if p.available == nil {
		p.available = ipcAvailable
	}
	if p.log == nil {
		p.log = logrus.WithField("component", "discord")
	}
	p.wg.Go(p.run)
	return p
}

// Follow publishes every change of uri and playing until the returned
// function is called. It must be called on the goroutine that sets them.
func (p *Presence) Follow(uri *observe.Value[string], playing *observe.Value[bool]) (stop func()) {
	cancelURI := uri.Subscribe(func(u string) { p.push(func(s *update) { s.uri = u }) })
	cancelPlaying := playing.Subscribe(func(on bool) { p.push(func(s *update) { s.playing = on }) })
	return func() {
		cancelURI()
		cancelPlaying()
	}
}

// push records the change and wakes the worker without blocking. Only the
// latest state is ever sent.
func (p *Presence) push(apply func(*update)) {
	p.mu.Lock()
	apply(&p.latest)
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Presence) run() {
	for {
		select {
		case <-p.quit:
			return
		case <-p.wake:
			p.mu.Lock()
			u := p.latest
			p.mu.Unlock()

			var err error
			if u.uri == "" {
				err = p.clear()
			} else {
				err = p.publish(u.uri, !u.playing)
			}
			if err != nil {
				p.log.WithError(err).Debug("presence update failed")
			}
		}
	}
}

// Close stops the worker and logs out.
func (p *Presence) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.connected {
			p.rpc.Logout()
			p.connected = false
		}
	})
}

// connect logs in, at most once per cooldown. p.mu must be held.
func (p *Presence) connect() bool {
	if p.connected {
		return true
	}
	if time.Since(p.lastConnectAttempt) < reconnectCooldown || !p.available() {
		return false
	}
	p.lastConnectAttempt = time.Now()
	if err := p.rpc.Login(p.clientID); err != nil {
		p.log.WithError(err).Debug("discord login failed")
		return false
	}
	p.connected = true
	return true
}

// Title is what the presence shows for uri: the file name without its
// extension.
func Title(uri string) string {
	base := uri
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if u, err := url.PathUnescape(base); err == nil {
		base = u
	}
	if title := strings.TrimSuffix(base, filepath.Ext(base)); title != "" {
		return title
	}
	return uri
}

func (p *Presence) publish(uri string, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connect() {
		return nil
	}

	if p.lastURI != uri {
		p.startTime = time.Now()
		p.lastURI = uri
	}
	activity := client.Activity{
		Details:    Title(uri),
		State:      "Gemini",
		LargeImage: "gemini_logo",
		LargeText:  "Gemini",
		Timestamps: &client.Timestamps{Start: &p.startTime},
		SmallImage: "play",
		SmallText:  "Playing",
	}
	if paused {
		activity.SmallImage = "pause"
		activity.SmallText = "Paused"
	}

	err := p.rpc.SetActivity(activity)
	if err == nil || !brokenPipe(err) {
		return err
	}
	// Discord restarted or closed: reconnect once and retry.
	p.rpc.Logout()
	p.connected = false
	if p.connect() {
		return p.rpc.SetActivity(activity)
	}
	return nil
}

func (p *Presence) clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastURI = ""
	if !p.connected {
		return nil
	}
	if err := p.rpc.SetActivity(client.Activity{}); err != nil {
		if brokenPipe(err) {
			p.rpc.Logout()
			p.connected = false
			return nil
		}
		return err
	}
	return nil
}

func brokenPipe(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"broken pipe", "use of closed network connection", "connection reset", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// ipcAvailable checks for a Discord IPC socket on this OS.
func ipcAvailable() bool {
	var pattern string
	switch runtime.GOOS {
	case "linux":
		pattern = filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "discord-ipc-*")
	case "darwin":
		pattern = "/tmp/discord-ipc-*"
	default:
		// Best effort elsewhere: let Login find out.
		return true
	}
	matches, _ := filepath.Glob(pattern)
	for _, m := range matches {
		if c, err := net.DialTimeout("unix", m, 200*time.Millisecond); err == nil {
			_ = c.Close()
			return true
		}
	}
	return false
}
