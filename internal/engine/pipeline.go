package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gemini/internal/sink"
)

// Pipeline is the media framework an Engine drives. Implementations may use
// their own threads; everything they report goes through Events.
type Pipeline interface {
	// Load replaces the current source without blocking. Events caused by
	// this load must carry gen.
	Load(gen uint64, uri string) error
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Position() (time.Duration, error)
	// Events is closed by Close.
	Events() <-chan Event
	Close() error
}

// Backend opens pipelines of one media framework.
type Backend interface {
	Name() string
	// Priority orders backends for "auto" selection, highest first.
	Priority() int
	// OpenAudio opens the audio output used as the graph's audio sink.
	OpenAudio() (sink.Audio, error)
	// Open creates a pipeline rendering into g.
	Open(g *sink.Graph) (Pipeline, error)
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

// Register makes a backend available by name. It panics on duplicates, like
// database/sql drivers.
func Register(b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	name := strings.ToLower(b.Name())
	if _, dup := backends[name]; dup {
		panic("engine: backend registered twice: " + name)
	}
	backends[name] = b
}

// Backends lists registered backends, preferred first.
func Backends() []Backend {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	list := make([]Backend, 0, len(backends))
	for _, b := range backends {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority() != list[j].Priority() {
			return list[i].Priority() > list[j].Priority()
		}
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Lookup returns the backend called name, or the preferred one for "auto".
func Lookup(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		list := Backends()
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: no playback backend compiled in", sink.ErrSinkUnavailable)
		}
		return list[0], nil
	}

	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: backend %q is not compiled in", sink.ErrSinkUnavailable, name)
	}
	return b, nil
}
