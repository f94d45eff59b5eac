//go:build android || ios

package player

import (
	"errors"

	"gemini/internal/engine"
	"gemini/internal/sink"
)

// Backend is registered so "beep" resolves on mobile, but there is no
// speaker there, so every graph build fails with SinkUnavailable.
type Backend struct{}

func init() { engine.Register(Backend{}) }

func (Backend) Name() string  { return "beep" }
func (Backend) Priority() int { return 10 }

func (Backend) OpenAudio() (sink.Audio, error) {
	return nil, errors.New("no speaker on this platform")
}

func (Backend) Open(*sink.Graph) (engine.Pipeline, error) {
	return nil, errors.New("no speaker on this platform")
}
