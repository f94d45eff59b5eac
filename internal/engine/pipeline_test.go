package engine

import (
	"testing"

	"gemini/internal/sink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedBackend struct {
	name     string
	priority int
}

func (b namedBackend) Name() string                       { return b.name }
func (b namedBackend) Priority() int                      { return b.priority }
func (b namedBackend) OpenAudio() (sink.Audio, error)     { return nil, nil }
func (b namedBackend) Open(*sink.Graph) (Pipeline, error) { return nil, nil }

func init() {
	Register(namedBackend{"low", 1})
	Register(namedBackend{"high", 5})
}

func TestLookup(t *testing.T) {
	b, err := Lookup("auto")
	require.NoError(t, err)
	assert.Equal(t, "high", b.Name())

	b, err = Lookup(" LOW ")
	require.NoError(t, err)
	assert.Equal(t, "low", b.Name())

	_, err = Lookup("gstreamer")
	assert.ErrorIs(t, err, sink.ErrSinkUnavailable)
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Panics(t, func() { Register(namedBackend{"high", 0}) })
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "DurationKnown", DurationKnown.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
