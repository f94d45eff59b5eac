package ui

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAction(t *testing.T) {
	tests := []struct {
		key  fyne.KeyName
		want action
	}{
		{fyne.KeySpace, togglePlay},
		{fyne.KeyF11, toggleFullscreen},
		{fyne.KeyF, toggleFullscreen},
		{fyne.KeyEscape, leaveFullscreen},
		{fyne.KeyLeft, seekBack},
		{fyne.KeyRight, seekForward},
		{fyne.KeyReturn, noAction},
		{fyne.KeyUp, noAction},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyAction(tt.key), string(tt.key))
	}
}

func TestArgURI(t *testing.T) {
	assert.Equal(t, "https://example.com/a.mp4", ArgURI("https://example.com/a.mp4"))
	assert.Equal(t, "file:///music/a.mp3", ArgURI("file:///music/a.mp3"))
	assert.Equal(t, "", ArgURI("  "))

	got := ArgURI("clip.mp4")
	abs, err := filepath.Abs("clip.mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "file://"), got)
	assert.Equal(t, storage.NewFileURI(abs).String(), got)
}

func TestURIStrings(t *testing.T) {
	uris := []fyne.URI{
		storage.NewFileURI("/a.mp4"),
		nil,
		storage.NewFileURI("/b.mp4"),
	}
	assert.Equal(t, []string{"file:///a.mp4", "file:///b.mp4"}, uriStrings(uris))
	assert.Empty(t, uriStrings(nil))
}

type pickedReader struct {
	io.Reader
	uri    fyne.URI
	closed bool
}

func (r *pickedReader) URI() fyne.URI { return r.uri }
func (r *pickedReader) Close() error  { r.closed = true; return nil }

func TestPickedFile(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		_, ok, err := pickedFile(nil, nil)
		assert.False(t, ok)
		assert.NoError(t, err)
	})

	t.Run("read error", func(t *testing.T) {
		uris, ok, err := pickedFile(nil, errors.New("denied"))
		assert.True(t, ok)
		assert.Empty(t, uris)
		assert.EqualError(t, err, "denied")
	})

	t.Run("chosen", func(t *testing.T) {
		r := &pickedReader{Reader: strings.NewReader(""), uri: storage.NewFileURI("/movies/x.mkv")}
		uris, ok, err := pickedFile(r, nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"file:///movies/x.mkv"}, uris)
		assert.True(t, r.closed)
	})
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "", displayName(""))
	assert.Equal(t, "song.mp3", displayName("file:///music/song.mp3"))
	assert.Equal(t, "stream.m3u8", displayName("https://example.com/live/stream.m3u8"))
}
