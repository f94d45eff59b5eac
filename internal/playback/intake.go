package playback

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// ErrEmptyIntake means a drop or file selection yielded no source.
var ErrEmptyIntake = errors.New("no source in selection")

// ParseIntake picks the source from a dropped or opened file list. Only the
// first candidate counts.
func ParseIntake(uris []string, readErr error) (string, error) {
	if readErr != nil {
		return "", readErr
	}
	first, ok := lo.First(uris)
	if !ok || strings.TrimSpace(first) == "" {
		return "", ErrEmptyIntake
	}
	return strings.TrimSpace(first), nil
}

// Open loads the first of uris. A read failure or an empty list is logged
// and leaves the state as it was.
func (c *Controller) Open(uris []string, readErr error) error {
	uri, err := ParseIntake(uris, readErr)
	if err != nil {
		c.log.WithError(err).WithField("candidates", len(uris)).Error("file intake failed")
		return err
	}
	if len(uris) > 1 {
		c.log.WithField("dropped", len(uris)-1).Debug("using the first candidate only")
	}
	c.LoadSource(uri)
	return nil
}
