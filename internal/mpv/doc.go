// Package mpv is the libmpv playback backend, compiled with the mpv build
// tag. A direct sink hands mpv the native window through its wid option.
package mpv
