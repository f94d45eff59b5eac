// Package video is the libVLC playback backend. It is compiled only with
// the vlc build tag, since it needs libVLC and its headers:
//
//	go build -tags vlc
//
// With a direct sink the player draws into the window's native handle.
// With a composite sink libVLC plays audio only and frames for the
// conversion stage come from ffmpeg.
package video
