// Package player launches the external video player (C10) and
// classifies its exit as ok/aborted/error.
package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/animecore/animecore/pkg/catalog"
)

// Outcome is the three-way result of a playback attempt (§4.10).
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeAborted Outcome = "aborted"
	OutcomeError   Outcome = "error"
)

// Config carries the launch options named in §4.10: fullscreen,
// cursor autohide, on-disk stream caching, minimum readahead, and
// playback speed.
type Config struct {
	PlayerPath       string
	Fullscreen       bool
	CursorAutohide   bool
	CacheEnabled     bool
	ReadaheadSeconds int
	PlaybackSpeed    float64
	MaxHeight        int // yt-dlp-style format ceiling, e.g. 1080
}

// Driver launches a configured player binary as a subprocess.
type Driver struct {
	cfg Config
}

// New returns a Driver. A zero-value PlayerPath defaults to "mpv",
// matching the genre of player the Wraient-pair CLI wraps externally.
func New(cfg Config) *Driver {
	if cfg.PlayerPath == "" {
		cfg.PlayerPath = "mpv"
	}
	if cfg.ReadaheadSeconds < 30 {
		cfg.ReadaheadSeconds = 30
	}
	if cfg.PlaybackSpeed <= 0 {
		cfg.PlaybackSpeed = 1.0
	}
	return &Driver{cfg: cfg}
}

// Play launches the player against stream and blocks until it exits.
func (d *Driver) Play(ctx context.Context, stream *catalog.VideoStream, title string) (Outcome, error) {
	args := d.args(stream, title)

	cmd := exec.CommandContext(ctx, d.cfg.PlayerPath, args...)
	err := cmd.Run()

	if ctx.Err() != nil {
		return OutcomeAborted, ctx.Err()
	}
	if err == nil {
		return OutcomeOK, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return OutcomeAborted, nil
		}
		return OutcomeError, fmt.Errorf("player exited with status %d", exitErr.ExitCode())
	}
	return OutcomeError, fmt.Errorf("launch player: %w", err)
}

func (d *Driver) args(stream *catalog.VideoStream, title string) []string {
	args := []string{stream.URL}

	if d.cfg.Fullscreen {
		args = append(args, "--fullscreen")
	}
	if d.cfg.CursorAutohide {
		args = append(args, "--cursor-autohide=1000")
	}
	if d.cfg.CacheEnabled {
		args = append(args, "--cache=yes")
	}
	args = append(args, "--demuxer-readahead-secs="+strconv.Itoa(d.cfg.ReadaheadSeconds))
	if d.cfg.PlaybackSpeed != 1.0 {
		args = append(args, "--speed="+strconv.FormatFloat(d.cfg.PlaybackSpeed, 'f', -1, 64))
	}
	if d.cfg.MaxHeight > 0 {
		args = append(args, "--ytdl-format=bestvideo[height<=?"+strconv.Itoa(d.cfg.MaxHeight)+"]+bestaudio/best")
	}
	if title != "" {
		args = append(args, "--force-media-title="+title)
	}
	for header, value := range stream.Headers {
		args = append(args, "--http-header-fields="+header+": "+value)
	}

	return args
}
