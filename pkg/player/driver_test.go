package player

import (
	"context"
	"testing"

	"github.com/animecore/animecore/pkg/catalog"
	"github.com/stretchr/testify/require"
)

func TestArgsIncludesReadaheadAndFullscreen(t *testing.T) {
	d := New(Config{Fullscreen: true, ReadaheadSeconds: 60, MaxHeight: 1080})
	args := d.args(&catalog.VideoStream{URL: "http://example/ep1.m3u8"}, "Episode 1")

	require.Contains(t, args, "--fullscreen")
	require.Contains(t, args, "--demuxer-readahead-secs=60")
	require.Contains(t, args, "--ytdl-format=bestvideo[height<=?1080]+bestaudio/best")
	require.Contains(t, args, "--force-media-title=Episode 1")
}

func TestNewClampsReadaheadAndSpeed(t *testing.T) {
	d := New(Config{ReadaheadSeconds: 5, PlaybackSpeed: 0})
	require.Equal(t, 30, d.cfg.ReadaheadSeconds)
	require.Equal(t, 1.0, d.cfg.PlaybackSpeed)
}

func TestPlayUnknownBinaryReturnsError(t *testing.T) {
	d := New(Config{PlayerPath: "this-binary-does-not-exist-animecore"})
	outcome, err := d.Play(context.Background(), &catalog.VideoStream{URL: "http://example/ep1.m3u8"}, "")
	require.Error(t, err)
	require.Equal(t, OutcomeError, outcome)
}
