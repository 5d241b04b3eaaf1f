package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, parseLogLevel(&Config{LogLevel: in}), in)
	}
	require.Equal(t, slog.LevelInfo, parseLogLevel(nil))
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	ctx := context.Background()

	quiet := NewLogger(&Config{LogLevel: "error"})
	require.False(t, quiet.Enabled(ctx, slog.LevelInfo))
	require.True(t, quiet.Enabled(ctx, slog.LevelError))

	verbose := NewLogger(&Config{LogLevel: "debug"})
	require.True(t, verbose.Enabled(ctx, slog.LevelDebug))
}
