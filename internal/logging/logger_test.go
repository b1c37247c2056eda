package logging

import (
	"os"
	"strings"
	"testing"
	"time"

	"fwe/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_FileSinkWritesCategories(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Level: "debug", Dir: dir, File: "dashboard.log"})
	require.NoError(t, err)

	l.Get(CategoryTransport).Info("sent", zap.String("endpoint", "http://x/run-scenario"))
	l.Get(CategoryRun).Debug("resolved")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasSuffix(l.Path(), "_dashboard.log"))
	assert.Contains(t, out, `"logger":"transport"`)
	assert.Contains(t, out, `"endpoint":"http://x/run-scenario"`)
	assert.Contains(t, out, `"logger":"run"`)
}

func TestNew_DisabledCategoryIsSilent(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{
		Level:      "debug",
		Dir:        dir,
		Categories: map[string]bool{"history": false},
	})
	require.NoError(t, err)

	assert.False(t, l.IsCategoryEnabled(CategoryHistory))
	assert.True(t, l.IsCategoryEnabled(CategorySweep))

	l.Get(CategoryHistory).Info("should not appear")
	l.Get(CategorySweep).Info("visible")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "visible")
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Level: "warn", Dir: dir})
	require.NoError(t, err)

	l.Get(CategoryBoot).Info("quiet")
	l.Get(CategoryBoot).Warn("loud")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestNew_VerboseForcesDebug(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Level: "error", Verbose: true, Dir: dir})
	require.NoError(t, err)

	l.Get(CategoryBoot).Debug("trace")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "trace")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestOptionsFromConfig(t *testing.T) {
	c := config.DefaultConfig().Logging

	opts := OptionsFromConfig(c, "/ws/.fwe/logs", false, false)
	assert.Empty(t, opts.Dir)
	assert.Equal(t, "info", opts.Level)

	opts = OptionsFromConfig(c, "/ws/.fwe/logs", true, false)
	assert.Equal(t, "/ws/.fwe/logs", opts.Dir)

	c.DebugMode = true
	opts = OptionsFromConfig(c, "/ws/.fwe/logs", false, false)
	assert.Equal(t, "/ws/.fwe/logs", opts.Dir)
	assert.Equal(t, "debug", opts.Level)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Get(CategoryRun).Info("dropped")
	assert.NoError(t, l.Close())
	assert.Empty(t, l.Path())
}

func TestTimer_StopWithThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	StartTimer(logger, "scenario call").StopWithThreshold(time.Hour)
	timer := StartTimer(logger, "scenario call")
	timer.start = time.Now().Add(-2 * time.Second)
	timer.StopWithThreshold(time.Second)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "scenario call completed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "scenario call slow", entries[1].Message)
}
