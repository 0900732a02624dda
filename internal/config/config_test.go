package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Second, cfg.Chat.RevertAfter)
	assert.Equal(t, 5*time.Second, cfg.Idle.MinPeriod)
	assert.Equal(t, 15*time.Second, cfg.Idle.MaxPeriod)
	assert.Equal(t, "Mia_Neutral.vrm", cfg.Avatar.NeutralAsset)
	assert.Equal(t, "Mia_Scared.vrm", cfg.Avatar.ScaredAsset)
	assert.Equal(t, 4<<20, cfg.Feed.MaxEventBytes)
}

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// The written file round-trips.
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Caption.Timing(), again.Caption.Timing())
	assert.Equal(t, cfg.Avatar.Motion, again.Avatar.Motion)
	assert.Equal(t, cfg.Chat.AlarmTerms, again.Chat.AlarmTerms)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  fps: 30
chat:
  alarm_terms: ["spider"]
caption:
  intervals:
    thinking: 80ms
idle:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Server.FPS)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Listen)
	assert.Equal(t, []string{"spider"}, cfg.Chat.AlarmTerms)
	assert.False(t, cfg.Idle.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Idle.MaxPeriod)

	tm := cfg.Caption.Timing()
	assert.Equal(t, 80*time.Millisecond, tm.Interval(mood.Thinking))
	assert.Equal(t, 35*time.Millisecond, tm.Interval(mood.Speaking))
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("MIA_AVATAR_SERVER_LISTEN", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Listen)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.FPS = 0
	cfg.Idle.MaxPeriod = cfg.Idle.MinPeriod
	cfg.Caption.Intervals["sleepy"] = time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.fps")
	assert.Contains(t, err.Error(), "idle.max_period")
	assert.ErrorIs(t, err, mood.ErrUnknownMood)
}

func TestAssetPaths(t *testing.T) {
	a := DefaultConfig().Avatar
	a.AssetDir = "/srv/mia"
	a.ScaredAsset = "/opt/Scared.vrm"

	paths := a.AssetPaths()
	assert.Equal(t, filepath.Join("/srv/mia", "Mia_Neutral.vrm"), paths[mood.CategoryNeutral])
	assert.Equal(t, "/opt/Scared.vrm", paths[mood.CategoryScared])
}
