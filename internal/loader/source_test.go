package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/rig"
)

const miniVRM = `{
  "asset": {"version": "2.0"},
  "nodes": [{"name": "Head"}],
  "extensions": {"VRMC_vrm": {"humanoid": {"humanBones": {"head": {"node": 0}}}}}
}`

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Mia_Neutral.gltf")
	require.NoError(t, os.WriteFile(path, []byte(miniVRM), 0o644))

	src := FileSource{Paths: map[mood.Category]string{mood.CategoryNeutral: path}}

	h, err := src.Load(context.Background(), mood.CategoryNeutral)
	require.NoError(t, err)
	assert.Equal(t, rig.FormatVRM1, h.Format)

	_, err = src.Load(context.Background(), mood.CategoryScared)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx, mood.CategoryNeutral)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlaceholderSourceHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PlaceholderSource{Delay: time.Hour}.Load(ctx, mood.CategoryScared)
	assert.ErrorIs(t, err, context.Canceled)

	h, err := PlaceholderSource{}.Load(context.Background(), mood.CategoryScared)
	require.NoError(t, err)
	assert.Equal(t, "scared", h.Name)
}

type failingSource struct{}

func (failingSource) Load(context.Context, mood.Category) (*rig.Humanoid, error) {
	return nil, errors.New("no file")
}

func TestFallbackSource(t *testing.T) {
	src := FallbackSource{Primary: failingSource{}, Secondary: PlaceholderSource{}}
	h, err := src.Load(context.Background(), mood.CategoryNeutral)
	require.NoError(t, err)
	assert.Equal(t, rig.FormatPlaceholder, h.Format)

	_, err = FallbackSource{Primary: failingSource{}}.Load(context.Background(), mood.CategoryNeutral)
	assert.Error(t, err)
}

func TestWatcherReportsChangedAsset(t *testing.T) {
	dir := t.TempDir()
	neutral := filepath.Join(dir, "Mia_Neutral.vrm")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(neutral, []byte("v1"), 0o644))

	var changed atomic.Int32
	w, err := NewWatcher(map[mood.Category]string{mood.CategoryNeutral: neutral}, 20*time.Millisecond,
		func(cat mood.Category) {
			if cat == mood.CategoryNeutral {
				changed.Add(1)
			}
		}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(neutral, []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(neutral, []byte("v3"), 0o644))

	assert.Eventually(t, func() bool { return changed.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, w.Close())
}
