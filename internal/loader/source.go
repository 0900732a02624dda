package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/rig"
)

// Source produces a fresh model for a category. Load runs on its own
// goroutine and should honor ctx.
type Source interface {
	Load(ctx context.Context, cat mood.Category) (*rig.Humanoid, error)
}

// FileSource reads each category from a fixed path.
type FileSource struct {
	Paths map[mood.Category]string
}

func (s FileSource) Load(ctx context.Context, cat mood.Category) (*rig.Humanoid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.Paths[cat]
	if !ok || path == "" {
		return nil, fmt.Errorf("no asset configured for category %q", cat)
	}
	h, err := rig.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s model: %w", cat, err)
	}
	return h, nil
}

// PlaceholderSource builds synthetic models after an optional delay.
type PlaceholderSource struct {
	Delay time.Duration
}

func (s PlaceholderSource) Load(ctx context.Context, cat mood.Category) (*rig.Humanoid, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return rig.NewPlaceholder(string(cat)), nil
}

// FallbackSource tries Primary and falls back to Secondary on error.
type FallbackSource struct {
	Primary   Source
	Secondary Source
}

func (s FallbackSource) Load(ctx context.Context, cat mood.Category) (*rig.Humanoid, error) {
	h, err := s.Primary.Load(ctx, cat)
	if err == nil || s.Secondary == nil || ctx.Err() != nil {
		return h, err
	}
	return s.Secondary.Load(ctx, cat)
}
