package controller

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/caption"
	"github.com/fulopkrisztian-prog/Mia/internal/config"
	"github.com/fulopkrisztian-prog/Mia/internal/loader"
)

// OptionsFromConfig builds controller options from the loaded config. Model
// files come from the avatar section; with placeholders enabled a missing or
// broken asset falls back to a synthetic model.
func OptionsFromConfig(cfg *config.Config, pub bus.Publisher, logger zerolog.Logger) (Options, error) {
	pack := caption.DefaultPack()
	if cfg.Caption.PhrasesFile != "" {
		p, err := caption.LoadPack(cfg.Caption.PhrasesFile)
		if err != nil {
			return Options{}, fmt.Errorf("load phrases: %w", err)
		}
		pack = p
	}

	return Options{
		Source:      SourceFromConfig(cfg.Avatar),
		Pack:        pack,
		Humanizer:   cfg.Caption.Humanize,
		Timing:      cfg.Caption.Timing(),
		Motion:      cfg.Avatar.Motion,
		Idle:        cfg.Idle,
		AlarmTerms:  cfg.Chat.AlarmTerms,
		RevertAfter: cfg.Chat.RevertAfter,
		Publisher:   pub,
		Logger:      logger,
	}, nil
}

// SourceFromConfig returns the model source for the avatar section.
func SourceFromConfig(a config.AvatarConfig) loader.Source {
	files := loader.FileSource{Paths: a.AssetPaths()}
	if !a.Placeholder {
		return files
	}
	return loader.FallbackSource{
		Primary:   files,
		Secondary: loader.PlaceholderSource{Delay: a.LoadDelay},
	}
}
