package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fulopkrisztian-prog/Mia/internal/animator"
	"github.com/fulopkrisztian-prog/Mia/internal/caption"
	"github.com/fulopkrisztian-prog/Mia/internal/idle"
	"github.com/fulopkrisztian-prog/Mia/internal/logging"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

const (
	dirName   = ".mia-avatar"
	envPrefix = "MIA_AVATAR"
)

type Config struct {
	Avatar  AvatarConfig   `mapstructure:"avatar" yaml:"avatar"`
	Idle    idle.Config    `mapstructure:"idle" yaml:"idle"`
	Caption CaptionConfig  `mapstructure:"caption" yaml:"caption"`
	Chat    ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Server  ServerConfig   `mapstructure:"server" yaml:"server"`
	Feed    FeedConfig     `mapstructure:"feed" yaml:"feed"`
	Log     logging.Config `mapstructure:"log" yaml:"log"`
}

type AvatarConfig struct {
	AssetDir     string          `mapstructure:"asset_dir" yaml:"asset_dir"`
	NeutralAsset string          `mapstructure:"neutral_asset" yaml:"neutral_asset"`
	ScaredAsset  string          `mapstructure:"scared_asset" yaml:"scared_asset"`
	Placeholder  bool            `mapstructure:"placeholder" yaml:"placeholder"` // fall back to a synthetic model when an asset is missing
	LoadDelay    time.Duration   `mapstructure:"load_delay" yaml:"load_delay"`   // artificial delay for placeholder loads
	WatchAssets  bool            `mapstructure:"watch_assets" yaml:"watch_assets"`
	Motion       animator.Params `mapstructure:"motion" yaml:"motion"`
}

// AssetPaths resolves the fixed per-category model files.
func (a AvatarConfig) AssetPaths() map[mood.Category]string {
	resolve := func(name string) string {
		if name == "" || filepath.IsAbs(name) || a.AssetDir == "" {
			return name
		}
		return filepath.Join(a.AssetDir, name)
	}
	return map[mood.Category]string{
		mood.CategoryNeutral: resolve(a.NeutralAsset),
		mood.CategoryScared:  resolve(a.ScaredAsset),
	}
}

type CaptionConfig struct {
	PhrasesFile     string                   `mapstructure:"phrases_file" yaml:"phrases_file"`
	Humanize        caption.Humanizer        `mapstructure:"humanize" yaml:"humanize"`
	Intervals       map[string]time.Duration `mapstructure:"intervals" yaml:"intervals"`
	DefaultInterval time.Duration            `mapstructure:"default_interval" yaml:"default_interval"`
	HideBase        time.Duration            `mapstructure:"hide_base" yaml:"hide_base"`
	HidePerChar     time.Duration            `mapstructure:"hide_per_char" yaml:"hide_per_char"`
	HideMaxExtra    time.Duration            `mapstructure:"hide_max_extra" yaml:"hide_max_extra"`
	Fade            time.Duration            `mapstructure:"fade" yaml:"fade"`
}

// Timing converts the caption section into engine timing.
func (c CaptionConfig) Timing() caption.Timing {
	t := caption.Timing{
		Intervals:    make(map[mood.Mood]time.Duration, len(c.Intervals)),
		Default:      c.DefaultInterval,
		HideBase:     c.HideBase,
		HidePerRune:  c.HidePerChar,
		HideMaxExtra: c.HideMaxExtra,
		Fade:         c.Fade,
	}
	for name, d := range c.Intervals {
		if m, err := mood.Parse(name); err == nil {
			t.Intervals[m] = d
		}
	}
	return t
}

type ChatConfig struct {
	AlarmTerms  []string      `mapstructure:"alarm_terms" yaml:"alarm_terms"`
	RevertAfter time.Duration `mapstructure:"revert_after" yaml:"revert_after"`
}

type ServerConfig struct {
	Listen         string        `mapstructure:"listen" yaml:"listen"`
	FPS            int           `mapstructure:"fps" yaml:"fps"`
	BroadcastHz    float64       `mapstructure:"broadcast_hz" yaml:"broadcast_hz"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type FeedConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay" yaml:"max_reconnect_delay"`
	MaxEventBytes     int           `mapstructure:"max_event_bytes" yaml:"max_event_bytes"`
}

func DefaultConfig() *Config {
	tm := caption.DefaultTiming()
	return &Config{
		Avatar: AvatarConfig{
			AssetDir:     "assets",
			NeutralAsset: "Mia_Neutral.vrm",
			ScaredAsset:  "Mia_Scared.vrm",
			Placeholder:  true,
			WatchAssets:  true,
			Motion:       animator.DefaultParams(),
		},
		Idle: idle.DefaultConfig(),
		Caption: CaptionConfig{
			Humanize: caption.DefaultHumanizer(),
			Intervals: map[string]time.Duration{
				string(mood.Thinking): tm.Intervals[mood.Thinking],
				string(mood.Speaking): tm.Intervals[mood.Speaking],
				string(mood.Scared):   tm.Intervals[mood.Scared],
			},
			DefaultInterval: tm.Default,
			HideBase:        tm.HideBase,
			HidePerChar:     tm.HidePerRune,
			HideMaxExtra:    tm.HideMaxExtra,
			Fade:            tm.Fade,
		},
		Chat: ChatConfig{
			AlarmTerms:  append([]string(nil), mood.DefaultAlarmTerms...),
			RevertAfter: 2000 * time.Millisecond,
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8787",
			FPS:          60,
			BroadcastHz:  30,
			WriteTimeout: 5 * time.Second,
		},
		Feed: FeedConfig{
			ReconnectDelay:    3 * time.Second,
			MaxReconnectDelay: 60 * time.Second,
			MaxEventBytes:     4 << 20,
		},
		Log: *logging.DefaultConfig(),
	}
}

// Validate rejects values the controller cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.FPS <= 0 || c.Server.FPS > 240 {
		errs = append(errs, fmt.Errorf("server.fps must be in 1..240, got %d", c.Server.FPS))
	}
	if c.Server.BroadcastHz <= 0 {
		errs = append(errs, fmt.Errorf("server.broadcast_hz must be positive"))
	}
	if c.Idle.MaxPeriod <= c.Idle.MinPeriod {
		errs = append(errs, fmt.Errorf("idle.max_period must exceed idle.min_period"))
	}
	if c.Feed.MaxEventBytes < 0 {
		errs = append(errs, fmt.Errorf("feed.max_event_bytes must not be negative"))
	}
	if c.Chat.RevertAfter <= 0 {
		errs = append(errs, fmt.Errorf("chat.revert_after must be positive"))
	}
	if c.Avatar.NeutralAsset == "" && !c.Avatar.Placeholder {
		errs = append(errs, fmt.Errorf("avatar.neutral_asset is required without placeholder models"))
	}
	for name := range c.Caption.Intervals {
		if _, err := mood.Parse(name); err != nil {
			errs = append(errs, fmt.Errorf("caption.intervals: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Load reads path, or config.yaml from the config directory when path is
// empty. A missing file is created with defaults. Environment variables
// prefixed MIA_AVATAR_ override file values (MIA_AVATAR_SERVER_FPS=30).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := toMap(cfg)
	if err != nil {
		return cfg, err
	}
	setDefaults(v, "", defaults)

	if path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return cfg, err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return cfg, err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Save(cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	m, err := toMap(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, dirName), nil
}

// toMap renders cfg through its yaml tags so durations become "5s" strings
// that viper decodes back.
func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok && len(nested) > 0 {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}
