package presence

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/WelcomerTeam/Presence-Kit/presencejson"
	"gopkg.in/yaml.v3"
)

type BackgroundStyle string

const (
	BackgroundStyleDark  BackgroundStyle = "rgb(22, 22, 22)"
	BackgroundStyleLight BackgroundStyle = "#fff"
)

type TextStyle string

const (
	TextStyleDark  TextStyle = "DARK"
	TextStyleLight TextStyle = "LIGHT"
)

const DefaultTickInterval = 100 * time.Millisecond

// DisplayConfig is the caller supplied presentation configuration of a card.
// It is resolved once by NewDisplayConfig and is read-only afterwards.
type DisplayConfig struct {
	backgroundStyle     BackgroundStyle
	textStyle           TextStyle
	largeAssetOverrides map[string]string
	blacklist           map[string]struct{}
	extraStyle          map[string]string
	showBorder          bool
}

type DisplayOption func(*displayOptions)

type displayOptions struct {
	backgroundStyle     BackgroundStyle
	textStyle           TextStyle
	largeAssetOverrides map[string]string
	blacklist           []string
	extraStyle          map[string]string
	showBorder          bool
}

func WithBackgroundStyle(style BackgroundStyle) DisplayOption {
	return func(o *displayOptions) {
		if style != "" {
			o.backgroundStyle = style
		}
	}
}

func WithTextStyle(style TextStyle) DisplayOption {
	return func(o *displayOptions) {
		if style != "" {
			o.textStyle = style
		}
	}
}

func WithBorder(showBorder bool) DisplayOption {
	return func(o *displayOptions) {
		o.showBorder = showBorder
	}
}

// WithLargeAssetOverrides maps activity names to image urls used when an
// activity has no large image of its own. Entries win over the defaults.
func WithLargeAssetOverrides(overrides map[string]string) DisplayOption {
	return func(o *displayOptions) {
		maps.Copy(o.largeAssetOverrides, overrides)
	}
}

func WithBlacklistedActivities(names ...string) DisplayOption {
	return func(o *displayOptions) {
		o.blacklist = append(o.blacklist, names...)
	}
}

func WithExtraStyle(style map[string]string) DisplayOption {
	return func(o *displayOptions) {
		maps.Copy(o.extraStyle, style)
	}
}

// NewDisplayConfig resolves the display options. Asset overrides are merged
// over DefaultLargeAssetOverrides here and nowhere else.
func NewDisplayConfig(opts ...DisplayOption) *DisplayConfig {
	options := displayOptions{
		backgroundStyle:     BackgroundStyleDark,
		textStyle:           TextStyleLight,
		largeAssetOverrides: maps.Clone(DefaultLargeAssetOverrides),
		extraStyle:          map[string]string{},
		showBorder:          true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	blacklist := make(map[string]struct{}, len(options.blacklist))
	for _, name := range options.blacklist {
		blacklist[name] = struct{}{}
	}

	return &DisplayConfig{
		backgroundStyle:     options.backgroundStyle,
		textStyle:           options.textStyle,
		largeAssetOverrides: options.largeAssetOverrides,
		blacklist:           blacklist,
		extraStyle:          options.extraStyle,
		showBorder:          options.showBorder,
	}
}

func (config *DisplayConfig) BackgroundStyle() BackgroundStyle { return config.backgroundStyle }
func (config *DisplayConfig) TextStyle() TextStyle             { return config.textStyle }
func (config *DisplayConfig) ShowBorder() bool                 { return config.showBorder }

// LargeAssetOverride returns the override image for an activity name.
func (config *DisplayConfig) LargeAssetOverride(name string) (string, bool) {
	url, ok := config.largeAssetOverrides[name]

	return url, ok && url != ""
}

// LargeAssetOverrides returns a copy of the resolved override table.
func (config *DisplayConfig) LargeAssetOverrides() map[string]string {
	return maps.Clone(config.largeAssetOverrides)
}

func (config *DisplayConfig) IsBlacklisted(name string) bool {
	_, ok := config.blacklist[name]

	return ok
}

func (config *DisplayConfig) ExtraStyle() map[string]string {
	return maps.Clone(config.extraStyle)
}

// Configuration represents the configuration file of the daemon.
type Configuration struct {
	UserID            string `json:"user_id" yaml:"user_id"`
	PrometheusAddress string `json:"prometheus_address" yaml:"prometheus_address"`

	TickInterval Duration `json:"tick_interval" yaml:"tick_interval"`

	HTTP struct {
		Host string `json:"host" yaml:"host"`
	} `json:"http" yaml:"http"`

	Display DisplayConfiguration `json:"display" yaml:"display"`
	Feed    FeedConfiguration    `json:"feed" yaml:"feed"`
}

// DisplayConfiguration is the file form of DisplayConfig.
type DisplayConfiguration struct {
	ShowBorder            *bool             `json:"show_border" yaml:"show_border"`
	LargeAssetOverrides   map[string]string `json:"large_asset_overrides" yaml:"large_asset_overrides"`
	ExtraStyle            map[string]string `json:"extra_style" yaml:"extra_style"`
	BackgroundStyle       string            `json:"background_style" yaml:"background_style"`
	TextStyle             string            `json:"text_style" yaml:"text_style"`
	BlacklistedActivities []string          `json:"blacklisted_activities" yaml:"blacklisted_activities"`
}

// FeedConfiguration selects the subscriber a card receives snapshots from.
// Configuration is passed to the subscriber as-is.
type FeedConfiguration struct {
	Configuration map[string]any `json:"configuration" yaml:"configuration"`
	Type          string         `json:"type" yaml:"type"`
}

// DisplayConfig converts the file form into a resolved DisplayConfig.
// "dark" and "light" are accepted as background keywords, anything else is
// used as a raw colour.
func (configuration DisplayConfiguration) DisplayConfig() *DisplayConfig {
	opts := []DisplayOption{
		WithLargeAssetOverrides(configuration.LargeAssetOverrides),
		WithBlacklistedActivities(configuration.BlacklistedActivities...),
		WithExtraStyle(configuration.ExtraStyle),
	}

	switch strings.ToLower(configuration.BackgroundStyle) {
	case "":
	case "dark":
		opts = append(opts, WithBackgroundStyle(BackgroundStyleDark))
	case "light":
		opts = append(opts, WithBackgroundStyle(BackgroundStyleLight))
	default:
		opts = append(opts, WithBackgroundStyle(BackgroundStyle(configuration.BackgroundStyle)))
	}

	switch strings.ToUpper(configuration.TextStyle) {
	case string(TextStyleDark):
		opts = append(opts, WithTextStyle(TextStyleDark))
	case string(TextStyleLight):
		opts = append(opts, WithTextStyle(TextStyleLight))
	}

	if configuration.ShowBorder != nil {
		opts = append(opts, WithBorder(*configuration.ShowBorder))
	}

	return NewDisplayConfig(opts...)
}

// Duration is a time.Duration that reads and writes as "100ms" style text.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("failed to parse duration: %w", err)
	}

	*d = Duration(duration)

	return nil
}

// OrDefault returns the duration, or def when it is not positive.
func (d Duration) OrDefault(def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}

	return time.Duration(d)
}

// Validate checks the fields every card needs.
func (configuration *Configuration) Validate() error {
	if configuration.UserID == "" {
		return ErrMissingUserID
	}

	if configuration.Feed.Type == "" {
		return ErrMissingFeedType
	}

	return nil
}

// ApplyEnvironment overrides file values with PRESENCE_* environment variables.
func (configuration *Configuration) ApplyEnvironment() {
	if v := os.Getenv("PRESENCE_USER_ID"); v != "" {
		configuration.UserID = v
	}

	if v := os.Getenv("PRESENCE_HTTP_HOST"); v != "" {
		configuration.HTTP.Host = v
	}

	if v := os.Getenv("PRESENCE_FEED"); v != "" {
		configuration.Feed.Type = v
	}

	if v := os.Getenv("PRESENCE_PROMETHEUS_ADDRESS"); v != "" {
		configuration.PrometheusAddress = v
	}
}

type ConfigProvider interface {
	GetConfig(ctx context.Context) (*Configuration, error)
	SaveConfig(ctx context.Context, config *Configuration) error
}

// ConfigProviderFromPath is a basic config provider that reads and writes to
// a file. Files ending in .yaml or .yml are YAML, everything else is JSON.

type ConfigProviderFromPath struct {
	path string
}

func NewConfigProviderFromPath(path string) ConfigProviderFromPath {
	return ConfigProviderFromPath{path}
}

func (c ConfigProviderFromPath) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(c.path))

	return ext == ".yaml" || ext == ".yml"
}

func (c ConfigProviderFromPath) GetConfig(_ context.Context) (*Configuration, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Configuration

	if c.isYAML() {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = presencejson.Unmarshal(data, &config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	slog.Debug("Loaded config", "path", c.path, "user_id", config.UserID, "feed", config.Feed.Type)

	return &config, nil
}

func (c ConfigProviderFromPath) SaveConfig(_ context.Context, config *Configuration) error {
	var (
		data []byte
		err  error
	)

	if c.isYAML() {
		data, err = yaml.Marshal(config)
	} else {
		data, err = presencejson.Marshal(config)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	slog.Debug("Saving config", "path", c.path)

	return os.WriteFile(c.path, data, 0o600)
}
