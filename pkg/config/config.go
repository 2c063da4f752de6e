package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"streamdock/pkg/env"
	"streamdock/pkg/logger"
	"streamdock/pkg/paths"
)

// Platform identifiers used to pick external player URL schemes.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformMacOS   = "macos"
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
)

// External player identifiers. PlayerInternal selects the built-in
// playback path and disables URL-scheme dispatch.
const (
	PlayerInternal   = ""
	PlayerVLC        = "vlc"
	PlayerMXPlayer   = "mxplayer"
	PlayerJustPlayer = "justplayer"
	PlayerOutplayer  = "outplayer"
	PlayerInfuse     = "infuse"
	PlayerIINA       = "iina"
	PlayerMPV        = "mpv"
)

// PlayerPreference selects where a chosen stream is sent. It is only
// mutated through the settings surface; playback code treats it as
// read-only input.
type PlayerPreference struct {
	// UseExternal enables URL-scheme dispatch to an external player
	// application. When false every stream plays internally.
	UseExternal bool `json:"use_external"`
	// Player is one of the Player* constants. Ignored unless UseExternal.
	Player string `json:"player"`
	// Platform is one of the Platform* constants. Defaults to the host OS
	// but is settable because the hub may dispatch on behalf of a paired
	// mobile device.
	Platform string `json:"platform"`
}

// StreamOptions holds stream list display preferences.
type StreamOptions struct {
	// QualitySort re-orders entries within a provider group by parsed
	// resolution. Off by default: providers order their own results.
	QualitySort bool `json:"quality_sort"`
	// MaxPerProvider caps entries kept per provider group. 0 means no cap.
	MaxPerProvider int `json:"max_per_provider"`
}

// AddonSeed is an addon provisioned through environment variables. Seeds
// are installed at startup if their transport URL is not already present.
type AddonSeed struct {
	Name         string `json:"name"`
	TransportURL string `json:"transport_url"`
}

// Config holds application configuration
type Config struct {
	// Server settings
	ServerPort    int    `json:"server_port"`
	ServerBaseURL string `json:"server_base_url"`
	LogLevel      string `json:"log_level"`

	// Playback
	Playback PlayerPreference `json:"playback"`

	// Stream list options
	Streams StreamOptions `json:"streams"`

	// Metadata service (Cinemeta-compatible)
	MetadataURL     string `json:"metadata_url"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`

	// Addons provisioned via environment (installed at startup)
	AddonSeeds []AddonSeed `json:"-"`

	// Internal - where was this config loaded from?
	LoadedPath string `json:"-"`

	mu          sync.Mutex
	subscribers []func(*Config)
}

// Load is intended for startup only. It loads configuration from config.json,
// applies environment variable overrides once, then saves the merged config.
// Environment variables are not read again after startup; subsequent reloads
// use only the saved config.
// Priority: Environment variables (if not empty) > config.json > defaults
func Load() (*Config, error) {
	dataDir := paths.GetDataDir()
	configPath := filepath.Join(dataDir, "config.json")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("Failed to create data directory", "dir", dataDir, "err", err)
	}

	cfg := &Config{
		ServerPort:    7880,
		ServerBaseURL: "http://localhost:7880",
		LogLevel:      "INFO",
		Playback: PlayerPreference{
			UseExternal: false,
			Player:      PlayerInternal,
			Platform:    DefaultPlatform(),
		},
		Streams: StreamOptions{
			QualitySort:    false,
			MaxPerProvider: 0,
		},
		MetadataURL:     "https://v3-cinemeta.strem.io",
		CacheTTLSeconds: 3600,
		LoadedPath:      configPath,
	}

	if err := cfg.LoadFile(configPath); err != nil {
		if os.IsNotExist(err) {
			logger.Info("No config found, creating new one", "path", configPath)
		} else {
			logger.Warn("Failed to load config, using defaults", "path", configPath, "err", err)
		}
	} else {
		logger.Info("Loaded configuration", "path", configPath)
	}

	overrides, keys := env.ReadConfigOverrides()
	ApplyEnvOverrides(cfg, overrides, keys)

	cfg.Normalize()

	if err := cfg.Save(); err != nil {
		logger.Warn("Failed to save config on startup", "err", err)
	} else {
		logger.Info("Saved merged configuration", "path", configPath)
	}

	return cfg, nil
}

// Normalize repairs values that would otherwise break downstream
// consumers: unknown players fall back to internal playback, unknown
// platforms fall back to the host platform.
func (c *Config) Normalize() {
	c.Playback.Player = strings.ToLower(c.Playback.Player)
	c.Playback.Platform = strings.ToLower(c.Playback.Platform)
	if !ValidPlayer(c.Playback.Player) {
		logger.Warn("Unknown player in config, using internal playback", "player", c.Playback.Player)
		c.Playback.Player = PlayerInternal
		c.Playback.UseExternal = false
	}
	if !ValidPlatform(c.Playback.Platform) {
		logger.Warn("Unknown platform in config, using host platform", "platform", c.Playback.Platform)
		c.Playback.Platform = DefaultPlatform()
	}
	if c.Streams.MaxPerProvider < 0 {
		c.Streams.MaxPerProvider = 0
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 3600
	}
}

// DefaultPlatform maps the host OS onto a platform identifier.
func DefaultPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	default:
		return PlatformLinux
	}
}

// ValidPlayer reports whether name is a known player identifier.
func ValidPlayer(name string) bool {
	switch name {
	case PlayerInternal, PlayerVLC, PlayerMXPlayer, PlayerJustPlayer,
		PlayerOutplayer, PlayerInfuse, PlayerIINA, PlayerMPV:
		return true
	}
	return false
}

// ValidPlatform reports whether name is a known platform identifier.
func ValidPlatform(name string) bool {
	switch name {
	case PlatformAndroid, PlatformIOS, PlatformMacOS, PlatformWindows, PlatformLinux:
		return true
	}
	return false
}

// LoadFile overrides config with values from a JSON file
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(c); err != nil {
		return err
	}
	return nil
}

// Save saves the current configuration to the file it was loaded from
func (c *Config) Save() error {
	path := c.LoadedPath
	if path == "" {
		path = "config.json"
	}
	return c.SaveFile(path)
}

// SaveFile saves the current configuration to a JSON file
func (c *Config) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// Subscribe registers fn to run after every successful Update, in
// registration order. Subscribers must not call Update.
func (c *Config) Subscribe(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Update applies mutate to the config, persists it and notifies
// subscribers synchronously. This is the only sanctioned write path after
// startup; playback and stream code read the config but never change it.
func (c *Config) Update(mutate func(*Config)) error {
	c.mu.Lock()
	mutate(c)
	c.Normalize()
	subs := make([]func(*Config), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		return err
	}
	for _, fn := range subs {
		fn(c)
	}
	return nil
}

// keySet returns true if s is in list.
func keySet(list []string, s string) bool {
	for _, k := range list {
		if k == s {
			return true
		}
	}
	return false
}

// ApplyEnvOverrides applies environment-derived overrides to cfg (used at startup only).
// Only fields present in keys are applied, so env vars override file values per setting.
func ApplyEnvOverrides(cfg *Config, o env.ConfigOverrides, keys []string) {
	if keySet(keys, env.KeyServerPort) {
		cfg.ServerPort = o.ServerPort
	}
	if keySet(keys, env.KeyServerBaseURL) {
		cfg.ServerBaseURL = o.ServerBaseURL
	}
	if keySet(keys, env.KeyLogLevel) {
		cfg.LogLevel = o.LogLevel
	}
	if keySet(keys, env.KeyExternalPlayback) && o.ExternalPlayback != nil {
		cfg.Playback.UseExternal = *o.ExternalPlayback
	}
	if keySet(keys, env.KeyPlayer) {
		cfg.Playback.Player = o.Player
	}
	if keySet(keys, env.KeyPlatform) {
		cfg.Playback.Platform = o.Platform
	}
	if keySet(keys, env.KeyMetadataURL) {
		cfg.MetadataURL = o.MetadataURL
	}
	if keySet(keys, env.KeyCacheTTL) {
		cfg.CacheTTLSeconds = o.CacheTTLSeconds
	}
	if keySet(keys, env.KeyMaxStreams) {
		cfg.Streams.MaxPerProvider = o.MaxStreams
	}
	if keySet(keys, env.KeyQualitySort) && o.QualitySort != nil {
		cfg.Streams.QualitySort = *o.QualitySort
	}
	if keySet(keys, env.KeyAddons) {
		cfg.AddonSeeds = make([]AddonSeed, len(o.Addons))
		for i, a := range o.Addons {
			cfg.AddonSeeds[i] = AddonSeed{
				Name:         a.Name,
				TransportURL: a.TransportURL,
			}
		}
	}
}

// GetEnvOverrideKeys returns config JSON keys that have environment variable overrides set.
// These values will be overwritten on next restart. Used by the UI to show warnings.
func GetEnvOverrideKeys() []string {
	return env.OverrideKeys()
}
