// Package env consolidates all environment variable reading for the application.
// Config overrides are applied only at startup (see config.Load).
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names (single source of truth)
const (
	ServerPort       = "SERVER_PORT"
	ServerBaseURL    = "SERVER_BASE_URL"
	LOGLevel         = "LOG_LEVEL"
	DataDir          = "DATA_DIR"
	ExternalPlayback = "EXTERNAL_PLAYBACK"
	PlayerName       = "PLAYER"
	PlatformName     = "PLATFORM"
	MetadataURL      = "METADATA_URL"
	CacheTTLSeconds  = "CACHE_TTL_SECONDS"
	MaxStreams       = "MAX_STREAMS_PER_PROVIDER"
	QualitySort      = "QUALITY_SORT"
	TZVar            = "TZ"
	AddonPrefix      = "ADDON_"
)

// Config JSON keys returned by OverrideKeys (for UI warnings)
const (
	KeyServerPort       = "server_port"
	KeyServerBaseURL    = "server_base_url"
	KeyLogLevel         = "log_level"
	KeyExternalPlayback = "external_playback"
	KeyPlayer           = "player"
	KeyPlatform         = "platform"
	KeyMetadataURL      = "metadata_url"
	KeyCacheTTL         = "cache_ttl_seconds"
	KeyMaxStreams       = "max_streams_per_provider"
	KeyQualitySort      = "quality_sort"
	KeyAddons           = "addons"
)

// TZ returns the TZ environment variable (e.g. for logger timezone).
func TZ() string {
	return os.Getenv(TZVar)
}

// LogLevel returns LOG_LEVEL with default "INFO" (for early logger init before config).
func LogLevel() string {
	if v := os.Getenv(LOGLevel); v != "" {
		return v
	}
	return "INFO"
}

// Addon mirrors the config addon seed type so this package does not depend on config.
type Addon struct {
	Name         string
	TransportURL string
}

// ConfigOverrides holds all config values that can be set via environment variables.
// Used at startup by config.Load to apply overrides.
type ConfigOverrides struct {
	ServerPort       int
	ServerBaseURL    string
	LogLevel         string
	ExternalPlayback *bool
	Player           string
	Platform         string
	MetadataURL      string
	CacheTTLSeconds  int
	MaxStreams       int
	QualitySort      *bool
	Addons           []Addon
}

// ReadConfigOverrides reads all relevant environment variables once and returns
// overrides to apply to config plus the list of config JSON keys that were set
// (for UI "overwritten on restart" warnings).
func ReadConfigOverrides() (ConfigOverrides, []string) {
	var o ConfigOverrides
	var keys []string

	if v := os.Getenv(ServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			o.ServerPort = port
			keys = append(keys, KeyServerPort)
		}
	}
	if v := os.Getenv(ServerBaseURL); v != "" {
		o.ServerBaseURL = v
		keys = append(keys, KeyServerBaseURL)
	}
	if v := os.Getenv(LOGLevel); v != "" {
		o.LogLevel = v
		keys = append(keys, KeyLogLevel)
	}
	if v := os.Getenv(ExternalPlayback); v != "" {
		b := v == "true" || v == "1"
		o.ExternalPlayback = &b
		keys = append(keys, KeyExternalPlayback)
	}
	if v := os.Getenv(PlayerName); v != "" {
		o.Player = strings.ToLower(v)
		keys = append(keys, KeyPlayer)
	}
	if v := os.Getenv(PlatformName); v != "" {
		o.Platform = strings.ToLower(v)
		keys = append(keys, KeyPlatform)
	}
	if v := os.Getenv(MetadataURL); v != "" {
		o.MetadataURL = v
		keys = append(keys, KeyMetadataURL)
	}
	if v := os.Getenv(CacheTTLSeconds); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			o.CacheTTLSeconds = ttl
			keys = append(keys, KeyCacheTTL)
		}
	}
	if v := os.Getenv(MaxStreams); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.MaxStreams = n
			keys = append(keys, KeyMaxStreams)
		}
	}
	if v := os.Getenv(QualitySort); v != "" {
		b := v == "true" || v == "1"
		o.QualitySort = &b
		keys = append(keys, KeyQualitySort)
	}

	o.Addons = readAddonsFromEnv()
	if len(o.Addons) > 0 {
		keys = append(keys, KeyAddons)
	}

	return o, keys
}

// OverrideKeys returns the config JSON keys that have environment overrides set.
// Used by the API to tell the UI which settings show "overwritten on restart" warnings.
func OverrideKeys() []string {
	_, keys := ReadConfigOverrides()
	return keys
}

// readAddonsFromEnv reads ADDON_1_URL .. ADDON_10_URL (plus optional
// ADDON_N_NAME) so deployments can provision stream sources without
// touching the UI.
func readAddonsFromEnv() []Addon {
	var list []Addon
	for i := 1; i <= 10; i++ {
		prefix := fmt.Sprintf("%s%d_", AddonPrefix, i)
		url := os.Getenv(prefix + "URL")
		if url == "" {
			continue
		}
		list = append(list, Addon{
			Name:         getEnv(prefix+"NAME", fmt.Sprintf("Addon %d", i)),
			TransportURL: url,
		})
	}
	return list
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
