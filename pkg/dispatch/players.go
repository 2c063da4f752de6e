package dispatch

import (
	"net/url"
	"sort"
	"strings"

	"streamdock/pkg/config"
)

// Template placeholders. {url} is substituted raw, {encoded} is
// query-escaped for wrapping inside another URL.
const (
	placeholderURL     = "{url}"
	placeholderEncoded = "{encoded}"
)

type playerKey struct {
	platform string
	player   string
}

// playerSchemes maps (platform, player) to the ordered invocation URL
// templates to try. The table is data: changing player support means
// editing rows here, never dispatch logic. Order within a row matters,
// most reliable scheme first.
var playerSchemes = map[playerKey][]string{
	// iOS
	{config.PlatformIOS, config.PlayerVLC}: {
		"vlc://{url}",
		"vlc-x-callback://x-callback-url/stream?url={encoded}",
		"vlc://{encoded}",
	},
	{config.PlatformIOS, config.PlayerOutplayer}: {
		"outplayer://{url}",
		"outplayer://{encoded}",
	},
	{config.PlatformIOS, config.PlayerInfuse}: {
		"infuse://x-callback-url/play?url={encoded}",
	},

	// Android
	{config.PlatformAndroid, config.PlayerVLC}: {
		"vlc://{url}",
		"vlc://{encoded}",
	},
	{config.PlatformAndroid, config.PlayerMXPlayer}: {
		"intent:{url}#Intent;package=com.mxtech.videoplayer.ad;end",
		"intent:{url}#Intent;package=com.mxtech.videoplayer.pro;end",
	},
	{config.PlatformAndroid, config.PlayerJustPlayer}: {
		"intent:{url}#Intent;package=com.brouken.player;end",
	},

	// macOS
	{config.PlatformMacOS, config.PlayerVLC}: {
		"vlc://{url}",
	},
	{config.PlatformMacOS, config.PlayerIINA}: {
		"iina://weblink?url={encoded}",
	},
	{config.PlatformMacOS, config.PlayerInfuse}: {
		"infuse://x-callback-url/play?url={encoded}",
	},
	{config.PlatformMacOS, config.PlayerMPV}: {
		"mpv://{url}",
	},

	// Windows
	{config.PlatformWindows, config.PlayerVLC}: {
		"vlc://{url}",
	},
	{config.PlatformWindows, config.PlayerMPV}: {
		"mpv://{url}",
	},

	// Linux
	{config.PlatformLinux, config.PlayerVLC}: {
		"vlc://{url}",
	},
	{config.PlatformLinux, config.PlayerMPV}: {
		"mpv://{url}",
	},
}

// Templates returns the scheme templates for a platform/player pair.
func Templates(platform, player string) ([]string, bool) {
	t, ok := playerSchemes[playerKey{platform: platform, player: player}]
	return t, ok
}

// PlayersFor lists the external players with scheme support on a
// platform, sorted for stable settings UI output.
func PlayersFor(platform string) []string {
	var out []string
	for key := range playerSchemes {
		if key.platform == platform {
			out = append(out, key.player)
		}
	}
	sort.Strings(out)
	return out
}

// expandTemplate substitutes the stream URL into a scheme template.
func expandTemplate(template, streamURL string) string {
	out := strings.ReplaceAll(template, placeholderURL, streamURL)
	out = strings.ReplaceAll(out, placeholderEncoded, url.QueryEscape(streamURL))
	return out
}
