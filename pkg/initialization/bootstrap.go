package initialization

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"streamdock/pkg/addon"
	"streamdock/pkg/aggregate"
	"streamdock/pkg/config"
	"streamdock/pkg/dispatch"
	"streamdock/pkg/library"
	"streamdock/pkg/logger"
	"streamdock/pkg/metadata"
	"streamdock/pkg/paths"
	"streamdock/pkg/persistence"
	"streamdock/pkg/playback"
	"streamdock/pkg/stremio"
)

// Playback sessions without keep-alives expire after this long.
const playbackSessionTTL = 30 * time.Minute

// InitializedComponents holds all the components initialized during bootstrap
type InitializedComponents struct {
	Config     *config.Config
	State      *persistence.StateManager
	Client     *stremio.Client
	Collection *addon.Collection
	Aggregator *aggregate.Aggregator
	Metadata   *metadata.Client
	Dispatcher *dispatch.Dispatcher
	Player     *playback.Player
	Library    *library.Store
}

// WaitForInputAndExit prints an error and waits for user input before exiting
func WaitForInputAndExit(err error) {
	fmt.Printf("\n❌ CRITICAL ERROR: %v\n", err)
	fmt.Println("\nPress Enter to exit...")
	var input string
	fmt.Scanln(&input)
	os.Exit(1)
}

// Bootstrap coordinates the application startup sequence
func Bootstrap() (*InitializedComponents, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	// 2. Persistent state (addons, library, watch progress)
	state, err := persistence.GetManager(paths.GetDataDir())
	if err != nil {
		return nil, fmt.Errorf("state manager error: %w", err)
	}

	// 3. Addon collection
	client := stremio.NewClient()
	collection, err := addon.NewCollection(state, client)
	if err != nil {
		return nil, fmt.Errorf("addon collection error: %w", err)
	}

	// Install environment-provisioned addons; failures are logged and
	// skipped inside Seed.
	if len(cfg.AddonSeeds) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		collection.Seed(ctx, cfg.AddonSeeds)
		cancel()
	}

	// 4. Stream aggregation across installed addons
	aggregator := aggregate.New(client, collection)

	// 5. Metadata client with response cache
	metaTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	metaClient := metadata.NewClient(cfg.MetadataURL, metaTTL)

	// 6. Playback: internal player plus the external dispatch path
	player := playback.NewPlayer(playbackSessionTTL)
	dispatcher := dispatch.New(dispatch.ExecOpener{}, player)
	logger.Info("Playback initialized", "session_ttl", playbackSessionTTL,
		"external", cfg.Playback.UseExternal, "player", cfg.Playback.Player, "platform", cfg.Playback.Platform)

	// 7. Library and watch progress
	lib, err := library.NewStore(state)
	if err != nil {
		return nil, fmt.Errorf("library error: %w", err)
	}

	// 8. React to settings changes saved through the UI
	cfg.Subscribe(func(c *config.Config) {
		logger.SetLevel(c.LogLevel)
		metaClient.SetBaseURL(c.MetadataURL)
	})

	// 9. Validate the server port before handing off to main
	if err := checkPort(cfg.ServerPort); err != nil {
		return nil, err
	}

	return &InitializedComponents{
		Config:     cfg,
		State:      state,
		Client:     client,
		Collection: collection,
		Aggregator: aggregator,
		Metadata:   metaClient,
		Dispatcher: dispatcher,
		Player:     player,
		Library:    lib,
	}, nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("server port %d is already in use", port)
	}
	ln.Close()
	return nil
}
