package main

import (
	"fmt"
	"net/http"

	"streamdock/pkg/api"
	"streamdock/pkg/env"
	"streamdock/pkg/initialization"
	"streamdock/pkg/logger"
	"streamdock/pkg/web"

	"github.com/joho/godotenv"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	// Load environment variables for logger and bootstrap
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	// Initialize Logger early so bootstrap can use it
	logger.Init(env.LogLevel())
	defer logger.Close()

	logger.Info("Starting StreamDock", "version", version)

	// Bootstrap application
	comp, err := initialization.Bootstrap()
	if err != nil {
		initialization.WaitForInputAndExit(err)
	}

	cfg := comp.Config

	// API server owns the full HTTP surface: REST, websocket, web UI
	apiServer := api.NewServer(cfg, comp.Collection, comp.Aggregator, comp.Metadata,
		comp.Dispatcher, comp.Player, comp.Library, version)
	apiServer.SetWebHandler(web.Handler())

	addr := fmt.Sprintf(":%d", cfg.ServerPort)

	baseURL := cfg.ServerBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.ServerPort)
	}
	logger.Info("Frontend url", "url", baseURL)
	logger.Info("Stream API", "url", fmt.Sprintf("%s/api/streams/{type}/{id}", baseURL))

	if err := http.ListenAndServe(addr, apiServer.Handler()); err != nil {
		initialization.WaitForInputAndExit(fmt.Errorf("Server failed: %v", err))
	}
}
