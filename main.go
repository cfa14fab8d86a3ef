package main

import (
	"embed"
	"log"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"heartprev/adapters/source"
	"heartprev/internal/api"
	"heartprev/internal/config"
	"heartprev/internal/dashboard"
	"heartprev/internal/pages"
	"heartprev/ui"
)

//go:embed ui/templates/*.html ui/static
var embeddedFiles embed.FS

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	reader := source.NewDataReader(appConfig.Data.FetchTimeout)
	loader := source.NewLoader(reader, appConfig.Data.SnapshotSource, appConfig.Data.TimeSeriesSource, appConfig.Data.CacheTTL)
	snapshotSource, timeSeriesSource := loader.Sources()
	log.Printf("[Main] Snapshot dataset: %s", snapshotSource)
	log.Printf("[Main] Time series dataset: %s", timeSeriesSource)

	service := dashboard.NewService(loader, appConfig.Dashboard)

	registry, err := pages.Load()
	if err != nil {
		log.Fatalf("Failed to load page content: %v", err)
	}

	server := ui.NewServer(embeddedFiles, service, registry)
	if err := server.Initialize(api.NewHandler(service).Routes()); err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	addr := net.JoinHostPort("", appConfig.Server.Port)
	if err := server.Start(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
