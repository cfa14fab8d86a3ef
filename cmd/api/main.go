// Command api serves the dashboard's JSON callbacks and exports without the HTML pages.
package main

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"heartprev/adapters/source"
	"heartprev/internal/api"
	"heartprev/internal/config"
	"heartprev/internal/dashboard"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loader := source.NewLoader(
		source.NewDataReader(appConfig.Data.FetchTimeout),
		appConfig.Data.SnapshotSource,
		appConfig.Data.TimeSeriesSource,
		appConfig.Data.CacheTTL,
	)
	service := dashboard.NewService(loader, appConfig.Dashboard)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", appConfig.API.Port),
		Handler:           api.NewRouter(api.NewHandler(service)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Starting API server on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
