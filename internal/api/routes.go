package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, log zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(Logging(log.With().Str("component", "http").Logger()))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Portfolio routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/buy", handler.Buy).Methods("POST")
	api.HandleFunc("/portfolio/sell", handler.Sell).Methods("POST")
	api.HandleFunc("/portfolio/deposit", handler.Deposit).Methods("POST")
	api.HandleFunc("/portfolio/reset", handler.Reset).Methods("POST")
	api.HandleFunc("/portfolio/asset-history", handler.GetAssetHistory).Methods("GET")
	api.HandleFunc("/portfolio/asset-history/snapshot", handler.RecordSnapshot).Methods("POST")
	api.HandleFunc("/portfolio/asset-history/moving-averages", handler.GetMovingAverages).Methods("GET")
	api.HandleFunc("/portfolio/trade-history", handler.GetTradeHistory).Methods("GET")

	return r
}
