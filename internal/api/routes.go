package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(handler.logRequests)

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/instruments", handler.GetInstruments).Methods("GET")
	api.HandleFunc("/instruments/{code}/trades", handler.GetTrades).Methods("GET")
	api.HandleFunc("/instruments/{code}/report", handler.GetReport).Methods("GET")
	api.HandleFunc("/trades", handler.RecordTrade).Methods("POST")

	return r
}
