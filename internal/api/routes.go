package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Account routes
	api.HandleFunc("/accounts/{id}/rebuild", handler.RebuildLedger).Methods("POST")
	api.HandleFunc("/accounts/{id}/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/accounts/{id}/positions/{symbol}", handler.GetPosition).Methods("GET")
	api.HandleFunc("/accounts/{id}/ledger/{symbol}", handler.GetLedger).Methods("GET")
	api.HandleFunc("/accounts/{id}/allocation", handler.GetAllocation).Methods("GET")
	api.HandleFunc("/accounts/{id}/targets", handler.SaveTargets).Methods("PUT")
	api.HandleFunc("/accounts/{id}/recommendations", handler.GenerateRecommendation).Methods("POST")
	api.HandleFunc("/accounts/{id}/recommendations", handler.GetRecommendations).Methods("GET")

	// Recommendation routes
	api.HandleFunc("/recommendations/{id}", handler.GetRecommendation).Methods("GET")
	api.HandleFunc("/recommendations/{id}", handler.UpdateRecommendationStatus).Methods("PATCH")

	return r
}
