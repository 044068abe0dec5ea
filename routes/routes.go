package routes

import (
	"net/http"

	"cardvault_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up the service level routes of the application
func RegisterRoutes(r *mux.Router, metricsHandler http.Handler) {
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}
}
