package routes

import (
	"cardvault_server/controllers"

	"github.com/gorilla/mux"
)

func RegisterCardRoutes(r *mux.Router, controller *controllers.CardController) {
	cardRouter := r.PathPrefix("/api/cards").Subrouter()
	cardRouter.HandleFunc("/search", controller.HandleSearch).Methods("GET") // ✅ Aggregated catalog search
}
