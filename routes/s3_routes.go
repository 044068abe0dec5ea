package routes

import (
	"cardvault_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterMediaRoutes sets up routes for S3 presigned media URLs
func RegisterMediaRoutes(r *mux.Router, controller *controllers.MediaController) {
	mediaRouter := r.PathPrefix("/api/media").Subrouter()
	mediaRouter.HandleFunc("/upload-url", controller.HandleUploadURL).Methods("POST")
	mediaRouter.HandleFunc("/read-url", controller.HandleReadURL).Methods("POST")
}
