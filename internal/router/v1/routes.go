package v1

import (
	"github.com/evyataryagoni/geocoder/internal/handler"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes creates the /v1 API routes
func SetupRoutes(h *handler.GeocodeHandler) chi.Router {
	r := chi.NewRouter()

	r.Get("/geocode", h.Geocode)
	r.Get("/geocode/progressive", h.Progressive)
	r.Get("/reverse", h.Reverse)
	r.Get("/suggest", h.Suggest)

	return r
}
