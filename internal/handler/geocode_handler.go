package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/evyataryagoni/geocoder/internal/middleware"
	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/evyataryagoni/geocoder/internal/service"
)

// GeocodeHandler handles HTTP requests for forward and reverse geocoding
// This is the handler layer - it deals with HTTP concerns only
//
// Responsibilities:
//   - Parse HTTP requests (query parameters)
//   - Call service methods with the caller's session
//   - Format HTTP responses (JSON)
//   - Map service errors to status codes
type GeocodeHandler struct {
	service *service.GeocodeService
	logger  *logger.Logger
}

// NewGeocodeHandler creates a new geocode handler with the given service
func NewGeocodeHandler(service *service.GeocodeService, log *logger.Logger) *GeocodeHandler {
	if log == nil {
		log = logger.Global()
	}
	return &GeocodeHandler{
		service: service,
		logger:  log.WithComponent("GeocodeHandler"),
	}
}

// Geocode handles GET /v1/geocode?q=<text>
// or the structured form street, number, city, province, country
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := models.AddressQuery{
		Text:        params.Get("q"),
		Street:      params.Get("street"),
		HouseNumber: params.Get("number"),
		City:        params.Get("city"),
		Province:    params.Get("province"),
		Country:     params.Get("country"),
	}

	result, err := h.service.Resolve(r.Context(), middleware.SessionFromContext(r.Context()), query)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toResponse(result))
}

// Progressive handles GET /v1/geocode/progressive?province=&city=&street=&country=
func (h *GeocodeHandler) Progressive(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	input := models.ProgressiveQuery{
		Country:  params.Get("country"),
		Province: params.Get("province"),
		City:     params.Get("city"),
		Street:   params.Get("street"),
	}

	result, err := h.service.GeocodeProgressive(r.Context(), middleware.SessionFromContext(r.Context()), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toResponse(result))
}

// Reverse handles GET /v1/reverse?lat=<lat>&lon=<lon>
func (h *GeocodeHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	lat, latErr := strconv.ParseFloat(params.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(params.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		h.respondError(w, http.StatusBadRequest, "Query parameters 'lat' and 'lon' must be numbers")
		return
	}

	address, err := h.service.Reverse(r.Context(), lat, lon)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, address)
}

// Suggest handles GET /v1/suggest?q=&field=province|city|address&province=&city=&country=
func (h *GeocodeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	field := params.Get("field")
	if field == "" {
		field = geocode.FieldAddress
	}

	suggestions, err := h.service.Suggest(r.Context(), params.Get("q"), field, geocode.SuggestionContext{
		Province: params.Get("province"),
		City:     params.Get("city"),
		Country:  params.Get("country"),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.SuggestionsResponse{Suggestions: suggestions})
}

// Proxy handles GET /api/geocode?q=&limit= and answers in the envelope
// of the proxied provider: {results:[...]} or {error}
func (h *GeocodeHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("q"))
	if query == "" {
		h.respondJSON(w, http.StatusBadRequest, models.ProxyResponse{Error: "Missing 'q' query parameter"})
		return
	}

	limit := 5
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondJSON(w, http.StatusBadRequest, models.ProxyResponse{Error: "Query parameter 'limit' must be an integer"})
			return
		}
		limit = n
	}

	results, err := h.service.Proxy(r.Context(), query, limit)
	if err != nil {
		status, message := h.classify(r, err)
		h.respondJSON(w, status, models.ProxyResponse{Error: message})
		return
	}

	if results == nil {
		results = []models.OpenCageResult{}
	}
	h.respondJSON(w, http.StatusOK, models.ProxyResponse{Results: results})
}

// Health handles GET /health
func (h *GeocodeHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func toResponse(result *models.GeocodeResult) models.GeocodeResponse {
	return models.GeocodeResponse{
		Lat:       result.Lat,
		Lon:       result.Lon,
		ZoomLevel: result.ZoomLevel,
		Result:    result,
	}
}

// classify maps a service error to a status code and a client-safe message
func (h *GeocodeHandler) classify(r *http.Request, err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidQuery), errors.Is(err, models.ErrInvalidCoordinates):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrEmptyResult):
		return http.StatusNotFound, "Location not found"
	case errors.Is(err, models.ErrSuperseded):
		return http.StatusConflict, "Superseded by a newer request in this session"
	case errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "Geocoding provider not configured"
	case errors.Is(err, models.ErrProviderStatus), errors.Is(err, models.ErrProviderReported):
		return http.StatusBadGateway, "Geocoding provider error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Geocoding timed out"
	default:
		logger.FromContext(r.Context(), h.logger).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled geocoding error")
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *GeocodeHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := h.classify(r, err)
	h.respondError(w, status, message)
}

// respondJSON writes a JSON response with the given status code
func (h *GeocodeHandler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes an error response with consistent formatting
func (h *GeocodeHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, models.ErrorResponse{Error: message})
}
