package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
	"github.com/tair/purchase-ingest/internal/purchase/usecase/query"
	"github.com/tair/purchase-ingest/kafka"
	"github.com/tair/purchase-ingest/pkg/auth"
)

const (
	healthMessage  = "Purchase service is up and running!"
	publishedReply = "Message sent to Kafka successfully."
)

// TriggerPublisher puts a purchase event on the inbound topic
type TriggerPublisher interface {
	PublishPurchase(ctx context.Context, event kafka.PurchaseEvent) error
}

// Pinger reports whether the store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PurchaseHandler handles HTTP requests for purchases
type PurchaseHandler struct {
	// Query handlers
	getHandler  *query.GetPurchaseHandler
	listHandler *query.ListPurchasesHandler

	publisher TriggerPublisher
	limiter   *RateLimiter
	tokens    *auth.JWTManager
	metrics   *HTTPMetrics
	log       zerolog.Logger
}

// NewPurchaseHandler creates a new purchase handler. publisher may be nil, in
// which case the test trigger answers 503. limiter may be nil.
func NewPurchaseHandler(
	getHandler *query.GetPurchaseHandler,
	listHandler *query.ListPurchasesHandler,
	publisher TriggerPublisher,
	limiter *RateLimiter,
	tokens *auth.JWTManager,
	metrics *HTTPMetrics,
	log zerolog.Logger,
) *PurchaseHandler {
	if metrics == nil {
		metrics = NewHTTPMetrics(nil)
	}
	return &PurchaseHandler{
		getHandler:  getHandler,
		listHandler: listHandler,
		publisher:   publisher,
		limiter:     limiter,
		tokens:      tokens,
		metrics:     metrics,
		log:         log,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *PurchaseHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.metrics.wrap("/health", h.Health)).Methods("GET")
	router.HandleFunc("/test", h.metrics.wrap("/test", h.limiter.Wrap(h.TriggerPurchase))).Methods("POST")

	// Admin routes (admin role required)
	admin := AdminMiddleware(h.tokens, h.log)
	router.HandleFunc("/api/purchases", h.metrics.wrap("/api/purchases", admin(h.ListPurchases))).Methods("GET")
	router.HandleFunc("/api/purchases/{id}", h.metrics.wrap("/api/purchases/{id}", admin(h.GetPurchase))).Methods("GET")
}

// RegisterHealthCheck registers the readiness endpoint
func (h *PurchaseHandler) RegisterHealthCheck(router *mux.Router, db Pinger) {
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Readiness check failed")
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Purchase service is ready",
		})
	}).Methods("GET")
}

// Health handles GET /health
func (h *PurchaseHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondText(w, http.StatusOK, healthMessage)
}

// TriggerPurchase handles POST /test. The body is published unchanged to the
// inbound topic, so it goes through the same consume path as real traffic.
func (h *PurchaseHandler) TriggerPurchase(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		respondText(w, http.StatusServiceUnavailable, "Publisher not configured.")
		return
	}

	var event kafka.PurchaseEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.publisher.PublishPurchase(r.Context(), event); err != nil {
		h.log.Error().Err(err).Msg("Failed to publish test purchase")
		respondText(w, http.StatusBadGateway, "Failed to send message to Kafka.")
		return
	}

	respondText(w, http.StatusOK, publishedReply)
}

// ListPurchases handles GET /api/purchases
func (h *PurchaseHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	q := query.ListPurchasesQuery{
		Limit:  limit,
		Offset: offset,
	}

	purchases, err := h.listHandler.Handle(r.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list purchases")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to list purchases",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"purchases": purchases,
			"count":     len(purchases),
			"offset":    offset,
		},
	})
}

// GetPurchase handles GET /api/purchases/{id}
func (h *PurchaseHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid purchase ID",
		})
		return
	}

	purchase, err := h.getHandler.Handle(r.Context(), query.GetPurchaseQuery{ID: id})
	switch {
	case err == nil:
	case errors.Is(err, query.ErrInvalidPurchaseID):
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid purchase ID",
		})
		return
	case errors.Is(err, domain.ErrPurchaseNotFound):
		respondJSON(w, http.StatusNotFound, Response{
			Success: false,
			Error:   "Purchase not found",
		})
		return
	default:
		h.log.Error().Err(err).Str("purchase_id", id.String()).Msg("Failed to get purchase")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to get purchase",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    purchase,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
