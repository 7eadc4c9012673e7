package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roster-engine/internal/collection"
	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/repo"
	"github.com/roster-engine/internal/service"
	"github.com/roster-engine/internal/store"
	"github.com/roster-engine/internal/websocket"
)

var (
	errInvalidRequest = errors.New("invalid request")
	errInternal       = errors.New("internal server error")
)

// Handler provides HTTP handlers for the roster API
type Handler struct {
	players *repo.PlayerRepo
	entries *repo.EntryRepo
	service *service.RosterService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	players *repo.PlayerRepo,
	entries *repo.EntryRepo,
	svc *service.RosterService,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		players: players,
		entries: entries,
		service: svc,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Player operations
		r.Route("/players", func(r chi.Router) {
			r.Post("/", h.CreatePlayer)
			r.Get("/", h.ListPlayers)
			r.Post("/batch", h.CreatePlayerBatch)
			r.Get("/duplicates", h.GetDuplicates)

			r.Route("/{playerID}", func(r chi.Router) {
				r.Get("/", h.GetPlayer)
				r.Put("/", h.UpdatePlayer)
				r.Delete("/", h.DeletePlayer)
			})
		})

		// Roster operations
		r.Route("/roster", func(r chi.Router) {
			r.Post("/", h.CreateEntry)
			r.Get("/", h.QueryRoster)
			r.Get("/conflicts", h.GetConflicts)
			r.Get("/ineligible", h.GetIneligible)
			r.Post("/rebuild", h.Rebuild)

			r.Route("/{entryID}", func(r chi.Router) {
				r.Get("/", h.GetEntry)
				r.Put("/", h.UpdateEntry)
				r.Delete("/", h.DeleteEntry)
			})
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Get("/venue/{venue}", h.VenueReport)
			r.Get("/season", h.SeasonReport)
			r.Get("/week", h.WeekReport)
			r.Get("/special-needs", h.SpecialNeedsReport)
			r.Get("/stats", h.GetStats)
		})

		// Export
		r.Get("/export/roster", h.ExportRoster)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps validation and not-found failures onto status
// codes; everything else is a logged 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, op string) {
	if verr, ok := domain.AsValidationError(err); ok {
		h.writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Error:   "validation failed",
			Data:    verr.Fields,
		})
		return
	}
	if domain.IsNotFound(err) {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.logger.Error(op, "error", err)
	h.writeError(w, http.StatusInternalServerError, errInternal)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// queryCriteria builds store criteria from the whitelisted query params.
func queryCriteria(r *http.Request) store.Criteria {
	criteria := store.Criteria{}
	for _, field := range []string{
		"venue", "season", "region", "activity_type", "age_group",
		"order_status", "booking_type", "customer_id", "order_id",
	} {
		if v := r.URL.Query().Get(field); v != "" {
			criteria[field] = v
		}
	}
	return criteria
}

func queryOptions(r *http.Request) store.Options {
	q := r.URL.Query()
	opts := store.Options{OrderBy: q.Get("order_by")}
	if q.Get("desc") == "true" {
		opts.Descending = true
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		opts.Offset = n
	}
	return opts
}

// groupedJSON flattens a grouped collection into an ordered list of
// {key, entries} objects so group order survives serialization.
func groupedJSON(report *collection.Grouped[*domain.RosterEntry]) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, report.Len())
	report.Each(func(key string, group *collection.Collection[*domain.RosterEntry]) {
		out = append(out, map[string]interface{}{
			"key":     key,
			"count":   group.Len(),
			"entries": group.Items(),
		})
	})
	return out
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// CreatePlayer registers a new player profile
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]string
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	player, created, err := h.players.Create(r.Context(), attrs)
	if err != nil {
		h.writeDomainError(w, err, "failed to create player")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, APIResponse{Success: true, Data: player})
}

// ListPlayers returns players, optionally filtered by customer
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	var (
		players *collection.Collection[*domain.Player]
		err     error
	)
	if customer := r.URL.Query().Get("customer_id"); customer != "" {
		id, perr := strconv.ParseInt(customer, 10, 64)
		if perr != nil {
			h.writeError(w, http.StatusBadRequest, errInvalidRequest)
			return
		}
		players, err = h.players.ByCustomer(r.Context(), id)
	} else {
		players, err = h.players.All(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list players", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	h.writeSuccess(w, players.Items())
}

// CreatePlayerBatch registers several players, skipping failed records
func (h *Handler) CreatePlayerBatch(w http.ResponseWriter, r *http.Request) {
	var records []map[string]string
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}
	if len(records) == 0 {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	h.writeSuccess(w, h.players.CreateMany(r.Context(), records))
}

// GetDuplicates reports player profiles sharing an identity
func (h *Handler) GetDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.DuplicateReport(r.Context())
	if err != nil {
		h.logger.Error("failed to detect duplicates", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, groups)
}

// GetPlayer returns a player by ID
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "playerID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	player, err := h.players.FindOrFail(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "failed to get player")
		return
	}
	h.writeSuccess(w, player)
}

// UpdatePlayer applies a partial update to a player
func (h *Handler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "playerID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	var attrs map[string]string
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	player, err := h.players.Update(r.Context(), id, attrs)
	if err != nil {
		h.writeDomainError(w, err, "failed to update player")
		return
	}
	h.writeSuccess(w, player)
}

// DeletePlayer removes a player and re-indexes the customer's roster
func (h *Handler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "playerID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	removed, err := h.players.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete player", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if !removed {
		h.writeError(w, http.StatusNotFound, domain.ErrNotFound)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// CreateEntry adds a roster entry
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]string
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	entry, created, err := h.entries.Create(r.Context(), attrs)
	if err != nil {
		h.writeDomainError(w, err, "failed to create roster entry")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.hub.Broadcast(websocket.MessageTypeEntryCreated, entry.Venue, entry)
	}
	h.writeJSON(w, status, APIResponse{Success: true, Data: entry})
}

// QueryRoster returns roster entries filtered by query parameters
func (h *Handler) QueryRoster(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Roster(r.Context(), queryCriteria(r), queryOptions(r))
	if err != nil {
		h.logger.Error("failed to query roster", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, entries.Items())
}

// GetConflicts reports double-booked participants
func (h *Handler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.service.ConflictReport(r.Context())
	if err != nil {
		h.logger.Error("failed to detect conflicts", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, conflicts)
}

// GetIneligible reports entries outside their event's age group
func (h *Handler) GetIneligible(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.IneligibleReport(r.Context())
	if err != nil {
		h.logger.Error("failed to detect ineligible entries", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, entries.Items())
}

// Rebuild resynchronizes the roster from an order-source snapshot
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var records []domain.OrderRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	result, err := h.entries.RebuildFromSource(r.Context(), records)
	if err != nil {
		h.logger.Error("roster rebuild failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	h.hub.Broadcast(websocket.MessageTypeRebuildCompleted, "", result)
	h.writeSuccess(w, result)
}

// GetEntry returns a roster entry by ID
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "entryID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	entry, err := h.entries.FindOrFail(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "failed to get roster entry")
		return
	}
	h.writeSuccess(w, entry)
}

// UpdateEntry applies a partial update to a roster entry
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "entryID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	var attrs map[string]string
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	entry, err := h.entries.Update(r.Context(), id, attrs)
	if err != nil {
		h.writeDomainError(w, err, "failed to update roster entry")
		return
	}

	h.hub.Broadcast(websocket.MessageTypeEntryUpdated, entry.Venue, entry)
	h.writeSuccess(w, entry)
}

// DeleteEntry removes a roster entry
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "entryID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	entry, err := h.entries.Find(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load roster entry", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if entry == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrNotFound)
		return
	}

	if _, err := h.entries.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete roster entry", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	h.hub.Broadcast(websocket.MessageTypeEntryDeleted, entry.Venue, entry)
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// VenueReport returns a venue's roster grouped by age group
func (h *Handler) VenueReport(w http.ResponseWriter, r *http.Request) {
	venue := chi.URLParam(r, "venue")
	if venue == "" {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	report, err := h.service.VenueReport(r.Context(), venue)
	if err != nil {
		h.logger.Error("failed to build venue report", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, groupedJSON(report))
}

// SeasonReport returns a season's roster grouped by venue
func (h *Handler) SeasonReport(w http.ResponseWriter, r *http.Request) {
	season := r.URL.Query().Get("season")
	if season == "" {
		h.writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	report, err := h.service.SeasonReport(r.Context(), season)
	if err != nil {
		h.logger.Error("failed to build season report", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, groupedJSON(report))
}

// WeekReport returns the roster for the week containing the given date
func (h *Handler) WeekReport(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := domain.ParseDate(dateStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, errInvalidRequest)
			return
		}
		day = parsed
	}

	report, err := h.service.WeekReport(r.Context(), day)
	if err != nil {
		h.logger.Error("failed to build week report", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, groupedJSON(report))
}

// SpecialNeedsReport lists entries with medical or dietary notes
func (h *Handler) SpecialNeedsReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.SpecialNeedsReport(r.Context())
	if err != nil {
		h.logger.Error("failed to build special-needs report", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, groupedJSON(report))
}

// GetStats returns roster-wide counters
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, stats)
}

// ExportRoster renders matching entries as display-named rows
func (h *Handler) ExportRoster(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Export(r.Context(), queryCriteria(r))
	if err != nil {
		h.logger.Error("failed to export roster", "error", err)
		h.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.writeSuccess(w, rows)
}
