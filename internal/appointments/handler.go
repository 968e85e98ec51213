package appointments

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/observability/metrics"
	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

// Handler exposes the booking API over HTTP. Auth middleware runs
// before every route, so a missing caller is a server error here.
type Handler struct {
	svc     *Service
	slots   *SlotCalculator
	cache   *SlotCache
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewHandler creates the appointments HTTP handler.
func NewHandler(svc *Service, slots *SlotCalculator, cache *SlotCache, m *metrics.BookingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		svc:     svc,
		slots:   slots,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// createRequest is the booking request body. dietitianId is the
// historical field name and covers health counselors too.
type createRequest struct {
	DietitianID     string `json:"dietitianId"`
	ClientID        string `json:"clientId"`
	ScheduledAt     string `json:"scheduledAt"`
	DurationMinutes int    `json:"duration"`
	Type            string `json:"type"`
	TypeID          string `json:"appointmentTypeId"`
	Notes           string `json:"notes"`
	ModeID          string `json:"appointmentModeId"`
	ModeName        string `json:"modeName"`
	Location        string `json:"location"`
}

func (req createRequest) toInput() (CreateInput, error) {
	var input CreateInput
	providerID, err := uuid.Parse(req.DietitianID)
	if err != nil {
		return input, errors.New("dietitianId must be a valid id")
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return input, errors.New("clientId must be a valid id")
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return input, errors.New("scheduledAt must be RFC 3339")
	}
	return CreateInput{
		ProviderID:      providerID,
		ClientID:        clientID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		TypeID:          req.TypeID,
		Notes:           req.Notes,
		ModeID:          req.ModeID,
		ModeName:        req.ModeName,
		Location:        req.Location,
	}, nil
}

// Create books an appointment on behalf of staff.
// POST /api/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if caller.Role == identity.RoleClient {
		writeJSONError(w, http.StatusForbidden, "clients must book through the client endpoint")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := h.svc.Create(r.Context(), caller, input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// CreateSelf books an appointment for the authenticated client. The
// client id is always the caller's own id regardless of the body.
// POST /api/client/appointments
func (h *Handler) CreateSelf(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if caller.Role != identity.RoleClient {
		writeJSONError(w, http.StatusForbidden, "staff must book through the staff endpoint")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ClientID = caller.ID
	input, err := req.toInput()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := h.svc.Create(r.Context(), caller, input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// listResponse is the paginated listing envelope.
type listResponse struct {
	Appointments []Appointment `json:"appointments"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
}

// List returns the role-scoped appointment listing.
// GET /api/appointments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	filter := ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	if raw := q.Get("date"); raw != "" {
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			writeJSONError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		filter.Date = raw
	}
	if raw := q.Get("dietitianId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "dietitianId must be a valid id")
			return
		}
		filter.ProviderID = &id
	}
	if raw := q.Get("clientId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "clientId must be a valid id")
			return
		}
		filter.ClientID = &id
	}
	filter.IncludeAll, _ = strconv.ParseBool(q.Get("includeAll"))
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	appts, total, err := h.svc.List(r.Context(), caller, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.Limit
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	writeJSON(w, http.StatusOK, listResponse{
		Appointments: appts,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	})
}

// slotsResponse is the available-slots payload.
type slotsResponse struct {
	Date     string `json:"date"`
	Duration int    `json:"duration"`
	Slots    []Slot `json:"slots"`
}

// AvailableSlots enumerates a provider's bookable slots for a date.
// GET /api/appointments/available-slots?providerId=&date=&duration=
// dietitianId is accepted as a legacy alias for providerId.
func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawProvider := q.Get("providerId")
	if rawProvider == "" {
		rawProvider = q.Get("dietitianId")
	}
	providerID, err := uuid.Parse(rawProvider)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "providerId must be a valid id")
		return
	}
	dateRaw := q.Get("date")
	date, err := time.Parse("2006-01-02", dateRaw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	duration := h.slots.DefaultDuration()
	if raw := q.Get("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			writeJSONError(w, http.StatusBadRequest, "duration must be a positive number of minutes")
			return
		}
	}

	if slots, ok := h.cache.Get(r.Context(), providerID, dateRaw, duration); ok {
		writeJSON(w, http.StatusOK, slotsResponse{Date: dateRaw, Duration: duration, Slots: slots})
		return
	}

	started := time.Now()
	slots, err := h.slots.Slots(r.Context(), providerID, date, duration)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.metrics.ObserveSlotQuery(time.Since(started).Seconds())
	if slots == nil {
		slots = []Slot{}
	}
	h.cache.Set(r.Context(), providerID, dateRaw, duration, slots)
	writeJSON(w, http.StatusOK, slotsResponse{Date: dateRaw, Duration: duration, Slots: slots})
}

// Get returns one appointment.
// GET /api/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Get(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// History returns the appointment's lifecycle events in append order.
// GET /api/appointments/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	events, err := h.svc.History(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []LifecycleEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": events})
}

// Cancel transitions the appointment to cancelled.
// POST /api/appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	appt, err := h.svc.Cancel(r.Context(), caller, id, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Reschedule moves the appointment to a new time.
// POST /api/appointments/{id}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		ScheduledAt     string `json:"scheduledAt"`
		DurationMinutes int    `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	newTime, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "scheduledAt must be RFC 3339")
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), caller, id, newTime, req.DurationMinutes)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Complete marks the appointment completed.
// POST /api/appointments/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Complete(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) callerAndID(w http.ResponseWriter, r *http.Request) (identity.Caller, uuid.UUID, bool) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return identity.Caller{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid appointment id")
		return identity.Caller{}, uuid.Nil, false
	}
	return caller, id, true
}

// writeServiceError maps service sentinel errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrClientNotFound), errors.Is(err, ErrProviderNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		msg := "the selected time overlaps an existing appointment"
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			msg = fmt.Sprintf("the selected time overlaps an existing appointment from %s to %s",
				conflict.Start.Format(time.RFC3339), conflict.End.Format(time.RFC3339))
		}
		writeJSONError(w, http.StatusConflict, msg+"; refresh available slots and choose another time")
	case errors.Is(err, ErrInvalidState):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("appointments handler error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
