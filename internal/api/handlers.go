// Package api exposes HTTP handlers for the activity scheduling service.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/laborsched/internal/auth"
	"example.com/laborsched/internal/domain"
	"example.com/laborsched/internal/persistence"
	"example.com/laborsched/internal/timegrid"
)

const (
	basePath     = "/api/actividades"
	defaultLimit = 50
	maxLimit     = 200
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *log.Logger
}

// NewHandler builds a Handler. A nil logger uses the standard logger.
func NewHandler(service *domain.Service, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags|log.Lshortfile)
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(basePath, h.activities)
	mux.HandleFunc(basePath+"/", h.activityByID)
	mux.HandleFunc(basePath+"/validate", h.validate)
	mux.HandleFunc(basePath+"/suggest-slots", h.suggestSlots)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "método no soportado")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, basePath+"/"), "/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "falta el id de la actividad")
		return
	}

	switch {
	case action == "cerrar" && r.Method == http.MethodPut:
		h.closeActivity(w, r, id)
	case action != "":
		writeError(w, http.StatusNotFound, "not_found", "ruta no encontrada")
	case r.Method == http.MethodGet:
		h.getActivity(w, r, id)
	case r.Method == http.MethodPut:
		h.updateActivity(w, r, id)
	case r.Method == http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "método no soportado")
	}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req ActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sched, err := parseSchedule(req.ResourceID, req.StartDate, req.StartTime, req.EndTime, req.EndDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		TenantID:     claims.TenantID,
		ResourceID:   sched.resourceID,
		Date:         sched.date,
		Interval:     sched.interval,
		WorkID:       req.WorkID,
		ActivityType: req.Type,
		Notes:        req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduledView(*result))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req ActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sched, err := parseSchedule(req.ResourceID, req.StartDate, req.StartTime, req.EndTime, req.EndDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := h.service.UpdateActivity(r.Context(), domain.UpdateActivityInput{
		TenantID:     claims.TenantID,
		ActivityID:   id,
		ResourceID:   sched.resourceID,
		Date:         sched.date,
		Interval:     sched.interval,
		WorkID:       req.WorkID,
		ActivityType: req.Type,
		Notes:        req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduledView(*result))
}

func (h *Handler) closeActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req CloseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := timegrid.ParseAligned(req.EndTime); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var endDate time.Time
	if strings.TrimSpace(req.EndDate) == "" {
		current, err := h.service.GetActivity(r.Context(), claims.TenantID, id)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		endDate = current.Date
	} else {
		d, err := parseDate("fechaFin", req.EndDate)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		endDate = d
	}

	closed, err := h.service.CloseActivity(r.Context(), claims.TenantID, id, endDate, req.EndTime)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*closed))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	activity, err := h.service.GetActivity(r.Context(), claims.TenantID, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteActivity(r.Context(), claims.TenantID, id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	q := r.URL.Query()
	resourceID := strings.TrimSpace(q.Get("recursoId"))
	if resourceID == "" {
		h.writeDomainError(w, errMissingField("recursoId"))
		return
	}

	var date *time.Time
	if raw := q.Get("fecha"); raw != "" {
		d, err := parseDate("fecha", raw)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		date = &d
	}

	limit := defaultLimit
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxLimit)
		}
	}

	cursor, err := persistence.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "cursor inválido")
		return
	}

	activities, next, err := h.service.ListActivities(r.Context(), claims.TenantID, resourceID, date, cursor, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "método no soportado")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req ValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sched, err := parseSchedule(req.ResourceID, req.StartDate, req.StartTime, req.EndTime, req.EndDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	report, err := h.service.ValidateInterval(r.Context(), claims.TenantID, sched.resourceID, sched.date, sched.interval, req.ExcludeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{HasConflicts: report.HasConflicts, Conflicts: toConflictViews(report.Conflicts)})
}

func (h *Handler) suggestSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "método no soportado")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	q := r.URL.Query()
	resourceID := strings.TrimSpace(q.Get("recursoId"))
	if resourceID == "" {
		h.writeDomainError(w, errMissingField("recursoId"))
		return
	}
	date, err := parseDate("fecha", q.Get("fecha"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	duration, err := strconv.Atoi(q.Get("duracion"))
	if err != nil {
		h.writeDomainError(w, &fieldError{field: "duracion", detail: "debe ser un número de minutos"})
		return
	}

	slots, err := h.service.SuggestSlots(r.Context(), claims.TenantID, resourceID, date, duration)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := SlotsResponse{Duration: duration, Slots: make([]IntervalView, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, toIntervalView(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireScope writes 401 or 403 unless the caller holds one of scopes.
func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "falta el token de acceso")
		return nil, false
	}
	if !claims.HasAnyScope(scopes...) {
		writeError(w, http.StatusForbidden, "forbidden", "se requiere el permiso "+scopes[0])
		return nil, false
	}
	return claims, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "no se pudo leer el cuerpo de la petición")
		return false
	}
	return true
}

// conflictBody is the 409 payload for writes that would double-book a resource.
type conflictBody struct {
	Type      string         `json:"type"`
	Detail    string         `json:"detail"`
	Conflicts []ConflictView `json:"conflictos"`
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var conflict *domain.ConflictError
	var field *fieldError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflictBody{
			Type:      "conflict",
			Detail:    "el recurso ya tiene actividades en ese horario",
			Conflicts: toConflictViews(conflict.Conflicts),
		})
	case errors.As(err, &field):
		writeError(w, http.StatusBadRequest, "validation_failed", field.Error())
	case errors.Is(err, timegrid.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, "invalid_format", "formato de hora inválido, use HH:MM en intervalos de 15 minutos")
	case errors.Is(err, domain.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", "la hora de fin debe ser posterior a la de inicio")
	case errors.Is(err, domain.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration", "la duración debe ser mayor que cero")
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "actividad no encontrada")
	case errors.Is(err, domain.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, "already_closed", "la actividad ya está cerrada")
	default:
		h.logger.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "error interno")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
