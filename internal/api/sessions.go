package api

import (
	"net/http"
	"time"

	"github.com/erazemk/popis/internal/counting"
	"github.com/erazemk/popis/internal/model"
)

// SessionsHandler handles cycle-count session endpoints.
type SessionsHandler struct {
	Service *counting.Service
}

type createSessionRequest struct {
	CountDate      string `json:"count_date" validate:"omitempty,datetime=2006-01-02"`
	LocationFilter string `json:"location_filter" validate:"max=200"`
	Notes          string `json:"notes" validate:"max=2000"`
}

type recordCountRequest struct {
	ProductID       int64  `json:"product_id" validate:"required,gt=0"`
	VariantID       *int64 `json:"variant_id" validate:"omitempty,gt=0"`
	CountedQuantity *int   `json:"counted_quantity" validate:"required"`
	CountingMethod  string `json:"counting_method" validate:"count_method"`
}

// List handles GET /api/sessions?status=&location=&from=&to=.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.SessionFilter{
		Status:         q.Get("status"),
		LocationFilter: q.Get("location"),
	}
	if filter.Status != "" && model.StatusRank(filter.Status) == 0 {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid "+param+" date, expected YYYY-MM-DD")
			return
		}
		*dst = &t
	}

	sessions, err := h.Service.ListSessions(r.Context(), filter)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []model.CountSession{}
	}
	jsonResponse(w, http.StatusOK, sessions)
}

// Create handles POST /api/sessions.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := counting.CreateSessionInput{
		LocationFilter: req.LocationFilter,
		Notes:          req.Notes,
		Actor:          GetClaims(r.Context()).UserID,
	}
	if req.CountDate != "" {
		in.CountDate, _ = time.Parse(time.DateOnly, req.CountDate)
	}

	session, err := h.Service.CreateSession(r.Context(), in)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, session)
}

// Get handles GET /api/sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.Service.GetSession(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// Delete handles DELETE /api/sessions/{id}.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := h.Service.DeleteSession(r.Context(), id); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

// RecordCount handles POST /api/sessions/{id}/counts.
func (h *SessionsHandler) RecordCount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req recordCountRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Service.RecordCount(r.Context(), counting.RecordCountInput{
		SessionID:       id,
		ProductID:       req.ProductID,
		VariantID:       req.VariantID,
		CountedQuantity: *req.CountedQuantity,
		CountingMethod:  req.CountingMethod,
		Actor:           GetClaims(r.Context()).UserID,
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// History handles GET /api/sessions/{id}/history.
func (h *SessionsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	events, err := h.Service.CountHistory(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if events == nil {
		events = []model.CountEvent{}
	}
	jsonResponse(w, http.StatusOK, events)
}

// Recompute handles POST /api/sessions/{id}/recompute.
func (h *SessionsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	summary, err := h.Service.Recompute(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

// Complete handles POST /api/sessions/{id}/complete.
func (h *SessionsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.Service.MarkCompleted(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// Approve handles POST /api/sessions/{id}/approve. Permission is decided by
// the service's authorizer, not by route middleware.
func (h *SessionsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	result, err := h.Service.Approve(r.Context(), id, GetClaims(r.Context()).UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}
