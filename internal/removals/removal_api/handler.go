package removal_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-workflow/internal/auth"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/removals"
	"ms-workflow/internal/utils"
)

type Handler struct {
	Service *removals.Service
	Logger  *logger.Logger
}

func NewHandler(service *removals.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workflow/sub-events/{subEventID}", func(r chi.Router) {
		r.Delete("/volunteers/{volunteerID}", h.RemoveVolunteer)
		r.Get("/removals", h.ListRemovals)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, removals.ErrVolunteerNotFound),
		errors.Is(err, removals.ErrSubEventNotFound),
		errors.Is(err, removals.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, removals.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, removals.ErrReasonRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, status, utils.ErrorResponse("operation failed", "internal error"))
		return
	}
	utils.WriteJSON(w, status, utils.ErrorResponse("operation failed", err.Error()))
}

func (h *Handler) RemoveVolunteer(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	subEventID := chi.URLParam(r, "subEventID")
	volunteerID := chi.URLParam(r, "volunteerID")

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	if err := h.Service.Remove(r.Context(), actor, subEventID, volunteerID, req.Reason); err != nil {
		h.writeError(w, "RemoveVolunteer", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("volunteer removed", nil))
}

func (h *Handler) ListRemovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	subEventID := chi.URLParam(r, "subEventID")
	history, err := h.Service.Removals(r.Context(), actor, subEventID)
	if err != nil {
		h.writeError(w, "ListRemovals", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("removal history", history))
}
