package application_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-workflow/internal/applications"
	"ms-workflow/internal/auth"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/utils"
)

type Handler struct {
	Service *applications.Service
	Logger  *logger.Logger
}

func NewHandler(service *applications.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workflow/applications", func(r chi.Router) {
		r.Post("/event", h.SubmitEventApplication)
		r.Post("/event/decide", h.DecideEventApplication)
		r.Post("/team-lead", h.SubmitTeamLeadApplication)
		r.Post("/team-lead/decide", h.DecideTeamLeadApplication)
	})
	r.Get("/workflow/events/{eventID}/applications", h.ListEventApplications)
	r.Get("/workflow/events/{eventID}/applications/status", h.EventApplicationStatus)
	r.Get("/workflow/sub-events/{subEventID}/applications", h.ListTeamLeadApplications)
	r.Get("/workflow/sub-events/{subEventID}/applications/status", h.TeamLeadApplicationStatus)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, applications.ErrEventNotFound),
		errors.Is(err, applications.ErrSubEventNotFound),
		errors.Is(err, applications.ErrApplicationNotFound):
		return http.StatusNotFound
	case errors.Is(err, applications.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, applications.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, applications.ErrAlreadyOwner),
		errors.Is(err, applications.ErrDuplicatePending),
		errors.Is(err, applications.ErrAlreadyAssigned),
		errors.Is(err, applications.ErrSlotAlreadyFilled),
		errors.Is(err, applications.ErrAlreadyReviewed):
		return http.StatusConflict
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

func (h *Handler) SubmitEventApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		EventID string `json:"event_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.EventID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "event_id is required"))
		return
	}

	applicationID, err := h.Service.SubmitEventApplication(r.Context(), actor, req.EventID, req.Message)
	if err != nil {
		h.writeError(w, "SubmitEventApplication", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("application submitted", map[string]string{
		"application_id": applicationID,
	}))
}

func (h *Handler) DecideEventApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ApplicationID string `json:"application_id"`
		Status        string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.ApplicationID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "application_id is required"))
		return
	}

	decision, err := parseDecision(req.Status)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	if err := h.Service.DecideEventApplication(r.Context(), actor, req.ApplicationID, decision); err != nil {
		h.writeError(w, "DecideEventApplication", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("application %s", req.Status), nil))
}

func (h *Handler) SubmitTeamLeadApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		SubEventID string `json:"sub_event_id"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.SubEventID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "sub_event_id is required"))
		return
	}

	applicationID, err := h.Service.SubmitTeamLeadApplication(r.Context(), actor, req.SubEventID, req.Message)
	if err != nil {
		h.writeError(w, "SubmitTeamLeadApplication", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("application submitted", map[string]string{
		"application_id": applicationID,
	}))
}

func (h *Handler) DecideTeamLeadApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ApplicationID string `json:"application_id"`
		Action        string `json:"action"`
		Feedback      string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.ApplicationID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "application_id is required"))
		return
	}

	decision, err := parseDecision(req.Action)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	if err := h.Service.DecideTeamLeadApplication(r.Context(), actor, req.ApplicationID, decision, req.Feedback); err != nil {
		h.writeError(w, "DecideTeamLeadApplication", err)
		return
	}

	message := "application rejected"
	if decision == applications.DecisionApprove {
		message = "application approved"
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, nil))
}

func (h *Handler) ListEventApplications(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	eventID := chi.URLParam(r, "eventID")
	apps, err := h.Service.PendingEventApplications(r.Context(), actor, eventID)
	if err != nil {
		h.writeError(w, "ListEventApplications", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("pending applications", apps))
}

func (h *Handler) ListTeamLeadApplications(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	subEventID := chi.URLParam(r, "subEventID")
	apps, err := h.Service.PendingTeamLeadApplications(r.Context(), actor, subEventID)
	if err != nil {
		h.writeError(w, "ListTeamLeadApplications", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("pending applications", apps))
}

func (h *Handler) EventApplicationStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	eventID := chi.URLParam(r, "eventID")
	status, err := h.Service.EventApplicationStatus(r.Context(), eventID, actor.UserID)
	if err != nil {
		h.writeError(w, "EventApplicationStatus", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("application status", map[string]string{
		"status": string(status),
	}))
}

func (h *Handler) TeamLeadApplicationStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	subEventID := chi.URLParam(r, "subEventID")
	status, err := h.Service.TeamLeadApplicationStatus(r.Context(), subEventID, actor.UserID)
	if err != nil {
		h.writeError(w, "TeamLeadApplicationStatus", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("application status", map[string]string{
		"status": string(status),
	}))
}

func parseDecision(raw string) (applications.Decision, error) {
	switch raw {
	case "approve", "approved":
		return applications.DecisionApprove, nil
	case "reject", "rejected":
		return applications.DecisionReject, nil
	default:
		return "", fmt.Errorf("unknown decision %q", raw)
	}
}
