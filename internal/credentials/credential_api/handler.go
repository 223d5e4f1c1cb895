package credential_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-workflow/internal/auth"
	"ms-workflow/internal/credentials"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/utils"
)

type Handler struct {
	Service *credentials.Service
	Logger  *logger.Logger
}

func NewHandler(service *credentials.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workflow/credentials", func(r chi.Router) {
		r.Post("/", h.IssueCredential)
		r.Post("/redeem", h.RedeemCredential)
		r.Post("/revoke", h.RevokeCredential)
	})
	r.Get("/workflow/events/{eventID}/credentials", h.ListEventCredentials)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, credentials.ErrEventNotFound),
		errors.Is(err, credentials.ErrCredentialNotFound):
		return http.StatusNotFound
	case errors.Is(err, credentials.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, credentials.ErrCredentialExpired),
		errors.Is(err, credentials.ErrCredentialUsed),
		errors.Is(err, credentials.ErrCredentialRevoked),
		errors.Is(err, credentials.ErrCredentialNotYours),
		errors.Is(err, credentials.ErrWrongPassword),
		errors.Is(err, credentials.ErrCodeTaken),
		errors.Is(err, credentials.ErrRedemptionInProgress):
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

// IssueCredential mints a credential. The plaintext password appears in this
// response and nowhere else.
func (h *Handler) IssueCredential(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		EventID   string `json:"event_id"`
		StudentID string `json:"student_id"`
		Code      string `json:"code"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.EventID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "event_id is required"))
		return
	}

	params := credentials.IssueParams{
		EventID:    req.EventID,
		StudentID:  req.StudentID,
		CustomCode: req.Code,
	}
	if req.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "expires_at must be RFC3339"))
			return
		}
		params.ExpiresAt = expiresAt
	}

	issued, err := h.Service.Issue(r.Context(), actor, params)
	if err != nil {
		h.writeError(w, "IssueCredential", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("credential issued", issued))
}

func (h *Handler) RedeemCredential(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		CredentialCode string `json:"credential_code"`
		Password       string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.CredentialCode == "" || req.Password == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "credential_code and password are required"))
		return
	}

	result, err := h.Service.Redeem(r.Context(), actor, req.CredentialCode, req.Password)
	if err != nil {
		h.writeError(w, "RedeemCredential", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("credential redeemed", result))
}

func (h *Handler) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		CredentialID string `json:"credential_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.CredentialID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "credential_id is required"))
		return
	}

	if err := h.Service.Revoke(r.Context(), actor, req.CredentialID); err != nil {
		h.writeError(w, "RevokeCredential", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("credential revoked", nil))
}

func (h *Handler) ListEventCredentials(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	eventID := chi.URLParam(r, "eventID")
	creds, err := h.Service.EventCredentials(r.Context(), actor, eventID)
	if err != nil {
		h.writeError(w, "ListEventCredentials", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event credentials", creds))
}
