package store

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/mysellum/marketplace-api/internal/common"
)

type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Create registers a new store owned by the acting user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorEmail(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return
	}
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "validation failed", err.Error())
			return
		}
	}
	st, err := h.Svc.Create(r.Context(), actor, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": st})
}

// Get returns one store.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Get(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}

// List returns all stores, optionally filtered by tags (comma separated).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if raw := strings.TrimSpace(r.URL.Query().Get("tags")); raw != "" {
		tags := make([]string, 0)
		for _, tag := range strings.Split(raw, ",") {
			if t := strings.TrimSpace(tag); t != "" {
				tags = append(tags, t)
			}
		}
		stores, err := h.Svc.FilterByTags(r.Context(), tags)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": stores})
		return
	}
	stores, err := h.Svc.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stores})
}

// Edit applies a partial profile update; only the owner may edit.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	var in EditInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	st, err := h.Svc.Edit(r.Context(), actor, chi.URLParam(r, "storeID"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}

// Delete removes the store; only the owner may delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	if err := h.Svc.Delete(r.Context(), actor, chi.URLParam(r, "storeID")); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "DELETED"}})
}

// RegisterMerchant stores a validated processor merchant id on the store.
func (h *Handler) RegisterMerchant(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	var in struct {
		MerchantID string `json:"merchantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	if err := h.Svc.RegisterMerchant(r.Context(), actor, chi.URLParam(r, "storeID"), in.MerchantID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "REGISTERED"}})
}

// SignUpLink returns a processor onboarding link for the store owner.
func (h *Handler) SignUpLink(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	var in struct {
		ReturnURL string `json:"returnUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	link, err := h.Svc.SignUpLink(r.Context(), actor, chi.URLParam(r, "storeID"), in.ReturnURL)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"signUpLink": link}})
}
