package reviews

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/mysellum/marketplace-api/internal/common"
)

type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Create adds the acting user's review for the store. Responses carry the
// store's recomputed average rating alongside the review.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorEmail(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	review, avg, err := h.Svc.Add(r.Context(), actor, chi.URLParam(r, "storeID"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": review, "avgRating": avg})
}

// List returns a page of the store's reviews.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.AtoiDefault(r.URL.Query().Get("page"), 1)
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	reviews, err := h.Svc.ListByStore(r.Context(), chi.URLParam(r, "storeID"), page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": reviews})
}

// Edit updates the acting user's review.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	review, avg, err := h.Svc.Edit(r.Context(), actor, chi.URLParam(r, "storeID"), chi.URLParam(r, "reviewID"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": review, "avgRating": avg})
}

// Delete removes the acting user's review.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	avg, err := h.Svc.Delete(r.Context(), actor, chi.URLParam(r, "storeID"), chi.URLParam(r, "reviewID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"avgRating": avg})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return Input{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "validation failed", err.Error())
			return Input{}, false
		}
	}
	return in, true
}
