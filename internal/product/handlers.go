package product

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

// Create adds a product to the store in the URL.
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
	p, err := h.Svc.Create(r.Context(), actor, chi.URLParam(r, "storeID"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Get returns one product.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// ListByStore returns the store's products.
func (h *Handler) ListByStore(w http.ResponseWriter, r *http.Request) {
	products, err := h.Svc.ListByStore(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// Edit applies a partial update.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	var in EditInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	p, err := h.Svc.Edit(r.Context(), actor, chi.URLParam(r, "productID"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// UpdateStock sets the product's stock amount.
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	var in struct {
		StockAmount int `json:"stockAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	p, err := h.Svc.UpdateStock(r.Context(), actor, chi.URLParam(r, "productID"), in.StockAmount)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Delete removes a product.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.ActorEmail(r.Context())
	if err := h.Svc.Delete(r.Context(), actor, chi.URLParam(r, "productID")); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "DELETED"}})
}
