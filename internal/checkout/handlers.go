package checkout

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/mysellum/marketplace-api/internal/common"
)

type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// CreateOrder builds and submits a processor order for the posted cart.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "validation failed", err.Error())
			return
		}
	}
	out, err := h.Svc.Create(r.Context(), payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// CaptureOrder captures a previously approved order.
func (h *Handler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	var payload CaptureInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	out, err := h.Svc.Capture(r.Context(), payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// RefundCapture refunds a capture, fully when no value is posted.
func (h *Handler) RefundCapture(w http.ResponseWriter, r *http.Request) {
	var payload RefundInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "invalid payload", nil)
		return
	}
	if err := h.Svc.Refund(r.Context(), payload); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "REFUNDED"}})
}
