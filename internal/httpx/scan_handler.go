package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-tickethub.git/internal/checkin"
	"github.com/ariefcatur/go-tickethub.git/internal/tickets"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type ScanHandler struct {
	Coordinator *checkin.Coordinator
	Validate    *validator.Validate
	Logger      *logrus.Logger
}

type ScanReq struct {
	Code       string `json:"code" validate:"required"`
	OperatorID string `json:"operator_id" validate:"required"`
}

type ScanResp struct {
	Result checkin.Result  `json:"result"`
	Ticket *tickets.Ticket `json:"ticket,omitempty"`
}

func (h *ScanHandler) Register(r *chi.Mux) {
	r.Post("/v1/checkin", h.scan)
}

// scan selalu balas 200 dengan field result: operator di pintu butuh pesan
// spesifik (already_used vs unknown), bukan taxonomy error internal.
func (h *ScanHandler) scan(w http.ResponseWriter, r *http.Request) {
	var req ScanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, snapshot, err := h.Coordinator.Scan(r.Context(), req.Code, req.OperatorID)
	if err != nil {
		h.Logger.WithError(err).WithField("code", req.Code).Error("scan")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	resp := ScanResp{Result: result}
	if result != checkin.ResultUnknown {
		resp.Ticket = &snapshot
	}
	writeJSON(w, http.StatusOK, resp)
}
