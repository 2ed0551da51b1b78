package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-tickethub.git/internal/gateway"
	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type WebhookHandler struct {
	Ingestor *webhook.Ingestor
	Logger   *logrus.Logger
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/v1/payments/notification", h.paymentNotification)
}

// paymentNotification: endpoint yang dipanggil gateway, at-least-once.
// Response code menentukan perilaku retry gateway: 2xx berhenti, 5xx retry.
// Error internal tidak pernah bocor ke body.
func (h *WebhookHandler) paymentNotification(w http.ResponseWriter, r *http.Request) {
	var n gateway.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "invalid payload"})
		return
	}

	err := h.Ingestor.HandleNotification(r.Context(), n)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, webhook.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "unauthenticated"})
	case errors.Is(err, ledger.ErrUnknownOrder):
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown order"})
	default:
		h.Logger.WithError(err).WithField("external_ref", n.OrderID).Error("payment notification")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "retry later"})
	}
}
