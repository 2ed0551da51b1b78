package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/redisx"
	"github.com/ariefcatur/go-tickethub.git/internal/tickets"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type OrdersHandler struct {
	Ledger   *ledger.Repo
	Tickets  *tickets.Repo
	Redis    *redis.Client
	Validate *validator.Validate
	OrderTTL time.Duration
	Logger   *logrus.Logger
}

type CreateOrderReq struct {
	EventID  string `json:"event_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0,lte=10"`
	// metode dipilih di widget gateway; di sini cuma preferensi awal
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=bank_transfer echannel cstore"`
}

type CreateOrderResp struct {
	OrderID     string    `json:"order_id"`
	ExternalRef string    `json:"external_ref"`
	GrossAmount int64     `json:"gross_amount"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type TicketResp struct {
	Code      string     `json:"code"`
	Status    string     `json:"status"`
	QR        string     `json:"qr"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
}

type OrderStatusResp struct {
	OrderID           string       `json:"order_id"`
	Status            string       `json:"status"`
	PaymentInstrument *string      `json:"payment_instrument"`
	ExpiresAt         time.Time    `json:"expires_at"`
	Tickets           []TicketResp `json:"tickets"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/v1/orders", h.createOrder)
	r.Get("/v1/orders", h.listOrders)
	r.Get("/v1/orders/{id}", h.getOrder)
	r.Post("/v1/orders/{id}/refund", h.refundOrder)
}

// buyerID datang dari layer auth di depan (kolaborator eksternal yang sudah
// memverifikasi identitas), bukan urusan service ini.
func buyerID(r *http.Request) string { return r.Header.Get("X-User-Id") }

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	buyer := buyerID(r)
	if buyer == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}

	ctx := r.Context()
	ev, err := h.Ledger.GetEvent(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownEvent) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
			return
		}
		h.Logger.WithError(err).Error("lookup event")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	now := time.Now().UTC()
	o := ledger.Order{
		ID:            uuid.NewString(),
		ExternalRef:   "TIX-" + uuid.NewString(),
		BuyerID:       buyer,
		EventID:       ev.ID,
		Quantity:      req.Quantity,
		UnitPrice:     ev.UnitPrice,
		GrossAmount:   ev.UnitPrice * int64(req.Quantity),
		Status:        ledger.StatusPending,
		PaymentMethod: req.PaymentMethod,
		ExpiresAt:     now.Add(h.OrderTTL),
		CreatedAt:     now,
	}
	// stok TIDAK di-reserve di sini; decrement terjadi saat issuance supaya
	// order yang tidak pernah bayar tidak menyandera inventory
	if err := h.Ledger.CreateOrder(ctx, o); err != nil {
		h.Logger.WithError(err).Error("create order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResp{
		OrderID:     o.ID,
		ExternalRef: o.ExternalRef,
		GrossAmount: o.GrossAmount,
		ExpiresAt:   o.ExpiresAt,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	// 2) fallback DB, jalur pull untuk client yang ketinggalan push realtime
	o, err := h.Ledger.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownOrder) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		h.Logger.WithError(err).Error("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	ts, err := h.Tickets.FindByOrderID(ctx, orderID)
	if err != nil {
		h.Logger.WithError(err).Error("get order tickets")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	resp := orderStatusResp(o, ts)
	b, _ := json.Marshal(resp)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	buyer := buyerID(r)
	if buyer == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	orders, err := h.Ledger.FindManyByBuyer(r.Context(), buyer, 0, 50)
	if err != nil {
		h.Logger.WithError(err).Error("list orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// refundOrder: jalur admin, PAID -> REFUNDED, tiket ikut dalam tx yang sama.
func (h *OrdersHandler) refundOrder(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Admin-Id") == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return
	}
	orderID := chi.URLParam(r, "id")
	won, err := h.Ledger.Refund(r.Context(), orderID)
	if err != nil {
		h.Logger.WithError(err).Error("refund order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !won {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not in a refundable state"})
		return
	}
	_ = h.Redis.Del(r.Context(), fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
	writeJSON(w, http.StatusOK, map[string]string{"status": string(ledger.StatusRefunded)})
}

func orderStatusResp(o ledger.Order, ts []tickets.Ticket) OrderStatusResp {
	out := OrderStatusResp{
		OrderID:           o.ID,
		Status:            string(o.Status),
		PaymentInstrument: o.PaymentInstrument,
		ExpiresAt:         o.ExpiresAt,
		Tickets:           make([]TicketResp, 0, len(ts)),
	}
	for _, t := range ts {
		out.Tickets = append(out.Tickets, TicketResp{
			Code: t.Code, Status: string(t.Status), QR: t.QR(), ScannedAt: t.ScannedAt,
		})
	}
	return out
}
