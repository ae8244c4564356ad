package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/orders"
	"github.com/vladislavdragonenkov/shopcore/internal/service/webhook"
)

// Заголовки идентичности. Аутентификацию выполняет периметр;
// сервис доверяет заголовкам и передаёт актора явным аргументом.
const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
	headerSignature = "X-Signature"
)

const maxWebhookBody = 64 * 1024

// Handler связывает HTTP-маршруты с сервисом заказов.
type Handler struct {
	svc      *orders.Service
	ingestor *webhook.Ingestor
	verifier *webhook.Verifier
	logger   *log.Entry
}

// NewHandler создаёт HTTP-handler.
func NewHandler(svc *orders.Service, ingestor *webhook.Ingestor, verifier *webhook.Verifier, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{svc: svc, ingestor: ingestor, verifier: verifier, logger: logger}
}

func actorFrom(r *http.Request) domain.Actor {
	role := domain.Role(r.Header.Get(headerActorRole))
	if role != domain.RoleAdmin {
		role = domain.RoleBuyer
	}
	return domain.Actor{ID: r.Header.Get(headerActorID), Role: role}
}

type productPayload struct {
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"`
	PriceMinor      int64  `json:"price_minor"`
	PromoPriceMinor int64  `json:"promo_price_minor,omitempty"`
	Stock           int32  `json:"stock"`
	Reserved        int32  `json:"reserved,omitempty"`
}

type addToCartPayload struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type createOrderPayload struct {
	ShippingAddress string `json:"shipping_address"`
}

type updateStatusPayload struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type orderLineView struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderView struct {
	ID              string          `json:"id"`
	BuyerID         string          `json:"buyer_id"`
	Status          string          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	AmountMinor     int64           `json:"amount_minor"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Lines           []orderLineView `json:"lines"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toOrderView(order domain.Order) orderView {
	view := orderView{
		ID:              order.ID,
		BuyerID:         order.BuyerID,
		Status:          string(order.Status),
		ShippingAddress: order.ShippingAddress,
		AmountMinor:     order.AmountMinor(),
		ExpiresAt:       order.ExpiresAt,
		Lines:           make([]orderLineView, 0, len(order.Lines)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, orderLineView{
			ID:         line.ID,
			ProductID:  line.ProductID,
			Title:      line.Title,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
		})
	}
	return view
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError транслирует доменные ошибки в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrOrderIDRequired),
		errors.Is(err, domain.ErrExternalIDRequired),
		errors.Is(err, domain.ErrAmountNegative):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrSignatureInvalid):
		code = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrOrderLineNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrUnknownOrderRef):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNoPaymentIntent),
		domain.IsConcurrencyLost(err):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
		h.logger.WithError(err).Error("unhandled error")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := decode(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	product, err := h.svc.CreateProduct(r.Context(), actorFrom(r), domain.Product{
		ID:              payload.ID,
		Title:           payload.Title,
		PriceMinor:      payload.PriceMinor,
		PromoPriceMinor: payload.PromoPriceMinor,
		Stock:           payload.Stock,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, productPayload{
		ID:              product.ID,
		Title:           product.Title,
		PriceMinor:      product.PriceMinor,
		PromoPriceMinor: product.PromoPriceMinor,
		Stock:           product.Stock,
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productPayload{
		ID:              product.ID,
		Title:           product.Title,
		PriceMinor:      product.PriceMinor,
		PromoPriceMinor: product.PromoPriceMinor,
		Stock:           product.Stock,
		Reserved:        product.Reserved,
	})
}

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.CartLines(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var payload addToCartPayload
	if err := decode(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.svc.AddToCart(r.Context(), actorFrom(r), payload.ProductID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderPayload
	if err := decode(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), actorFrom(r), payload.ShippingAddress)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderView(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	buyerID := r.URL.Query().Get("buyer_id")
	if buyerID == "" {
		buyerID = actor.ID
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	list, err := h.svc.ListOrders(r.Context(), actor, buyerID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]orderView, 0, len(list))
	for _, order := range list {
		views = append(views, toOrderView(order))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelOrder(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteLine(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteLine(r.Context(), actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var payload updateStatusPayload
	if err := decode(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	status := domain.OrderStatus(payload.Status)
	if !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	order, err := h.svc.UpdateOrderStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"), status, payload.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Timeline(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.svc.InitiatePayment(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": redirect})
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.VerifyPayment(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

// paymentWebhook принимает уведомления шлюза. Подпись проверяется по сырому
// телу до разбора JSON. Обработанный повтор подтверждается кодом 200.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if err := h.verifier.Verify(r.Header.Get(headerSignature), body); err != nil {
		h.logger.WithError(err).Warn("webhook signature rejected")
		h.writeError(w, err)
		return
	}

	if err := h.ingestor.ProcessBody(r.Context(), body); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
