package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client — HTTP-клиент платёжного шлюза.
// Любая транспортная ошибка или ответ 5xx трактуются как ErrGatewayUnavailable:
// вызывающий код сам решает, удерживать ли резерв до выяснения исхода.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент шлюза.
func NewClient(baseURL, token string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "gateway-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

type intentLinePayload struct {
	Title     string `json:"title"`
	UnitMinor int64  `json:"unit_amount_minor"`
	Qty       int32  `json:"quantity"`
}

type intentRequestPayload struct {
	ExternalReference string              `json:"external_reference"`
	Lines             []intentLinePayload `json:"items"`
	SuccessURL        string              `json:"success_url,omitempty"`
	FailureURL        string              `json:"failure_url,omitempty"`
}

type intentResponsePayload struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

type paymentResponsePayload struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
	AmountMinor       int64  `json:"amount_minor"`
}

// CreateIntent создаёт платёжное намерение у шлюза.
// Позиции валидируются до сетевого вызова: шлюз отклоняет некорректные
// позиции непрозрачной ошибкой, поэтому ловим их на своей стороне.
func (c *Client) CreateIntent(ctx context.Context, req domain.IntentRequest) (domain.PaymentIntent, error) {
	if req.OrderRef == "" {
		return domain.PaymentIntent{}, domain.ErrOrderIDRequired
	}
	if len(req.Lines) == 0 {
		return domain.PaymentIntent{}, domain.ErrCartEmpty
	}
	for _, line := range req.Lines {
		if line.Title == "" {
			return domain.PaymentIntent{}, domain.ErrTitleRequired
		}
		if line.Qty <= 0 {
			return domain.PaymentIntent{}, domain.ErrQtyInvalid
		}
		if line.UnitMinor <= 0 {
			return domain.PaymentIntent{}, domain.ErrPriceInvalid
		}
	}

	payload := intentRequestPayload{
		ExternalReference: req.OrderRef,
		SuccessURL:        req.SuccessURL,
		FailureURL:        req.FailureURL,
	}
	for _, line := range req.Lines {
		payload.Lines = append(payload.Lines, intentLinePayload{
			Title:     line.Title,
			UnitMinor: line.UnitMinor,
			Qty:       line.Qty,
		})
	}

	var resp intentResponsePayload
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", payload, &resp); err != nil {
		return domain.PaymentIntent{}, err
	}
	if resp.ID == "" {
		c.logger.WithField("order_ref", req.OrderRef).Warn("gateway returned intent without id")
		return domain.PaymentIntent{}, domain.ErrGatewayUnavailable
	}

	return domain.PaymentIntent{ID: resp.ID, RedirectURL: resp.RedirectURL}, nil
}

// GetPayment возвращает состояние платежа или intent по идентификатору.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (domain.GatewayPayment, error) {
	if paymentID == "" {
		return domain.GatewayPayment{}, domain.ErrPaymentNotFound
	}

	var resp paymentResponsePayload
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &resp); err != nil {
		return domain.GatewayPayment{}, err
	}

	return domain.GatewayPayment{
		ID:          resp.ID,
		Status:      domain.ParsePaymentStatus(resp.Status),
		ExternalRef: resp.ExternalReference,
		AmountMinor: resp.AmountMinor,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"method": method,
			"path":   path,
		}).Warn("gateway request failed")
		return domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrPaymentNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		c.logger.WithFields(log.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("gateway returned server error")
		return domain.ErrGatewayUnavailable
	case resp.StatusCode >= http.StatusBadRequest:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway rejected request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"method": method,
			"path":   path,
		}).Warn("gateway returned malformed body")
		return domain.ErrGatewayUnavailable
	}
	return nil
}

var _ domain.PaymentGateway = (*Client)(nil)
