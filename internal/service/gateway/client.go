package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/verdora/storefront/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Config задаёт параметры подключения к платёжному шлюзу.
type Config struct {
	BaseURL    string
	SecretKey  string
	ReturnURL  string // Куда шлюз вернёт пользователя после оплаты.
	WebsiteURL string
	Timeout    time.Duration
}

// Client — HTTP-клиент платёжного шлюза (Khalti-совместимый API).
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *log.Entry
}

var _ domain.PaymentGateway = (*Client)(nil)

// NewClient создаёт клиент шлюза.
func NewClient(cfg Config, logger *log.Entry) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "payment-gateway")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type initiateRequest struct {
	ReturnURL         string       `json:"return_url"`
	WebsiteURL        string       `json:"website_url"`
	Amount            int64        `json:"amount"`
	PurchaseOrderID   string       `json:"purchase_order_id"`
	PurchaseOrderName string       `json:"purchase_order_name"`
	CustomerInfo      customerInfo `json:"customer_info"`
}

type customerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type initiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
}

type lookupRequest struct {
	Pidx string `json:"pidx"`
}

type lookupResponse struct {
	Status string `json:"status"`
}

// Initiate создаёт платёжную сессию и возвращает URL для оплаты.
func (c *Client) Initiate(ctx context.Context, amountMinor int64, orderID, orderName string, customer domain.CustomerInfo) (domain.GatewaySession, error) {
	body := initiateRequest{
		ReturnURL:         c.cfg.ReturnURL,
		WebsiteURL:        c.cfg.WebsiteURL,
		Amount:            amountMinor,
		PurchaseOrderID:   orderID,
		PurchaseOrderName: orderName,
		CustomerInfo: customerInfo{
			Name:  customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
		},
	}

	var resp initiateResponse
	if err := c.post(ctx, "/epayment/initiate/", body, &resp); err != nil {
		return domain.GatewaySession{}, err
	}
	if resp.Pidx == "" || resp.PaymentURL == "" {
		return domain.GatewaySession{}, fmt.Errorf("gateway returned incomplete session: pidx=%q", resp.Pidx)
	}

	return domain.GatewaySession{
		SessionID:   resp.Pidx,
		RedirectURL: resp.PaymentURL,
	}, nil
}

// Verify запрашивает фактический статус платёжной сессии.
func (c *Client) Verify(ctx context.Context, sessionID string) (domain.GatewayStatus, error) {
	var resp lookupResponse
	if err := c.post(ctx, "/epayment/lookup/", lookupRequest{Pidx: sessionID}, &resp); err != nil {
		return "", err
	}

	switch status := domain.GatewayStatus(resp.Status); status {
	case domain.GatewayStatusCompleted, domain.GatewayStatusPending, domain.GatewayStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("gateway returned unknown status %q", resp.Status)
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.cfg.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Error("gateway request failed")
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.WithFields(log.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Error("gateway unavailable")
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway rejected request: status %d, body %s", resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
