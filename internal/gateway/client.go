// Package gateway предоставляет клиент платёжного шлюза.
//
// Шлюз — внешний доверенный компонент: подписи вебхуков и корректность
// платёжных данных проверяются на его стороне, клиент лишь передаёт результат
// как есть. Клиент не выполняет ретраев: ошибка шлюза сразу возвращается
// вызывающему, повтор — забота клиента или политики повторов самого шлюза.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Значения поля Status в ответах шлюза.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ActionPaymentCompleted — действие вебхука об успешной оплате.
const ActionPaymentCompleted = "payment_completed"

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// PaymentRequest описывает запрос на создание платёжной ссылки.
type PaymentRequest struct {
	Email         string          `json:"email"`
	ProductTitle  string          `json:"product_title"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

// PaymentInit описывает ответ шлюза на создание платежа.
type PaymentInit struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
	TxRef       string `json:"tx_ref,omitempty"`
}

// Verification описывает результат проверки платежа по ссылке транзакции.
type Verification struct {
	Status      string `json:"status"`
	PaymentType string `json:"payment_type,omitempty"`
}

// WebhookEvent описывает разобранное тело вебхука шлюза.
type WebhookEvent struct {
	Status string `json:"status"`
	Action string `json:"action"`
	TxRef  string `json:"tx_ref"`
}

// NewClient создаёт HTTP-клиент шлюза по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) url(path string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("gateway client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return base + path, nil
}

// CreatePayment создаёт платёж и возвращает платёжную ссылку и ссылку транзакции.
func (c *Client) CreatePayment(ctx context.Context, payReq PaymentRequest) (*PaymentInit, error) {
	url, err := c.url("/api/payments")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result PaymentInit
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// VerifyPayment запрашивает у шлюза статус платежа по ссылке транзакции.
func (c *Client) VerifyPayment(ctx context.Context, txRef string) (*Verification, error) {
	url, err := c.url("/api/payments/" + txRef)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Verification{Status: StatusFailed}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Verification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// ProcessWebhook разбирает тело вебхука шлюза и извлекает ссылку транзакции.
func (c *Client) ProcessWebhook(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	if event.TxRef == "" {
		return nil, fmt.Errorf("webhook payload without tx_ref")
	}

	return &event, nil
}
