package curlec

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/khholdings/agentpay-backend/pkg/config"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

// ProviderName identifies the gateway in audit records and logs.
const ProviderName = "curlec"

// Doer lets tests substitute the HTTP transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Curlec REST API with a basic-auth credential pair.
// Without credentials it operates in mock mode: deterministic synthetic
// results, no network calls. Mock mode exists for local development and
// integration tests and must not be enabled in production.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	sandbox   bool
	http      Doer
	logg      *logger.Logger
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.CurlecConfig, logg *logger.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     strings.TrimSpace(cfg.KeyID),
		keySecret: strings.TrimSpace(cfg.KeySecret),
		sandbox:   cfg.Sandbox,
		http:      &http.Client{Timeout: cfg.RequestTimeout},
		logg:      logg,
	}
}

// WithHTTPDoer swaps the transport; used by tests.
func (c *Client) WithHTTPDoer(doer Doer) *Client {
	if doer != nil {
		c.http = doer
	}
	return c
}

// Configured reports whether real credentials are present.
func (c *Client) Configured() bool {
	return c.keyID != "" && c.keySecret != ""
}

// Sandbox reports whether relaxed-trust webhook verification applies.
func (c *Client) Sandbox() bool {
	return c.sandbox
}

// KeySecret exposes the shared secret for webhook signature checks.
func (c *Client) KeySecret() string {
	return c.keySecret
}

// PlanRequest mirrors the gateway's plan creation payload.
type PlanRequest struct {
	Item     PlanItem          `json:"item"`
	Period   string            `json:"period"`
	Interval int               `json:"interval"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type PlanItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// PlanResult is the normalized plan creation response.
type PlanResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SubscriptionRequest mirrors the gateway's subscription creation payload.
type SubscriptionRequest struct {
	PlanID         string            `json:"plan_id"`
	TotalCount     int               `json:"total_count"`
	Quantity       int               `json:"quantity"`
	CustomerNotify int               `json:"customer_notify"`
	StartAt        int64             `json:"start_at"`
	ExpireBy       int64             `json:"expire_by"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// SubscriptionResult is the normalized subscription creation response.
type SubscriptionResult struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
}

// OrderRequest mirrors the gateway's order creation payload.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// OrderResult is the normalized order creation response.
type OrderResult struct {
	ID          string  `json:"id"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	CheckoutURL *string `json:"checkout_url"`
}

// CreatePlan registers a billing plan with the gateway.
func (c *Client) CreatePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if !c.Configured() {
		return &PlanResult{
			ID:     "plan_MOCK_" + mockSuffix(req.Notes),
			Status: "active",
		}, nil
	}
	var result PlanResult
	if err := c.post(ctx, "/plans", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateSubscription opens a recurring subscription against a plan.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error) {
	if !c.Configured() {
		return &SubscriptionResult{
			ID:     "sub_MOCK_" + mockSuffix(req.Notes),
			PlanID: req.PlanID,
			Status: "created",
		}, nil
	}
	var result SubscriptionResult
	if err := c.post(ctx, "/subscriptions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateOrder opens a one-off payment order.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if !c.Configured() {
		return &OrderResult{
			ID:       "MOCK-" + mockSuffix(req.Notes),
			Amount:   req.Amount,
			Currency: req.Currency,
		}, nil
	}
	var result OrderResult
	if err := c.post(ctx, "/orders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.keyID + ":" + c.keySecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/json")

	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"provider": ProviderName,
			"endpoint": endpoint,
		})
		c.logg.Info(logCtx, "gateway request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"provider": ProviderName,
				"endpoint": endpoint,
				"status":   resp.StatusCode,
				"body":     string(raw),
			})
			c.logg.Error(logCtx, "gateway returned non-success status", nil)
		}
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("gateway %s returned status %d", endpoint, resp.StatusCode))
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}

func mockSuffix(notes map[string]string) string {
	if notes != nil {
		if id, ok := notes["payment_id"]; ok && id != "" {
			return id
		}
		if id, ok := notes["plan_id"]; ok && id != "" {
			return id
		}
	}
	return "local"
}
