package curlec

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/khholdings/agentpay-backend/pkg/config"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func configuredClient(doer Doer) *Client {
	cfg := config.CurlecConfig{
		BaseURL:        "https://api.curlec.test/v1",
		KeyID:          "key_id",
		KeySecret:      "key_secret",
		RequestTimeout: 5 * time.Second,
	}
	return NewClient(cfg, testLogger()).WithHTTPDoer(doer)
}

type fakeDoer struct {
	status  int
	body    string
	lastReq *http.Request
	lastRaw []byte
	err     error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if req.Body != nil {
		f.lastRaw, _ = io.ReadAll(req.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func TestCreateOrder_MockModeWithoutCredentials(t *testing.T) {
	client := NewClient(config.CurlecConfig{}, testLogger())
	if client.Configured() {
		t.Fatalf("client without credentials must not report configured")
	}

	result, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:   10_000,
		Currency: "MYR",
		Notes:    map[string]string{"payment_id": "pay-1"},
	})
	if err != nil {
		t.Fatalf("mock order: %v", err)
	}
	if result.ID != "MOCK-pay-1" {
		t.Fatalf("unexpected mock order id %s", result.ID)
	}
	if result.Amount != 10_000 || result.Currency != "MYR" {
		t.Fatalf("mock order must echo the request amount")
	}
}

func TestCreateSubscription_MockModeWithoutCredentials(t *testing.T) {
	client := NewClient(config.CurlecConfig{}, testLogger())

	result, err := client.CreateSubscription(context.Background(), SubscriptionRequest{
		PlanID: "plan_abc",
		Notes:  map[string]string{"payment_id": "pay-1"},
	})
	if err != nil {
		t.Fatalf("mock subscription: %v", err)
	}
	if result.ID != "sub_MOCK_pay-1" {
		t.Fatalf("unexpected mock subscription id %s", result.ID)
	}
	if result.PlanID != "plan_abc" {
		t.Fatalf("mock subscription must echo the plan id")
	}
}

func TestCreatePlan_MockModeUsesPlanID(t *testing.T) {
	client := NewClient(config.CurlecConfig{}, testLogger())

	result, err := client.CreatePlan(context.Background(), PlanRequest{
		Notes: map[string]string{"plan_id": "plan-uuid"},
	})
	if err != nil {
		t.Fatalf("mock plan: %v", err)
	}
	if result.ID != "plan_MOCK_plan-uuid" {
		t.Fatalf("unexpected mock plan id %s", result.ID)
	}
}

func TestCreateOrder_SendsBasicAuth(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{"id":"order_1","amount":10000,"currency":"MYR"}`}
	client := configuredClient(doer)

	result, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 10_000, Currency: "MYR"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.ID != "order_1" {
		t.Fatalf("unexpected order id %s", result.ID)
	}
	if doer.lastReq.URL.String() != "https://api.curlec.test/v1/orders" {
		t.Fatalf("unexpected url %s", doer.lastReq.URL)
	}
	if !strings.HasPrefix(doer.lastReq.Header.Get("Authorization"), "Basic ") {
		t.Fatalf("expected basic auth header")
	}
	var sent OrderRequest
	if err := json.Unmarshal(doer.lastRaw, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.Amount != 10_000 {
		t.Fatalf("unexpected sent amount %d", sent.Amount)
	}
}

func TestCreateOrder_NonSuccessStatus(t *testing.T) {
	doer := &fakeDoer{status: 400, body: `{"error":"bad request"}`}
	client := configuredClient(doer)

	if _, err := client.CreateOrder(context.Background(), OrderRequest{}); err == nil {
		t.Fatalf("expected error for 400 response")
	}
}
