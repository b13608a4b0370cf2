package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Order statuses reported by the processor.
const (
	StatusCreated   = "CREATED"
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
	StatusDeclined  = "DECLINED"
)

// Link is a HATEOAS link returned with an order.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Order is a created checkout order, returned as the processor sent it.
type Order struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Links  []Link          `json:"links"`
	Raw    json.RawMessage `json:"-"`
}

// ApprovalURL returns the URL the payer must visit to approve the order.
func (o *Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// CaptureResult is the outcome of capturing an approved order.
type CaptureResult struct {
	OrderID       string
	Status        string
	CaptureID     string
	CaptureStatus string
	Raw           json.RawMessage
}

// Completed reports whether the funds were captured.
func (r *CaptureResult) Completed() bool {
	return r.Status == StatusCompleted && (r.CaptureStatus == "" || r.CaptureStatus == StatusCompleted)
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount      amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type applicationContext struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	BrandName  string `json:"brand_name,omitempty"`
	UserAction string `json:"user_action"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// CreateOrder creates a CAPTURE-intent order for a single purchase unit.
func (c *Client) CreateOrder(ctx context.Context, value float64, currency string) (*Order, error) {
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount:      amount{CurrencyCode: currency, Value: FormatAmount(value)},
			Description: c.cfg.Description,
		}},
		ApplicationContext: applicationContext{
			ReturnURL:  c.cfg.ReturnURL,
			CancelURL:  c.cfg.CancelURL,
			BrandName:  c.cfg.BrandName,
			UserAction: "PAY_NOW",
		},
	}

	var order Order
	raw, err := c.call(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", uuid.NewString(), body, &order)
	if err != nil {
		return nil, err
	}
	order.Raw = raw
	return &order, nil
}

// CaptureOrder captures the funds of an approved order. The request id is
// derived from the order so a repeated capture is deduplicated by the processor.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"

	var resp captureResponse
	raw, err := c.call(ctx, "capture_order", http.MethodPost, path, "capture-"+orderID, struct{}{}, &resp)
	if err != nil {
		return nil, err
	}

	result := &CaptureResult{OrderID: resp.ID, Status: resp.Status, Raw: raw}
	if result.OrderID == "" {
		result.OrderID = orderID
	}
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := resp.PurchaseUnits[0].Payments.Captures[0]
		result.CaptureID = capture.ID
		result.CaptureStatus = capture.Status
	}
	return result, nil
}
