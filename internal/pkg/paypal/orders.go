package paypal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      money  `json:"amount"`
}

type createOrderRequest struct {
	Intent             string         `json:"intent"`
	PurchaseUnits      []purchaseUnit `json:"purchase_units"`
	ApplicationContext struct {
		ReturnURL  string `json:"return_url,omitempty"`
		CancelURL  string `json:"cancel_url,omitempty"`
		UserAction string `json:"user_action"`
	} `json:"application_context"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// Order is a created checkout order.
type Order struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"-"`
	Links       []link `json:"links"`
}

// CreateOrder creates a CAPTURE intent order for a wallet deposit.
// reference is echoed back in custom_id and used as the idempotency key.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, reference, description string) (*Order, error) {
	req := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: reference,
			CustomID:    reference,
			Description: description,
			Amount:      money{CurrencyCode: "USD", Value: formatAmount(amount)},
		}},
	}
	req.ApplicationContext.ReturnURL = c.cfg.ReturnURL
	req.ApplicationContext.CancelURL = c.cfg.CancelURL
	req.ApplicationContext.UserAction = "PAY_NOW"

	var order Order
	if err := c.call(ctx, "POST", "/v2/checkout/orders", "order-"+reference, req, &order); err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			order.ApprovalURL = l.Href
			break
		}
	}
	return &order, nil
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount money  `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Capture is the result of capturing an approved order.
type Capture struct {
	OrderID   string
	CaptureID string
	Status    string
	Amount    decimal.Decimal
}

// Completed reports whether funds were captured.
func (c *Capture) Completed() bool {
	return c.Status == "COMPLETED"
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	var resp captureResponse
	if err := c.call(ctx, "POST", "/v2/checkout/orders/"+orderID+"/capture", "capture-"+orderID, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("paypal capture order: %w", err)
	}

	out := &Capture{OrderID: resp.ID, Status: resp.Status}
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := resp.PurchaseUnits[0].Payments.Captures[0]
		out.CaptureID = capture.ID
		amount, err := decimal.NewFromString(capture.Amount.Value)
		if err == nil {
			out.Amount = amount
		}
	}
	return out, nil
}
