package paypal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type payoutAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type payoutItem struct {
	RecipientType string       `json:"recipient_type"`
	Amount        payoutAmount `json:"amount"`
	Receiver      string       `json:"receiver"`
	Note          string       `json:"note,omitempty"`
	SenderItemID  string       `json:"sender_item_id"`
}

type payoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject"`
	} `json:"sender_batch_header"`
	Items []payoutItem `json:"items"`
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
	Items []struct {
		PayoutItemID      string `json:"payout_item_id"`
		TransactionStatus string `json:"transaction_status"`
	} `json:"items"`
}

// Payout is the outcome of a single recipient payout.
type Payout struct {
	BatchID     string
	ItemID      string
	BatchStatus string
}

// SendPayout pays amount to a PayPal email. reference is the wallet transaction
// id and doubles as sender_batch_id, which PayPal refuses to reuse.
func (c *Client) SendPayout(ctx context.Context, email string, amount decimal.Decimal, reference, note string) (*Payout, error) {
	var req payoutRequest
	req.SenderBatchHeader.SenderBatchID = reference
	req.SenderBatchHeader.EmailSubject = "You have a payout"
	req.Items = []payoutItem{{
		RecipientType: "EMAIL",
		Amount:        payoutAmount{Value: formatAmount(amount), Currency: "USD"},
		Receiver:      email,
		Note:          note,
		SenderItemID:  reference,
	}}

	var resp payoutResponse
	if err := c.call(ctx, "POST", "/v1/payments/payouts", "payout-"+reference, req, &resp); err != nil {
		return nil, fmt.Errorf("paypal payout: %w", err)
	}

	out := &Payout{BatchID: resp.BatchHeader.PayoutBatchID, BatchStatus: resp.BatchHeader.BatchStatus}
	if len(resp.Items) > 0 {
		out.ItemID = resp.Items[0].PayoutItemID
	}
	return out, nil
}

// PayoutStatus returns the batch status for batchID.
func (c *Client) PayoutStatus(ctx context.Context, batchID string) (string, error) {
	var resp payoutResponse
	if err := c.call(ctx, "GET", "/v1/payments/payouts/"+batchID, "", nil, &resp); err != nil {
		return "", fmt.Errorf("paypal payout status: %w", err)
	}
	return resp.BatchHeader.BatchStatus, nil
}
