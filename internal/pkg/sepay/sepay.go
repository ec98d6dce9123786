// Package sepay builds Sepay VietQR transfer requests and parses its bank
// notification webhooks.
package sepay

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultQRBaseURL = "https://qr.sepay.vn/img"

// QR templates supported by qr.sepay.vn.
const (
	TemplateCompact  = "compact"
	TemplateCompact2 = "compact2"
	TemplatePrint    = "print"
	TemplateQROnly   = "qr_only"
)

var codePattern = regexp.MustCompile(`(?i)ND\d+`)

// Account is the receiving bank account shown on the QR code.
type Account struct {
	BankName      string
	AccountNumber string
	AccountName   string
	QRBaseURL     string
}

// QRURL returns the image URL of a VietQR code prefilled with amount and content.
func (a Account) QRURL(amountVND decimal.Decimal, content, template string) string {
	base := a.QRBaseURL
	if base == "" {
		base = DefaultQRBaseURL
	}
	if template == "" {
		template = TemplateCompact2
	}
	q := url.Values{}
	q.Set("acc", a.AccountNumber)
	q.Set("bank", a.BankName)
	q.Set("amount", amountVND.Round(0).String())
	q.Set("des", content)
	q.Set("template", template)
	return base + "?" + q.Encode()
}

// NewTransferContent returns a transfer memo: "ND", the last six digits of the
// unix millisecond clock and four random digits.
func NewTransferContent(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}
	return fmt.Sprintf("ND%s%04d", ms, n.Int64())
}

// ExtractCode finds the deposit code inside a free-form bank memo. Banks often
// prepend or append their own text, and some upper-case the whole memo.
func ExtractCode(content string) (string, bool) {
	m := codePattern.FindString(content)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}

// WebhookPayload is the body Sepay posts for every bank account movement.
type WebhookPayload struct {
	ID              int64           `json:"id"`
	Gateway         string          `json:"gateway"`
	TransactionDate string          `json:"transactionDate"`
	AccountNumber   string          `json:"accountNumber" validate:"required"`
	SubAccount      string          `json:"subAccount,omitempty"`
	Code            string          `json:"code,omitempty"`
	Content         string          `json:"content" validate:"required"`
	TransferType    string          `json:"transferType"`
	Description     string          `json:"description,omitempty"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`
	ReferenceCode   string          `json:"referenceCode"`
	Accumulated     decimal.Decimal `json:"accumulated"`
}

// Incoming reports whether the movement credits the account. Sepay omits the
// field on some gateways, which are treated as incoming.
func (p *WebhookPayload) Incoming() bool {
	return p.TransferType == "" || strings.EqualFold(p.TransferType, "in")
}

// Reference returns a stable idempotency reference for the bank movement.
func (p *WebhookPayload) Reference() string {
	if p.ReferenceCode != "" {
		return p.ReferenceCode
	}
	return fmt.Sprintf("sepay-%d", p.ID)
}

// WithinTolerance reports whether received is within pct percent of expected.
func WithinTolerance(expected, received, pct decimal.Decimal) bool {
	diff := received.Sub(expected).Abs()
	return diff.LessThanOrEqual(expected.Mul(pct).Div(decimal.NewFromInt(100)))
}
