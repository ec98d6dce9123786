package email

import (
	"bytes"
	"context"
	"sync"
	"text/template"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Alert template names
const (
	TemplateManualWithdrawal    = "manual_withdrawal"
	TemplateDepositCreditFailed = "deposit_credit_failed"
	TemplateDepositReview       = "deposit_review"
	TemplateEscrowDisputed      = "escrow_disputed"
)

// Service sends ops alerts asynchronously. Without an API key alerts are only logged.
type Service struct {
	client    *SendGridClient
	opsEmail  string
	templates map[string]*template.Template
	queue     chan *queuedEmail
	wg        sync.WaitGroup
}

type queuedEmail struct {
	To           string
	Subject      string
	TemplateName string
	Data         interface{}
}

// NewService creates the alert service and starts its send worker.
func NewService(config SendGridConfig, opsEmail string) *Service {
	s := &Service{
		opsEmail:  opsEmail,
		templates: make(map[string]*template.Template),
		queue:     make(chan *queuedEmail, 100),
	}
	if config.APIKey != "" {
		s.client = NewSendGridClient(config)
	}

	templates := map[string]string{
		TemplateManualWithdrawal:    ManualWithdrawalTemplate,
		TemplateDepositCreditFailed: DepositCreditFailedTemplate,
		TemplateDepositReview:       DepositReviewTemplate,
		TemplateEscrowDisputed:      EscrowDisputedTemplate,
	}
	for name, content := range templates {
		s.templates[name] = template.Must(template.New(name).Parse(content))
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

func (s *Service) worker() {
	defer s.wg.Done()

	for email := range s.queue {
		if err := s.send(context.Background(), email); err != nil {
			log.Error().Err(err).
				Str("to", email.To).
				Str("template", email.TemplateName).
				Msg("Failed to send email")
		}
	}
}

func (s *Service) send(ctx context.Context, email *queuedEmail) error {
	tmpl, ok := s.templates[email.TemplateName]
	if !ok {
		log.Warn().Str("template", email.TemplateName).Msg("Template not found")
		return nil
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, email.Data); err != nil {
		return err
	}

	if s.client == nil || email.To == "" {
		log.Info().Str("template", email.TemplateName).Str("subject", email.Subject).Msg("Ops alert (email disabled)")
		return nil
	}

	return s.client.Send(ctx, &EmailMessage{
		To:          email.To,
		Subject:     email.Subject,
		TextContent: buf.String(),
	})
}

func (s *Service) queueAlert(templateName, subject string, data interface{}) {
	select {
	case s.queue <- &queuedEmail{To: s.opsEmail, Subject: subject, TemplateName: templateName, Data: data}:
	default:
		log.Warn().Str("template", templateName).Msg("Email queue full, dropping email")
	}
}

// Close drains the queue and stops the worker.
func (s *Service) Close() {
	close(s.queue)
	s.wg.Wait()
}

// ManualWithdrawal alerts ops that a bank withdrawal needs settling.
func (s *Service) ManualWithdrawal(transactionID, userID string, amount decimal.Decimal, bankName, bankAccount, holder string) {
	s.queueAlert(TemplateManualWithdrawal, "[TaskHub] Manual withdrawal $"+amount.StringFixed(2), map[string]string{
		"TransactionID": transactionID,
		"UserID":        userID,
		"Amount":        amount.StringFixed(2),
		"BankName":      bankName,
		"BankAccount":   bankAccount,
		"AccountHolder": holder,
	})
}

// DepositCreditFailed alerts ops that received money was not credited.
func (s *Service) DepositCreditFailed(depositID, transferContent, referenceCode string, amountVND decimal.Decimal, reason string) {
	s.queueAlert(TemplateDepositCreditFailed, "[TaskHub] Deposit credit FAILED "+transferContent, map[string]string{
		"DepositID":       depositID,
		"TransferContent": transferContent,
		"ReferenceCode":   referenceCode,
		"AmountVND":       amountVND.String(),
		"Reason":          reason,
	})
}

// DepositNeedsReview alerts ops about an amount mismatch on a credited deposit.
func (s *Service) DepositNeedsReview(depositID, referenceCode string, expected, received decimal.Decimal) {
	s.queueAlert(TemplateDepositReview, "[TaskHub] Deposit amount mismatch", map[string]string{
		"DepositID":     depositID,
		"ExpectedVND":   expected.String(),
		"ReceivedVND":   received.String(),
		"ReferenceCode": referenceCode,
	})
}

// EscrowDisputed alerts ops about a new complaint.
func (s *Service) EscrowDisputed(escrowID, filedBy string, amount decimal.Decimal, description string) {
	s.queueAlert(TemplateEscrowDisputed, "[TaskHub] Escrow disputed", map[string]string{
		"EscrowID":    escrowID,
		"Amount":      amount.StringFixed(2),
		"FiledBy":     filedBy,
		"Description": description,
	})
}
