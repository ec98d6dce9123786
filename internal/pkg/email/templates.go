package email

// Ops alert templates. Plain text, they land in a shared ops inbox.

const ManualWithdrawalTemplate = `A bank withdrawal is waiting for manual settlement.

Transaction: {{.TransactionID}}
User:        {{.UserID}}
Amount:      ${{.Amount}}
Bank:        {{.BankName}}
Account:     {{.BankAccount}}
Holder:      {{.AccountHolder}}

Settle it in the admin console once the transfer has been sent.
`

const DepositCreditFailedTemplate = `A bank transfer arrived but the wallet could not be credited.

Deposit:        {{.DepositID}}
Transfer code:  {{.TransferContent}}
Reference:      {{.ReferenceCode}}
Amount (VND):   {{.AmountVND}}
Error:          {{.Reason}}

The money is in the bank account. Credit the user manually after checking the ledger.
`

const DepositReviewTemplate = `A bank deposit was credited with an unexpected amount.

Deposit:        {{.DepositID}}
Expected (VND): {{.ExpectedVND}}
Received (VND): {{.ReceivedVND}}
Reference:      {{.ReferenceCode}}
`

const EscrowDisputedTemplate = `A complaint was filed on an escrow hold.

Escrow:     {{.EscrowID}}
Amount:     ${{.Amount}}
Filed by:   {{.FiledBy}}
Complaint:  {{.Description}}

Resolve it from the admin escrow queue.
`
