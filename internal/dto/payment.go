package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tableorder/internal/entity"
	"github.com/Additional-Code/tableorder/internal/service/payment"
)

// PaymentStatusResponse reports whether an order has been paid.
type PaymentStatusResponse struct {
	OrderID     string `json:"order_id"`
	Completed   bool   `json:"completed"`
	Status      string `json:"status"`
	PayerName   string `json:"payer_name,omitempty"`
	TotalAmount int64  `json:"total_amount"`
}

// NewPaymentStatusResponse maps a payment status.
func NewPaymentStatusResponse(s *payment.Status) PaymentStatusResponse {
	return PaymentStatusResponse{
		OrderID:     s.OrderID,
		Completed:   s.Completed,
		Status:      string(s.Status),
		PayerName:   s.PayerName,
		TotalAmount: s.TotalAmount,
	}
}

// DepositResponse is one ledger row of received transfers.
type DepositResponse struct {
	ID                string    `json:"id"`
	PayerName         string    `json:"payer_name"`
	BankAccountNumber string    `json:"bank_account_number"`
	Amount            int64     `json:"amount"`
	BankCode          string    `json:"bank_code,omitempty"`
	TransactionDate   time.Time `json:"transaction_date"`
	Balance           int64     `json:"balance"`
}

// NewDepositResponses maps the deposit ledger.
func NewDepositResponses(deposits []*entity.PaymentDeposit) []DepositResponse {
	return lo.Map(deposits, func(d *entity.PaymentDeposit, _ int) DepositResponse {
		return DepositResponse{
			ID:                d.ID,
			PayerName:         d.PayerName,
			BankAccountNumber: d.BankAccountNumber,
			Amount:            d.Amount,
			BankCode:          d.BankCode,
			TransactionDate:   d.TransactionDate,
			Balance:           d.Balance,
		}
	})
}

// WebhookAck is the fixed answer to every payment webhook delivery.
type WebhookAck struct {
	Status string `json:"status"`
}
