package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentDeposit is an append-only record of a bank deposit notification.
type PaymentDeposit struct {
	bun.BaseModel `bun:"table:payment_deposits,alias:pd"`

	ID                string    `bun:"id,pk,type:uuid" json:"id"`
	PayerName         string    `bun:"transaction_name,notnull" json:"payer_name"`
	BankAccountNumber string    `bun:"bank_account_number,notnull" json:"bank_account_number"`
	Amount            int64     `bun:"amount,notnull" json:"amount"`
	BankCode          string    `bun:"bank_code,notnull" json:"bank_code"`
	BankAccountID     string    `bun:"bank_account_id,notnull" json:"bank_account_id"`
	TransactionDate   time.Time `bun:"transaction_date,notnull" json:"transaction_date"`
	ProcessingDate    time.Time `bun:"processing_date,notnull" json:"processing_date"`
	Balance           int64     `bun:"balance,notnull" json:"balance"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
