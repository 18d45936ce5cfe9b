package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDepositEvent(t *testing.T) {
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		body      string
		wantErr   bool
		deposited bool
		amount    int64
		txDate    time.Time
	}{
		{
			name:      "numeric string amount",
			body:      `{"transaction_type":"deposited","transaction_name":" Kim ","bank_account_number":"1001","amount":"15000"}`,
			deposited: true,
			amount:    15000,
			txDate:    now,
		},
		{
			name:      "rfc3339 timestamp",
			body:      `{"transaction_type":"deposited","transaction_name":"Kim","bank_account_number":"1001","amount":100,"transaction_date":"2026-05-19T08:30:00Z"}`,
			deposited: true,
			amount:    100,
			txDate:    time.Date(2026, 5, 19, 8, 30, 0, 0, time.UTC),
		},
		{
			name: "withdrawal skips validation",
			body: `{"transaction_type":"withdrawn"}`,
		},
		{name: "missing payer", body: `{"transaction_type":"deposited","bank_account_number":"1001","amount":1}`, wantErr: true},
		{name: "zero amount", body: `{"transaction_type":"deposited","transaction_name":"Kim","bank_account_number":"1001","amount":0}`, wantErr: true},
		{name: "bad timestamp", body: `{"transaction_type":"deposited","transaction_name":"Kim","bank_account_number":"1001","amount":1,"transaction_date":"yesterday"}`, wantErr: true},
		{name: "not json", body: `transaction_type=deposited`, wantErr: true},
		{name: "array", body: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseDepositEvent([]byte(tt.body), now)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedEvent)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.deposited, event.Deposited())
			if !tt.deposited {
				return
			}
			require.Equal(t, "Kim", event.PayerName)
			require.Equal(t, tt.amount, event.Amount)
			require.True(t, tt.txDate.Equal(event.TransactionDate))
			require.True(t, now.Equal(event.ProcessingDate))
		})
	}
}
