package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const depositedType = "deposited"

var (
	// ErrMalformedEvent is returned for payloads that are not JSON or lack required fields.
	ErrMalformedEvent = errors.New("malformed deposit event")
	// ErrInvalidWebhookKey is returned when the shared webhook key does not match.
	ErrInvalidWebhookKey = errors.New("invalid webhook key")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
}

// DepositEvent is a parsed bank deposit notification.
type DepositEvent struct {
	TransactionType   string
	PayerName         string
	BankAccountNumber string
	Amount            int64
	BankCode          string
	BankAccountID     string
	TransactionDate   time.Time
	ProcessingDate    time.Time
	Balance           int64
}

// Deposited reports whether the event announces an incoming transfer.
func (e DepositEvent) Deposited() bool {
	return e.TransactionType == depositedType
}

// ParseDepositEvent reads a webhook payload. Numbers may arrive as JSON numbers or
// numeric strings; missing timestamps default to now. Required fields are only checked
// for deposited events.
func ParseDepositEvent(body []byte, now time.Time) (DepositEvent, error) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return DepositEvent{}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedEvent)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return DepositEvent{}, fmt.Errorf("%w: body is not an object", ErrMalformedEvent)
	}

	event := DepositEvent{
		TransactionType:   strings.TrimSpace(doc.Get("transaction_type").String()),
		PayerName:         strings.TrimSpace(doc.Get("transaction_name").String()),
		BankAccountNumber: strings.TrimSpace(doc.Get("bank_account_number").String()),
		Amount:            doc.Get("amount").Int(),
		BankCode:          doc.Get("bank_code").String(),
		BankAccountID:     doc.Get("bank_account_id").String(),
		Balance:           doc.Get("balance").Int(),
	}
	if !event.Deposited() {
		return event, nil
	}

	var missing []string
	if event.PayerName == "" {
		missing = append(missing, "transaction_name")
	}
	if event.BankAccountNumber == "" {
		missing = append(missing, "bank_account_number")
	}
	if event.Amount == 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return event, fmt.Errorf("%w: missing %s", ErrMalformedEvent, strings.Join(missing, ", "))
	}

	var err error
	if event.TransactionDate, err = parseTimestamp(doc.Get("transaction_date"), now); err != nil {
		return event, err
	}
	if event.ProcessingDate, err = parseTimestamp(doc.Get("processing_date"), now); err != nil {
		return event, err
	}
	return event, nil
}

func parseTimestamp(value gjson.Result, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(value.String())
	if !value.Exists() || raw == "" {
		return fallback, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrMalformedEvent, raw)
}
