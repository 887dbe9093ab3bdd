package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID          int             `json:"id"`
	InvoiceId   int             `json:"invoice"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes"`
}

// NewPayment is the create body for POST /sales/payments/.
type NewPayment struct {
	InvoiceId   int             `json:"invoice"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"`
	Notes       string          `json:"notes"`
}
