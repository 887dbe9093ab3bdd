package models

import "strings"

// PostpaidValue tags the payment method used to settle split children
// without real-time cash collection. A singleton-by-convention row in the
// backend's payment_method lookup table; created lazily when missing.
const PostpaidValue = "postpaid"

type PaymentMethod struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IsPostpaid matches by the value tag first, then falls back to a
// case-insensitive name match because older backend rows carry no value.
func (pm *PaymentMethod) IsPostpaid() bool {
	if strings.EqualFold(strings.TrimSpace(pm.Value), PostpaidValue) {
		return true
	}
	return strings.Contains(strings.ToLower(pm.Name), PostpaidValue)
}

// NewPaymentMethod is the create body for POST /common/list-items/payment_method/.
type NewPaymentMethod struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
