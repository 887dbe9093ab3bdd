package salesapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// listEnvelope tolerates both response shapes the backend uses for list
// endpoints: a bare JSON array and a {"results": [...]} wrapper.
type listEnvelope struct {
	Results []json.RawMessage
}

func (l *listEnvelope) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &l.Results)
	}
	var wrapped struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	l.Results = wrapped.Results
	return nil
}

// flexRef decodes a reference field that arrives either as a bare id, a
// quoted id, or a nested object. For objects it probes the name variants
// the backend uses across endpoints (institution_name, name_en, name).
type flexRef struct {
	ID    int
	Name  string
	Value string
}

func (r *flexRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			ID              *int   `json:"id"`
			InstitutionName string `json:"institution_name"`
			NameEn          string `json:"name_en"`
			Name            string `json:"name"`
			Value           string `json:"value"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		if obj.ID != nil {
			r.ID = *obj.ID
		}
		r.Name = firstNonEmpty(obj.InstitutionName, obj.NameEn, obj.Name)
		r.Value = obj.Value
		return nil
	}
	s := strings.Trim(string(b), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		// Unknown scalar shape; treat as unresolved so normalization can
		// fall back to flat fields or placeholders.
		return nil
	}
	r.ID = n
	return nil
}

// flexDecimal is a null-tolerant decimal; the backend sends money as a
// number, a string, or null depending on the endpoint.
type flexDecimal struct {
	decimal.Decimal
	Set bool
}

func (d *flexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if err := d.Decimal.UnmarshalJSON(b); err != nil {
		return err
	}
	d.Set = true
	return nil
}

// flexTime parses the backend's timestamps, which are RFC3339 with or
// without fractional seconds, or a bare date.
type flexTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

type wireInvoice struct {
	ID                    int          `json:"id"`
	CompositeId           string       `json:"composite_id"`
	Customer              flexRef      `json:"customer"`
	CustomerName          string       `json:"customer_name"`
	Warehouse             flexRef      `json:"warehouse"`
	WarehouseName         string       `json:"warehouse_name"`
	InvoiceType           flexRef      `json:"invoice_type"`
	InvoiceTypeName       string       `json:"invoice_type_name"`
	PaymentMethod         flexRef      `json:"payment_method"`
	PaymentMethodName     string       `json:"payment_method_name"`
	MainInvoiceId         int          `json:"main_invoice_id"`
	IsReturnable          bool         `json:"is_returnable"`
	TotalAmount           flexDecimal  `json:"total_amount"`
	TotalPaid             flexDecimal  `json:"total_paid"`
	RemainingAmount       flexDecimal  `json:"remaining_amount"`
	GlobalDiscountPercent flexDecimal  `json:"global_discount_percent"`
	TaxPercent            flexDecimal  `json:"tax_percent"`
	IsFullyPaid           bool         `json:"is_fully_paid"`
	Notes                 string       `json:"notes"`
	Items                 []wireItem   `json:"items"`
	CreatedAt             flexTime     `json:"created_at"`
	UpdatedAt             flexTime     `json:"updated_at"`
}

type wireItem struct {
	ID                   int         `json:"id"`
	Invoice              flexRef     `json:"invoice"`
	Product              flexRef     `json:"product"`
	ProductName          string      `json:"product_name"`
	Quantity             flexDecimal `json:"quantity"`
	UnitPrice            flexDecimal `json:"unit_price"`
	DiscountPercent      flexDecimal `json:"discount_percent"`
	TaxPercent           flexDecimal `json:"tax_percent"`
	TotalPrice           flexDecimal `json:"total_price"`
	PaidAmount           flexDecimal `json:"paid_amount"`
	RemainingAmount      flexDecimal `json:"remaining_amount"`
	IsPaid               *bool       `json:"is_paid"`
	PaymentStatusDisplay string      `json:"payment_status_display"`
}

type wirePaymentMethod struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wirePayment struct {
	ID          int         `json:"id"`
	Invoice     flexRef     `json:"invoice"`
	Amount      flexDecimal `json:"amount"`
	PaymentDate flexTime    `json:"payment_date"`
	Notes       string      `json:"notes"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
