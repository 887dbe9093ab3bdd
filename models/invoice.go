package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the normalized view of a sales-backend invoice. The backend
// returns customer/warehouse/type either nested, as bare ids, or as flat
// name fields depending on the endpoint; the salesapi package flattens all
// of them into this one shape before anything else sees the data.
type Invoice struct {
	ID                    int             `json:"id"`
	CompositeId           string          `json:"composite_id"`
	CustomerId            int             `json:"customer_id"`
	CustomerName          string          `json:"customer_name"`
	WarehouseId           int             `json:"warehouse_id"`
	WarehouseName         string          `json:"warehouse_name"`
	InvoiceTypeId         int             `json:"invoice_type_id"`
	InvoiceTypeName       string          `json:"invoice_type_name"`
	PaymentMethodId       int             `json:"payment_method_id"`
	PaymentMethodName     string          `json:"payment_method_name"`
	MainInvoiceId         int             `json:"main_invoice_id"`
	IsReturnable          bool            `json:"is_returnable"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TotalPaid             decimal.Decimal `json:"total_paid"`
	RemainingAmount       decimal.Decimal `json:"remaining_amount"`
	GlobalDiscountPercent decimal.Decimal `json:"global_discount_percent"`
	TaxPercent            decimal.Decimal `json:"tax_percent"`
	IsFullyPaid           bool            `json:"is_fully_paid"`
	Notes                 string          `json:"notes"`
	Items                 []InvoiceItem   `json:"items"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// DisplayId is the identifier shown to the console: the composite id for
// split children, the plain id otherwise.
func (inv *Invoice) DisplayId() string {
	if inv.CompositeId != "" {
		return inv.CompositeId
	}
	return fmt.Sprintf("%d", inv.ID)
}

// IsSplitChild reports whether this invoice was created by a split.
// A child is recognized by its composite id containing an underscore.
func (inv *Invoice) IsSplitChild() bool {
	return strings.Contains(inv.CompositeId, "_")
}

// CompositeId links a split child to its parent, e.g. "158_159".
func CompositeId(parentId, childId int) string {
	return fmt.Sprintf("%d_%d", parentId, childId)
}

type InvoiceItem struct {
	ID                   int             `json:"id"`
	InvoiceId            int             `json:"invoice"`
	ProductId            int             `json:"product"`
	ProductName          string          `json:"product_name"`
	Quantity             decimal.Decimal `json:"quantity"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	DiscountPercent      decimal.Decimal `json:"discount_percent"`
	TaxPercent           decimal.Decimal `json:"tax_percent"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
	RemainingAmount      decimal.Decimal `json:"remaining_amount"`
	IsPaid               bool            `json:"is_paid"`
	PaymentStatusDisplay string          `json:"payment_status_display"`
}

// NewInvoice is the create body for POST /sales/invoices/.
type NewInvoice struct {
	CustomerId            int             `json:"customer_id"`
	WarehouseId           int             `json:"warehouse_id"`
	InvoiceTypeId         int             `json:"invoice_type_id"`
	PaymentMethodId       int             `json:"payment_method_id"`
	MainInvoiceId         int             `json:"main_invoice_id,omitempty"`
	IsReturnable          bool            `json:"is_returnable"`
	Notes                 string          `json:"notes"`
	GlobalDiscountPercent decimal.Decimal `json:"global_discount_percent"`
	TaxPercent            decimal.Decimal `json:"tax_percent"`
}

// NewInvoiceItem is the create body for POST /sales/invoice-items/.
type NewInvoiceItem struct {
	InvoiceId       int             `json:"invoice"`
	ProductId       int             `json:"product"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	IsPaid          bool            `json:"is_paid"`
}

// InvoiceItemPatch updates an original item's payment fields after its
// balance moved to a split child.
type InvoiceItemPatch struct {
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	IsPaid          bool            `json:"is_paid"`
}

// InvoicePatch carries the parent invoice's recomputed totals.
// remaining_amount must equal total_amount - total_paid; callers compute
// all three together so the stored redundancy never drifts.
type InvoicePatch struct {
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	IsFullyPaid     *bool           `json:"is_fully_paid,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
}

// OutstandingFilter narrows GET /sales/invoices/outstanding-payments/.
// Zero values mean "no filter". Dates are YYYY-MM-DD.
type OutstandingFilter struct {
	WarehouseId int
	StartDate   string
	EndDate     string
	Search      string
}
