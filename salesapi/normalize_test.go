package salesapi

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func decodeInvoice(t *testing.T, payload string) wireInvoice {
	t.Helper()
	var w wireInvoice
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return w
}

func TestNormalizeInvoiceNestedRefs(t *testing.T) {
	w := decodeInvoice(t, `{
		"id": 121,
		"customer": {"id": 7, "institution_name": "Hantha Press"},
		"warehouse": {"id": 3, "name": "Main Warehouse"},
		"invoice_type": {"id": 2, "name_en": "Retail"},
		"total_amount": "15000.00",
		"total_paid": "0.00",
		"remaining_amount": "15000.00"
	}`)

	inv := normalizeInvoice(w)
	if inv.CustomerId != 7 || inv.CustomerName != "Hantha Press" {
		t.Fatalf("customer = %d %q", inv.CustomerId, inv.CustomerName)
	}
	if inv.WarehouseName != "Main Warehouse" || inv.InvoiceTypeName != "Retail" {
		t.Fatalf("warehouse=%q type=%q", inv.WarehouseName, inv.InvoiceTypeName)
	}
	if !inv.RemainingAmount.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("remaining = %s", inv.RemainingAmount)
	}
}

func TestNormalizeInvoiceBareIdsAndFlatNames(t *testing.T) {
	w := decodeInvoice(t, `{
		"id": 121,
		"customer": 7,
		"customer_name": "Hantha Press",
		"warehouse": "3",
		"invoice_type": null,
		"total_amount": 15000,
		"total_paid": 5000
	}`)

	inv := normalizeInvoice(w)
	if inv.CustomerId != 7 || inv.CustomerName != "Hantha Press" {
		t.Fatalf("customer = %d %q", inv.CustomerId, inv.CustomerName)
	}
	if inv.WarehouseId != 3 {
		t.Fatalf("warehouse id = %d", inv.WarehouseId)
	}
	if inv.WarehouseName != PlaceholderNoWarehouse || inv.InvoiceTypeName != PlaceholderNoType {
		t.Fatalf("placeholders not applied: %q %q", inv.WarehouseName, inv.InvoiceTypeName)
	}
	// remaining_amount absent: recomputed from total and paid.
	if !inv.RemainingAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("remaining = %s, want 10000", inv.RemainingAmount)
	}
}

func TestNormalizeInvoicePlaceholderCustomer(t *testing.T) {
	inv := normalizeInvoice(decodeInvoice(t, `{"id": 5}`))
	if inv.CustomerName != PlaceholderNoCustomer {
		t.Fatalf("customer name = %q, want placeholder", inv.CustomerName)
	}
}

func TestNormalizeItemDefaults(t *testing.T) {
	var w wireItem
	if err := json.Unmarshal([]byte(`{
		"id": 301,
		"product": {"id": 11, "name": "Translation Vol 1"},
		"total_price": "10000.00",
		"paid_amount": null,
		"remaining_amount": null
	}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	item := normalizeItem(w)
	if item.IsPaid {
		t.Fatal("item with no payment fields defaulted to paid")
	}
	if !item.PaidAmount.IsZero() {
		t.Fatalf("paid = %s", item.PaidAmount)
	}
	if !item.RemainingAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("remaining = %s, want total price", item.RemainingAmount)
	}
	if item.ProductName != "Translation Vol 1" {
		t.Fatalf("product name = %q", item.ProductName)
	}
}

func TestNormalizeItemRebuildsMissingTotalPrice(t *testing.T) {
	var w wireItem
	if err := json.Unmarshal([]byte(`{
		"id": 301,
		"quantity": "2",
		"unit_price": "5000",
		"discount_percent": "10",
		"tax_percent": "5",
		"total_price": null
	}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	item := normalizeItem(w)
	// 2 x 5000 - 10% + 5% tax = 9450.
	want := decimal.NewFromInt(9450)
	if !item.TotalPrice.Equal(want) {
		t.Fatalf("total price = %s, want %s", item.TotalPrice, want)
	}
	if !item.RemainingAmount.Equal(want) {
		t.Fatalf("remaining = %s, want the rebuilt total", item.RemainingAmount)
	}
}

func TestNormalizeItemFixesStalePaidFlag(t *testing.T) {
	var w wireItem
	if err := json.Unmarshal([]byte(`{
		"id": 301,
		"total_price": "10000.00",
		"paid_amount": "10000.00",
		"remaining_amount": "0.00",
		"is_paid": false
	}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	item := normalizeItem(w)
	if !item.IsPaid {
		t.Fatal("fully covered item left unpaid by a stale flag")
	}
}

func TestNormalizeItemZeroPriceStaysUnpaid(t *testing.T) {
	var w wireItem
	if err := json.Unmarshal([]byte(`{"id": 301, "total_price": "0.00"}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item := normalizeItem(w); item.IsPaid {
		t.Fatal("zero-price item marked paid")
	}
}
