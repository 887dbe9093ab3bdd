package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/billing_backend/models"
)

func TestBuildOutstandingWorkbook(t *testing.T) {
	invoices := []models.Invoice{
		{
			ID:              158,
			CustomerName:    "Hantha Press",
			WarehouseName:   "Main Warehouse",
			InvoiceTypeName: "Retail",
			TotalAmount:     decimal.NewFromInt(15000),
			TotalPaid:       decimal.NewFromInt(5000),
			RemainingAmount: decimal.NewFromInt(10000),
			CreatedAt:       time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:              159,
			CompositeId:     "158_159",
			CustomerName:    "Hantha Press",
			RemainingAmount: decimal.NewFromInt(5000),
		},
	}

	f, err := BuildOutstandingWorkbook(invoices)
	if err != nil {
		t.Fatalf("BuildOutstandingWorkbook: %v", err)
	}

	if got, _ := f.GetCellValue("Outstanding", "A1"); got != "Invoice" {
		t.Fatalf("A1 = %q, want header", got)
	}
	if got, _ := f.GetCellValue("Outstanding", "A2"); got != "158" {
		t.Fatalf("A2 = %q, want 158", got)
	}
	// Split children render their composite id.
	if got, _ := f.GetCellValue("Outstanding", "A3"); got != "158_159" {
		t.Fatalf("A3 = %q, want 158_159", got)
	}
	if got, _ := f.GetCellValue("Outstanding", "G2"); got != "10000" {
		t.Fatalf("G2 = %q, want 10000", got)
	}
}

func TestBuildOutstandingWorkbookEmpty(t *testing.T) {
	f, err := BuildOutstandingWorkbook(nil)
	if err != nil {
		t.Fatalf("BuildOutstandingWorkbook: %v", err)
	}
	if got, _ := f.GetCellValue("Outstanding", "A2"); got != "No outstanding invoices" {
		t.Fatalf("A2 = %q", got)
	}
}
