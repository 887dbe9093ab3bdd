package reports

import (
	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/billing_backend/models"
)

const outstandingSheet = "Outstanding"

// BuildOutstandingWorkbook renders the outstanding-invoice list as an
// xlsx workbook for the accounting team.
func BuildOutstandingWorkbook(invoices []models.Invoice) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(outstandingSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{"Invoice", "Customer", "Warehouse", "Type", "Total", "Paid", "Remaining", "Created"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(outstandingSheet, cell, header); err != nil {
			return nil, err
		}
	}

	for rowNo, inv := range invoices {
		values := []interface{}{
			inv.DisplayId(),
			inv.CustomerName,
			inv.WarehouseName,
			inv.InvoiceTypeName,
			inv.TotalAmount.InexactFloat64(),
			inv.TotalPaid.InexactFloat64(),
			inv.RemainingAmount.InexactFloat64(),
			inv.CreatedAt.Format("2006-01-02"),
		}
		for colNo, value := range values {
			cell, err := excelize.CoordinatesToCellName(colNo+1, rowNo+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(outstandingSheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	if len(invoices) == 0 {
		if err := f.SetCellValue(outstandingSheet, "A2", "No outstanding invoices"); err != nil {
			return nil, err
		}
	}
	return f, nil
}
