package workflow

import (
	"context"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/billing_backend/config"
	"bitbucket.org/mmdatafocus/billing_backend/models"
)

// LoadInvoiceDetail merges the two backend views of one invoice: the
// summary (resolved product names, computed totals) and the items detail
// (payment-status fields the summary omits). The detail fetch is
// non-fatal; without it items default to unpaid.
func LoadInvoiceDetail(ctx context.Context, api SalesAPI, logger *logrus.Logger, invoiceId int) (models.Invoice, error) {
	summary, err := api.GetInvoiceSummary(ctx, invoiceId)
	if err != nil {
		config.LogError(logger, "invoiceDetail.go", "LoadInvoiceDetail", "GetInvoiceSummary", invoiceId, err)
		return models.Invoice{}, err
	}

	detailItems, err := api.ListInvoiceItems(ctx, invoiceId)
	if err != nil {
		config.LogError(logger, "invoiceDetail.go", "LoadInvoiceDetail", "ListInvoiceItems", invoiceId, err)
		return summary, nil
	}

	summary.Items = mergeItems(summary.Items, detailItems)
	return summary, nil
}

// mergeItems copies payment-status fields from the detail view onto the
// summary items. The backend guarantees neither item ordering nor the
// presence of ids, so matching falls back: id, then product reference,
// then positional index. Each detail item is consumed at most once.
func mergeItems(summaryItems, detailItems []models.InvoiceItem) []models.InvoiceItem {
	used := make([]bool, len(detailItems))

	findDetail := func(item models.InvoiceItem, pos int) int {
		if item.ID > 0 {
			for i, d := range detailItems {
				if !used[i] && d.ID == item.ID {
					return i
				}
			}
		}
		if item.ProductId > 0 {
			for i, d := range detailItems {
				if !used[i] && d.ProductId == item.ProductId {
					return i
				}
			}
		}
		if pos < len(detailItems) && !used[pos] {
			return pos
		}
		return -1
	}

	merged := make([]models.InvoiceItem, len(summaryItems))
	for pos, item := range summaryItems {
		if i := findDetail(item, pos); i >= 0 {
			used[i] = true
			d := detailItems[i]
			if item.ID == 0 {
				item.ID = d.ID
			}
			if item.ProductId == 0 {
				item.ProductId = d.ProductId
			}
			item.PaidAmount = d.PaidAmount
			item.RemainingAmount = d.RemainingAmount
			item.IsPaid = d.IsPaid
			item.PaymentStatusDisplay = d.PaymentStatusDisplay
		}
		merged[pos] = item
	}
	return merged
}
