package salesapi

import (
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/billing_backend/models"
	"bitbucket.org/mmdatafocus/billing_backend/utils"
)

// Placeholders shown when no name variant resolves anywhere in an invoice
// payload. The console renders these literally.
const (
	PlaceholderNoCustomer  = "No Customer"
	PlaceholderNoWarehouse = "No Warehouse"
	PlaceholderNoType      = "No Type"
)

// normalizeInvoice flattens one backend invoice into the internal schema.
// Every heterogeneous shape the backend is known to produce is resolved
// here, so downstream code never probes alternative field names.
func normalizeInvoice(w wireInvoice) models.Invoice {
	inv := models.Invoice{
		ID:                w.ID,
		CompositeId:       w.CompositeId,
		CustomerId:        w.Customer.ID,
		CustomerName:      firstNonEmpty(w.Customer.Name, w.CustomerName, PlaceholderNoCustomer),
		WarehouseId:       w.Warehouse.ID,
		WarehouseName:     firstNonEmpty(w.Warehouse.Name, w.WarehouseName, PlaceholderNoWarehouse),
		InvoiceTypeId:     w.InvoiceType.ID,
		InvoiceTypeName:   firstNonEmpty(w.InvoiceType.Name, w.InvoiceTypeName, PlaceholderNoType),
		PaymentMethodId:   w.PaymentMethod.ID,
		PaymentMethodName: firstNonEmpty(w.PaymentMethod.Name, w.PaymentMethodName),
		MainInvoiceId:     w.MainInvoiceId,
		IsReturnable:      w.IsReturnable,
		TotalAmount:       w.TotalAmount.Decimal,
		TotalPaid:         w.TotalPaid.Decimal,
		IsFullyPaid:       w.IsFullyPaid,
		Notes:             w.Notes,
		CreatedAt:         w.CreatedAt.Time,
		UpdatedAt:         w.UpdatedAt.Time,
	}
	inv.GlobalDiscountPercent = w.GlobalDiscountPercent.Decimal
	inv.TaxPercent = w.TaxPercent.Decimal

	// remaining_amount is stored redundantly by the backend and drifts on
	// some endpoints; recompute when absent.
	if w.RemainingAmount.Set {
		inv.RemainingAmount = w.RemainingAmount.Decimal
	} else {
		inv.RemainingAmount = inv.TotalAmount.Sub(inv.TotalPaid)
	}

	for _, wi := range w.Items {
		inv.Items = append(inv.Items, normalizeItem(wi))
	}
	return inv
}

func normalizeItem(w wireItem) models.InvoiceItem {
	item := models.InvoiceItem{
		ID:                   w.ID,
		InvoiceId:            w.Invoice.ID,
		ProductId:            w.Product.ID,
		ProductName:          firstNonEmpty(w.ProductName, w.Product.Name),
		Quantity:             w.Quantity.Decimal,
		UnitPrice:            w.UnitPrice.Decimal,
		DiscountPercent:      w.DiscountPercent.Decimal,
		TaxPercent:           w.TaxPercent.Decimal,
		PaymentStatusDisplay: w.PaymentStatusDisplay,
	}
	if w.TotalPrice.Set {
		item.TotalPrice = w.TotalPrice.Decimal
	} else {
		// Some endpoints omit total_price; rebuild it the way the backend
		// computes it.
		item.TotalPrice = utils.CalculateLineTotal(item.Quantity, item.UnitPrice, item.DiscountPercent, item.TaxPercent)
	}
	if w.IsPaid != nil {
		item.IsPaid = *w.IsPaid
	}
	if w.PaidAmount.Set {
		item.PaidAmount = w.PaidAmount.Decimal
	}
	if w.RemainingAmount.Set {
		item.RemainingAmount = w.RemainingAmount.Decimal
	} else {
		item.RemainingAmount = item.TotalPrice.Sub(item.PaidAmount)
	}
	// A fully covered item is paid even when the flag is stale.
	if !item.IsPaid && item.TotalPrice.GreaterThan(decimal.Zero) && item.PaidAmount.GreaterThanOrEqual(item.TotalPrice) {
		item.IsPaid = true
	}
	return item
}

func normalizePaymentMethod(w wirePaymentMethod) models.PaymentMethod {
	return models.PaymentMethod{
		ID:    w.ID,
		Name:  w.Name,
		Value: w.Value,
	}
}

func normalizePayment(w wirePayment) models.Payment {
	return models.Payment{
		ID:          w.ID,
		InvoiceId:   w.Invoice.ID,
		Amount:      w.Amount.Decimal,
		PaymentDate: w.PaymentDate.Time,
		Notes:       w.Notes,
	}
}
