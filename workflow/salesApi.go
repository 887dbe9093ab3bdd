package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/billing_backend/models"
)

// SalesAPI is the slice of the sales backend the workflows consume.
// *salesapi.Client implements it; tests use an in-memory fake.
type SalesAPI interface {
	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, method models.NewPaymentMethod) (models.PaymentMethod, error)

	GetInvoice(ctx context.Context, id int) (models.Invoice, error)
	GetInvoiceSummary(ctx context.Context, id int) (models.Invoice, error)
	ListInvoiceItems(ctx context.Context, invoiceId int) ([]models.InvoiceItem, error)
	ListOutstandingInvoices(ctx context.Context, filter models.OutstandingFilter) ([]models.Invoice, error)

	CreateInvoice(ctx context.Context, invoice models.NewInvoice) (models.Invoice, error)
	CreateInvoiceItem(ctx context.Context, item models.NewInvoiceItem) (models.InvoiceItem, error)
	CreatePayment(ctx context.Context, payment models.NewPayment) (models.Payment, error)
	PatchInvoiceItem(ctx context.Context, id int, patch models.InvoiceItemPatch) error
	PatchInvoice(ctx context.Context, id int, patch models.InvoicePatch) error

	DeleteInvoice(ctx context.Context, id int) error
	DeleteInvoiceItem(ctx context.Context, id int) error
	DeletePayment(ctx context.Context, id int) error
}
