package workflow

// DB-free test harness: an in-memory sales backend, saga store and locker
// so coordinator semantics can be validated without MySQL, Redis or a
// network. Full integration tests belong in an environment that can run
// the real sales backend.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/billing_backend/models"
)

var errFakeBackend = errors.New("fake backend failure")

type fakeSalesAPI struct {
	mu sync.Mutex

	methods  []models.PaymentMethod
	invoices map[int]*models.Invoice
	items    map[int]*models.InvoiceItem
	payments map[int]*models.Payment

	outstanding []models.Invoice

	nextInvoiceId int
	nextItemId    int
	nextPaymentId int
	nextMethodId  int

	// failure injection
	failCreateItemOnCall int // 1-based call number that fails; 0 = never
	failCreatePayment    bool
	failPatchItemId      int
	failListItems        bool

	createItemCalls   int
	createInvoiceSeen []models.NewInvoice
	deletedInvoices   []int
	deletedItems      []int
	deletedPayments   []int
}

func newFakeSalesAPI() *fakeSalesAPI {
	return &fakeSalesAPI{
		invoices:      map[int]*models.Invoice{},
		items:         map[int]*models.InvoiceItem{},
		payments:      map[int]*models.Payment{},
		nextInvoiceId: 1000,
		nextItemId:    5000,
		nextPaymentId: 9000,
		nextMethodId:  1,
	}
}

// seedInvoice installs a parent invoice with the given unpaid items and
// consistent totals.
func (f *fakeSalesAPI) seedInvoice(id int, items ...models.InvoiceItem) *models.Invoice {
	total := decimal.Zero
	paid := decimal.Zero
	inv := &models.Invoice{
		ID:            id,
		CustomerId:    7,
		CustomerName:  "Hantha Press",
		WarehouseId:   3,
		WarehouseName: "Main Warehouse",
		InvoiceTypeId: 2,
	}
	for i := range items {
		item := items[i]
		if item.ID == 0 {
			item.ID = f.nextItemId
			f.nextItemId++
		}
		item.InvoiceId = id
		item.RemainingAmount = item.TotalPrice.Sub(item.PaidAmount)
		total = total.Add(item.TotalPrice)
		paid = paid.Add(item.PaidAmount)
		f.items[item.ID] = &item
		inv.Items = append(inv.Items, item)
	}
	inv.TotalAmount = total
	inv.TotalPaid = paid
	inv.RemainingAmount = total.Sub(paid)
	f.invoices[id] = inv
	return inv
}

func (f *fakeSalesAPI) itemsOf(invoiceId int) []models.InvoiceItem {
	var items []models.InvoiceItem
	for _, item := range f.items {
		if item.InvoiceId == invoiceId {
			items = append(items, *item)
		}
	}
	return items
}

func (f *fakeSalesAPI) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PaymentMethod{}, f.methods...), nil
}

func (f *fakeSalesAPI) CreatePaymentMethod(ctx context.Context, method models.NewPaymentMethod) (models.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := models.PaymentMethod{ID: f.nextMethodId, Name: method.Name, Value: method.Value}
	f.nextMethodId++
	f.methods = append(f.methods, created)
	return created, nil
}

func (f *fakeSalesAPI) GetInvoice(ctx context.Context, id int) (models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return models.Invoice{}, fmt.Errorf("invoice %d not found", id)
	}
	out := *inv
	out.Items = f.itemsOf(id)
	return out, nil
}

func (f *fakeSalesAPI) GetInvoiceSummary(ctx context.Context, id int) (models.Invoice, error) {
	return f.GetInvoice(ctx, id)
}

func (f *fakeSalesAPI) ListInvoiceItems(ctx context.Context, invoiceId int) ([]models.InvoiceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failListItems {
		return nil, errFakeBackend
	}
	return f.itemsOf(invoiceId), nil
}

func (f *fakeSalesAPI) ListOutstandingInvoices(ctx context.Context, filter models.OutstandingFilter) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outstanding != nil {
		return append([]models.Invoice{}, f.outstanding...), nil
	}
	var out []models.Invoice
	for _, inv := range f.invoices {
		if inv.RemainingAmount.GreaterThan(decimal.Zero) {
			copied := *inv
			copied.Items = f.itemsOf(inv.ID)
			out = append(out, copied)
		}
	}
	return out, nil
}

func (f *fakeSalesAPI) CreateInvoice(ctx context.Context, invoice models.NewInvoice) (models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createInvoiceSeen = append(f.createInvoiceSeen, invoice)
	created := &models.Invoice{
		ID:              f.nextInvoiceId,
		CustomerId:      invoice.CustomerId,
		WarehouseId:     invoice.WarehouseId,
		InvoiceTypeId:   invoice.InvoiceTypeId,
		PaymentMethodId: invoice.PaymentMethodId,
		MainInvoiceId:   invoice.MainInvoiceId,
		IsReturnable:    invoice.IsReturnable,
		Notes:           invoice.Notes,
	}
	f.nextInvoiceId++
	f.invoices[created.ID] = created
	return *created, nil
}

func (f *fakeSalesAPI) CreateInvoiceItem(ctx context.Context, item models.NewInvoiceItem) (models.InvoiceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createItemCalls++
	if f.failCreateItemOnCall > 0 && f.createItemCalls == f.failCreateItemOnCall {
		return models.InvoiceItem{}, errFakeBackend
	}
	created := &models.InvoiceItem{
		ID:              f.nextItemId,
		InvoiceId:       item.InvoiceId,
		ProductId:       item.ProductId,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice,
		DiscountPercent: item.DiscountPercent,
		TotalPrice:      item.TotalPrice,
		PaidAmount:      item.PaidAmount,
		RemainingAmount: item.RemainingAmount,
		IsPaid:          item.IsPaid,
	}
	f.nextItemId++
	f.items[created.ID] = created

	inv := f.invoices[item.InvoiceId]
	inv.TotalAmount = inv.TotalAmount.Add(item.TotalPrice)
	inv.TotalPaid = inv.TotalPaid.Add(item.PaidAmount)
	inv.RemainingAmount = inv.TotalAmount.Sub(inv.TotalPaid)
	return *created, nil
}

func (f *fakeSalesAPI) CreatePayment(ctx context.Context, payment models.NewPayment) (models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreatePayment {
		return models.Payment{}, errFakeBackend
	}
	created := &models.Payment{
		ID:        f.nextPaymentId,
		InvoiceId: payment.InvoiceId,
		Amount:    payment.Amount,
		Notes:     payment.Notes,
	}
	f.nextPaymentId++
	f.payments[created.ID] = created
	return *created, nil
}

func (f *fakeSalesAPI) PatchInvoiceItem(ctx context.Context, id int, patch models.InvoiceItemPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPatchItemId == id {
		return errFakeBackend
	}
	item, ok := f.items[id]
	if !ok {
		return fmt.Errorf("item %d not found", id)
	}
	item.PaidAmount = patch.PaidAmount
	item.RemainingAmount = patch.RemainingAmount
	item.IsPaid = patch.IsPaid
	return nil
}

func (f *fakeSalesAPI) PatchInvoice(ctx context.Context, id int, patch models.InvoicePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %d not found", id)
	}
	inv.TotalAmount = patch.TotalAmount
	inv.TotalPaid = patch.TotalPaid
	inv.RemainingAmount = patch.RemainingAmount
	if patch.IsFullyPaid != nil {
		inv.IsFullyPaid = *patch.IsFullyPaid
	}
	if patch.Notes != nil {
		inv.Notes = *patch.Notes
	}
	return nil
}

func (f *fakeSalesAPI) DeleteInvoice(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.invoices, id)
	f.deletedInvoices = append(f.deletedInvoices, id)
	return nil
}

func (f *fakeSalesAPI) DeleteInvoiceItem(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	f.deletedItems = append(f.deletedItems, id)
	return nil
}

func (f *fakeSalesAPI) DeletePayment(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.payments, id)
	f.deletedPayments = append(f.deletedPayments, id)
	return nil
}

type memSagaStore struct {
	mu         sync.Mutex
	idem       map[string]*models.IdempotencyKey
	sagas      map[int]*models.SplitSaga
	steps      []*models.SplitSagaStep
	nextSagaId int
	nextStepId int
}

func newMemSagaStore() *memSagaStore {
	return &memSagaStore{
		idem:       map[string]*models.IdempotencyKey{},
		sagas:      map[int]*models.SplitSaga{},
		nextSagaId: 1,
		nextStepId: 1,
	}
}

func (s *memSagaStore) idemKey(handlerName, requestKey string) string {
	return handlerName + "|" + requestKey
}

func (s *memSagaStore) BeginIdempotency(handlerName, requestKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.idem[s.idemKey(handlerName, requestKey)]
	if !ok {
		s.idem[s.idemKey(handlerName, requestKey)] = &models.IdempotencyKey{
			HandlerName: handlerName,
			RequestKey:  requestKey,
			Status:      models.IdempotencyStatusStarted,
			UpdatedAt:   time.Now(),
		}
		return false, nil
	}
	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, ErrIdempotencyInProgress
		}
		existing.Status = models.IdempotencyStatusStarted
		existing.UpdatedAt = time.Now()
		return false, nil
	default:
		existing.Status = models.IdempotencyStatusStarted
		existing.UpdatedAt = time.Now()
		return false, nil
	}
}

func (s *memSagaStore) MarkIdempotencySucceeded(handlerName, requestKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.idem[s.idemKey(handlerName, requestKey)]; ok {
		key.Status = models.IdempotencyStatusSucceeded
	}
	return nil
}

func (s *memSagaStore) MarkIdempotencyFailed(handlerName, requestKey string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.idem[s.idemKey(handlerName, requestKey)]; ok {
		key.Status = models.IdempotencyStatusFailed
	}
	return nil
}

func (s *memSagaStore) CreateSaga(saga *models.SplitSaga) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saga.ID = s.nextSagaId
	s.nextSagaId++
	copied := *saga
	s.sagas[saga.ID] = &copied
	return nil
}

func (s *memSagaStore) UpdateSaga(saga *models.SplitSaga) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *saga
	s.sagas[saga.ID] = &copied
	return nil
}

func (s *memSagaStore) FindSagaByRequestKey(requestKey string) (*models.SplitSaga, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, saga := range s.sagas {
		if saga.RequestKey == requestKey {
			copied := *saga
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memSagaStore) RecordStep(step *models.SplitSagaStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step.ID = s.nextStepId
	s.nextStepId++
	copied := *step
	s.steps = append(s.steps, &copied)
	return nil
}

func (s *memSagaStore) MarkStepCompensated(stepId int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, step := range s.steps {
		if step.ID == stepId {
			step.Compensated = true
		}
	}
	return nil
}

func (s *memSagaStore) StepsForSaga(sagaId int) ([]models.SplitSagaStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var steps []models.SplitSagaStep
	for _, step := range s.steps {
		if step.SagaId == sagaId {
			steps = append(steps, *step)
		}
	}
	return steps, nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrSplitInProgress
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
