package workflow

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/billing_backend/config"
	"bitbucket.org/mmdatafocus/billing_backend/models"
	"bitbucket.org/mmdatafocus/billing_backend/utils"
)

const splitHandlerName = "InvoiceSplit"

const splitLockTTL = 2 * time.Minute

type SplitRequest struct {
	ParentInvoiceId int    `json:"parent_invoice_id"`
	ItemIds         []int  `json:"item_ids"`
	RequestKey      string `json:"request_key"`
	PaymentDate     string `json:"payment_date"`
}

type SplitResult struct {
	CompositeId      string          `json:"composite_id"`
	ChildInvoiceId   int             `json:"child_invoice_id"`
	ParentInvoiceId  int             `json:"parent_invoice_id"`
	AmountMoved      decimal.Decimal `json:"amount_moved"`
	ParentTotal      decimal.Decimal `json:"parent_total_amount"`
	ParentPaid       decimal.Decimal `json:"parent_total_paid"`
	ParentRemaining  decimal.Decimal `json:"parent_remaining_amount"`
	ParentFullyPaid  bool            `json:"parent_is_fully_paid"`
	AlreadyProcessed bool            `json:"already_processed"`
}

// SplitCoordinator moves a caller-selected subset of unpaid items off a
// parent invoice onto a new, fully paid child invoice. The sales backend
// offers no multi-step transaction, so every remote write is recorded in
// the saga log and undone in reverse order if a later write fails.
type SplitCoordinator struct {
	api    SalesAPI
	store  SagaStore
	locker Locker
	logger *logrus.Logger

	defaultInvoiceTypeId int
	recheckParent        bool
	compensationEnabled  bool
	now                  func() time.Time
}

func NewSplitCoordinator(api SalesAPI, store SagaStore, locker Locker, logger *logrus.Logger) *SplitCoordinator {
	typeId := 1
	if v := strings.TrimSpace(os.Getenv("DEFAULT_INVOICE_TYPE_ID")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			typeId = n
		}
	}
	return &SplitCoordinator{
		api:                  api,
		store:                store,
		locker:               locker,
		logger:               logger,
		defaultInvoiceTypeId: typeId,
		recheckParent:        config.ParentRecheckEnabled(),
		compensationEnabled:  config.SplitCompensationEnabled(),
		now:                  time.Now,
	}
}

func (c *SplitCoordinator) Split(ctx context.Context, req SplitRequest) (SplitResult, error) {
	if req.ParentInvoiceId <= 0 {
		return SplitResult{}, ErrItemNotFound
	}
	if len(req.ItemIds) == 0 {
		return SplitResult{}, ErrNoItemsSelected
	}
	if req.RequestKey == "" {
		req.RequestKey = uuid.NewString()
	}

	skip, err := c.store.BeginIdempotency(splitHandlerName, req.RequestKey)
	if err != nil {
		return SplitResult{}, err
	}
	if skip {
		return c.replayResult(ctx, req.RequestKey)
	}

	result, err := c.run(ctx, req)
	if err != nil {
		if markErr := c.store.MarkIdempotencyFailed(splitHandlerName, req.RequestKey, err); markErr != nil {
			config.LogError(c.logger, "splitWorkflow.go", "Split", "MarkIdempotencyFailed", req.RequestKey, markErr)
		}
		return SplitResult{}, err
	}
	if err := c.store.MarkIdempotencySucceeded(splitHandlerName, req.RequestKey); err != nil {
		config.LogError(c.logger, "splitWorkflow.go", "Split", "MarkIdempotencySucceeded", req.RequestKey, err)
	}
	return result, nil
}

// replayResult reconstructs the response for a request key that already
// succeeded, without touching the sales backend's invoices.
func (c *SplitCoordinator) replayResult(ctx context.Context, requestKey string) (SplitResult, error) {
	saga, err := c.store.FindSagaByRequestKey(requestKey)
	if err != nil {
		return SplitResult{}, err
	}
	if saga == nil {
		return SplitResult{}, fmt.Errorf("idempotency key %s succeeded but no saga recorded", requestKey)
	}
	result := SplitResult{
		CompositeId:      saga.CompositeId,
		ChildInvoiceId:   saga.ChildInvoiceId,
		ParentInvoiceId:  saga.ParentInvoiceId,
		AlreadyProcessed: true,
	}
	parent, err := c.api.GetInvoice(ctx, saga.ParentInvoiceId)
	if err == nil {
		result.ParentTotal = parent.TotalAmount
		result.ParentPaid = parent.TotalPaid
		result.ParentRemaining = parent.RemainingAmount
		result.ParentFullyPaid = parent.IsFullyPaid
	}
	return result, nil
}

func (c *SplitCoordinator) run(ctx context.Context, req SplitRequest) (SplitResult, error) {
	release, err := c.locker.Obtain(ctx, fmt.Sprintf("billing:split:%d", req.ParentInvoiceId), splitLockTTL)
	if err != nil {
		return SplitResult{}, err
	}
	defer release()

	// Ids come from the raw invoice fetch: the summary endpoint resolves
	// names but drops the foreign keys the child invoice needs.
	parent, err := c.api.GetInvoice(ctx, req.ParentInvoiceId)
	if err != nil {
		return SplitResult{}, fmt.Errorf("load parent invoice: %w", err)
	}
	if parent.CustomerId <= 0 || parent.WarehouseId <= 0 {
		return SplitResult{}, ErrParentRefsUnresolved
	}

	merged, err := LoadInvoiceDetail(ctx, c.api, c.logger, req.ParentInvoiceId)
	if err != nil {
		return SplitResult{}, fmt.Errorf("load parent detail: %w", err)
	}

	selected, err := selectItems(merged.Items, parent.Items, req.ItemIds)
	if err != nil {
		return SplitResult{}, err
	}

	// request_key is unique; a retry after a failed attempt reuses the
	// existing saga row instead of inserting a duplicate.
	saga, err := c.store.FindSagaByRequestKey(req.RequestKey)
	if err != nil {
		return SplitResult{}, err
	}
	if saga == nil {
		saga = &models.SplitSaga{
			RequestKey:      req.RequestKey,
			ParentInvoiceId: parent.ID,
			Status:          models.SplitSagaStatusStarted,
		}
		if err := c.store.CreateSaga(saga); err != nil {
			return SplitResult{}, err
		}
	} else {
		saga.ParentInvoiceId = parent.ID
		saga.Status = models.SplitSagaStatusStarted
		saga.ChildInvoiceId = 0
		saga.CompositeId = ""
		saga.LastError = nil
		if err := c.store.UpdateSaga(saga); err != nil {
			return SplitResult{}, err
		}
	}

	result, steps, err := c.execute(ctx, saga, parent, merged, selected, req)
	if err != nil {
		c.fail(ctx, saga, steps, err)
		return SplitResult{}, err
	}

	saga.Status = models.SplitSagaStatusSucceeded
	saga.ChildInvoiceId = result.ChildInvoiceId
	saga.CompositeId = result.CompositeId
	if err := c.store.UpdateSaga(saga); err != nil {
		config.LogError(c.logger, "splitWorkflow.go", "run", "UpdateSaga", saga.ID, err)
	}

	if err := InvalidateOutstandingCache(); err != nil {
		config.LogError(c.logger, "splitWorkflow.go", "run", "InvalidateOutstandingCache", nil, err)
	}

	// Diagnostic verification only; a failure here never fails the split.
	if child, err := c.api.GetInvoice(ctx, result.ChildInvoiceId); err == nil {
		config.LogInfo(c.logger, "splitWorkflow.go", "run", "verify",
			fmt.Sprintf("split %s verified, child total %s", result.CompositeId, child.TotalAmount.String()))
	} else {
		config.LogError(c.logger, "splitWorkflow.go", "run", "verify", result.ChildInvoiceId, err)
	}

	return result, nil
}

// execute performs the ordered remote writes. Ordering matters: the
// payment method must exist before the invoice references it, the invoice
// before its items and payment, and the originals are only touched once
// the child fully exists, so failures before then leave the parent
// untouched. Totals go last so they reflect the final remaining set.
// It also returns the in-memory list of completed steps; failure handling
// compensates from that list, not the persisted log, so a write whose
// step row failed to insert is still undone.
func (c *SplitCoordinator) execute(ctx context.Context, saga *models.SplitSaga, parent models.Invoice, merged models.Invoice, selected []models.InvoiceItem, req SplitRequest) (SplitResult, []models.SplitSagaStep, error) {
	var steps []models.SplitSagaStep

	postpaid, err := c.resolvePostpaidMethod(ctx)
	if err != nil {
		return SplitResult{}, steps, fmt.Errorf("resolve postpaid payment method: %w", err)
	}

	typeId := parent.InvoiceTypeId
	if typeId <= 0 {
		typeId = merged.InvoiceTypeId
	}
	if typeId <= 0 {
		// Missing type is tolerated rather than fatal.
		typeId = c.defaultInvoiceTypeId
	}

	child, err := c.api.CreateInvoice(ctx, models.NewInvoice{
		CustomerId:            parent.CustomerId,
		WarehouseId:           parent.WarehouseId,
		InvoiceTypeId:         typeId,
		PaymentMethodId:       postpaid.ID,
		MainInvoiceId:         parent.ID,
		IsReturnable:          true,
		Notes:                 fmt.Sprintf("Split of %d unpaid item(s) from invoice %d", len(selected), parent.ID),
		GlobalDiscountPercent: parent.GlobalDiscountPercent,
		TaxPercent:            parent.TaxPercent,
	})
	if err != nil {
		return SplitResult{}, steps, fmt.Errorf("create child invoice: %w", err)
	}
	if err := c.recordStep(saga, &steps, models.SplitStepChildInvoiceCreated, child.ID, ""); err != nil {
		return SplitResult{}, steps, err
	}

	compositeId := models.CompositeId(parent.ID, child.ID)
	amountMoved := decimal.Zero

	for _, item := range selected {
		productId := resolveProductId(item, parent.Items)
		childItem, err := c.api.CreateInvoiceItem(ctx, models.NewInvoiceItem{
			InvoiceId:       child.ID,
			ProductId:       productId,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TotalPrice:      item.TotalPrice,
			PaidAmount:      item.TotalPrice,
			RemainingAmount: decimal.Zero,
			IsPaid:          true,
		})
		if err != nil {
			return SplitResult{}, steps, fmt.Errorf("create child item for product %d: %w", productId, err)
		}
		if err := c.recordStep(saga, &steps, models.SplitStepChildItemCreated, childItem.ID, ""); err != nil {
			return SplitResult{}, steps, err
		}
		amountMoved = amountMoved.Add(item.TotalPrice)
	}

	paymentDate := req.PaymentDate
	if paymentDate == "" {
		paymentDate = c.now().Format("2006-01-02")
	}
	payment, err := c.api.CreatePayment(ctx, models.NewPayment{
		InvoiceId:   child.ID,
		Amount:      amountMoved,
		PaymentDate: paymentDate,
		Notes:       fmt.Sprintf("Postpaid settlement for split %s", compositeId),
	})
	if err != nil {
		return SplitResult{}, steps, fmt.Errorf("create payment: %w", err)
	}
	if err := c.recordStep(saga, &steps, models.SplitStepPaymentCreated, payment.ID, ""); err != nil {
		return SplitResult{}, steps, err
	}

	// Mark originals paid. This is all-or-nothing: a failed patch triggers
	// compensation for everything, including patches already applied.
	for _, item := range selected {
		prevState, err := utils.MarshalToJSON(models.InvoiceItemPatch{
			PaidAmount:      item.PaidAmount,
			RemainingAmount: item.RemainingAmount,
			IsPaid:          item.IsPaid,
		})
		if err != nil {
			return SplitResult{}, steps, err
		}
		err = c.api.PatchInvoiceItem(ctx, item.ID, models.InvoiceItemPatch{
			PaidAmount:      item.TotalPrice,
			RemainingAmount: decimal.Zero,
			IsPaid:          true,
		})
		if err != nil {
			return SplitResult{}, steps, fmt.Errorf("mark original item %d paid: %w", item.ID, err)
		}
		if err := c.recordStep(saga, &steps, models.SplitStepOriginalItemPatched, item.ID, prevState); err != nil {
			return SplitResult{}, steps, err
		}
	}

	patch, err := c.recomputeParent(ctx, parent, merged, selected, compositeId, child.ID)
	if err != nil {
		return SplitResult{}, steps, err
	}
	prevFullyPaid := parent.IsFullyPaid
	prevNotes := parent.Notes
	prevTotals, err := utils.MarshalToJSON(models.InvoicePatch{
		TotalAmount:     parent.TotalAmount,
		TotalPaid:       parent.TotalPaid,
		RemainingAmount: parent.RemainingAmount,
		IsFullyPaid:     &prevFullyPaid,
		Notes:           &prevNotes,
	})
	if err != nil {
		return SplitResult{}, steps, err
	}
	if err := c.api.PatchInvoice(ctx, parent.ID, patch); err != nil {
		return SplitResult{}, steps, fmt.Errorf("update parent invoice totals: %w", err)
	}
	if err := c.recordStep(saga, &steps, models.SplitStepParentPatched, parent.ID, prevTotals); err != nil {
		return SplitResult{}, steps, err
	}

	return SplitResult{
		CompositeId:     compositeId,
		ChildInvoiceId:  child.ID,
		ParentInvoiceId: parent.ID,
		AmountMoved:     amountMoved,
		ParentTotal:     patch.TotalAmount,
		ParentPaid:      patch.TotalPaid,
		ParentRemaining: patch.RemainingAmount,
		ParentFullyPaid: patch.IsFullyPaid != nil && *patch.IsFullyPaid,
	}, steps, nil
}

// recomputeParent builds the totals patch from the items that stay on the
// parent. With the recheck flag on (default), items are re-read fresh so
// edits made between load and patch are not silently overwritten.
func (c *SplitCoordinator) recomputeParent(ctx context.Context, parent models.Invoice, merged models.Invoice, selected []models.InvoiceItem, compositeId string, childId int) (models.InvoicePatch, error) {
	items := merged.Items
	if c.recheckParent {
		fresh, err := c.api.ListInvoiceItems(ctx, parent.ID)
		if err != nil {
			config.LogError(c.logger, "splitWorkflow.go", "recomputeParent", "ListInvoiceItems", parent.ID, err)
		} else {
			items = fresh
		}
	}

	selectedIds := make(map[int]bool, len(selected))
	for _, item := range selected {
		selectedIds[item.ID] = true
	}

	newTotal := decimal.Zero
	newPaid := decimal.Zero
	remainingCount := 0
	for _, item := range items {
		if selectedIds[item.ID] {
			continue
		}
		newTotal = newTotal.Add(item.TotalPrice)
		newPaid = newPaid.Add(item.PaidAmount)
		remainingCount++
	}

	note := parent.Notes
	if note != "" {
		note += "\n"
	}
	note += fmt.Sprintf("[%s] Split %s: %d item(s) moved to invoice %d",
		c.now().Format("2006-01-02"), compositeId, len(selected), childId)

	patch := models.InvoicePatch{
		TotalAmount:     newTotal,
		TotalPaid:       newPaid,
		RemainingAmount: newTotal.Sub(newPaid),
		Notes:           &note,
	}
	if remainingCount == 0 {
		fullyPaid := true
		patch.IsFullyPaid = &fullyPaid
	}
	return patch, nil
}

// resolvePostpaidMethod finds the shared "postpaid" payment method,
// creating it when the lookup table has none yet.
func (c *SplitCoordinator) resolvePostpaidMethod(ctx context.Context) (models.PaymentMethod, error) {
	methods, err := c.api.ListPaymentMethods(ctx)
	if err != nil {
		return models.PaymentMethod{}, err
	}
	for _, method := range methods {
		if method.IsPostpaid() {
			return method, nil
		}
	}
	return c.api.CreatePaymentMethod(ctx, models.NewPaymentMethod{
		Name:  "Postpaid",
		Value: models.PostpaidValue,
	})
}

// recordStep persists one completed remote write and mirrors it into the
// in-memory step list. The write already happened, so even when the
// insert fails the step stays in memory and failure handling can undo it.
func (c *SplitCoordinator) recordStep(saga *models.SplitSaga, steps *[]models.SplitSagaStep, name models.SplitSagaStepName, resourceId int, prevState string) error {
	step := models.SplitSagaStep{
		SagaId:     saga.ID,
		StepName:   name,
		ResourceId: resourceId,
		PrevState:  prevState,
	}
	err := c.store.RecordStep(&step)
	*steps = append(*steps, step)
	if err != nil {
		return fmt.Errorf("record saga step %s: %w", name, err)
	}
	return nil
}

// selectItems resolves the requested item ids against the merged detail
// view, falling back to the raw parent items, and rejects anything
// already paid. No remote write happens until every item passes.
func selectItems(mergedItems, parentItems []models.InvoiceItem, itemIds []int) ([]models.InvoiceItem, error) {
	byId := make(map[int]models.InvoiceItem, len(mergedItems)+len(parentItems))
	for _, item := range parentItems {
		if item.ID > 0 {
			byId[item.ID] = item
		}
	}
	for _, item := range mergedItems {
		if item.ID > 0 {
			byId[item.ID] = item
		}
	}

	selected := make([]models.InvoiceItem, 0, len(itemIds))
	seen := make(map[int]bool, len(itemIds))
	for _, id := range itemIds {
		if seen[id] {
			continue
		}
		seen[id] = true
		item, ok := byId[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, id)
		}
		if item.ID <= 0 {
			return nil, ErrItemNotPatchable
		}
		if item.IsPaid {
			return nil, fmt.Errorf("%w: id %d", ErrItemAlreadyPaid, id)
		}
		selected = append(selected, item)
	}
	if len(selected) == 0 {
		return nil, ErrNoItemsSelected
	}
	return selected, nil
}

// resolveProductId follows the fallback chain for an item's product
// reference: the merged item's own id, else a name match against the
// parent's original item list.
func resolveProductId(item models.InvoiceItem, parentItems []models.InvoiceItem) int {
	if item.ProductId > 0 {
		return item.ProductId
	}
	for _, p := range parentItems {
		if p.ProductId > 0 && p.ProductName != "" && strings.EqualFold(p.ProductName, item.ProductName) {
			return p.ProductId
		}
	}
	for _, p := range parentItems {
		if p.ID == item.ID && p.ProductId > 0 {
			return p.ProductId
		}
	}
	return 0
}
