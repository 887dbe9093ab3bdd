package models

import "time"

type SplitSagaStatus string

const (
	SplitSagaStatusStarted     SplitSagaStatus = "STARTED"
	SplitSagaStatusSucceeded   SplitSagaStatus = "SUCCEEDED"
	SplitSagaStatusFailed      SplitSagaStatus = "FAILED"
	SplitSagaStatusCompensated SplitSagaStatus = "COMPENSATED"
)

// SplitSaga records one split operation end to end. The sales backend
// commits every remote call independently, so this row plus its steps are
// the only durable record of how far a split got and what compensation
// has to undo.
type SplitSaga struct {
	ID              int             `gorm:"primary_key" json:"id"`
	RequestKey      string          `gorm:"size:255;not null;uniqueIndex" json:"request_key"`
	ParentInvoiceId int             `gorm:"index;not null" json:"parent_invoice_id"`
	ChildInvoiceId  int             `gorm:"default:0" json:"child_invoice_id"`
	CompositeId     string          `gorm:"size:64" json:"composite_id"`
	Status          SplitSagaStatus `gorm:"size:20;not null;index" json:"status"`
	LastError       *string         `gorm:"type:text" json:"last_error"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SplitSagaStepName string

const (
	SplitStepChildInvoiceCreated SplitSagaStepName = "CHILD_INVOICE_CREATED"
	SplitStepChildItemCreated    SplitSagaStepName = "CHILD_ITEM_CREATED"
	SplitStepPaymentCreated      SplitSagaStepName = "PAYMENT_CREATED"
	SplitStepOriginalItemPatched SplitSagaStepName = "ORIGINAL_ITEM_PATCHED"
	SplitStepParentPatched       SplitSagaStepName = "PARENT_PATCHED"
)

// SplitSagaStep is one committed remote write. PrevState holds the JSON of
// whatever the step overwrote (original item payment fields) so the
// compensator can restore it; create-steps leave it empty and compensate
// by deleting ResourceId.
type SplitSagaStep struct {
	ID           int               `gorm:"primary_key" json:"id"`
	SagaId       int               `gorm:"index;not null" json:"saga_id"`
	StepName     SplitSagaStepName `gorm:"size:40;not null" json:"step_name"`
	ResourceId   int               `gorm:"not null" json:"resource_id"`
	PrevState    string            `gorm:"type:text" json:"prev_state"`
	Compensated  bool              `gorm:"default:false" json:"compensated"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
}
