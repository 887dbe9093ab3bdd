package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/billing_backend/config"
	"bitbucket.org/mmdatafocus/billing_backend/models"
	"bitbucket.org/mmdatafocus/billing_backend/utils"
)

// fail closes out a saga after a step error: compensate the committed
// remote writes in reverse order, then record the final status. The
// in-memory step list is authoritative because it also holds writes whose
// step row failed to insert; the stored log is only consulted when no
// list is available. When compensation is disabled, or itself fails
// partway, the saga stays FAILED and the log shows which rows were left
// behind.
func (c *SplitCoordinator) fail(ctx context.Context, saga *models.SplitSaga, steps []models.SplitSagaStep, cause error) {
	config.LogError(c.logger, "compensation.go", "fail", "splitFailed", saga.ID, cause)

	status := models.SplitSagaStatusFailed
	if c.compensationEnabled {
		if err := c.compensate(ctx, saga, steps); err != nil {
			config.LogError(c.logger, "compensation.go", "fail", "compensate", saga.ID, err)
		} else {
			status = models.SplitSagaStatusCompensated
		}
	}

	msg := cause.Error()
	saga.Status = status
	saga.LastError = &msg
	if err := c.store.UpdateSaga(saga); err != nil {
		config.LogError(c.logger, "compensation.go", "fail", "UpdateSaga", saga.ID, err)
	}
}

func (c *SplitCoordinator) compensate(ctx context.Context, saga *models.SplitSaga, steps []models.SplitSagaStep) error {
	if steps == nil {
		var err error
		steps, err = c.store.StepsForSaga(saga.ID)
		if err != nil {
			return err
		}
	}

	var firstErr error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Compensated {
			continue
		}
		if err := c.compensateStep(ctx, step); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("compensate %s (resource %d): %w", step.StepName, step.ResourceId, err)
			}
			config.LogError(c.logger, "compensation.go", "compensate", string(step.StepName), step.ResourceId, err)
			continue
		}
		// Steps whose insert failed have no row to mark.
		if step.ID != 0 {
			if err := c.store.MarkStepCompensated(step.ID); err != nil {
				config.LogError(c.logger, "compensation.go", "compensate", "MarkStepCompensated", step.ID, err)
			}
		}
	}
	return firstErr
}

func (c *SplitCoordinator) compensateStep(ctx context.Context, step models.SplitSagaStep) error {
	switch step.StepName {
	case models.SplitStepParentPatched:
		var prev models.InvoicePatch
		if err := utils.UnmarshalFromJSON([]byte(step.PrevState), &prev); err != nil {
			return err
		}
		return c.api.PatchInvoice(ctx, step.ResourceId, prev)
	case models.SplitStepOriginalItemPatched:
		var prev models.InvoiceItemPatch
		if err := utils.UnmarshalFromJSON([]byte(step.PrevState), &prev); err != nil {
			return err
		}
		return c.api.PatchInvoiceItem(ctx, step.ResourceId, prev)
	case models.SplitStepPaymentCreated:
		return c.api.DeletePayment(ctx, step.ResourceId)
	case models.SplitStepChildItemCreated:
		return c.api.DeleteInvoiceItem(ctx, step.ResourceId)
	case models.SplitStepChildInvoiceCreated:
		return c.api.DeleteInvoice(ctx, step.ResourceId)
	default:
		return fmt.Errorf("unknown saga step %s", step.StepName)
	}
}
