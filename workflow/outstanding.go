package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/billing_backend/config"
	"bitbucket.org/mmdatafocus/billing_backend/models"
)

// The unfiltered list is cached under one shared key: the sales backend
// returns the same outstanding set to every credential it accepts
// (single-tenant deployment), so the key carries no token scope. Revisit
// if the backend ever scopes results per credential.
const (
	outstandingCacheKey = "billing:outstanding"
	outstandingCacheTTL = 30 * time.Second
)

// LoadOutstandingInvoices returns the working set of invoices with money
// still owed. The backend already filters on remaining_amount > 0, but the
// result is filtered again here so a backend regression can never push a
// settled invoice into the console's outstanding table.
func LoadOutstandingInvoices(ctx context.Context, api SalesAPI, logger *logrus.Logger, filter models.OutstandingFilter) ([]models.Invoice, error) {
	unfiltered := filter == (models.OutstandingFilter{})
	if unfiltered {
		var cached []models.Invoice
		if hit, err := config.GetRedisObject(outstandingCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	invoices, err := api.ListOutstandingInvoices(ctx, filter)
	if err != nil {
		config.LogError(logger, "outstanding.go", "LoadOutstandingInvoices", "ListOutstandingInvoices", filter, err)
		return nil, err
	}

	outstanding := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.RemainingAmount.GreaterThan(decimal.Zero) {
			outstanding = append(outstanding, inv)
		}
	}

	if unfiltered {
		if err := config.SetRedisObject(outstandingCacheKey, outstanding, outstandingCacheTTL); err != nil {
			config.LogError(logger, "outstanding.go", "LoadOutstandingInvoices", "SetRedisObject", outstandingCacheKey, err)
		}
	}
	return outstanding, nil
}

// InvalidateOutstandingCache drops the cached list after a split so the
// next load reflects the backend's recomputed state.
func InvalidateOutstandingCache() error {
	return config.RemoveRedisKey(outstandingCacheKey)
}
