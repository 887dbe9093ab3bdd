package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bitbucket.org/mmdatafocus/billing_backend/config"
	"bitbucket.org/mmdatafocus/billing_backend/models"
	"bitbucket.org/mmdatafocus/billing_backend/models/reports"
	"bitbucket.org/mmdatafocus/billing_backend/salesapi"
	"bitbucket.org/mmdatafocus/billing_backend/workflow"
)

var validate = validator.New()

type splitRequestBody struct {
	ItemIds        []int  `json:"item_ids" validate:"required,min=1,dive,gt=0"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=255"`
	PaymentDate    string `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
}

// storesReady reports whether the background DB/Redis bring-up finished.
func storesReady() bool {
	return config.GetDB() != nil && config.GetRedisLock() != nil
}

func parseOutstandingFilter(c *gin.Context) (models.OutstandingFilter, error) {
	filter := models.OutstandingFilter{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Search:    c.Query("search"),
	}
	if v := c.Query("warehouse"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.WarehouseId = n
	}
	return filter, nil
}

func outstandingHandler(api *salesapi.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseOutstandingFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "warehouse must be an integer"})
			return
		}
		invoices, err := workflow.LoadOutstandingInvoices(c.Request.Context(), api, config.GetLogger(), filter)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": invoices})
	}
}

func outstandingExportHandler(api *salesapi.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseOutstandingFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "warehouse must be an integer"})
			return
		}
		invoices, err := workflow.LoadOutstandingInvoices(c.Request.Context(), api, config.GetLogger(), filter)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		workbook, err := reports.BuildOutstandingWorkbook(invoices)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		filename := "outstanding-" + time.Now().Format("20060102") + ".xlsx"
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		if _, err := workbook.WriteTo(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "outstandingExportHandler", "WriteTo", filename, err)
		}
	}
}

func invoiceDetailHandler(api *salesapi.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
			return
		}
		invoice, err := workflow.LoadInvoiceDetail(c.Request.Context(), api, config.GetLogger(), id)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func splitHandler(api *salesapi.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !storesReady() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service starting up, try again"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
			return
		}

		var body splitRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(body); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		requestKey := body.IdempotencyKey
		if requestKey == "" {
			requestKey = c.GetHeader("Idempotency-Key")
		}

		ctx, span := tracer.Start(c.Request.Context(), "invoice.split")
		defer span.End()

		coordinator := workflow.NewSplitCoordinator(
			api,
			workflow.NewGormSagaStore(config.GetDB()),
			workflow.NewRedisLocker(config.GetRedisLock()),
			config.GetLogger(),
		)
		result, err := coordinator.Split(ctx, workflow.SplitRequest{
			ParentInvoiceId: id,
			ItemIds:         body.ItemIds,
			RequestKey:      requestKey,
			PaymentDate:     body.PaymentDate,
		})
		if err != nil {
			c.JSON(splitErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func splitErrorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNoItemsSelected),
		errors.Is(err, workflow.ErrItemAlreadyPaid),
		errors.Is(err, workflow.ErrItemNotFound),
		errors.Is(err, workflow.ErrItemNotPatchable),
		errors.Is(err, workflow.ErrParentRefsUnresolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrSplitInProgress),
		errors.Is(err, workflow.ErrIdempotencyInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
