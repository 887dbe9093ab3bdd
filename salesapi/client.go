package salesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/billing_backend/models"
	"bitbucket.org/mmdatafocus/billing_backend/utils"
)

// Client talks to the remote sales backend, the system of record for
// invoices, items and payments. Each call commits independently on the
// backend side; the workflow package layers saga bookkeeping on top.
type Client struct {
	baseURL string
	http    *http.Client

	// serviceToken authorizes calls made outside a console request
	// (CLI reports). Per-request console tokens from the context win.
	serviceToken string
}

func NewClient() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("SALES_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("SALES_API_BASE_URL is empty")
	}
	timeout := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("SALES_API_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: timeout},
		serviceToken: strings.TrimSpace(os.Getenv("SALES_API_SERVICE_TOKEN")),
	}, nil
}

func (c *Client) token(ctx context.Context) string {
	if token, ok := utils.GetTokenFromContext(ctx); ok && token != "" {
		return token
	}
	return c.serviceToken
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token(ctx))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sales api error %d on %s %s: %s", resp.StatusCode, method, path, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) getList(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	var envelope listEnvelope
	if err := c.do(ctx, http.MethodGet, path, params, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Results, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	rows, err := c.getList(ctx, "/common/list-items/payment_method/", nil)
	if err != nil {
		return nil, err
	}
	methods := make([]models.PaymentMethod, 0, len(rows))
	for _, row := range rows {
		var w wirePaymentMethod
		if err := json.Unmarshal(row, &w); err != nil {
			return nil, err
		}
		methods = append(methods, normalizePaymentMethod(w))
	}
	return methods, nil
}

func (c *Client) CreatePaymentMethod(ctx context.Context, method models.NewPaymentMethod) (models.PaymentMethod, error) {
	var w wirePaymentMethod
	err := c.do(ctx, http.MethodPost, "/common/list-items/payment_method/", nil, method, &w)
	if err != nil {
		return models.PaymentMethod{}, err
	}
	return normalizePaymentMethod(w), nil
}

// GetInvoice fetches the raw invoice, the only view that reliably carries
// foreign-key ids (customer, warehouse, type).
func (c *Client) GetInvoice(ctx context.Context, id int) (models.Invoice, error) {
	var w wireInvoice
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sales/invoices/%d/", id), nil, nil, &w)
	if err != nil {
		return models.Invoice{}, err
	}
	return normalizeInvoice(w), nil
}

// GetInvoiceSummary fetches the computed view: human-readable names and
// totals, but no foreign-key ids and no item payment status.
func (c *Client) GetInvoiceSummary(ctx context.Context, id int) (models.Invoice, error) {
	var w wireInvoice
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sales/invoices/%d/summary/", id), nil, nil, &w)
	if err != nil {
		return models.Invoice{}, err
	}
	return normalizeInvoice(w), nil
}

// ListInvoiceItems fetches the detail item view carrying paid_amount,
// remaining_amount, is_paid and payment_status_display.
func (c *Client) ListInvoiceItems(ctx context.Context, invoiceId int) ([]models.InvoiceItem, error) {
	rows, err := c.getList(ctx, fmt.Sprintf("/sales/invoices/%d/items/", invoiceId), nil)
	if err != nil {
		return nil, err
	}
	items := make([]models.InvoiceItem, 0, len(rows))
	for _, row := range rows {
		var w wireItem
		if err := json.Unmarshal(row, &w); err != nil {
			return nil, err
		}
		items = append(items, normalizeItem(w))
	}
	return items, nil
}

func (c *Client) CreateInvoice(ctx context.Context, invoice models.NewInvoice) (models.Invoice, error) {
	var w wireInvoice
	err := c.do(ctx, http.MethodPost, "/sales/invoices/", nil, invoice, &w)
	if err != nil {
		return models.Invoice{}, err
	}
	return normalizeInvoice(w), nil
}

func (c *Client) CreateInvoiceItem(ctx context.Context, item models.NewInvoiceItem) (models.InvoiceItem, error) {
	var w wireItem
	err := c.do(ctx, http.MethodPost, "/sales/invoice-items/", nil, item, &w)
	if err != nil {
		return models.InvoiceItem{}, err
	}
	return normalizeItem(w), nil
}

func (c *Client) CreatePayment(ctx context.Context, payment models.NewPayment) (models.Payment, error) {
	var w wirePayment
	err := c.do(ctx, http.MethodPost, "/sales/payments/", nil, payment, &w)
	if err != nil {
		return models.Payment{}, err
	}
	return normalizePayment(w), nil
}

func (c *Client) PatchInvoiceItem(ctx context.Context, id int, patch models.InvoiceItemPatch) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/sales/invoice-items/%d/", id), nil, patch, nil)
}

func (c *Client) PatchInvoice(ctx context.Context, id int, patch models.InvoicePatch) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/sales/invoices/%d/", id), nil, patch, nil)
}

func (c *Client) ListOutstandingInvoices(ctx context.Context, filter models.OutstandingFilter) ([]models.Invoice, error) {
	params := url.Values{}
	if filter.WarehouseId > 0 {
		params.Set("warehouse", strconv.Itoa(filter.WarehouseId))
	}
	if filter.StartDate != "" {
		params.Set("start_date", filter.StartDate)
	}
	if filter.EndDate != "" {
		params.Set("end_date", filter.EndDate)
	}
	if filter.Search != "" {
		params.Set("search", filter.Search)
	}
	rows, err := c.getList(ctx, "/sales/invoices/outstanding-payments/", params)
	if err != nil {
		return nil, err
	}
	invoices := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		var w wireInvoice
		if err := json.Unmarshal(row, &w); err != nil {
			return nil, err
		}
		invoices = append(invoices, normalizeInvoice(w))
	}
	return invoices, nil
}

func (c *Client) DeleteInvoice(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/sales/invoices/%d/", id), nil, nil, nil)
}

func (c *Client) DeleteInvoiceItem(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/sales/invoice-items/%d/", id), nil, nil, nil)
}

func (c *Client) DeletePayment(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/sales/payments/%d/", id), nil, nil, nil)
}
