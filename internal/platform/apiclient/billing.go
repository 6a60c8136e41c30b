package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jisazamp/carelink/internal/domain/billing"
)

type InvoicePage struct {
	Data    []*billing.Invoice `json:"data"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"has_more"`
}

// ListInvoices is retried on network and server failures.
func (c *Client) ListInvoices(ctx context.Context, f billing.InvoiceFilter, limit, offset int) (*InvoicePage, error) {
	q := url.Values{}
	if f.ContractID > 0 {
		q.Set("id_contrato", strconv.FormatInt(f.ContractID, 10))
	}
	if f.Status != "" {
		q.Set("estado", f.Status)
	}
	if !f.From.IsZero() {
		q.Set("fecha_desde", f.From.String())
	}
	if !f.To.IsZero() {
		q.Set("fecha_hasta", f.To.String())
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var page InvoicePage
	if err := c.retrying(ctx, "/api/facturas", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetInvoice(ctx context.Context, id int64) (*billing.Invoice, error) {
	var inv billing.Invoice
	if err := c.send(ctx, http.MethodGet, invoicePath(id), nil, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *Client) CreateInvoice(ctx context.Context, inv *billing.Invoice) (*billing.Invoice, error) {
	var out billing.Invoice
	if err := c.send(ctx, http.MethodPost, "/api/facturas", nil, inv, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InvoiceSummary(ctx context.Context, id int64) (*billing.Summary, error) {
	var s billing.Summary
	if err := c.send(ctx, http.MethodGet, invoicePath(id)+"/resumen", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListPayments(ctx context.Context, invoiceID int64) ([]*billing.Payment, error) {
	var out []*billing.Payment
	if err := c.send(ctx, http.MethodGet, "/api/pagos/factura/"+strconv.FormatInt(invoiceID, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadPaymentTypes fetches the payment type table and uses it for local
// validation from then on.
func (c *Client) LoadPaymentTypes(ctx context.Context) ([]billing.PaymentType, error) {
	var types []billing.PaymentType
	if err := c.send(ctx, http.MethodGet, "/api/tipos_pago", nil, nil, &types); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.catalog = billing.NewPaymentTypeCatalog(types)
	c.mu.Unlock()
	return types, nil
}

func (c *Client) currentCatalog() *billing.PaymentTypeCatalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog
}

// RegisterPayments posts the ledger's drafts for inv. The drafts are checked
// locally first and a violation returns *billing.ValidationError without a
// request. On success the drafts become confirmed; on any failure the ledger
// is left as it was.
func (c *Client) RegisterPayments(ctx context.Context, inv *billing.Invoice, ledger *billing.Ledger) (*billing.Summary, error) {
	drafts := ledger.Drafts()
	if len(drafts) == 0 {
		return nil, billing.NewValidationError("debe registrar al menos un pago")
	}
	if res := ledger.ValidateDrafts(inv.Total, c.currentCatalog()); !res.IsValid {
		return nil, billing.NewValidationError(res.Errors...)
	}
	for _, d := range drafts {
		d.InvoiceID = inv.ID
	}

	var resp struct {
		Pagos   []*billing.Payment `json:"pagos"`
		Resumen *billing.Summary   `json:"resumen"`
	}
	path := "/api/pagos/factura/" + strconv.FormatInt(inv.ID, 10)
	if err := c.send(ctx, http.MethodPost, path, nil, map[string]interface{}{"pagos": drafts}, &resp); err != nil {
		return nil, err
	}
	if err := ledger.Confirm(resp.Pagos); err != nil {
		return resp.Resumen, fmt.Errorf("confirming payments: %w", err)
	}
	c.logger.Info().Int64("invoice_id", inv.ID).Int("count", len(resp.Pagos)).Msg("payments registered")
	return resp.Resumen, nil
}

func (c *Client) DeletePayment(ctx context.Context, paymentID int64) (*billing.Summary, error) {
	var s billing.Summary
	if err := c.send(ctx, http.MethodDelete, "/api/pagos/"+strconv.FormatInt(paymentID, 10), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DownloadInvoicePDF returns the rendered invoice. Any response that is not
// application/pdf yields ErrNotPDF.
func (c *Client) DownloadInvoicePDF(ctx context.Context, id int64) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, invoicePath(id)+"/pdf", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mt != "application/pdf" {
		return nil, ErrNotPDF
	}
	return io.ReadAll(resp.Body)
}

func invoicePath(id int64) string { return "/api/facturas/" + strconv.FormatInt(id, 10) }
