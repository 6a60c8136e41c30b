package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

// -- Invoice Handler Tests --

func TestHandler_CreateInvoice(t *testing.T) {
	h, e := newTestHandler()
	body := `{"id_contrato":3,"fecha_emision":"2026-10-01","subtotal":100000,"impuestos":0,"descuentos":0}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.CreateInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID == 0 || !got.Total.Equal(decimal.NewFromInt(100000)) || got.Status != EstadoPendiente {
		t.Errorf("unexpected invoice %+v", got)
	}
}

func TestHandler_CreateInvoice_Unprocessable(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"subtotal":100}`), rec)

	if err := h.CreateInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body validationResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Message == "" || len(body.Errors) == 0 {
		t.Errorf("expected message and errors, got %+v", body)
	}
}

func TestHandler_CreateInvoice_BadJSON(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"id_contrato":`), httptest.NewRecorder())
	if code := httpCode(t, h.CreateInvoice(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetInvoice(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 5000)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.GetInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pagos":[]`) {
		t.Errorf("expected empty pagos array, got %s", rec.Body.String())
	}
}

func TestHandler_GetInvoice_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("77")
	if code := httpCode(t, h.GetInvoice(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetInvoice_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")
	if code := httpCode(t, h.GetInvoice(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListInvoices(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100)
	createInvoice(t, h.svc, 200)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=1&id_contrato=1", nil), rec)
	if err := h.ListInvoices(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data    []Invoice `json:"data"`
		Total   int       `json:"total"`
		HasMore bool      `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 2 || len(body.Data) != 1 || !body.HasMore {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestHandler_ListInvoices_BadDate(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?fecha_desde=ayer", nil), httptest.NewRecorder())
	if code := httpCode(t, h.ListInvoices(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListInvoicesByContract(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("2")
	if err := h.ListInvoicesByContract(c); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}

func TestHandler_PatchInvoice(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100000)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, `{"descuentos":10000,"estado_factura":"VENCIDA"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.PatchInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Invoice
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.Total.Equal(decimal.NewFromInt(90000)) || got.Status != EstadoVencida {
		t.Errorf("unexpected invoice %+v", got)
	}
}

func TestHandler_DeleteInvoice(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.DeleteInvoice(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

// -- Payment Handler Tests --

func TestHandler_RegisterPayments(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100000)

	body := `{"pagos":[
		{"id_metodo_pago":1,"id_tipo_pago":2,"fecha_pago":"2026-10-14","valor":40000},
		{"id_metodo_pago":2,"id_tipo_pago":1,"fecha_pago":"2026-10-14","valor":60000}
	]}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.RegisterPayments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp registerPaymentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Pagos) != 2 || resp.Resumen.Status != EstadoPagada {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_RegisterPayments_Invalid(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100000)

	body := `{"pagos":[{"id_metodo_pago":1,"id_tipo_pago":1,"fecha_pago":"2026-10-14","valor":50000}]}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.RegisterPayments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "exactamente $100.000") {
		t.Errorf("expected full payment message, got %s", rec.Body.String())
	}
}

func TestHandler_RegisterPayments_SubCentValue(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100000)

	body := `{"pagos":[{"id_metodo_pago":1,"id_tipo_pago":2,"fecha_pago":"2026-10-14","valor":0.004}]}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.RegisterPayments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dos decimales") {
		t.Errorf("expected scale message, got %s", rec.Body.String())
	}
}

func TestHandler_RegisterPayments_Closed(t *testing.T) {
	h, e := newTestHandler()
	inv := createInvoice(t, h.svc, 100000)
	st := EstadoAnulada
	_, _ = h.svc.PatchInvoice(context.Background(), inv.ID, InvoicePatch{Status: &st})

	body := `{"pagos":[{"id_metodo_pago":1,"id_tipo_pago":2,"fecha_pago":"2026-10-14","valor":10}]}`
	c := e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	if code := httpCode(t, h.RegisterPayments(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_ListAndDeletePayment(t *testing.T) {
	h, e := newTestHandler()
	inv := createInvoice(t, h.svc, 100000)
	_, _, _ = h.svc.RegisterPayments(context.Background(), inv.ID, []*Payment{draft(2, 1000)})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.ListPayments(c); err != nil {
		t.Fatal(err)
	}
	var pays []Payment
	_ = json.Unmarshal(rec.Body.Bytes(), &pays)
	if len(pays) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(pays))
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.DeletePayment(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ReferenceLists(t *testing.T) {
	h, e := newTestHandler()
	for _, fn := range []echo.HandlerFunc{h.PaymentTypes, h.PaymentMethods} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := fn(c); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "nombre") {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	}
}

func TestHandler_InvoiceSummary(t *testing.T) {
	h, e := newTestHandler()
	createInvoice(t, h.svc, 100000)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.InvoiceSummary(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"saldo_pendiente"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_RoutesRequireRole(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facturas", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without roles, got %d", rec.Code)
	}
}
