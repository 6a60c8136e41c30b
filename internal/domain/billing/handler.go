package billing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jisazamp/carelink/internal/platform/auth"
	"github.com/jisazamp/carelink/pkg/caldate"
	"github.com/jisazamp/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleBilling))

	g.GET("/facturas", h.ListInvoices)
	g.POST("/facturas", h.CreateInvoice)
	g.GET("/facturas/contrato/:id", h.ListInvoicesByContract)
	g.GET("/facturas/:id", h.GetInvoice)
	g.PATCH("/facturas/:id", h.PatchInvoice)
	g.DELETE("/facturas/:id", h.DeleteInvoice)
	g.GET("/facturas/:id/resumen", h.InvoiceSummary)

	g.GET("/pagos/factura/:id", h.ListPayments)
	g.POST("/pagos/factura/:id", h.RegisterPayments)
	g.DELETE("/pagos/:id", h.DeletePayment)

	g.GET("/tipos_pago", h.PaymentTypes)
	g.GET("/metodos_pago", h.PaymentMethods)
}

// validationResponse is the 422 body. errors lists every violation.
type validationResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// mapError translates service errors into HTTP responses.
func mapError(c echo.Context, err error) error {
	if ve, ok := IsValidation(err); ok {
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{
			Message: "datos inválidos",
			Errors:  ve.Errors,
		})
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "factura o pago no encontrado")
	case errors.Is(err, ErrInvoiceClosed):
		return echo.NewHTTPError(http.StatusConflict, ErrInvoiceClosed.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "error interno del servidor").SetInternal(err)
	}
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id inválido")
	}
	return id, nil
}

// -- Invoice Handlers --

func (h *Handler) CreateInvoice(c echo.Context) error {
	var inv Invoice
	if err := c.Bind(&inv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cuerpo de la solicitud inválido")
	}
	inv.ID = 0
	if err := h.svc.CreateInvoice(c.Request().Context(), &inv); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListInvoices(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(c, err)
	}
	if items == nil {
		items = []*Invoice{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func filterFromQuery(c echo.Context) (InvoiceFilter, error) {
	var f InvoiceFilter
	if v := c.QueryParam("id_contrato"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "id_contrato inválido")
		}
		f.ContractID = id
	}
	f.Status = c.QueryParam("estado")
	for name, dst := range map[string]*caldate.Date{"fecha_desde": &f.From, "fecha_hasta": &f.To} {
		if v := c.QueryParam(name); v != "" {
			d, err := caldate.Parse(v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, name+" inválida")
			}
			*dst = d
		}
	}
	return f, nil
}

func (h *Handler) ListInvoicesByContract(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListInvoicesByContract(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if items == nil {
		items = []*Invoice{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) PatchInvoice(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var patch InvoicePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cuerpo de la solicitud inválido")
	}
	inv, err := h.svc.PatchInvoice(c.Request().Context(), id, patch)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) DeleteInvoice(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteInvoice(c.Request().Context(), id); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) InvoiceSummary(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.InvoiceSummary(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// -- Payment Handlers --

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	pays, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, pays)
}

type registerPaymentsRequest struct {
	Pagos []*Payment `json:"pagos"`
}

type registerPaymentsResponse struct {
	Pagos   []*Payment `json:"pagos"`
	Resumen *Summary   `json:"resumen"`
}

func (h *Handler) RegisterPayments(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req registerPaymentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cuerpo de la solicitud inválido")
	}
	saved, sum, err := h.svc.RegisterPayments(c.Request().Context(), id, req.Pagos)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, registerPaymentsResponse{Pagos: saved, Resumen: sum})
}

func (h *Handler) DeletePayment(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.DeletePayment(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// -- Reference Handlers --

func (h *Handler) PaymentTypes(c echo.Context) error {
	types, err := h.svc.PaymentTypes(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, types)
}

func (h *Handler) PaymentMethods(c echo.Context) error {
	methods, err := h.svc.PaymentMethods(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, methods)
}
