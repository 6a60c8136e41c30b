package attendance

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jisazamp/carelink/internal/platform/auth"
	"github.com/jisazamp/carelink/pkg/caldate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/cronograma_asistencia", auth.RequireRole(auth.RoleAdmin, auth.RoleProfessional))

	g.GET("", h.ListByDate)
	g.GET("/proximos", h.ListUpcoming)
	g.GET("/paciente/:id", h.GetEntry)
	g.GET("/pacientes/:id", h.ListByPatient)
	g.PATCH("/paciente/:id/estado", h.UpdateStatus)
	g.POST("/paciente/:id/reagendar", h.Reschedule)

	t := api.Group("/tiqueteras", auth.RequireRole(auth.RoleAdmin, auth.RoleProfessional, auth.RoleBilling))
	t.GET("/contrato/:id", h.GetAllotment)
}

type validationResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func mapError(c echo.Context, err error) error {
	var (
		ve *ValidationError
		te *TransitionError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{Message: "datos inválidos", Errors: ve.Errors})
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusConflict, te.Error())
	case errors.Is(err, ErrNoCredits):
		return echo.NewHTTPError(http.StatusConflict, ErrNoCredits.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
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

func (h *Handler) ListByDate(c echo.Context) error {
	var date caldate.Date
	if v := c.QueryParam("fecha"); v != "" {
		d, err := caldate.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "fecha inválida, use AAAA-MM-DD")
		}
		date = d
	}
	items, err := h.svc.ListByDate(c.Request().Context(), date)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListUpcoming(c echo.Context) error {
	days := 0
	if v := c.QueryParam("dias"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "dias inválido")
		}
		days = n
	}
	items, err := h.svc.ListUpcoming(c.Request().Context(), days)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var ch StatusChange
	if err := c.Bind(&ch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cuerpo de la solicitud inválido")
	}
	e, err := h.svc.UpdateStatus(c.Request().Context(), id, ch)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req Reschedule
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cuerpo de la solicitud inválido")
	}
	res, err := h.svc.Reschedule(c.Request().Context(), id, req)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetAllotment(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Allotment(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
