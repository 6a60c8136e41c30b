package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jisazamp/carelink/internal/domain/attendance"
	"github.com/jisazamp/carelink/internal/domain/billing"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrNotFound       = errors.New("resource not found")
	ErrServer         = errors.New("server error")
	ErrNotPDF         = errors.New("response is not a PDF document")
)

// APIError is a non-2xx response. Unwrap exposes the sentinel for 401, 404
// and 5xx so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrSessionExpired
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}

// UserMessage renders err as a sentence suitable for an operator.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		apiErr *APIError
		te     *attendance.TransitionError
		ave    *attendance.ValidationError
		bve    *billing.ValidationError
	)
	switch {
	case errors.Is(err, ErrSessionExpired):
		return "Su sesión ha expirado. Inicie sesión nuevamente."
	case errors.Is(err, ErrNotFound):
		return "El registro solicitado no existe o fue eliminado."
	case errors.Is(err, ErrServer):
		return "Error del servidor. Intente de nuevo en unos minutos."
	case errors.Is(err, ErrNotPDF):
		return "El servidor no devolvió un documento PDF válido."
	case errors.Is(err, context.DeadlineExceeded):
		return "La solicitud tardó demasiado. Verifique su conexión e intente de nuevo."
	case errors.As(err, &te):
		return te.Error()
	case errors.As(err, &ave):
		return strings.Join(ave.Errors, ". ")
	case errors.As(err, &bve):
		return strings.Join(bve.Errors, ". ")
	case errors.As(err, &apiErr):
		if len(apiErr.Errors) > 0 {
			return strings.Join(apiErr.Errors, ". ")
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "La solicitud fue rechazada por el servidor."
	default:
		return "No se pudo conectar con el servidor."
	}
}
