package attendance

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("registro de asistencia no encontrado")
	// ErrNoCredits is returned when a credit-consuming transition finds the
	// contract's allotment exhausted.
	ErrNoCredits = errors.New("la tiquetera del contrato no tiene créditos disponibles")
)

// TransitionError reports a status change attempted from a state other than
// PENDIENTE.
type TransitionError struct {
	Current Status
	Target  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no se puede cambiar a %s: la asistencia ya está en estado %s", e.Target, e.Current)
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string { return strings.Join(e.Errors, "; ") }

func invalid(errs ...string) *ValidationError { return &ValidationError{Errors: errs} }
