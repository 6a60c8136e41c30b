package attendance

import (
	"strings"
	"time"

	"github.com/jisazamp/carelink/pkg/caldate"
)

// Gate decides which attendance transitions are allowed. Only PENDIENTE
// entries move, and every other state is terminal.
type Gate struct {
	loc *time.Location
	now func() time.Time
}

// NewGate evaluates "today" in loc. A nil loc means UTC.
func NewGate(loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{loc: loc, now: time.Now}
}

// WithClock returns a copy of g that reads the time from now.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	cp := *g
	cp.now = now
	return &cp
}

func (g *Gate) Today() caldate.Date { return caldate.Today(g.now(), g.loc) }

// Check validates the state pair alone.
func (g *Gate) Check(current, target Status) error {
	if !terminalStatuses[target] {
		return invalid("estado_asistencia inválido: " + string(target))
	}
	if current != StatusPendiente {
		return &TransitionError{Current: current, Target: target}
	}
	return nil
}

// ValidateChange checks a direct status change. REAGENDADO is only reachable
// through ValidateReschedule because it needs a new date.
func (g *Gate) ValidateChange(e *Entry, ch StatusChange) error {
	if e == nil {
		return invalid("la asistencia es requerida")
	}
	if err := g.Check(e.Status, ch.Status); err != nil {
		return err
	}
	switch ch.Status {
	case StatusNoAsistio:
		if strings.TrimSpace(ch.Observations) == "" {
			return invalid("las observaciones son obligatorias cuando el paciente no asiste")
		}
	case StatusReagendado:
		return invalid("para reagendar use la opción de reagendamiento con nueva fecha")
	}
	return nil
}

// ValidateReschedule requires observations and a new date that is today or
// later.
func (g *Gate) ValidateReschedule(e *Entry, req Reschedule) error {
	if e == nil {
		return invalid("la asistencia es requerida")
	}
	if err := g.Check(e.Status, StatusReagendado); err != nil {
		return err
	}
	var errs []string
	if strings.TrimSpace(req.Observations) == "" {
		errs = append(errs, "las observaciones son obligatorias para reagendar")
	}
	if req.NewDate.IsZero() {
		errs = append(errs, "la nueva fecha es obligatoria")
	} else if req.NewDate.Before(g.Today()) {
		errs = append(errs, "la nueva fecha no puede ser anterior a hoy")
	}
	if len(errs) > 0 {
		return invalid(errs...)
	}
	return nil
}

// ConsumesCredit reports whether reaching status spends one allotment
// credit. Cancelling and rescheduling keep the quota.
func ConsumesCredit(s Status) bool {
	return s == StatusAsistio || s == StatusNoAsistio
}
