package visits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jisazamp/carelink/internal/platform/websocket"
)

var ErrNotFound = errors.New("visita domiciliaria no encontrada")

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string { return strings.Join(e.Errors, "; ") }

type Service struct {
	repo   Repository
	events websocket.Publisher
	logger zerolog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, events: websocket.NopPublisher{}, logger: zerolog.Nop()}
}

func (s *Service) SetPublisher(p websocket.Publisher) { s.events = p }

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "visits").Logger()
}

func validate(v *Visit) error {
	var errs []string
	if v.PatientID <= 0 {
		errs = append(errs, "id_paciente es requerido")
	}
	if v.Date.IsZero() {
		errs = append(errs, "fecha_visita es requerida")
	}
	v.Address = strings.TrimSpace(v.Address)
	if v.Address == "" {
		errs = append(errs, "direccion_visita es requerida")
	}
	if v.DailyValue.IsNegative() {
		errs = append(errs, "valor_dia no puede ser negativo")
	}
	if !v.DailyValue.Equal(v.DailyValue.Round(2)) {
		errs = append(errs, "valor_dia no puede tener más de dos decimales")
	}
	if v.Time != "" {
		if _, err := time.Parse("15:04", v.Time); err != nil {
			errs = append(errs, "hora_visita debe tener formato HH:MM")
		}
	}
	if v.Status == "" {
		v.Status = StatusPendiente
	}
	if !validStatuses[v.Status] {
		errs = append(errs, fmt.Sprintf("estado_visita inválido: %s", v.Status))
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (s *Service) CreateVisit(ctx context.Context, v *Visit) error {
	if err := validate(v); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, v); err != nil {
		s.logger.Error().Err(err).Int64("patient_id", v.PatientID).Msg("create visit failed")
		return err
	}
	s.publish(ctx, websocket.EventCreated, v.ID)
	return nil
}

func (s *Service) GetVisit(ctx context.Context, id int64) (*Visit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, &ValidationError{Errors: []string{"estado_visita inválido: " + f.Status}}
	}
	return s.repo.List(ctx, f, limit, offset)
}

// UpdateVisit replaces the editable fields of an existing visit. The patient
// cannot change.
func (s *Service) UpdateVisit(ctx context.Context, v *Visit) error {
	existing, err := s.repo.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	v.PatientID = existing.PatientID
	v.CreatedAt = existing.CreatedAt
	if err := validate(v); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return err
	}
	s.publish(ctx, websocket.EventUpdated, v.ID)
	return nil
}

func (s *Service) DeleteVisit(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, websocket.EventDeleted, id)
	return nil
}

func (s *Service) publish(ctx context.Context, typ string, id int64) {
	sid := strconv.FormatInt(id, 10)
	err := s.events.Publish(ctx, websocket.Event{Type: typ, Topic: "visita/" + sid, Entity: "visita", EntityID: sid})
	if err != nil {
		s.logger.Warn().Err(err).Int64("visit_id", id).Msg("publish event failed")
	}
}
