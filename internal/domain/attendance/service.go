package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jisazamp/carelink/internal/platform/db"
	"github.com/jisazamp/carelink/internal/platform/websocket"
	"github.com/jisazamp/carelink/pkg/caldate"
)

const (
	DefaultUpcomingDays = 7
	MaxUpcomingDays     = 60
)

type Service struct {
	entries    EntryRepository
	schedules  ScheduleRepository
	allotments AllotmentRepository
	tx         db.TxRunner

	gate   *Gate
	events websocket.Publisher
	logger zerolog.Logger
}

func NewService(entries EntryRepository, schedules ScheduleRepository, allotments AllotmentRepository, tx db.TxRunner) *Service {
	return &Service{
		entries:    entries,
		schedules:  schedules,
		allotments: allotments,
		tx:         tx,
		gate:       NewGate(time.UTC),
		events:     websocket.NopPublisher{},
		logger:     zerolog.Nop(),
	}
}

func (s *Service) SetPublisher(p websocket.Publisher) { s.events = p }

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "attendance").Logger()
}

// SetGate replaces the transition gate, typically to change the zone that
// defines "today".
func (s *Service) SetGate(g *Gate) { s.gate = g }

func (s *Service) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return s.entries.GetByID(ctx, id)
}

func (s *Service) ListByDate(ctx context.Context, date caldate.Date) ([]*Entry, error) {
	if date.IsZero() {
		date = s.gate.Today()
	}
	return nonNil(s.entries.ListByDate(ctx, date))
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Entry, error) {
	return nonNil(s.entries.ListByPatient(ctx, patientID))
}

// ListUpcoming returns pending entries from today through today+days.
func (s *Service) ListUpcoming(ctx context.Context, days int) ([]*Entry, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	if days > MaxUpcomingDays {
		days = MaxUpcomingDays
	}
	today := s.gate.Today()
	return nonNil(s.entries.ListPending(ctx, today, today.AddDays(days)))
}

func nonNil(in []*Entry, err error) ([]*Entry, error) {
	if err != nil {
		return nil, err
	}
	if in == nil {
		in = []*Entry{}
	}
	return in, nil
}

// UpdateStatus applies a direct transition out of PENDIENTE.
func (s *Service) UpdateStatus(ctx context.Context, id int64, ch StatusChange) (*Entry, error) {
	current, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.ValidateChange(current, ch); err != nil {
		s.logger.Warn().Err(err).Int64("entry_id", id).Str("target", string(ch.Status)).Msg("status change rejected")
		return nil, err
	}

	var updated *Entry
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.entries.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Another writer may have moved the entry since the first read.
		if err := s.gate.ValidateChange(locked, ch); err != nil {
			return err
		}
		if err := s.entries.UpdateStatus(ctx, id, ch.Status, observations(ch.Observations)); err != nil {
			return err
		}
		if ConsumesCredit(ch.Status) && locked.ContractID != nil {
			if err := s.consumeCredit(ctx, *locked.ContractID); err != nil {
				return err
			}
		}
		updated, err = s.entries.GetByID(ctx, id)
		return err
	})
	if err != nil {
		s.logFailure(err, id, "update status failed")
		return nil, err
	}

	s.logger.Info().Int64("entry_id", id).Str("estado", string(ch.Status)).Msg("attendance updated")
	s.publish(ctx, websocket.EventUpdated, updated)
	return updated, nil
}

// Allotment returns the credit pack of a contract and how many credits remain.
func (s *Service) Allotment(ctx context.Context, contractID int64) (*AllotmentBalance, error) {
	a, err := s.allotments.GetByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return &AllotmentBalance{Allotment: *a, RemainingCredits: a.Remaining()}, nil
}

func (s *Service) consumeCredit(ctx context.Context, contractID int64) error {
	err := s.allotments.ConsumeCredit(ctx, contractID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug().Int64("contract_id", contractID).Msg("contract has no allotment")
		return nil
	}
	return err
}

// Reschedule closes the entry as REAGENDADO and books the same patient on
// the new date. The allotment is not touched.
func (s *Service) Reschedule(ctx context.Context, id int64, req Reschedule) (*RescheduleResult, error) {
	current, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.ValidateReschedule(current, req); err != nil {
		s.logger.Warn().Err(err).Int64("entry_id", id).Msg("reschedule rejected")
		return nil, err
	}

	var res RescheduleResult
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.entries.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.ValidateReschedule(locked, req); err != nil {
			return err
		}
		obs := observations(req.Observations)
		if err := s.entries.UpdateStatus(ctx, id, StatusReagendado, obs); err != nil {
			return err
		}
		scheduleID, err := s.schedules.GetOrCreateDay(ctx, req.NewDate)
		if err != nil {
			return err
		}
		next := &Entry{
			ScheduleID:        scheduleID,
			Date:              req.NewDate,
			PatientID:         locked.PatientID,
			ContractID:        locked.ContractID,
			Status:            StatusPendiente,
			Observations:      obs,
			RequiresTransport: locked.RequiresTransport,
		}
		if err := s.entries.Create(ctx, next); err != nil {
			return err
		}
		if res.Original, err = s.entries.GetByID(ctx, id); err != nil {
			return err
		}
		res.New, err = s.entries.GetByID(ctx, next.ID)
		return err
	})
	if err != nil {
		s.logFailure(err, id, "reschedule failed")
		return nil, err
	}

	s.logger.Info().
		Int64("entry_id", id).
		Int64("new_entry_id", res.New.ID).
		Str("nueva_fecha", req.NewDate.String()).
		Msg("attendance rescheduled")
	s.publish(ctx, websocket.EventUpdated, res.Original)
	s.publish(ctx, websocket.EventCreated, res.New)
	return &res, nil
}

func (s *Service) logFailure(err error, id int64, msg string) {
	var te *TransitionError
	var ve *ValidationError
	switch {
	case errors.As(err, &te), errors.As(err, &ve), errors.Is(err, ErrNoCredits):
		s.logger.Warn().Err(err).Int64("entry_id", id).Msg(msg)
	case errors.Is(err, ErrNotFound):
	default:
		s.logger.Error().Err(err).Int64("entry_id", id).Msg(msg)
	}
}

func observations(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// publish emits on "cronograma/<fecha>" so day views refresh.
func (s *Service) publish(ctx context.Context, typ string, e *Entry) {
	if e == nil {
		return
	}
	ev := websocket.Event{
		Type:     typ,
		Topic:    "cronograma/" + e.Date.String(),
		Entity:   "cronograma_asistencia_paciente",
		EntityID: strconv.FormatInt(e.ID, 10),
	}
	if raw, err := json.Marshal(e); err == nil {
		ev.Data = raw
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Int64("entry_id", e.ID).Msg("publish event failed")
	}
}
