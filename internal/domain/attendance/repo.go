package attendance

import (
	"context"

	"github.com/jisazamp/carelink/pkg/caldate"
)

type EntryRepository interface {
	GetByID(ctx context.Context, id int64) (*Entry, error)
	// GetForUpdate locks the row for the rest of the enclosing transaction.
	GetForUpdate(ctx context.Context, id int64) (*Entry, error)
	ListByDate(ctx context.Context, date caldate.Date) ([]*Entry, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Entry, error)
	ListPending(ctx context.Context, from, to caldate.Date) ([]*Entry, error)
	UpdateStatus(ctx context.Context, id int64, status Status, observations *string) error
	Create(ctx context.Context, e *Entry) error
}

type ScheduleRepository interface {
	// GetOrCreateDay returns the id of the schedule for date, creating it
	// when missing.
	GetOrCreateDay(ctx context.Context, date caldate.Date) (int64, error)
}

type AllotmentRepository interface {
	GetByContract(ctx context.Context, contractID int64) (*Allotment, error)
	// ConsumeCredit spends one credit. It returns ErrNoCredits when the
	// allotment is exhausted and ErrNotFound when the contract has none.
	ConsumeCredit(ctx context.Context, contractID int64) error
}
