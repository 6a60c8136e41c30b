package billing

import "context"

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id int64) (*Invoice, error)
	// GetForUpdate locks the invoice row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int64) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error)
	ListByContract(ctx context.Context, contractID int64) ([]*Invoice, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	Delete(ctx context.Context, id int64) error
	DeleteByInvoice(ctx context.Context, invoiceID int64) error
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*Payment, error)
}

type ReferenceRepository interface {
	PaymentTypes(ctx context.Context) ([]PaymentType, error)
	PaymentMethods(ctx context.Context) ([]PaymentMethod, error)
}
