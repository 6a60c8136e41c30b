package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jisazamp/carelink/internal/platform/cache"
	"github.com/jisazamp/carelink/internal/platform/db"
	"github.com/jisazamp/carelink/internal/platform/websocket"
	"github.com/jisazamp/carelink/pkg/caldate"
)

const (
	cacheKeyPaymentTypes   = "billing:tipos_pago"
	cacheKeyPaymentMethods = "billing:metodos_pago"

	defaultDueDays = 30
)

type Service struct {
	invoices InvoiceRepository
	payments PaymentRepository
	refs     ReferenceRepository
	tx       db.TxRunner

	cache    cache.Store
	cacheTTL time.Duration
	events   websocket.Publisher
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(inv InvoiceRepository, pay PaymentRepository, refs ReferenceRepository, tx db.TxRunner) *Service {
	return &Service{
		invoices: inv,
		payments: pay,
		refs:     refs,
		tx:       tx,
		cache:    cache.NewMemory(),
		cacheTTL: 10 * time.Minute,
		events:   websocket.NopPublisher{},
		logger:   zerolog.Nop(),
		loc:      time.UTC,
		now:      time.Now,
	}
}

// SetCache replaces the reference-data cache.
func (s *Service) SetCache(c cache.Store, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetPublisher attaches the invalidation event publisher.
func (s *Service) SetPublisher(p websocket.Publisher) { s.events = p }

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "billing").Logger()
}

// SetLocation sets the zone used for default issue dates.
func (s *Service) SetLocation(loc *time.Location) { s.loc = loc }

func (s *Service) today() caldate.Date { return caldate.Today(s.now(), s.loc) }

// -- Invoices --

func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	var errs []string
	if inv.ContractID <= 0 {
		errs = append(errs, "id_contrato es requerido")
	}
	errs = append(errs, nonNegative(map[string]decimal.Decimal{
		"subtotal": inv.Subtotal, "impuestos": inv.Taxes, "descuentos": inv.Discounts,
	})...)
	requested := inv.Status
	if requested != "" && !IsValidStatus(requested) {
		errs = append(errs, fmt.Sprintf("estado_factura inválido: %s", requested))
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = s.today()
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDays(defaultDueDays)
	}
	if inv.DueDate.Before(inv.IssueDate) {
		errs = append(errs, "fecha_vencimiento no puede ser anterior a fecha_emision")
	}
	inv.RecomputeTotal()
	if inv.Total.IsNegative() {
		errs = append(errs, "los descuentos no pueden superar subtotal más impuestos")
	}
	if requested == "" {
		inv.Status = deriveStatus(EstadoPendiente, inv.Total)
	} else if IsValidStatus(requested) && !inv.Total.IsNegative() {
		if msg := statusMismatch(requested, inv.Total); msg != "" {
			errs = append(errs, msg)
		}
	}
	if len(errs) > 0 {
		return NewValidationError(errs...)
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		s.logger.Error().Err(err).Int64("contract_id", inv.ContractID).Msg("create invoice failed")
		return err
	}
	inv.Payments = []*Payment{}
	s.publish(ctx, websocket.EventCreated, inv.ID, nil)
	return nil
}

func nonNegative(fields map[string]decimal.Decimal) []string {
	var errs []string
	for _, name := range []string{"subtotal", "impuestos", "descuentos"} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if v.IsNegative() {
			errs = append(errs, name+" no puede ser negativo")
		}
		if !HasMoneyScale(v) {
			errs = append(errs, name+" no puede tener más de dos decimales")
		}
	}
	return errs
}

// GetInvoice returns the invoice with its payments.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pays, err := s.payments.ListByInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Payments = nonNilPayments(pays)
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	if f.Status != "" && !IsValidStatus(f.Status) {
		return nil, 0, NewValidationError(fmt.Sprintf("estado inválido: %s", f.Status))
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, NewValidationError("fecha_hasta no puede ser anterior a fecha_desde")
	}
	return s.invoices.List(ctx, f, limit, offset)
}

func (s *Service) ListInvoicesByContract(ctx context.Context, contractID int64) ([]*Invoice, error) {
	return s.invoices.ListByContract(ctx, contractID)
}

// PatchInvoice applies an operator edit and recomputes the total.
func (s *Service) PatchInvoice(ctx context.Context, id int64, patch InvoicePatch) (*Invoice, error) {
	var updated *Invoice
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		var errs []string
		if patch.Status != nil {
			if !IsValidStatus(*patch.Status) {
				errs = append(errs, fmt.Sprintf("estado_factura inválido: %s", *patch.Status))
			}
			inv.Status = *patch.Status
		}
		if patch.Discounts != nil {
			errs = append(errs, nonNegative(map[string]decimal.Decimal{"descuentos": *patch.Discounts})...)
			inv.Discounts = *patch.Discounts
		}
		if patch.Notes != nil {
			inv.Notes = patch.Notes
		}
		inv.RecomputeTotal()
		if inv.Total.IsNegative() {
			errs = append(errs, "los descuentos no pueden superar subtotal más impuestos")
		}
		if len(errs) > 0 {
			return NewValidationError(errs...)
		}

		pays, err := s.payments.ListByInvoice(ctx, id)
		if err != nil {
			return err
		}
		pending := CalculatePendingBalance(inv.Total, pays)
		if patch.Status != nil {
			if msg := statusMismatch(*patch.Status, pending); msg != "" {
				return NewValidationError(msg)
			}
		}
		inv.Status = deriveStatus(inv.Status, pending)
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, websocket.EventUpdated, id, nil)
	return updated, nil
}

// DeleteInvoice removes the invoice and its payments.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.invoices.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := s.payments.DeleteByInvoice(ctx, id); err != nil {
			return err
		}
		return s.invoices.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info().Int64("invoice_id", id).Msg("invoice deleted")
	s.publish(ctx, websocket.EventDeleted, id, nil)
	return nil
}

// InvoiceSummary loads the invoice and its payments concurrently and
// derives totals and status.
func (s *Service) InvoiceSummary(ctx context.Context, id int64) (*Summary, error) {
	var (
		inv  *Invoice
		pays []*Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inv, err = s.invoices.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		pays, err = s.payments.ListByInvoice(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sum := Summarize(inv, pays)
	sum.Status = deriveStatus(inv.Status, sum.PendingBalance)
	return &sum, nil
}

// deriveStatus keeps operator-set states unless payments settle the
// invoice. CANCELADA and ANULADA never change.
func deriveStatus(current string, pending decimal.Decimal) string {
	switch current {
	case EstadoCancelada, EstadoAnulada:
		return current
	}
	derived := EstadoFactura(pending)
	if derived == EstadoPendiente && current == EstadoVencida {
		return EstadoVencida
	}
	return derived
}

// statusMismatch explains why an operator-requested status cannot be stored
// for the given pending balance. PAGADA and PENDIENTE must agree with the
// balance and a settled invoice cannot be VENCIDA.
func statusMismatch(requested string, pending decimal.Decimal) string {
	if deriveStatus(requested, pending) == requested {
		return ""
	}
	return fmt.Sprintf("estado_factura %s no corresponde al saldo pendiente de %s", requested, FormatCOP(pending))
}

// -- Payments --

func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]*Payment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	pays, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return nonNilPayments(pays), nil
}

// RegisterPayments persists a batch of draft payments atomically. Each draft
// is checked against the confirmed payments and the drafts before it; any
// violation rejects the whole batch.
func (s *Service) RegisterPayments(ctx context.Context, invoiceID int64, drafts []*Payment) ([]*Payment, *Summary, error) {
	if len(drafts) == 0 {
		return nil, nil, NewValidationError("debe registrar al menos un pago")
	}
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		saved   []*Payment
		summary Summary
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.IsClosed() {
			return ErrInvoiceClosed
		}
		existing, err := s.payments.ListByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}

		ledger := NewLedger(existing)
		for _, d := range drafts {
			if d == nil {
				ledger.entries = append(ledger.entries, LedgerEntry{State: EntryDraft})
				continue
			}
			ledger.AddDraft(*d)
		}
		if res := ledger.ValidateDrafts(inv.Total, catalog); !res.IsValid {
			return NewValidationError(res.Errors...)
		}

		for _, d := range ledger.Drafts() {
			d.InvoiceID = invoiceID
			if err := s.payments.Create(ctx, d); err != nil {
				return err
			}
			saved = append(saved, d)
		}

		all := append(nonNilPayments(existing), saved...)
		summary = Summarize(inv, all)
		summary.Status = deriveStatus(inv.Status, summary.PendingBalance)
		if summary.Status != inv.Status {
			return s.invoices.UpdateStatus(ctx, invoiceID, summary.Status)
		}
		return nil
	})
	if err != nil {
		if _, ok := IsValidation(err); ok || errors.Is(err, ErrInvoiceClosed) {
			s.logger.Warn().Err(err).Int64("invoice_id", invoiceID).Msg("payments rejected")
		} else if !errors.Is(err, ErrNotFound) {
			s.logger.Error().Err(err).Int64("invoice_id", invoiceID).Msg("register payments failed")
		}
		return nil, nil, err
	}

	s.logger.Info().
		Int64("invoice_id", invoiceID).
		Int("count", len(saved)).
		Str("estado", summary.Status).
		Msg("payments registered")
	s.publish(ctx, websocket.EventUpdated, invoiceID, summary)
	return saved, &summary, nil
}

// DeletePayment removes a confirmed payment and re-derives the invoice
// status.
func (s *Service) DeletePayment(ctx context.Context, paymentID int64) (*Summary, error) {
	var (
		invoiceID int64
		summary   Summary
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		invoiceID = p.InvoiceID
		inv, err := s.invoices.GetForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if err := s.payments.Delete(ctx, paymentID); err != nil {
			return err
		}
		remaining, err := s.payments.ListByInvoice(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		summary = Summarize(inv, remaining)
		summary.Status = deriveStatus(inv.Status, summary.PendingBalance)
		if summary.Status != inv.Status {
			return s.invoices.UpdateStatus(ctx, inv.ID, summary.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, websocket.EventUpdated, invoiceID, summary)
	return &summary, nil
}

// -- Reference data --

func (s *Service) PaymentTypes(ctx context.Context) ([]PaymentType, error) {
	var types []PaymentType
	if ok, err := s.cache.Get(ctx, cacheKeyPaymentTypes, &types); err == nil && ok {
		return types, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("payment types cache read failed")
	}
	types, err := s.refs.PaymentTypes(ctx)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []PaymentType{}
	}
	if err := s.cache.Set(ctx, cacheKeyPaymentTypes, types, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("payment types cache write failed")
	}
	return types, nil
}

func (s *Service) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	var methods []PaymentMethod
	if ok, err := s.cache.Get(ctx, cacheKeyPaymentMethods, &methods); err == nil && ok {
		return methods, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("payment methods cache read failed")
	}
	methods, err := s.refs.PaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	if methods == nil {
		methods = []PaymentMethod{}
	}
	if err := s.cache.Set(ctx, cacheKeyPaymentMethods, methods, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("payment methods cache write failed")
	}
	return methods, nil
}

// Catalog builds the payment type catalog from the reference table.
func (s *Service) Catalog(ctx context.Context) (*PaymentTypeCatalog, error) {
	types, err := s.PaymentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading payment types: %w", err)
	}
	return NewPaymentTypeCatalog(types), nil
}

func (s *Service) publish(ctx context.Context, typ string, invoiceID int64, data interface{}) {
	ev := websocket.Event{
		Type:     typ,
		Topic:    "factura/" + strconv.FormatInt(invoiceID, 10),
		Entity:   "factura",
		EntityID: strconv.FormatInt(invoiceID, 10),
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Int64("invoice_id", invoiceID).Msg("publish event failed")
	}
}

func nonNilPayments(in []*Payment) []*Payment {
	out := make([]*Payment, 0, len(in))
	for _, p := range in {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
