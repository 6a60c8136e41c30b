package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type EntryState int

const (
	EntryDraft EntryState = iota
	EntryConfirmed
)

func (s EntryState) String() string {
	if s == EntryConfirmed {
		return "confirmado"
	}
	return "borrador"
}

type LedgerEntry struct {
	State   EntryState
	Payment Payment
}

// Ledger is the working list of payments for one invoice as seen by an
// operator: confirmed entries came from the server and cannot change,
// drafts are staged locally until a save succeeds.
type Ledger struct {
	entries []LedgerEntry
}

// NewLedger seeds a ledger with persisted payments.
func NewLedger(confirmed []*Payment) *Ledger {
	l := &Ledger{}
	for _, p := range confirmed {
		if p != nil {
			l.entries = append(l.entries, LedgerEntry{State: EntryConfirmed, Payment: *p})
		}
	}
	return l
}

// AddDraft stages p and returns its index.
func (l *Ledger) AddDraft(p Payment) int {
	p.ID = 0
	l.entries = append(l.entries, LedgerEntry{State: EntryDraft, Payment: p})
	return len(l.entries) - 1
}

// UpdateDraft replaces the draft at i.
func (l *Ledger) UpdateDraft(i int, p Payment) error {
	if i < 0 || i >= len(l.entries) {
		return fmt.Errorf("entrada %d fuera de rango", i)
	}
	if l.entries[i].State == EntryConfirmed {
		return ErrPaymentConfirmed
	}
	p.ID = 0
	l.entries[i].Payment = p
	return nil
}

// RemoveDraft drops the draft at i. Confirmed entries must be deleted on
// the server instead.
func (l *Ledger) RemoveDraft(i int) error {
	if i < 0 || i >= len(l.entries) {
		return fmt.Errorf("entrada %d fuera de rango", i)
	}
	if l.entries[i].State == EntryConfirmed {
		return ErrPaymentConfirmed
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return nil
}

func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Drafts() []*Payment    { return l.filter(EntryDraft) }
func (l *Ledger) Confirmed() []*Payment { return l.filter(EntryConfirmed) }
func (l *Ledger) All() []*Payment       { return l.filter(-1) }
func (l *Ledger) HasDrafts() bool       { return len(l.Drafts()) > 0 }

func (l *Ledger) filter(state EntryState) []*Payment {
	var out []*Payment
	for i := range l.entries {
		if state < 0 || l.entries[i].State == state {
			p := l.entries[i].Payment
			out = append(out, &p)
		}
	}
	return out
}

// Confirm promotes every draft to confirmed using the persisted payments
// returned by the server, in order. A count mismatch leaves the ledger
// unchanged.
func (l *Ledger) Confirm(saved []*Payment) error {
	var idx []int
	for i, e := range l.entries {
		if e.State == EntryDraft {
			idx = append(idx, i)
		}
	}
	if len(idx) != len(saved) {
		return fmt.Errorf("se esperaban %d pagos guardados, se recibieron %d", len(idx), len(saved))
	}
	for n := range idx {
		if saved[n] == nil {
			return fmt.Errorf("pago guardado %d vacío", n)
		}
	}
	for n, i := range idx {
		l.entries[i] = LedgerEntry{State: EntryConfirmed, Payment: *saved[n]}
	}
	return nil
}

// ValidateDrafts runs the structural and kind rules on every draft against
// the confirmed payments and the drafts before it. A nil catalog means the
// default one.
func (l *Ledger) ValidateDrafts(total decimal.Decimal, catalog *PaymentTypeCatalog) ValidationResult {
	if catalog == nil {
		catalog = DefaultPaymentTypeCatalog()
	}
	var errs []string
	others := l.Confirmed()
	for n, d := range l.Drafts() {
		res := ValidatePayment(d)
		if res.IsValid {
			if kind, ok := catalog.Kind(d.TypeID); ok {
				res = ValidatePaymentType(kind, d.Value, total, others)
			} else {
				res = newResult([]string{unknownTypeMessage(d.TypeID)})
			}
		}
		for _, e := range res.Errors {
			errs = append(errs, fmt.Sprintf("Pago %d: %s", n+1, e))
		}
		others = append(others, d)
	}
	return newResult(errs)
}
