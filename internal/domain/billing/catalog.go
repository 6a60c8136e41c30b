package billing

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

type PaymentKind int

const (
	PaymentKindUnknown PaymentKind = iota
	PaymentKindFull
	PaymentKindPartial
)

func (k PaymentKind) String() string {
	switch k {
	case PaymentKindFull:
		return "total"
	case PaymentKindPartial:
		return "parcial"
	default:
		return "desconocido"
	}
}

// Ids used by the seed data when tipos_pago is empty.
const (
	DefaultFullTypeID    int64 = 1
	DefaultPartialTypeID int64 = 2
)

// PaymentTypeCatalog resolves tipos_pago ids to payment kinds by name, so
// the rules do not depend on which id the seed data assigned.
type PaymentTypeCatalog struct {
	kinds map[int64]PaymentKind
}

var kindByName = map[string]PaymentKind{
	"total":        PaymentKindFull,
	"pago total":   PaymentKindFull,
	"completo":     PaymentKindFull,
	"abono":        PaymentKindPartial,
	"parcial":      PaymentKindPartial,
	"pago parcial": PaymentKindPartial,
}

// NewPaymentTypeCatalog builds the catalog from reference rows. Rows with
// unrecognised names are known ids of unknown kind. An empty list yields
// the default catalog.
func NewPaymentTypeCatalog(types []PaymentType) *PaymentTypeCatalog {
	if len(types) == 0 {
		return DefaultPaymentTypeCatalog()
	}
	c := &PaymentTypeCatalog{kinds: make(map[int64]PaymentKind, len(types))}
	for _, t := range types {
		c.kinds[t.ID] = kindByName[normalizeName(t.Name)]
	}
	return c
}

func DefaultPaymentTypeCatalog() *PaymentTypeCatalog {
	return &PaymentTypeCatalog{kinds: map[int64]PaymentKind{
		DefaultFullTypeID:    PaymentKindFull,
		DefaultPartialTypeID: PaymentKindPartial,
	}}
}

// Kind returns the kind for id and whether id exists in the catalog.
func (c *PaymentTypeCatalog) Kind(id int64) (PaymentKind, bool) {
	k, ok := c.kinds[id]
	return k, ok
}

func unknownTypeMessage(id int64) string {
	return fmt.Sprintf("El tipo de pago %d no existe", id)
}

func normalizeName(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
