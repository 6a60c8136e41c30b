package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ValidationResult struct {
	Errors  []string `json:"errors"`
	IsValid bool     `json:"isValid"`
}

func newResult(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Errors: errs, IsValid: len(errs) == 0}
}

// CalculateTotalPayments sums the value of every non-nil payment.
func CalculateTotalPayments(payments []*Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		if p == nil {
			continue
		}
		sum = sum.Add(p.Value)
	}
	return sum
}

// CalculatePendingBalance is total minus payments, floored at zero.
// Overpayment is not tracked.
func CalculatePendingBalance(total decimal.Decimal, payments []*Payment) decimal.Decimal {
	pending := total.Sub(CalculateTotalPayments(payments))
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// ValidatePayment checks that every required field of p is present.
func ValidatePayment(p *Payment) ValidationResult {
	if p == nil {
		return newResult([]string{"El pago es requerido"})
	}
	var errs []string
	if p.MethodID <= 0 {
		errs = append(errs, "El método de pago es requerido")
	}
	if p.TypeID <= 0 {
		errs = append(errs, "El tipo de pago es requerido")
	}
	if p.Date.IsZero() {
		errs = append(errs, "La fecha de pago es requerida")
	}
	if !p.Value.IsPositive() {
		errs = append(errs, "El valor debe ser mayor a 0")
	} else if !HasMoneyScale(p.Value) {
		errs = append(errs, "El valor no puede tener más de dos decimales")
	}
	return newResult(errs)
}

// MoneyScale is the number of decimal places stored for every amount.
const MoneyScale = 2

// HasMoneyScale reports whether d fits the stored precision without rounding.
func HasMoneyScale(d decimal.Decimal) bool { return d.Equal(d.Round(MoneyScale)) }

// ValidatePaymentType applies the kind-specific amount rule. A full payment
// must leave the invoice exactly paid; a partial one must not exceed the
// total. Unknown kinds are not checked here.
func ValidatePaymentType(kind PaymentKind, value, total decimal.Decimal, others []*Payment) ValidationResult {
	withThis := CalculateTotalPayments(others).Add(value)

	switch kind {
	case PaymentKindFull:
		if !withThis.Equal(total) {
			return newResult([]string{fmt.Sprintf(
				"El pago total debe ser exactamente %s (pagos registrados más este pago suman %s)",
				FormatCOP(total), FormatCOP(withThis))})
		}
	case PaymentKindPartial:
		if withThis.GreaterThan(total) {
			return newResult([]string{fmt.Sprintf(
				"El total de pagos (%s) excede el total de la factura (%s)", FormatCOP(withThis), FormatCOP(total))})
		}
	}
	return newResult(nil)
}

// EstadoFactura derives the payment state from the pending balance.
func EstadoFactura(pending decimal.Decimal) string {
	if pending.IsZero() {
		return EstadoPagada
	}
	return EstadoPendiente
}

// Summarize derives the monetary summary of inv from payments.
func Summarize(inv *Invoice, payments []*Payment) Summary {
	pending := CalculatePendingBalance(inv.Total, payments)
	count := 0
	for _, p := range payments {
		if p != nil {
			count++
		}
	}
	return Summary{
		InvoiceID:      inv.ID,
		Total:          inv.Total,
		TotalPaid:      CalculateTotalPayments(payments),
		PendingBalance: pending,
		Status:         EstadoFactura(pending),
		PaymentCount:   count,
	}
}

// FormatCOP renders d as Colombian pesos: "$1.234.567" or "$1.234,5".
func FormatCOP(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.String()
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return sign + "$" + b.String()
}
