package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jisazamp/carelink/pkg/caldate"
)

// Invoice states. Only PENDIENTE and PAGADA are derived from payments;
// the others are set by an operator.
const (
	EstadoPendiente = "PENDIENTE"
	EstadoPagada    = "PAGADA"
	EstadoVencida   = "VENCIDA"
	EstadoCancelada = "CANCELADA"
	EstadoAnulada   = "ANULADA"
)

var validInvoiceStatuses = map[string]bool{
	EstadoPendiente: true, EstadoPagada: true, EstadoVencida: true,
	EstadoCancelada: true, EstadoAnulada: true,
}

// IsValidStatus reports whether s is a known invoice state.
func IsValidStatus(s string) bool { return validInvoiceStatuses[s] }

type Invoice struct {
	ID         int64           `json:"id_factura"`
	ContractID int64           `json:"id_contrato"`
	Number     string          `json:"numero_factura,omitempty"`
	IssueDate  caldate.Date    `json:"fecha_emision"`
	DueDate    caldate.Date    `json:"fecha_vencimiento"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Taxes      decimal.Decimal `json:"impuestos"`
	Discounts  decimal.Decimal `json:"descuentos"`
	Total      decimal.Decimal `json:"total_factura"`
	Status     string          `json:"estado_factura"`
	Notes      *string         `json:"observaciones,omitempty"`
	Payments   []*Payment      `json:"pagos"`
	CreatedAt  time.Time       `json:"fecha_creacion"`
	UpdatedAt  time.Time       `json:"fecha_actualizacion"`
}

// RecomputeTotal sets Total to subtotal + taxes - discounts. The stored
// total is never trusted on its own.
func (inv *Invoice) RecomputeTotal() {
	inv.Total = inv.Subtotal.Add(inv.Taxes).Sub(inv.Discounts)
}

// IsClosed reports whether the invoice no longer accepts payments.
func (inv *Invoice) IsClosed() bool {
	return inv.Status == EstadoCancelada || inv.Status == EstadoAnulada
}

type Payment struct {
	ID        int64           `json:"id_pago,omitempty"`
	InvoiceID int64           `json:"id_factura"`
	MethodID  int64           `json:"id_metodo_pago"`
	TypeID    int64           `json:"id_tipo_pago"`
	Date      caldate.Date    `json:"fecha_pago"`
	Value     decimal.Decimal `json:"valor"`
	CreatedAt time.Time       `json:"fecha_creacion,omitempty"`
}

// PaymentType is a row of the tipos_pago reference table.
type PaymentType struct {
	ID   int64  `json:"id_tipo_pago"`
	Name string `json:"nombre"`
}

// PaymentMethod is a row of the metodos_pago reference table.
type PaymentMethod struct {
	ID   int64  `json:"id_metodo_pago"`
	Name string `json:"nombre"`
}

// InvoicePatch carries the fields an operator may change after creation.
// Nil fields are left untouched.
type InvoicePatch struct {
	Status    *string          `json:"estado_factura,omitempty"`
	Discounts *decimal.Decimal `json:"descuentos,omitempty"`
	Notes     *string          `json:"observaciones,omitempty"`
}

type InvoiceFilter struct {
	ContractID int64
	Status     string
	From       caldate.Date
	To         caldate.Date
}

// Summary is the monetary state of an invoice derived from its payments.
type Summary struct {
	InvoiceID      int64           `json:"id_factura"`
	Total          decimal.Decimal `json:"total_factura"`
	TotalPaid      decimal.Decimal `json:"total_pagado"`
	PendingBalance decimal.Decimal `json:"saldo_pendiente"`
	Status         string          `json:"estado_factura"`
	PaymentCount   int             `json:"cantidad_pagos"`
}
