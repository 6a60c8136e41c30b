package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jisazamp/carelink/internal/domain/billing"
	"github.com/jisazamp/carelink/internal/domain/visits"
)

func (c *Client) CreateVisit(ctx context.Context, v *visits.Visit) (*visits.Visit, error) {
	var out visits.Visit
	if err := c.send(ctx, http.MethodPost, "/api/visitas_domiciliarias", nil, v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetVisit(ctx context.Context, id int64) (*visits.Visit, error) {
	var out visits.Visit
	if err := c.send(ctx, http.MethodGet, "/api/visitas_domiciliarias/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type WorkflowStep int

const (
	StepVisit WorkflowStep = iota
	StepInvoice
	StepPayments
	StepDone
)

func (s WorkflowStep) String() string {
	switch s {
	case StepVisit:
		return "visita"
	case StepInvoice:
		return "factura"
	case StepPayments:
		return "pagos"
	case StepDone:
		return "completo"
	}
	return "desconocido"
}

// WorkflowResult records how far CreateVisitWithBilling got. Step is the step
// that did not complete, or StepDone when every step succeeded.
type WorkflowResult struct {
	Visit   *visits.Visit
	Invoice *billing.Invoice
	Summary *billing.Summary
	Step    WorkflowStep
	Err     error
	Message string
}

func (r *WorkflowResult) OK() bool { return r.Step == StepDone }

// CreateVisitWithBilling creates the visit, then its invoice, then the given
// payments when any. Earlier steps are not undone when a later one fails;
// Message tells the operator what is still missing.
func (c *Client) CreateVisitWithBilling(ctx context.Context, v *visits.Visit, inv *billing.Invoice, payments []*billing.Payment) (*WorkflowResult, error) {
	res := &WorkflowResult{Step: StepVisit}

	visit, err := c.CreateVisit(ctx, v)
	if err != nil {
		res.Err = err
		res.Message = "No se pudo crear la visita: " + UserMessage(err)
		return res, err
	}
	res.Visit = visit
	res.Step = StepInvoice

	if inv.ContractID == 0 && visit.ContractID != nil {
		inv.ContractID = *visit.ContractID
	}
	if inv.Subtotal.IsZero() {
		inv.Subtotal = visit.DailyValue
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = visit.Date
	}
	created, err := c.CreateInvoice(ctx, inv)
	if err != nil {
		res.Err = err
		res.Message = fmt.Sprintf("La visita #%d fue creada, pero la factura no: %s. Cree la factura manualmente.",
			visit.ID, UserMessage(err))
		return res, err
	}
	res.Invoice = created

	if len(payments) == 0 {
		res.Step = StepDone
		res.Message = fmt.Sprintf("Visita #%d y factura %s creadas.", visit.ID, created.Number)
		return res, nil
	}

	res.Step = StepPayments
	ledger := billing.NewLedger(nil)
	for _, p := range payments {
		ledger.AddDraft(*p)
	}
	summary, err := c.RegisterPayments(ctx, created, ledger)
	if err != nil {
		res.Err = err
		res.Message = fmt.Sprintf("La visita #%d y la factura %s fueron creadas, pero los pagos no se registraron: %s. Agréguelos manualmente en la factura.",
			visit.ID, created.Number, UserMessage(err))
		return res, err
	}
	res.Summary = summary
	res.Step = StepDone
	res.Message = fmt.Sprintf("Visita #%d, factura %s y %d pago(s) registrados.", visit.ID, created.Number, len(payments))
	return res, nil
}
