package visits

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jisazamp/carelink/pkg/caldate"
)

const (
	StatusPendiente    = "PENDIENTE"
	StatusRealizada    = "REALIZADA"
	StatusCancelada    = "CANCELADA"
	StatusReprogramada = "REPROGRAMADA"
)

var validStatuses = map[string]bool{
	StatusPendiente: true, StatusRealizada: true, StatusCancelada: true, StatusReprogramada: true,
}

// Visit is a scheduled home visit (visita domiciliaria).
type Visit struct {
	ID           int64           `json:"id_visitadomiciliaria"`
	ContractID   *int64          `json:"id_contrato"`
	PatientID    int64           `json:"id_paciente"`
	Date         caldate.Date    `json:"fecha_visita"`
	Time         string          `json:"hora_visita,omitempty"`
	Address      string          `json:"direccion_visita"`
	Phone        string          `json:"telefono_visita,omitempty"`
	DailyValue   decimal.Decimal `json:"valor_dia"`
	Status       string          `json:"estado_visita"`
	Observations *string         `json:"observaciones"`
	CreatedAt    time.Time       `json:"fecha_creacion"`
	UpdatedAt    time.Time       `json:"fecha_actualizacion"`
}

type Filter struct {
	PatientID int64
	Status    string
}
