package attendance

import (
	"time"

	"github.com/jisazamp/carelink/pkg/caldate"
)

type Status string

const (
	StatusPendiente  Status = "PENDIENTE"
	StatusAsistio    Status = "ASISTIO"
	StatusNoAsistio  Status = "NO_ASISTIO"
	StatusCancelado  Status = "CANCELADO"
	StatusReagendado Status = "REAGENDADO"
)

var terminalStatuses = map[Status]bool{
	StatusAsistio: true, StatusNoAsistio: true, StatusCancelado: true, StatusReagendado: true,
}

func (s Status) Valid() bool { return s == StatusPendiente || terminalStatuses[s] }

// Entry is one patient's slot on a schedule day.
type Entry struct {
	ID                int64        `json:"id_cronograma_paciente"`
	ScheduleID        int64        `json:"id_cronograma"`
	Date              caldate.Date `json:"fecha"`
	PatientID         int64        `json:"id_paciente"`
	FirstNames        string       `json:"nombres"`
	LastNames         string       `json:"apellidos"`
	DocumentNumber    string       `json:"n_documento"`
	ContractID        *int64       `json:"id_contrato"`
	Status            Status       `json:"estado_asistencia"`
	Observations      *string      `json:"observaciones"`
	RequiresTransport bool         `json:"requiere_transporte"`
	CreatedAt         time.Time    `json:"fecha_creacion"`
	UpdatedAt         time.Time    `json:"fecha_actualizacion"`
}

type StatusChange struct {
	Status       Status `json:"estado_asistencia"`
	Observations string `json:"observaciones"`
}

type Reschedule struct {
	Observations string       `json:"observaciones"`
	NewDate      caldate.Date `json:"nueva_fecha"`
}

// RescheduleResult holds the closed source entry and its replacement.
type RescheduleResult struct {
	Original *Entry `json:"original"`
	New      *Entry `json:"nuevo"`
}

// Allotment is the prepaid visit credit pack (tiquetera) of a contract.
type Allotment struct {
	ContractID   int64 `json:"id_contrato"`
	TotalCredits int   `json:"total_creditos"`
	UsedCredits  int   `json:"creditos_usados"`
}

// AllotmentBalance is an allotment as served by the API, with the credits
// still available.
type AllotmentBalance struct {
	Allotment
	RemainingCredits int `json:"creditos_restantes"`
}

func (a Allotment) Remaining() int {
	if r := a.TotalCredits - a.UsedCredits; r > 0 {
		return r
	}
	return 0
}
