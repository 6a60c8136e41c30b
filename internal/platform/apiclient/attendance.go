package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jisazamp/carelink/internal/domain/attendance"
	"github.com/jisazamp/carelink/pkg/caldate"
)

const attendanceBase = "/api/cronograma_asistencia"

// UpcomingAttendance is retried on network and server failures.
func (c *Client) UpcomingAttendance(ctx context.Context, days int) ([]*attendance.Entry, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("dias", strconv.Itoa(days))
	}
	var out []*attendance.Entry
	if err := c.retrying(ctx, attendanceBase+"/proximos", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AttendanceByDate(ctx context.Context, date caldate.Date) ([]*attendance.Entry, error) {
	q := url.Values{}
	if !date.IsZero() {
		q.Set("fecha", date.String())
	}
	var out []*attendance.Entry
	if err := c.send(ctx, http.MethodGet, attendanceBase, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AttendanceEntry(ctx context.Context, id int64) (*attendance.Entry, error) {
	var e attendance.Entry
	if err := c.send(ctx, http.MethodGet, entryPath(id), nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateAttendanceStatus checks the transition locally against entry before
// sending it.
func (c *Client) UpdateAttendanceStatus(ctx context.Context, entry *attendance.Entry, ch attendance.StatusChange) (*attendance.Entry, error) {
	if err := c.gate.ValidateChange(entry, ch); err != nil {
		return nil, err
	}
	var out attendance.Entry
	if err := c.send(ctx, http.MethodPatch, entryPath(entry.ID)+"/estado", nil, ch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RescheduleAttendance(ctx context.Context, entry *attendance.Entry, req attendance.Reschedule) (*attendance.RescheduleResult, error) {
	if err := c.gate.ValidateReschedule(entry, req); err != nil {
		return nil, err
	}
	var out attendance.RescheduleResult
	if err := c.send(ctx, http.MethodPost, entryPath(entry.ID)+"/reagendar", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ContractAllotment reads the tiquetera balance of a contract.
func (c *Client) ContractAllotment(ctx context.Context, contractID int64) (*attendance.AllotmentBalance, error) {
	var out attendance.AllotmentBalance
	path := "/api/tiqueteras/contrato/" + strconv.FormatInt(contractID, 10)
	if err := c.send(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func entryPath(id int64) string { return attendanceBase + "/paciente/" + strconv.FormatInt(id, 10) }
