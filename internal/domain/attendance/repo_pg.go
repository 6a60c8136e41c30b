package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jisazamp/carelink/internal/platform/db"
	"github.com/jisazamp/carelink/pkg/caldate"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Entry Repository ===========

type entryRepoPG struct{ pool *pgxpool.Pool }

func NewEntryRepoPG(pool *pgxpool.Pool) EntryRepository { return &entryRepoPG{pool: pool} }

func (r *entryRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

const entrySelect = `SELECT cp.id_cronograma_paciente, cp.id_cronograma, ca.fecha, cp.id_paciente,
	COALESCE(p.nombres, ''), COALESCE(p.apellidos, ''), COALESCE(p.n_documento, ''),
	cp.id_contrato, cp.estado_asistencia, cp.observaciones, cp.requiere_transporte,
	cp.fecha_creacion, cp.fecha_actualizacion
	FROM cronograma_asistencia_pacientes cp
	JOIN cronograma_asistencia ca ON ca.id_cronograma = cp.id_cronograma
	LEFT JOIN pacientes p ON p.id_paciente = cp.id_paciente`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.ScheduleID, &e.Date, &e.PatientID,
		&e.FirstNames, &e.LastNames, &e.DocumentNumber,
		&e.ContractID, &e.Status, &e.Observations, &e.RequiresTransport,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *entryRepoPG) query(ctx context.Context, sql string, args ...any) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *entryRepoPG) GetByID(ctx context.Context, id int64) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx, entrySelect+` WHERE cp.id_cronograma_paciente = $1`, id))
}

func (r *entryRepoPG) GetForUpdate(ctx context.Context, id int64) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		entrySelect+` WHERE cp.id_cronograma_paciente = $1 FOR UPDATE OF cp`, id))
}

func (r *entryRepoPG) ListByDate(ctx context.Context, date caldate.Date) ([]*Entry, error) {
	return r.query(ctx, entrySelect+` WHERE ca.fecha = $1 ORDER BY p.apellidos, p.nombres, cp.id_cronograma_paciente`, date)
}

func (r *entryRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Entry, error) {
	return r.query(ctx, entrySelect+` WHERE cp.id_paciente = $1 ORDER BY ca.fecha DESC, cp.id_cronograma_paciente`, patientID)
}

func (r *entryRepoPG) ListPending(ctx context.Context, from, to caldate.Date) ([]*Entry, error) {
	return r.query(ctx, entrySelect+`
		WHERE cp.estado_asistencia = $1 AND ca.fecha BETWEEN $2 AND $3
		ORDER BY ca.fecha, cp.id_cronograma_paciente`, StatusPendiente, from, to)
}

func (r *entryRepoPG) UpdateStatus(ctx context.Context, id int64, status Status, observations *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cronograma_asistencia_pacientes
		SET estado_asistencia = $2, observaciones = COALESCE($3, observaciones), fecha_actualizacion = NOW()
		WHERE id_cronograma_paciente = $1`, id, status, observations)
	if err != nil {
		return fmt.Errorf("update asistencia %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *entryRepoPG) Create(ctx context.Context, e *Entry) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO cronograma_asistencia_pacientes
			(id_cronograma, id_paciente, id_contrato, estado_asistencia, observaciones, requiere_transporte)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id_cronograma_paciente, fecha_creacion, fecha_actualizacion`,
		e.ScheduleID, e.PatientID, e.ContractID, e.Status, e.Observations, e.RequiresTransport,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert asistencia: %w", err)
	}
	return nil
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) GetOrCreateDay(ctx context.Context, date caldate.Date) (int64, error) {
	var id int64
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO cronograma_asistencia (fecha) VALUES ($1)
		ON CONFLICT (fecha) DO UPDATE SET fecha = EXCLUDED.fecha
		RETURNING id_cronograma`, date).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("cronograma %s: %w", date, err)
	}
	return id, nil
}

// =========== Allotment Repository ===========

type allotmentRepoPG struct{ pool *pgxpool.Pool }

func NewAllotmentRepoPG(pool *pgxpool.Pool) AllotmentRepository { return &allotmentRepoPG{pool: pool} }

func (r *allotmentRepoPG) GetByContract(ctx context.Context, contractID int64) (*Allotment, error) {
	var a Allotment
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id_contrato, total_creditos, creditos_usados FROM tiqueteras WHERE id_contrato = $1`,
		contractID).Scan(&a.ContractID, &a.TotalCredits, &a.UsedCredits)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *allotmentRepoPG) ConsumeCredit(ctx context.Context, contractID int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE tiqueteras SET creditos_usados = creditos_usados + 1
		WHERE id_contrato = $1 AND creditos_usados < total_creditos`, contractID)
	if err != nil {
		return fmt.Errorf("consume credit contrato %d: %w", contractID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByContract(ctx, contractID); err != nil {
		return err
	}
	return ErrNoCredits
}
