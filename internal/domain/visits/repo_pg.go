package visits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jisazamp/carelink/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

const visitCols = `id_visitadomiciliaria, id_contrato, id_paciente, fecha_visita,
	COALESCE(to_char(hora_visita, 'HH24:MI'), ''), direccion_visita, COALESCE(telefono_visita, ''),
	valor_dia, estado_visita, observaciones, fecha_creacion, fecha_actualizacion`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.ContractID, &v.PatientID, &v.Date, &v.Time, &v.Address, &v.Phone,
		&v.DailyValue, &v.Status, &v.Observations, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visitas_domiciliarias (id_contrato, id_paciente, fecha_visita, hora_visita,
			direccion_visita, telefono_visita, valor_dia, estado_visita, observaciones)
		VALUES ($1, $2, $3, NULLIF($4, '')::time, $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING id_visitadomiciliaria, fecha_creacion, fecha_actualizacion`,
		v.ContractID, v.PatientID, v.Date, v.Time, v.Address, v.Phone, v.DailyValue, v.Status, v.Observations,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert visita: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visitas_domiciliarias WHERE id_visitadomiciliaria = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE visitas_domiciliarias SET id_contrato=$2, fecha_visita=$3, hora_visita=NULLIF($4, '')::time,
			direccion_visita=$5, telefono_visita=NULLIF($6, ''), valor_dia=$7, estado_visita=$8,
			observaciones=$9, fecha_actualizacion=NOW()
		WHERE id_visitadomiciliaria = $1
		RETURNING fecha_actualizacion`,
		v.ID, v.ContractID, v.Date, v.Time, v.Address, v.Phone, v.DailyValue, v.Status, v.Observations,
	).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update visita %d: %w", v.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visitas_domiciliarias WHERE id_visitadomiciliaria = $1`, id)
	if err != nil {
		return fmt.Errorf("delete visita %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error) {
	var (
		where []string
		args  []any
	)
	if f.PatientID > 0 {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("id_paciente = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("estado_visita = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visitas_domiciliarias`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+visitCols+` FROM visitas_domiciliarias`+clause+
		` ORDER BY fecha_visita DESC, id_visitadomiciliaria DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}
