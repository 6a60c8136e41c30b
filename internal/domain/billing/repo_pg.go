package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jisazamp/carelink/internal/platform/db"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

const invoiceCols = `id_factura, id_contrato, COALESCE(numero_factura, ''), fecha_emision, fecha_vencimiento,
	subtotal, impuestos, descuentos, total_factura, estado_factura, observaciones,
	fecha_creacion, fecha_actualizacion`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.ContractID, &inv.Number, &inv.IssueDate, &inv.DueDate,
		&inv.Subtotal, &inv.Taxes, &inv.Discounts, &inv.Total, &inv.Status, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO facturas (id_contrato, numero_factura, fecha_emision, fecha_vencimiento,
			subtotal, impuestos, descuentos, total_factura, estado_factura, observaciones)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id_factura, fecha_creacion, fecha_actualizacion`,
		inv.ContractID, inv.Number, inv.IssueDate, inv.DueDate,
		inv.Subtotal, inv.Taxes, inv.Discounts, inv.Total, inv.Status, inv.Notes,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert factura: %w", err)
	}
	if inv.Number != "" {
		return nil
	}
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE facturas SET numero_factura = 'FAC-' || lpad(id_factura::text, 6, '0')
		WHERE id_factura = $1 RETURNING numero_factura`, inv.ID).Scan(&inv.Number)
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM facturas WHERE id_factura = $1`, id))
}

func (r *invoiceRepoPG) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM facturas WHERE id_factura = $1 FOR UPDATE`, id))
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE facturas SET subtotal=$2, impuestos=$3, descuentos=$4, total_factura=$5,
			estado_factura=$6, observaciones=$7, fecha_vencimiento=$8, fecha_actualizacion=NOW()
		WHERE id_factura = $1`,
		inv.ID, inv.Subtotal, inv.Taxes, inv.Discounts, inv.Total, inv.Status, inv.Notes, inv.DueDate)
	if err != nil {
		return fmt.Errorf("update factura %d: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepoPG) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE facturas SET estado_factura=$2, fecha_actualizacion=NOW() WHERE id_factura = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update estado factura %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM facturas WHERE id_factura = $1`, id)
	if err != nil {
		return fmt.Errorf("delete factura %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepoPG) List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	where, args := invoiceWhere(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM facturas`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count facturas: %w", err)
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM facturas%s ORDER BY fecha_emision DESC, id_factura DESC LIMIT $%d OFFSET $%d`,
		invoiceCols, where, len(args)-1, len(args))
	items, err := r.query(ctx, q, args...)
	return items, total, err
}

// invoiceWhere builds the WHERE clause for f with positional arguments.
func invoiceWhere(f InvoiceFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ContractID > 0 {
		add("id_contrato = $%d", f.ContractID)
	}
	if f.Status != "" {
		add("estado_factura = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("fecha_emision >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("fecha_emision <= $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *invoiceRepoPG) ListByContract(ctx context.Context, contractID int64) ([]*Invoice, error) {
	return r.query(ctx, `SELECT `+invoiceCols+` FROM facturas WHERE id_contrato = $1 ORDER BY fecha_emision DESC`, contractID)
}

func (r *invoiceRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query facturas: %w", err)
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

const paymentCols = `id_pago, id_factura, id_metodo_pago, id_tipo_pago, fecha_pago, valor, fecha_creacion`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	if err := row.Scan(&p.ID, &p.InvoiceID, &p.MethodID, &p.TypeID, &p.Date, &p.Value, &p.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pagos (id_factura, id_metodo_pago, id_tipo_pago, fecha_pago, valor)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id_pago, fecha_creacion`,
		p.InvoiceID, p.MethodID, p.TypeID, p.Date, p.Value,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pago: %w", err)
	}
	return nil
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id int64) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM pagos WHERE id_pago = $1`, id))
}

func (r *paymentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM pagos WHERE id_pago = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pago %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *paymentRepoPG) DeleteByInvoice(ctx context.Context, invoiceID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM pagos WHERE id_factura = $1`, invoiceID)
	return err
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID int64) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM pagos WHERE id_factura = $1 ORDER BY fecha_pago, id_pago`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query pagos: %w", err)
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// =========== Reference Repository ===========

type referenceRepoPG struct{ pool *pgxpool.Pool }

func NewReferenceRepoPG(pool *pgxpool.Pool) ReferenceRepository { return &referenceRepoPG{pool: pool} }

func (r *referenceRepoPG) PaymentTypes(ctx context.Context) ([]PaymentType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id_tipo_pago, nombre FROM tipos_pago ORDER BY id_tipo_pago`)
	if err != nil {
		return nil, fmt.Errorf("query tipos_pago: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentType, error) {
		var t PaymentType
		err := row.Scan(&t.ID, &t.Name)
		return t, err
	})
}

func (r *referenceRepoPG) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := r.pool.Query(ctx, `SELECT id_metodo_pago, nombre FROM metodos_pago ORDER BY id_metodo_pago`)
	if err != nil {
		return nil, fmt.Errorf("query metodos_pago: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentMethod, error) {
		var m PaymentMethod
		err := row.Scan(&m.ID, &m.Name)
		return m, err
	})
}
