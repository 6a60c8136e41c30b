//go:build integration

// Package integration runs the PostgreSQL repositories and services against a
// real database. Run with: go test -tags integration ./test/integration/...
package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jisazamp/carelink/internal/platform/db"
	"github.com/jisazamp/carelink/migrations"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr, cleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping integration tests: %v\n", err)
		os.Exit(0)
	}

	pool, err = db.NewPool(ctx, connStr, 5, 1)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// reset empties every domain table. Reference rows in tipos_pago and
// metodos_pago are kept.
func reset(t *testing.T) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE pagos, facturas,
		cronograma_asistencia_pacientes, cronograma_asistencia, tiqueteras,
		visitas_domiciliarias, pacientes RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
}

func createPatient(t *testing.T, first, last, doc string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO pacientes (nombres, apellidos, n_documento) VALUES ($1, $2, $3) RETURNING id_paciente`,
		first, last, doc).Scan(&id)
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return id
}

func ptrInt64(v int64) *int64 { return &v }
