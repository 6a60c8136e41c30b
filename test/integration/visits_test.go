//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jisazamp/carelink/internal/domain/visits"
	"github.com/jisazamp/carelink/pkg/caldate"
)

func TestVisits_CRUD(t *testing.T) {
	reset(t)
	ctx := context.Background()
	svc := visits.NewService(visits.NewRepoPG(pool))

	v := &visits.Visit{
		ContractID: ptrInt64(3),
		PatientID:  7,
		Date:       caldate.New(2026, 11, 2),
		Time:       "09:30",
		Address:    "Calle 50 # 20-10",
		DailyValue: decimal.NewFromInt(85000),
	}
	if err := svc.CreateVisit(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.GetVisit(ctx, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Time != "09:30" || got.Status != visits.StatusPendiente || !got.DailyValue.Equal(decimal.NewFromInt(85000)) {
		t.Errorf("unexpected visit %+v", got)
	}

	got.Status = visits.StatusRealizada
	got.Time = ""
	if err := svc.UpdateVisit(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	items, total, err := svc.ListVisits(ctx, visits.Filter{PatientID: 7}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].Status != visits.StatusRealizada || items[0].Time != "" {
		t.Errorf("unexpected list %+v", items)
	}

	if err := svc.DeleteVisit(ctx, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetVisit(ctx, v.ID); !errors.Is(err, visits.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
