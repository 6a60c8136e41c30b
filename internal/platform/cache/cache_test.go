package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID     int    `json:"id"`
	Nombre string `json:"nombre"`
}

func TestMemory_SetAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "tipos_pago", []item{{1, "Total"}, {2, "Abono"}}, time.Minute))

	var got []item
	found, err := m.Get(ctx, "tipos_pago", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []item{{1, "Total"}, {2, "Abono"}}, got)
}

func TestMemory_Miss(t *testing.T) {
	var got item
	found, err := NewMemory().Get(context.Background(), "nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_Expiration(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", item{ID: 1}, time.Minute))
	now = now.Add(2 * time.Minute)

	var got item
	found, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", item{ID: 1}, 0))
	now = now.Add(24 * time.Hour)

	var got item
	found, _ := m.Get(ctx, "k", &got)
	assert.True(t, found)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	src := []item{{1, "Total"}}
	_ = m.Set(ctx, "k", src, 0)
	src[0].Nombre = "cambiado"

	var got []item
	_, _ = m.Get(ctx, "k", &got)
	assert.Equal(t, "Total", got[0].Nombre)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	s := New(context.Background(), "", zerolog.Nop())
	_, ok := s.(*Memory)
	assert.True(t, ok)

	s = New(context.Background(), "not-a-redis-url", zerolog.Nop())
	_, ok = s.(*Memory)
	assert.True(t, ok)
}

func TestNewRedis_InvalidURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "http://localhost")
	assert.Error(t, err)
}
