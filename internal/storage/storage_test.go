package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bistro/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	_, err := s.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyCart, `[]`))
	value, err := s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	require.NoError(t, s.Delete(ctx, KeyCart))
	_, err = s.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute).WithClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, KeyCSRFToken, "tok"))

	now = now.Add(59 * time.Second)
	value, err := s.Get(ctx, KeyCSRFToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", value)

	now = now.Add(time.Second)
	_, err = s.Get(ctx, KeyCSRFToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDBStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewDBStore(db)

	_, err = s.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyCart, `[{"itemId":"a"}]`))
	require.NoError(t, s.Set(ctx, KeyCart, `[{"itemId":"b"}]`))

	value, err := s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[{"itemId":"b"}]`, value)

	require.NoError(t, s.Delete(ctx, KeyCart))
	_, err = s.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_RejectsUnknownDialect(t *testing.T) {
	_, err := database.Open("mysql", "whatever")
	assert.Error(t, err)
}
