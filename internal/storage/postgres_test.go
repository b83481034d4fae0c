package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	p, err := ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	require.NoError(t, p.EnsureSchema(ctx))
	return p
}

func TestPostgres_Upsert(t *testing.T) {
	p := connectTestPostgres(t)
	ctx := context.Background()

	rec := sampleRecord()
	rec.UniqueID = rec.UniqueID + "-" + t.Name()
	t.Cleanup(func() {
		p.pool.Exec(context.Background(), `DELETE FROM insead_events WHERE unique_id = $1`, rec.UniqueID)
	})

	_, err := p.FindByUniqueID(ctx, rec.UniqueID)
	require.ErrorIs(t, err, ErrNotFound)

	id, err := p.Create(ctx, rec)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = p.Create(ctx, rec)
	assert.ErrorIs(t, err, ErrExists, "the unique constraint holds one row per unique id")

	got, err := p.FindByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "2025-06-04", got.Date)
	assert.True(t, got.RegionRelated)
	assert.True(t, rec.AddedAt.Equal(got.AddedAt))

	rec.Date = ""
	rec.Location = "Fontainebleau"
	require.NoError(t, p.Update(ctx, id, rec))

	got, err = p.FindByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Date)
	assert.Equal(t, "Fontainebleau", got.Location)
}

func TestPostgres_UpdateUnknownID(t *testing.T) {
	p := connectTestPostgres(t)

	err := p.Update(context.Background(), "00000000-0000-0000-0000-000000000000", sampleRecord())
	assert.ErrorIs(t, err, ErrNotFound)

	err = p.Update(context.Background(), "not-a-uuid", sampleRecord())
	assert.Error(t, err)
}
