package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holorecon/pkg/pipeline"
	"holorecon/pkg/result"
	"holorecon/pkg/units"
)

func openTemp(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.StartRun(ctx, Run{ID: "run-1", Title: "holo", Slices: 2, Distances: 3}))
	r, err := c.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "holo", r.Title)
	assert.Equal(t, 2, r.Slices)
	assert.Equal(t, 3, r.Distances)
	assert.True(t, clock.Equal(r.Started))
	assert.True(t, r.Finished.IsZero())
	assert.Empty(t, r.Outcome)

	clock = clock.Add(time.Minute)
	require.NoError(t, c.FinishRun(ctx, "run-1", pipeline.OutcomeCompleted))
	r, err = c.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeCompleted, r.Outcome)
	assert.True(t, clock.Equal(r.Finished))

	assert.Error(t, c.StartRun(ctx, Run{ID: "run-1"}), "duplicate id")
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	_, err := c.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.FinishRun(ctx, "nope", pipeline.OutcomeAborted), ErrNotFound)
}

func TestOutputs(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	require.NoError(t, c.StartRun(ctx, Run{ID: "run-1", Title: "holo"}))

	z1, z2 := units.New(0.25, units.Milli), units.New(100, units.Micro)
	for _, o := range []result.Output{
		{RunID: "run-1", Kind: result.Phase, T: 2, Z: z2, Key: result.Key(result.Phase, z2, 2, result.TypeFloat32), Size: 16},
		{RunID: "run-1", Kind: result.Phase, T: 1, Z: z1, Key: result.Key(result.Phase, z1, 1, result.TypeFloat32), Size: 16},
		{RunID: "run-1", Kind: result.Amplitude, T: 1, Z: z1, Key: result.Key(result.Amplitude, z1, 1, result.TypeFloat32), Size: 16},
		{RunID: "run-1", Kind: result.Phase, T: 1, Z: z2, Key: result.Key(result.Phase, z2, 1, result.TypeFloat32), Size: 16},
	} {
		require.NoError(t, c.RecordOutput(ctx, o))
	}

	got, err := c.Outputs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	var keys []string
	for _, o := range got {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{
		"Amplitude/0.250mm/00001.f32",
		"Phase/100.000um/00001.f32",
		"Phase/100.000um/00002.f32",
		"Phase/0.250mm/00001.f32",
	}, keys)
	assert.True(t, got[0].Z.Equal(z1))
	assert.Equal(t, units.Milli, got[0].Z.Unit)
	assert.Equal(t, "run-1", got[0].RunID)

	err = c.RecordOutput(ctx, got[0])
	assert.ErrorContains(t, err, "Amplitude/0.250mm/00001.f32")

	none, err := c.Outputs(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, c.StartRun(ctx, Run{ID: "run-1", Title: "holo"}))
	require.NoError(t, c.Close())

	c, err = Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.GetRun(ctx, "run-1")
	assert.NoError(t, err)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.ErrorContains(t, err, "unknown driver")

	orig := sqlOpen
	t.Cleanup(func() { sqlOpen = orig })
	sqlOpen = func(string, string) (*sql.DB, error) { return nil, errors.New("boom") }
	_, err = Open(context.Background(), DriverPostgres, "postgres://localhost/holorecon")
	assert.ErrorContains(t, err, "open pgx: boom")
}

func TestRebind(t *testing.T) {
	q := `UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`
	assert.Equal(t, `UPDATE runs SET finished_at = $1, outcome = $2 WHERE id = $3`, rebindDollar(q))

	c := &Catalog{driver: DriverSQLite}
	assert.Equal(t, q, c.rebind(q))
	c.driver = DriverPostgres
	assert.Equal(t, rebindDollar(q), c.rebind(q))
}
