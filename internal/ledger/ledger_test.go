package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAddAndGet(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	rec, err := l.Add(ctx, Record{
		Operation:   "projects/p/operations/OP1",
		Description: "ndvi_mosaic_2020-01-01_2021-01-01",
		Product:     "ndvi",
		Composite:   "mosaic",
		Bucket:      "forest-rasters",
		Prefix:      "lst-ndvi/ndvi_mosaic",
		State:       "PENDING",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.SubmittedAt.IsZero())

	byID, err := l.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Operation, byID.Operation)
	assert.Equal(t, "forest-rasters", byID.Bucket)

	byOp, err := l.Get(ctx, "projects/p/operations/OP1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byOp.ID)

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateState(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	rec, err := l.Add(ctx, Record{Operation: "projects/p/operations/OP2", State: "PENDING"})
	require.NoError(t, err)
	assert.False(t, rec.Finished())

	require.NoError(t, l.UpdateState(ctx, rec.ID, "FAILED", "Export too large"))
	got, err := l.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", got.State)
	assert.Equal(t, "Export too large", got.Error)
	assert.True(t, got.Finished())

	assert.ErrorIs(t, l.UpdateState(ctx, "missing", "FAILED", ""), ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, op := range []string{"OP1", "OP2", "OP3"} {
		_, err := l.Add(ctx, Record{Operation: op, State: "PENDING", SubmittedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "OP3", all[0].Operation)
	assert.Equal(t, "OP1", all[2].Operation)

	two, err := l.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestDuplicateOperationRejected(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	_, err := l.Add(ctx, Record{Operation: "OP1", State: "PENDING"})
	require.NoError(t, err)
	_, err = l.Add(ctx, Record{Operation: "OP1", State: "PENDING"})
	assert.Error(t, err)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	_, err = l.Add(context.Background(), Record{Operation: "OP1", State: "RUNNING"})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	records, err := l.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
