package runlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"revnext-reports/internal/components/chrono"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	clock := chrono.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("AEST", 10*60*60)))
	ledger, err := Open(":memory:", clock)
	require.NoError(t, err)
	defer ledger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	first, err := ledger.Start(ctx, "Parts Price List - 130", "parts_price_list")
	require.NoError(t, err)
	_, err = uuid.Parse(first.Id)
	require.NoError(t, err)

	require.NoError(t, clock.Sleep(ctx, time.Minute))
	require.NoError(t, ledger.Finish(ctx, first, Outcome{
		TaskId:     "TASK-1",
		OutputPath: "reports/Parts_Price_List.csv",
		Bytes:      500,
	}))

	second, err := ledger.Start(ctx, "Parts by Bin Location - 130", "parts_by_bin_location")
	require.NoError(t, err)
	require.NoError(t, ledger.Finish(ctx, second, Outcome{Err: errors.New("timed out waiting for report")}))

	third, err := ledger.Start(ctx, "Parts by Bin Location - 145", "parts_by_bin_location")
	require.NoError(t, err)

	entries, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Equal(t, third.Id, entries[0].Id)
	require.Equal(t, StatusRunning, entries[0].Status)
	require.True(t, entries[0].FinishedAt.IsZero())

	require.Equal(t, StatusFailed, entries[1].Status)
	require.Equal(t, "timed out waiting for report", entries[1].Error)

	require.Equal(t, StatusSucceeded, entries[2].Status)
	require.Equal(t, "TASK-1", entries[2].TaskId)
	require.Equal(t, int64(500), entries[2].Bytes)
	require.Equal(t, time.Minute, entries[2].FinishedAt.Sub(entries[2].StartedAt))

	limited, err := ledger.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestLedgerOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "runs.db")
	ledger, err := Open(path, nil)
	require.NoError(t, err)

	run, err := ledger.Start(context.Background(), "x", "parts_price_list")
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, run.Id, entries[0].Id)
}

func TestNilLedger(t *testing.T) {
	var ledger *Ledger
	run, err := ledger.Start(context.Background(), "x", "y")
	require.NoError(t, err)
	require.NoError(t, ledger.Finish(context.Background(), run, Outcome{}))
	_, err = ledger.Recent(context.Background(), 1)
	require.Error(t, err)
	require.NoError(t, ledger.Close())
}
