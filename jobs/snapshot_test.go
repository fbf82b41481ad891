package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type captureCall struct {
	warehouseID int64
	takenAt     time.Time
}

type fakeSnapshotStore struct {
	calls []captureCall
	err   error
}

func (s *fakeSnapshotStore) Capture(ctx context.Context, warehouseID int64, takenAt time.Time) (int, error) {
	s.calls = append(s.calls, captureCall{warehouseID: warehouseID, takenAt: takenAt})
	return 3, s.err
}

func TestSnapshotterHandle(t *testing.T) {
	store := &fakeSnapshotStore{}
	snap := NewSnapshotter(store, nil)

	scheduled := time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)
	task, err := NewStockSnapshotTask(StockSnapshotPayload{WarehouseID: 1, ScheduledFor: scheduled})
	require.NoError(t, err)

	require.NoError(t, snap.Handle(context.Background(), task))
	require.Len(t, store.calls, 1)
	require.EqualValues(t, 1, store.calls[0].warehouseID)
	require.True(t, store.calls[0].takenAt.Equal(scheduled))
}

func TestSnapshotterDefaultsTakenAt(t *testing.T) {
	store := &fakeSnapshotStore{}
	snap := NewSnapshotter(store, nil)

	task, err := NewStockSnapshotTask(StockSnapshotPayload{})
	require.NoError(t, err)

	before := time.Now().UTC()
	require.NoError(t, snap.Handle(context.Background(), task))
	require.Len(t, store.calls, 1)
	require.False(t, store.calls[0].takenAt.Before(before))
}

func TestSnapshotterSkipsBadPayload(t *testing.T) {
	store := &fakeSnapshotStore{}
	snap := NewSnapshotter(store, nil)

	task := asynq.NewTask(TaskStockSnapshot, []byte("{not json"))
	err := snap.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, store.calls)
}

func TestSnapshotterPropagatesStoreError(t *testing.T) {
	store := &fakeSnapshotStore{err: errors.New("boom")}
	snap := NewSnapshotter(store, nil)

	payload, err := json.Marshal(StockSnapshotPayload{WarehouseID: 2})
	require.NoError(t, err)
	task := asynq.NewTask(TaskStockSnapshot, payload)
	require.Error(t, snap.Handle(context.Background(), task))
}
