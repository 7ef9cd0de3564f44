package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-ledger/ledger"
)

func TestScheduler_RunNowFixesDriftAndRefreshes(t *testing.T) {
	// GIVEN: a house flagged occupied with no tenant
	handler := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, handler.loadSharedBuildingScenario(ctx))

	houses, err := handler.Store.ListHouses(ctx, 0)
	require.NoError(t, err)
	var vacant ledger.HouseID
	for _, h := range houses {
		if !h.IsOccupied {
			vacant = h.ID
		}
	}
	require.NotZero(t, vacant)
	require.NoError(t, handler.Store.SetHouseOccupied(ctx, vacant, true))

	rs := NewReconciliationScheduler(handler)

	// WHEN
	fixed := rs.RunNow(ctx)

	// THEN
	assert.Equal(t, 1, fixed)
	assert.Equal(t, "scheduler", handler.State.Snapshot().Source)
	assert.Equal(t, 3, handler.State.Snapshot().OccupiedHouses)
	assert.False(t, rs.LastRun().IsZero())
	assert.Zero(t, rs.RunNow(ctx))
}

func TestScheduler_StartStop(t *testing.T) {
	handler := setupTestHandler(t)
	rs := NewReconciliationScheduler(handler)
	rs.CheckInterval = 10 * time.Millisecond

	rs.Start()
	rs.Start() // no-op
	assert.Eventually(t, func() bool { return !rs.LastRun().IsZero() }, time.Second, 5*time.Millisecond)
	rs.Stop()
	rs.Stop() // no-op

	stopped := rs.LastRun()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, rs.LastRun())
}

func TestScheduler_DisabledDoesNotRun(t *testing.T) {
	handler := setupTestHandler(t)
	rs := NewReconciliationScheduler(handler)
	rs.Enabled = false

	rs.Start()
	defer rs.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rs.LastRun().IsZero())
}
