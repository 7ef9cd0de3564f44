package occupancy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/ledger"
	"github.com/warp/rental-ledger/ledger/store"
	"github.com/warp/rental-ledger/occupancy"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func setup(t *testing.T) (*store.Memory, *occupancy.Tracker, ledger.HouseID, ledger.HouseID) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	b, err := mem.CreateBuilding(ctx, ledger.Building{Name: "Riverside"})
	require.NoError(t, err)

	newHouse := func(number string) ledger.HouseID {
		id, err := mem.CreateHouse(ctx, ledger.House{
			BuildingID:       b,
			HouseNumber:      number,
			Type:             ledger.HouseBedsitter,
			RentAmount:       ledger.MustMoney("5500"),
			ElectricityMeter: ledger.MeterShared,
			WaterMeter:       ledger.MeterShared,
		})
		require.NoError(t, err)
		return id
	}
	return mem, occupancy.NewTracker(mem, nil), newHouse("1A"), newHouse("1B")
}

func tenant(house ledger.HouseID, name string, active bool) ledger.Tenant {
	return ledger.Tenant{
		HouseID:    house,
		Name:       name,
		Phone:      "0711111111",
		Occupants:  2,
		MoveInDate: ledger.NewDate(2024, 5, 1),
		IsActive:   active,
	}
}

func occupied(t *testing.T, mem *store.Memory, id ledger.HouseID) bool {
	t.Helper()
	h, err := mem.GetHouse(context.Background(), id)
	require.NoError(t, err)
	return h.IsOccupied
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateTenant_ActiveOccupiesHouse(t *testing.T) {
	mem, tr, h, _ := setup(t)

	created, err := tr.CreateTenant(context.Background(), tenant(h, "Wanjiru", true))
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.True(t, occupied(t, mem, h))
}

func TestCreateTenant_InactiveLeavesHouseVacant(t *testing.T) {
	mem, tr, h, _ := setup(t)

	_, err := tr.CreateTenant(context.Background(), tenant(h, "Former", false))
	require.NoError(t, err)

	assert.False(t, occupied(t, mem, h))
}

func TestCreateTenant_RejectsSecondActiveTenant(t *testing.T) {
	// GIVEN: house already has an active tenant
	mem, tr, h, _ := setup(t)
	ctx := context.Background()
	first, err := tr.CreateTenant(ctx, tenant(h, "Otieno", true))
	require.NoError(t, err)

	// WHEN: a second active tenant is added
	_, err = tr.CreateTenant(ctx, tenant(h, "Kamau", true))

	// THEN: rejected, nothing written
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))
	var occ *ledger.OccupiedError
	require.ErrorAs(t, err, &occ)
	assert.Equal(t, first.ID, occ.TenantID)

	tenants, err := mem.ListTenants(ctx, h)
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
}

func TestCreateTenant_Validation(t *testing.T) {
	_, tr, h, _ := setup(t)
	ctx := context.Background()

	bad := tenant(h, "", true)
	_, err := tr.CreateTenant(ctx, bad)
	assert.True(t, ledger.IsClientError(err))

	noHouse := tenant(9999, "Ghost", true)
	_, err = tr.CreateTenant(ctx, noHouse)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestUpdateTenant_DeactivatingSoleTenantVacatesHouse(t *testing.T) {
	mem, tr, h, _ := setup(t)
	ctx := context.Background()
	created, err := tr.CreateTenant(ctx, tenant(h, "Achieng", true))
	require.NoError(t, err)

	created.IsActive = false
	_, err = tr.UpdateTenant(ctx, created)
	require.NoError(t, err)

	assert.False(t, occupied(t, mem, h))
}

func TestUpdateTenant_OtherActiveTenantKeepsHouseOccupied(t *testing.T) {
	// GIVEN: legacy data with two active tenants written straight to the store
	mem, tr, h, _ := setup(t)
	ctx := context.Background()
	a, err := mem.CreateTenant(ctx, tenant(h, "A", true))
	require.NoError(t, err)
	_, err = mem.CreateTenant(ctx, tenant(h, "B", true))
	require.NoError(t, err)
	require.NoError(t, mem.SetHouseOccupied(ctx, h, true))

	// WHEN: one is deactivated
	ta, err := mem.GetTenant(ctx, a)
	require.NoError(t, err)
	ta.IsActive = false
	_, err = tr.UpdateTenant(ctx, ta)
	require.NoError(t, err)

	// THEN: the other still occupies the house
	assert.True(t, occupied(t, mem, h))
}

func TestUpdateTenant_MoveRecomputesBothHouses(t *testing.T) {
	mem, tr, from, to := setup(t)
	ctx := context.Background()
	created, err := tr.CreateTenant(ctx, tenant(from, "Mover", true))
	require.NoError(t, err)

	created.HouseID = to
	moved, err := tr.UpdateTenant(ctx, created)
	require.NoError(t, err)

	assert.Equal(t, to, moved.HouseID)
	assert.False(t, occupied(t, mem, from))
	assert.True(t, occupied(t, mem, to))
}

func TestUpdateTenant_MoveIntoOccupiedHouseRejected(t *testing.T) {
	mem, tr, a, b := setup(t)
	ctx := context.Background()
	first, err := tr.CreateTenant(ctx, tenant(a, "First", true))
	require.NoError(t, err)
	_, err = tr.CreateTenant(ctx, tenant(b, "Second", true))
	require.NoError(t, err)

	first.HouseID = b
	_, err = tr.UpdateTenant(ctx, first)
	assert.ErrorIs(t, err, ledger.ErrHouseOccupied)

	// rolled back: first tenant still in house a
	got, err := mem.GetTenant(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got.HouseID)
	assert.True(t, occupied(t, mem, a))
}

func TestMoveOut_SetsDateAndVacates(t *testing.T) {
	mem, tr, h, _ := setup(t)
	ctx := context.Background()
	created, err := tr.CreateTenant(ctx, tenant(h, "Leaving", true))
	require.NoError(t, err)

	out, err := tr.MoveOut(ctx, created.ID, ledger.NewDate(2024, 9, 30))
	require.NoError(t, err)

	assert.False(t, out.IsActive)
	require.NotNil(t, out.MoveOutDate)
	assert.Equal(t, "2024-09-30", out.MoveOutDate.String())
	assert.False(t, occupied(t, mem, h))
}

func TestDeleteTenant_VacatesHouse(t *testing.T) {
	mem, tr, h, _ := setup(t)
	ctx := context.Background()
	created, err := tr.CreateTenant(ctx, tenant(h, "Short stay", true))
	require.NoError(t, err)

	require.NoError(t, tr.DeleteTenant(ctx, created.ID))

	assert.False(t, occupied(t, mem, h))
	assert.True(t, ledger.IsNotFound(tr.DeleteTenant(ctx, created.ID)))
}

// =============================================================================
// RECONCILE
// =============================================================================

func TestReconcile_FixesDriftedFlags(t *testing.T) {
	// GIVEN: one house flagged occupied with no tenant, one with an active
	//        tenant but flagged vacant
	mem, tr, a, b := setup(t)
	ctx := context.Background()
	require.NoError(t, mem.SetHouseOccupied(ctx, a, true))
	_, err := mem.CreateTenant(ctx, tenant(b, "Unflagged", true))
	require.NoError(t, err)

	fixed, err := tr.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, fixed)
	assert.False(t, occupied(t, mem, a))
	assert.True(t, occupied(t, mem, b))

	again, err := tr.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}
