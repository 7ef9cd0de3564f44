// Package storetest is a behavioural suite every ledger.TxStore must pass.
// Implementations call Run from their own _test.go files.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/ledger"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) ledger.TxStore

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, ledger.TxStore)
	}{
		{"BuildingCRUD", testBuildingCRUD},
		{"HouseOccupancyIsStoreManaged", testHouseOccupancy},
		{"HouseSnapshots", testHouseSnapshots},
		{"ActiveTenant", testActiveTenant},
		{"BillsAndShares", testBillsAndShares},
		{"MoneyRoundTrip", testMoneyRoundTrip},
		{"CascadeDeleteBuilding", testCascadeDeleteBuilding},
		{"CascadeDeleteHouse", testCascadeDeleteHouse},
		{"CascadeDeleteServiceProvider", testCascadeDeleteProvider},
		{"TxCommit", testTxCommit},
		{"TxRollback", testTxRollback},
		{"TxRollbackOnPanic", testTxRollbackOnPanic},
		{"MissingParents", testMissingParents},
		{"Reset", testReset},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

type fixture struct {
	building ledger.BuildingID
	house    ledger.HouseID
	tenant   ledger.TenantID
	bill     ledger.UtilityBillID
	share    ledger.HouseBillID
	provider ledger.ServiceProviderID
	record   ledger.ServiceRecordID
}

func house(b ledger.BuildingID, number string) ledger.House {
	return ledger.House{
		BuildingID:       b,
		HouseNumber:      number,
		Type:             ledger.HouseSingle,
		RentAmount:       ledger.MustMoney("7500"),
		ElectricityMeter: ledger.MeterShared,
		WaterMeter:       ledger.MeterShared,
	}
}

func tenant(h ledger.HouseID, name string, occupants int, active bool) ledger.Tenant {
	return ledger.Tenant{
		HouseID:    h,
		Name:       name,
		Phone:      "0700123456",
		Occupants:  occupants,
		MoveInDate: ledger.NewDate(2024, 1, 15),
		IsActive:   active,
	}
}

// populate writes one of everything under a single building.
func populate(t *testing.T, s ledger.Store) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error

	f.building, err = s.CreateBuilding(ctx, ledger.Building{Name: "Block A", Address: "Thika Rd"})
	require.NoError(t, err)
	f.house, err = s.CreateHouse(ctx, house(f.building, "A1"))
	require.NoError(t, err)
	f.tenant, err = s.CreateTenant(ctx, tenant(f.house, "Wambui", 2, true))
	require.NoError(t, err)
	f.bill, err = s.CreateUtilityBill(ctx, ledger.UtilityBill{
		BuildingID:  f.building,
		BillType:    ledger.BillWater,
		BillDate:    ledger.NewDate(2024, 2, 28),
		TotalAmount: ledger.MustMoney("1200"),
	})
	require.NoError(t, err)
	f.share, err = s.CreateHouseBill(ctx, ledger.HouseBill{HouseID: f.house, UtilityBillID: f.bill, Amount: ledger.MustMoney("1200")})
	require.NoError(t, err)
	f.provider, err = s.CreateServiceProvider(ctx, ledger.ServiceProvider{Name: "Fundi Joe", Service: "plumbing"})
	require.NoError(t, err)
	f.record, err = s.CreateServiceRecord(ctx, ledger.ServiceRecord{
		HouseID:     f.house,
		ProviderID:  &f.provider,
		Description: "Fix leaking tap",
		Cost:        ledger.MustMoney("850"),
		ServiceDate: ledger.NewDate(2024, 3, 2),
	})
	require.NoError(t, err)
	return f
}

// =============================================================================
// ENTITIES
// =============================================================================

func testBuildingCRUD(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()

	id, err := s.CreateBuilding(ctx, ledger.Building{Name: "Old name", Address: "Mombasa Rd"})
	require.NoError(t, err)

	got, err := s.GetBuilding(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Old name", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	got.Name = "New name"
	require.NoError(t, s.UpdateBuilding(ctx, got))
	got, err = s.GetBuilding(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New name", got.Name)

	all, err := s.ListBuildings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteBuilding(ctx, id))
	_, err = s.GetBuilding(ctx, id)
	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, ledger.IsNotFound(s.DeleteBuilding(ctx, id)))
	assert.True(t, ledger.IsNotFound(s.UpdateBuilding(ctx, got)))
}

func testHouseOccupancy(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	b, err := s.CreateBuilding(ctx, ledger.Building{Name: "B"})
	require.NoError(t, err)

	h := house(b, "1")
	h.IsOccupied = true
	id, err := s.CreateHouse(ctx, h)
	require.NoError(t, err)

	got, err := s.GetHouse(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.IsOccupied, "create ignores IsOccupied")

	require.NoError(t, s.SetHouseOccupied(ctx, id, true))
	got.IsOccupied = false
	got.HouseNumber = "1X"
	require.NoError(t, s.UpdateHouse(ctx, got))

	got, err = s.GetHouse(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.IsOccupied, "update ignores IsOccupied")
	assert.Equal(t, "1X", got.HouseNumber)

	assert.True(t, ledger.IsNotFound(s.SetHouseOccupied(ctx, 424242, true)))
}

func testHouseSnapshots(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	b, err := s.CreateBuilding(ctx, ledger.Building{Name: "B"})
	require.NoError(t, err)
	other, err := s.CreateBuilding(ctx, ledger.Building{Name: "Other"})
	require.NoError(t, err)

	h1, err := s.CreateHouse(ctx, house(b, "1"))
	require.NoError(t, err)
	h2 := house(b, "2")
	h2.ElectricityMeter = ledger.MeterToken
	h2.WaterMeter = ledger.MeterIndividual
	h2ID, err := s.CreateHouse(ctx, h2)
	require.NoError(t, err)
	_, err = s.CreateHouse(ctx, house(other, "X"))
	require.NoError(t, err)

	_, err = s.CreateTenant(ctx, tenant(h1, "Active", 3, true))
	require.NoError(t, err)
	_, err = s.CreateTenant(ctx, tenant(h1, "Gone", 5, false))
	require.NoError(t, err)
	require.NoError(t, s.SetHouseOccupied(ctx, h1, true))

	snaps, err := s.HouseSnapshots(ctx, b)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, h1, snaps[0].ID)
	assert.True(t, snaps[0].IsOccupied)
	assert.Equal(t, 3, snaps[0].ActiveOccupants, "inactive tenants do not count")

	assert.Equal(t, h2ID, snaps[1].ID)
	assert.Equal(t, ledger.MeterToken, snaps[1].ElectricityMeter)
	assert.Equal(t, ledger.MeterIndividual, snaps[1].WaterMeter)
	assert.Zero(t, snaps[1].ActiveOccupants)
}

func testActiveTenant(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	b, err := s.CreateBuilding(ctx, ledger.Building{Name: "B"})
	require.NoError(t, err)
	h, err := s.CreateHouse(ctx, house(b, "1"))
	require.NoError(t, err)

	none, err := s.ActiveTenant(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.CreateTenant(ctx, tenant(h, "Past", 1, false))
	require.NoError(t, err)
	first, err := s.CreateTenant(ctx, tenant(h, "First", 1, true))
	require.NoError(t, err)
	_, err = s.CreateTenant(ctx, tenant(h, "Second", 1, true))
	require.NoError(t, err)

	active, err := s.ActiveTenant(ctx, h)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first, active.ID, "lowest ID wins")

	n, err := s.CountActiveTenants(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	due := 5
	out := ledger.NewDate(2024, 6, 30)
	got, err := s.GetTenant(ctx, first)
	require.NoError(t, err)
	got.Email = "first@example.com"
	got.RentDueDay = &due
	got.MoveOutDate = &out
	got.IsActive = false
	require.NoError(t, s.UpdateTenant(ctx, got))

	got, err = s.GetTenant(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", got.Email)
	require.NotNil(t, got.RentDueDay)
	assert.Equal(t, 5, *got.RentDueDay)
	require.NotNil(t, got.MoveOutDate)
	assert.Equal(t, "2024-06-30", got.MoveOutDate.String())
	assert.Equal(t, "2024-01-15", got.MoveInDate.String())

	n, err = s.CountActiveTenants(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testBillsAndShares(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	f := populate(t, s)

	newer, err := s.CreateUtilityBill(ctx, ledger.UtilityBill{
		BuildingID:  f.building,
		BillType:    ledger.BillElectricity,
		BillDate:    ledger.NewDate(2024, 3, 31),
		TotalAmount: ledger.MustMoney("300"),
	})
	require.NoError(t, err)

	bills, err := s.ListUtilityBills(ctx, f.building)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, newer, bills[0].ID, "newest bill date first")
	assert.Equal(t, "2024-02-28", bills[1].BillDate.String())

	unpaid, err := s.ListUnpaidHouseBills(ctx)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)

	require.NoError(t, s.SetHouseBillPaid(ctx, f.share, true))
	unpaid, err = s.ListUnpaidHouseBills(ctx)
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	byHouse, err := s.ListHouseBillsByHouse(ctx, f.house)
	require.NoError(t, err)
	require.Len(t, byHouse, 1)
	assert.True(t, byHouse[0].IsPaid)

	require.NoError(t, s.SetUtilityBillPaid(ctx, f.bill, true))
	bill, err := s.GetUtilityBill(ctx, f.bill)
	require.NoError(t, err)
	assert.True(t, bill.IsPaid)

	assert.True(t, ledger.IsNotFound(s.SetHouseBillPaid(ctx, 987654, true)))
	assert.True(t, ledger.IsNotFound(s.SetUtilityBillPaid(ctx, 987654, true)))
}

func testMoneyRoundTrip(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	f := populate(t, s)

	id, err := s.CreateHouseBill(ctx, ledger.HouseBill{HouseID: f.house, UtilityBillID: f.bill, Amount: ledger.MustMoney("33.33")})
	require.NoError(t, err)
	hb, err := s.GetHouseBill(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "33.33", ledger.FormatMoney(hb.Amount))

	h, err := s.GetHouse(ctx, f.house)
	require.NoError(t, err)
	assert.Equal(t, "7500.00", ledger.FormatMoney(h.RentAmount))
}

// =============================================================================
// CASCADES
// =============================================================================

func testCascadeDeleteBuilding(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	f := populate(t, s)

	require.NoError(t, s.DeleteBuilding(ctx, f.building))

	_, err := s.GetHouse(ctx, f.house)
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.GetTenant(ctx, f.tenant)
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.GetUtilityBill(ctx, f.bill)
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.GetHouseBill(ctx, f.share)
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.GetServiceRecord(ctx, f.record)
	assert.True(t, ledger.IsNotFound(err))

	_, err = s.GetServiceProvider(ctx, f.provider)
	assert.NoError(t, err, "providers are not owned by a building")
}

func testCascadeDeleteHouse(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	f := populate(t, s)

	require.NoError(t, s.DeleteHouse(ctx, f.house))

	_, err := s.GetTenant(ctx, f.tenant)
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.GetHouseBill(ctx, f.share)
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.GetServiceRecord(ctx, f.record)
	assert.True(t, ledger.IsNotFound(err))

	_, err = s.GetUtilityBill(ctx, f.bill)
	assert.NoError(t, err, "the building-level bill survives")
	assert.True(t, ledger.IsNotFound(s.DeleteHouse(ctx, f.house)))
}

func testCascadeDeleteProvider(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	f := populate(t, s)

	require.NoError(t, s.DeleteServiceProvider(ctx, f.provider))

	_, err := s.GetServiceRecord(ctx, f.record)
	assert.True(t, ledger.IsNotFound(err))
	providers, err := s.ListServiceProviders(ctx)
	require.NoError(t, err)
	assert.Empty(t, providers)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func testTxCommit(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	var id ledger.BuildingID

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		var err error
		id, err = tx.CreateBuilding(ctx, ledger.Building{Name: "Committed"})
		if err != nil {
			return err
		}
		// Nested WithTx joins the outer transaction.
		return tx.(ledger.TxStore).WithTx(ctx, func(inner ledger.Store) error {
			_, err := inner.CreateHouse(ctx, house(id, "N1"))
			return err
		})
	})
	require.NoError(t, err)

	houses, err := s.ListHouses(ctx, id)
	require.NoError(t, err)
	assert.Len(t, houses, 1)
}

func testTxRollback(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	f := populate(t, s)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.CreateBuilding(ctx, ledger.Building{Name: "Rolled back"}); err != nil {
			return err
		}
		if err := tx.SetHouseBillPaid(ctx, f.share, true); err != nil {
			return err
		}
		if err := tx.DeleteHouse(ctx, f.house); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	buildings, err := s.ListBuildings(ctx)
	require.NoError(t, err)
	assert.Len(t, buildings, 1)

	hb, err := s.GetHouseBill(ctx, f.share)
	require.NoError(t, err)
	assert.False(t, hb.IsPaid)

	_, err = s.GetTenant(ctx, f.tenant)
	assert.NoError(t, err, "cascade undone")
}

func testTxRollbackOnPanic(t *testing.T, s ledger.TxStore) {
	// GIVEN: a transaction that writes and then panics half way
	// THEN: the panic reaches the caller, nothing it wrote survives, and
	// the store is usable afterwards
	ctx := context.Background()
	f := populate(t, s)

	assert.PanicsWithValue(t, "apportion failed", func() {
		_ = s.WithTx(ctx, func(tx ledger.Store) error {
			if _, err := tx.CreateUtilityBill(ctx, ledger.UtilityBill{
				BuildingID:  f.building,
				BillType:    ledger.BillElectricity,
				BillDate:    ledger.NewDate(2024, 3, 31),
				TotalAmount: ledger.MustMoney("900"),
			}); err != nil {
				return err
			}
			if err := tx.SetHouseBillPaid(ctx, f.share, true); err != nil {
				return err
			}
			panic("apportion failed")
		})
	})

	bills, err := s.ListUtilityBills(ctx, f.building)
	require.NoError(t, err)
	assert.Len(t, bills, 1, "orphan utility bill left behind")

	hb, err := s.GetHouseBill(ctx, f.share)
	require.NoError(t, err)
	assert.False(t, hb.IsPaid)

	_, err = s.CreateBuilding(ctx, ledger.Building{Name: "After panic"})
	assert.NoError(t, err)
}

// =============================================================================
// REFERENCES / RESET
// =============================================================================

func testMissingParents(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()

	_, err := s.CreateHouse(ctx, house(777, "1"))
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.CreateTenant(ctx, tenant(777, "Nobody", 1, true))
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.CreateUtilityBill(ctx, ledger.UtilityBill{BuildingID: 777, BillType: ledger.BillWater, BillDate: ledger.NewDate(2024, 1, 1), TotalAmount: ledger.MustMoney("1")})
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.CreateHouseBill(ctx, ledger.HouseBill{HouseID: 777, UtilityBillID: 778, Amount: ledger.MustMoney("1")})
	assert.True(t, ledger.IsNotFound(err))
	_, err = s.CreateServiceRecord(ctx, ledger.ServiceRecord{HouseID: 777, Description: "x", ServiceDate: ledger.NewDate(2024, 1, 1)})
	assert.True(t, ledger.IsNotFound(err))
}

func testReset(t *testing.T, s ledger.TxStore) {
	r, ok := s.(ledger.Resetter)
	if !ok {
		t.Skip("store does not support Reset")
	}
	ctx := context.Background()
	populate(t, s)

	require.NoError(t, r.Reset(ctx))

	buildings, err := s.ListBuildings(ctx)
	require.NoError(t, err)
	assert.Empty(t, buildings)
	records, err := s.ListServiceRecords(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
