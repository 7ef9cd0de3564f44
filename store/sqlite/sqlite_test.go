package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/ledger"
	"github.com/warp/rental-ledger/ledger/storetest"
	"github.com/warp/rental-ledger/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ledger.TxStore {
		return newStore(t)
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: a file-backed database with one bill
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	b, err := s.CreateBuilding(ctx, ledger.Building{Name: "Persistent"})
	require.NoError(t, err)
	bill, err := s.CreateUtilityBill(ctx, ledger.UtilityBill{
		BuildingID:  b,
		BillType:    ledger.BillElectricity,
		BillDate:    ledger.NewDate(2024, 4, 30),
		TotalAmount: ledger.MustMoney("4321.09"),
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// WHEN: reopened (migration runs again)
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN
	got, err := s.GetUtilityBill(ctx, bill)
	require.NoError(t, err)
	assert.Equal(t, "4321.09", ledger.FormatMoney(got.TotalAmount))
	assert.Equal(t, "2024-04-30", got.BillDate.String())
}

func TestSQLite_RejectsUnknownBillType(t *testing.T) {
	// The CHECK constraint backs up validation done in the billing layer.
	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBuilding(ctx, ledger.Building{Name: "B"})
	require.NoError(t, err)

	_, err = s.CreateUtilityBill(ctx, ledger.UtilityBill{
		BuildingID:  b,
		BillType:    "gas",
		BillDate:    ledger.NewDate(2024, 1, 1),
		TotalAmount: ledger.MustMoney("10"),
	})
	assert.Error(t, err)
}

func TestSQLite_CorruptColumnsFailTheRead(t *testing.T) {
	// GIVEN: a bill and its share whose stored text was damaged outside the store
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	b, err := s.CreateBuilding(ctx, ledger.Building{Name: "Damaged"})
	require.NoError(t, err)
	h, err := s.CreateHouse(ctx, ledger.House{
		BuildingID:       b,
		HouseNumber:      "D1",
		Type:             ledger.HouseSingle,
		RentAmount:       ledger.MustMoney("6000"),
		ElectricityMeter: ledger.MeterShared,
		WaterMeter:       ledger.MeterShared,
	})
	require.NoError(t, err)
	bill, err := s.CreateUtilityBill(ctx, ledger.UtilityBill{
		BuildingID:  b,
		BillType:    ledger.BillWater,
		BillDate:    ledger.NewDate(2024, 5, 31),
		TotalAmount: ledger.MustMoney("800"),
	})
	require.NoError(t, err)
	_, err = s.CreateHouseBill(ctx, ledger.HouseBill{HouseID: h, UtilityBillID: bill, Amount: ledger.MustMoney("800")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE house_bills SET amount = '8OO.00'")
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE utility_bills SET bill_date = '31/05/2024'")
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// WHEN/THEN: reads report the damage instead of returning zero values
	_, err = s.ListUnpaidHouseBills(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "house_bills.amount")

	_, err = s.GetUtilityBill(ctx, bill)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "utility_bills.bill_date")
	assert.False(t, ledger.IsNotFound(err))
}
