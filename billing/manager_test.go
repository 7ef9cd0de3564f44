package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/apportion"
	"github.com/warp/rental-ledger/billing"
	"github.com/warp/rental-ledger/ledger"
	"github.com/warp/rental-ledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store    *store.Memory
	mgr      *billing.Manager
	building ledger.BuildingID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	id, err := mem.CreateBuilding(context.Background(), ledger.Building{Name: "Acacia Court", Address: "Ngong Rd"})
	require.NoError(t, err)
	return &fixture{store: mem, mgr: billing.NewManager(mem, nil), building: id}
}

// addHouse creates a house with the given meter setup; occupants > 0 adds
// an active tenant and marks the house occupied.
func (f *fixture) addHouse(t *testing.T, number string, meter ledger.MeterType, occupants int) ledger.HouseID {
	t.Helper()
	ctx := context.Background()
	id, err := f.store.CreateHouse(ctx, ledger.House{
		BuildingID:       f.building,
		HouseNumber:      number,
		Type:             ledger.HouseSingle,
		RentAmount:       ledger.MustMoney("8000"),
		ElectricityMeter: meter,
		WaterMeter:       meter,
	})
	require.NoError(t, err)
	if occupants > 0 {
		_, err := f.store.CreateTenant(ctx, ledger.Tenant{
			HouseID:    id,
			Name:       "Tenant " + number,
			Phone:      "0700000000",
			Occupants:  occupants,
			MoveInDate: ledger.NewDate(2024, 1, 1),
			IsActive:   true,
		})
		require.NoError(t, err)
		require.NoError(t, f.store.SetHouseOccupied(ctx, id, true))
	}
	return id
}

func (f *fixture) createBill(t *testing.T, billType ledger.BillType, total string) billing.CreateBillResult {
	t.Helper()
	res, err := f.mgr.CreateBill(context.Background(), billing.CreateBillInput{
		BuildingID: f.building,
		BillType:   billType,
		BillDate:   ledger.NewDate(2024, 3, 31),
		Total:      ledger.MustMoney(total),
	})
	require.NoError(t, err)
	return res
}

func shareOf(res billing.CreateBillResult, house ledger.HouseID) string {
	for _, hb := range res.HouseBills {
		if hb.HouseID == house {
			return ledger.FormatMoney(hb.Amount)
		}
	}
	return ""
}

// =============================================================================
// CREATE BILL
// =============================================================================

func TestCreateBill_ElectricityPersistsShares(t *testing.T) {
	// GIVEN: 3 occupied shared-meter houses and 1 token-metered house
	f := newFixture(t)
	a := f.addHouse(t, "A1", ledger.MeterShared, 1)
	b := f.addHouse(t, "A2", ledger.MeterShared, 4)
	c := f.addHouse(t, "A3", ledger.MeterShared, 2)
	token := f.addHouse(t, "A4", ledger.MeterToken, 2)

	// WHEN: a 300 electricity bill is created
	res := f.createBill(t, ledger.BillElectricity, "300")

	// THEN: 3 unpaid shares of 100.00, the token house excluded
	assert.False(t, res.Bill.IsPaid)
	assert.Equal(t, apportion.MethodEqual, res.Method)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.HouseBills, 3)
	for _, h := range []ledger.HouseID{a, b, c} {
		assert.Equal(t, "100.00", shareOf(res, h))
	}
	assert.Contains(t, res.Excluded, token)

	stored, err := f.store.ListHouseBillsByUtilityBill(context.Background(), res.Bill.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	for _, hb := range stored {
		assert.False(t, hb.IsPaid)
	}
}

func TestCreateBill_WaterWeightedByOccupants(t *testing.T) {
	f := newFixture(t)
	a := f.addHouse(t, "A", ledger.MeterShared, 2)
	b := f.addHouse(t, "B", ledger.MeterShared, 3)

	res := f.createBill(t, ledger.BillWater, "100")

	assert.Equal(t, "40.00", shareOf(res, a))
	assert.Equal(t, "60.00", shareOf(res, b))
}

func TestCreateBill_UnattributedIsRecordedWithWarning(t *testing.T) {
	// GIVEN: a building whose only house is vacant
	f := newFixture(t)
	f.addHouse(t, "V1", ledger.MeterShared, 0)

	// WHEN
	res := f.createBill(t, ledger.BillElectricity, "500")

	// THEN: the bill exists, no shares, warning surfaced
	assert.True(t, res.Unattributed())
	assert.Contains(t, res.Warnings, billing.WarnUnattributed)
	assert.Empty(t, res.HouseBills)

	bills, err := f.store.ListUtilityBills(context.Background(), f.building)
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}

func TestCreateBill_ValidationBeforeWrite(t *testing.T) {
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	ctx := context.Background()

	cases := []struct {
		name string
		in   billing.CreateBillInput
		want error
	}{
		{"zero total", billing.CreateBillInput{BuildingID: f.building, BillType: ledger.BillWater, BillDate: ledger.NewDate(2024, 1, 1), Total: ledger.MustMoney("0")}, ledger.ErrNonPositiveAmount},
		{"negative total", billing.CreateBillInput{BuildingID: f.building, BillType: ledger.BillWater, BillDate: ledger.NewDate(2024, 1, 1), Total: ledger.MustMoney("-1")}, ledger.ErrNonPositiveAmount},
		{"unknown type", billing.CreateBillInput{BuildingID: f.building, BillType: "gas", BillDate: ledger.NewDate(2024, 1, 1), Total: ledger.MustMoney("10")}, ledger.ErrUnknownBillType},
		{"missing building", billing.CreateBillInput{BuildingID: 9999, BillType: ledger.BillWater, BillDate: ledger.NewDate(2024, 1, 1), Total: ledger.MustMoney("10")}, ledger.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.mgr.CreateBill(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	bills, err := f.store.ListUtilityBills(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, bills, "no bill may be written when input is rejected")
}

// failingHouseBills fails every CreateHouseBill issued inside a transaction.
type failingHouseBills struct {
	ledger.TxStore
}

func (f failingHouseBills) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return f.TxStore.WithTx(ctx, func(tx ledger.Store) error {
		return fn(houseBillFailer{tx})
	})
}

type houseBillFailer struct {
	ledger.Store
}

func (houseBillFailer) CreateHouseBill(context.Context, ledger.HouseBill) (ledger.HouseBillID, error) {
	return 0, errors.New("disk full")
}

func TestCreateBill_RollsBackOnPartialFailure(t *testing.T) {
	// GIVEN: a store that fails while writing house bills
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	mgr := billing.NewManager(failingHouseBills{f.store}, nil)

	// WHEN
	_, err := mgr.CreateBill(context.Background(), billing.CreateBillInput{
		BuildingID: f.building,
		BillType:   ledger.BillElectricity,
		BillDate:   ledger.NewDate(2024, 2, 1),
		Total:      ledger.MustMoney("100"),
	})

	// THEN: the utility bill written in step 1 is gone
	require.Error(t, err)
	bills, err := f.store.ListUtilityBills(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

// =============================================================================
// PAYMENT STATE
// =============================================================================

func TestMarkHouseBillPaid_CascadesOnlyWhenAllPaid(t *testing.T) {
	// GIVEN: a bill with 2 house bills
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	f.addHouse(t, "B", ledger.MeterShared, 1)
	res := f.createBill(t, ledger.BillElectricity, "200")
	require.Len(t, res.HouseBills, 2)
	ctx := context.Background()

	// WHEN: only the first is paid
	first, err := f.mgr.MarkHouseBillPaid(ctx, res.HouseBills[0].ID)
	require.NoError(t, err)

	// THEN: parent stays unpaid
	assert.True(t, first.Changed)
	assert.False(t, first.ParentPaid)
	bill, err := f.store.GetUtilityBill(ctx, res.Bill.ID)
	require.NoError(t, err)
	assert.False(t, bill.IsPaid)

	// WHEN: the second is paid
	second, err := f.mgr.MarkHouseBillPaid(ctx, res.HouseBills[1].ID)
	require.NoError(t, err)

	// THEN: parent becomes paid
	assert.True(t, second.ParentPaid)
	bill, err = f.store.GetUtilityBill(ctx, res.Bill.ID)
	require.NoError(t, err)
	assert.True(t, bill.IsPaid)
}

func TestMarkHouseBillPaid_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	res := f.createBill(t, ledger.BillWater, "75")
	ctx := context.Background()
	id := res.HouseBills[0].ID

	first, err := f.mgr.MarkHouseBillPaid(ctx, id)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.True(t, first.ParentPaid)

	again, err := f.mgr.MarkHouseBillPaid(ctx, id)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.False(t, again.ParentPaid, "no duplicate cascade")
	assert.True(t, again.HouseBill.IsPaid)
}

func TestUnmarkHouseBillPaid_DoesNotCascadeBack(t *testing.T) {
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	res := f.createBill(t, ledger.BillWater, "75")
	ctx := context.Background()
	id := res.HouseBills[0].ID

	_, err := f.mgr.MarkHouseBillPaid(ctx, id)
	require.NoError(t, err)

	out, err := f.mgr.UnmarkHouseBillPaid(ctx, id)
	require.NoError(t, err)
	assert.True(t, out.Changed)

	hb, err := f.store.GetHouseBill(ctx, id)
	require.NoError(t, err)
	assert.False(t, hb.IsPaid)
	bill, err := f.store.GetUtilityBill(ctx, res.Bill.ID)
	require.NoError(t, err)
	assert.True(t, bill.IsPaid, "parent stays paid")

	noop, err := f.mgr.UnmarkHouseBillPaid(ctx, id)
	require.NoError(t, err)
	assert.False(t, noop.Changed)
}

func TestMarkUtilityBillPaid_MarksEveryChild(t *testing.T) {
	// GIVEN: 3 shares, one already paid
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	f.addHouse(t, "B", ledger.MeterShared, 1)
	f.addHouse(t, "C", ledger.MeterShared, 1)
	res := f.createBill(t, ledger.BillElectricity, "90")
	ctx := context.Background()
	_, err := f.mgr.MarkHouseBillPaid(ctx, res.HouseBills[0].ID)
	require.NoError(t, err)

	// WHEN
	out, err := f.mgr.MarkUtilityBillPaid(ctx, res.Bill.ID)
	require.NoError(t, err)

	// THEN: parent paid implies all children paid
	assert.True(t, out.ParentChanged)
	assert.Equal(t, 2, out.ChildrenPaid)
	children, err := f.store.ListHouseBillsByUtilityBill(ctx, res.Bill.ID)
	require.NoError(t, err)
	for _, hb := range children {
		assert.True(t, hb.IsPaid)
	}

	again, err := f.mgr.MarkUtilityBillPaid(ctx, res.Bill.ID)
	require.NoError(t, err)
	assert.False(t, again.ParentChanged)
	assert.Zero(t, again.ChildrenPaid)
}

func TestMarkPaid_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.MarkHouseBillPaid(ctx, 404)
	assert.True(t, ledger.IsNotFound(err))
	_, err = f.mgr.UnmarkHouseBillPaid(ctx, 404)
	assert.True(t, ledger.IsNotFound(err))
	_, err = f.mgr.MarkUtilityBillPaid(ctx, 404)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// DETAIL / DELETE
// =============================================================================

func TestBillDetail_Totals(t *testing.T) {
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	f.addHouse(t, "B", ledger.MeterShared, 3)
	res := f.createBill(t, ledger.BillWater, "100")
	ctx := context.Background()
	_, err := f.mgr.MarkHouseBillPaid(ctx, res.HouseBills[0].ID)
	require.NoError(t, err)

	d, err := f.mgr.BillDetail(ctx, res.Bill.ID)
	require.NoError(t, err)

	assert.Equal(t, "25.00", ledger.FormatMoney(d.Paid))
	assert.Equal(t, "75.00", ledger.FormatMoney(d.Outstanding))
	assert.True(t, d.Unattributed.IsZero())
}

func TestDeleteUtilityBill_CascadesHouseBills(t *testing.T) {
	f := newFixture(t)
	f.addHouse(t, "A", ledger.MeterShared, 1)
	res := f.createBill(t, ledger.BillWater, "40")
	ctx := context.Background()

	require.NoError(t, f.mgr.DeleteUtilityBill(ctx, res.Bill.ID))

	_, err := f.store.GetHouseBill(ctx, res.HouseBills[0].ID)
	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, ledger.IsNotFound(f.mgr.DeleteUtilityBill(ctx, res.Bill.ID)))
}
