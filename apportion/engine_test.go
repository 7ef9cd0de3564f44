package apportion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/apportion"
	"github.com/warp/rental-ledger/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func sharedHouse(id int64, occupants int) ledger.HouseSnapshot {
	return ledger.HouseSnapshot{
		ID:               ledger.HouseID(id),
		ElectricityMeter: ledger.MeterShared,
		WaterMeter:       ledger.MeterShared,
		IsOccupied:       true,
		ActiveOccupants:  occupants,
	}
}

func amounts(r apportion.Result) map[ledger.HouseID]string {
	out := make(map[ledger.HouseID]string, len(r.Shares))
	for _, s := range r.Shares {
		out[s.HouseID] = ledger.FormatMoney(s.Amount)
	}
	return out
}

// =============================================================================
// ELECTRICITY
// =============================================================================

func TestApportion_Electricity_EqualDivision(t *testing.T) {
	// GIVEN: 3 eligible houses, total 300
	// THEN: 100.00 each

	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillElectricity,
		Total:    ledger.MustMoney("300"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 2), sharedHouse(2, 5), sharedHouse(3, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, apportion.MethodEqual, res.Method)
	assert.Equal(t, map[ledger.HouseID]string{1: "100.00", 2: "100.00", 3: "100.00"}, amounts(res))
}

func TestApportion_Electricity_OccupantsIgnored(t *testing.T) {
	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillElectricity,
		Total:    ledger.MustMoney("90"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 1), sharedHouse(2, 8)},
	})
	require.NoError(t, err)
	assert.Equal(t, map[ledger.HouseID]string{1: "45.00", 2: "45.00"}, amounts(res))
}

func TestApportion_Electricity_RemainderCentsDistributed(t *testing.T) {
	// GIVEN: 100 split three ways
	// THEN: 33.34 + 33.33 + 33.33, first house in snapshot order takes the extra cent

	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillElectricity,
		Total:    ledger.MustMoney("100"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(7, 1), sharedHouse(8, 1), sharedHouse(9, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, map[ledger.HouseID]string{7: "33.34", 8: "33.33", 9: "33.33"}, amounts(res))
	assert.Equal(t, "100.00", ledger.FormatMoney(res.Sum()))
}

// =============================================================================
// WATER
// =============================================================================

func TestApportion_Water_OccupantWeighted(t *testing.T) {
	// GIVEN: A has 2 occupants, B has 3, total 100
	// THEN: A = 40.00, B = 60.00

	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillWater,
		Total:    ledger.MustMoney("100"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 2), sharedHouse(2, 3)},
	})
	require.NoError(t, err)

	assert.Equal(t, apportion.MethodOccupants, res.Method)
	assert.Equal(t, map[ledger.HouseID]string{1: "40.00", 2: "60.00"}, amounts(res))
}

func TestApportion_Water_ZeroOccupantsFallsBackToEqual(t *testing.T) {
	// GIVEN: 2 eligible houses, both reporting 0 occupants, total 50
	// THEN: 25.00 each

	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillWater,
		Total:    ledger.MustMoney("50"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 0), sharedHouse(2, 0)},
	})
	require.NoError(t, err)

	assert.Equal(t, apportion.MethodEqualFallback, res.Method)
	assert.Equal(t, map[ledger.HouseID]string{1: "25.00", 2: "25.00"}, amounts(res))
}

func TestApportion_Water_ZeroOccupantHouseGetsNothingWhenOthersWeighted(t *testing.T) {
	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillWater,
		Total:    ledger.MustMoney("10.01"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 0), sharedHouse(2, 1), sharedHouse(3, 2)},
	})
	require.NoError(t, err)

	got := amounts(res)
	assert.Equal(t, "0.00", got[1])
	assert.Equal(t, "10.01", ledger.FormatMoney(res.Sum()))
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

func TestApportion_EligibilityFilter(t *testing.T) {
	// GIVEN: a shared occupied house, a vacant one, a token-metered one and
	//        an individually metered one
	// THEN: only the shared occupied house is billed

	vacant := sharedHouse(2, 0)
	vacant.IsOccupied = false
	token := sharedHouse(3, 4)
	token.ElectricityMeter = ledger.MeterToken
	individual := sharedHouse(4, 4)
	individual.ElectricityMeter = ledger.MeterIndividual

	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillElectricity,
		Total:    ledger.MustMoney("120"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 1), vacant, token, individual},
	})
	require.NoError(t, err)

	assert.Equal(t, map[ledger.HouseID]string{1: "120.00"}, amounts(res))
	assert.ElementsMatch(t, []ledger.HouseID{2, 3, 4}, res.Excluded)
}

func TestApportion_MeterIsPerUtility(t *testing.T) {
	// GIVEN: house 2 has an individual water meter but shares electricity
	h2 := sharedHouse(2, 3)
	h2.WaterMeter = ledger.MeterIndividual
	houses := []ledger.HouseSnapshot{sharedHouse(1, 1), h2}

	water, err := apportion.Apportion(apportion.Input{BillType: ledger.BillWater, Total: ledger.MustMoney("30"), Houses: houses})
	require.NoError(t, err)
	assert.Equal(t, map[ledger.HouseID]string{1: "30.00"}, amounts(water))

	power, err := apportion.Apportion(apportion.Input{BillType: ledger.BillElectricity, Total: ledger.MustMoney("30"), Houses: houses})
	require.NoError(t, err)
	assert.Equal(t, map[ledger.HouseID]string{1: "15.00", 2: "15.00"}, amounts(power))
}

func TestApportion_NoEligibleHouses(t *testing.T) {
	vacant := sharedHouse(1, 0)
	vacant.IsOccupied = false

	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillElectricity,
		Total:    ledger.MustMoney("300"),
		Houses:   []ledger.HouseSnapshot{vacant},
	})
	require.NoError(t, err)

	assert.Equal(t, apportion.MethodNone, res.Method)
	assert.True(t, res.Unattributed())
	assert.Empty(t, res.Shares)
}

// =============================================================================
// VALIDATION & INVARIANTS
// =============================================================================

func TestApportion_RejectsInvalidInput(t *testing.T) {
	houses := []ledger.HouseSnapshot{sharedHouse(1, 1)}

	_, err := apportion.Apportion(apportion.Input{BillType: "gas", Total: ledger.MustMoney("10"), Houses: houses})
	assert.ErrorIs(t, err, ledger.ErrUnknownBillType)
	assert.True(t, ledger.IsClientError(err))

	_, err = apportion.Apportion(apportion.Input{BillType: ledger.BillWater, Total: ledger.MustMoney("0"), Houses: houses})
	assert.ErrorIs(t, err, ledger.ErrNonPositiveAmount)

	_, err = apportion.Apportion(apportion.Input{BillType: ledger.BillWater, Total: ledger.MustMoney("-5"), Houses: houses})
	assert.ErrorIs(t, err, ledger.ErrNonPositiveAmount)
}

func TestApportion_SumAndNonNegativity(t *testing.T) {
	// Sweep awkward totals and occupant mixes; shares must be >= 0 and sum
	// to the total to the cent.
	totals := []string{"0.01", "0.05", "1", "7.77", "99.99", "1000", "12345.67"}
	mixes := [][]int{{1}, {1, 1, 1}, {2, 3}, {0, 0, 5}, {1, 2, 3, 4, 5, 6, 7}, {9, 0, 1}}

	for _, billType := range []ledger.BillType{ledger.BillElectricity, ledger.BillWater} {
		for _, total := range totals {
			for _, mix := range mixes {
				houses := make([]ledger.HouseSnapshot, len(mix))
				for i, occ := range mix {
					houses[i] = sharedHouse(int64(i+1), occ)
				}

				res, err := apportion.Apportion(apportion.Input{
					BillType: billType,
					Total:    ledger.MustMoney(total),
					Houses:   houses,
				})
				require.NoError(t, err)

				for _, s := range res.Shares {
					assert.False(t, s.Amount.IsNegative(), "%s %s %v: negative share", billType, total, mix)
				}
				assert.Equal(t, ledger.FormatMoney(ledger.MustMoney(total)), ledger.FormatMoney(res.Sum()),
					"%s %s %v: shares do not sum to total", billType, total, mix)
			}
		}
	}
}

func TestApportion_LargeTotals(t *testing.T) {
	// GIVEN: totals whose cents times the weight do not fit in int64
	// THEN: shares are exact and still sum to the total

	res, err := apportion.Apportion(apportion.Input{
		BillType: ledger.BillWater,
		Total:    ledger.MustMoney("1000000000000000"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 100), sharedHouse(2, 3)},
	})
	require.NoError(t, err)
	assert.Equal(t, map[ledger.HouseID]string{
		1: "970873786407766.99",
		2: "29126213592233.01",
	}, amounts(res))
	assert.Equal(t, "1000000000000000.00", ledger.FormatMoney(res.Sum()))

	res, err = apportion.Apportion(apportion.Input{
		BillType: ledger.BillElectricity,
		Total:    ledger.MustMoney("123456789012345678901.24"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 1), sharedHouse(2, 1), sharedHouse(3, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, map[ledger.HouseID]string{
		1: "41152263004115226300.42",
		2: "41152263004115226300.41",
		3: "41152263004115226300.41",
	}, amounts(res))
	assert.Equal(t, "123456789012345678901.24", ledger.FormatMoney(res.Sum()))
}

func TestApportion_Deterministic(t *testing.T) {
	in := apportion.Input{
		BillType: ledger.BillWater,
		Total:    ledger.MustMoney("77.77"),
		Houses:   []ledger.HouseSnapshot{sharedHouse(1, 1), sharedHouse(2, 1), sharedHouse(3, 1)},
	}
	first, err := apportion.Apportion(in)
	require.NoError(t, err)
	second, err := apportion.Apportion(in)
	require.NoError(t, err)

	assert.Equal(t, amounts(first), amounts(second))
}
