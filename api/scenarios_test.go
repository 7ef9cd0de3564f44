/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Buildings, houses and tenants are created
	- Occupancy flags match the tenants
	- Bills are apportioned the way the meters dictate
	- Arrears reflect payments and move-outs

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-ledger/arrears"
	"github.com/warp/rental-ledger/ledger"
)

func TestScenario_SharedBuilding(t *testing.T) {
	// GIVEN: Shared building scenario
	// WHEN: Loading the scenario
	// THEN: Three of four houses are occupied and water splits by occupants
	handler := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, handler.loadSharedBuildingScenario(ctx))

	houses, err := handler.Store.ListHouses(ctx, 0)
	require.NoError(t, err)
	require.Len(t, houses, 4)
	occupied := 0
	for _, h := range houses {
		if h.IsOccupied {
			occupied++
		}
	}
	assert.Equal(t, 3, occupied)

	bills, err := handler.Store.ListUtilityBills(ctx, 0)
	require.NoError(t, err)
	require.Len(t, bills, 2)

	amounts := map[ledger.BillType][]string{}
	for _, b := range bills {
		hbs, err := handler.Store.ListHouseBillsByUtilityBill(ctx, b.ID)
		require.NoError(t, err)
		for _, hb := range hbs {
			amounts[b.BillType] = append(amounts[b.BillType], ledger.FormatMoney(hb.Amount))
		}
	}
	assert.Equal(t, []string{"1000.00", "1000.00", "1000.00"}, amounts[ledger.BillElectricity])
	assert.Equal(t, []string{"400.00", "600.00", "1000.00"}, amounts[ledger.BillWater])
}

func TestScenario_MixedMeters(t *testing.T) {
	// GIVEN: Mixed meters scenario
	// WHEN: Loading the scenario
	// THEN: Non-shared meters are excluded and the annex bill is unattributed
	handler := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, handler.loadMixedMetersScenario(ctx))

	bills, err := handler.Store.ListUtilityBills(ctx, 0)
	require.NoError(t, err)
	require.Len(t, bills, 3)

	shares := map[string][]string{}
	for _, b := range bills {
		building, err := handler.Store.GetBuilding(ctx, b.BuildingID)
		require.NoError(t, err)
		hbs, err := handler.Store.ListHouseBillsByUtilityBill(ctx, b.ID)
		require.NoError(t, err)
		key := building.Name + "/" + string(b.BillType)
		shares[key] = []string{}
		for _, hb := range hbs {
			shares[key] = append(shares[key], ledger.FormatMoney(hb.Amount))
		}
	}
	assert.Equal(t, []string{"450.00", "450.00"}, shares["Riverside Flats/electricity"])
	assert.Equal(t, []string{"800.00", "400.00"}, shares["Riverside Flats/water"])
	assert.Empty(t, shares["Riverside Annex/electricity"])
}

func TestScenario_ArrearsAging(t *testing.T) {
	// GIVEN: Arrears aging scenario (dates relative to today)
	// WHEN: Building the arrears report
	// THEN: Juma has moved out and drops from the report; Amani paid the oldest bill
	handler := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, handler.loadArrearsAgingScenario(ctx))

	rep, err := handler.Arrears.Report(ctx, arrears.Query{})
	require.NoError(t, err)

	names := map[string]int{}
	for _, row := range rep.Rows {
		names[row.TenantName]++
	}
	assert.NotContains(t, names, "Juma Salim")
	assert.Equal(t, 2, names["Amani Chege"])
	assert.Equal(t, 3, names["Nafula Wekesa"])

	// 4500/3 is the oldest share, aged 75 days
	require.Len(t, rep.Aging, 3)
	assert.Equal(t, 1, rep.Aging[2].Bills)
	assert.Equal(t, "1500.00", ledger.FormatMoney(rep.Aging[2].Amount))
}

func TestLoadScenario_Endpoint(t *testing.T) {
	a := newTestAPI(t)

	var list []ScenarioDTO
	require.Equal(t, http.StatusOK, a.do("GET", "/api/scenarios", nil, &list))
	assert.Len(t, list, len(scenarios))

	assert.Equal(t, http.StatusBadRequest, a.do("POST", "/api/scenarios/load", map[string]string{"scenario_id": "nope"}, nil))

	// Loading twice replaces rather than appends
	for range 2 {
		require.Equal(t, http.StatusOK, a.do("POST", "/api/scenarios/load", map[string]string{"scenario_id": "shared-building"}, nil))
	}
	var buildings []BuildingDTO
	a.do("GET", "/api/buildings", nil, &buildings)
	assert.Len(t, buildings, 1)

	var current ScenarioDTO
	a.do("GET", "/api/scenarios/current", nil, &current)
	assert.Equal(t, "shared-building", current.ID)

	var st StateDTO
	a.do("GET", "/api/state", nil, &st)
	assert.Equal(t, 4, st.Houses)
	assert.Equal(t, "scenario shared-building", st.Source)

	require.Equal(t, http.StatusOK, a.do("POST", "/api/scenarios/reset", nil, nil))
	a.do("GET", "/api/buildings", nil, &buildings)
	assert.Empty(t, buildings)
}
