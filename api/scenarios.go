/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates buildings, houses, tenants and
	bills through the same core services the API uses, so occupancy flags
	and bill shares are exactly what a user would get by hand.

AVAILABLE SCENARIOS:

	shared-building: Every house on shared meters, one vacancy
	mixed-meters:    Token and individual meters excluded from splits,
	                 plus an annex whose bill has nobody to charge
	arrears-aging:   Three months of bills, partial payments and a
	                 move-out, dated relative to today

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create buildings and houses
 3. Create tenants via the occupancy tracker
 4. Create bills via the billing manager
 5. Optionally pay some shares

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mixed-meters"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the loaders map

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Core services the loaders call
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/rental-ledger/billing"
	"github.com/warp/rental-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "shared-building",
		Name:        "Shared Building",
		Description: "Four houses on shared meters, three tenants, one vacancy",
	},
	{
		ID:          "mixed-meters",
		Name:        "Mixed Meters",
		Description: "Token and individual meters are left out of shared bills",
	},
	{
		ID:          "arrears-aging",
		Name:        "Arrears Aging",
		Description: "Three months of bills with partial payments and a move-out",
	},
}

func (h *Handler) loaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"shared-building": h.loadSharedBuildingScenario,
		"mixed-meters":    h.loadMixedMetersScenario,
		"arrears-aging":   h.loadArrearsAgingScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	load, ok := h.loaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.fail(w, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		h.fail(w, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	h.refresh(ctx, "scenario "+req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every table.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.fail(w, "Failed to reset database", err)
		return
	}
	h.refresh(r.Context(), "reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Store.(ledger.Resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", h.Store)
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSharedBuildingScenario(ctx context.Context) error {
	s := &seeder{ctx: ctx, h: h}
	jan := ledger.NewDate(2025, time.January, 5)

	b := s.building("Kileleshwa Court", "Mandera Road, Nairobi")
	h1 := s.house(b, "A1", ledger.HouseTwoBedroom, "25000", ledger.MeterShared, ledger.MeterShared)
	h2 := s.house(b, "A2", ledger.HouseOneBedroom, "18000", ledger.MeterShared, ledger.MeterShared)
	h3 := s.house(b, "A3", ledger.HouseTwoBedroom, "25000", ledger.MeterShared, ledger.MeterShared)
	s.house(b, "A4", ledger.HouseBedsitter, "9000", ledger.MeterShared, ledger.MeterShared)

	s.tenant(h1, "Wanjiru Kamau", "0712000001", 2, ledger.NewDate(2024, time.March, 1))
	s.tenant(h2, "Otieno Ouma", "0712000002", 3, ledger.NewDate(2024, time.June, 1))
	s.tenant(h3, "Achieng Njeri", "0712000003", 5, ledger.NewDate(2024, time.September, 1))

	// 3000 splits 1000 each; 2000 water splits 400/600/1000 by occupants.
	elec := s.bill(b, ledger.BillElectricity, jan, "3000")
	s.bill(b, ledger.BillWater, jan, "2000")
	if len(elec.HouseBills) > 0 {
		s.pay(elec.HouseBills[0].ID)
	}

	p := s.provider("Maji Plumbers", "plumbing", "0722000100")
	s.record(h2, &p, "Replace kitchen tap", "1500", jan, true)
	return s.err
}

func (h *Handler) loadMixedMetersScenario(ctx context.Context) error {
	s := &seeder{ctx: ctx, h: h}
	feb := ledger.NewDate(2025, time.February, 3)

	b := s.building("Riverside Flats", "Riverside Drive")
	h1 := s.house(b, "R1", ledger.HouseTwoBedroom, "30000", ledger.MeterShared, ledger.MeterShared)
	h2 := s.house(b, "R2", ledger.HouseOneBedroom, "20000", ledger.MeterToken, ledger.MeterShared)
	h3 := s.house(b, "R3", ledger.HouseSingle, "12000", ledger.MeterShared, ledger.MeterIndividual)
	h4 := s.house(b, "R4", ledger.HouseOwnCompound, "45000", ledger.MeterIndividual, ledger.MeterIndividual)

	s.tenant(h1, "Kiprono Langat", "0733000001", 4, ledger.NewDate(2024, time.January, 1))
	s.tenant(h2, "Fatuma Hassan", "0733000002", 2, ledger.NewDate(2024, time.May, 1))
	s.tenant(h3, "Mutua Kioko", "0733000003", 1, ledger.NewDate(2024, time.July, 1))
	s.tenant(h4, "Grace Wambui", "0733000004", 6, ledger.NewDate(2024, time.August, 1))

	// R1 and R3 share electricity; R1 and R2 share water 4:2.
	s.bill(b, ledger.BillElectricity, feb, "900")
	s.bill(b, ledger.BillWater, feb, "1200")

	// Every annex house is on token electricity, so this bill stays
	// unattributed.
	annex := s.building("Riverside Annex", "Riverside Drive")
	a1 := s.house(annex, "X1", ledger.HouseBedsitter, "8000", ledger.MeterToken, ledger.MeterShared)
	s.tenant(a1, "Baraka Mwangi", "0733000005", 1, ledger.NewDate(2024, time.October, 1))
	s.bill(annex, ledger.BillElectricity, feb, "450")
	return s.err
}

func (h *Handler) loadArrearsAgingScenario(ctx context.Context) error {
	s := &seeder{ctx: ctx, h: h}
	today := ledger.DateOf(time.Now())
	daysAgo := func(n int) ledger.Date { return ledger.DateOf(today.AddDate(0, 0, -n)) }

	b := s.building("Lavington Gardens", "James Gichuru Road")
	h1 := s.house(b, "G1", ledger.HouseTwoBedroom, "35000", ledger.MeterShared, ledger.MeterShared)
	h2 := s.house(b, "G2", ledger.HouseTwoBedroom, "35000", ledger.MeterShared, ledger.MeterShared)
	h3 := s.house(b, "G3", ledger.HouseOneBedroom, "22000", ledger.MeterShared, ledger.MeterShared)

	s.tenant(h1, "Amani Chege", "0700000001", 2, daysAgo(400))
	s.tenant(h2, "Nafula Wekesa", "0700000002", 2, daysAgo(300))
	leaving := s.tenant(h3, "Juma Salim", "0700000003", 1, daysAgo(200))

	old := s.bill(b, ledger.BillElectricity, daysAgo(75), "4500")
	s.bill(b, ledger.BillWater, daysAgo(40), "2500")
	s.bill(b, ledger.BillElectricity, daysAgo(10), "3600")

	// Amani settles the oldest bill; the others carry it into 61+.
	for _, hb := range old.HouseBills {
		if hb.HouseID == h1 {
			s.pay(hb.ID)
		}
	}

	// Juma's shares stay unpaid but leave the report with him.
	s.moveOut(leaving, daysAgo(5))

	p := s.provider("Stima Electric", "electrical", "0722000200")
	s.record(h2, &p, "Rewire distribution board", "8500", daysAgo(20), false)
	return s.err
}

// =============================================================================
// SEEDER
// =============================================================================

// seeder chains scenario writes and keeps the first error; later calls
// are no-ops once it is set.
type seeder struct {
	ctx context.Context
	h   *Handler
	err error
}

func (s *seeder) building(name, address string) ledger.BuildingID {
	if s.err != nil {
		return 0
	}
	var id ledger.BuildingID
	id, s.err = s.h.Store.CreateBuilding(s.ctx, ledger.Building{Name: name, Address: address})
	return id
}

func (s *seeder) house(b ledger.BuildingID, number string, typ ledger.HouseType, rent string, elec, water ledger.MeterType) ledger.HouseID {
	if s.err != nil {
		return 0
	}
	var id ledger.HouseID
	id, s.err = s.h.Store.CreateHouse(s.ctx, ledger.House{
		BuildingID:       b,
		HouseNumber:      number,
		Type:             typ,
		RentAmount:       ledger.MustMoney(rent),
		ElectricityMeter: elec,
		WaterMeter:       water,
	})
	return id
}

func (s *seeder) tenant(house ledger.HouseID, name, phone string, occupants int, moveIn ledger.Date) ledger.TenantID {
	if s.err != nil {
		return 0
	}
	var t ledger.Tenant
	t, s.err = s.h.Tenants.CreateTenant(s.ctx, ledger.Tenant{
		HouseID:    house,
		Name:       name,
		Phone:      phone,
		Occupants:  occupants,
		MoveInDate: moveIn,
		IsActive:   true,
	})
	return t.ID
}

func (s *seeder) moveOut(id ledger.TenantID, on ledger.Date) {
	if s.err != nil {
		return
	}
	_, s.err = s.h.Tenants.MoveOut(s.ctx, id, on)
}

func (s *seeder) bill(b ledger.BuildingID, typ ledger.BillType, date ledger.Date, total string) billing.CreateBillResult {
	if s.err != nil {
		return billing.CreateBillResult{}
	}
	var res billing.CreateBillResult
	res, s.err = s.h.Bills.CreateBill(s.ctx, billing.CreateBillInput{
		BuildingID: b,
		BillType:   typ,
		BillDate:   date,
		Total:      ledger.MustMoney(total),
	})
	return res
}

func (s *seeder) pay(id ledger.HouseBillID) {
	if s.err != nil {
		return
	}
	_, s.err = s.h.Bills.MarkHouseBillPaid(s.ctx, id)
}

func (s *seeder) provider(name, service, phone string) ledger.ServiceProviderID {
	if s.err != nil {
		return 0
	}
	var id ledger.ServiceProviderID
	id, s.err = s.h.Store.CreateServiceProvider(s.ctx, ledger.ServiceProvider{Name: name, Service: service, Phone: phone})
	return id
}

func (s *seeder) record(house ledger.HouseID, provider *ledger.ServiceProviderID, desc, cost string, date ledger.Date, done bool) {
	if s.err != nil {
		return
	}
	_, s.err = s.h.Store.CreateServiceRecord(s.ctx, ledger.ServiceRecord{
		HouseID:     house,
		ProviderID:  provider,
		Description: desc,
		Cost:        ledger.MustMoney(cost),
		ServiceDate: date,
		IsCompleted: done,
	})
}
