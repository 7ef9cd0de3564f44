// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/rental-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxStore with maps. Transactions are simulated
// with a snapshot + rollback on error.
type Memory struct {
	mu   sync.Mutex
	data tables
	now  func() time.Time
}

type tables struct {
	nextID     int64
	buildings  map[ledger.BuildingID]ledger.Building
	houses     map[ledger.HouseID]ledger.House
	tenants    map[ledger.TenantID]ledger.Tenant
	bills      map[ledger.UtilityBillID]ledger.UtilityBill
	houseBills map[ledger.HouseBillID]ledger.HouseBill
	providers  map[ledger.ServiceProviderID]ledger.ServiceProvider
	records    map[ledger.ServiceRecordID]ledger.ServiceRecord
}

func newTables() tables {
	return tables{
		buildings:  make(map[ledger.BuildingID]ledger.Building),
		houses:     make(map[ledger.HouseID]ledger.House),
		tenants:    make(map[ledger.TenantID]ledger.Tenant),
		bills:      make(map[ledger.UtilityBillID]ledger.UtilityBill),
		houseBills: make(map[ledger.HouseBillID]ledger.HouseBill),
		providers:  make(map[ledger.ServiceProviderID]ledger.ServiceProvider),
		records:    make(map[ledger.ServiceRecordID]ledger.ServiceRecord),
	}
}

func (t tables) clone() tables {
	c := newTables()
	c.nextID = t.nextID
	for k, v := range t.buildings {
		c.buildings[k] = v
	}
	for k, v := range t.houses {
		c.houses[k] = v
	}
	for k, v := range t.tenants {
		c.tenants[k] = v
	}
	for k, v := range t.bills {
		c.bills[k] = v
	}
	for k, v := range t.houseBills {
		c.houseBills[k] = v
	}
	for k, v := range t.providers {
		c.providers[k] = v
	}
	for k, v := range t.records {
		c.records[k] = v
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{data: newTables(), now: time.Now}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a locked view of the store. If fn fails or
// panics, every write it made is discarded. A panic is re-raised after the
// rollback.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	defer func() {
		if p := recover(); p != nil {
			m.data = snapshot
			panic(p)
		}
	}()

	if err := fn(&txView{m: m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// Reset clears every table.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = newTables()
	return nil
}

func (m *Memory) id() int64 {
	m.data.nextID++
	return m.data.nextID
}

func (m *Memory) stamp() time.Time {
	return m.now().UTC().Truncate(time.Second)
}

// =============================================================================
// BUILDINGS
// =============================================================================

func (m *Memory) createBuilding(b ledger.Building) (ledger.BuildingID, error) {
	b.ID = ledger.BuildingID(m.id())
	b.CreatedAt = m.stamp()
	m.data.buildings[b.ID] = b
	return b.ID, nil
}

func (m *Memory) getBuilding(id ledger.BuildingID) (ledger.Building, error) {
	b, ok := m.data.buildings[id]
	if !ok {
		return ledger.Building{}, ledger.NotFound("building", int64(id))
	}
	return b, nil
}

func (m *Memory) listBuildings() []ledger.Building {
	out := make([]ledger.Building, 0, len(m.data.buildings))
	for _, b := range m.data.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) updateBuilding(b ledger.Building) error {
	existing, err := m.getBuilding(b.ID)
	if err != nil {
		return err
	}
	existing.Name = b.Name
	existing.Address = b.Address
	m.data.buildings[b.ID] = existing
	return nil
}

func (m *Memory) deleteBuilding(id ledger.BuildingID) error {
	if _, err := m.getBuilding(id); err != nil {
		return err
	}
	for hid, h := range m.data.houses {
		if h.BuildingID == id {
			m.deleteHouseCascade(hid)
		}
	}
	for bid, b := range m.data.bills {
		if b.BuildingID == id {
			m.deleteUtilityBillCascade(bid)
		}
	}
	delete(m.data.buildings, id)
	return nil
}

// =============================================================================
// HOUSES
// =============================================================================

func (m *Memory) createHouse(h ledger.House) (ledger.HouseID, error) {
	if _, err := m.getBuilding(h.BuildingID); err != nil {
		return 0, err
	}
	h.ID = ledger.HouseID(m.id())
	h.IsOccupied = false
	h.CreatedAt = m.stamp()
	m.data.houses[h.ID] = h
	return h.ID, nil
}

func (m *Memory) getHouse(id ledger.HouseID) (ledger.House, error) {
	h, ok := m.data.houses[id]
	if !ok {
		return ledger.House{}, ledger.NotFound("house", int64(id))
	}
	return h, nil
}

func (m *Memory) listHouses(buildingID ledger.BuildingID) []ledger.House {
	var out []ledger.House
	for _, h := range m.data.houses {
		if buildingID == 0 || h.BuildingID == buildingID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) updateHouse(h ledger.House) error {
	existing, err := m.getHouse(h.ID)
	if err != nil {
		return err
	}
	if _, err := m.getBuilding(h.BuildingID); err != nil {
		return err
	}
	h.IsOccupied = existing.IsOccupied
	h.CreatedAt = existing.CreatedAt
	m.data.houses[h.ID] = h
	return nil
}

func (m *Memory) setHouseOccupied(id ledger.HouseID, occupied bool) error {
	h, err := m.getHouse(id)
	if err != nil {
		return err
	}
	h.IsOccupied = occupied
	m.data.houses[id] = h
	return nil
}

func (m *Memory) deleteHouse(id ledger.HouseID) error {
	if _, err := m.getHouse(id); err != nil {
		return err
	}
	m.deleteHouseCascade(id)
	return nil
}

func (m *Memory) deleteHouseCascade(id ledger.HouseID) {
	for tid, t := range m.data.tenants {
		if t.HouseID == id {
			delete(m.data.tenants, tid)
		}
	}
	for hbid, hb := range m.data.houseBills {
		if hb.HouseID == id {
			delete(m.data.houseBills, hbid)
		}
	}
	for rid, r := range m.data.records {
		if r.HouseID == id {
			delete(m.data.records, rid)
		}
	}
	delete(m.data.houses, id)
}

func (m *Memory) houseSnapshots(buildingID ledger.BuildingID) []ledger.HouseSnapshot {
	houses := m.listHouses(buildingID)
	out := make([]ledger.HouseSnapshot, 0, len(houses))
	for _, h := range houses {
		snap := ledger.HouseSnapshot{
			ID:               h.ID,
			HouseNumber:      h.HouseNumber,
			ElectricityMeter: h.ElectricityMeter,
			WaterMeter:       h.WaterMeter,
			IsOccupied:       h.IsOccupied,
		}
		for _, t := range m.data.tenants {
			if t.HouseID == h.ID && t.IsActive {
				snap.ActiveOccupants += t.Occupants
			}
		}
		out = append(out, snap)
	}
	return out
}

// =============================================================================
// TENANTS
// =============================================================================

func (m *Memory) createTenant(t ledger.Tenant) (ledger.TenantID, error) {
	if _, err := m.getHouse(t.HouseID); err != nil {
		return 0, err
	}
	t.ID = ledger.TenantID(m.id())
	t.CreatedAt = m.stamp()
	m.data.tenants[t.ID] = t
	return t.ID, nil
}

func (m *Memory) getTenant(id ledger.TenantID) (ledger.Tenant, error) {
	t, ok := m.data.tenants[id]
	if !ok {
		return ledger.Tenant{}, ledger.NotFound("tenant", int64(id))
	}
	return t, nil
}

func (m *Memory) listTenants(houseID ledger.HouseID) []ledger.Tenant {
	var out []ledger.Tenant
	for _, t := range m.data.tenants {
		if houseID == 0 || t.HouseID == houseID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) updateTenant(t ledger.Tenant) error {
	existing, err := m.getTenant(t.ID)
	if err != nil {
		return err
	}
	if _, err := m.getHouse(t.HouseID); err != nil {
		return err
	}
	t.CreatedAt = existing.CreatedAt
	m.data.tenants[t.ID] = t
	return nil
}

func (m *Memory) deleteTenant(id ledger.TenantID) error {
	if _, err := m.getTenant(id); err != nil {
		return err
	}
	delete(m.data.tenants, id)
	return nil
}

func (m *Memory) activeTenant(houseID ledger.HouseID) *ledger.Tenant {
	for _, t := range m.listTenants(houseID) {
		if t.IsActive {
			t := t
			return &t
		}
	}
	return nil
}

func (m *Memory) countActiveTenants(houseID ledger.HouseID) int {
	n := 0
	for _, t := range m.data.tenants {
		if t.HouseID == houseID && t.IsActive {
			n++
		}
	}
	return n
}

// =============================================================================
// UTILITY BILLS & HOUSE BILLS
// =============================================================================

func (m *Memory) createUtilityBill(b ledger.UtilityBill) (ledger.UtilityBillID, error) {
	if _, err := m.getBuilding(b.BuildingID); err != nil {
		return 0, err
	}
	b.ID = ledger.UtilityBillID(m.id())
	b.CreatedAt = m.stamp()
	m.data.bills[b.ID] = b
	return b.ID, nil
}

func (m *Memory) getUtilityBill(id ledger.UtilityBillID) (ledger.UtilityBill, error) {
	b, ok := m.data.bills[id]
	if !ok {
		return ledger.UtilityBill{}, ledger.NotFound("utility bill", int64(id))
	}
	return b, nil
}

func (m *Memory) listUtilityBills(buildingID ledger.BuildingID) []ledger.UtilityBill {
	var out []ledger.UtilityBill
	for _, b := range m.data.bills {
		if buildingID == 0 || b.BuildingID == buildingID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BillDate.Equal(out[j].BillDate.Time) {
			return out[i].BillDate.After(out[j].BillDate.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *Memory) setUtilityBillPaid(id ledger.UtilityBillID, paid bool) error {
	b, err := m.getUtilityBill(id)
	if err != nil {
		return err
	}
	b.IsPaid = paid
	m.data.bills[id] = b
	return nil
}

func (m *Memory) deleteUtilityBill(id ledger.UtilityBillID) error {
	if _, err := m.getUtilityBill(id); err != nil {
		return err
	}
	m.deleteUtilityBillCascade(id)
	return nil
}

func (m *Memory) deleteUtilityBillCascade(id ledger.UtilityBillID) {
	for hbid, hb := range m.data.houseBills {
		if hb.UtilityBillID == id {
			delete(m.data.houseBills, hbid)
		}
	}
	delete(m.data.bills, id)
}

func (m *Memory) createHouseBill(hb ledger.HouseBill) (ledger.HouseBillID, error) {
	if _, err := m.getHouse(hb.HouseID); err != nil {
		return 0, err
	}
	if _, err := m.getUtilityBill(hb.UtilityBillID); err != nil {
		return 0, err
	}
	hb.ID = ledger.HouseBillID(m.id())
	hb.CreatedAt = m.stamp()
	m.data.houseBills[hb.ID] = hb
	return hb.ID, nil
}

func (m *Memory) getHouseBill(id ledger.HouseBillID) (ledger.HouseBill, error) {
	hb, ok := m.data.houseBills[id]
	if !ok {
		return ledger.HouseBill{}, ledger.NotFound("house bill", int64(id))
	}
	return hb, nil
}

func (m *Memory) filterHouseBills(keep func(ledger.HouseBill) bool) []ledger.HouseBill {
	var out []ledger.HouseBill
	for _, hb := range m.data.houseBills {
		if keep(hb) {
			out = append(out, hb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) setHouseBillPaid(id ledger.HouseBillID, paid bool) error {
	hb, err := m.getHouseBill(id)
	if err != nil {
		return err
	}
	hb.IsPaid = paid
	m.data.houseBills[id] = hb
	return nil
}

// =============================================================================
// SERVICE PROVIDERS & RECORDS
// =============================================================================

func (m *Memory) createServiceProvider(p ledger.ServiceProvider) (ledger.ServiceProviderID, error) {
	p.ID = ledger.ServiceProviderID(m.id())
	p.CreatedAt = m.stamp()
	m.data.providers[p.ID] = p
	return p.ID, nil
}

func (m *Memory) getServiceProvider(id ledger.ServiceProviderID) (ledger.ServiceProvider, error) {
	p, ok := m.data.providers[id]
	if !ok {
		return ledger.ServiceProvider{}, ledger.NotFound("service provider", int64(id))
	}
	return p, nil
}

func (m *Memory) listServiceProviders() []ledger.ServiceProvider {
	out := make([]ledger.ServiceProvider, 0, len(m.data.providers))
	for _, p := range m.data.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) deleteServiceProvider(id ledger.ServiceProviderID) error {
	if _, err := m.getServiceProvider(id); err != nil {
		return err
	}
	for rid, r := range m.data.records {
		if r.ProviderID != nil && *r.ProviderID == id {
			delete(m.data.records, rid)
		}
	}
	delete(m.data.providers, id)
	return nil
}

func (m *Memory) checkRecordRefs(r ledger.ServiceRecord) error {
	if _, err := m.getHouse(r.HouseID); err != nil {
		return err
	}
	if r.ProviderID != nil {
		if _, err := m.getServiceProvider(*r.ProviderID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) createServiceRecord(r ledger.ServiceRecord) (ledger.ServiceRecordID, error) {
	if err := m.checkRecordRefs(r); err != nil {
		return 0, err
	}
	r.ID = ledger.ServiceRecordID(m.id())
	r.CreatedAt = m.stamp()
	m.data.records[r.ID] = r
	return r.ID, nil
}

func (m *Memory) getServiceRecord(id ledger.ServiceRecordID) (ledger.ServiceRecord, error) {
	r, ok := m.data.records[id]
	if !ok {
		return ledger.ServiceRecord{}, ledger.NotFound("service record", int64(id))
	}
	return r, nil
}

func (m *Memory) listServiceRecords(houseID ledger.HouseID) []ledger.ServiceRecord {
	var out []ledger.ServiceRecord
	for _, r := range m.data.records {
		if houseID == 0 || r.HouseID == houseID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) updateServiceRecord(r ledger.ServiceRecord) error {
	existing, err := m.getServiceRecord(r.ID)
	if err != nil {
		return err
	}
	if err := m.checkRecordRefs(r); err != nil {
		return err
	}
	r.CreatedAt = existing.CreatedAt
	m.data.records[r.ID] = r
	return nil
}

func (m *Memory) deleteServiceRecord(id ledger.ServiceRecordID) error {
	if _, err := m.getServiceRecord(id); err != nil {
		return err
	}
	delete(m.data.records, id)
	return nil
}
