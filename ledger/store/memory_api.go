package store

import (
	"context"

	"github.com/warp/rental-ledger/ledger"
)

var (
	_ ledger.TxStore  = (*Memory)(nil)
	_ ledger.Resetter = (*Memory)(nil)
	_ ledger.Store    = (*txView)(nil)
)

// txView is the Store handed to WithTx callbacks. The Memory lock is
// already held, so it calls the unlocked helpers directly.
type txView struct {
	m *Memory
}

// WithTx on a view joins the enclosing transaction.
func (v *txView) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(v)
}

func (m *Memory) lock() func() {
	m.mu.Lock()
	return m.mu.Unlock
}

// =============================================================================
// BUILDINGS
// =============================================================================

func (m *Memory) CreateBuilding(_ context.Context, b ledger.Building) (ledger.BuildingID, error) {
	defer m.lock()()
	return m.createBuilding(b)
}

func (v *txView) CreateBuilding(_ context.Context, b ledger.Building) (ledger.BuildingID, error) {
	return v.m.createBuilding(b)
}

func (m *Memory) GetBuilding(_ context.Context, id ledger.BuildingID) (ledger.Building, error) {
	defer m.lock()()
	return m.getBuilding(id)
}

func (v *txView) GetBuilding(_ context.Context, id ledger.BuildingID) (ledger.Building, error) {
	return v.m.getBuilding(id)
}

func (m *Memory) ListBuildings(_ context.Context) ([]ledger.Building, error) {
	defer m.lock()()
	return m.listBuildings(), nil
}

func (v *txView) ListBuildings(_ context.Context) ([]ledger.Building, error) {
	return v.m.listBuildings(), nil
}

func (m *Memory) UpdateBuilding(_ context.Context, b ledger.Building) error {
	defer m.lock()()
	return m.updateBuilding(b)
}

func (v *txView) UpdateBuilding(_ context.Context, b ledger.Building) error {
	return v.m.updateBuilding(b)
}

func (m *Memory) DeleteBuilding(_ context.Context, id ledger.BuildingID) error {
	defer m.lock()()
	return m.deleteBuilding(id)
}

func (v *txView) DeleteBuilding(_ context.Context, id ledger.BuildingID) error {
	return v.m.deleteBuilding(id)
}

// =============================================================================
// HOUSES
// =============================================================================

func (m *Memory) CreateHouse(_ context.Context, h ledger.House) (ledger.HouseID, error) {
	defer m.lock()()
	return m.createHouse(h)
}

func (v *txView) CreateHouse(_ context.Context, h ledger.House) (ledger.HouseID, error) {
	return v.m.createHouse(h)
}

func (m *Memory) GetHouse(_ context.Context, id ledger.HouseID) (ledger.House, error) {
	defer m.lock()()
	return m.getHouse(id)
}

func (v *txView) GetHouse(_ context.Context, id ledger.HouseID) (ledger.House, error) {
	return v.m.getHouse(id)
}

func (m *Memory) ListHouses(_ context.Context, buildingID ledger.BuildingID) ([]ledger.House, error) {
	defer m.lock()()
	return m.listHouses(buildingID), nil
}

func (v *txView) ListHouses(_ context.Context, buildingID ledger.BuildingID) ([]ledger.House, error) {
	return v.m.listHouses(buildingID), nil
}

func (m *Memory) UpdateHouse(_ context.Context, h ledger.House) error {
	defer m.lock()()
	return m.updateHouse(h)
}

func (v *txView) UpdateHouse(_ context.Context, h ledger.House) error {
	return v.m.updateHouse(h)
}

func (m *Memory) SetHouseOccupied(_ context.Context, id ledger.HouseID, occupied bool) error {
	defer m.lock()()
	return m.setHouseOccupied(id, occupied)
}

func (v *txView) SetHouseOccupied(_ context.Context, id ledger.HouseID, occupied bool) error {
	return v.m.setHouseOccupied(id, occupied)
}

func (m *Memory) DeleteHouse(_ context.Context, id ledger.HouseID) error {
	defer m.lock()()
	return m.deleteHouse(id)
}

func (v *txView) DeleteHouse(_ context.Context, id ledger.HouseID) error {
	return v.m.deleteHouse(id)
}

func (m *Memory) HouseSnapshots(_ context.Context, buildingID ledger.BuildingID) ([]ledger.HouseSnapshot, error) {
	defer m.lock()()
	return m.houseSnapshots(buildingID), nil
}

func (v *txView) HouseSnapshots(_ context.Context, buildingID ledger.BuildingID) ([]ledger.HouseSnapshot, error) {
	return v.m.houseSnapshots(buildingID), nil
}

// =============================================================================
// TENANTS
// =============================================================================

func (m *Memory) CreateTenant(_ context.Context, t ledger.Tenant) (ledger.TenantID, error) {
	defer m.lock()()
	return m.createTenant(t)
}

func (v *txView) CreateTenant(_ context.Context, t ledger.Tenant) (ledger.TenantID, error) {
	return v.m.createTenant(t)
}

func (m *Memory) GetTenant(_ context.Context, id ledger.TenantID) (ledger.Tenant, error) {
	defer m.lock()()
	return m.getTenant(id)
}

func (v *txView) GetTenant(_ context.Context, id ledger.TenantID) (ledger.Tenant, error) {
	return v.m.getTenant(id)
}

func (m *Memory) ListTenants(_ context.Context, houseID ledger.HouseID) ([]ledger.Tenant, error) {
	defer m.lock()()
	return m.listTenants(houseID), nil
}

func (v *txView) ListTenants(_ context.Context, houseID ledger.HouseID) ([]ledger.Tenant, error) {
	return v.m.listTenants(houseID), nil
}

func (m *Memory) UpdateTenant(_ context.Context, t ledger.Tenant) error {
	defer m.lock()()
	return m.updateTenant(t)
}

func (v *txView) UpdateTenant(_ context.Context, t ledger.Tenant) error {
	return v.m.updateTenant(t)
}

func (m *Memory) DeleteTenant(_ context.Context, id ledger.TenantID) error {
	defer m.lock()()
	return m.deleteTenant(id)
}

func (v *txView) DeleteTenant(_ context.Context, id ledger.TenantID) error {
	return v.m.deleteTenant(id)
}

func (m *Memory) CountActiveTenants(_ context.Context, houseID ledger.HouseID) (int, error) {
	defer m.lock()()
	return m.countActiveTenants(houseID), nil
}

func (v *txView) CountActiveTenants(_ context.Context, houseID ledger.HouseID) (int, error) {
	return v.m.countActiveTenants(houseID), nil
}

func (m *Memory) ActiveTenant(_ context.Context, houseID ledger.HouseID) (*ledger.Tenant, error) {
	defer m.lock()()
	return m.activeTenant(houseID), nil
}

func (v *txView) ActiveTenant(_ context.Context, houseID ledger.HouseID) (*ledger.Tenant, error) {
	return v.m.activeTenant(houseID), nil
}

// =============================================================================
// UTILITY BILLS & HOUSE BILLS
// =============================================================================

func (m *Memory) CreateUtilityBill(_ context.Context, b ledger.UtilityBill) (ledger.UtilityBillID, error) {
	defer m.lock()()
	return m.createUtilityBill(b)
}

func (v *txView) CreateUtilityBill(_ context.Context, b ledger.UtilityBill) (ledger.UtilityBillID, error) {
	return v.m.createUtilityBill(b)
}

func (m *Memory) GetUtilityBill(_ context.Context, id ledger.UtilityBillID) (ledger.UtilityBill, error) {
	defer m.lock()()
	return m.getUtilityBill(id)
}

func (v *txView) GetUtilityBill(_ context.Context, id ledger.UtilityBillID) (ledger.UtilityBill, error) {
	return v.m.getUtilityBill(id)
}

func (m *Memory) ListUtilityBills(_ context.Context, buildingID ledger.BuildingID) ([]ledger.UtilityBill, error) {
	defer m.lock()()
	return m.listUtilityBills(buildingID), nil
}

func (v *txView) ListUtilityBills(_ context.Context, buildingID ledger.BuildingID) ([]ledger.UtilityBill, error) {
	return v.m.listUtilityBills(buildingID), nil
}

func (m *Memory) SetUtilityBillPaid(_ context.Context, id ledger.UtilityBillID, paid bool) error {
	defer m.lock()()
	return m.setUtilityBillPaid(id, paid)
}

func (v *txView) SetUtilityBillPaid(_ context.Context, id ledger.UtilityBillID, paid bool) error {
	return v.m.setUtilityBillPaid(id, paid)
}

func (m *Memory) DeleteUtilityBill(_ context.Context, id ledger.UtilityBillID) error {
	defer m.lock()()
	return m.deleteUtilityBill(id)
}

func (v *txView) DeleteUtilityBill(_ context.Context, id ledger.UtilityBillID) error {
	return v.m.deleteUtilityBill(id)
}

func (m *Memory) CreateHouseBill(_ context.Context, hb ledger.HouseBill) (ledger.HouseBillID, error) {
	defer m.lock()()
	return m.createHouseBill(hb)
}

func (v *txView) CreateHouseBill(_ context.Context, hb ledger.HouseBill) (ledger.HouseBillID, error) {
	return v.m.createHouseBill(hb)
}

func (m *Memory) GetHouseBill(_ context.Context, id ledger.HouseBillID) (ledger.HouseBill, error) {
	defer m.lock()()
	return m.getHouseBill(id)
}

func (v *txView) GetHouseBill(_ context.Context, id ledger.HouseBillID) (ledger.HouseBill, error) {
	return v.m.getHouseBill(id)
}

func (m *Memory) ListHouseBillsByUtilityBill(_ context.Context, id ledger.UtilityBillID) ([]ledger.HouseBill, error) {
	defer m.lock()()
	return m.filterHouseBills(func(hb ledger.HouseBill) bool { return hb.UtilityBillID == id }), nil
}

func (v *txView) ListHouseBillsByUtilityBill(_ context.Context, id ledger.UtilityBillID) ([]ledger.HouseBill, error) {
	return v.m.filterHouseBills(func(hb ledger.HouseBill) bool { return hb.UtilityBillID == id }), nil
}

func (m *Memory) ListHouseBillsByHouse(_ context.Context, id ledger.HouseID) ([]ledger.HouseBill, error) {
	defer m.lock()()
	return m.filterHouseBills(func(hb ledger.HouseBill) bool { return hb.HouseID == id }), nil
}

func (v *txView) ListHouseBillsByHouse(_ context.Context, id ledger.HouseID) ([]ledger.HouseBill, error) {
	return v.m.filterHouseBills(func(hb ledger.HouseBill) bool { return hb.HouseID == id }), nil
}

func (m *Memory) ListUnpaidHouseBills(_ context.Context) ([]ledger.HouseBill, error) {
	defer m.lock()()
	return m.filterHouseBills(func(hb ledger.HouseBill) bool { return !hb.IsPaid }), nil
}

func (v *txView) ListUnpaidHouseBills(_ context.Context) ([]ledger.HouseBill, error) {
	return v.m.filterHouseBills(func(hb ledger.HouseBill) bool { return !hb.IsPaid }), nil
}

func (m *Memory) SetHouseBillPaid(_ context.Context, id ledger.HouseBillID, paid bool) error {
	defer m.lock()()
	return m.setHouseBillPaid(id, paid)
}

func (v *txView) SetHouseBillPaid(_ context.Context, id ledger.HouseBillID, paid bool) error {
	return v.m.setHouseBillPaid(id, paid)
}

// =============================================================================
// SERVICE PROVIDERS & RECORDS
// =============================================================================

func (m *Memory) CreateServiceProvider(_ context.Context, p ledger.ServiceProvider) (ledger.ServiceProviderID, error) {
	defer m.lock()()
	return m.createServiceProvider(p)
}

func (v *txView) CreateServiceProvider(_ context.Context, p ledger.ServiceProvider) (ledger.ServiceProviderID, error) {
	return v.m.createServiceProvider(p)
}

func (m *Memory) GetServiceProvider(_ context.Context, id ledger.ServiceProviderID) (ledger.ServiceProvider, error) {
	defer m.lock()()
	return m.getServiceProvider(id)
}

func (v *txView) GetServiceProvider(_ context.Context, id ledger.ServiceProviderID) (ledger.ServiceProvider, error) {
	return v.m.getServiceProvider(id)
}

func (m *Memory) ListServiceProviders(_ context.Context) ([]ledger.ServiceProvider, error) {
	defer m.lock()()
	return m.listServiceProviders(), nil
}

func (v *txView) ListServiceProviders(_ context.Context) ([]ledger.ServiceProvider, error) {
	return v.m.listServiceProviders(), nil
}

func (m *Memory) DeleteServiceProvider(_ context.Context, id ledger.ServiceProviderID) error {
	defer m.lock()()
	return m.deleteServiceProvider(id)
}

func (v *txView) DeleteServiceProvider(_ context.Context, id ledger.ServiceProviderID) error {
	return v.m.deleteServiceProvider(id)
}

func (m *Memory) CreateServiceRecord(_ context.Context, r ledger.ServiceRecord) (ledger.ServiceRecordID, error) {
	defer m.lock()()
	return m.createServiceRecord(r)
}

func (v *txView) CreateServiceRecord(_ context.Context, r ledger.ServiceRecord) (ledger.ServiceRecordID, error) {
	return v.m.createServiceRecord(r)
}

func (m *Memory) GetServiceRecord(_ context.Context, id ledger.ServiceRecordID) (ledger.ServiceRecord, error) {
	defer m.lock()()
	return m.getServiceRecord(id)
}

func (v *txView) GetServiceRecord(_ context.Context, id ledger.ServiceRecordID) (ledger.ServiceRecord, error) {
	return v.m.getServiceRecord(id)
}

func (m *Memory) ListServiceRecords(_ context.Context, houseID ledger.HouseID) ([]ledger.ServiceRecord, error) {
	defer m.lock()()
	return m.listServiceRecords(houseID), nil
}

func (v *txView) ListServiceRecords(_ context.Context, houseID ledger.HouseID) ([]ledger.ServiceRecord, error) {
	return v.m.listServiceRecords(houseID), nil
}

func (m *Memory) UpdateServiceRecord(_ context.Context, r ledger.ServiceRecord) error {
	defer m.lock()()
	return m.updateServiceRecord(r)
}

func (v *txView) UpdateServiceRecord(_ context.Context, r ledger.ServiceRecord) error {
	return v.m.updateServiceRecord(r)
}

func (m *Memory) DeleteServiceRecord(_ context.Context, id ledger.ServiceRecordID) error {
	defer m.lock()()
	return m.deleteServiceRecord(id)
}

func (v *txView) DeleteServiceRecord(_ context.Context, id ledger.ServiceRecordID) error {
	return v.m.deleteServiceRecord(id)
}
