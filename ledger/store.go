/*
store.go - Persistence contract consumed by the core

PURPOSE:
  Defines the interface between the domain logic and the database. The
  core packages (billing, occupancy, arrears) only ever see these
  interfaces; SQLite and in-memory implementations live elsewhere.

KEY INTERFACES:
  BuildingStore, HouseStore, TenantStore, BillStore, ServiceStore:
                Per-entity CRUD, split so callers can depend on a slice
  Store:        All of the above
  TxStore:      Store plus WithTx for all-or-nothing multi-step writes

CASCADES:
  Deletes are application-level, not left to ON DELETE CASCADE:
  - DeleteBuilding:        houses (and their dependents), utility bills
  - DeleteHouse:           tenants, house bills, service records
  - DeleteUtilityBill:     house bills
  - DeleteServiceProvider: its service records
  Every implementation performs the cascade atomically.

NOT FOUND:
  Get, Update, Delete and Set methods return an error wrapping ErrNotFound
  when the row doesn't exist. Create methods do the same for a missing
  parent row.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - ledger/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - billing/manager.go: Uses TxStore.WithTx around bill creation
  - occupancy/tracker.go: Uses TenantStore + HouseStore
*/
package ledger

import "context"

// =============================================================================
// PER-ENTITY STORES
// =============================================================================

type BuildingStore interface {
	CreateBuilding(ctx context.Context, b Building) (BuildingID, error)
	GetBuilding(ctx context.Context, id BuildingID) (Building, error)
	ListBuildings(ctx context.Context) ([]Building, error)
	UpdateBuilding(ctx context.Context, b Building) error
	DeleteBuilding(ctx context.Context, id BuildingID) error
}

type HouseStore interface {
	CreateHouse(ctx context.Context, h House) (HouseID, error)
	GetHouse(ctx context.Context, id HouseID) (House, error)
	// ListHouses returns the houses of a building, or every house when
	// buildingID is 0. Ordered by ID.
	ListHouses(ctx context.Context, buildingID BuildingID) ([]House, error)
	// UpdateHouse writes every field except IsOccupied.
	UpdateHouse(ctx context.Context, h House) error
	SetHouseOccupied(ctx context.Context, id HouseID, occupied bool) error
	DeleteHouse(ctx context.Context, id HouseID) error

	// HouseSnapshots returns the apportionment view of every house in the
	// building, with the occupants of its active tenants.
	HouseSnapshots(ctx context.Context, buildingID BuildingID) ([]HouseSnapshot, error)
}

type TenantStore interface {
	CreateTenant(ctx context.Context, t Tenant) (TenantID, error)
	GetTenant(ctx context.Context, id TenantID) (Tenant, error)
	// ListTenants returns the tenants of a house, or every tenant when
	// houseID is 0. Ordered by ID.
	ListTenants(ctx context.Context, houseID HouseID) ([]Tenant, error)
	UpdateTenant(ctx context.Context, t Tenant) error
	DeleteTenant(ctx context.Context, id TenantID) error

	CountActiveTenants(ctx context.Context, houseID HouseID) (int, error)
	// ActiveTenant returns the house's active tenant, or nil if none.
	// If several are active the lowest ID wins.
	ActiveTenant(ctx context.Context, houseID HouseID) (*Tenant, error)
}

type BillStore interface {
	CreateUtilityBill(ctx context.Context, b UtilityBill) (UtilityBillID, error)
	GetUtilityBill(ctx context.Context, id UtilityBillID) (UtilityBill, error)
	// ListUtilityBills returns a building's bills, or all bills when
	// buildingID is 0. Newest bill date first.
	ListUtilityBills(ctx context.Context, buildingID BuildingID) ([]UtilityBill, error)
	SetUtilityBillPaid(ctx context.Context, id UtilityBillID, paid bool) error
	DeleteUtilityBill(ctx context.Context, id UtilityBillID) error

	CreateHouseBill(ctx context.Context, hb HouseBill) (HouseBillID, error)
	GetHouseBill(ctx context.Context, id HouseBillID) (HouseBill, error)
	ListHouseBillsByUtilityBill(ctx context.Context, id UtilityBillID) ([]HouseBill, error)
	ListHouseBillsByHouse(ctx context.Context, id HouseID) ([]HouseBill, error)
	ListUnpaidHouseBills(ctx context.Context) ([]HouseBill, error)
	SetHouseBillPaid(ctx context.Context, id HouseBillID, paid bool) error
}

type ServiceStore interface {
	CreateServiceProvider(ctx context.Context, p ServiceProvider) (ServiceProviderID, error)
	GetServiceProvider(ctx context.Context, id ServiceProviderID) (ServiceProvider, error)
	ListServiceProviders(ctx context.Context) ([]ServiceProvider, error)
	DeleteServiceProvider(ctx context.Context, id ServiceProviderID) error

	CreateServiceRecord(ctx context.Context, r ServiceRecord) (ServiceRecordID, error)
	GetServiceRecord(ctx context.Context, id ServiceRecordID) (ServiceRecord, error)
	// ListServiceRecords returns a house's records, or all when houseID is 0.
	ListServiceRecords(ctx context.Context, houseID HouseID) ([]ServiceRecord, error)
	UpdateServiceRecord(ctx context.Context, r ServiceRecord) error
	DeleteServiceRecord(ctx context.Context, id ServiceRecordID) error
}

// =============================================================================
// STORE
// =============================================================================

// Store is the full ledger persistence contract.
type Store interface {
	BuildingStore
	HouseStore
	TenantStore
	BillStore
	ServiceStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the given Store is
	// rolled back. If fn returns nil, the transaction is committed.
	// Calling WithTx on a Store already inside a transaction joins it.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Resetter clears every table. Used by demo scenarios.
type Resetter interface {
	Reset(ctx context.Context) error
}
