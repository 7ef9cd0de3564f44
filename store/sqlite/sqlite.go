/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Durable storage for buildings, houses, tenants, utility bills, house
  bills and service records. The same SQL works on PostgreSQL with minor
  dialect changes (AUTOINCREMENT, placeholders).

KEY TABLES:
  buildings:         Properties
  houses:            Units within a building (meter types, occupancy flag)
  tenants:           Occupants of a house (at most one active)
  utility_bills:     Building-level electricity/water bills
  house_bills:       Per-house shares of a utility bill
  service_providers: Maintenance vendors
  service_records:   Work orders against a house

REFERENTIAL INTEGRITY:
  Foreign keys are declared WITHOUT "ON DELETE CASCADE". Deletes cascade
  in Go (deleteHouseTx, deleteUtilityBillTx, ...) inside one transaction,
  so the behaviour is the same here and in the memory store, and a missed
  child delete fails loudly on the foreign key instead of orphaning rows.

MONEY AND DATES:
  Amounts are stored as TEXT decimal strings (never REAL) and read back
  with shopspring/decimal. Dates are TEXT YYYY-MM-DD; timestamps RFC3339.

CONCURRENCY:
  The pool is limited to one connection. Every statement, inside or
  outside a transaction, is serialized by database/sql. This also keeps
  ":memory:" databases from splitting across connections.

USAGE:
  store, err := sqlite.New("./data/rentals.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/rental-ledger/ledger"
)

var (
	_ ledger.TxStore  = (*Store)(nil)
	_ ledger.Resetter = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  querier
	tx *sql.Tx // non-nil when this Store is bound to a transaction
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS buildings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS houses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		building_id INTEGER NOT NULL REFERENCES buildings(id),
		house_number TEXT NOT NULL,
		house_type TEXT NOT NULL,
		rent_amount TEXT NOT NULL,
		is_occupied INTEGER NOT NULL DEFAULT 0,
		electricity_meter TEXT NOT NULL DEFAULT 'shared',
		water_meter TEXT NOT NULL DEFAULT 'shared',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_houses_building
		ON houses(building_id);

	CREATE TABLE IF NOT EXISTS tenants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id INTEGER NOT NULL REFERENCES houses(id),
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT,
		occupants INTEGER NOT NULL DEFAULT 1,
		move_in_date TEXT NOT NULL,
		move_out_date TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		rent_due_day INTEGER,
		created_at TEXT NOT NULL
	);

	-- Occupancy lookups (hot path for every tenant mutation and apportionment)
	CREATE INDEX IF NOT EXISTS idx_tenants_house_active
		ON tenants(house_id, is_active);

	CREATE TABLE IF NOT EXISTS utility_bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		building_id INTEGER NOT NULL REFERENCES buildings(id),
		bill_type TEXT NOT NULL CHECK (bill_type IN ('electricity', 'water')),
		bill_date TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		is_paid INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_utility_bills_building_date
		ON utility_bills(building_id, bill_date DESC);

	CREATE TABLE IF NOT EXISTS house_bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id INTEGER NOT NULL REFERENCES houses(id),
		utility_bill_id INTEGER NOT NULL REFERENCES utility_bills(id),
		amount TEXT NOT NULL,
		is_paid INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_house_bills_utility_bill
		ON house_bills(utility_bill_id);
	CREATE INDEX IF NOT EXISTS idx_house_bills_house
		ON house_bills(house_id);
	-- Arrears scan
	CREATE INDEX IF NOT EXISTS idx_house_bills_unpaid
		ON house_bills(is_paid) WHERE is_paid = 0;

	CREATE TABLE IF NOT EXISTS service_providers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		service TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS service_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id INTEGER NOT NULL REFERENCES houses(id),
		provider_id INTEGER REFERENCES service_providers(id),
		description TEXT NOT NULL,
		cost TEXT NOT NULL DEFAULT '0',
		service_date TEXT NOT NULL,
		is_completed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_service_records_house
		ON service_records(house_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
// A Store already bound to a transaction runs fn in that transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	return s.inTx(ctx, func(ts *Store) error { return fn(ts) })
}

func (s *Store) inTx(ctx context.Context, fn func(*Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset deletes all data (children first, for the foreign keys).
func (s *Store) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(ts *Store) error {
		for _, table := range []string{
			"house_bills", "service_records", "tenants", "utility_bills",
			"houses", "service_providers", "buildings",
		} {
			if _, err := ts.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// BUILDINGS
// =============================================================================

// CreateBuilding inserts a building and returns its ID.
func (s *Store) CreateBuilding(ctx context.Context, b ledger.Building) (ledger.BuildingID, error) {
	id, err := s.insert(ctx,
		"INSERT INTO buildings (name, address, created_at) VALUES (?, ?, ?)",
		b.Name, b.Address, now(),
	)
	return ledger.BuildingID(id), err
}

// GetBuilding retrieves a building by ID.
func (s *Store) GetBuilding(ctx context.Context, id ledger.BuildingID) (ledger.Building, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, name, address, created_at FROM buildings WHERE id = ?", id)
	b, err := scanBuilding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ledger.NotFound("building", int64(id))
	}
	return b, err
}

// ListBuildings returns all buildings ordered by name.
func (s *Store) ListBuildings(ctx context.Context) ([]ledger.Building, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, name, address, created_at FROM buildings ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query buildings: %w", err)
	}
	defer rows.Close()

	var buildings []ledger.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// UpdateBuilding updates name and address.
func (s *Store) UpdateBuilding(ctx context.Context, b ledger.Building) error {
	return s.update(ctx, "building", int64(b.ID),
		"UPDATE buildings SET name = ?, address = ? WHERE id = ?",
		b.Name, b.Address, b.ID,
	)
}

// DeleteBuilding deletes a building with its houses and utility bills.
func (s *Store) DeleteBuilding(ctx context.Context, id ledger.BuildingID) error {
	return s.inTx(ctx, func(ts *Store) error {
		if err := ts.mustExist(ctx, "buildings", "building", int64(id)); err != nil {
			return err
		}
		houseIDs, err := ts.ids(ctx, "SELECT id FROM houses WHERE building_id = ?", id)
		if err != nil {
			return err
		}
		for _, hid := range houseIDs {
			if err := ts.deleteHouseTx(ctx, ledger.HouseID(hid)); err != nil {
				return err
			}
		}
		billIDs, err := ts.ids(ctx, "SELECT id FROM utility_bills WHERE building_id = ?", id)
		if err != nil {
			return err
		}
		for _, bid := range billIDs {
			if err := ts.deleteUtilityBillTx(ctx, ledger.UtilityBillID(bid)); err != nil {
				return err
			}
		}
		_, err = ts.q.ExecContext(ctx, "DELETE FROM buildings WHERE id = ?", id)
		return err
	})
}

func scanBuilding(row scanner) (ledger.Building, error) {
	var (
		b         ledger.Building
		createdAt string
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Address, &createdAt); err != nil {
		return b, err
	}
	var dec decoder
	b.CreatedAt = dec.timestamp("buildings.created_at", createdAt)
	return b, dec.err
}

// =============================================================================
// HOUSES
// =============================================================================

const houseColumns = `id, building_id, house_number, house_type, rent_amount, is_occupied,
	electricity_meter, water_meter, created_at`

// CreateHouse inserts a house. New houses are never occupied.
func (s *Store) CreateHouse(ctx context.Context, h ledger.House) (ledger.HouseID, error) {
	if err := s.mustExist(ctx, "buildings", "building", int64(h.BuildingID)); err != nil {
		return 0, err
	}
	id, err := s.insert(ctx, `
		INSERT INTO houses (building_id, house_number, house_type, rent_amount, is_occupied,
		                    electricity_meter, water_meter, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		h.BuildingID, h.HouseNumber, h.Type, money(h.RentAmount),
		h.ElectricityMeter, h.WaterMeter, now(),
	)
	return ledger.HouseID(id), err
}

// GetHouse retrieves a house by ID.
func (s *Store) GetHouse(ctx context.Context, id ledger.HouseID) (ledger.House, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+houseColumns+" FROM houses WHERE id = ?", id)
	h, err := scanHouse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return h, ledger.NotFound("house", int64(id))
	}
	return h, err
}

// ListHouses returns the houses of a building (all houses for 0).
func (s *Store) ListHouses(ctx context.Context, buildingID ledger.BuildingID) ([]ledger.House, error) {
	query := "SELECT " + houseColumns + " FROM houses"
	var args []any
	if buildingID != 0 {
		query += " WHERE building_id = ?"
		args = append(args, buildingID)
	}
	query += " ORDER BY id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query houses: %w", err)
	}
	defer rows.Close()

	var houses []ledger.House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, err
		}
		houses = append(houses, h)
	}
	return houses, rows.Err()
}

// UpdateHouse updates everything except the occupancy flag.
func (s *Store) UpdateHouse(ctx context.Context, h ledger.House) error {
	if err := s.mustExist(ctx, "buildings", "building", int64(h.BuildingID)); err != nil {
		return err
	}
	return s.update(ctx, "house", int64(h.ID), `
		UPDATE houses SET building_id = ?, house_number = ?, house_type = ?, rent_amount = ?,
		                  electricity_meter = ?, water_meter = ?
		WHERE id = ?`,
		h.BuildingID, h.HouseNumber, h.Type, money(h.RentAmount),
		h.ElectricityMeter, h.WaterMeter, h.ID,
	)
}

// SetHouseOccupied sets the derived occupancy flag.
func (s *Store) SetHouseOccupied(ctx context.Context, id ledger.HouseID, occupied bool) error {
	return s.update(ctx, "house", int64(id),
		"UPDATE houses SET is_occupied = ? WHERE id = ?", occupied, id)
}

// DeleteHouse deletes a house with its tenants, house bills and service records.
func (s *Store) DeleteHouse(ctx context.Context, id ledger.HouseID) error {
	return s.inTx(ctx, func(ts *Store) error {
		if err := ts.mustExist(ctx, "houses", "house", int64(id)); err != nil {
			return err
		}
		return ts.deleteHouseTx(ctx, id)
	})
}

func (s *Store) deleteHouseTx(ctx context.Context, id ledger.HouseID) error {
	for _, stmt := range []string{
		"DELETE FROM tenants WHERE house_id = ?",
		"DELETE FROM house_bills WHERE house_id = ?",
		"DELETE FROM service_records WHERE house_id = ?",
		"DELETE FROM houses WHERE id = ?",
	} {
		if _, err := s.q.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete house %d: %w", id, err)
		}
	}
	return nil
}

// HouseSnapshots returns the apportionment view of a building's houses.
func (s *Store) HouseSnapshots(ctx context.Context, buildingID ledger.BuildingID) ([]ledger.HouseSnapshot, error) {
	query := `
		SELECT h.id, h.house_number, h.electricity_meter, h.water_meter, h.is_occupied,
		       COALESCE((SELECT SUM(t.occupants) FROM tenants t
		                 WHERE t.house_id = h.id AND t.is_active = 1), 0)
		FROM houses h
		WHERE h.building_id = ?
		ORDER BY h.id
	`
	rows, err := s.q.QueryContext(ctx, query, buildingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query house snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []ledger.HouseSnapshot
	for rows.Next() {
		var h ledger.HouseSnapshot
		if err := rows.Scan(&h.ID, &h.HouseNumber, &h.ElectricityMeter, &h.WaterMeter,
			&h.IsOccupied, &h.ActiveOccupants); err != nil {
			return nil, fmt.Errorf("failed to scan house snapshot: %w", err)
		}
		snaps = append(snaps, h)
	}
	return snaps, rows.Err()
}

func scanHouse(row scanner) (ledger.House, error) {
	var (
		h         ledger.House
		rent      string
		createdAt string
	)
	err := row.Scan(&h.ID, &h.BuildingID, &h.HouseNumber, &h.Type, &rent, &h.IsOccupied,
		&h.ElectricityMeter, &h.WaterMeter, &createdAt)
	if err != nil {
		return h, err
	}
	var dec decoder
	h.RentAmount = dec.money("houses.rent_amount", rent)
	h.CreatedAt = dec.timestamp("houses.created_at", createdAt)
	return h, dec.err
}

// =============================================================================
// TENANTS
// =============================================================================

const tenantColumns = `id, house_id, name, phone, email, occupants, move_in_date, move_out_date,
	is_active, rent_due_day, created_at`

// CreateTenant inserts a tenant. Occupancy is the caller's concern.
func (s *Store) CreateTenant(ctx context.Context, t ledger.Tenant) (ledger.TenantID, error) {
	if err := s.mustExist(ctx, "houses", "house", int64(t.HouseID)); err != nil {
		return 0, err
	}
	id, err := s.insert(ctx, `
		INSERT INTO tenants (house_id, name, phone, email, occupants, move_in_date, move_out_date,
		                     is_active, rent_due_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.HouseID, t.Name, t.Phone, nullString(t.Email), t.Occupants, t.MoveInDate.String(),
		nullDate(t.MoveOutDate), t.IsActive, nullInt(t.RentDueDay), now(),
	)
	return ledger.TenantID(id), err
}

// GetTenant retrieves a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, id ledger.TenantID) (ledger.Tenant, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE id = ?", id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ledger.NotFound("tenant", int64(id))
	}
	return t, err
}

// ListTenants returns the tenants of a house (all tenants for 0).
func (s *Store) ListTenants(ctx context.Context, houseID ledger.HouseID) ([]ledger.Tenant, error) {
	query := "SELECT " + tenantColumns + " FROM tenants"
	var args []any
	if houseID != 0 {
		query += " WHERE house_id = ?"
		args = append(args, houseID)
	}
	query += " ORDER BY id"
	return s.queryTenants(ctx, query, args...)
}

// UpdateTenant updates every tenant field.
func (s *Store) UpdateTenant(ctx context.Context, t ledger.Tenant) error {
	if err := s.mustExist(ctx, "houses", "house", int64(t.HouseID)); err != nil {
		return err
	}
	return s.update(ctx, "tenant", int64(t.ID), `
		UPDATE tenants SET house_id = ?, name = ?, phone = ?, email = ?, occupants = ?,
		                   move_in_date = ?, move_out_date = ?, is_active = ?, rent_due_day = ?
		WHERE id = ?`,
		t.HouseID, t.Name, t.Phone, nullString(t.Email), t.Occupants, t.MoveInDate.String(),
		nullDate(t.MoveOutDate), t.IsActive, nullInt(t.RentDueDay), t.ID,
	)
}

// DeleteTenant deletes a tenant.
func (s *Store) DeleteTenant(ctx context.Context, id ledger.TenantID) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM tenants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant %d: %w", id, err)
	}
	return affected(res, "tenant", int64(id))
}

// CountActiveTenants counts the active tenants of a house.
func (s *Store) CountActiveTenants(ctx context.Context, houseID ledger.HouseID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tenants WHERE house_id = ? AND is_active = 1", houseID,
	).Scan(&count)
	return count, err
}

// ActiveTenant returns the house's active tenant, or nil.
func (s *Store) ActiveTenant(ctx context.Context, houseID ledger.HouseID) (*ledger.Tenant, error) {
	tenants, err := s.queryTenants(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE house_id = ? AND is_active = 1 ORDER BY id LIMIT 1",
		houseID)
	if err != nil || len(tenants) == 0 {
		return nil, err
	}
	return &tenants[0], nil
}

func (s *Store) queryTenants(ctx context.Context, query string, args ...any) ([]ledger.Tenant, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []ledger.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func scanTenant(row scanner) (ledger.Tenant, error) {
	var (
		t          ledger.Tenant
		email      sql.NullString
		moveIn     string
		moveOut    sql.NullString
		rentDueDay sql.NullInt64
		createdAt  string
	)
	err := row.Scan(&t.ID, &t.HouseID, &t.Name, &t.Phone, &email, &t.Occupants, &moveIn,
		&moveOut, &t.IsActive, &rentDueDay, &createdAt)
	if err != nil {
		return t, err
	}
	var dec decoder
	t.Email = email.String
	t.MoveInDate = dec.date("tenants.move_in_date", moveIn)
	if moveOut.Valid {
		d := dec.date("tenants.move_out_date", moveOut.String)
		t.MoveOutDate = &d
	}
	if rentDueDay.Valid {
		day := int(rentDueDay.Int64)
		t.RentDueDay = &day
	}
	t.CreatedAt = dec.timestamp("tenants.created_at", createdAt)
	return t, dec.err
}

// =============================================================================
// UTILITY BILLS
// =============================================================================

const billColumns = "id, building_id, bill_type, bill_date, total_amount, is_paid, created_at"

// CreateUtilityBill inserts a utility bill.
func (s *Store) CreateUtilityBill(ctx context.Context, b ledger.UtilityBill) (ledger.UtilityBillID, error) {
	if err := s.mustExist(ctx, "buildings", "building", int64(b.BuildingID)); err != nil {
		return 0, err
	}
	id, err := s.insert(ctx, `
		INSERT INTO utility_bills (building_id, bill_type, bill_date, total_amount, is_paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.BuildingID, b.BillType, b.BillDate.String(), money(b.TotalAmount), b.IsPaid, now(),
	)
	return ledger.UtilityBillID(id), err
}

// GetUtilityBill retrieves a utility bill by ID.
func (s *Store) GetUtilityBill(ctx context.Context, id ledger.UtilityBillID) (ledger.UtilityBill, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+billColumns+" FROM utility_bills WHERE id = ?", id)
	b, err := scanUtilityBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ledger.NotFound("utility bill", int64(id))
	}
	return b, err
}

// ListUtilityBills returns a building's bills (all for 0), newest first.
func (s *Store) ListUtilityBills(ctx context.Context, buildingID ledger.BuildingID) ([]ledger.UtilityBill, error) {
	query := "SELECT " + billColumns + " FROM utility_bills"
	var args []any
	if buildingID != 0 {
		query += " WHERE building_id = ?"
		args = append(args, buildingID)
	}
	query += " ORDER BY bill_date DESC, id DESC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query utility bills: %w", err)
	}
	defer rows.Close()

	var bills []ledger.UtilityBill
	for rows.Next() {
		b, err := scanUtilityBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// SetUtilityBillPaid sets the paid flag of a utility bill.
func (s *Store) SetUtilityBillPaid(ctx context.Context, id ledger.UtilityBillID, paid bool) error {
	return s.update(ctx, "utility bill", int64(id),
		"UPDATE utility_bills SET is_paid = ? WHERE id = ?", paid, id)
}

// DeleteUtilityBill deletes a utility bill and its house bills.
func (s *Store) DeleteUtilityBill(ctx context.Context, id ledger.UtilityBillID) error {
	return s.inTx(ctx, func(ts *Store) error {
		if err := ts.mustExist(ctx, "utility_bills", "utility bill", int64(id)); err != nil {
			return err
		}
		return ts.deleteUtilityBillTx(ctx, id)
	})
}

func (s *Store) deleteUtilityBillTx(ctx context.Context, id ledger.UtilityBillID) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM house_bills WHERE utility_bill_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete house bills of %d: %w", id, err)
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM utility_bills WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete utility bill %d: %w", id, err)
	}
	return nil
}

func scanUtilityBill(row scanner) (ledger.UtilityBill, error) {
	var (
		b         ledger.UtilityBill
		billDate  string
		total     string
		createdAt string
	)
	if err := row.Scan(&b.ID, &b.BuildingID, &b.BillType, &billDate, &total, &b.IsPaid, &createdAt); err != nil {
		return b, err
	}
	var dec decoder
	b.BillDate = dec.date("utility_bills.bill_date", billDate)
	b.TotalAmount = dec.money("utility_bills.total_amount", total)
	b.CreatedAt = dec.timestamp("utility_bills.created_at", createdAt)
	return b, dec.err
}

// =============================================================================
// HOUSE BILLS
// =============================================================================

const houseBillColumns = "id, house_id, utility_bill_id, amount, is_paid, created_at"

// CreateHouseBill inserts one house's share of a utility bill.
func (s *Store) CreateHouseBill(ctx context.Context, hb ledger.HouseBill) (ledger.HouseBillID, error) {
	if err := s.mustExist(ctx, "houses", "house", int64(hb.HouseID)); err != nil {
		return 0, err
	}
	if err := s.mustExist(ctx, "utility_bills", "utility bill", int64(hb.UtilityBillID)); err != nil {
		return 0, err
	}
	id, err := s.insert(ctx, `
		INSERT INTO house_bills (house_id, utility_bill_id, amount, is_paid, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		hb.HouseID, hb.UtilityBillID, money(hb.Amount), hb.IsPaid, now(),
	)
	return ledger.HouseBillID(id), err
}

// GetHouseBill retrieves a house bill by ID.
func (s *Store) GetHouseBill(ctx context.Context, id ledger.HouseBillID) (ledger.HouseBill, error) {
	hbs, err := s.queryHouseBills(ctx, "SELECT "+houseBillColumns+" FROM house_bills WHERE id = ?", id)
	if err != nil {
		return ledger.HouseBill{}, err
	}
	if len(hbs) == 0 {
		return ledger.HouseBill{}, ledger.NotFound("house bill", int64(id))
	}
	return hbs[0], nil
}

// ListHouseBillsByUtilityBill returns the shares of one utility bill.
func (s *Store) ListHouseBillsByUtilityBill(ctx context.Context, id ledger.UtilityBillID) ([]ledger.HouseBill, error) {
	return s.queryHouseBills(ctx,
		"SELECT "+houseBillColumns+" FROM house_bills WHERE utility_bill_id = ? ORDER BY id", id)
}

// ListHouseBillsByHouse returns every share billed to one house.
func (s *Store) ListHouseBillsByHouse(ctx context.Context, id ledger.HouseID) ([]ledger.HouseBill, error) {
	return s.queryHouseBills(ctx,
		"SELECT "+houseBillColumns+" FROM house_bills WHERE house_id = ? ORDER BY id", id)
}

// ListUnpaidHouseBills returns every unpaid share.
func (s *Store) ListUnpaidHouseBills(ctx context.Context) ([]ledger.HouseBill, error) {
	return s.queryHouseBills(ctx,
		"SELECT "+houseBillColumns+" FROM house_bills WHERE is_paid = 0 ORDER BY id")
}

// SetHouseBillPaid sets the paid flag of a house bill.
func (s *Store) SetHouseBillPaid(ctx context.Context, id ledger.HouseBillID, paid bool) error {
	return s.update(ctx, "house bill", int64(id),
		"UPDATE house_bills SET is_paid = ? WHERE id = ?", paid, id)
}

func (s *Store) queryHouseBills(ctx context.Context, query string, args ...any) ([]ledger.HouseBill, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query house bills: %w", err)
	}
	defer rows.Close()

	var hbs []ledger.HouseBill
	for rows.Next() {
		var (
			hb        ledger.HouseBill
			amount    string
			createdAt string
		)
		if err := rows.Scan(&hb.ID, &hb.HouseID, &hb.UtilityBillID, &amount, &hb.IsPaid, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan house bill: %w", err)
		}
		var dec decoder
		hb.Amount = dec.money("house_bills.amount", amount)
		hb.CreatedAt = dec.timestamp("house_bills.created_at", createdAt)
		if dec.err != nil {
			return nil, dec.err
		}
		hbs = append(hbs, hb)
	}
	return hbs, rows.Err()
}

// Helper functions

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) update(ctx context.Context, kind string, id int64, query string, args ...any) error {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %d: %w", kind, id, err)
	}
	return affected(res, kind, id)
}

func (s *Store) mustExist(ctx context.Context, table, kind string, id int64) error {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return ledger.NotFound(kind, id)
	}
	return nil
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func affected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.NotFound(kind, id)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDate(d *ledger.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func money(d decimal.Decimal) string {
	return ledger.FormatMoney(d)
}

// decoder converts TEXT columns back into domain values and keeps the
// first failure, so a corrupt row fails the read instead of becoming a zero.
type decoder struct {
	err error
}

func (d *decoder) fail(column, raw string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("corrupt %s %q: %w", column, raw, err)
	}
}

func (d *decoder) money(column, raw string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		d.fail(column, raw, err)
		return decimal.Zero
	}
	return v
}

func (d *decoder) date(column, raw string) ledger.Date {
	v, err := ledger.ParseDate(raw)
	if err != nil {
		d.fail(column, raw, err)
	}
	return v
}

func (d *decoder) timestamp(column, raw string) time.Time {
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		d.fail(column, raw, err)
	}
	return v
}
