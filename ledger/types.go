/*
Package ledger provides the domain model for the rental ledger.

PURPOSE:
  This package holds the entities every other package speaks in: buildings,
  houses, tenants, utility bills and the per-house shares those bills are
  split into. It has no behaviour beyond validation and small helpers; the
  apportionment, billing, occupancy and arrears packages build on it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal rounded to MoneyScale places (never float64)
  - Date: a calendar day, ISO 8601 (YYYY-MM-DD) on the wire and on disk
  - IDs: store-assigned integers, one named type per entity
  - Meter types: which utilities need apportionment (shared) and which don't

DESIGN PRINCIPLES:
  1. Precision: every currency value is a decimal with two places
  2. Type Safety: distinct ID types prevent passing a HouseID as a TenantID
  3. Derived state: House.IsOccupied and UtilityBill.IsPaid are never set
     by callers directly; occupancy and billing maintain them

SEE ALSO:
  - errors.go: Sentinel and structured errors
  - store.go: Persistence contract consumed by the core
  - validate.go: Input validation for create/update operations
*/
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BuildingID int64
type HouseID int64
type TenantID int64
type UtilityBillID int64
type HouseBillID int64
type ServiceProviderID int64
type ServiceRecordID int64

// =============================================================================
// MONEY
// =============================================================================

// MoneyScale is the number of decimal places kept for currency (minor units).
const MoneyScale = 2

// RoundMoney rounds d to MoneyScale places (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ParseMoney parses a decimal string into a rounded currency value.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return RoundMoney(d), nil
}

// MustMoney is ParseMoney for literals in tests and scenarios.
func MustMoney(s string) decimal.Decimal {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatMoney renders d with exactly MoneyScale decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// =============================================================================
// DATE - calendar day without time-of-day
// =============================================================================

// DateLayout is the ISO 8601 calendar date layout used everywhere.
const DateLayout = "2006-01-02"

// Date is a calendar day normalised to UTC midnight.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

// DaysUntil returns the whole days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// ENUMERATIONS
// =============================================================================

// BillType identifies which utility a building-level bill is for.
type BillType string

const (
	BillElectricity BillType = "electricity"
	BillWater       BillType = "water"
)

func (t BillType) Valid() bool {
	return t == BillElectricity || t == BillWater
}

type HouseType string

const (
	HouseBedsitter   HouseType = "bedsitter"
	HouseSingle      HouseType = "single"
	HouseOneBedroom  HouseType = "one_bedroom"
	HouseTwoBedroom  HouseType = "two_bedroom"
	HouseOwnCompound HouseType = "own_compound"
)

func (t HouseType) Valid() bool {
	switch t {
	case HouseBedsitter, HouseSingle, HouseOneBedroom, HouseTwoBedroom, HouseOwnCompound:
		return true
	}
	return false
}

// MeterType describes how a house draws a utility. Only shared meters take
// part in apportionment; token and individual meters are billed to the
// tenant directly.
type MeterType string

const (
	MeterShared     MeterType = "shared"
	MeterToken      MeterType = "token"
	MeterIndividual MeterType = "individual"
)

// ValidFor reports whether m is an allowed meter type for the utility.
// Token meters exist only for electricity.
func (m MeterType) ValidFor(t BillType) bool {
	switch m {
	case MeterShared, MeterIndividual:
		return true
	case MeterToken:
		return t == BillElectricity
	}
	return false
}

// =============================================================================
// ENTITIES
// =============================================================================

type Building struct {
	ID        BuildingID
	Name      string
	Address   string
	CreatedAt time.Time
}

type House struct {
	ID               HouseID
	BuildingID       BuildingID
	HouseNumber      string
	Type             HouseType
	RentAmount       decimal.Decimal
	IsOccupied       bool // maintained by occupancy, never set by callers
	ElectricityMeter MeterType
	WaterMeter       MeterType
	CreatedAt        time.Time
}

// MeterFor returns the house's meter type for the given utility.
func (h House) MeterFor(t BillType) MeterType {
	if t == BillWater {
		return h.WaterMeter
	}
	return h.ElectricityMeter
}

type Tenant struct {
	ID          TenantID
	HouseID     HouseID
	Name        string
	Phone       string
	Email       string
	Occupants   int
	MoveInDate  Date
	MoveOutDate *Date
	IsActive    bool
	RentDueDay  *int
	CreatedAt   time.Time
}

type UtilityBill struct {
	ID          UtilityBillID
	BuildingID  BuildingID
	BillType    BillType
	BillDate    Date
	TotalAmount decimal.Decimal
	IsPaid      bool // derived from house bills, see billing
	CreatedAt   time.Time
}

// HouseBill is one house's apportioned share of a UtilityBill.
type HouseBill struct {
	ID            HouseBillID
	HouseID       HouseID
	UtilityBillID UtilityBillID
	Amount        decimal.Decimal
	IsPaid        bool
	CreatedAt     time.Time
}

type ServiceProvider struct {
	ID        ServiceProviderID
	Name      string
	Service   string
	Phone     string
	Email     string
	CreatedAt time.Time
}

// ServiceRecord is a maintenance work order against a house.
type ServiceRecord struct {
	ID          ServiceRecordID
	HouseID     HouseID
	ProviderID  *ServiceProviderID
	Description string
	Cost        decimal.Decimal
	ServiceDate Date
	IsCompleted bool
	CreatedAt   time.Time
}

// =============================================================================
// JOIN SHAPES
// =============================================================================

// HouseSnapshot is the view of a house the apportionment engine needs.
// ActiveOccupants is the occupant count of the house's active tenant, or 0.
type HouseSnapshot struct {
	ID               HouseID
	HouseNumber      string
	ElectricityMeter MeterType
	WaterMeter       MeterType
	IsOccupied       bool
	ActiveOccupants  int
}

func (h HouseSnapshot) MeterFor(t BillType) MeterType {
	if t == BillWater {
		return h.WaterMeter
	}
	return h.ElectricityMeter
}

// ArrearsRow is one outstanding house bill joined with who owes it.
type ArrearsRow struct {
	TenantID     TenantID
	TenantName   string
	TenantPhone  string
	HouseID      HouseID
	HouseNumber  string
	BuildingID   BuildingID
	BuildingName string
	HouseBillID  HouseBillID
	BillID       UtilityBillID
	BillType     BillType
	BillDate     Date
	Amount       decimal.Decimal
	IsPaid       bool
}
