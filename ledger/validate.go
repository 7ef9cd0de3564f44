package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks a building before it is written.
func (b Building) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	return nil
}

// Validate checks a house before it is written. IsOccupied is ignored.
func (h House) Validate() error {
	if h.BuildingID <= 0 {
		return &ValidationError{Field: "building_id", Message: "required"}
	}
	if strings.TrimSpace(h.HouseNumber) == "" {
		return &ValidationError{Field: "house_number", Message: "required"}
	}
	if !h.Type.Valid() {
		return &ValidationError{Field: "type", Message: "unknown house type " + string(h.Type)}
	}
	if !h.RentAmount.IsPositive() {
		return &ValidationError{Field: "rent_amount", Message: "must be positive", Cause: ErrNonPositiveAmount}
	}
	if !h.ElectricityMeter.ValidFor(BillElectricity) {
		return &ValidationError{Field: "electricity_meter", Message: "unknown meter type " + string(h.ElectricityMeter)}
	}
	if !h.WaterMeter.ValidFor(BillWater) {
		return &ValidationError{Field: "water_meter", Message: "unknown meter type " + string(h.WaterMeter)}
	}
	return nil
}

// Validate checks a tenant before it is written.
func (t Tenant) Validate() error {
	if t.HouseID <= 0 {
		return &ValidationError{Field: "house_id", Message: "required"}
	}
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if strings.TrimSpace(t.Phone) == "" {
		return &ValidationError{Field: "phone", Message: "required"}
	}
	if t.Occupants < 1 {
		return &ValidationError{Field: "occupants", Message: "must be at least 1"}
	}
	if t.MoveInDate.IsZero() {
		return &ValidationError{Field: "move_in_date", Message: "required"}
	}
	if t.MoveOutDate != nil && t.MoveOutDate.Before(t.MoveInDate.Time) {
		return &ValidationError{Field: "move_out_date", Message: "before move-in date"}
	}
	if t.RentDueDay != nil && (*t.RentDueDay < 1 || *t.RentDueDay > 31) {
		return &ValidationError{Field: "rent_due_day", Message: "must be between 1 and 31"}
	}
	return nil
}

// ValidateBillInput checks the caller-side preconditions of apportionment:
// a known bill type, a positive total and a bill date.
func ValidateBillInput(billType BillType, total decimal.Decimal, billDate Date) error {
	if !billType.Valid() {
		return &ValidationError{Field: "bill_type", Message: "must be electricity or water", Cause: ErrUnknownBillType}
	}
	if !total.IsPositive() {
		return &ValidationError{Field: "total_amount", Message: "must be positive", Cause: ErrNonPositiveAmount}
	}
	if billDate.IsZero() {
		return &ValidationError{Field: "bill_date", Message: "required"}
	}
	return nil
}

// Validate checks a service provider before it is written.
func (p ServiceProvider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	return nil
}

// Validate checks a service record before it is written.
func (r ServiceRecord) Validate() error {
	if r.HouseID <= 0 {
		return &ValidationError{Field: "house_id", Message: "required"}
	}
	if strings.TrimSpace(r.Description) == "" {
		return &ValidationError{Field: "description", Message: "required"}
	}
	if r.Cost.IsNegative() {
		return &ValidationError{Field: "cost", Message: "must not be negative"}
	}
	if r.ServiceDate.IsZero() {
		return &ValidationError{Field: "service_date", Message: "required"}
	}
	return nil
}
