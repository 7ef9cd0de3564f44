package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/ledger"
)

// invalidField asserts err is a client error naming field.
func invalidField(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, ledger.IsClientError(err))

	var ve *ledger.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, field, ve.Field)
}

func validTenant() ledger.Tenant {
	return ledger.Tenant{
		HouseID:    1,
		Name:       "Achieng",
		Phone:      "0711000111",
		Occupants:  2,
		MoveInDate: ledger.NewDate(2024, 5, 1),
		IsActive:   true,
	}
}

func TestTenant_Validate(t *testing.T) {
	day := func(n int) *int { return &n }
	date := func(d ledger.Date) *ledger.Date { return &d }

	tests := []struct {
		name  string
		edit  func(*ledger.Tenant)
		field string // empty means valid
	}{
		{"valid", func(*ledger.Tenant) {}, ""},
		{"rent due day 1", func(tn *ledger.Tenant) { tn.RentDueDay = day(1) }, ""},
		{"rent due day 31", func(tn *ledger.Tenant) { tn.RentDueDay = day(31) }, ""},
		{"rent due day 0", func(tn *ledger.Tenant) { tn.RentDueDay = day(0) }, "rent_due_day"},
		{"rent due day 32", func(tn *ledger.Tenant) { tn.RentDueDay = day(32) }, "rent_due_day"},
		{"move out same day", func(tn *ledger.Tenant) { tn.MoveOutDate = date(ledger.NewDate(2024, 5, 1)) }, ""},
		{"move out before move in", func(tn *ledger.Tenant) { tn.MoveOutDate = date(ledger.NewDate(2024, 4, 30)) }, "move_out_date"},
		{"no occupants", func(tn *ledger.Tenant) { tn.Occupants = 0 }, "occupants"},
		{"blank name", func(tn *ledger.Tenant) { tn.Name = "  " }, "name"},
		{"no house", func(tn *ledger.Tenant) { tn.HouseID = 0 }, "house_id"},
		{"no move in", func(tn *ledger.Tenant) { tn.MoveInDate = ledger.Date{} }, "move_in_date"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tn := validTenant()
			tc.edit(&tn)
			err := tn.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			invalidField(t, err, tc.field)
		})
	}
}

func TestHouse_Validate(t *testing.T) {
	base := ledger.House{
		BuildingID:       1,
		HouseNumber:      "B2",
		Type:             ledger.HouseBedsitter,
		RentAmount:       ledger.MustMoney("4500"),
		ElectricityMeter: ledger.MeterToken,
		WaterMeter:       ledger.MeterShared,
	}
	require.NoError(t, base.Validate())

	// Token meters exist only for electricity.
	h := base
	h.WaterMeter = ledger.MeterToken
	invalidField(t, h.Validate(), "water_meter")

	h = base
	h.RentAmount = decimal.Zero
	invalidField(t, h.Validate(), "rent_amount")
	assert.ErrorIs(t, h.Validate(), ledger.ErrNonPositiveAmount)

	h = base
	h.Type = "penthouse"
	invalidField(t, h.Validate(), "type")
}

func TestValidateBillInput(t *testing.T) {
	date := ledger.NewDate(2024, 7, 31)

	assert.NoError(t, ledger.ValidateBillInput(ledger.BillWater, ledger.MustMoney("0.01"), date))

	err := ledger.ValidateBillInput("gas", ledger.MustMoney("100"), date)
	invalidField(t, err, "bill_type")
	assert.ErrorIs(t, err, ledger.ErrUnknownBillType)

	err = ledger.ValidateBillInput(ledger.BillElectricity, decimal.Zero, date)
	invalidField(t, err, "total_amount")
	assert.ErrorIs(t, err, ledger.ErrNonPositiveAmount)

	invalidField(t, ledger.ValidateBillInput(ledger.BillElectricity, ledger.MustMoney("100"), ledger.Date{}), "bill_date")
}

func TestErrorHelpers(t *testing.T) {
	nf := ledger.NotFound("house", 9)
	assert.True(t, ledger.IsNotFound(nf))
	assert.False(t, ledger.IsClientError(nf))
	assert.Equal(t, "house 9 not found", nf.Error())

	occ := &ledger.OccupiedError{HouseID: 3, TenantID: 4}
	assert.True(t, ledger.IsConflict(occ))
	assert.False(t, ledger.IsNotFound(occ))
}
