package ledger_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-ledger/ledger"
)

// =============================================================================
// MONEY
// =============================================================================

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "7", want: "7.00"},
		{in: "1250.5", want: "1250.50"},
		{in: "10.005", want: "10.01"},   // half away from zero
		{in: "-10.005", want: "-10.01"}, // same on the negative side
		{in: "33.334", want: "33.33"},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ledger.ParseMoney(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, ledger.FormatMoney(got))
		})
	}
}

// =============================================================================
// DATES
// =============================================================================

func TestDate_JSON(t *testing.T) {
	// GIVEN: a leap day
	d := ledger.NewDate(2024, time.February, 29)

	// WHEN: encoded and decoded
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-29"`, string(b))

	var back ledger.Date
	require.NoError(t, json.Unmarshal(b, &back))

	// THEN: same calendar day at UTC midnight
	assert.True(t, back.Equal(d.Time))
	assert.Equal(t, time.UTC, back.Location())
}

func TestDate_UnmarshalRejectsBadInput(t *testing.T) {
	for _, raw := range []string{`"2024-13-01"`, `"31/01/2024"`, `"2024-01-01T10:00:00Z"`, `20240101`} {
		var d ledger.Date
		assert.Error(t, json.Unmarshal([]byte(raw), &d), raw)
	}
}

func TestDateOf_UsesUTCDay(t *testing.T) {
	// 22:00 in Bogota is already the next day in UTC.
	bogota := time.FixedZone("COT", -5*60*60)
	d := ledger.DateOf(time.Date(2024, time.March, 1, 22, 0, 0, 0, bogota))
	assert.Equal(t, "2024-03-02", d.String())
}

func TestDate_DaysUntil(t *testing.T) {
	tests := []struct {
		from, to ledger.Date
		want     int
	}{
		{ledger.NewDate(2024, 1, 31), ledger.NewDate(2024, 3, 1), 30},
		{ledger.NewDate(2024, 3, 1), ledger.NewDate(2024, 1, 31), -30},
		{ledger.NewDate(2024, 6, 15), ledger.NewDate(2024, 6, 15), 0},
		{ledger.NewDate(2023, 12, 31), ledger.NewDate(2024, 12, 31), 366},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s..%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.DaysUntil(tc.to))
		})
	}
}

// =============================================================================
// ENUMERATIONS
// =============================================================================

func TestMeterType_ValidFor(t *testing.T) {
	tests := []struct {
		meter ledger.MeterType
		bill  ledger.BillType
		want  bool
	}{
		{ledger.MeterShared, ledger.BillElectricity, true},
		{ledger.MeterShared, ledger.BillWater, true},
		{ledger.MeterIndividual, ledger.BillWater, true},
		{ledger.MeterToken, ledger.BillElectricity, true},
		{ledger.MeterToken, ledger.BillWater, false},
		{"prepaid", ledger.BillElectricity, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.meter)+"/"+string(tc.bill), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.meter.ValidFor(tc.bill))
		})
	}
}
