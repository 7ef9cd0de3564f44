package main

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-ledger/arrears"
	"github.com/warp/rental-ledger/config"
	"github.com/warp/rental-ledger/ledger"
)

func TestAgingBuckets_FromConfig(t *testing.T) {
	got := agingBuckets(config.DefaultAgingBuckets())

	require.Len(t, got, 3)
	assert.Equal(t, "31-60", got[1].Label)
	assert.Equal(t, 31, got[1].MinDays)
	require.NotNil(t, got[1].MaxDays)
	assert.Equal(t, 60, *got[1].MaxDays)
	assert.Nil(t, got[2].MaxDays)
}

func TestPrintReport(t *testing.T) {
	rep := arrears.Report{
		AsOf:  ledger.NewDate(2025, 1, 31),
		Rows:  make([]ledger.ArrearsRow, 2),
		Total: decimal.RequireFromString("150"),
		Tenants: []arrears.TenantTotal{{
			TenantName: "Amina", TenantPhone: "0711", BuildingName: "Riverside",
			HouseNumber: "R1", Bills: 2, Amount: decimal.RequireFromString("150"),
		}},
		Aging: []arrears.AgingTotal{{Label: "0-30", Bills: 2, Amount: decimal.RequireFromString("150")}},
	}

	var out bytes.Buffer
	require.NoError(t, printReport(&out, rep))

	text := out.String()
	assert.Contains(t, text, "Arrears as of 2025-01-31")
	assert.Contains(t, text, "Amina")
	assert.Contains(t, text, "150.00")
	assert.Contains(t, text, "0-30")
}
