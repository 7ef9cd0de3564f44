package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-ledger/appstate"
	"github.com/warp/rental-ledger/ledger"
	"github.com/warp/rental-ledger/metrics"
)

func TestObserveSnapshot_SetsGauges(t *testing.T) {
	m := metrics.New(false)

	m.ObserveSnapshot(appstate.Snapshot{
		Houses:         4,
		OccupiedHouses: 3,
		UnpaidBills:    2,
		Outstanding:    ledger.MustMoney("1250.50"),
	})

	n, err := testutil.GatherAndCount(m.Registry(), "rentledger_occupied_houses", "rentledger_outstanding_amount")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "rentledger_occupied_houses 3")
	assert.Contains(t, string(body), "rentledger_outstanding_amount 1250.5")
}

func TestCounters(t *testing.T) {
	m := metrics.New(false)

	m.BillCreated("water", "occupants")
	m.BillCreated("water", "occupants")
	m.Payment(true, 3)
	m.Payment(false, 0) // ignored
	m.OccupancyCorrected(2)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	n, err := testutil.GatherAndCount(m.Registry(), "rentledger_bills_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n) // one label set

	n, err = testutil.GatherAndCount(m.Registry(), "rentledger_house_bill_payments_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(m.Registry(), "rentledger_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.BillCreated("electricity", "equal")
		m.Payment(true, 1)
		m.OccupancyCorrected(1)
		m.ObserveRequest("GET", "/api/state", 200, time.Millisecond)
		m.ObserveSnapshot(appstate.Snapshot{})
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
