/*
Package arrears builds the outstanding-balance report.

PURPOSE:
  One row per unpaid house bill, enriched with who owes it and where.
  Rows are display-ready: callers do not need any further lookups.

JOIN (per unpaid house bill):
  HouseBill -> House            (must exist)
            -> active Tenant    (must exist: someone has to be responsible)
            -> Building         (must exist)
            -> UtilityBill      (must exist; gives bill type and date)

  A row with any link missing is skipped without error. A store failure
  other than "not found" fails the whole report.

ORDER:
  Tenant name, then bill date, then house bill ID.

AGGREGATES:
  Report adds per-tenant totals and aging buckets. Age is the number of
  days between the bill date and AsOf; a bill dated after AsOf counts as
  age 0.

SEE ALSO:
  - ledger/types.go: ArrearsRow
  - config/config.go: Aging bucket configuration
*/
package arrears

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-ledger/ledger"
	"go.uber.org/zap"
)

// =============================================================================
// TYPES
// =============================================================================

// Source is the slice of the ledger store the report needs.
type Source interface {
	ListUnpaidHouseBills(ctx context.Context) ([]ledger.HouseBill, error)
	GetHouse(ctx context.Context, id ledger.HouseID) (ledger.House, error)
	ActiveTenant(ctx context.Context, houseID ledger.HouseID) (*ledger.Tenant, error)
	GetBuilding(ctx context.Context, id ledger.BuildingID) (ledger.Building, error)
	GetUtilityBill(ctx context.Context, id ledger.UtilityBillID) (ledger.UtilityBill, error)
}

// Bucket is an aging band in days, inclusive. A nil MaxDays is open-ended.
type Bucket struct {
	Label   string
	MinDays int
	MaxDays *int
}

func (b Bucket) contains(days int) bool {
	return days >= b.MinDays && (b.MaxDays == nil || days <= *b.MaxDays)
}

func DefaultBuckets() []Bucket {
	thirty, sixty := 30, 60
	return []Bucket{
		{Label: "0-30", MinDays: 0, MaxDays: &thirty},
		{Label: "31-60", MinDays: 31, MaxDays: &sixty},
		{Label: "61+", MinDays: 61},
	}
}

type TenantTotal struct {
	TenantID     ledger.TenantID
	TenantName   string
	TenantPhone  string
	HouseNumber  string
	BuildingName string
	Bills        int
	Amount       decimal.Decimal
}

type AgingTotal struct {
	Label  string
	Bills  int
	Amount decimal.Decimal
}

// Query narrows a report. Zero values mean "everything" and "today".
type Query struct {
	BuildingID ledger.BuildingID
	AsOf       ledger.Date
}

type Report struct {
	AsOf    ledger.Date
	Rows    []ledger.ArrearsRow
	Total   decimal.Decimal
	Tenants []TenantTotal
	Aging   []AgingTotal
}

// =============================================================================
// REPORTER
// =============================================================================

type Reporter struct {
	Source  Source
	Buckets []Bucket
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewReporter(source Source, buckets []Bucket, logger *zap.Logger) *Reporter {
	if len(buckets) == 0 {
		buckets = DefaultBuckets()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{Source: source, Buckets: buckets, Logger: logger.Named("arrears"), Now: time.Now}
}

// Rows returns every arrears row in report order.
func (r *Reporter) Rows(ctx context.Context) ([]ledger.ArrearsRow, error) {
	unpaid, err := r.Source.ListUnpaidHouseBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid house bills: %w", err)
	}

	j := newJoiner(r.Source)
	rows := make([]ledger.ArrearsRow, 0, len(unpaid))
	skipped := 0
	for _, hb := range unpaid {
		if hb.IsPaid {
			continue
		}
		row, ok, err := j.row(ctx, hb)
		if err != nil {
			return nil, err
		}
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if ra.TenantName != rb.TenantName {
			return ra.TenantName < rb.TenantName
		}
		if !ra.BillDate.Equal(rb.BillDate.Time) {
			return ra.BillDate.Before(rb.BillDate.Time)
		}
		return ra.HouseBillID < rb.HouseBillID
	})

	if skipped > 0 {
		r.Logger.Debug("unpaid house bills without a responsible tenant", zap.Int("skipped", skipped))
	}
	return rows, nil
}

// Report builds rows plus per-tenant and aging aggregates.
func (r *Reporter) Report(ctx context.Context, q Query) (Report, error) {
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = ledger.DateOf(r.Now())
	}

	all, err := r.Rows(ctx)
	if err != nil {
		return Report{}, err
	}

	rep := Report{AsOf: asOf, Rows: make([]ledger.ArrearsRow, 0, len(all)), Total: decimal.Zero}
	aging := make([]AgingTotal, len(r.Buckets))
	for i, b := range r.Buckets {
		aging[i] = AgingTotal{Label: b.Label, Amount: decimal.Zero}
	}
	byTenant := make(map[ledger.TenantID]int)

	for _, row := range all {
		if q.BuildingID != 0 && row.BuildingID != q.BuildingID {
			continue
		}
		rep.Rows = append(rep.Rows, row)
		rep.Total = rep.Total.Add(row.Amount)

		i, ok := byTenant[row.TenantID]
		if !ok {
			i = len(rep.Tenants)
			byTenant[row.TenantID] = i
			rep.Tenants = append(rep.Tenants, TenantTotal{
				TenantID:     row.TenantID,
				TenantName:   row.TenantName,
				TenantPhone:  row.TenantPhone,
				HouseNumber:  row.HouseNumber,
				BuildingName: row.BuildingName,
				Amount:       decimal.Zero,
			})
		}
		rep.Tenants[i].Bills++
		rep.Tenants[i].Amount = rep.Tenants[i].Amount.Add(row.Amount)

		age := max(row.BillDate.DaysUntil(asOf), 0)
		for k, b := range r.Buckets {
			if b.contains(age) {
				aging[k].Bills++
				aging[k].Amount = aging[k].Amount.Add(row.Amount)
				break
			}
		}
	}
	rep.Aging = aging
	return rep, nil
}

// =============================================================================
// JOIN
// =============================================================================

// joiner memoises lookups for the duration of one report.
type joiner struct {
	src       Source
	houses    map[ledger.HouseID]*ledger.House
	tenants   map[ledger.HouseID]*ledger.Tenant
	buildings map[ledger.BuildingID]*ledger.Building
	bills     map[ledger.UtilityBillID]*ledger.UtilityBill
}

func newJoiner(src Source) *joiner {
	return &joiner{
		src:       src,
		houses:    make(map[ledger.HouseID]*ledger.House),
		tenants:   make(map[ledger.HouseID]*ledger.Tenant),
		buildings: make(map[ledger.BuildingID]*ledger.Building),
		bills:     make(map[ledger.UtilityBillID]*ledger.UtilityBill),
	}
}

// row joins one house bill. ok is false when a link is missing.
func (j *joiner) row(ctx context.Context, hb ledger.HouseBill) (ledger.ArrearsRow, bool, error) {
	house, err := lookup(j.houses, hb.HouseID, func() (ledger.House, error) {
		return j.src.GetHouse(ctx, hb.HouseID)
	})
	if house == nil || err != nil {
		return ledger.ArrearsRow{}, false, err
	}

	tenant, cached := j.tenants[house.ID]
	if !cached {
		if tenant, err = j.src.ActiveTenant(ctx, house.ID); err != nil {
			return ledger.ArrearsRow{}, false, fmt.Errorf("failed to load tenant of house %d: %w", house.ID, err)
		}
		j.tenants[house.ID] = tenant
	}
	if tenant == nil {
		return ledger.ArrearsRow{}, false, nil
	}

	building, err := lookup(j.buildings, house.BuildingID, func() (ledger.Building, error) {
		return j.src.GetBuilding(ctx, house.BuildingID)
	})
	if building == nil || err != nil {
		return ledger.ArrearsRow{}, false, err
	}

	bill, err := lookup(j.bills, hb.UtilityBillID, func() (ledger.UtilityBill, error) {
		return j.src.GetUtilityBill(ctx, hb.UtilityBillID)
	})
	if bill == nil || err != nil {
		return ledger.ArrearsRow{}, false, err
	}

	return ledger.ArrearsRow{
		TenantID:     tenant.ID,
		TenantName:   tenant.Name,
		TenantPhone:  tenant.Phone,
		HouseID:      house.ID,
		HouseNumber:  house.HouseNumber,
		BuildingID:   building.ID,
		BuildingName: building.Name,
		HouseBillID:  hb.ID,
		BillID:       bill.ID,
		BillType:     bill.BillType,
		BillDate:     bill.BillDate,
		Amount:       hb.Amount,
		IsPaid:       hb.IsPaid,
	}, true, nil
}

// lookup returns the cached row, or loads it. A not-found result is cached
// as nil and reported as (nil, nil).
func lookup[K comparable, V any](cache map[K]*V, key K, load func() (V, error)) (*V, error) {
	if v, ok := cache[key]; ok {
		return v, nil
	}
	v, err := load()
	if ledger.IsNotFound(err) {
		cache[key] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cache[key] = &v
	return &v, nil
}
