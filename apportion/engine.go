/*
Package apportion splits a building-level utility bill across houses.

PURPOSE:
  Given a bill type, a total and a snapshot of the building's houses,
  compute each participating house's share. Pure function: no store, no
  clock, no logging. The billing package persists what this returns.

ELIGIBILITY:
  A house participates only if it is occupied AND its meter for the
  bill's utility is shared. Token and individual meters are billed to the
  tenant directly and never receive a share.

SPLITTING RULES:
  Electricity: equal division across eligible houses.
  Water:       weighted by the active tenants' occupant counts. If every
               eligible house reports 0 occupants, fall back to equal
               division so someone still pays.
  No eligible house: empty result (Method = MethodNone). The caller
               decides how to surface an unattributed bill.

PENNY-EXACT ROUNDING:
  The total is converted to integer cents. Each house gets
  floor(cents * weight / totalWeight); the cents left over (fewer than
  the number of houses) go one each to the houses with the largest
  remainders, ties broken by snapshot order. Shares are therefore
  non-negative and always sum to the total exactly.

EXAMPLE:
  res, err := apportion.Apportion(apportion.Input{
      BillType: ledger.BillWater,
      Total:    ledger.MustMoney("100"),
      Houses:   snapshots,
  })
  // A(2 occupants) = 40.00, B(3 occupants) = 60.00

SEE ALSO:
  - billing/manager.go: Calls Apportion inside the create-bill transaction
  - ledger/types.go: HouseSnapshot
*/
package apportion

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-ledger/ledger"
)

// =============================================================================
// TYPES
// =============================================================================

// Method records which rule produced the shares.
type Method string

const (
	MethodNone          Method = "none"           // no eligible house
	MethodEqual         Method = "equal"          // electricity
	MethodOccupants     Method = "occupants"      // water, weighted
	MethodEqualFallback Method = "equal_fallback" // water, zero occupants
)

type Input struct {
	BillType ledger.BillType
	Total    decimal.Decimal
	Houses   []ledger.HouseSnapshot
}

// Share is one house's portion of the bill.
type Share struct {
	HouseID ledger.HouseID
	Weight  int64
	Amount  decimal.Decimal
}

type Result struct {
	Method Method
	Shares []Share
	// Excluded lists houses skipped by the eligibility filter.
	Excluded []ledger.HouseID
}

// Sum adds up every share.
func (r Result) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range r.Shares {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// Unattributed reports whether no house received a share.
func (r Result) Unattributed() bool {
	return len(r.Shares) == 0
}

// =============================================================================
// ENGINE
// =============================================================================

// Eligible reports whether a house takes part in apportioning a bill of type t.
func Eligible(h ledger.HouseSnapshot, t ledger.BillType) bool {
	return h.IsOccupied && h.MeterFor(t) == ledger.MeterShared
}

// Apportion computes per-house shares. It rejects an unknown bill type or a
// non-positive total; callers are expected to have validated already.
func Apportion(in Input) (Result, error) {
	if !in.BillType.Valid() {
		return Result{}, &ledger.ValidationError{Field: "bill_type", Message: string(in.BillType), Cause: ledger.ErrUnknownBillType}
	}
	if !in.Total.IsPositive() {
		return Result{}, &ledger.ValidationError{Field: "total_amount", Message: "must be positive", Cause: ledger.ErrNonPositiveAmount}
	}

	var (
		eligible []ledger.HouseSnapshot
		excluded []ledger.HouseID
	)
	for _, h := range in.Houses {
		if Eligible(h, in.BillType) {
			eligible = append(eligible, h)
		} else {
			excluded = append(excluded, h.ID)
		}
	}
	if len(eligible) == 0 {
		return Result{Method: MethodNone, Excluded: excluded}, nil
	}

	method, weights := weigh(in.BillType, eligible)
	amounts := split(toCents(in.Total), weights)

	shares := make([]Share, len(eligible))
	for i, h := range eligible {
		shares[i] = Share{
			HouseID: h.ID,
			Weight:  weights[i],
			Amount:  decimal.NewFromBigInt(amounts[i], -ledger.MoneyScale),
		}
	}
	return Result{Method: method, Shares: shares, Excluded: excluded}, nil
}

// weigh picks the weight of each eligible house.
func weigh(t ledger.BillType, houses []ledger.HouseSnapshot) (Method, []int64) {
	weights := make([]int64, len(houses))
	if t == ledger.BillWater {
		var total int64
		for i, h := range houses {
			if h.ActiveOccupants > 0 {
				weights[i] = int64(h.ActiveOccupants)
				total += weights[i]
			}
		}
		if total > 0 {
			return MethodOccupants, weights
		}
		for i := range weights {
			weights[i] = 1
		}
		return MethodEqualFallback, weights
	}

	for i := range weights {
		weights[i] = 1
	}
	return MethodEqual, weights
}

// split divides cents in proportion to weights using the largest remainder
// method. The result sums to cents exactly. Weights must sum to > 0.
// Arithmetic is on big.Int since cents*weight can exceed int64.
func split(cents *big.Int, weights []int64) []*big.Int {
	totalWeight := new(big.Int)
	for _, w := range weights {
		totalWeight.Add(totalWeight, big.NewInt(w))
	}

	amounts := make([]*big.Int, len(weights))
	remainders := make([]*big.Int, len(weights))
	left := new(big.Int).Set(cents)
	for i, w := range weights {
		scaled := new(big.Int).Mul(cents, big.NewInt(w))
		amounts[i], remainders[i] = new(big.Int).QuoRem(scaled, totalWeight, new(big.Int))
		left.Sub(left, amounts[i])
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].Cmp(remainders[order[b]]) > 0
	})

	// left < len(weights): each floor drops less than one cent.
	for k := 0; left.Sign() > 0; k++ {
		amounts[order[k]].Add(amounts[order[k]], big.NewInt(1))
		left.Sub(left, big.NewInt(1))
	}
	return amounts
}

func toCents(d decimal.Decimal) *big.Int {
	return ledger.RoundMoney(d).Shift(ledger.MoneyScale).BigInt()
}
