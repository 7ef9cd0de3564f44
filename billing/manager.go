/*
Package billing runs the utility bill lifecycle.

PURPOSE:
  Sequences bill creation with apportionment and per-house persistence,
  and manages payment-state transitions so the parent bill and its house
  bills stay consistent.

CREATE BILL (one transaction):
  1. Persist the UtilityBill, unpaid
  2. Snapshot the building's houses
  3. Apportion the total
  4. Persist one unpaid HouseBill per share
  Any failure rolls back every step; no orphaned bill is left behind.

PAYMENT STATE:
  MarkHouseBillPaid:   child -> paid; if every sibling is now paid the
                       parent becomes paid too (forward cascade)
  UnmarkHouseBillPaid: child -> unpaid; the parent is left alone
  MarkUtilityBillPaid: parent -> paid AND every child -> paid, keeping
                       "parent paid implies all children paid"

  Re-marking something already in the requested state writes nothing.

UNATTRIBUTED BILLS:
  A bill with no eligible house is still recorded but carries
  WarnUnattributed in the result and is logged at warn level.

SEE ALSO:
  - apportion/engine.go: Share computation
  - ledger/store.go: TxStore contract
*/
package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-ledger/apportion"
	"github.com/warp/rental-ledger/ledger"
	"go.uber.org/zap"
)

// =============================================================================
// TYPES
// =============================================================================

// Warning is a non-fatal condition reported alongside a successful operation.
type Warning string

const (
	// WarnUnattributed means no house was eligible, so no house bills exist.
	WarnUnattributed Warning = "unattributed"
)

type CreateBillInput struct {
	BuildingID ledger.BuildingID
	BillType   ledger.BillType
	BillDate   ledger.Date
	Total      decimal.Decimal
}

type CreateBillResult struct {
	Bill       ledger.UtilityBill
	HouseBills []ledger.HouseBill
	Method     apportion.Method
	Excluded   []ledger.HouseID
	Warnings   []Warning
}

// Unattributed reports whether the bill was recorded without any house share.
func (r CreateBillResult) Unattributed() bool {
	for _, w := range r.Warnings {
		if w == WarnUnattributed {
			return true
		}
	}
	return false
}

// PaymentResult describes the effect of a house bill payment toggle.
type PaymentResult struct {
	HouseBill ledger.HouseBill
	// Changed is false when the house bill was already in the requested state.
	Changed bool
	// ParentPaid is true when this call marked the parent utility bill paid.
	ParentPaid bool
}

// BulkPaymentResult describes the effect of MarkUtilityBillPaid.
type BulkPaymentResult struct {
	Bill          ledger.UtilityBill
	ChildrenPaid  int
	ParentChanged bool
}

// Detail is a utility bill with its shares and settlement totals.
type Detail struct {
	Bill        ledger.UtilityBill
	HouseBills  []ledger.HouseBill
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
	// Unattributed is the part of the total no house bill covers.
	Unattributed decimal.Decimal
}

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	Store  ledger.TxStore
	Logger *zap.Logger
}

func NewManager(store ledger.TxStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{Store: store, Logger: logger.Named("billing")}
}

// =============================================================================
// CREATE BILL
// =============================================================================

// CreateBill records a utility bill and its per-house shares atomically.
// Input is validated before anything is written.
func (m *Manager) CreateBill(ctx context.Context, in CreateBillInput) (CreateBillResult, error) {
	if err := ledger.ValidateBillInput(in.BillType, in.Total, in.BillDate); err != nil {
		return CreateBillResult{}, err
	}
	total := ledger.RoundMoney(in.Total)

	var res CreateBillResult
	err := m.Store.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.GetBuilding(ctx, in.BuildingID); err != nil {
			return err
		}

		// 1. Persist the bill
		billID, err := tx.CreateUtilityBill(ctx, ledger.UtilityBill{
			BuildingID:  in.BuildingID,
			BillType:    in.BillType,
			BillDate:    in.BillDate,
			TotalAmount: total,
		})
		if err != nil {
			return fmt.Errorf("failed to create utility bill: %w", err)
		}

		// 2. Snapshot houses
		houses, err := tx.HouseSnapshots(ctx, in.BuildingID)
		if err != nil {
			return fmt.Errorf("failed to snapshot houses: %w", err)
		}

		// 3. Apportion
		shares, err := apportion.Apportion(apportion.Input{
			BillType: in.BillType,
			Total:    total,
			Houses:   houses,
		})
		if err != nil {
			return err
		}

		// 4. Persist shares
		houseBills := make([]ledger.HouseBill, 0, len(shares.Shares))
		for _, s := range shares.Shares {
			hb := ledger.HouseBill{HouseID: s.HouseID, UtilityBillID: billID, Amount: s.Amount}
			if hb.ID, err = tx.CreateHouseBill(ctx, hb); err != nil {
				return fmt.Errorf("failed to create house bill for house %d: %w", s.HouseID, err)
			}
			houseBills = append(houseBills, hb)
		}

		bill, err := tx.GetUtilityBill(ctx, billID)
		if err != nil {
			return err
		}

		res = CreateBillResult{
			Bill:       bill,
			HouseBills: houseBills,
			Method:     shares.Method,
			Excluded:   shares.Excluded,
		}
		if shares.Unattributed() {
			res.Warnings = append(res.Warnings, WarnUnattributed)
		}
		return nil
	})
	if err != nil {
		return CreateBillResult{}, err
	}

	if res.Unattributed() {
		m.Logger.Warn("utility bill has no eligible house",
			zap.Int64("bill_id", int64(res.Bill.ID)),
			zap.Int64("building_id", int64(in.BuildingID)),
			zap.String("bill_type", string(in.BillType)),
			zap.String("total", ledger.FormatMoney(total)),
		)
	} else {
		m.Logger.Info("utility bill apportioned",
			zap.Int64("bill_id", int64(res.Bill.ID)),
			zap.String("method", string(res.Method)),
			zap.Int("house_bills", len(res.HouseBills)),
		)
	}
	return res, nil
}

// =============================================================================
// PAYMENT STATE
// =============================================================================

// MarkHouseBillPaid marks one share paid and cascades to the parent once
// every sibling is paid. Already paid is a no-op.
func (m *Manager) MarkHouseBillPaid(ctx context.Context, id ledger.HouseBillID) (PaymentResult, error) {
	var res PaymentResult
	err := m.Store.WithTx(ctx, func(tx ledger.Store) error {
		hb, err := tx.GetHouseBill(ctx, id)
		if err != nil {
			return err
		}
		res.HouseBill = hb
		if hb.IsPaid {
			return nil
		}

		if err := tx.SetHouseBillPaid(ctx, id, true); err != nil {
			return err
		}
		res.HouseBill.IsPaid = true
		res.Changed = true

		siblings, err := tx.ListHouseBillsByUtilityBill(ctx, hb.UtilityBillID)
		if err != nil {
			return err
		}
		for _, s := range siblings {
			if !s.IsPaid {
				return nil
			}
		}

		parent, err := tx.GetUtilityBill(ctx, hb.UtilityBillID)
		if err != nil {
			return err
		}
		if parent.IsPaid {
			return nil
		}
		if err := tx.SetUtilityBillPaid(ctx, parent.ID, true); err != nil {
			return err
		}
		res.ParentPaid = true
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	if res.Changed {
		m.Logger.Debug("house bill paid",
			zap.Int64("house_bill_id", int64(id)),
			zap.Bool("parent_paid", res.ParentPaid),
		)
	}
	if res.ParentPaid {
		m.Logger.Info("utility bill settled", zap.Int64("bill_id", int64(res.HouseBill.UtilityBillID)))
	}
	return res, nil
}

// UnmarkHouseBillPaid reverts a share to unpaid. The parent is not touched.
func (m *Manager) UnmarkHouseBillPaid(ctx context.Context, id ledger.HouseBillID) (PaymentResult, error) {
	var res PaymentResult
	err := m.Store.WithTx(ctx, func(tx ledger.Store) error {
		hb, err := tx.GetHouseBill(ctx, id)
		if err != nil {
			return err
		}
		res.HouseBill = hb
		if !hb.IsPaid {
			return nil
		}
		if err := tx.SetHouseBillPaid(ctx, id, false); err != nil {
			return err
		}
		res.HouseBill.IsPaid = false
		res.Changed = true
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	if res.Changed {
		m.Logger.Debug("house bill unpaid", zap.Int64("house_bill_id", int64(id)))
	}
	return res, nil
}

// MarkUtilityBillPaid marks the bill and every one of its shares paid.
func (m *Manager) MarkUtilityBillPaid(ctx context.Context, id ledger.UtilityBillID) (BulkPaymentResult, error) {
	var res BulkPaymentResult
	err := m.Store.WithTx(ctx, func(tx ledger.Store) error {
		bill, err := tx.GetUtilityBill(ctx, id)
		if err != nil {
			return err
		}

		children, err := tx.ListHouseBillsByUtilityBill(ctx, id)
		if err != nil {
			return err
		}
		for _, hb := range children {
			if hb.IsPaid {
				continue
			}
			if err := tx.SetHouseBillPaid(ctx, hb.ID, true); err != nil {
				return err
			}
			res.ChildrenPaid++
		}

		if !bill.IsPaid {
			if err := tx.SetUtilityBillPaid(ctx, id, true); err != nil {
				return err
			}
			bill.IsPaid = true
			res.ParentChanged = true
		}
		res.Bill = bill
		return nil
	})
	if err != nil {
		return BulkPaymentResult{}, err
	}

	if res.ParentChanged || res.ChildrenPaid > 0 {
		m.Logger.Info("utility bill marked paid",
			zap.Int64("bill_id", int64(id)),
			zap.Int("house_bills_paid", res.ChildrenPaid),
		)
	}
	return res, nil
}

// =============================================================================
// READ / DELETE
// =============================================================================

// BillDetail loads a bill with its shares and settlement totals.
func (m *Manager) BillDetail(ctx context.Context, id ledger.UtilityBillID) (Detail, error) {
	bill, err := m.Store.GetUtilityBill(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	houseBills, err := m.Store.ListHouseBillsByUtilityBill(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	d := Detail{
		Bill:        bill,
		HouseBills:  houseBills,
		Paid:        decimal.Zero,
		Outstanding: decimal.Zero,
	}
	attributed := decimal.Zero
	for _, hb := range houseBills {
		attributed = attributed.Add(hb.Amount)
		if hb.IsPaid {
			d.Paid = d.Paid.Add(hb.Amount)
		} else {
			d.Outstanding = d.Outstanding.Add(hb.Amount)
		}
	}
	d.Unattributed = bill.TotalAmount.Sub(attributed)
	return d, nil
}

// DeleteUtilityBill removes a bill and its house bills.
func (m *Manager) DeleteUtilityBill(ctx context.Context, id ledger.UtilityBillID) error {
	if err := m.Store.DeleteUtilityBill(ctx, id); err != nil {
		return err
	}
	m.Logger.Info("utility bill deleted", zap.Int64("bill_id", int64(id)))
	return nil
}
