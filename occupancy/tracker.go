/*
Package occupancy keeps House.IsOccupied in step with the tenant set.

PURPOSE:
  Every tenant write goes through the Tracker, which recomputes the
  occupancy flag of each affected house inside the same transaction.
  Callers never set IsOccupied themselves.

INVARIANT:
  After every tenant mutation:
    House.IsOccupied == (active tenants with HouseID = house) > 0

  The flag is always recomputed from a count, never toggled, so a
  tenant that is deactivated while another stays active leaves the
  house occupied.

ONE ACTIVE TENANT PER HOUSE:
  Creating or updating a tenant to be active in a house that already has
  a different active tenant fails with *ledger.OccupiedError. Move the
  current tenant out first.

MOVES:
  An update that changes HouseID recomputes both the old and new house.

SEE ALSO:
  - ledger/store.go: TenantStore.CountActiveTenants, HouseStore.SetHouseOccupied
*/
package occupancy

import (
	"context"
	"fmt"

	"github.com/warp/rental-ledger/ledger"
	"go.uber.org/zap"
)

type Tracker struct {
	Store  ledger.TxStore
	Logger *zap.Logger
}

func NewTracker(store ledger.TxStore, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{Store: store, Logger: logger.Named("occupancy")}
}

// =============================================================================
// TENANT MUTATIONS
// =============================================================================

// CreateTenant inserts a tenant and updates its house's occupancy.
func (tr *Tracker) CreateTenant(ctx context.Context, t ledger.Tenant) (ledger.Tenant, error) {
	if err := t.Validate(); err != nil {
		return ledger.Tenant{}, err
	}

	var created ledger.Tenant
	err := tr.Store.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.GetHouse(ctx, t.HouseID); err != nil {
			return err
		}
		if t.IsActive {
			if err := ensureVacant(ctx, tx, t.HouseID, 0); err != nil {
				return err
			}
		}

		id, err := tx.CreateTenant(ctx, t)
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		if created, err = tx.GetTenant(ctx, id); err != nil {
			return err
		}
		return tr.recompute(ctx, tx, t.HouseID)
	})
	if err != nil {
		return ledger.Tenant{}, err
	}

	tr.Logger.Info("tenant created",
		zap.Int64("tenant_id", int64(created.ID)),
		zap.Int64("house_id", int64(created.HouseID)),
		zap.Bool("active", created.IsActive),
	)
	return created, nil
}

// UpdateTenant rewrites a tenant and updates the occupancy of its old and
// new house.
func (tr *Tracker) UpdateTenant(ctx context.Context, t ledger.Tenant) (ledger.Tenant, error) {
	if err := t.Validate(); err != nil {
		return ledger.Tenant{}, err
	}

	var updated ledger.Tenant
	err := tr.Store.WithTx(ctx, func(tx ledger.Store) error {
		existing, err := tx.GetTenant(ctx, t.ID)
		if err != nil {
			return err
		}
		if t.IsActive {
			if err := ensureVacant(ctx, tx, t.HouseID, t.ID); err != nil {
				return err
			}
		}

		if err := tx.UpdateTenant(ctx, t); err != nil {
			return err
		}
		if err := tr.recompute(ctx, tx, t.HouseID); err != nil {
			return err
		}
		if existing.HouseID != t.HouseID {
			if err := tr.recompute(ctx, tx, existing.HouseID); err != nil {
				return err
			}
		}
		updated, err = tx.GetTenant(ctx, t.ID)
		return err
	})
	if err != nil {
		return ledger.Tenant{}, err
	}

	tr.Logger.Debug("tenant updated",
		zap.Int64("tenant_id", int64(updated.ID)),
		zap.Bool("active", updated.IsActive),
	)
	return updated, nil
}

// MoveOut deactivates a tenant as of the given date.
func (tr *Tracker) MoveOut(ctx context.Context, id ledger.TenantID, on ledger.Date) (ledger.Tenant, error) {
	t, err := tr.Store.GetTenant(ctx, id)
	if err != nil {
		return ledger.Tenant{}, err
	}
	t.IsActive = false
	t.MoveOutDate = &on
	return tr.UpdateTenant(ctx, t)
}

// DeleteTenant removes a tenant and updates its house's occupancy.
func (tr *Tracker) DeleteTenant(ctx context.Context, id ledger.TenantID) error {
	var houseID ledger.HouseID
	err := tr.Store.WithTx(ctx, func(tx ledger.Store) error {
		existing, err := tx.GetTenant(ctx, id)
		if err != nil {
			return err
		}
		houseID = existing.HouseID
		if err := tx.DeleteTenant(ctx, id); err != nil {
			return err
		}
		return tr.recompute(ctx, tx, houseID)
	})
	if err != nil {
		return err
	}

	tr.Logger.Info("tenant deleted",
		zap.Int64("tenant_id", int64(id)),
		zap.Int64("house_id", int64(houseID)),
	)
	return nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile recomputes the flag of every house and returns how many were
// corrected. Used after bulk loads that bypass the Tracker.
func (tr *Tracker) Reconcile(ctx context.Context) (int, error) {
	fixed := 0
	err := tr.Store.WithTx(ctx, func(tx ledger.Store) error {
		houses, err := tx.ListHouses(ctx, 0)
		if err != nil {
			return err
		}
		for _, h := range houses {
			n, err := tx.CountActiveTenants(ctx, h.ID)
			if err != nil {
				return err
			}
			if h.IsOccupied == (n > 0) {
				continue
			}
			if err := tx.SetHouseOccupied(ctx, h.ID, n > 0); err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if fixed > 0 {
		tr.Logger.Warn("occupancy flags corrected", zap.Int("houses", fixed))
	}
	return fixed, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// recompute sets the house's flag from its active tenant count.
func (tr *Tracker) recompute(ctx context.Context, tx ledger.Store, houseID ledger.HouseID) error {
	n, err := tx.CountActiveTenants(ctx, houseID)
	if err != nil {
		return err
	}
	h, err := tx.GetHouse(ctx, houseID)
	if err != nil {
		return err
	}
	occupied := n > 0
	if h.IsOccupied == occupied {
		return nil
	}
	if err := tx.SetHouseOccupied(ctx, houseID, occupied); err != nil {
		return fmt.Errorf("failed to update occupancy of house %d: %w", houseID, err)
	}
	tr.Logger.Debug("house occupancy changed",
		zap.Int64("house_id", int64(houseID)),
		zap.Bool("occupied", occupied),
	)
	return nil
}

// ensureVacant fails if the house has an active tenant other than self.
func ensureVacant(ctx context.Context, tx ledger.Store, houseID ledger.HouseID, self ledger.TenantID) error {
	active, err := tx.ActiveTenant(ctx, houseID)
	if err != nil {
		return err
	}
	if active != nil && active.ID != self {
		return &ledger.OccupiedError{HouseID: houseID, TenantID: active.ID}
	}
	return nil
}
