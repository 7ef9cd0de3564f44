// Package appstate holds the read-side projection the API serves for
// dashboard views. It is owned by the composition root and refreshed after
// writes; the billing, occupancy and arrears packages never see it.
package appstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-ledger/ledger"
	"go.uber.org/zap"
)

// Source is the slice of the ledger store a refresh reads.
type Source interface {
	ListBuildings(ctx context.Context) ([]ledger.Building, error)
	ListHouses(ctx context.Context, buildingID ledger.BuildingID) ([]ledger.House, error)
	ListTenants(ctx context.Context, houseID ledger.HouseID) ([]ledger.Tenant, error)
	ListUtilityBills(ctx context.Context, buildingID ledger.BuildingID) ([]ledger.UtilityBill, error)
	ListUnpaidHouseBills(ctx context.Context) ([]ledger.HouseBill, error)
}

// Snapshot is an immutable view of the ledger at RefreshedAt.
type Snapshot struct {
	Buildings      int
	Houses         int
	OccupiedHouses int
	ActiveTenants  int
	UtilityBills   int
	UnpaidBills    int
	// Outstanding sums every unpaid house bill.
	Outstanding decimal.Decimal
	// Source names what triggered the refresh, e.g. "bill.created".
	Source      string
	RefreshedAt time.Time
}

// Occupancy is the share of houses occupied, 0 when there are none.
func (s Snapshot) Occupancy() float64 {
	if s.Houses == 0 {
		return 0
	}
	return float64(s.OccupiedHouses) / float64(s.Houses)
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// State is safe for concurrent use. Subscribers are called synchronously,
// in subscription order, after each successful refresh.
type State struct {
	mu      sync.RWMutex
	current Snapshot
	subs    []subscriber
	nextSub int

	logger *zap.Logger
	now    func() time.Time
}

func New(logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{
		current: Snapshot{Outstanding: decimal.Zero},
		logger:  logger.Named("appstate"),
		now:     time.Now,
	}
}

// Snapshot returns the latest projection.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn and returns a function that removes it.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Refresh rebuilds the projection from src and notifies subscribers.
// On error the previous snapshot is kept.
func (s *State) Refresh(ctx context.Context, src Source, reason string) (Snapshot, error) {
	snap, err := s.build(ctx, src)
	if err != nil {
		s.logger.Error("refresh failed", zap.String("source", reason), zap.Error(err))
		return Snapshot{}, err
	}
	snap.Source = reason

	s.mu.Lock()
	s.current = snap
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	s.logger.Debug("state refreshed",
		zap.String("source", reason),
		zap.String("outstanding", ledger.FormatMoney(snap.Outstanding)),
	)
	return snap, nil
}

func (s *State) build(ctx context.Context, src Source) (Snapshot, error) {
	snap := Snapshot{Outstanding: decimal.Zero, RefreshedAt: s.now().UTC()}

	buildings, err := src.ListBuildings(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to list buildings: %w", err)
	}
	snap.Buildings = len(buildings)

	houses, err := src.ListHouses(ctx, 0)
	if err != nil {
		return snap, fmt.Errorf("failed to list houses: %w", err)
	}
	snap.Houses = len(houses)
	for _, h := range houses {
		if h.IsOccupied {
			snap.OccupiedHouses++
		}
	}

	tenants, err := src.ListTenants(ctx, 0)
	if err != nil {
		return snap, fmt.Errorf("failed to list tenants: %w", err)
	}
	for _, t := range tenants {
		if t.IsActive {
			snap.ActiveTenants++
		}
	}

	bills, err := src.ListUtilityBills(ctx, 0)
	if err != nil {
		return snap, fmt.Errorf("failed to list utility bills: %w", err)
	}
	snap.UtilityBills = len(bills)
	for _, b := range bills {
		if !b.IsPaid {
			snap.UnpaidBills++
		}
	}

	unpaid, err := src.ListUnpaidHouseBills(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to list unpaid house bills: %w", err)
	}
	for _, hb := range unpaid {
		snap.Outstanding = snap.Outstanding.Add(hb.Amount)
	}
	return snap, nil
}
