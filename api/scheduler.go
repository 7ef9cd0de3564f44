/*
scheduler.go - Automated occupancy reconciliation

PURPOSE:
  Periodically recomputes every house's occupied flag from its tenants and
  refreshes the dashboard projection. Tenant writes through the API keep
  the flag exact; the sweep catches rows changed behind the API's back
  (imports, manual SQL).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start, then on every tick
  - A failed sweep is logged and retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ReconcileOccupancy endpoint (manual sweep)
  - occupancy/tracker.go: Reconcile
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconciliationScheduler runs the occupancy sweep on a ticker.
type ReconciliationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex // guards ticker and stop

	runMu   sync.Mutex
	lastRun time.Time
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(handler *Handler) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        handler.Logger.Named("scheduler"),
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-ticker.C:
			rs.checkAndProcess()
		case <-stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) checkAndProcess() {
	ctx, cancel := context.WithTimeout(context.Background(), rs.CheckInterval)
	defer cancel()
	rs.sweep(ctx)
}

// sweep reconciles occupancy, then refreshes the projection. It returns
// the number of houses corrected.
func (rs *ReconciliationScheduler) sweep(ctx context.Context) int {
	h := rs.Handler
	fixed, err := h.Tenants.Reconcile(ctx)
	if err != nil {
		rs.Logger.Error("occupancy reconcile failed", zap.Error(err))
		return 0
	}
	h.Metrics.OccupancyCorrected(fixed)
	h.refresh(ctx, "scheduler")

	rs.runMu.Lock()
	rs.lastRun = time.Now()
	rs.runMu.Unlock()

	rs.Logger.Debug("sweep complete", zap.Int("houses_fixed", fixed))
	return fixed
}

// RunNow triggers an immediate sweep (for testing/admin).
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) int {
	return rs.sweep(ctx)
}

// LastRun returns when the last successful sweep finished.
func (rs *ReconciliationScheduler) LastRun() time.Time {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()
	return rs.lastRun
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *ReconciliationScheduler) GetNextRunTime() time.Time {
	return rs.LastRun().Add(rs.CheckInterval)
}
