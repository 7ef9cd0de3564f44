/*
handlers.go - HTTP API handlers for the rental ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the core packages (billing, occupancy,
  arrears). Handlers never touch IsOccupied or bill paid flags directly.

ENDPOINTS:
  Buildings:
    GET    /api/buildings                 List buildings
    POST   /api/buildings                 Create building
    GET    /api/buildings/{id}            Get building
    PUT    /api/buildings/{id}            Update building
    DELETE /api/buildings/{id}            Delete building (cascades)
    GET    /api/buildings/{id}/houses     Houses in building

  Houses:
    GET    /api/houses?building_id=       List houses
    POST   /api/houses                    Create house (vacant)
    GET    /api/houses/{id}               Get house
    PUT    /api/houses/{id}               Update house
    DELETE /api/houses/{id}               Delete house (cascades)
    GET    /api/houses/{id}/tenants       Tenant history
    GET    /api/houses/{id}/house-bills   Bill shares

  Tenants:
    GET    /api/tenants?house_id=         List tenants
    POST   /api/tenants                   Create tenant
    GET    /api/tenants/{id}              Get tenant
    PUT    /api/tenants/{id}              Update tenant
    DELETE /api/tenants/{id}              Delete tenant
    POST   /api/tenants/{id}/move-out     Deactivate with a move-out date

  Bills:
    GET    /api/bills?building_id=        List utility bills
    POST   /api/bills                     Create and apportion a bill
    GET    /api/bills/{id}                Bill detail with shares
    DELETE /api/bills/{id}                Delete bill and shares
    POST   /api/bills/{id}/pay            Mark every share paid
    POST   /api/house-bills/{id}/pay      Mark one share paid
    POST   /api/house-bills/{id}/unpay    Mark one share unpaid

  Reports:
    GET    /api/arrears?building_id=&as_of=  Outstanding shares by tenant
    GET    /api/state                     Dashboard counters

  Maintenance:
    /api/service-providers, /api/service-records  CRUD

  Admin:
    POST   /api/admin/reconcile-occupancy  Recompute every house's flag

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Row not found
  - 409: Conflict (second active tenant)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/warp/rental-ledger/appstate"
	"github.com/warp/rental-ledger/arrears"
	"github.com/warp/rental-ledger/billing"
	"github.com/warp/rental-ledger/ledger"
	"github.com/warp/rental-ledger/metrics"
	"github.com/warp/rental-ledger/occupancy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   ledger.TxStore
	Bills   *billing.Manager
	Tenants *occupancy.Tracker
	Arrears *arrears.Reporter
	State   *appstate.State
	Logger  *zap.Logger
	// Metrics is optional; nil disables /metrics and instrumentation.
	Metrics *metrics.Metrics

	// Arrears reports by resolved query, dropped on every write
	reports *ttlcache.Cache[arrears.Query, arrears.Report]

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the core services around one store. state is shared
// with the scheduler so both refresh the same projection.
func NewHandler(store ledger.TxStore, state *appstate.State, buckets []arrears.Bucket, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = appstate.New(logger)
	}
	return &Handler{
		Store:   store,
		Bills:   billing.NewManager(store, logger),
		Tenants: occupancy.NewTracker(store, logger),
		Arrears: arrears.NewReporter(store, buckets, logger),
		State:   state,
		Logger:  logger.Named("api"),
		reports: ttlcache.New(
			ttlcache.WithTTL[arrears.Query, arrears.Report](ReportCacheTTL),
			ttlcache.WithDisableTouchOnHit[arrears.Query, arrears.Report](),
		),
	}
}

// ReportCacheTTL bounds how stale a cached arrears report can be when the
// database is changed outside the API.
const ReportCacheTTL = 30 * time.Second

// refresh drops cached reports and rebuilds the dashboard projection
// after a write. A failure is logged; the write itself already succeeded.
func (h *Handler) refresh(ctx context.Context, reason string) {
	h.reports.DeleteAll()
	if _, err := h.State.Refresh(ctx, h.Store, reason); err != nil {
		h.Logger.Warn("state refresh failed", zap.String("reason", reason), zap.Error(err))
	}
}

// =============================================================================
// BUILDING HANDLERS
// =============================================================================

func (h *Handler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := h.Store.ListBuildings(r.Context())
	if err != nil {
		h.fail(w, "Failed to list buildings", err)
		return
	}
	dtos := make([]BuildingDTO, len(buildings))
	for i, b := range buildings {
		dtos[i] = toBuildingDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.BuildingID](w, r)
	if !ok {
		return
	}
	b, err := h.Store.GetBuilding(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get building", err)
		return
	}
	writeJSON(w, http.StatusOK, toBuildingDTO(b))
}

func (h *Handler) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req BuildingRequest
	if !decode(w, r, &req) {
		return
	}
	b := ledger.Building{Name: req.Name, Address: req.Address}
	if err := b.Validate(); err != nil {
		h.fail(w, "Invalid building", err)
		return
	}

	id, err := h.Store.CreateBuilding(r.Context(), b)
	if err != nil {
		h.fail(w, "Failed to create building", err)
		return
	}
	created, err := h.Store.GetBuilding(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load building", err)
		return
	}
	h.refresh(r.Context(), "building created")
	writeJSON(w, http.StatusCreated, toBuildingDTO(created))
}

func (h *Handler) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.BuildingID](w, r)
	if !ok {
		return
	}
	var req BuildingRequest
	if !decode(w, r, &req) {
		return
	}
	b := ledger.Building{ID: id, Name: req.Name, Address: req.Address}
	if err := b.Validate(); err != nil {
		h.fail(w, "Invalid building", err)
		return
	}
	if err := h.Store.UpdateBuilding(r.Context(), b); err != nil {
		h.fail(w, "Failed to update building", err)
		return
	}
	updated, err := h.Store.GetBuilding(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load building", err)
		return
	}
	h.refresh(r.Context(), "building updated")
	writeJSON(w, http.StatusOK, toBuildingDTO(updated))
}

func (h *Handler) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.BuildingID](w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteBuilding(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete building", err)
		return
	}
	h.refresh(r.Context(), "building deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListBuildingHouses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.BuildingID](w, r)
	if !ok {
		return
	}
	if _, err := h.Store.GetBuilding(r.Context(), id); err != nil {
		h.fail(w, "Failed to get building", err)
		return
	}
	h.writeHouses(w, r, id)
}

// =============================================================================
// HOUSE HANDLERS
// =============================================================================

func (h *Handler) ListHouses(w http.ResponseWriter, r *http.Request) {
	buildingID, ok := queryID[ledger.BuildingID](w, r, "building_id")
	if !ok {
		return
	}
	h.writeHouses(w, r, buildingID)
}

func (h *Handler) writeHouses(w http.ResponseWriter, r *http.Request, buildingID ledger.BuildingID) {
	houses, err := h.Store.ListHouses(r.Context(), buildingID)
	if err != nil {
		h.fail(w, "Failed to list houses", err)
		return
	}
	dtos := make([]HouseDTO, len(houses))
	for i, house := range houses {
		dtos[i] = toHouseDTO(house)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetHouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.HouseID](w, r)
	if !ok {
		return
	}
	house, err := h.Store.GetHouse(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get house", err)
		return
	}
	writeJSON(w, http.StatusOK, toHouseDTO(house))
}

func (h *Handler) CreateHouse(w http.ResponseWriter, r *http.Request) {
	var req HouseRequest
	if !decode(w, r, &req) {
		return
	}
	house := req.toHouse(0)
	if err := house.Validate(); err != nil {
		h.fail(w, "Invalid house", err)
		return
	}

	id, err := h.Store.CreateHouse(r.Context(), house)
	if err != nil {
		h.fail(w, "Failed to create house", err)
		return
	}
	created, err := h.Store.GetHouse(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load house", err)
		return
	}
	h.refresh(r.Context(), "house created")
	writeJSON(w, http.StatusCreated, toHouseDTO(created))
}

func (h *Handler) UpdateHouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.HouseID](w, r)
	if !ok {
		return
	}
	var req HouseRequest
	if !decode(w, r, &req) {
		return
	}
	house := req.toHouse(id)
	if err := house.Validate(); err != nil {
		h.fail(w, "Invalid house", err)
		return
	}
	if err := h.Store.UpdateHouse(r.Context(), house); err != nil {
		h.fail(w, "Failed to update house", err)
		return
	}
	updated, err := h.Store.GetHouse(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load house", err)
		return
	}
	h.refresh(r.Context(), "house updated")
	writeJSON(w, http.StatusOK, toHouseDTO(updated))
}

func (h *Handler) DeleteHouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.HouseID](w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteHouse(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete house", err)
		return
	}
	h.refresh(r.Context(), "house deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListHouseTenants(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.HouseID](w, r)
	if !ok {
		return
	}
	if _, err := h.Store.GetHouse(r.Context(), id); err != nil {
		h.fail(w, "Failed to get house", err)
		return
	}
	h.writeTenants(w, r, id)
}

func (h *Handler) ListHouseBills(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.HouseID](w, r)
	if !ok {
		return
	}
	if _, err := h.Store.GetHouse(r.Context(), id); err != nil {
		h.fail(w, "Failed to get house", err)
		return
	}
	hbs, err := h.Store.ListHouseBillsByHouse(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to list house bills", err)
		return
	}
	writeJSON(w, http.StatusOK, toHouseBillDTOs(hbs))
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	houseID, ok := queryID[ledger.HouseID](w, r, "house_id")
	if !ok {
		return
	}
	h.writeTenants(w, r, houseID)
}

func (h *Handler) writeTenants(w http.ResponseWriter, r *http.Request, houseID ledger.HouseID) {
	tenants, err := h.Store.ListTenants(r.Context(), houseID)
	if err != nil {
		h.fail(w, "Failed to list tenants", err)
		return
	}
	dtos := make([]TenantDTO, len(tenants))
	for i, t := range tenants {
		dtos[i] = toTenantDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.TenantID](w, r)
	if !ok {
		return
	}
	t, err := h.Store.GetTenant(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get tenant", err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantDTO(t))
}

// CreateTenant goes through the occupancy tracker so the house flag
// follows in the same transaction.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req TenantRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Tenants.CreateTenant(r.Context(), req.toTenant(0))
	if err != nil {
		h.fail(w, "Failed to create tenant", err)
		return
	}
	h.refresh(r.Context(), "tenant created")
	writeJSON(w, http.StatusCreated, toTenantDTO(t))
}

func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.TenantID](w, r)
	if !ok {
		return
	}
	var req TenantRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Tenants.UpdateTenant(r.Context(), req.toTenant(id))
	if err != nil {
		h.fail(w, "Failed to update tenant", err)
		return
	}
	h.refresh(r.Context(), "tenant updated")
	writeJSON(w, http.StatusOK, toTenantDTO(t))
}

func (h *Handler) MoveOutTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.TenantID](w, r)
	if !ok {
		return
	}
	var req MoveOutRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Tenants.MoveOut(r.Context(), id, req.Date)
	if err != nil {
		h.fail(w, "Failed to move tenant out", err)
		return
	}
	h.refresh(r.Context(), "tenant moved out")
	writeJSON(w, http.StatusOK, toTenantDTO(t))
}

func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.TenantID](w, r)
	if !ok {
		return
	}
	if err := h.Tenants.DeleteTenant(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete tenant", err)
		return
	}
	h.refresh(r.Context(), "tenant deleted")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	buildingID, ok := queryID[ledger.BuildingID](w, r, "building_id")
	if !ok {
		return
	}
	bills, err := h.Store.ListUtilityBills(r.Context(), buildingID)
	if err != nil {
		h.fail(w, "Failed to list bills", err)
		return
	}
	dtos := make([]UtilityBillDTO, len(bills))
	for i, b := range bills {
		dtos[i] = toUtilityBillDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBill records a utility bill and apportions it across the
// building's eligible houses. An unattributed bill is still a 201; the
// response carries the warning.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Bills.CreateBill(r.Context(), billing.CreateBillInput{
		BuildingID: req.BuildingID,
		BillType:   req.BillType,
		BillDate:   req.BillDate,
		Total:      req.TotalAmount,
	})
	if err != nil {
		h.fail(w, "Failed to create bill", err)
		return
	}
	h.refresh(r.Context(), "bill created")
	h.Metrics.BillCreated(string(res.Bill.BillType), string(res.Method))

	resp := CreateBillResponse{
		Bill:       toUtilityBillDTO(res.Bill),
		HouseBills: toHouseBillDTOs(res.HouseBills),
		Method:     string(res.Method),
		Excluded:   res.Excluded,
		Warnings:   res.Warnings,
	}
	if resp.Excluded == nil {
		resp.Excluded = []ledger.HouseID{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []billing.Warning{}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.UtilityBillID](w, r)
	if !ok {
		return
	}
	d, err := h.Bills.BillDetail(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get bill", err)
		return
	}
	writeJSON(w, http.StatusOK, BillDetailDTO{
		Bill:         toUtilityBillDTO(d.Bill),
		HouseBills:   toHouseBillDTOs(d.HouseBills),
		Paid:         ledger.FormatMoney(d.Paid),
		Outstanding:  ledger.FormatMoney(d.Outstanding),
		Unattributed: ledger.FormatMoney(d.Unattributed),
	})
}

func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.UtilityBillID](w, r)
	if !ok {
		return
	}
	if err := h.Bills.DeleteUtilityBill(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete bill", err)
		return
	}
	h.refresh(r.Context(), "bill deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.UtilityBillID](w, r)
	if !ok {
		return
	}
	res, err := h.Bills.MarkUtilityBillPaid(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to pay bill", err)
		return
	}
	h.refresh(r.Context(), "bill paid")
	h.Metrics.Payment(true, res.ChildrenPaid)
	writeJSON(w, http.StatusOK, BulkPaymentDTO{
		Bill:           toUtilityBillDTO(res.Bill),
		HouseBillsPaid: res.ChildrenPaid,
		Changed:        res.ParentChanged || res.ChildrenPaid > 0,
	})
}

func (h *Handler) PayHouseBill(w http.ResponseWriter, r *http.Request) {
	h.toggleHouseBill(w, r, true)
}

func (h *Handler) UnpayHouseBill(w http.ResponseWriter, r *http.Request) {
	h.toggleHouseBill(w, r, false)
}

func (h *Handler) toggleHouseBill(w http.ResponseWriter, r *http.Request, paid bool) {
	id, ok := pathID[ledger.HouseBillID](w, r)
	if !ok {
		return
	}
	var (
		res billing.PaymentResult
		err error
	)
	if paid {
		res, err = h.Bills.MarkHouseBillPaid(r.Context(), id)
	} else {
		res, err = h.Bills.UnmarkHouseBillPaid(r.Context(), id)
	}
	if err != nil {
		h.fail(w, "Failed to update house bill", err)
		return
	}
	if res.Changed {
		h.refresh(r.Context(), "house bill payment")
		h.Metrics.Payment(paid, 1)
	}
	writeJSON(w, http.StatusOK, PaymentDTO{
		HouseBill:  toHouseBillDTO(res.HouseBill),
		Changed:    res.Changed,
		ParentPaid: res.ParentPaid,
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetArrears returns unpaid shares owed by active tenants, with per-tenant
// and aging totals. as_of defaults to today. Reports are cached per
// (building, as_of) until the next write.
func (h *Handler) GetArrears(w http.ResponseWriter, r *http.Request) {
	buildingID, ok := queryID[ledger.BuildingID](w, r, "building_id")
	if !ok {
		return
	}
	q := arrears.Query{BuildingID: buildingID}
	if s := r.URL.Query().Get("as_of"); s != "" {
		asOf, err := ledger.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		q.AsOf = asOf
	}
	if q.AsOf.IsZero() {
		q.AsOf = ledger.DateOf(h.Arrears.Now())
	}

	if item := h.reports.Get(q); item != nil {
		writeJSON(w, http.StatusOK, toArrearsReportDTO(item.Value()))
		return
	}
	rep, err := h.Arrears.Report(r.Context(), q)
	if err != nil {
		h.fail(w, "Failed to build arrears report", err)
		return
	}
	h.reports.Set(q, rep, ttlcache.DefaultTTL)
	writeJSON(w, http.StatusOK, toArrearsReportDTO(rep))
}

// GetState returns the last dashboard projection, building one on first use.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	snap := h.State.Snapshot()
	if snap.RefreshedAt.IsZero() {
		var err error
		if snap, err = h.State.Refresh(r.Context(), h.Store, "on demand"); err != nil {
			h.fail(w, "Failed to build state", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toStateDTO(snap))
}

// ReconcileOccupancy recomputes every house's occupied flag from its
// tenants and reports how many were corrected.
func (h *Handler) ReconcileOccupancy(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.Tenants.Reconcile(r.Context())
	if err != nil {
		h.fail(w, "Failed to reconcile occupancy", err)
		return
	}
	if fixed > 0 {
		h.refresh(r.Context(), "occupancy reconciled")
		h.Metrics.OccupancyCorrected(fixed)
	}
	writeJSON(w, http.StatusOK, map[string]int{"houses_fixed": fixed})
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

func (h *Handler) ListServiceProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.Store.ListServiceProviders(r.Context())
	if err != nil {
		h.fail(w, "Failed to list service providers", err)
		return
	}
	dtos := make([]ServiceProviderDTO, len(providers))
	for i, p := range providers {
		dtos[i] = toServiceProviderDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateServiceProvider(w http.ResponseWriter, r *http.Request) {
	var req ServiceProviderRequest
	if !decode(w, r, &req) {
		return
	}
	p := ledger.ServiceProvider{Name: req.Name, Service: req.Service, Phone: req.Phone, Email: req.Email}
	if err := p.Validate(); err != nil {
		h.fail(w, "Invalid service provider", err)
		return
	}
	id, err := h.Store.CreateServiceProvider(r.Context(), p)
	if err != nil {
		h.fail(w, "Failed to create service provider", err)
		return
	}
	created, err := h.Store.GetServiceProvider(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load service provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceProviderDTO(created))
}

func (h *Handler) DeleteServiceProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.ServiceProviderID](w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteServiceProvider(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete service provider", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListServiceRecords(w http.ResponseWriter, r *http.Request) {
	houseID, ok := queryID[ledger.HouseID](w, r, "house_id")
	if !ok {
		return
	}
	records, err := h.Store.ListServiceRecords(r.Context(), houseID)
	if err != nil {
		h.fail(w, "Failed to list service records", err)
		return
	}
	dtos := make([]ServiceRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toServiceRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetServiceRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.ServiceRecordID](w, r)
	if !ok {
		return
	}
	rec, err := h.Store.GetServiceRecord(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get service record", err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceRecordDTO(rec))
}

func (h *Handler) CreateServiceRecord(w http.ResponseWriter, r *http.Request) {
	var req ServiceRecordRequest
	if !decode(w, r, &req) {
		return
	}
	rec := req.toRecord(0)
	if err := rec.Validate(); err != nil {
		h.fail(w, "Invalid service record", err)
		return
	}
	id, err := h.Store.CreateServiceRecord(r.Context(), rec)
	if err != nil {
		h.fail(w, "Failed to create service record", err)
		return
	}
	created, err := h.Store.GetServiceRecord(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load service record", err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceRecordDTO(created))
}

func (h *Handler) UpdateServiceRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.ServiceRecordID](w, r)
	if !ok {
		return
	}
	var req ServiceRecordRequest
	if !decode(w, r, &req) {
		return
	}
	rec := req.toRecord(id)
	if err := rec.Validate(); err != nil {
		h.fail(w, "Invalid service record", err)
		return
	}
	if err := h.Store.UpdateServiceRecord(r.Context(), rec); err != nil {
		h.fail(w, "Failed to update service record", err)
		return
	}
	updated, err := h.Store.GetServiceRecord(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load service record", err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceRecordDTO(updated))
}

func (h *Handler) DeleteServiceRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID[ledger.ServiceRecordID](w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteServiceRecord(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete service record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps ledger error categories to HTTP statuses.
func statusFor(err error) int {
	switch {
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its category maps to. Only 5xx are logged.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

type rowID interface {
	~int64
}

func pathID[T rowID](w http.ResponseWriter, r *http.Request) (T, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return T(n), true
}

// queryID reads an optional ID filter; absent means 0 (no filter).
func queryID[T rowID](w http.ResponseWriter, r *http.Request, name string) (T, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return T(n), true
}
