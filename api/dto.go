/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Responses carry money as fixed two-decimal strings ("1250.00") so no
  client ever parses currency into a float. Requests accept a string or a
  bare JSON number. Dates are "YYYY-MM-DD" both ways.

VALIDATION:
  Validation is done by the ledger types (Validate methods) and the core
  packages, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-ledger/appstate"
	"github.com/warp/rental-ledger/arrears"
	"github.com/warp/rental-ledger/billing"
	"github.com/warp/rental-ledger/ledger"
)

// =============================================================================
// BUILDINGS & HOUSES
// =============================================================================

type BuildingDTO struct {
	ID        ledger.BuildingID `json:"id"`
	Name      string            `json:"name"`
	Address   string            `json:"address"`
	CreatedAt string            `json:"created_at"`
}

type BuildingRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type HouseDTO struct {
	ID               ledger.HouseID    `json:"id"`
	BuildingID       ledger.BuildingID `json:"building_id"`
	HouseNumber      string            `json:"house_number"`
	Type             ledger.HouseType  `json:"type"`
	RentAmount       string            `json:"rent_amount"`
	IsOccupied       bool              `json:"is_occupied"`
	ElectricityMeter ledger.MeterType  `json:"electricity_meter"`
	WaterMeter       ledger.MeterType  `json:"water_meter"`
	CreatedAt        string            `json:"created_at"`
}

// HouseRequest has no is_occupied: occupancy follows the tenants.
type HouseRequest struct {
	BuildingID       ledger.BuildingID `json:"building_id"`
	HouseNumber      string            `json:"house_number"`
	Type             ledger.HouseType  `json:"type"`
	RentAmount       decimal.Decimal   `json:"rent_amount"`
	ElectricityMeter ledger.MeterType  `json:"electricity_meter"`
	WaterMeter       ledger.MeterType  `json:"water_meter"`
}

// =============================================================================
// TENANTS
// =============================================================================

type TenantDTO struct {
	ID          ledger.TenantID `json:"id"`
	HouseID     ledger.HouseID  `json:"house_id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email,omitempty"`
	Occupants   int             `json:"occupants"`
	MoveInDate  ledger.Date     `json:"move_in_date"`
	MoveOutDate *ledger.Date    `json:"move_out_date,omitempty"`
	IsActive    bool            `json:"is_active"`
	RentDueDay  *int            `json:"rent_due_day,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

type TenantRequest struct {
	HouseID     ledger.HouseID `json:"house_id"`
	Name        string         `json:"name"`
	Phone       string         `json:"phone"`
	Email       string         `json:"email"`
	Occupants   int            `json:"occupants"`
	MoveInDate  ledger.Date    `json:"move_in_date"`
	MoveOutDate *ledger.Date   `json:"move_out_date"`
	// IsActive defaults to true when omitted.
	IsActive   *bool `json:"is_active"`
	RentDueDay *int  `json:"rent_due_day"`
}

type MoveOutRequest struct {
	Date ledger.Date `json:"date"`
}

// =============================================================================
// BILLS
// =============================================================================

type UtilityBillDTO struct {
	ID          ledger.UtilityBillID `json:"id"`
	BuildingID  ledger.BuildingID    `json:"building_id"`
	BillType    ledger.BillType      `json:"bill_type"`
	BillDate    ledger.Date          `json:"bill_date"`
	TotalAmount string               `json:"total_amount"`
	IsPaid      bool                 `json:"is_paid"`
	CreatedAt   string               `json:"created_at"`
}

type HouseBillDTO struct {
	ID            ledger.HouseBillID   `json:"id"`
	HouseID       ledger.HouseID       `json:"house_id"`
	UtilityBillID ledger.UtilityBillID `json:"utility_bill_id"`
	Amount        string               `json:"amount"`
	IsPaid        bool                 `json:"is_paid"`
}

type CreateBillRequest struct {
	BuildingID  ledger.BuildingID `json:"building_id"`
	BillType    ledger.BillType   `json:"bill_type"`
	BillDate    ledger.Date       `json:"bill_date"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
}

type CreateBillResponse struct {
	Bill       UtilityBillDTO    `json:"bill"`
	HouseBills []HouseBillDTO    `json:"house_bills"`
	Method     string            `json:"method"`
	Excluded   []ledger.HouseID  `json:"excluded_house_ids"`
	Warnings   []billing.Warning `json:"warnings"`
}

type BillDetailDTO struct {
	Bill         UtilityBillDTO `json:"bill"`
	HouseBills   []HouseBillDTO `json:"house_bills"`
	Paid         string         `json:"paid"`
	Outstanding  string         `json:"outstanding"`
	Unattributed string         `json:"unattributed"`
}

type PaymentDTO struct {
	HouseBill  HouseBillDTO `json:"house_bill"`
	Changed    bool         `json:"changed"`
	ParentPaid bool         `json:"parent_paid"`
}

type BulkPaymentDTO struct {
	Bill           UtilityBillDTO `json:"bill"`
	HouseBillsPaid int            `json:"house_bills_paid"`
	Changed        bool           `json:"changed"`
}

// =============================================================================
// ARREARS
// =============================================================================

type ArrearsRowDTO struct {
	TenantID     ledger.TenantID      `json:"tenant_id"`
	TenantName   string               `json:"tenant_name"`
	TenantPhone  string               `json:"tenant_phone"`
	HouseID      ledger.HouseID       `json:"house_id"`
	HouseNumber  string               `json:"house_number"`
	BuildingID   ledger.BuildingID    `json:"building_id"`
	BuildingName string               `json:"building_name"`
	HouseBillID  ledger.HouseBillID   `json:"house_bill_id"`
	BillID       ledger.UtilityBillID `json:"bill_id"`
	BillType     ledger.BillType      `json:"bill_type"`
	BillDate     ledger.Date          `json:"bill_date"`
	Amount       string               `json:"amount"`
	IsPaid       bool                 `json:"is_paid"`
}

type TenantArrearsDTO struct {
	TenantID     ledger.TenantID `json:"tenant_id"`
	TenantName   string          `json:"tenant_name"`
	TenantPhone  string          `json:"tenant_phone"`
	HouseNumber  string          `json:"house_number"`
	BuildingName string          `json:"building_name"`
	Bills        int             `json:"bills"`
	Amount       string          `json:"amount"`
}

type AgingDTO struct {
	Label  string `json:"label"`
	Bills  int    `json:"bills"`
	Amount string `json:"amount"`
}

type ArrearsReportDTO struct {
	AsOf    ledger.Date        `json:"as_of"`
	Rows    []ArrearsRowDTO    `json:"rows"`
	Total   string             `json:"total"`
	Tenants []TenantArrearsDTO `json:"tenants"`
	Aging   []AgingDTO         `json:"aging"`
}

// =============================================================================
// SERVICE PROVIDERS & RECORDS
// =============================================================================

type ServiceProviderDTO struct {
	ID        ledger.ServiceProviderID `json:"id"`
	Name      string                   `json:"name"`
	Service   string                   `json:"service"`
	Phone     string                   `json:"phone"`
	Email     string                   `json:"email"`
	CreatedAt string                   `json:"created_at"`
}

type ServiceProviderRequest struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type ServiceRecordDTO struct {
	ID          ledger.ServiceRecordID    `json:"id"`
	HouseID     ledger.HouseID            `json:"house_id"`
	ProviderID  *ledger.ServiceProviderID `json:"provider_id,omitempty"`
	Description string                    `json:"description"`
	Cost        string                    `json:"cost"`
	ServiceDate ledger.Date               `json:"service_date"`
	IsCompleted bool                      `json:"is_completed"`
	CreatedAt   string                    `json:"created_at"`
}

type ServiceRecordRequest struct {
	HouseID     ledger.HouseID            `json:"house_id"`
	ProviderID  *ledger.ServiceProviderID `json:"provider_id"`
	Description string                    `json:"description"`
	Cost        decimal.Decimal           `json:"cost"`
	ServiceDate ledger.Date               `json:"service_date"`
	IsCompleted bool                      `json:"is_completed"`
}

// =============================================================================
// STATE & SCENARIOS
// =============================================================================

type StateDTO struct {
	Buildings      int     `json:"buildings"`
	Houses         int     `json:"houses"`
	OccupiedHouses int     `json:"occupied_houses"`
	OccupancyRate  float64 `json:"occupancy_rate"`
	ActiveTenants  int     `json:"active_tenants"`
	UtilityBills   int     `json:"utility_bills"`
	UnpaidBills    int     `json:"unpaid_bills"`
	Outstanding    string  `json:"outstanding"`
	Source         string  `json:"source"`
	RefreshedAt    string  `json:"refreshed_at,omitempty"`
}

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toBuildingDTO(b ledger.Building) BuildingDTO {
	return BuildingDTO{ID: b.ID, Name: b.Name, Address: b.Address, CreatedAt: timestamp(b.CreatedAt)}
}

func toHouseDTO(h ledger.House) HouseDTO {
	return HouseDTO{
		ID:               h.ID,
		BuildingID:       h.BuildingID,
		HouseNumber:      h.HouseNumber,
		Type:             h.Type,
		RentAmount:       ledger.FormatMoney(h.RentAmount),
		IsOccupied:       h.IsOccupied,
		ElectricityMeter: h.ElectricityMeter,
		WaterMeter:       h.WaterMeter,
		CreatedAt:        timestamp(h.CreatedAt),
	}
}

func (req HouseRequest) toHouse(id ledger.HouseID) ledger.House {
	return ledger.House{
		ID:               id,
		BuildingID:       req.BuildingID,
		HouseNumber:      req.HouseNumber,
		Type:             req.Type,
		RentAmount:       ledger.RoundMoney(req.RentAmount),
		ElectricityMeter: req.ElectricityMeter,
		WaterMeter:       req.WaterMeter,
	}
}

func toTenantDTO(t ledger.Tenant) TenantDTO {
	return TenantDTO{
		ID:          t.ID,
		HouseID:     t.HouseID,
		Name:        t.Name,
		Phone:       t.Phone,
		Email:       t.Email,
		Occupants:   t.Occupants,
		MoveInDate:  t.MoveInDate,
		MoveOutDate: t.MoveOutDate,
		IsActive:    t.IsActive,
		RentDueDay:  t.RentDueDay,
		CreatedAt:   timestamp(t.CreatedAt),
	}
}

func (req TenantRequest) toTenant(id ledger.TenantID) ledger.Tenant {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return ledger.Tenant{
		ID:          id,
		HouseID:     req.HouseID,
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		Occupants:   req.Occupants,
		MoveInDate:  req.MoveInDate,
		MoveOutDate: req.MoveOutDate,
		IsActive:    active,
		RentDueDay:  req.RentDueDay,
	}
}

func toUtilityBillDTO(b ledger.UtilityBill) UtilityBillDTO {
	return UtilityBillDTO{
		ID:          b.ID,
		BuildingID:  b.BuildingID,
		BillType:    b.BillType,
		BillDate:    b.BillDate,
		TotalAmount: ledger.FormatMoney(b.TotalAmount),
		IsPaid:      b.IsPaid,
		CreatedAt:   timestamp(b.CreatedAt),
	}
}

func toHouseBillDTO(hb ledger.HouseBill) HouseBillDTO {
	return HouseBillDTO{
		ID:            hb.ID,
		HouseID:       hb.HouseID,
		UtilityBillID: hb.UtilityBillID,
		Amount:        ledger.FormatMoney(hb.Amount),
		IsPaid:        hb.IsPaid,
	}
}

func toHouseBillDTOs(hbs []ledger.HouseBill) []HouseBillDTO {
	out := make([]HouseBillDTO, len(hbs))
	for i, hb := range hbs {
		out[i] = toHouseBillDTO(hb)
	}
	return out
}

func toArrearsReportDTO(rep arrears.Report) ArrearsReportDTO {
	dto := ArrearsReportDTO{
		AsOf:    rep.AsOf,
		Rows:    make([]ArrearsRowDTO, len(rep.Rows)),
		Total:   ledger.FormatMoney(rep.Total),
		Tenants: make([]TenantArrearsDTO, len(rep.Tenants)),
		Aging:   make([]AgingDTO, len(rep.Aging)),
	}
	for i, r := range rep.Rows {
		dto.Rows[i] = ArrearsRowDTO{
			TenantID:     r.TenantID,
			TenantName:   r.TenantName,
			TenantPhone:  r.TenantPhone,
			HouseID:      r.HouseID,
			HouseNumber:  r.HouseNumber,
			BuildingID:   r.BuildingID,
			BuildingName: r.BuildingName,
			HouseBillID:  r.HouseBillID,
			BillID:       r.BillID,
			BillType:     r.BillType,
			BillDate:     r.BillDate,
			Amount:       ledger.FormatMoney(r.Amount),
			IsPaid:       r.IsPaid,
		}
	}
	for i, t := range rep.Tenants {
		dto.Tenants[i] = TenantArrearsDTO{
			TenantID:     t.TenantID,
			TenantName:   t.TenantName,
			TenantPhone:  t.TenantPhone,
			HouseNumber:  t.HouseNumber,
			BuildingName: t.BuildingName,
			Bills:        t.Bills,
			Amount:       ledger.FormatMoney(t.Amount),
		}
	}
	for i, a := range rep.Aging {
		dto.Aging[i] = AgingDTO{Label: a.Label, Bills: a.Bills, Amount: ledger.FormatMoney(a.Amount)}
	}
	return dto
}

func toServiceProviderDTO(p ledger.ServiceProvider) ServiceProviderDTO {
	return ServiceProviderDTO{
		ID:        p.ID,
		Name:      p.Name,
		Service:   p.Service,
		Phone:     p.Phone,
		Email:     p.Email,
		CreatedAt: timestamp(p.CreatedAt),
	}
}

func toServiceRecordDTO(r ledger.ServiceRecord) ServiceRecordDTO {
	return ServiceRecordDTO{
		ID:          r.ID,
		HouseID:     r.HouseID,
		ProviderID:  r.ProviderID,
		Description: r.Description,
		Cost:        ledger.FormatMoney(r.Cost),
		ServiceDate: r.ServiceDate,
		IsCompleted: r.IsCompleted,
		CreatedAt:   timestamp(r.CreatedAt),
	}
}

func (req ServiceRecordRequest) toRecord(id ledger.ServiceRecordID) ledger.ServiceRecord {
	return ledger.ServiceRecord{
		ID:          id,
		HouseID:     req.HouseID,
		ProviderID:  req.ProviderID,
		Description: req.Description,
		Cost:        ledger.RoundMoney(req.Cost),
		ServiceDate: req.ServiceDate,
		IsCompleted: req.IsCompleted,
	}
}

func toStateDTO(s appstate.Snapshot) StateDTO {
	return StateDTO{
		Buildings:      s.Buildings,
		Houses:         s.Houses,
		OccupiedHouses: s.OccupiedHouses,
		OccupancyRate:  s.Occupancy(),
		ActiveTenants:  s.ActiveTenants,
		UtilityBills:   s.UtilityBills,
		UnpaidBills:    s.UnpaidBills,
		Outstanding:    ledger.FormatMoney(s.Outstanding),
		Source:         s.Source,
		RefreshedAt:    timestamp(s.RefreshedAt),
	}
}
