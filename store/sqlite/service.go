package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/rental-ledger/ledger"
)

// =============================================================================
// SERVICE PROVIDERS
// =============================================================================

// CreateServiceProvider inserts a maintenance vendor.
func (s *Store) CreateServiceProvider(ctx context.Context, p ledger.ServiceProvider) (ledger.ServiceProviderID, error) {
	id, err := s.insert(ctx, `
		INSERT INTO service_providers (name, service, phone, email, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Service, p.Phone, p.Email, now(),
	)
	return ledger.ServiceProviderID(id), err
}

// GetServiceProvider retrieves a vendor by ID.
func (s *Store) GetServiceProvider(ctx context.Context, id ledger.ServiceProviderID) (ledger.ServiceProvider, error) {
	var (
		p         ledger.ServiceProvider
		createdAt string
	)
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, service, phone, email, created_at FROM service_providers WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Service, &p.Phone, &p.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ledger.NotFound("service provider", int64(id))
	}
	if err != nil {
		return p, err
	}
	var dec decoder
	p.CreatedAt = dec.timestamp("service_providers.created_at", createdAt)
	return p, dec.err
}

// ListServiceProviders returns every vendor.
func (s *Store) ListServiceProviders(ctx context.Context) ([]ledger.ServiceProvider, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, name, service, phone, email, created_at FROM service_providers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query service providers: %w", err)
	}
	defer rows.Close()

	var providers []ledger.ServiceProvider
	for rows.Next() {
		var (
			p         ledger.ServiceProvider
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Service, &p.Phone, &p.Email, &createdAt); err != nil {
			return nil, err
		}
		var dec decoder
		p.CreatedAt = dec.timestamp("service_providers.created_at", createdAt)
		if dec.err != nil {
			return nil, dec.err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// DeleteServiceProvider deletes a vendor and the records it worked on.
func (s *Store) DeleteServiceProvider(ctx context.Context, id ledger.ServiceProviderID) error {
	return s.inTx(ctx, func(ts *Store) error {
		if err := ts.mustExist(ctx, "service_providers", "service provider", int64(id)); err != nil {
			return err
		}
		if _, err := ts.q.ExecContext(ctx, "DELETE FROM service_records WHERE provider_id = ?", id); err != nil {
			return err
		}
		_, err := ts.q.ExecContext(ctx, "DELETE FROM service_providers WHERE id = ?", id)
		return err
	})
}

// =============================================================================
// SERVICE RECORDS
// =============================================================================

const recordColumns = "id, house_id, provider_id, description, cost, service_date, is_completed, created_at"

func (s *Store) checkRecordRefs(ctx context.Context, r ledger.ServiceRecord) error {
	if err := s.mustExist(ctx, "houses", "house", int64(r.HouseID)); err != nil {
		return err
	}
	if r.ProviderID != nil {
		return s.mustExist(ctx, "service_providers", "service provider", int64(*r.ProviderID))
	}
	return nil
}

// CreateServiceRecord inserts a work order.
func (s *Store) CreateServiceRecord(ctx context.Context, r ledger.ServiceRecord) (ledger.ServiceRecordID, error) {
	if err := s.checkRecordRefs(ctx, r); err != nil {
		return 0, err
	}
	id, err := s.insert(ctx, `
		INSERT INTO service_records (house_id, provider_id, description, cost, service_date, is_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.HouseID, nullProvider(r.ProviderID), r.Description, money(r.Cost), r.ServiceDate.String(),
		r.IsCompleted, now(),
	)
	return ledger.ServiceRecordID(id), err
}

// GetServiceRecord retrieves a work order by ID.
func (s *Store) GetServiceRecord(ctx context.Context, id ledger.ServiceRecordID) (ledger.ServiceRecord, error) {
	records, err := s.queryRecords(ctx, "SELECT "+recordColumns+" FROM service_records WHERE id = ?", id)
	if err != nil {
		return ledger.ServiceRecord{}, err
	}
	if len(records) == 0 {
		return ledger.ServiceRecord{}, ledger.NotFound("service record", int64(id))
	}
	return records[0], nil
}

// ListServiceRecords returns a house's work orders (all for 0).
func (s *Store) ListServiceRecords(ctx context.Context, houseID ledger.HouseID) ([]ledger.ServiceRecord, error) {
	query := "SELECT " + recordColumns + " FROM service_records"
	var args []any
	if houseID != 0 {
		query += " WHERE house_id = ?"
		args = append(args, houseID)
	}
	query += " ORDER BY id"
	return s.queryRecords(ctx, query, args...)
}

// UpdateServiceRecord updates a work order.
func (s *Store) UpdateServiceRecord(ctx context.Context, r ledger.ServiceRecord) error {
	if err := s.checkRecordRefs(ctx, r); err != nil {
		return err
	}
	return s.update(ctx, "service record", int64(r.ID), `
		UPDATE service_records SET house_id = ?, provider_id = ?, description = ?, cost = ?,
		                           service_date = ?, is_completed = ?
		WHERE id = ?`,
		r.HouseID, nullProvider(r.ProviderID), r.Description, money(r.Cost), r.ServiceDate.String(),
		r.IsCompleted, r.ID,
	)
}

// DeleteServiceRecord deletes a work order.
func (s *Store) DeleteServiceRecord(ctx context.Context, id ledger.ServiceRecordID) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM service_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete service record %d: %w", id, err)
	}
	return affected(res, "service record", int64(id))
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]ledger.ServiceRecord, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query service records: %w", err)
	}
	defer rows.Close()

	var records []ledger.ServiceRecord
	for rows.Next() {
		var (
			r           ledger.ServiceRecord
			providerID  sql.NullInt64
			cost        string
			serviceDate string
			createdAt   string
		)
		if err := rows.Scan(&r.ID, &r.HouseID, &providerID, &r.Description, &cost, &serviceDate,
			&r.IsCompleted, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan service record: %w", err)
		}
		if providerID.Valid {
			pid := ledger.ServiceProviderID(providerID.Int64)
			r.ProviderID = &pid
		}
		var dec decoder
		r.Cost = dec.money("service_records.cost", cost)
		r.ServiceDate = dec.date("service_records.service_date", serviceDate)
		r.CreatedAt = dec.timestamp("service_records.created_at", createdAt)
		if dec.err != nil {
			return nil, dec.err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullProvider(id *ledger.ServiceProviderID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
