package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/repository"
)

// TargetRepository reads customers from the CRM database.
type TargetRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewTargetRepository constructs the repository.
func NewTargetRepository(db *sqlx.DB) *TargetRepository {
	return &TargetRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ListDialable returns the owner's customers whose status allows dialing.
func (r *TargetRepository) ListDialable(ctx context.Context, ownerID int64, limit int) ([]domain.DialTarget, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT id, owner_id, name, phone, level, status, last_contact_at, contact_count
		FROM customers
		WHERE owner_id = $1 AND status IN ($2, $3)
		ORDER BY id ASC
		LIMIT $4`,
		ownerID, string(domain.CustomerStatusValid), string(domain.CustomerStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("targets: list dialable: %w", err)
	}
	defer rows.Close()

	var results []domain.DialTarget
	for rows.Next() {
		var rec customerRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("targets: scan: %w", err)
		}
		results = append(results, rec.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("targets: rows err: %w", err)
	}

	return results, nil
}

// SaveContactResults writes last-contact time and contact count for every
// target in one transaction.
func (r *TargetRepository) SaveContactResults(ctx context.Context, targets []domain.DialTarget) error {
	if len(targets) == 0 {
		return nil
	}

	updatedAt := r.now()
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `UPDATE customers
			SET last_contact_at = $1, contact_count = $2, updated_at = $3
			WHERE id = $4`)
		if err != nil {
			return fmt.Errorf("targets: prepare update: %w", err)
		}
		defer stmt.Close()

		for _, t := range targets {
			rec := newCustomerRecord(t)
			if _, err := stmt.ExecContext(ctx, rec.LastContact, rec.ContactCount, updatedAt, rec.ID); err != nil {
				return fmt.Errorf("targets: update %d: %w", t.ID, err)
			}
		}
		return nil
	})
}

// UpdateStatus moves a customer to a new CRM state. Customers that are not
// dialable drop out of later runs.
func (r *TargetRepository) UpdateStatus(ctx context.Context, customerID int64, status domain.CustomerStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE customers SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), r.now(), customerID)
	if err != nil {
		return fmt.Errorf("targets: update status %d: %w", customerID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("targets: update status rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type customerRecord struct {
	ID           int64          `db:"id"`
	OwnerID      int64          `db:"owner_id"`
	Name         string         `db:"name"`
	Phone        sql.NullString `db:"phone"`
	Level        sql.NullString `db:"level"`
	Status       string         `db:"status"`
	LastContact  sql.NullTime   `db:"last_contact_at"`
	ContactCount int            `db:"contact_count"`
}

func newCustomerRecord(t domain.DialTarget) customerRecord {
	rec := customerRecord{
		ID:           t.ID,
		OwnerID:      t.OwnerID,
		Name:         t.Name,
		Phone:        sql.NullString{String: t.Phone, Valid: t.Phone != ""},
		Level:        sql.NullString{String: string(t.Level), Valid: t.Level != ""},
		Status:       string(t.Status),
		ContactCount: t.ContactCount,
	}
	if at := t.LastContactTime(); !at.IsZero() {
		rec.LastContact = sql.NullTime{Time: at, Valid: true}
	}
	return rec
}

func (r customerRecord) toModel() domain.DialTarget {
	target := domain.DialTarget{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Phone:        r.Phone.String,
		Level:        domain.Level(r.Level.String),
		Status:       domain.CustomerStatus(r.Status),
		ContactCount: r.ContactCount,
	}
	if r.LastContact.Valid {
		target.LastContact = r.LastContact.Time.UnixMilli()
	}
	return target
}
