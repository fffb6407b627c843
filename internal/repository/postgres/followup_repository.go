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

// FollowUpRepository persists follow-up notes and keeps the customer's
// follow count in step.
type FollowUpRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewFollowUpRepository constructs the repository.
func NewFollowUpRepository(db *sqlx.DB) *FollowUpRepository {
	return &FollowUpRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateFollowUp inserts the note and bumps customers.follow_count in one
// transaction. ID and CreatedAt are filled in on success.
func (r *FollowUpRepository) CreateFollowUp(ctx context.Context, f *domain.FollowUp) error {
	if f.FollowedAt.IsZero() {
		f.FollowedAt = r.now()
	}
	rec := newFollowUpRecord(*f)

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE customers SET follow_count = follow_count + 1, updated_at = $1 WHERE id = $2`,
			r.now(), rec.CustomerID)
		if err != nil {
			return fmt.Errorf("follow-ups: bump count: %w", err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("follow-ups: rows affected: %w", err)
		} else if affected == 0 {
			return repository.ErrNotFound
		}

		row := tx.QueryRowxContext(ctx, `INSERT INTO follow_ups
			(customer_id, follower_id, content, result, followed_at, next_follow_at, call_duration_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			rec.CustomerID, rec.FollowerID, rec.Content, rec.Result, rec.FollowedAt, rec.NextFollowAt, rec.CallDurationSeconds)
		if err := row.Scan(&f.ID, &f.CreatedAt); err != nil {
			return fmt.Errorf("follow-ups: insert: %w", err)
		}
		return nil
	})
}

// ListFollowUps returns a customer's notes, newest first.
func (r *FollowUpRepository) ListFollowUps(ctx context.Context, customerID int64, limit int) ([]domain.FollowUp, error) {
	if limit <= 0 {
		limit = 50
	}

	var recs []followUpRecord
	err := r.db.SelectContext(ctx, &recs, `SELECT id, customer_id, follower_id, content, result, followed_at,
			next_follow_at, call_duration_seconds, created_at
		FROM follow_ups
		WHERE customer_id = $1
		ORDER BY followed_at DESC, id DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("follow-ups: list: %w", err)
	}

	out := make([]domain.FollowUp, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toModel())
	}
	return out, nil
}

type followUpRecord struct {
	ID                  int64        `db:"id"`
	CustomerID          int64        `db:"customer_id"`
	FollowerID          int64        `db:"follower_id"`
	Content             string       `db:"content"`
	Result              string       `db:"result"`
	FollowedAt          time.Time    `db:"followed_at"`
	NextFollowAt        sql.NullTime `db:"next_follow_at"`
	CallDurationSeconds int64        `db:"call_duration_seconds"`
	CreatedAt           time.Time    `db:"created_at"`
}

func newFollowUpRecord(f domain.FollowUp) followUpRecord {
	rec := followUpRecord{
		ID:                  f.ID,
		CustomerID:          f.CustomerID,
		FollowerID:          f.FollowerID,
		Content:             f.Content,
		Result:              string(f.Result),
		FollowedAt:          f.FollowedAt.UTC(),
		CallDurationSeconds: int64(f.CallDuration / time.Second),
		CreatedAt:           f.CreatedAt,
	}
	if f.NextFollowAt != nil {
		rec.NextFollowAt = sql.NullTime{Time: f.NextFollowAt.UTC(), Valid: true}
	}
	return rec
}

func (r followUpRecord) toModel() domain.FollowUp {
	f := domain.FollowUp{
		ID:           r.ID,
		CustomerID:   r.CustomerID,
		FollowerID:   r.FollowerID,
		Content:      r.Content,
		Result:       domain.FollowUpResult(r.Result),
		FollowedAt:   r.FollowedAt.UTC(),
		CallDuration: time.Duration(r.CallDurationSeconds) * time.Second,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.NextFollowAt.Valid {
		next := r.NextFollowAt.Time.UTC()
		f.NextFollowAt = &next
	}
	return f
}
