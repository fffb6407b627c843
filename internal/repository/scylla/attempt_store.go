package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/sales-dialer/internal/domain"
)

// AttemptStore persists processed dial targets in Scylla, partitioned by
// target so a contact's history reads newest first.
type AttemptStore struct {
	session *gocql.Session
}

// NewAttemptStore creates a new attempt store.
func NewAttemptStore(session *gocql.Session) *AttemptStore {
	return &AttemptStore{session: session}
}

// AppendAttempt records one processed target.
func (s *AttemptStore) AppendAttempt(ctx context.Context, attempt domain.DialAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = time.Now().UTC()
	}

	if err := s.session.Query(`INSERT INTO dial_attempts_by_target (target_id, occurred_at, attempt_id, run_id, phone, succeeded, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.TargetID, attempt.OccurredAt, attempt.ID.String(), attempt.RunID.String(),
		attempt.Phone, attempt.Succeeded, attempt.Error,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("attempt store: append attempt: %w", err)
	}
	return nil
}

// ListAttempts pages through a target's attempts, newest first.
func (s *AttemptStore) ListAttempts(ctx context.Context, targetID int64, limit int, pagingState []byte) ([]domain.DialAttempt, []byte, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.session.Query(`SELECT occurred_at, attempt_id, run_id, phone, succeeded, error
		FROM dial_attempts_by_target WHERE target_id = ?`, targetID).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	attempts := make([]domain.DialAttempt, 0, limit)

	var (
		occurred  time.Time
		attemptID string
		runID     string
		phone     string
		succeeded bool
		errText   string
	)

	for iter.Scan(&occurred, &attemptID, &runID, &phone, &succeeded, &errText) {
		attempt, err := toAttempt(targetID, occurred, attemptID, runID, phone, succeeded, errText)
		if err != nil {
			continue
		}
		attempts = append(attempts, attempt)
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("attempt store: iter close: %w", err)
	}

	return attempts, iter.PageState(), nil
}

func toAttempt(targetID int64, occurred time.Time, attemptID, runID, phone string, succeeded bool, errText string) (domain.DialAttempt, error) {
	id, err := uuid.Parse(attemptID)
	if err != nil {
		return domain.DialAttempt{}, fmt.Errorf("attempt store: parse attempt_id: %w", err)
	}
	run, err := uuid.Parse(runID)
	if err != nil {
		return domain.DialAttempt{}, fmt.Errorf("attempt store: parse run_id: %w", err)
	}
	return domain.DialAttempt{
		ID:         id,
		RunID:      run,
		TargetID:   targetID,
		Phone:      phone,
		Succeeded:  succeeded,
		Error:      errText,
		OccurredAt: occurred.UTC(),
	}, nil
}
