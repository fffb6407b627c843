package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/sales-dialer/internal/domain"
	apperrors "github.com/acme/sales-dialer/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// TargetRepository reads dialable contacts and writes back contact bookkeeping.
type TargetRepository interface {
	ListDialable(ctx context.Context, ownerID int64, limit int) ([]domain.DialTarget, error)
	SaveContactResults(ctx context.Context, targets []domain.DialTarget) error
	UpdateStatus(ctx context.Context, customerID int64, status domain.CustomerStatus) error
}

// FollowUpRepository stores notes recorded against customers.
type FollowUpRepository interface {
	CreateFollowUp(ctx context.Context, followUp *domain.FollowUp) error
	ListFollowUps(ctx context.Context, customerID int64, limit int) ([]domain.FollowUp, error)
}

// AttemptStore keeps the history of processed dial targets.
type AttemptStore interface {
	AppendAttempt(ctx context.Context, attempt domain.DialAttempt) error
	ListAttempts(ctx context.Context, targetID int64, limit int, pagingState []byte) ([]domain.DialAttempt, []byte, error)
}

// StatusCache shares the latest status snapshot of a run across replicas.
type StatusCache interface {
	PutStatus(ctx context.Context, runID uuid.UUID, status domain.StatusSnapshot) error
	GetStatus(ctx context.Context, runID uuid.UUID) (domain.StatusSnapshot, error)
}
