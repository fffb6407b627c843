package followup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/repository"
	apperrors "github.com/acme/sales-dialer/pkg/errors"
	"github.com/acme/sales-dialer/pkg/logger"
)

const maxListLimit = 200

// Service records call notes and moves customers between CRM states.
type Service struct {
	followUps repository.FollowUpRepository
	targets   repository.TargetRepository
	log       *logger.Logger
	now       func() time.Time
}

// NewService builds the follow-up service.
func NewService(followUps repository.FollowUpRepository, targets repository.TargetRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		followUps: followUps,
		targets:   targets,
		log:       log.Named("followup"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordInput describes a note taken after a call.
type RecordInput struct {
	CustomerID   int64
	FollowerID   int64
	Content      string
	Result       string
	NextFollowAt *time.Time
	CallDuration time.Duration
}

// Record validates and stores a follow-up note.
func (s *Service) Record(ctx context.Context, input RecordInput) (domain.FollowUp, error) {
	f, err := s.validate(input)
	if err != nil {
		return domain.FollowUp{}, err
	}

	if err := s.followUps.CreateFollowUp(ctx, &f); err != nil {
		return domain.FollowUp{}, fmt.Errorf("followup service: record: %w", err)
	}

	s.log.Info("follow-up recorded",
		zap.Int64("customer_id", f.CustomerID),
		zap.Int64("follow_up_id", f.ID),
		zap.String("result", string(f.Result)),
	)
	return f, nil
}

func (s *Service) validate(input RecordInput) (domain.FollowUp, error) {
	if input.CustomerID <= 0 {
		return domain.FollowUp{}, apperrors.Wrap(apperrors.ErrValidation, "customer id must be positive")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return domain.FollowUp{}, apperrors.Wrap(apperrors.ErrValidation, "content is required")
	}
	if input.CallDuration < 0 {
		return domain.FollowUp{}, apperrors.Wrap(apperrors.ErrValidation, "call duration must not be negative")
	}

	name := input.Result
	if name == "" {
		name = string(domain.FollowUpPending)
	}
	result, err := domain.ParseFollowUpResult(name)
	if err != nil {
		return domain.FollowUp{}, apperrors.Wrap(apperrors.ErrValidation, err.Error())
	}

	now := s.now()
	if input.NextFollowAt != nil && input.NextFollowAt.Before(now) {
		return domain.FollowUp{}, apperrors.Wrap(apperrors.ErrValidation, "next follow-up time must be in the future")
	}

	return domain.FollowUp{
		CustomerID:   input.CustomerID,
		FollowerID:   input.FollowerID,
		Content:      content,
		Result:       result,
		FollowedAt:   now,
		NextFollowAt: input.NextFollowAt,
		CallDuration: input.CallDuration.Truncate(time.Second),
	}, nil
}

// List returns a customer's notes, newest first.
func (s *Service) List(ctx context.Context, customerID int64, limit int) ([]domain.FollowUp, error) {
	if customerID <= 0 {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "customer id must be positive")
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	out, err := s.followUps.ListFollowUps(ctx, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("followup service: list: %w", err)
	}
	return out, nil
}

// SetCustomerStatus moves a customer to a new state, e.g. purchased or
// invalid, which keeps them out of later dial runs.
func (s *Service) SetCustomerStatus(ctx context.Context, customerID int64, status string) error {
	if customerID <= 0 {
		return apperrors.Wrap(apperrors.ErrValidation, "customer id must be positive")
	}
	parsed, err := domain.ParseCustomerStatus(status)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, err.Error())
	}

	if err := s.targets.UpdateStatus(ctx, customerID, parsed); err != nil {
		return fmt.Errorf("followup service: set status: %w", err)
	}

	s.log.Info("customer status changed",
		zap.Int64("customer_id", customerID),
		zap.String("status", string(parsed)),
		zap.Bool("dialable", parsed.Dialable()),
	)
	return nil
}
