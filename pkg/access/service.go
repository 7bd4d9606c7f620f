package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/common/models"
	"github.com/tripflow/platform/pkg/validation"
)

var (
	ErrNotAdmin          = errors.New("actor is not an administrator")
	ErrBadStatusChange   = errors.New("status change not allowed")
	ErrAlreadyRegistered = errors.New("user already registered")
	ErrUnknownStatus     = errors.New("unknown user status")
)

// Publisher is the slice of the event producer the gate needs.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	repo     *Repository
	producer Publisher
}

func NewService(repo *Repository, producer Publisher) *Service {
	return &Service{repo: repo, producer: producer}
}

type RegisterInput struct {
	ExternalID int64  `json:"external_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// Register creates a pending user. Registering an existing external id
// returns the stored user unchanged.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	existing, err := s.repo.GetByExternalID(ctx, in.ExternalID)
	if err == nil {
		return existing, ErrAlreadyRegistered
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user := &User{
		ExternalID: in.ExternalID,
		Username:   in.Username,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Status:     StatusPending,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.publish(ctx, models.EventUserRegistered, map[string]interface{}{
		"external_id": in.ExternalID,
		"username":    in.Username,
	})
	return user, nil
}

// SetProfile stamps full name and organization onto a user so records can be
// attributed without re-asking.
func (s *Service) SetProfile(ctx context.Context, externalID int64, fullName, organization string) error {
	if err := validation.FullName(fullName); err != nil {
		return err
	}
	if err := validation.Text(organization, 2, 255); err != nil {
		return err
	}
	return s.repo.UpdateProfile(ctx, externalID, validation.NormalizeName(fullName), organization)
}

func (s *Service) Approve(ctx context.Context, adminID, externalID int64) error {
	return s.transition(ctx, adminID, externalID, StatusApproved, models.EventUserApproved)
}

func (s *Service) Reject(ctx context.Context, adminID, externalID int64) error {
	return s.transition(ctx, adminID, externalID, StatusRejected, models.EventUserRejected)
}

func (s *Service) Revoke(ctx context.Context, adminID, externalID int64) error {
	return s.transition(ctx, adminID, externalID, StatusRevoked, models.EventAccessRevoked)
}

func (s *Service) transition(ctx context.Context, adminID, externalID int64, target, eventType string) error {
	admin, err := s.repo.GetByExternalID(ctx, adminID)
	if err != nil {
		return err
	}
	if !admin.IsAdmin {
		return ErrNotAdmin
	}

	user, err := s.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if !TransitionAllowed(user.Status, target) {
		return fmt.Errorf("%s -> %s: %w", user.Status, target, ErrBadStatusChange)
	}

	if err := s.repo.UpdateStatus(ctx, externalID, target); err != nil {
		return err
	}

	s.publish(ctx, eventType, map[string]interface{}{
		"external_id": externalID,
		"admin_id":    adminID,
		"status":      target,
	})
	return nil
}

// TransitionAllowed encodes the gate workflow: pending requests are approved
// or rejected, approved access can be revoked, and rejected or revoked users
// can be re-approved.
func TransitionAllowed(from, to string) bool {
	switch to {
	case StatusApproved:
		return from == StatusPending || from == StatusRejected || from == StatusRevoked
	case StatusRejected:
		return from == StatusPending
	case StatusRevoked:
		return from == StatusApproved
	}
	return false
}

// IsSubmissionAllowed reports whether the owner may use the intake form.
func (s *Service) IsSubmissionAllowed(ctx context.Context, owner int64) (bool, error) {
	user, err := s.repo.GetByExternalID(ctx, owner)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Status == StatusApproved, nil
}

// Identity returns the snapshot stamped onto records and delivery metadata.
func (s *Service) Identity(ctx context.Context, owner int64) (models.Identity, error) {
	user, err := s.repo.GetByExternalID(ctx, owner)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{
		Owner:        owner,
		DisplayName:  user.DisplayName(),
		Organization: user.Organization,
	}, nil
}

func (s *Service) ListPending(ctx context.Context) ([]User, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// ListUsers returns users filtered by status, or every user when status is
// empty.
func (s *Service) ListUsers(ctx context.Context, status string) ([]User, error) {
	if status == "" {
		return s.repo.List(ctx)
	}
	if !KnownStatus(status) {
		return nil, fmt.Errorf("%q: %w", status, ErrUnknownStatus)
	}
	return s.repo.ListByStatus(ctx, status)
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishEvent(ctx, eventType, "access", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("lifecycle event not published")
	}
}
