package service

import (
	"context"
	"log/slog"
	"net/mail"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
)

// AllowListService manages the emails permitted to log in.
type AllowListService struct {
	repo   repository.AllowedEmailRepository
	logger *slog.Logger
}

func NewAllowListService(repo repository.AllowedEmailRepository, logger *slog.Logger) *AllowListService {
	return &AllowListService{repo: repo, logger: logger}
}

// Add allows email to log in. invitedBy is the admin's email.
func (s *AllowListService) Add(ctx context.Context, email, invitedBy string) (*model.AllowedEmail, error) {
	normalized, err := validEmail(email)
	if err != nil {
		return nil, err
	}

	entry := &model.AllowedEmail{
		Email:     normalized,
		InvitedBy: model.NormalizeEmail(invitedBy),
	}
	if err := s.repo.AddAllowedEmail(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("email added to allow-list",
		slog.String("email", normalized),
		slog.String("invited_by", invitedBy),
	)
	return entry, nil
}

func (s *AllowListService) Remove(ctx context.Context, email string) error {
	normalized := model.NormalizeEmail(email)
	if err := s.repo.RemoveAllowedEmail(ctx, normalized); err != nil {
		return err
	}
	s.logger.Info("email removed from allow-list", slog.String("email", normalized))
	return nil
}

func (s *AllowListService) List(ctx context.Context) ([]model.AllowedEmail, error) {
	return s.repo.ListAllowedEmails(ctx)
}

func validEmail(email string) (string, error) {
	normalized := model.NormalizeEmail(email)
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	return normalized, nil
}
