// Package auth issues token pairs for password and Google sign-in and runs the
// password recovery flow.
package auth

import (
	"context"
	"errors"

	sharedauth "jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/users"
)

type Service struct {
	Users  *users.Service
	Issuer *sharedauth.Issuer
}

func NewService(usersSvc *users.Service, issuer *sharedauth.Issuer) *Service {
	return &Service{Users: usersSvc, Issuer: issuer}
}

// Login exchanges credentials for a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (sharedauth.Pair, error) {
	user, err := s.Users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return sharedauth.Pair{}, ErrUnknownUser
		}
		return sharedauth.Pair{}, err
	}
	return s.Issuer.IssuePair(user.ID)
}

// Refresh rotates a refresh token into a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (sharedauth.Pair, error) {
	claims, err := s.Issuer.Verify(refreshToken, sharedauth.TypeRefresh)
	if err != nil {
		return sharedauth.Pair{}, ErrInvalidToken
	}
	user, err := s.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return sharedauth.Pair{}, ErrUnknownUser
		}
		return sharedauth.Pair{}, err
	}
	return s.Issuer.IssuePair(user.ID)
}

// RequestPasswordReset mails a recovery link. It reports false for unknown emails.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.Users.SendToken(ctx, user, users.PurposeReset); err != nil {
		return false, err
	}
	telemetry.Info("auth.password_reset_requested", map[string]any{"user_id": user.ID})
	return true, nil
}

// RecoverPassword sets a new password using a reset token.
func (s *Service) RecoverPassword(ctx context.Context, token, password string) error {
	_, err := s.Users.ResetPassword(ctx, token, password)
	return err
}
