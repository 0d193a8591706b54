package service

import (
	"context"
	"errors"
	"fmt"

	"tasktracker/internal/auth"
	"tasktracker/internal/domain"
	"tasktracker/internal/repository"
)

// AuthService issues, verifies and revokes bearer credentials.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, auth.Pair, error)
	Login(ctx context.Context, username, password string) (*domain.User, auth.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Authorize(ctx context.Context, accessToken string) (*auth.Claims, error)
	Logout(ctx context.Context, access *auth.Claims, refreshToken string) error
}

type authService struct {
	users  UserService
	tokens repository.TokenRepository
	issuer *auth.Issuer
}

func NewAuthService(users UserService, tokens repository.TokenRepository, issuer *auth.Issuer) AuthService {
	return &authService{
		users:  users,
		tokens: tokens,
		issuer: issuer,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*domain.User, auth.Pair, error) {
	user, err := s.users.Register(ctx, in)
	if err != nil {
		return nil, auth.Pair{}, err
	}
	pair, err := s.issuer.IssuePair(user.ID)
	if err != nil {
		return nil, auth.Pair{}, err
	}
	return user, pair, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*domain.User, auth.Pair, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, auth.Pair{}, err
	}
	pair, err := s.issuer.IssuePair(user.ID)
	if err != nil {
		return nil, auth.Pair{}, err
	}
	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.verify(ctx, refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	access, _, err := s.issuer.Issue(claims.UserID, auth.TokenTypeAccess)
	if err != nil {
		return "", err
	}
	return access, nil
}

func (s *authService) Authorize(ctx context.Context, accessToken string) (*auth.Claims, error) {
	return s.verify(ctx, accessToken, auth.TokenTypeAccess)
}

// Logout revokes the access token in use and, when given, a refresh token of the same user.
func (s *authService) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	if access == nil {
		return ErrInvalidToken
	}
	if refreshToken != "" {
		refresh, err := s.verify(ctx, refreshToken, auth.TokenTypeRefresh)
		if err != nil {
			return fieldError("refresh", "token is invalid or expired")
		}
		if refresh.UserID != access.UserID {
			return fieldError("refresh", "token does not belong to the current user")
		}
		if err := s.tokens.Revoke(ctx, refresh.ID, refresh.UserID, refresh.ExpiresAt.Time); err != nil {
			return err
		}
	}
	return s.tokens.Revoke(ctx, access.ID, access.UserID, access.ExpiresAt.Time)
}

func (s *authService) verify(ctx context.Context, raw string, typ auth.TokenType) (*auth.Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.issuer.Parse(raw, typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", ErrInvalidToken)
	}
	return claims, nil
}
