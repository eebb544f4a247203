// Package auth issues bearer tokens after a password sign-in and resolves
// them back to the caller's identity.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/bissquit/leavedesk/internal/auth/token"
	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/pkg/ctxlog"
	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/bissquit/leavedesk/internal/users"
)

// Metadata keys read from the platform account.
const (
	MetaFirstName = "first_name"
	MetaLastName  = "last_name"
	MetaRole      = "role"
)

// TokenResponse is returned by a successful sign-in.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Service implements sign-in and token resolution.
type Service struct {
	auth  platform.Auth
	codec *token.Codec
}

// NewService creates a new authentication service.
func NewService(auth platform.Auth, codec *token.Codec) *Service {
	return &Service{auth: auth, codec: codec}
}

// SignIn checks the credentials with the platform and issues a token whose
// email claim is the address as submitted. The platform lookup uses the
// normalized address. Every failure, including a platform error, is reported
// as ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (*TokenResponse, error) {
	logger := ctxlog.FromContext(ctx)
	email = strings.TrimSpace(email)

	account, err := s.auth.SignInWithPassword(ctx, users.NormalizeEmail(email), password)
	if err != nil {
		logger.Warn("sign-in failed", "error", err)
		return nil, ErrInvalidCredentials
	}
	if account == nil {
		logger.Info("sign-in rejected")
		return nil, ErrInvalidCredentials
	}

	signed, _, err := s.codec.Issue(account.ID, email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	logger.Info("token issued", "subject", account.ID)
	return &TokenResponse{AccessToken: signed, TokenType: token.Type}, nil
}

// ResolveToken verifies raw locally, then asks the platform for the account
// behind it. Every failure is reported as ErrInvalidToken.
func (s *Service) ResolveToken(ctx context.Context, raw string) (*domain.Identity, error) {
	logger := ctxlog.FromContext(ctx)

	claims, err := s.codec.Parse(raw)
	if err != nil {
		logger.Warn("token rejected", "error", err)
		return nil, ErrInvalidToken
	}
	if claims.Email == "" {
		logger.Warn("token rejected", "error", "missing email claim")
		return nil, ErrInvalidToken
	}

	account, err := s.auth.GetUser(ctx, raw)
	if err != nil {
		logger.Warn("token lookup failed", "error", err)
		return nil, ErrInvalidToken
	}
	if account == nil {
		logger.Warn("token has no account", "subject", claims.Subject)
		return nil, ErrInvalidToken
	}

	return &domain.Identity{
		Email:     account.Email,
		FirstName: account.MetadataString(MetaFirstName, ""),
		LastName:  account.MetadataString(MetaLastName, ""),
		Role:      domain.Role(account.MetadataString(MetaRole, string(domain.RoleMember))),
	}, nil
}
