package auth

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidUsername is returned when a username doesn't meet constraints.
var ErrInvalidUsername = errors.New("invalid username")

// Service is the identity collaborator: the realtime core receives an
// already-authenticated user id per connection and never checks
// credentials itself. Credential verification belongs to an upstream
// identity provider; this service only validates tokens and mints guest
// tokens for standalone use.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new identity service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// MintGuestToken issues a token for an ephemeral guest identity.
func (s *Service) MintGuestToken(username string) (token, userID string, err error) {
	username = strings.TrimSpace(username)
	if len(username) < 2 || len(username) > 32 {
		return "", "", ErrInvalidUsername
	}

	userID = "guest-" + uuid.NewString()[:8]
	token, err = GenerateToken(s.jwtConfig, userID, username)
	if err != nil {
		return "", "", err
	}
	return token, userID, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
