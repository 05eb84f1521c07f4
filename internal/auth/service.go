package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chema/chema_ledger/internal/config"
	"github.com/chema/chema_ledger/internal/identity"
)

var (
	// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked indicates the token version no longer matches the user.
	ErrTokenRevoked = errors.New("token version invalidated")
)

// Claims carried by access and refresh tokens.
type Claims struct {
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

type Service struct {
	cfg    config.Config
	idRepo identity.Repository
}

func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, err := s.sign(user.ID, user.TokenVersion, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user.ID, user.TokenVersion, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

func (s *Service) sign(subject string, version int, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.AppName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func parse(token, secret string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// ParseAccess verifies an access token and checks it against the user's current
// token version.
func (s *Service) ParseAccess(ctx context.Context, token string) (Claims, error) {
	claims, err := parse(token, s.cfg.JWTSecret)
	if err != nil {
		return Claims{}, err
	}
	if err := s.checkVersion(ctx, claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := parse(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, err
	}
	if err := s.checkVersion(ctx, claims); err != nil {
		return "", 0, err
	}
	signed, err := s.sign(claims.Subject, claims.Version, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}

func (s *Service) checkVersion(ctx context.Context, claims Claims) error {
	user, err := s.idRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return ErrTokenRevoked
	}
	if user.TokenVersion != claims.Version {
		return ErrTokenRevoked
	}
	return nil
}
