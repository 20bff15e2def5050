// Package usecase issues and validates player tokens. A token's subject is
// the player's wallet address.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthUseCase handles player tokens
type AuthUseCase struct {
	jwtSecret     []byte
	tokenDuration time.Duration
	revoked       *cache.Cache // jti -> struct{}, kept until the token would expire anyway
	now           func() time.Time
}

// NewAuthUseCase creates a new auth use case
func NewAuthUseCase(jwtSecret string, tokenDuration time.Duration) *AuthUseCase {
	return &AuthUseCase{
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: tokenDuration,
		revoked:       cache.New(tokenDuration, time.Hour),
		now:           time.Now,
	}
}

// IssueToken mints a token for player
func (uc *AuthUseCase) IssueToken(ctx context.Context, player domain.Address) (string, time.Time, error) {
	now := uc.now()
	expiresAt := now.Add(uc.tokenDuration)

	claims := jwt.RegisteredClaims{
		Subject:   player.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken returns the player a token was issued to
func (uc *AuthUseCase) ValidateToken(ctx context.Context, tokenString string) (domain.Address, error) {
	claims, err := uc.parse(tokenString)
	if err != nil {
		return "", err
	}

	if _, revoked := uc.revoked.Get(claims.ID); revoked {
		return "", fmt.Errorf("%w: revoked", ErrInvalidToken)
	}

	player, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return player, nil
}

// Logout revokes a token until its natural expiry
func (uc *AuthUseCase) Logout(ctx context.Context, tokenString string) error {
	claims, err := uc.parse(tokenString)
	if err != nil {
		return err
	}

	ttl := claims.ExpiresAt.Time.Sub(uc.now())
	if ttl <= 0 {
		return nil
	}
	uc.revoked.Set(claims.ID, struct{}{}, ttl)
	return nil
}

func (uc *AuthUseCase) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return uc.jwtSecret, nil
	}, jwt.WithTimeFunc(uc.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
