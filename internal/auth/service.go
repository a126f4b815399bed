package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Service issues token pairs and tracks refresh-token validity in Redis.
// A refresh token is only honored while its ID is present under
// refresh:<userID>:<tokenID>, so logout and rotation both revoke by delete.
type Service struct {
	jwt   *JWTManager
	redis *redis.Client
}

func NewService(jwt *JWTManager, redisClient *redis.Client) *Service {
	return &Service{jwt: jwt, redis: redisClient}
}

func (s *Service) GenerateTokens(ctx context.Context, userID, email string) (*TokenPair, error) {
	pair, tokenID, err := s.jwt.GenerateTokenPair(userID, email)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, refreshKey(userID, tokenID), "1", s.jwt.RefreshExpiry()).Err(); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	return pair, nil
}

// RefreshTokens rotates the pair: the presented refresh token is revoked and
// a new pair is issued, so each refresh token is single use.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	key := refreshKey(claims.UserID, claims.TokenID)
	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("refresh token revoked")
	}
	s.redis.Del(ctx, key)

	return s.GenerateTokens(ctx, claims.UserID, claims.Email)
}

// Logout revokes every outstanding refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID string) error {
	iter := s.redis.Scan(ctx, 0, refreshKey(userID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		s.redis.Del(ctx, iter.Val())
	}
	return iter.Err()
}

func (s *Service) ValidateAccessToken(token string) (*AccessClaims, error) {
	return s.jwt.ValidateAccessToken(token)
}

func refreshKey(userID, tokenID string) string {
	return fmt.Sprintf("refresh:%s:%s", userID, tokenID)
}
