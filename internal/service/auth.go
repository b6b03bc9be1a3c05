package service

import (
	"context"

	"campus_connect/internal/config"
	"campus_connect/internal/domain"
	"campus_connect/internal/repository"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/jwt"
	"campus_connect/pkg/logger"
)

// AuthService validates bearer credentials issued by the platform's auth
// service. Registration, login and token issuance live there, not here.
type AuthService interface {
	ValidateToken(ctx context.Context, tokenString string) (*Principal, error)
}

// Principal is the authenticated caller: the directory user plus the
// capabilities the token grants.
type Principal struct {
	User         *domain.User
	Capabilities domain.Capabilities
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*Principal, error) {
	claims, err := jwt.Validate(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, apperrors.ErrUnauthorized
	}

	return &Principal{
		User:         user,
		Capabilities: domain.Capabilities{AdminOfGroups: claims.AdminOf},
	}, nil
}
