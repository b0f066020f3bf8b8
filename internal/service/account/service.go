package account

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/service"
	"symbio/internal/store"
	"symbio/pkg/logger"
	"symbio/pkg/rbac"
	"symbio/pkg/util"
)

const minPasswordLength = 8

type Service struct {
	store     store.Store
	jwtSecret string
	jwtTTL    time.Duration
	logger    *zap.Logger
}

func NewService(st store.Store, jwtSecret string, jwtTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{store: st, jwtSecret: jwtSecret, jwtTTL: jwtTTL, logger: logger}
}

// Register 创建用户和空的 profile
func (s *Service) Register(ctx context.Context, email, password, role string) (*model.User, error) {
	const op = "Register"
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.InvalidInput(op, "invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.InvalidInput(op, "password must be at least %d characters", minPasswordLength)
	}
	if !rbac.ValidRole(role) {
		return nil, apperr.InvalidInput(op, "unknown role %q", role)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{Email: email, PasswordHash: hash, Role: role}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict(op, "email already registered")
			}
			return err
		}
		return tx.CreateProfile(ctx, &model.Profile{UserID: u.ID, Skills: []string{}})
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}

	logger.WithTrace(ctx, s.logger).Info("User registered",
		zap.Int64("user_id", u.ID),
		zap.String("role", role),
	)
	return u, nil
}

// Login 校验密码并签发 JWT
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	const op = "Login"
	email = strings.ToLower(strings.TrimSpace(email))

	var u *model.User
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUserByEmail(ctx, email)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, apperr.Unauthenticated(op, "invalid email or password")
	}
	if err != nil {
		return "", nil, service.Translate(op, err)
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		logger.WithTrace(ctx, s.logger).Info("Login failed", zap.Int64("user_id", u.ID))
		return "", nil, apperr.Unauthenticated(op, "invalid email or password")
	}

	token, err := util.GenerateJWT(u.ID, u.Role, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	var p *model.Profile
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProfile(ctx, userID)
		return err
	})
	if err != nil {
		return nil, service.Translate("GetProfile", err)
	}
	return p, nil
}

type ProfileInput struct {
	DisplayName string
	Bio         string
	Skills      []string
}

// UpdateProfile 只能修改自己的资料；credibility_score 不受影响
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*model.Profile, error) {
	skills := make([]string, 0, len(in.Skills))
	for _, sk := range in.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}
	p := &model.Profile{
		UserID:      userID,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Bio:         in.Bio,
		Skills:      skills,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.UpdateProfile(ctx, p)
	})
	if err != nil {
		return nil, service.Translate("UpdateProfile", err)
	}
	return p, nil
}
