package auth

import (
	"context"
	"strings"

	"github.com/angelmondragon/giftvouchers-backend/internal/users"
	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/security"
)

const minAdminPasswordLength = 8

// AdminRegisterRequest describes an admin account created from the CLI.
type AdminRegisterRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	FullName string          `json:"full_name"`
	Role     enums.AdminRole `json:"role"`
}

// AdminRegisterService creates admin panel accounts.
type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*users.AdminDTO, error)
}

type adminCreator interface {
	Create(ctx context.Context, dto users.CreateAdminDTO) (*models.AdminUser, error)
}

// AdminRegisterServiceParams names the dependencies for the admin register flow.
type AdminRegisterServiceParams struct {
	Admins         adminCreator
	PasswordConfig config.PasswordConfig
}

type adminRegisterService struct {
	admins      adminCreator
	passwordCfg config.PasswordConfig
}

func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.Admins == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "admin repository required")
	}
	return &adminRegisterService{
		admins:      params.Admins,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *adminRegisterService) Register(ctx context.Context, req AdminRegisterRequest) (*users.AdminDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(req.Password) < minAdminPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	role := req.Role
	if role == "" {
		role = enums.AdminRoleOperator
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role").
			WithDetails(map[string]any{"role": string(role)})
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	admin, err := s.admins.Create(ctx, users.CreateAdminDTO{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
	})
	if err != nil {
		if db.AdminEmailKey.Matches(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create admin")
	}
	return users.FromModel(admin), nil
}
