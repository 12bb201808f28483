package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
)

// AdminDTO is the transport shape that omits the password hash.
type AdminDTO struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	FullName    string          `json:"full_name"`
	Role        enums.AdminRole `json:"role"`
	IsActive    bool            `json:"is_active"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreateAdminDTO holds the data required by the repo to persist a new admin.
type CreateAdminDTO struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         enums.AdminRole
}

func FromModel(u *models.AdminUser) *AdminDTO {
	if u == nil {
		return nil
	}
	return &AdminDTO{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func (c CreateAdminDTO) ToModel() *models.AdminUser {
	role := c.Role
	if role == "" {
		role = enums.AdminRoleOperator
	}
	return &models.AdminUser{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FullName:     c.FullName,
		Role:         role,
		IsActive:     true,
	}
}
