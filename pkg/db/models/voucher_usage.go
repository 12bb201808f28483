package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VoucherUsage is an append-only redemption entry.
type VoucherUsage struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherID      uuid.UUID       `gorm:"column:voucher_id;type:uuid;not null;index"`
	AmountUsed     decimal.Decimal `gorm:"column:amount_used;type:numeric(12,2);not null"`
	RemainingAfter decimal.Decimal `gorm:"column:remaining_after;type:numeric(12,2);not null"`
	UsedBy         *uuid.UUID      `gorm:"column:used_by;type:uuid"`
	Notes          *string         `gorm:"column:notes"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (VoucherUsage) TableName() string { return "voucher_usage" }

func (u *VoucherUsage) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
