package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
)

// Voucher is the spendable instrument issued for a fulfilled purchase.
// Names and contacts are snapshots taken from the purchase at issue time.
type Voucher struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherNumber   string              `gorm:"column:voucher_number;not null;uniqueIndex"`
	OriginalAmount  decimal.Decimal     `gorm:"column:original_amount;type:numeric(12,2);not null"`
	RemainingAmount decimal.Decimal     `gorm:"column:remaining_amount;type:numeric(12,2);not null"`
	ProductName     *string             `gorm:"column:product_name"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	PhoneNumber     string              `gorm:"column:phone_number;not null"`
	Email           string              `gorm:"column:email;not null"`
	BuyerName       string              `gorm:"column:buyer_name;not null"`
	BuyerPhone      string              `gorm:"column:buyer_phone;not null"`
	BuyerEmail      string              `gorm:"column:buyer_email;not null"`
	RecipientName   string              `gorm:"column:recipient_name;not null"`
	RecipientPhone  string              `gorm:"column:recipient_phone;not null"`
	Greeting        string              `gorm:"column:greeting;not null"`
	ExpiryDate      time.Time           `gorm:"column:expiry_date;not null"`
	Status          enums.VoucherStatus `gorm:"column:status;not null"`
	VoucherImageURL *string             `gorm:"column:voucher_image_url"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Voucher) TableName() string { return "vouchers" }

func (v *Voucher) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the voucher can no longer be used at now.
func (v Voucher) IsExpired(now time.Time) bool {
	return !now.Before(v.ExpiryDate)
}

// CanBeUsed reports whether a redemption could succeed at now.
func (v Voucher) CanBeUsed(now time.Time) bool {
	return v.Status == enums.VoucherStatusActive && !v.IsExpired(now) && v.RemainingAmount.IsPositive()
}

// Kind mirrors Purchase.Kind for issued vouchers.
func (v Voucher) Kind() enums.VoucherKind {
	if v.ProductName != nil && *v.ProductName != "" {
		return enums.VoucherKindProduct
	}
	return enums.VoucherKindMonetary
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
