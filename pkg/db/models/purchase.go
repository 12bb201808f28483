package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
)

// Purchase is a single checkout attempt. It stays pending until a payment
// notification (or an admin) completes it exactly once.
type Purchase struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherNumber      string               `gorm:"column:voucher_number;not null;uniqueIndex"`
	Amount             decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	ProductName        *string              `gorm:"column:product_name"`
	BuyerFirstName     string               `gorm:"column:buyer_first_name;not null"`
	BuyerLastName      string               `gorm:"column:buyer_last_name;not null"`
	BuyerPhone         string               `gorm:"column:buyer_phone;not null"`
	BuyerPhoneKey      string               `gorm:"column:buyer_phone_key;not null"`
	BuyerEmail         string               `gorm:"column:buyer_email;not null"`
	RecipientFirstName string               `gorm:"column:recipient_first_name;not null"`
	RecipientLastName  string               `gorm:"column:recipient_last_name;not null"`
	RecipientPhone     string               `gorm:"column:recipient_phone;not null"`
	Greeting           string               `gorm:"column:greeting;not null"`
	PaymentURL         string               `gorm:"column:payment_url;not null"`
	Status             enums.PurchaseStatus `gorm:"column:status;not null"`
	PaymentID          *string              `gorm:"column:payment_id"`
	VoucherID          *uuid.UUID           `gorm:"column:voucher_id;type:uuid"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	CompletedAt        *time.Time           `gorm:"column:completed_at"`
}

func (Purchase) TableName() string { return "purchases" }

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BuyerName joins the buyer's first and last name.
func (p Purchase) BuyerName() string {
	return joinName(p.BuyerFirstName, p.BuyerLastName)
}

// RecipientName joins the recipient's first and last name.
func (p Purchase) RecipientName() string {
	return joinName(p.RecipientFirstName, p.RecipientLastName)
}

// Kind reports whether the purchase is for a named product or a face value.
func (p Purchase) Kind() enums.VoucherKind {
	if p.ProductName != nil && *p.ProductName != "" {
		return enums.VoucherKindProduct
	}
	return enums.VoucherKindMonetary
}
