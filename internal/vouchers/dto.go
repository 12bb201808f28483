package vouchers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
)

// VoucherDTO is the admin view of a voucher.
type VoucherDTO struct {
	ID              uuid.UUID           `json:"id"`
	VoucherNumber   string              `json:"voucher_number"`
	Kind            enums.VoucherKind   `json:"kind"`
	OriginalAmount  decimal.Decimal     `json:"original_amount"`
	RemainingAmount decimal.Decimal     `json:"remaining_amount"`
	ProductName     *string             `json:"product_name,omitempty"`
	CustomerName    string              `json:"customer_name"`
	PhoneNumber     string              `json:"phone_number"`
	Email           string              `json:"email"`
	BuyerName       string              `json:"buyer_name"`
	BuyerPhone      string              `json:"buyer_phone"`
	BuyerEmail      string              `json:"buyer_email"`
	RecipientName   string              `json:"recipient_name"`
	RecipientPhone  string              `json:"recipient_phone"`
	Greeting        string              `json:"greeting"`
	PurchaseDate    time.Time           `json:"purchase_date"`
	ExpiryDate      time.Time           `json:"expiry_date"`
	Status          enums.VoucherStatus `json:"status"`
	VoucherImageURL *string             `json:"voucher_image_url,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type UsageDTO struct {
	ID             uuid.UUID       `json:"id"`
	AmountUsed     decimal.Decimal `json:"amount_used"`
	RemainingAfter decimal.Decimal `json:"remaining_after"`
	UsedBy         *uuid.UUID      `json:"used_by,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	UsedAt         time.Time       `json:"used_at"`
}

func FromModel(v *models.Voucher) *VoucherDTO {
	if v == nil {
		return nil
	}
	return &VoucherDTO{
		ID:              v.ID,
		VoucherNumber:   v.VoucherNumber,
		Kind:            v.Kind(),
		OriginalAmount:  v.OriginalAmount,
		RemainingAmount: v.RemainingAmount,
		ProductName:     v.ProductName,
		CustomerName:    v.CustomerName,
		PhoneNumber:     v.PhoneNumber,
		Email:           v.Email,
		BuyerName:       v.BuyerName,
		BuyerPhone:      v.BuyerPhone,
		BuyerEmail:      v.BuyerEmail,
		RecipientName:   v.RecipientName,
		RecipientPhone:  v.RecipientPhone,
		Greeting:        v.Greeting,
		PurchaseDate:    v.CreatedAt,
		ExpiryDate:      v.ExpiryDate,
		Status:          v.Status,
		VoucherImageURL: v.VoucherImageURL,
		UpdatedAt:       v.UpdatedAt,
	}
}

func FromModels(rows []models.Voucher) []VoucherDTO {
	out := make([]VoucherDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

func UsageFromModels(rows []models.VoucherUsage) []UsageDTO {
	out := make([]UsageDTO, 0, len(rows))
	for _, u := range rows {
		out = append(out, UsageDTO{
			ID:             u.ID,
			AmountUsed:     u.AmountUsed,
			RemainingAfter: u.RemainingAfter,
			UsedBy:         u.UsedBy,
			Notes:          u.Notes,
			UsedAt:         u.CreatedAt,
		})
	}
	return out
}
