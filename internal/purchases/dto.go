package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
)

// PurchaseDTO is the admin "leads" view of a purchase.
type PurchaseDTO struct {
	ID             uuid.UUID            `json:"id"`
	VoucherNumber  string               `json:"voucher_number"`
	Kind           enums.VoucherKind    `json:"kind"`
	Amount         decimal.Decimal      `json:"amount"`
	ProductName    *string              `json:"product_name,omitempty"`
	BuyerName      string               `json:"buyer_name"`
	BuyerPhone     string               `json:"buyer_phone"`
	BuyerEmail     string               `json:"buyer_email"`
	RecipientName  string               `json:"recipient_name"`
	RecipientPhone string               `json:"recipient_phone"`
	Greeting       string               `json:"greeting"`
	PaymentURL     string               `json:"payment_url"`
	Status         enums.PurchaseStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}

func FromModel(p *models.Purchase) *PurchaseDTO {
	if p == nil {
		return nil
	}
	return &PurchaseDTO{
		ID:             p.ID,
		VoucherNumber:  p.VoucherNumber,
		Kind:           p.Kind(),
		Amount:         p.Amount,
		ProductName:    p.ProductName,
		BuyerName:      p.BuyerName(),
		BuyerPhone:     p.BuyerPhone,
		BuyerEmail:     p.BuyerEmail,
		RecipientName:  p.RecipientName(),
		RecipientPhone: p.RecipientPhone,
		Greeting:       p.Greeting,
		PaymentURL:     p.PaymentURL,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
		CompletedAt:    p.CompletedAt,
	}
}

func FromModels(rows []models.Purchase) []PurchaseDTO {
	out := make([]PurchaseDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
