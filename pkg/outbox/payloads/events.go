package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
)

// VoucherIssuedEvent is emitted when a purchase is completed into a voucher.
type VoucherIssuedEvent struct {
	VoucherID      uuid.UUID         `json:"voucher_id"`
	VoucherNumber  string            `json:"voucher_number"`
	PurchaseID     *uuid.UUID        `json:"purchase_id,omitempty"`
	PaymentID      *string           `json:"payment_id,omitempty"`
	Kind           enums.VoucherKind `json:"kind"`
	OriginalAmount decimal.Decimal   `json:"original_amount"`
	ExpiryDate     time.Time         `json:"expiry_date"`
	Source         string            `json:"source"`
}

// VoucherRedeemedEvent is emitted for every balance deduction.
type VoucherRedeemedEvent struct {
	VoucherID      uuid.UUID           `json:"voucher_id"`
	VoucherNumber  string              `json:"voucher_number"`
	UsageID        uuid.UUID           `json:"usage_id"`
	AmountUsed     decimal.Decimal     `json:"amount_used"`
	RemainingAfter decimal.Decimal     `json:"remaining_after"`
	Status         enums.VoucherStatus `json:"status"`
}
