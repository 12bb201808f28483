package purchases

import (
	"context"
	"time"

	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MatchCriteria are the payer signals a pending purchase is matched on.
// At least one of PhoneKey and Email must be set.
type MatchCriteria struct {
	Amount   decimal.Decimal
	PhoneKey string
	Email    string
}

// Repository defines persistence operations for purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	NumberTaken(ctx context.Context, voucherNumber string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindLatestByNumber(ctx context.Context, voucherNumber string) (*models.Purchase, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error)
	FindOldestPendingMatch(ctx context.Context, criteria MatchCriteria) (*models.Purchase, error)
	MarkCompleted(ctx context.Context, id, voucherID uuid.UUID, paymentID *string, completedAt time.Time) (bool, error)
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
	ListPending(ctx context.Context, params pagination.Params) ([]models.Purchase, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchases repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

// NumberTaken checks both purchases and vouchers, since admins may issue
// vouchers that never had a purchase.
func (r *repository) NumberTaken(ctx context.Context, voucherNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Purchase{}).Where("voucher_number = ?", voucherNumber).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Voucher{}).Where("voucher_number = ?", voucherNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindLatestByNumber(ctx context.Context, voucherNumber string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("voucher_number = ?", voucherNumber).
		Order("created_at DESC").
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// FindOldestPendingMatch returns the earliest pending purchase for the amount
// whose buyer phone key or email matches.
func (r *repository) FindOldestPendingMatch(ctx context.Context, criteria MatchCriteria) (*models.Purchase, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.PurchaseStatusPending).
		Where("amount = ?", criteria.Amount)

	switch {
	case criteria.PhoneKey != "" && criteria.Email != "":
		query = query.Where("(buyer_phone_key = ? OR buyer_email = ?)", criteria.PhoneKey, criteria.Email)
	case criteria.PhoneKey != "":
		query = query.Where("buyer_phone_key = ?", criteria.PhoneKey)
	case criteria.Email != "":
		query = query.Where("buyer_email = ?", criteria.Email)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	var purchase models.Purchase
	if err := query.Order("created_at ASC").Order("id ASC").Limit(1).Take(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// MarkCompleted flips a pending purchase to completed. It reports false when
// the purchase was no longer pending.
func (r *repository) MarkCompleted(ctx context.Context, id, voucherID uuid.UUID, paymentID *string, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		Updates(map[string]any{
			"status":       enums.PurchaseStatusCompleted,
			"voucher_id":   voucherID,
			"payment_id":   paymentID,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PurchaseStatusPending, cutoff).
		Delete(&models.Purchase{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListPending(ctx context.Context, params pagination.Params) ([]models.Purchase, int64, error) {
	params = params.Normalize()
	base := r.db.WithContext(ctx).Model(&models.Purchase{}).Where("status = ?", enums.PurchaseStatusPending)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Purchase
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
