package vouchers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
)

// ListFilter narrows the admin voucher list.
type ListFilter struct {
	Status *enums.VoucherStatus
	// Search matches voucher number, customer name or phone as a substring.
	Search string
	Page   pagination.Params
}

// Repository defines persistence operations for vouchers and their usage log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, voucher *models.Voucher) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	FindByNumber(ctx context.Context, voucherNumber string) (*models.Voucher, error)
	NumberExists(ctx context.Context, voucherNumber string) (bool, error)
	Deduct(ctx context.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) (bool, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (bool, error)
	AdjustBalance(ctx context.Context, id uuid.UUID, from, to decimal.Decimal, now time.Time) (bool, error)
	SetImageURL(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]models.Voucher, int64, error)
	InsertUsage(ctx context.Context, usage *models.VoucherUsage) error
	ListUsage(ctx context.Context, voucherID uuid.UUID) ([]models.VoucherUsage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vouchers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) FindByNumber(ctx context.Context, voucherNumber string) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.WithContext(ctx).Where("voucher_number = ?", voucherNumber).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) NumberExists(ctx context.Context, voucherNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Voucher{}).Where("voucher_number = ?", voucherNumber).Count(&count).Error
	return count > 0, err
}

// Deduct subtracts amount in a single conditional statement. It reports false
// when the voucher is no longer active, has expired, or holds less than amount,
// so two concurrent redemptions can never both spend the same balance.
func (r *repository) Deduct(ctx context.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ?", id).
		Where("status = ?", enums.VoucherStatusActive).
		Where("remaining_amount >= ?", amount).
		Where("expiry_date > ?", now).
		Updates(map[string]any{
			"remaining_amount": gorm.Expr("remaining_amount - ?", amount),
			"status": gorm.Expr("CASE WHEN remaining_amount - ? = 0 THEN ? ELSE ? END",
				amount, enums.VoucherStatusUsed, enums.VoucherStatusActive),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Voucher{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdjustBalance lowers the balance from an expected value, so a redemption
// landing in between makes it affect zero rows.
func (r *repository) AdjustBalance(ctx context.Context, id uuid.UUID, from, to decimal.Decimal, now time.Time) (bool, error) {
	status := enums.VoucherStatusActive
	if to.IsZero() {
		status = enums.VoucherStatusUsed
	}
	res := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ?", id).
		Where("status = ?", enums.VoucherStatusActive).
		Where("remaining_amount = ?", from).
		Updates(map[string]any{
			"remaining_amount": to,
			"status":           status,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ?", id).
		Update("voucher_image_url", url).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.db.WithContext(ctx).Where("voucher_id = ?", id).Delete(&models.VoucherUsage{}).Error; err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Voucher{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Voucher, int64, error) {
	params := filter.Page.Normalize()
	base := r.db.WithContext(ctx).Model(&models.Voucher{})
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		base = base.Where(
			"(LOWER(voucher_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(phone_number) LIKE ?)",
			like, like, like,
		)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Voucher
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

func (r *repository) InsertUsage(ctx context.Context, usage *models.VoucherUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// ListUsage returns the redemption log newest first.
func (r *repository) ListUsage(ctx context.Context, voucherID uuid.UUID) ([]models.VoucherUsage, error) {
	var rows []models.VoucherUsage
	err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}
