package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraintName is provided only that constraint matches. SQLite
// reports constraints by column list, so constraintName is matched against
// the message text as well.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode && (constraintName == "" || pgErr.ConstraintName == constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode && (constraintName == "" || pqErr.Constraint == constraintName)
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraintName == "" || strings.Contains(err.Error(), constraintName)
	}

	msg := err.Error()
	isUnique := strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
	if !isUnique {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// UniqueKey identifies a unique constraint by its Postgres name and by the
// table.column form SQLite reports.
type UniqueKey struct {
	Constraint string
	Column     string
}

// Matches reports whether err violated this key on either driver.
func (k UniqueKey) Matches(err error) bool {
	return IsUniqueViolation(err, k.Constraint) || (k.Column != "" && IsUniqueViolation(err, k.Column))
}

var (
	PurchaseVoucherNumberKey = UniqueKey{Constraint: "purchases_voucher_number_key", Column: "purchases.voucher_number"}
	PurchasePaymentIDKey     = UniqueKey{Constraint: "purchases_payment_id_key", Column: "purchases.payment_id"}
	VoucherNumberKey         = UniqueKey{Constraint: "vouchers_voucher_number_key", Column: "vouchers.voucher_number"}
	AdminEmailKey            = UniqueKey{Constraint: "admin_users_email_key", Column: "admin_users.email"}
)
