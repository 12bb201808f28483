package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "vouchers_voucher_number_key"}

	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), ""))
	require.True(t, IsUniqueViolation(pgErr, "vouchers_voucher_number_key"))
	require.False(t, IsUniqueViolation(pgErr, "purchases_payment_id_key"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))

	sqliteErr := errors.New("UNIQUE constraint failed: purchases.voucher_number")
	require.True(t, IsUniqueViolation(sqliteErr, ""))
	require.True(t, IsUniqueViolation(sqliteErr, "voucher_number"))
	require.False(t, IsUniqueViolation(sqliteErr, "payment_id"))

	require.False(t, IsUniqueViolation(nil, ""))
	require.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound)))
	require.False(t, IsNotFound(errors.New("other")))
}

func TestUniqueKeyMatchesEitherDriver(t *testing.T) {
	require.True(t, PurchasePaymentIDKey.Matches(&pgconn.PgError{Code: "23505", ConstraintName: "purchases_payment_id_key"}))
	require.True(t, PurchasePaymentIDKey.Matches(errors.New("UNIQUE constraint failed: purchases.payment_id")))
	require.False(t, PurchasePaymentIDKey.Matches(errors.New("UNIQUE constraint failed: purchases.voucher_number")))
	require.False(t, VoucherNumberKey.Matches(&pgconn.PgError{Code: "23505", ConstraintName: "purchases_voucher_number_key"}))
}
