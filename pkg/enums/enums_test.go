package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePurchaseStatus(t *testing.T) {
	status, err := ParsePurchaseStatus("completed")
	require.NoError(t, err)
	require.Equal(t, PurchaseStatusCompleted, status)

	_, err = ParsePurchaseStatus("cancelled")
	require.Error(t, err)
}

func TestVoucherStatusHasNoExpiredState(t *testing.T) {
	require.True(t, VoucherStatusActive.IsValid())
	require.True(t, VoucherStatusUsed.IsValid())
	require.False(t, VoucherStatus("expired").IsValid())
}

func TestParseAdminRole(t *testing.T) {
	role, err := ParseAdminRole("operator")
	require.NoError(t, err)
	require.Equal(t, AdminRoleOperator, role)

	_, err = ParseAdminRole("ADMIN")
	require.Error(t, err)
}

func TestOutboxEnums(t *testing.T) {
	require.True(t, EventVoucherIssued.IsValid())
	require.True(t, AggregateVoucher.IsValid())

	_, err := ParseOutboxEventType("order_created")
	require.Error(t, err)
}
