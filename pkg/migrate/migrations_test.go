package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/giftvouchers-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one %s migration", suffix)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestPurchasesMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_purchases")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS purchases",
		"CONSTRAINT purchases_voucher_number_key UNIQUE (voucher_number)",
		"CHECK (status IN ('pending', 'completed'))",
		"CREATE UNIQUE INDEX IF NOT EXISTS purchases_payment_id_key",
		"WHERE status = 'pending'",
		"DROP TABLE IF EXISTS purchases",
	}
	for _, sub := range checks {
		require.Contains(t, content, sub)
	}
}

func TestVouchersMigrationContainsBalanceInvariants(t *testing.T) {
	content := readMigration(t, "create_vouchers")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS vouchers",
		"CONSTRAINT vouchers_voucher_number_key UNIQUE (voucher_number)",
		"CHECK (remaining_amount >= 0 AND remaining_amount <= original_amount)",
		"CHECK ((status = 'used') = (remaining_amount = 0))",
		"DEFERRABLE INITIALLY DEFERRED",
		"DROP TABLE IF EXISTS vouchers",
	}
	for _, sub := range checks {
		require.Contains(t, content, sub)
	}
}

func TestVoucherUsageMigrationReferencesVouchers(t *testing.T) {
	content := readMigration(t, "create_voucher_usage")
	require.Contains(t, content, "FOREIGN KEY (voucher_id) REFERENCES vouchers(id) ON DELETE CASCADE")
	require.Contains(t, content, "CHECK (amount_used > 0)")
}

func TestEmbeddedMigrationsMatchDirectory(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)

	embedded, err := migrate.Embedded.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
}

func TestValidateDir(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))

	dir := t.TempDir()
	require.Error(t, migrate.ValidateDir(dir), "empty directory should fail")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "Add Voucher Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_voucher_notes.sql"))

	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "   ")
	require.Error(t, err)
}
