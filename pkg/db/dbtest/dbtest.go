// Package dbtest opens isolated in-memory SQLite databases carrying the
// voucher schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE purchases (
		id TEXT PRIMARY KEY,
		voucher_number TEXT NOT NULL UNIQUE,
		amount NUMERIC NOT NULL,
		product_name TEXT,
		buyer_first_name TEXT NOT NULL,
		buyer_last_name TEXT NOT NULL,
		buyer_phone TEXT NOT NULL,
		buyer_phone_key TEXT NOT NULL,
		buyer_email TEXT NOT NULL,
		recipient_first_name TEXT NOT NULL,
		recipient_last_name TEXT NOT NULL,
		recipient_phone TEXT NOT NULL,
		greeting TEXT NOT NULL DEFAULT '',
		payment_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		payment_id TEXT UNIQUE,
		voucher_id TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	)`,
	`CREATE TABLE vouchers (
		id TEXT PRIMARY KEY,
		voucher_number TEXT NOT NULL UNIQUE,
		original_amount NUMERIC NOT NULL,
		remaining_amount NUMERIC NOT NULL CHECK (remaining_amount >= 0 AND remaining_amount <= original_amount),
		product_name TEXT,
		customer_name TEXT NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		buyer_name TEXT NOT NULL DEFAULT '',
		buyer_phone TEXT NOT NULL DEFAULT '',
		buyer_email TEXT NOT NULL DEFAULT '',
		recipient_name TEXT NOT NULL DEFAULT '',
		recipient_phone TEXT NOT NULL DEFAULT '',
		greeting TEXT NOT NULL DEFAULT '',
		expiry_date DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		voucher_image_url TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE voucher_usage (
		id TEXT PRIMARY KEY,
		voucher_id TEXT NOT NULL REFERENCES vouchers(id) ON DELETE CASCADE,
		amount_used NUMERIC NOT NULL,
		remaining_after NUMERIC NOT NULL,
		used_by TEXT,
		notes TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE admin_users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'operator',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a fresh database named after the running test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
