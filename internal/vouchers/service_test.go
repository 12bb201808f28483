package vouchers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/dbtest"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/outbox"
	"github.com/angelmondragon/giftvouchers-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
	"github.com/angelmondragon/giftvouchers-backend/pkg/security"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances one second per call so usage rows get distinct timestamps.
func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	svc  Service
	repo Repository
	conn *gorm.DB
}

func newFixture(t *testing.T, mutate ...func(*ServiceParams)) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	params := ServiceParams{
		DB:       db.NewFromConn(conn),
		Repo:     repo,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Lifetime: 365 * 24 * time.Hour,
		Digits:   13,
		Now:      (&clock{now: baseTime}).Now,
	}
	for _, fn := range mutate {
		fn(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, conn: conn}
}

func seedVoucher(t *testing.T, conn *gorm.DB, number, amount string, expiry time.Time) *models.Voucher {
	t.Helper()
	v := &models.Voucher{
		VoucherNumber:   number,
		OriginalAmount:  decimal.RequireFromString(amount),
		RemainingAmount: decimal.RequireFromString(amount),
		CustomerName:    "דנה לוי",
		PhoneNumber:     "0527654321",
		Email:           "buyer@example.com",
		ExpiryDate:      expiry,
		Status:          enums.VoucherStatusActive,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
	require.NoError(t, conn.Create(v).Error)
	return v
}

func outboxRows(t *testing.T, conn *gorm.DB) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestRedeemPartialThenFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := seedVoucher(t, f.conn, "1000000000001", "100", baseTime.AddDate(1, 0, 0))
	actor := uuid.New()

	first, err := f.svc.Redeem(ctx, RedeemInput{VoucherID: v.ID, Amount: decimal.NewFromInt(30), ActorID: &actor, ActorRole: enums.AdminRoleAdmin})
	require.NoError(t, err)
	require.Equal(t, "70", first.RemainingAmount.String())
	require.Equal(t, enums.VoucherStatusActive, first.Status)

	second, err := f.svc.Redeem(ctx, RedeemInput{VoucherID: v.ID, Amount: decimal.NewFromInt(70), ActorID: &actor})
	require.NoError(t, err)
	require.True(t, second.RemainingAmount.IsZero())
	require.Equal(t, enums.VoucherStatusUsed, second.Status)

	_, err = f.svc.Redeem(ctx, RedeemInput{VoucherID: v.ID, Amount: decimal.NewFromInt(1)})
	requireCode(t, err, pkgerrors.CodeInactiveVoucher)

	usage, err := f.repo.ListUsage(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	require.Equal(t, "0", usage[0].RemainingAfter.String(), "newest first")
	require.Equal(t, "70", usage[1].RemainingAfter.String())
	require.NotNil(t, usage[1].UsedBy)
	require.Equal(t, actor, *usage[1].UsedBy)

	events := outboxRows(t, f.conn)
	require.Len(t, events, 2)
	require.Equal(t, enums.EventVoucherRedeemed, events[0].EventType)

	env, err := outbox.DecodeEnvelope(events[0].Payload)
	require.NoError(t, err)
	require.NotNil(t, env.Actor)
	require.Equal(t, actor, *env.Actor.AdminID)
	var data payloads.VoucherRedeemedEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "1000000000001", data.VoucherNumber)
	require.Equal(t, "30", data.AmountUsed.String())
}

func TestRedeemPreconditionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expiredUsed := seedVoucher(t, f.conn, "1000000000010", "50", baseTime.Add(-time.Hour))
	require.NoError(t, f.conn.Model(&models.Voucher{}).Where("id = ?", expiredUsed.ID).
		Updates(map[string]any{"status": enums.VoucherStatusUsed, "remaining_amount": 0}).Error)
	expired := seedVoucher(t, f.conn, "1000000000011", "50", baseTime.Add(-time.Hour))
	active := seedVoucher(t, f.conn, "1000000000012", "50", baseTime.AddDate(0, 6, 0))

	cases := []struct {
		name   string
		id     uuid.UUID
		amount decimal.Decimal
		code   pkgerrors.Code
	}{
		{name: "unknown voucher", id: uuid.New(), amount: decimal.NewFromInt(10), code: pkgerrors.CodeNotFound},
		{name: "inactive wins over expiry", id: expiredUsed.ID, amount: decimal.Zero, code: pkgerrors.CodeInactiveVoucher},
		{name: "expired wins over amount", id: expired.ID, amount: decimal.Zero, code: pkgerrors.CodeExpired},
		{name: "zero amount", id: active.ID, amount: decimal.Zero, code: pkgerrors.CodeInvalidAmount},
		{name: "negative amount", id: active.ID, amount: decimal.NewFromInt(-5), code: pkgerrors.CodeInvalidAmount},
		{name: "sub-agora amount", id: active.ID, amount: decimal.RequireFromString("1.005"), code: pkgerrors.CodeInvalidAmount},
		{name: "over balance", id: active.ID, amount: decimal.NewFromInt(51), code: pkgerrors.CodeInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Redeem(ctx, RedeemInput{VoucherID: tc.id, Amount: tc.amount})
			requireCode(t, err, tc.code)
		})
	}

	got, err := f.repo.FindByID(ctx, active.ID)
	require.NoError(t, err)
	require.Equal(t, "50", got.RemainingAmount.String(), "failed redemptions leave the balance alone")
	require.Empty(t, outboxRows(t, f.conn))
}

func TestRedeemConcurrentDoubleSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := seedVoucher(t, f.conn, "1000000000020", "100", baseTime.AddDate(1, 0, 0))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Redeem(ctx, RedeemInput{VoucherID: v.ID, Amount: decimal.NewFromInt(70)})
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, insufficient)

	got, err := f.repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, "30", got.RemainingAmount.String())

	usage, err := f.repo.ListUsage(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1)
}

func TestDeductRejectsStaleBalance(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	v := seedVoucher(t, conn, "1000000000030", "40", baseTime.AddDate(1, 0, 0))

	ok, err := repo.Deduct(ctx, v.ID, decimal.NewFromInt(40), baseTime)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Deduct(ctx, v.ID, decimal.NewFromInt(1), baseTime)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, enums.VoucherStatusUsed, got.Status)
	require.True(t, got.RemainingAmount.IsZero())

	expired := seedVoucher(t, conn, "1000000000031", "40", baseTime)
	ok, err = repo.Deduct(ctx, expired.ID, decimal.NewFromInt(1), baseTime)
	require.NoError(t, err)
	require.False(t, ok, "expiry instant is already expired")
}

func TestRedeemWithPIN(t *testing.T) {
	hash, err := security.HashPassword("4321", config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	require.NoError(t, err)

	f := newFixture(t, func(p *ServiceParams) { p.PINHash = hash })
	ctx := context.Background()
	v := seedVoucher(t, f.conn, "1000000000040", "188", baseTime.AddDate(1, 0, 0))

	_, err = f.svc.RedeemWithPIN(ctx, StaffRedeemInput{VoucherNumber: v.VoucherNumber, Amount: decimal.NewFromInt(10), PIN: "0000"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = f.svc.RedeemWithPIN(ctx, StaffRedeemInput{VoucherNumber: "9999999999999", Amount: decimal.NewFromInt(10), PIN: "4321"})
	requireCode(t, err, pkgerrors.CodeNotFound)

	res, err := f.svc.RedeemWithPIN(ctx, StaffRedeemInput{VoucherNumber: v.VoucherNumber, Amount: decimal.NewFromInt(88), PIN: "4321"})
	require.NoError(t, err)
	require.Equal(t, "100", res.RemainingAmount.String())

	usage, err := f.repo.ListUsage(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	require.Nil(t, usage[0].UsedBy)

	disabled, err := NewService(ServiceParams{
		DB:       db.NewFromConn(f.conn),
		Repo:     f.repo,
		Outbox:   outbox.NewService(outbox.NewRepository(f.conn), nil),
		Lifetime: time.Hour,
	})
	require.NoError(t, err)
	_, err = disabled.RedeemWithPIN(ctx, StaffRedeemInput{VoucherNumber: v.VoucherNumber, Amount: decimal.NewFromInt(1), PIN: "4321"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCreateVoucher(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) {
		p.Draw = func(int) (string, error) { return "5550000000001", nil }
	})
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateInput{
		OriginalAmount: decimal.NewFromInt(300),
		CustomerName:   " יעל ",
		Greeting:       "יום הולדת שמח",
	})
	require.NoError(t, err)
	require.Equal(t, "5550000000001", created.VoucherNumber)
	require.Equal(t, "יעל", created.CustomerName)
	require.Equal(t, created.OriginalAmount.String(), created.RemainingAmount.String())
	require.Equal(t, enums.VoucherStatusActive, created.Status)
	require.True(t, created.ExpiryDate.After(baseTime.AddDate(0, 11, 0)))

	_, err = f.svc.Create(ctx, CreateInput{VoucherNumber: "5550000000001", OriginalAmount: decimal.NewFromInt(10), CustomerName: "x"})
	requireCode(t, err, pkgerrors.CodeDuplicateVoucherNumber)

	_, err = f.svc.Create(ctx, CreateInput{OriginalAmount: decimal.NewFromInt(10), CustomerName: "x"})
	requireCode(t, err, pkgerrors.CodeIDSpaceExhausted)

	_, err = f.svc.Create(ctx, CreateInput{OriginalAmount: decimal.Zero, CustomerName: "x"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

type takenNumbers map[string]bool

func (n takenNumbers) NumberTaken(_ context.Context, number string) (bool, error) {
	return n[number], nil
}

func TestCreateRespectsReservedPurchaseNumbers(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) {
		p.Numbers = takenNumbers{"7770000000001": true}
	})

	_, err := f.svc.Create(context.Background(), CreateInput{
		VoucherNumber:  "7770000000001",
		OriginalAmount: decimal.NewFromInt(95),
		CustomerName:   "נועה",
	})
	requireCode(t, err, pkgerrors.CodeDuplicateVoucherNumber)
}

func TestUpdateKeepsBalanceAndStatusConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := seedVoucher(t, f.conn, "1000000000050", "100", baseTime.AddDate(1, 0, 0))
	admin := uuid.New()

	name := "שם חדש"
	updated, err := f.svc.Update(ctx, v.ID, UpdateInput{CustomerName: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.CustomerName)
	require.Equal(t, enums.VoucherStatusActive, updated.Status)

	lowered := decimal.NewFromInt(80)
	updated, err = f.svc.Update(ctx, v.ID, UpdateInput{RemainingAmount: &lowered, ActorID: &admin, ActorRole: enums.AdminRoleAdmin})
	require.NoError(t, err)
	require.Equal(t, "80", updated.RemainingAmount.String())
	require.Equal(t, enums.VoucherStatusActive, updated.Status)

	usage, err := f.repo.ListUsage(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	require.Equal(t, "20", usage[0].AmountUsed.String())
	require.Equal(t, "80", usage[0].RemainingAfter.String())
	require.NotNil(t, usage[0].UsedBy)
	require.Equal(t, admin, *usage[0].UsedBy)
	require.NotNil(t, usage[0].Notes)
	require.Equal(t, "admin adjustment", *usage[0].Notes)

	_, err = f.svc.Redeem(ctx, RedeemInput{VoucherID: v.ID, Amount: decimal.NewFromInt(30)})
	require.NoError(t, err)

	zero := decimal.Zero
	updated, err = f.svc.Update(ctx, v.ID, UpdateInput{RemainingAmount: &zero, ActorID: &admin})
	require.NoError(t, err)
	require.Equal(t, enums.VoucherStatusUsed, updated.Status)

	active := enums.VoucherStatusActive
	_, err = f.svc.Update(ctx, v.ID, UpdateInput{Status: &active})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	refill := decimal.NewFromInt(100)
	_, err = f.svc.Update(ctx, v.ID, UpdateInput{RemainingAmount: &refill, Status: &active})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	tooMuch := decimal.NewFromInt(101)
	_, err = f.svc.Update(ctx, v.ID, UpdateInput{RemainingAmount: &tooMuch})
	requireCode(t, err, pkgerrors.CodeValidation)

	var stored models.Voucher
	require.NoError(t, f.conn.Where("id = ?", v.ID).Take(&stored).Error)
	require.Equal(t, enums.VoucherStatusUsed, stored.Status)
	usage, err = f.repo.ListUsage(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, usage, 3)
	used := decimal.Zero
	for _, u := range usage {
		used = used.Add(u.AmountUsed)
	}
	require.True(t, stored.OriginalAmount.Sub(used).Equal(stored.RemainingAmount),
		"original %s - used %s != remaining %s", stored.OriginalAmount, used, stored.RemainingAmount)

	var redeemed int
	for _, row := range outboxRows(t, f.conn) {
		if row.EventType == enums.EventVoucherRedeemed {
			redeemed++
		}
	}
	require.Equal(t, 3, redeemed)

	_, err = f.svc.Update(ctx, uuid.New(), UpdateInput{CustomerName: &name})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetIncludesUsageHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := seedVoucher(t, f.conn, "1000000000060", "100", baseTime.AddDate(1, 0, 0))

	detail, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.UsageHistory)
	require.Empty(t, detail.UsageHistory)

	for _, amount := range []int64{10, 20} {
		_, err := f.svc.Redeem(ctx, RedeemInput{VoucherID: v.ID, Amount: decimal.NewFromInt(amount)})
		require.NoError(t, err)
	}

	detail, err = f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, "70", detail.Voucher.RemainingAmount.String())
	require.Len(t, detail.UsageHistory, 2)
	require.Equal(t, "20", detail.UsageHistory[0].AmountUsed.String())

	_, err = f.svc.Get(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expiry := baseTime.AddDate(1, 0, 0)
	for _, number := range []string{"1000000000071", "1000000000072", "1000000000073"} {
		seedVoucher(t, f.conn, number, "100", expiry)
	}
	used := seedVoucher(t, f.conn, "2000000000074", "100", expiry)
	require.NoError(t, f.conn.Model(&models.Voucher{}).Where("id = ?", used.ID).
		Updates(map[string]any{"status": enums.VoucherStatusUsed, "remaining_amount": 0}).Error)

	all, err := f.svc.List(ctx, ListFilter{Page: pagination.Params{Page: 1, Limit: 2}})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	require.EqualValues(t, 4, all.Page.Total)
	require.Equal(t, 2, all.Page.TotalPages)

	status := enums.VoucherStatusUsed
	onlyUsed, err := f.svc.List(ctx, ListFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, onlyUsed.Items, 1)
	require.Equal(t, used.ID, onlyUsed.Items[0].ID)

	search, err := f.svc.List(ctx, ListFilter{Search: "00000073"})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)

	byPhone, err := f.svc.List(ctx, ListFilter{Search: "0527654321"})
	require.NoError(t, err)
	require.EqualValues(t, 4, byPhone.Page.Total)
}

func TestDeleteRemovesVoucherAndUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := seedVoucher(t, f.conn, "1000000000080", "100", baseTime.AddDate(1, 0, 0))
	_, err := f.svc.Redeem(ctx, RedeemInput{VoucherID: v.ID, Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, v.ID))
	requireCode(t, f.svc.Delete(ctx, v.ID), pkgerrors.CodeNotFound)

	var count int64
	require.NoError(t, f.conn.Model(&models.VoucherUsage{}).Where("voucher_id = ?", v.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestLookupAndCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	live := seedVoucher(t, f.conn, "1000000000090", "100", baseTime.AddDate(1, 0, 0))
	expired := seedVoucher(t, f.conn, "1000000000091", "100", baseTime.Add(-time.Minute))

	res, err := f.svc.Lookup(ctx, live.VoucherNumber)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.True(t, res.Voucher.CanBeUsed)
	require.False(t, res.Voucher.IsExpired)

	res, err = f.svc.Lookup(ctx, expired.VoucherNumber)
	require.NoError(t, err)
	require.True(t, res.Voucher.IsExpired)
	require.False(t, res.Voucher.CanBeUsed)
	require.Equal(t, enums.VoucherStatusActive, res.Voucher.Status, "expiry is never stored")

	res, err = f.svc.Lookup(ctx, "404")
	require.NoError(t, err)
	require.False(t, res.Found)
	require.Nil(t, res.Voucher)

	_, err = f.svc.Lookup(ctx, " ")
	requireCode(t, err, pkgerrors.CodeValidation)

	require.True(t, f.svc.Check(ctx, live.VoucherNumber))
	require.False(t, f.svc.Check(ctx, expired.VoucherNumber))
	require.False(t, f.svc.Check(ctx, "404"))
	require.False(t, f.svc.Check(ctx, ""))
}
