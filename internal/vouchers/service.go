package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/metrics"
	"github.com/angelmondragon/giftvouchers-backend/pkg/outbox"
	"github.com/angelmondragon/giftvouchers-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
	"github.com/angelmondragon/giftvouchers-backend/pkg/security"
)

// Service exposes the voucher ledger.
type Service interface {
	Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error)
	RedeemWithPIN(ctx context.Context, input StaffRedeemInput) (*RedeemResult, error)
	Create(ctx context.Context, input CreateInput) (*models.Voucher, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Voucher, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, filter ListFilter) (*ListResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Lookup(ctx context.Context, voucherNumber string) (*LookupResult, error)
	Check(ctx context.Context, voucherNumber string) bool
}

// RedeemInput is an authenticated admin deduction.
type RedeemInput struct {
	VoucherID uuid.UUID
	Amount    decimal.Decimal
	ActorID   *uuid.UUID
	ActorRole enums.AdminRole
	Notes     *string
}

// StaffRedeemInput is a terminal deduction authorised by the shared PIN.
type StaffRedeemInput struct {
	VoucherNumber string
	Amount        decimal.Decimal
	PIN           string
	Notes         *string
}

type RedeemResult struct {
	VoucherID       uuid.UUID           `json:"voucher_id"`
	VoucherNumber   string              `json:"voucher_number"`
	UsageID         uuid.UUID           `json:"usage_id"`
	UsedAmount      decimal.Decimal     `json:"used_amount"`
	RemainingAmount decimal.Decimal     `json:"remaining_amount"`
	Status          enums.VoucherStatus `json:"status"`
}

// CreateInput issues a voucher by hand. An empty VoucherNumber draws one.
type CreateInput struct {
	VoucherNumber  string
	OriginalAmount decimal.Decimal
	ProductName    *string
	CustomerName   string
	PhoneNumber    string
	Email          string
	ExpiryDate     *time.Time
	Greeting       string
	BuyerName      string
	BuyerPhone     string
	BuyerEmail     string
	RecipientName  string
	RecipientPhone string
}

// UpdateInput is a partial admin edit; nil fields are left untouched.
// RemainingAmount may only lower the balance and is recorded as a usage row.
type UpdateInput struct {
	CustomerName    *string
	PhoneNumber     *string
	Email           *string
	ExpiryDate      *time.Time
	Status          *enums.VoucherStatus
	RemainingAmount *decimal.Decimal
	ActorID         *uuid.UUID
	ActorRole       enums.AdminRole
}

const adjustmentNote = "admin adjustment"

type Detail struct {
	Voucher      models.Voucher        `json:"voucher"`
	UsageHistory []models.VoucherUsage `json:"usage_history"`
}

type ListResult struct {
	Items []models.Voucher `json:"items"`
	Page  pagination.Page  `json:"page"`
}

// LookupResult is the public view of a voucher.
type LookupResult struct {
	Found   bool           `json:"found"`
	Voucher *PublicVoucher `json:"voucher,omitempty"`
}

type PublicVoucher struct {
	VoucherNumber   string              `json:"voucher_number"`
	OriginalAmount  decimal.Decimal     `json:"original_amount"`
	RemainingAmount decimal.Decimal     `json:"remaining_amount"`
	ProductName     *string             `json:"product_name,omitempty"`
	CustomerName    string              `json:"customer_name"`
	PurchaseDate    time.Time           `json:"purchase_date"`
	ExpiryDate      time.Time           `json:"expiry_date"`
	Status          enums.VoucherStatus `json:"status"`
	VoucherImageURL *string             `json:"voucher_image_url,omitempty"`
	IsExpired       bool                `json:"is_expired"`
	CanBeUsed       bool                `json:"can_be_used"`
}

// NumberChecker reports whether a voucher number is already reserved by a
// purchase or held by a voucher.
type NumberChecker interface {
	NumberTaken(ctx context.Context, voucherNumber string) (bool, error)
}

type ServiceParams struct {
	DB       db.TxRunner
	Repo     Repository
	Numbers  NumberChecker
	Outbox   outbox.Emitter
	Metrics  *metrics.VoucherMetrics
	Logger   *logger.Logger
	PINHash  string
	Lifetime time.Duration
	// Digits and MaxDrawAttempts bound number generation for admin-issued vouchers.
	Digits          int
	MaxDrawAttempts int
	Draw            func(digits int) (string, error)
	Now             func() time.Time
}

type service struct {
	tx          db.TxRunner
	repo        Repository
	numbers     NumberChecker
	outbox      outbox.Emitter
	metrics     *metrics.VoucherMetrics
	logg        *logger.Logger
	pinHash     string
	lifetime    time.Duration
	digits      int
	maxAttempts int
	draw        func(int) (string, error)
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("vouchers repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Lifetime <= 0 {
		return nil, fmt.Errorf("voucher lifetime must be positive")
	}
	svc := &service{
		tx:          params.DB,
		repo:        params.Repo,
		numbers:     params.Numbers,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		pinHash:     params.PINHash,
		lifetime:    params.Lifetime,
		digits:      params.Digits,
		maxAttempts: params.MaxDrawAttempts,
		draw:        params.Draw,
		now:         params.Now,
	}
	if svc.digits <= 0 {
		svc.digits = 13
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = 10
	}
	if svc.draw == nil {
		svc.draw = security.RandomNumberString
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	var actor *outbox.ActorRef
	if input.ActorID != nil {
		actor = &outbox.ActorRef{AdminID: input.ActorID, Role: input.ActorRole.String()}
	}

	var result *RedeemResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		voucher, err := repo.FindByID(ctx, input.VoucherID)
		if err != nil {
			return notFoundOr(err, "load voucher")
		}
		result, err = s.redeem(ctx, tx, repo, voucher, input.Amount, input.ActorID, actor, input.Notes)
		return err
	})
	s.observeRedemption(err)
	if err != nil {
		return nil, err
	}
	s.logRedeemed(ctx, result, input.ActorID)
	return result, nil
}

// RedeemWithPIN checks the PIN before touching the voucher, so a wrong PIN
// leaks nothing about which numbers exist.
func (s *service) RedeemWithPIN(ctx context.Context, input StaffRedeemInput) (*RedeemResult, error) {
	ok, err := security.VerifyPIN(input.PIN, s.pinHash)
	if err != nil {
		if errors.Is(err, security.ErrPINNotConfigured) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff redemption is disabled")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify staff pin")
	}
	if !ok {
		s.metrics.ObserveRedemption(string(pkgerrors.CodeUnauthorized))
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid pin")
	}

	number := strings.TrimSpace(input.VoucherNumber)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher number is required")
	}

	var result *RedeemResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		voucher, err := repo.FindByNumber(ctx, number)
		if err != nil {
			return notFoundOr(err, "load voucher")
		}
		actor := &outbox.ActorRef{Role: "staff"}
		result, err = s.redeem(ctx, tx, repo, voucher, input.Amount, nil, actor, input.Notes)
		return err
	})
	s.observeRedemption(err)
	if err != nil {
		return nil, err
	}
	s.logRedeemed(ctx, result, nil)
	return result, nil
}

func (s *service) redeem(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	voucher *models.Voucher,
	amount decimal.Decimal,
	usedBy *uuid.UUID,
	actor *outbox.ActorRef,
	notes *string,
) (*RedeemResult, error) {
	now := s.now().UTC()
	if err := checkRedeemable(voucher, amount, now); err != nil {
		return nil, err
	}

	ok, err := repo.Deduct(ctx, voucher.ID, amount, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct balance")
	}
	current, err := repo.FindByID(ctx, voucher.ID)
	if err != nil {
		return nil, notFoundOr(err, "reload voucher")
	}
	if !ok {
		// Lost a race: classify against the row as it is now.
		if err := checkRedeemable(current, amount, now); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "voucher changed during redemption")
	}

	usage := &models.VoucherUsage{
		VoucherID:      current.ID,
		AmountUsed:     amount,
		RemainingAfter: current.RemainingAmount,
		UsedBy:         usedBy,
		Notes:          notes,
		CreatedAt:      now,
	}
	if err := repo.InsertUsage(ctx, usage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record voucher usage")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventVoucherRedeemed,
		AggregateType: enums.AggregateVoucher,
		AggregateID:   current.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.VoucherRedeemedEvent{
			VoucherID:      current.ID,
			VoucherNumber:  current.VoucherNumber,
			UsageID:        usage.ID,
			AmountUsed:     amount,
			RemainingAfter: current.RemainingAmount,
			Status:         current.Status,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit voucher redeemed")
	}

	return &RedeemResult{
		VoucherID:       current.ID,
		VoucherNumber:   current.VoucherNumber,
		UsageID:         usage.ID,
		UsedAmount:      amount,
		RemainingAmount: current.RemainingAmount,
		Status:          current.Status,
	}, nil
}

// checkRedeemable applies the precondition order: inactive, expired, invalid
// amount, insufficient balance.
func checkRedeemable(voucher *models.Voucher, amount decimal.Decimal, now time.Time) error {
	if voucher.Status != enums.VoucherStatusActive {
		return pkgerrors.New(pkgerrors.CodeInactiveVoucher, "voucher is not active").
			WithDetails(map[string]any{"status": voucher.Status})
	}
	if voucher.IsExpired(now) {
		return pkgerrors.New(pkgerrors.CodeExpired, "voucher has expired").
			WithDetails(map[string]any{"expiry_date": voucher.ExpiryDate})
	}
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be positive with at most two decimals").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	if amount.GreaterThan(voucher.RemainingAmount) {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "amount exceeds remaining balance").
			WithDetails(map[string]any{"remaining_amount": voucher.RemainingAmount.String()})
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Voucher, error) {
	if !input.OriginalAmount.IsPositive() || !input.OriginalAmount.Equal(input.OriginalAmount.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "original amount must be positive with at most two decimals")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}

	now := s.now().UTC()
	expiry := now.Add(s.lifetime)
	if input.ExpiryDate != nil {
		expiry = input.ExpiryDate.UTC()
	}

	number := strings.TrimSpace(input.VoucherNumber)
	if number != "" {
		taken, err := s.numberTaken(ctx, number)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicateVoucherNumber, "voucher number already exists").
				WithDetails(map[string]any{"voucher_number": number})
		}
	} else {
		drawn, err := s.drawNumber(ctx)
		if err != nil {
			return nil, err
		}
		number = drawn
	}

	voucher := &models.Voucher{
		VoucherNumber:   number,
		OriginalAmount:  input.OriginalAmount,
		RemainingAmount: input.OriginalAmount,
		ProductName:     trimmedOrNil(input.ProductName),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		PhoneNumber:     strings.TrimSpace(input.PhoneNumber),
		Email:           strings.TrimSpace(input.Email),
		BuyerName:       strings.TrimSpace(input.BuyerName),
		BuyerPhone:      strings.TrimSpace(input.BuyerPhone),
		BuyerEmail:      strings.TrimSpace(input.BuyerEmail),
		RecipientName:   strings.TrimSpace(input.RecipientName),
		RecipientPhone:  strings.TrimSpace(input.RecipientPhone),
		Greeting:        input.Greeting,
		ExpiryDate:      expiry,
		Status:          enums.VoucherStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, voucher); err != nil {
		if db.VoucherNumberKey.Matches(err) {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicateVoucherNumber, "voucher number already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create voucher")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithVoucherNumber(ctx, number), "voucher.created_by_admin")
	}
	return voucher, nil
}

func (s *service) numberTaken(ctx context.Context, number string) (bool, error) {
	var (
		taken bool
		err   error
	)
	if s.numbers != nil {
		taken, err = s.numbers.NumberTaken(ctx, number)
	} else {
		taken, err = s.repo.NumberExists(ctx, number)
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check voucher number")
	}
	return taken, nil
}

func (s *service) drawNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		number, err := s.draw(s.digits)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "draw voucher number")
		}
		taken, err := s.numberTaken(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeIDSpaceExhausted, "could not allocate a unique voucher number")
}

// Update applies a partial edit. The status always agrees with the balance:
// an empty voucher is used, anything else is active. A balance edit is a
// deduction like any other, so original minus the usage trail still equals
// the remaining amount and a used voucher is never reopened.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Voucher, error) {
	now := s.now().UTC()
	var updated *models.Voucher
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "load voucher")
		}

		fields := map[string]any{"updated_at": now}
		if input.CustomerName != nil {
			fields["customer_name"] = strings.TrimSpace(*input.CustomerName)
		}
		if input.PhoneNumber != nil {
			fields["phone_number"] = strings.TrimSpace(*input.PhoneNumber)
		}
		if input.Email != nil {
			fields["email"] = strings.TrimSpace(*input.Email)
		}
		if input.ExpiryDate != nil {
			fields["expiry_date"] = input.ExpiryDate.UTC()
		}

		remaining := current.RemainingAmount
		if input.RemainingAmount != nil {
			remaining = *input.RemainingAmount
			if remaining.IsNegative() || remaining.GreaterThan(current.OriginalAmount) || !remaining.Equal(remaining.Round(2)) {
				return pkgerrors.New(pkgerrors.CodeValidation, "remaining amount must be between 0 and the original amount").
					WithDetails(map[string]any{"original_amount": current.OriginalAmount.String()})
			}
			if remaining.GreaterThan(current.RemainingAmount) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "remaining amount can only be lowered").
					WithDetails(map[string]any{"remaining_amount": current.RemainingAmount.String()})
			}
		}

		status := statusFor(remaining)
		if input.Status != nil {
			if !input.Status.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "unknown voucher status")
			}
			if *input.Status != status {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "status must be used exactly when the balance is zero").
					WithDetails(map[string]any{"status": *input.Status, "remaining_amount": remaining.String()})
			}
		}

		if _, err := repo.Update(ctx, id, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update voucher")
		}
		if remaining.LessThan(current.RemainingAmount) {
			if err := s.adjust(ctx, tx, repo, current, remaining, input, now); err != nil {
				return err
			}
		}
		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "reload voucher")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// adjust lowers the balance to remaining and records the difference in the
// usage trail and the outbox, as a redemption would.
func (s *service) adjust(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	current *models.Voucher,
	remaining decimal.Decimal,
	input UpdateInput,
	now time.Time,
) error {
	ok, err := repo.AdjustBalance(ctx, current.ID, current.RemainingAmount, remaining, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust balance")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "voucher changed during update")
	}

	amount := current.RemainingAmount.Sub(remaining)
	note := adjustmentNote
	usage := &models.VoucherUsage{
		VoucherID:      current.ID,
		AmountUsed:     amount,
		RemainingAfter: remaining,
		UsedBy:         input.ActorID,
		Notes:          &note,
		CreatedAt:      now,
	}
	if err := repo.InsertUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record voucher usage")
	}

	var actor *outbox.ActorRef
	if input.ActorID != nil {
		actor = &outbox.ActorRef{AdminID: input.ActorID, Role: input.ActorRole.String()}
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventVoucherRedeemed,
		AggregateType: enums.AggregateVoucher,
		AggregateID:   current.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.VoucherRedeemedEvent{
			VoucherID:      current.ID,
			VoucherNumber:  current.VoucherNumber,
			UsageID:        usage.ID,
			AmountUsed:     amount,
			RemainingAfter: remaining,
			Status:         statusFor(remaining),
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit voucher adjusted")
	}
	return nil
}

func statusFor(remaining decimal.Decimal) enums.VoucherStatus {
	if remaining.IsZero() {
		return enums.VoucherStatusUsed
	}
	return enums.VoucherStatusActive
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load voucher")
	}
	usage, err := s.repo.ListUsage(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load usage history")
	}
	if usage == nil {
		usage = []models.VoucherUsage{}
	}
	return &Detail{Voucher: *voucher, UsageHistory: usage}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	filter.Page = filter.Page.Normalize()
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}
	if rows == nil {
		rows = []models.Voucher{}
	}
	return &ListResult{Items: rows, Page: filter.Page.Describe(total)}, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete voucher")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil
	})
}

func (s *service) Lookup(ctx context.Context, voucherNumber string) (*LookupResult, error) {
	number := strings.TrimSpace(voucherNumber)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher number is required")
	}
	voucher, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if db.IsNotFound(err) {
			return &LookupResult{Found: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup voucher")
	}
	now := s.now().UTC()
	return &LookupResult{
		Found: true,
		Voucher: &PublicVoucher{
			VoucherNumber:   voucher.VoucherNumber,
			OriginalAmount:  voucher.OriginalAmount,
			RemainingAmount: voucher.RemainingAmount,
			ProductName:     voucher.ProductName,
			CustomerName:    voucher.CustomerName,
			PurchaseDate:    voucher.CreatedAt,
			ExpiryDate:      voucher.ExpiryDate,
			Status:          voucher.Status,
			VoucherImageURL: voucher.VoucherImageURL,
			IsExpired:       voucher.IsExpired(now),
			CanBeUsed:       voucher.CanBeUsed(now),
		},
	}, nil
}

// Check answers false for anything that is not a usable voucher, including
// lookup failures.
func (s *service) Check(ctx context.Context, voucherNumber string) bool {
	number := strings.TrimSpace(voucherNumber)
	if number == "" {
		return false
	}
	voucher, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if !db.IsNotFound(err) && s.logg != nil {
			s.logg.Error(s.logg.WithVoucherNumber(ctx, number), "voucher.check_failed", err)
		}
		return false
	}
	return voucher.CanBeUsed(s.now().UTC())
}

func (s *service) observeRedemption(err error) {
	if err == nil {
		s.metrics.ObserveRedemption("success")
		return
	}
	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.ObserveRedemption(string(typed.Code()))
		return
	}
	s.metrics.ObserveRedemption(metrics.OutcomeError)
}

func (s *service) logRedeemed(ctx context.Context, result *RedeemResult, actorID *uuid.UUID) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithVoucherNumber(ctx, result.VoucherNumber)
	fields := map[string]any{
		"used_amount":      result.UsedAmount.String(),
		"remaining_amount": result.RemainingAmount.String(),
		"status":           result.Status,
	}
	if actorID != nil {
		fields["actor_id"] = actorID.String()
	}
	s.logg.Info(s.logg.WithFields(logCtx, fields), "voucher.redeemed")
}

func notFoundOr(err error, action string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
