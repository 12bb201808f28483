package purchases

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
	"github.com/angelmondragon/giftvouchers-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// leadingNumber matches labels that start with a number ("100", "250 ש\"ח").
var leadingNumber = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)`)

// Service exposes purchase intake and the admin pending view.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	ListPending(ctx context.Context, params pagination.Params) (*PendingList, error)
}

// CreateInput is a storefront order. VoucherType is the label the buyer picked;
// Amount is what the payment provider will charge.
type CreateInput struct {
	VoucherType        string
	Amount             string
	PaymentURL         string
	BuyerFirstName     string
	BuyerLastName      string
	BuyerPhone         string
	BuyerEmail         string
	RecipientFirstName string
	RecipientLastName  string
	RecipientPhone     string
	Greeting           string
}

type CreateResult struct {
	PurchaseID    uuid.UUID         `json:"purchase_id"`
	VoucherNumber string            `json:"voucher_number"`
	PaymentURL    string            `json:"payment_url"`
	Kind          enums.VoucherKind `json:"kind"`
}

type PendingList struct {
	Items []models.Purchase `json:"items"`
	Page  pagination.Page   `json:"page"`
}

// NumberSource draws a candidate voucher number with the given digit count.
type NumberSource func(digits int) (string, error)

type ServiceParams struct {
	Repo   Repository
	Config config.PurchasesConfig
	Links  PaymentLinks
	Logger *logger.Logger
	// Numbers defaults to a uniform crypto/rand draw.
	Numbers NumberSource
	Now     func() time.Time
}

type service struct {
	repo    Repository
	cfg     config.PurchasesConfig
	links   PaymentLinks
	logg    *logger.Logger
	numbers NumberSource
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if params.Config.VoucherNumberDigits <= 0 {
		return nil, fmt.Errorf("voucher number digits must be positive")
	}
	if params.Config.MaxDrawAttempts <= 0 {
		return nil, fmt.Errorf("max draw attempts must be positive")
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = security.RandomNumberString
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		cfg:     params.Config,
		links:   params.Links,
		logg:    params.Logger,
		numbers: numbers,
		now:     now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	amount, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	if err := validateContact(input); err != nil {
		return nil, err
	}

	productName := classifyProduct(input.VoucherType)

	for attempt := 1; attempt <= s.cfg.MaxDrawAttempts; attempt++ {
		number, err := s.numbers(s.cfg.VoucherNumberDigits)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "draw voucher number")
		}

		taken, err := s.repo.NumberTaken(ctx, number)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check voucher number")
		}
		if taken {
			s.logCollision(ctx, number, attempt)
			continue
		}

		purchase := &models.Purchase{
			VoucherNumber:      number,
			Amount:             amount,
			ProductName:        productName,
			BuyerFirstName:     strings.TrimSpace(input.BuyerFirstName),
			BuyerLastName:      strings.TrimSpace(input.BuyerLastName),
			BuyerPhone:         strings.TrimSpace(input.BuyerPhone),
			BuyerPhoneKey:      PhoneKey(input.BuyerPhone),
			BuyerEmail:         strings.TrimSpace(input.BuyerEmail),
			RecipientFirstName: strings.TrimSpace(input.RecipientFirstName),
			RecipientLastName:  strings.TrimSpace(input.RecipientLastName),
			RecipientPhone:     strings.TrimSpace(input.RecipientPhone),
			Greeting:           input.Greeting,
			PaymentURL:         s.links.Resolve(input.PaymentURL, input.Amount),
			Status:             enums.PurchaseStatusPending,
			CreatedAt:          s.now().UTC(),
		}
		if err := s.repo.Create(ctx, purchase); err != nil {
			if db.PurchaseVoucherNumberKey.Matches(err) {
				s.logCollision(ctx, number, attempt)
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
		}

		if s.logg != nil {
			logCtx := s.logg.WithPurchaseID(ctx, purchase.ID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"voucher_number": number,
				"amount":         amount.String(),
				"kind":           purchase.Kind().String(),
			})
			s.logg.Info(logCtx, "purchase.created")
		}

		return &CreateResult{
			PurchaseID:    purchase.ID,
			VoucherNumber: number,
			PaymentURL:    purchase.PaymentURL,
			Kind:          purchase.Kind(),
		}, nil
	}

	if s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "attempts", s.cfg.MaxDrawAttempts), "purchase.id_space_exhausted", nil)
	}
	return nil, pkgerrors.New(pkgerrors.CodeIDSpaceExhausted, "could not allocate a unique voucher number").
		WithDetails(map[string]any{"attempts": s.cfg.MaxDrawAttempts})
}

func (s *service) ListPending(ctx context.Context, params pagination.Params) (*PendingList, error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListPending(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending purchases")
	}
	if rows == nil {
		rows = []models.Purchase{}
	}
	return &PendingList{Items: rows, Page: params.Describe(total)}, nil
}

func (s *service) logCollision(ctx context.Context, number string, attempt int) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"voucher_number": number,
		"attempt":        attempt,
	}), "purchase.voucher_number_collision")
}

// ParseAmount parses a positive money amount with at most two decimals.
func ParseAmount(raw string) (decimal.Decimal, error) {
	return parseAmount(raw)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, "₪", ""))
	if trimmed == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a number").
			WithDetails(map[string]any{"amount": raw})
	}
	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimals")
	}
	return amount, nil
}

// classifyProduct returns the product name when the label names a product
// rather than a face value.
func classifyProduct(label string) *string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || strings.Contains(trimmed, "₪") || leadingNumber.MatchString(trimmed) {
		return nil
	}
	return &trimmed
}

func validateContact(input CreateInput) error {
	fields := map[string]any{}
	if strings.TrimSpace(input.BuyerFirstName) == "" {
		fields["buyer_first_name"] = "required"
	}
	if PhoneKey(input.BuyerPhone) == "" {
		fields["buyer_phone"] = "must contain at least 9 digits"
	}
	email := strings.TrimSpace(input.BuyerEmail)
	if email == "" {
		fields["buyer_email"] = "required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["buyer_email"] = "invalid email"
	}
	if strings.TrimSpace(input.RecipientFirstName) == "" {
		fields["recipient_first_name"] = "required"
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid purchase details").WithDetails(fields)
	}
	return nil
}
