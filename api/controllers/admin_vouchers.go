package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/giftvouchers-backend/api/middleware"
	"github.com/angelmondragon/giftvouchers-backend/api/responses"
	"github.com/angelmondragon/giftvouchers-backend/api/validators"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
)

type adminVoucherListResponse struct {
	Items []vouchers.VoucherDTO `json:"items"`
	Page  pagination.Page       `json:"page"`
}

type adminVoucherDetailResponse struct {
	Voucher      *vouchers.VoucherDTO `json:"voucher"`
	UsageHistory []vouchers.UsageDTO  `json:"usage_history"`
}

type AdminCreateVoucherRequest struct {
	VoucherNumber  string          `json:"voucher_number" validate:"omitempty,numeric,max=32"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	ProductName    *string         `json:"product_name" validate:"omitempty,max=200"`
	CustomerName   string          `json:"customer_name" validate:"required,max=200"`
	PhoneNumber    string          `json:"phone_number" validate:"max=32"`
	Email          string          `json:"email" validate:"omitempty,email,max=254"`
	ExpiryDate     *string         `json:"expiry_date"`
	Greeting       string          `json:"greeting" validate:"max=2000"`
	BuyerName      string          `json:"buyer_name" validate:"max=200"`
	BuyerPhone     string          `json:"buyer_phone" validate:"max=32"`
	BuyerEmail     string          `json:"buyer_email" validate:"omitempty,email,max=254"`
	RecipientName  string          `json:"recipient_name" validate:"max=200"`
	RecipientPhone string          `json:"recipient_phone" validate:"max=32"`
}

type AdminUpdateVoucherRequest struct {
	CustomerName    *string          `json:"customer_name" validate:"omitempty,max=200"`
	PhoneNumber     *string          `json:"phone_number" validate:"omitempty,max=32"`
	Email           *string          `json:"email" validate:"omitempty,email,max=254"`
	ExpiryDate      *string          `json:"expiry_date"`
	Status          *string          `json:"status"`
	RemainingAmount *decimal.Decimal `json:"remaining_amount"`
}

type AdminUseVoucherRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  *string         `json:"notes" validate:"omitempty,max=500"`
}

// parseExpiry accepts a calendar date or a full RFC 3339 timestamp.
func parseExpiry(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry_date must be YYYY-MM-DD or RFC3339").
			WithDetails(map[string]any{"field": "expiry_date"})
	}
	t = t.UTC()
	return &t, nil
}

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable")
}

// AdminVoucherList pages through vouchers, optionally filtered by status and
// a free-text search over number, customer name, phone and email.
func AdminVoucherList(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := vouchers.ListFilter{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 100),
			Page:   page,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseVoucherStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		result, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adminVoucherListResponse{
			Items: vouchers.FromModels(result.Items),
			Page:  result.Page,
		})
	}
}

func AdminVoucherCreate(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		var body AdminCreateVoucherRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		expiry, err := parseExpiry(body.ExpiryDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucher, err := svc.Create(r.Context(), vouchers.CreateInput{
			VoucherNumber:  strings.TrimSpace(body.VoucherNumber),
			OriginalAmount: body.OriginalAmount,
			ProductName:    optionalString(body.ProductName, 200),
			CustomerName:   body.CustomerName,
			PhoneNumber:    body.PhoneNumber,
			Email:          body.Email,
			ExpiryDate:     expiry,
			Greeting:       body.Greeting,
			BuyerName:      body.BuyerName,
			BuyerPhone:     body.BuyerPhone,
			BuyerEmail:     body.BuyerEmail,
			RecipientName:  body.RecipientName,
			RecipientPhone: body.RecipientPhone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, vouchers.FromModel(voucher))
	}
}

func AdminVoucherGet(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		id, err := uuidParam(r, "voucherId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adminVoucherDetailResponse{
			Voucher:      vouchers.FromModel(&detail.Voucher),
			UsageHistory: vouchers.UsageFromModels(detail.UsageHistory),
		})
	}
}

func AdminVoucherUpdate(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		id, err := uuidParam(r, "voucherId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body AdminUpdateVoucherRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		expiry, err := parseExpiry(body.ExpiryDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := vouchers.UpdateInput{
			CustomerName:    body.CustomerName,
			PhoneNumber:     body.PhoneNumber,
			Email:           body.Email,
			ExpiryDate:      expiry,
			RemainingAmount: body.RemainingAmount,
			ActorRole:       enums.AdminRole(middleware.RoleFromContext(r.Context())),
		}
		if actor, err := uuid.Parse(middleware.AdminIDFromContext(r.Context())); err == nil {
			input.ActorID = &actor
		}
		if body.Status != nil {
			status, err := enums.ParseVoucherStatus(*body.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}

		voucher, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers.FromModel(voucher))
	}
}

// AdminVoucherUse records a deduction on behalf of the signed-in admin.
func AdminVoucherUse(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		id, err := uuidParam(r, "voucherId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body AdminUseVoucherRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := vouchers.RedeemInput{
			VoucherID: id,
			Amount:    body.Amount,
			ActorRole: enums.AdminRole(middleware.RoleFromContext(r.Context())),
			Notes:     optionalString(body.Notes, 500),
		}
		if actor, err := uuid.Parse(middleware.AdminIDFromContext(r.Context())); err == nil {
			input.ActorID = &actor
		}

		result, err := svc.Redeem(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminVoucherDelete(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		id, err := uuidParam(r, "voucherId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
