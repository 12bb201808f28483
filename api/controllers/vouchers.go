package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/giftvouchers-backend/api/responses"
	"github.com/angelmondragon/giftvouchers-backend/api/validators"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/storage/local"
)

// StaffRedeemRequest is sent by the point-of-sale terminal.
type StaffRedeemRequest struct {
	VoucherNumber string          `json:"voucher_number" validate:"required,max=32"`
	Amount        decimal.Decimal `json:"amount"`
	PIN           string          `json:"pin" validate:"required,max=64"`
	Notes         *string         `json:"notes" validate:"omitempty,max=500"`
}

// ImageReader loads a stored voucher image.
type ImageReader interface {
	Read(voucherNumber string) ([]byte, error)
}

// VoucherSearch is the customer balance lookup.
func VoucherSearch(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}
		number := strings.TrimSpace(r.URL.Query().Get("number"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "נדרש מספר שובר"))
			return
		}
		result, err := svc.Lookup(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// VoucherCheck answers a bare "true" or "false" for integrations that only
// need to know whether a card can be used.
func VoucherCheck(svc vouchers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usable := false
		if svc != nil {
			usable = svc.Check(r.Context(), r.URL.Query().Get("card"))
		}
		responses.WriteText(w, http.StatusOK, strconv.FormatBool(usable))
	}
}

// VoucherRedeem deducts from a voucher at the terminal, authorised by the
// shared staff PIN.
func VoucherRedeem(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		var body StaffRedeemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RedeemWithPIN(r.Context(), vouchers.StaffRedeemInput{
			VoucherNumber: body.VoucherNumber,
			Amount:        body.Amount,
			PIN:           body.PIN,
			Notes:         optionalString(body.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// VoucherImage downloads the rendered voucher PNG.
func VoucherImage(images ImageReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := voucherNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if images == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "שובר לא נמצא"))
			return
		}
		png, err := images.Read(number)
		if err != nil {
			if errors.Is(err, local.ErrNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "שובר לא נמצא"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid voucher number"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", `attachment; filename="voucher-`+number+`.png"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
