package controllers

import (
	"io"
	"net/http"

	"github.com/angelmondragon/giftvouchers-backend/api/responses"
	"github.com/angelmondragon/giftvouchers-backend/api/validators"
	"github.com/angelmondragon/giftvouchers-backend/internal/purchases"
	"github.com/angelmondragon/giftvouchers-backend/internal/reconciler"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
)

const maxWebhookBody = 1 << 20

type verifyResponse struct {
	Verified bool                 `json:"verified"`
	Voucher  *vouchers.VoucherDTO `json:"voucher,omitempty"`
	Message  string               `json:"message,omitempty"`
}

type pendingPurchasesResponse struct {
	Items []purchases.PurchaseDTO `json:"items"`
	Page  pagination.Page         `json:"page"`
}

// CreatePurchaseRequest is posted by the storefront checkout page.
type CreatePurchaseRequest struct {
	VoucherType        string `json:"voucherType" validate:"required,max=200"`
	Amount             string `json:"amount" validate:"required,max=32"`
	PaymentURL         string `json:"paymentUrl" validate:"omitempty,url,max=2048"`
	BuyerFirstName     string `json:"buyerFirstName" validate:"required,max=100"`
	BuyerLastName      string `json:"buyerLastName" validate:"required,max=100"`
	BuyerPhone         string `json:"buyerPhone" validate:"required,max=32"`
	BuyerEmail         string `json:"buyerEmail" validate:"required,email,max=254"`
	RecipientFirstName string `json:"recipientFirstName" validate:"required,max=100"`
	RecipientLastName  string `json:"recipientLastName" validate:"max=100"`
	RecipientPhone     string `json:"recipientPhone" validate:"max=32"`
	Greeting           string `json:"greeting" validate:"max=2000"`
}

func (r CreatePurchaseRequest) toInput() purchases.CreateInput {
	return purchases.CreateInput{
		VoucherType:        r.VoucherType,
		Amount:             r.Amount,
		PaymentURL:         r.PaymentURL,
		BuyerFirstName:     r.BuyerFirstName,
		BuyerLastName:      r.BuyerLastName,
		BuyerPhone:         r.BuyerPhone,
		BuyerEmail:         r.BuyerEmail,
		RecipientFirstName: r.RecipientFirstName,
		RecipientLastName:  r.RecipientLastName,
		RecipientPhone:     r.RecipientPhone,
		Greeting:           r.Greeting,
	}
}

// PurchaseCreate records a pending purchase and returns where to pay.
func PurchaseCreate(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		var body CreatePurchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PurchaseVerify is polled by the thank-you page until the voucher exists.
func PurchaseVerify(svc reconciler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		number, err := voucherNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Verify(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verifyResponse{
			Verified: result.Verified,
			Voucher:  vouchers.FromModel(result.Voucher),
			Message:  result.Message,
		})
	}
}

// PurchaseWebhook accepts a payment notification in any of the supported
// shapes and reconciles it.
func PurchaseWebhook(svc reconciler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read notification"))
			return
		}

		notification, err := reconciler.ParseNotification(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.Reconcile(r.Context(), notification)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// AdminPendingPurchases lists purchases still waiting for payment.
func AdminPendingPurchases(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListPending(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pendingPurchasesResponse{
			Items: purchases.FromModels(result.Items),
			Page:  result.Page,
		})
	}
}

// AdminCompletePurchase issues the voucher for a purchase paid outside the
// notification flow. Repeating it returns the same voucher.
func AdminCompletePurchase(svc reconciler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		number, err := voucherNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		voucher, err := svc.CompleteManually(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers.FromModel(voucher))
	}
}

// AdminResendVoucher re-sends the voucher email, rendering the image again
// when it is missing.
func AdminResendVoucher(svc reconciler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		number, err := voucherNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Resend(r.Context(), number); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"voucher_number": number, "sent": true})
	}
}
