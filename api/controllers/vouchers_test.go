package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/giftvouchers-backend/api/middleware"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
	"github.com/angelmondragon/giftvouchers-backend/pkg/storage/local"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestVoucherSearchRequiresNumber(t *testing.T) {
	svc := &fakeVoucherService{}
	rec := serve(http.MethodGet, "/api/vouchers/search", "/api/vouchers/search", "", VoucherSearch(svc, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "נדרש מספר שובר", decodeError(t, rec).Error.Message)
}

func TestVoucherSearchReturnsLookup(t *testing.T) {
	var got string
	svc := &fakeVoucherService{
		lookupFn: func(_ context.Context, number string) (*vouchers.LookupResult, error) {
			got = number
			return &vouchers.LookupResult{Found: false}, nil
		},
	}
	rec := serve(http.MethodGet, "/api/vouchers/search", "/api/vouchers/search?number=+1234567890123+", "", VoucherSearch(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1234567890123", got)
	require.JSONEq(t, `{"data":{"found":false}}`, rec.Body.String())
}

func TestVoucherCheckWritesPlainText(t *testing.T) {
	svc := &fakeVoucherService{
		checkFn: func(_ context.Context, number string) bool { return number == "111" },
	}

	rec := serve(http.MethodGet, "/api/vouchers/check", "/api/vouchers/check?card=111", "", VoucherCheck(svc))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true", rec.Body.String())
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	rec = serve(http.MethodGet, "/api/vouchers/check", "/api/vouchers/check", "", VoucherCheck(svc))
	require.Equal(t, "false", rec.Body.String())
}

func TestVoucherRedeemPassesInput(t *testing.T) {
	var got vouchers.StaffRedeemInput
	svc := &fakeVoucherService{
		redeemWithPINFn: func(_ context.Context, in vouchers.StaffRedeemInput) (*vouchers.RedeemResult, error) {
			got = in
			return &vouchers.RedeemResult{
				VoucherNumber:   in.VoucherNumber,
				UsedAmount:      in.Amount,
				RemainingAmount: decimal.NewFromInt(70),
				Status:          enums.VoucherStatusActive,
			}, nil
		},
	}

	body := `{"voucher_number":"555","amount":30,"pin":"1234","notes":"  counter 2 "}`
	rec := serve(http.MethodPost, "/api/vouchers/redeem", "/api/vouchers/redeem", body, VoucherRedeem(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "555", got.VoucherNumber)
	require.True(t, got.Amount.Equal(decimal.NewFromInt(30)))
	require.Equal(t, "1234", got.PIN)
	require.NotNil(t, got.Notes)
	require.Equal(t, "counter 2", *got.Notes)
}

func TestVoucherRedeemRejectsMissingPIN(t *testing.T) {
	svc := &fakeVoucherService{}
	body := `{"voucher_number":"555","amount":30}`
	rec := serve(http.MethodPost, "/api/vouchers/redeem", "/api/vouchers/redeem", body, VoucherRedeem(svc, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoucherRedeemMapsServiceError(t *testing.T) {
	svc := &fakeVoucherService{
		redeemWithPINFn: func(context.Context, vouchers.StaffRedeemInput) (*vouchers.RedeemResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "יתרה לא מספיקה")
		},
	}
	body := `{"voucher_number":"555","amount":300,"pin":"1234"}`
	rec := serve(http.MethodPost, "/api/vouchers/redeem", "/api/vouchers/redeem", body, VoucherRedeem(svc, nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, string(pkgerrors.CodeInsufficientBalance), decodeError(t, rec).Error.Code)
}

type stubImages struct {
	data map[string][]byte
	err  error
}

func (s stubImages) Read(number string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.data[number]
	if !ok {
		return nil, local.ErrNotFound
	}
	return data, nil
}

func TestVoucherImage(t *testing.T) {
	images := stubImages{data: map[string][]byte{"777": []byte("\x89PNG")}}
	pattern := "/api/voucher/{voucherNumber}/image"

	rec := serve(http.MethodGet, pattern, "/api/voucher/777/image", "", VoucherImage(images, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="voucher-777.png"`)
	require.Equal(t, "\x89PNG", rec.Body.String())

	rec = serve(http.MethodGet, pattern, "/api/voucher/888/image", "", VoucherImage(images, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodGet, pattern, "/api/voucher/999/image", "", VoucherImage(stubImages{err: errors.New("bad name")}, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func sampleVoucher() *models.Voucher {
	return &models.Voucher{
		ID:              uuid.New(),
		VoucherNumber:   "1234567890123",
		OriginalAmount:  decimal.NewFromInt(100),
		RemainingAmount: decimal.NewFromInt(100),
		CustomerName:    "Dana",
		ExpiryDate:      time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:          enums.VoucherStatusActive,
	}
}

func TestAdminVoucherListFilters(t *testing.T) {
	var got vouchers.ListFilter
	svc := &fakeVoucherService{
		listFn: func(_ context.Context, filter vouchers.ListFilter) (*vouchers.ListResult, error) {
			got = filter
			return &vouchers.ListResult{
				Items: []models.Voucher{*sampleVoucher()},
				Page:  filter.Page.Describe(1),
			}, nil
		},
	}

	rec := serve(http.MethodGet, "/api/admin/vouchers", "/api/admin/vouchers?status=active&search=dana&page=2&limit=10", "", AdminVoucherList(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Status)
	require.Equal(t, enums.VoucherStatusActive, *got.Status)
	require.Equal(t, "dana", got.Search)
	require.Equal(t, pagination.Params{Page: 2, Limit: 10}, got.Page)

	var body struct {
		Data adminVoucherListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Items, 1)
	require.Equal(t, "1234567890123", body.Data.Items[0].VoucherNumber)
}

func TestAdminVoucherListRejectsUnknownStatus(t *testing.T) {
	svc := &fakeVoucherService{}
	rec := serve(http.MethodGet, "/api/admin/vouchers", "/api/admin/vouchers?status=expired", "", AdminVoucherList(svc, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminVoucherCreateParsesExpiry(t *testing.T) {
	var got vouchers.CreateInput
	svc := &fakeVoucherService{
		createFn: func(_ context.Context, in vouchers.CreateInput) (*models.Voucher, error) {
			got = in
			return sampleVoucher(), nil
		},
	}
	body := `{"original_amount":"150.50","customer_name":"Dana","expiry_date":"2031-06-30"}`
	rec := serve(http.MethodPost, "/api/admin/vouchers", "/api/admin/vouchers", body, AdminVoucherCreate(svc, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, got.OriginalAmount.Equal(decimal.RequireFromString("150.50")))
	require.NotNil(t, got.ExpiryDate)
	require.Equal(t, time.Date(2031, 6, 30, 0, 0, 0, 0, time.UTC), *got.ExpiryDate)
	require.Empty(t, got.VoucherNumber)
}

func TestAdminVoucherCreateRejectsBadExpiry(t *testing.T) {
	svc := &fakeVoucherService{}
	body := `{"original_amount":"150","customer_name":"Dana","expiry_date":"next year"}`
	rec := serve(http.MethodPost, "/api/admin/vouchers", "/api/admin/vouchers", body, AdminVoucherCreate(svc, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminVoucherGetRejectsBadID(t *testing.T) {
	svc := &fakeVoucherService{}
	rec := serve(http.MethodGet, "/api/admin/vouchers/{voucherId}", "/api/admin/vouchers/not-a-uuid", "", AdminVoucherGet(svc, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminVoucherGetIncludesHistory(t *testing.T) {
	voucher := sampleVoucher()
	svc := &fakeVoucherService{
		getFn: func(_ context.Context, id uuid.UUID) (*vouchers.Detail, error) {
			require.Equal(t, voucher.ID, id)
			return &vouchers.Detail{
				Voucher: *voucher,
				UsageHistory: []models.VoucherUsage{
					{ID: uuid.New(), VoucherID: voucher.ID, AmountUsed: decimal.NewFromInt(20), RemainingAfter: decimal.NewFromInt(80)},
				},
			}, nil
		},
	}
	rec := serve(http.MethodGet, "/api/admin/vouchers/{voucherId}", "/api/admin/vouchers/"+voucher.ID.String(), "", AdminVoucherGet(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data adminVoucherDetailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, voucher.VoucherNumber, body.Data.Voucher.VoucherNumber)
	require.Len(t, body.Data.UsageHistory, 1)
}

func TestAdminVoucherUpdateParsesStatus(t *testing.T) {
	var got vouchers.UpdateInput
	svc := &fakeVoucherService{
		updateFn: func(_ context.Context, _ uuid.UUID, in vouchers.UpdateInput) (*models.Voucher, error) {
			got = in
			return sampleVoucher(), nil
		},
	}
	id := uuid.New()
	body := `{"status":"used","remaining_amount":"0"}`
	rec := serve(http.MethodPut, "/api/admin/vouchers/{voucherId}", "/api/admin/vouchers/"+id.String(), body, AdminVoucherUpdate(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Status)
	require.Equal(t, enums.VoucherStatusUsed, *got.Status)
	require.NotNil(t, got.RemainingAmount)
	require.True(t, got.RemainingAmount.IsZero())
	require.Nil(t, got.CustomerName)
}

func TestAdminVoucherUseTakesActorFromContext(t *testing.T) {
	var got vouchers.RedeemInput
	svc := &fakeVoucherService{
		redeemFn: func(_ context.Context, in vouchers.RedeemInput) (*vouchers.RedeemResult, error) {
			got = in
			return &vouchers.RedeemResult{VoucherID: in.VoucherID, UsedAmount: in.Amount}, nil
		},
	}
	voucherID := uuid.New()
	adminID := uuid.New()

	router := chi.NewRouter()
	router.Post("/api/admin/vouchers/{voucherId}/use", AdminVoucherUse(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/vouchers/"+voucherID.String()+"/use", strings.NewReader(`{"amount":"25"}`))
	req = req.WithContext(middleware.WithAdmin(req.Context(), adminID.String(), string(enums.AdminRoleOperator), "access-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, voucherID, got.VoucherID)
	require.NotNil(t, got.ActorID)
	require.Equal(t, adminID, *got.ActorID)
	require.Equal(t, enums.AdminRoleOperator, got.ActorRole)
	require.Nil(t, got.Notes)
}

func TestAdminVoucherDelete(t *testing.T) {
	var deleted uuid.UUID
	svc := &fakeVoucherService{
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}
	id := uuid.New()
	rec := serve(http.MethodDelete, "/api/admin/vouchers/{voucherId}", "/api/admin/vouchers/"+id.String(), "", AdminVoucherDelete(svc, nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, id, deleted)
}
