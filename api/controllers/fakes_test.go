package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/giftvouchers-backend/internal/purchases"
	"github.com/angelmondragon/giftvouchers-backend/internal/reconciler"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/pagination"
)

type fakeVoucherService struct {
	redeemFn        func(context.Context, vouchers.RedeemInput) (*vouchers.RedeemResult, error)
	redeemWithPINFn func(context.Context, vouchers.StaffRedeemInput) (*vouchers.RedeemResult, error)
	createFn        func(context.Context, vouchers.CreateInput) (*models.Voucher, error)
	updateFn        func(context.Context, uuid.UUID, vouchers.UpdateInput) (*models.Voucher, error)
	getFn           func(context.Context, uuid.UUID) (*vouchers.Detail, error)
	listFn          func(context.Context, vouchers.ListFilter) (*vouchers.ListResult, error)
	deleteFn        func(context.Context, uuid.UUID) error
	lookupFn        func(context.Context, string) (*vouchers.LookupResult, error)
	checkFn         func(context.Context, string) bool
}

func (f *fakeVoucherService) Redeem(ctx context.Context, in vouchers.RedeemInput) (*vouchers.RedeemResult, error) {
	return f.redeemFn(ctx, in)
}

func (f *fakeVoucherService) RedeemWithPIN(ctx context.Context, in vouchers.StaffRedeemInput) (*vouchers.RedeemResult, error) {
	return f.redeemWithPINFn(ctx, in)
}

func (f *fakeVoucherService) Create(ctx context.Context, in vouchers.CreateInput) (*models.Voucher, error) {
	return f.createFn(ctx, in)
}

func (f *fakeVoucherService) Update(ctx context.Context, id uuid.UUID, in vouchers.UpdateInput) (*models.Voucher, error) {
	return f.updateFn(ctx, id, in)
}

func (f *fakeVoucherService) Get(ctx context.Context, id uuid.UUID) (*vouchers.Detail, error) {
	return f.getFn(ctx, id)
}

func (f *fakeVoucherService) List(ctx context.Context, filter vouchers.ListFilter) (*vouchers.ListResult, error) {
	return f.listFn(ctx, filter)
}

func (f *fakeVoucherService) Delete(ctx context.Context, id uuid.UUID) error {
	return f.deleteFn(ctx, id)
}

func (f *fakeVoucherService) Lookup(ctx context.Context, number string) (*vouchers.LookupResult, error) {
	return f.lookupFn(ctx, number)
}

func (f *fakeVoucherService) Check(ctx context.Context, number string) bool {
	if f.checkFn == nil {
		return false
	}
	return f.checkFn(ctx, number)
}

type fakePurchaseService struct {
	createFn      func(context.Context, purchases.CreateInput) (*purchases.CreateResult, error)
	listPendingFn func(context.Context, pagination.Params) (*purchases.PendingList, error)
}

func (f *fakePurchaseService) Create(ctx context.Context, in purchases.CreateInput) (*purchases.CreateResult, error) {
	return f.createFn(ctx, in)
}

func (f *fakePurchaseService) ListPending(ctx context.Context, params pagination.Params) (*purchases.PendingList, error) {
	return f.listPendingFn(ctx, params)
}

type fakeReconciler struct {
	reconcileFn func(context.Context, reconciler.Notification) (*reconciler.Outcome, error)
	completeFn  func(context.Context, string) (*models.Voucher, error)
	verifyFn    func(context.Context, string) (*reconciler.VerifyResult, error)
	resendFn    func(context.Context, string) error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, n reconciler.Notification) (*reconciler.Outcome, error) {
	return f.reconcileFn(ctx, n)
}

func (f *fakeReconciler) CompleteManually(ctx context.Context, number string) (*models.Voucher, error) {
	return f.completeFn(ctx, number)
}

func (f *fakeReconciler) Verify(ctx context.Context, number string) (*reconciler.VerifyResult, error) {
	return f.verifyFn(ctx, number)
}

func (f *fakeReconciler) Resend(ctx context.Context, number string) error {
	return f.resendFn(ctx, number)
}

// serve routes a single request through chi so URL params resolve.
func serve(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
