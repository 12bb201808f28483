package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/giftvouchers-backend/internal/purchases"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db/models"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/mailer"
	"github.com/angelmondragon/giftvouchers-backend/pkg/metrics"
	"github.com/angelmondragon/giftvouchers-backend/pkg/outbox"
	"github.com/angelmondragon/giftvouchers-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/giftvouchers-backend/pkg/renderer"
	"github.com/angelmondragon/giftvouchers-backend/pkg/storage/local"
)

// Renderer turns voucher details into a PNG.
type Renderer interface {
	Render(ctx context.Context, in renderer.VoucherImage) ([]byte, error)
}

// ImageStore persists rendered images and returns their public path.
type ImageStore interface {
	Save(ctx context.Context, voucherNumber string, png []byte) (string, error)
	Read(voucherNumber string) ([]byte, error)
}

// Notifier delivers voucher emails and operator alerts.
type Notifier interface {
	SendVoucherEmail(ctx context.Context, msg mailer.VoucherEmail) error
	SendAdminAlert(ctx context.Context, alert mailer.AdminAlert) error
}

// Service turns payment notifications into issued vouchers.
type Service interface {
	Reconcile(ctx context.Context, n Notification) (*Outcome, error)
	CompleteManually(ctx context.Context, voucherNumber string) (*models.Voucher, error)
	Verify(ctx context.Context, voucherNumber string) (*VerifyResult, error)
	Resend(ctx context.Context, voucherNumber string) error
}

type Outcome struct {
	Matched          bool            `json:"matched"`
	AlreadyProcessed bool            `json:"already_processed"`
	PurchaseID       uuid.UUID       `json:"purchase_id,omitempty"`
	VoucherNumber    string          `json:"voucher_number,omitempty"`
	Voucher          *models.Voucher `json:"-"`
}

type VerifyResult struct {
	Verified bool            `json:"verified"`
	Voucher  *models.Voucher `json:"voucher,omitempty"`
	Message  string          `json:"message,omitempty"`
}

const purchaseNotFoundMessage = "רכישה לא נמצאה"

type ServiceParams struct {
	DB          db.TxRunner
	Purchases   purchases.Repository
	Vouchers    vouchers.Repository
	Outbox      outbox.Emitter
	Renderer    Renderer
	Images      ImageStore
	Notifier    Notifier
	Claims      ReferenceClaims
	Metrics     *metrics.VoucherMetrics
	Logger      *logger.Logger
	Fulfillment config.FulfillmentConfig
	Now         func() time.Time
}

type service struct {
	tx        db.TxRunner
	purchases purchases.Repository
	vouchers  vouchers.Repository
	outbox    outbox.Emitter
	renderer  Renderer
	images    ImageStore
	notifier  Notifier
	claims    ReferenceClaims
	metrics   *metrics.VoucherMetrics
	logg      *logger.Logger
	cfg       config.FulfillmentConfig
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Purchases == nil || params.Vouchers == nil {
		return nil, fmt.Errorf("purchases and vouchers repositories required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Fulfillment.VoucherLifetime <= 0 {
		return nil, fmt.Errorf("voucher lifetime must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "reconciler", Output: io.Discard})
	}
	return &service{
		tx:        params.DB,
		purchases: params.Purchases,
		vouchers:  params.Vouchers,
		outbox:    params.Outbox,
		renderer:  params.Renderer,
		images:    params.Images,
		notifier:  params.Notifier,
		claims:    params.Claims,
		metrics:   params.Metrics,
		logg:      logg,
		cfg:       params.Fulfillment,
		now:       now,
	}, nil
}

func (s *service) Reconcile(ctx context.Context, n Notification) (*Outcome, error) {
	if n == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification required")
	}
	source := n.Source()
	signals := n.Signals()
	ctx = s.withSignals(ctx, source, signals)

	if !signals.Identified() {
		s.metrics.ObserveReconcile(source, metrics.OutcomeMissingIdentifier)
		s.warn(ctx, "reconcile.missing_identifier")
		s.alertUnmatched(ctx, source, signals, "התקבל תשלום ללא טלפון או מייל לזיהוי")
		return nil, pkgerrors.New(pkgerrors.CodeMissingIdentifier, "notification carries no phone or email")
	}

	if ref := signals.Reference; ref != "" && s.claims != nil {
		claimed, err := s.claims.Claim(ctx, ref)
		switch {
		case err != nil:
			// The database check below still guards duplicates.
			s.error(ctx, "reconcile.claim_failed", err)
		case !claimed:
			return s.claimHeld(ctx, source, ref)
		default:
			defer s.releaseClaim(ctx, ref)
		}
	}

	outcome, err := s.reconcile(ctx, source, signals)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNoPendingPurchase) {
			s.metrics.ObserveReconcile(source, metrics.OutcomeError)
		}
		return nil, err
	}
	return outcome, nil
}

// claimHeld answers a delivery whose reference another delivery holds. A
// committed reference returns the issued voucher; otherwise the sender is
// asked to retry.
func (s *service) claimHeld(ctx context.Context, source, ref string) (*Outcome, error) {
	existing, err := s.purchases.FindByPaymentID(ctx, ref)
	switch {
	case err == nil:
		s.metrics.ObserveReconcile(source, metrics.OutcomeAlreadyProcessed)
		s.info(s.logg.WithPurchaseID(ctx, existing.ID.String()), "reconcile.already_processed")
		return s.alreadyProcessed(ctx, existing)
	case db.IsNotFound(err):
		s.info(ctx, "reconcile.duplicate_in_flight")
		return nil, pkgerrors.New(pkgerrors.CodePaymentInProgress, "payment reference is being processed by another delivery")
	default:
		s.metrics.ObserveReconcile(source, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment reference")
	}
}

func (s *service) releaseClaim(ctx context.Context, ref string) {
	if err := s.claims.Release(ctx, ref); err != nil {
		s.error(ctx, "reconcile.claim_release_failed", err)
	}
}

func (s *service) reconcile(ctx context.Context, source string, signals Signals) (*Outcome, error) {
	if ref := signals.Reference; ref != "" {
		existing, err := s.purchases.FindByPaymentID(ctx, ref)
		switch {
		case err == nil:
			s.metrics.ObserveReconcile(source, metrics.OutcomeAlreadyProcessed)
			s.info(s.logg.WithPurchaseID(ctx, existing.ID.String()), "reconcile.already_processed")
			return s.alreadyProcessed(ctx, existing)
		case !db.IsNotFound(err):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment reference")
		}
	}

	var purchase *models.Purchase
	if signals.HasAmount {
		found, err := s.purchases.FindOldestPendingMatch(ctx, purchases.MatchCriteria{
			Amount:   signals.Amount,
			PhoneKey: signals.PhoneKey(),
			Email:    signals.Email,
		})
		if err != nil && !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match pending purchase")
		}
		purchase = found
	}
	if purchase == nil {
		s.metrics.ObserveReconcile(source, metrics.OutcomeNoPendingPurchase)
		s.warn(ctx, "reconcile.no_pending_purchase")
		s.alertUnmatched(ctx, source, signals, "התקבל תשלום שלא נמצאה עבורו רכישה ממתינה")
		return nil, pkgerrors.New(pkgerrors.CodeNoPendingPurchase, "no pending purchase matches the payment").
			WithDetails(signalDetails(source, signals))
	}

	var paymentID *string
	if signals.Reference != "" {
		ref := signals.Reference
		paymentID = &ref
	}
	outcome, err := s.complete(ctx, purchase, paymentID, source)
	if err != nil {
		return nil, err
	}
	if outcome.AlreadyProcessed {
		s.metrics.ObserveReconcile(source, metrics.OutcomeAlreadyProcessed)
	} else {
		s.metrics.ObserveReconcile(source, metrics.OutcomeMatched)
	}
	return outcome, nil
}

// complete moves a pending purchase to completed and issues its voucher in
// one transaction, then runs fulfillment. A purchase that is no longer
// pending, or a unique-key collision with a concurrent completion, reports
// the existing voucher instead.
func (s *service) complete(ctx context.Context, purchase *models.Purchase, paymentID *string, source string) (*Outcome, error) {
	now := s.now().UTC()
	voucher := snapshotVoucher(purchase, now, now.Add(s.cfg.VoucherLifetime))
	ctx = s.logg.WithPurchaseID(ctx, purchase.ID.String())

	alreadyDone := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.purchases.WithTx(tx).MarkCompleted(ctx, purchase.ID, voucher.ID, paymentID, now)
		if err != nil {
			return err
		}
		if !ok {
			alreadyDone = true
			return nil
		}
		if err := s.vouchers.WithTx(tx).Create(ctx, voucher); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVoucherIssued,
			AggregateType: enums.AggregateVoucher,
			AggregateID:   voucher.ID,
			OccurredAt:    now,
			Data: payloads.VoucherIssuedEvent{
				VoucherID:      voucher.ID,
				VoucherNumber:  voucher.VoucherNumber,
				PurchaseID:     &purchase.ID,
				PaymentID:      paymentID,
				Kind:           voucher.Kind(),
				OriginalAmount: voucher.OriginalAmount,
				ExpiryDate:     voucher.ExpiryDate,
				Source:         source,
			},
		})
	})
	if err != nil {
		if db.PurchasePaymentIDKey.Matches(err) || db.VoucherNumberKey.Matches(err) {
			alreadyDone = true
		} else {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete purchase")
		}
	}

	if alreadyDone {
		s.info(ctx, "reconcile.completed_concurrently")
		return s.completedElsewhere(ctx, purchase, paymentID)
	}

	s.info(s.logg.WithVoucherNumber(ctx, voucher.VoucherNumber), "reconcile.voucher_issued")
	s.fulfill(ctx, voucher)
	return &Outcome{
		Matched:       true,
		PurchaseID:    purchase.ID,
		VoucherNumber: voucher.VoucherNumber,
		Voucher:       voucher,
	}, nil
}

// completedElsewhere resolves the purchase a concurrent completion finished.
// A payment reference wins over the local purchase: the reference may have
// landed on a different pending purchase of the same buyer.
func (s *service) completedElsewhere(ctx context.Context, purchase *models.Purchase, paymentID *string) (*Outcome, error) {
	if paymentID != nil {
		existing, err := s.purchases.FindByPaymentID(ctx, *paymentID)
		if err == nil {
			return s.alreadyProcessed(ctx, existing)
		}
		if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment reference")
		}
	}
	current, err := s.purchases.FindByID(ctx, purchase.ID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase")
	}
	if current.Status != enums.PurchaseStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodePaymentInProgress, "purchase completion is still in progress")
	}
	return s.alreadyProcessed(ctx, current)
}

func (s *service) alreadyProcessed(ctx context.Context, purchase *models.Purchase) (*Outcome, error) {
	voucher, err := s.voucherFor(ctx, purchase)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	return &Outcome{
		Matched:          true,
		AlreadyProcessed: true,
		PurchaseID:       purchase.ID,
		VoucherNumber:    purchase.VoucherNumber,
		Voucher:          voucher,
	}, nil
}

func (s *service) voucherFor(ctx context.Context, purchase *models.Purchase) (*models.Voucher, error) {
	var (
		voucher *models.Voucher
		err     error
	)
	if purchase.VoucherID != nil {
		voucher, err = s.vouchers.FindByID(ctx, *purchase.VoucherID)
	} else {
		voucher, err = s.vouchers.FindByNumber(ctx, purchase.VoucherNumber)
	}
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}
	return voucher, nil
}

// snapshotVoucher copies names and contacts from the purchase so the voucher
// stays stable when the purchase is later edited or swept.
func snapshotVoucher(p *models.Purchase, now, expiry time.Time) *models.Voucher {
	return &models.Voucher{
		ID:              uuid.New(),
		VoucherNumber:   p.VoucherNumber,
		OriginalAmount:  p.Amount,
		RemainingAmount: p.Amount,
		ProductName:     p.ProductName,
		CustomerName:    p.RecipientName(),
		PhoneNumber:     p.RecipientPhone,
		Email:           p.BuyerEmail,
		BuyerName:       p.BuyerName(),
		BuyerPhone:      p.BuyerPhone,
		BuyerEmail:      p.BuyerEmail,
		RecipientName:   p.RecipientName(),
		RecipientPhone:  p.RecipientPhone,
		Greeting:        p.Greeting,
		ExpiryDate:      expiry,
		Status:          enums.VoucherStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *service) CompleteManually(ctx context.Context, voucherNumber string) (*models.Voucher, error) {
	number := strings.TrimSpace(voucherNumber)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher number is required")
	}
	ctx = s.logg.WithVoucherNumber(ctx, number)

	purchase, err := s.purchases.FindLatestByNumber(ctx, number)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, purchaseNotFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}

	if purchase.Status == enums.PurchaseStatusCompleted {
		s.metrics.ObserveReconcile(SourceManual, metrics.OutcomeAlreadyProcessed)
		return s.voucherFor(ctx, purchase)
	}

	outcome, err := s.complete(ctx, purchase, nil, SourceManual)
	if err != nil {
		s.metrics.ObserveReconcile(SourceManual, metrics.OutcomeError)
		return nil, err
	}
	if outcome.AlreadyProcessed {
		s.metrics.ObserveReconcile(SourceManual, metrics.OutcomeAlreadyProcessed)
	} else {
		s.metrics.ObserveReconcile(SourceManual, metrics.OutcomeMatched)
		s.info(ctx, "reconcile.completed_manually")
	}
	if outcome.Voucher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	return outcome.Voucher, nil
}

// Verify answers the storefront's "has my payment cleared" poll.
func (s *service) Verify(ctx context.Context, voucherNumber string) (*VerifyResult, error) {
	number := strings.TrimSpace(voucherNumber)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher number is required")
	}

	voucher, err := s.vouchers.FindByNumber(ctx, number)
	if err == nil {
		return &VerifyResult{Verified: true, Voucher: voucher}, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}

	purchase, err := s.purchases.FindLatestByNumber(ctx, number)
	if err != nil {
		if db.IsNotFound(err) {
			return &VerifyResult{Verified: false, Message: purchaseNotFoundMessage}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase.Status == enums.PurchaseStatusCompleted {
		voucher, err := s.voucherFor(ctx, purchase)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return &VerifyResult{Verified: false}, nil
			}
			return nil, err
		}
		return &VerifyResult{Verified: true, Voucher: voucher}, nil
	}
	return &VerifyResult{Verified: false}, nil
}

// Resend re-renders a missing image and sends the voucher email again.
// Unlike automatic fulfillment, a failed email is reported to the caller.
func (s *service) Resend(ctx context.Context, voucherNumber string) error {
	number := strings.TrimSpace(voucherNumber)
	if number == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher number is required")
	}
	ctx = s.logg.WithVoucherNumber(ctx, number)

	voucher, err := s.vouchers.FindByNumber(ctx, number)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}

	var png []byte
	if s.images != nil && voucher.VoucherImageURL != nil {
		png, err = s.images.Read(number)
		if err != nil && !errors.Is(err, local.ErrNotFound) {
			s.error(ctx, "resend.read_image_failed", err)
		}
	}
	if len(png) == 0 {
		png = s.renderAndStore(ctx, voucher)
	}

	if s.notifier == nil {
		return pkgerrors.New(pkgerrors.CodeNotifyFailure, "mail delivery is not configured")
	}
	err = s.sendVoucherEmail(ctx, voucher, png)
	s.metrics.ObserveSideEffect(metrics.EffectEmail, err)
	if err != nil {
		s.error(ctx, "resend.email_failed", err)
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeNotifyFailure, err, "send voucher email")
	}
	s.info(ctx, "resend.email_sent")
	return nil
}

// fulfill runs the best-effort steps after a voucher is committed. Each step
// gets its own deadline and none of them is allowed to fail the caller.
func (s *service) fulfill(ctx context.Context, voucher *models.Voucher) {
	ctx = s.logg.WithVoucherNumber(ctx, voucher.VoucherNumber)
	png := s.renderAndStore(ctx, voucher)
	if s.notifier == nil {
		return
	}
	err := s.sendVoucherEmail(ctx, voucher, png)
	s.metrics.ObserveSideEffect(metrics.EffectEmail, err)
	if err != nil {
		s.error(ctx, "fulfillment.email_failed", err)
		return
	}
	s.info(ctx, "fulfillment.email_sent")
}

func (s *service) renderAndStore(ctx context.Context, voucher *models.Voucher) []byte {
	if s.renderer == nil {
		return nil
	}

	renderCtx, cancel := s.effectContext(ctx, s.cfg.RenderTimeout)
	png, err := s.renderer.Render(renderCtx, renderer.VoucherImage{
		VoucherNumber: voucher.VoucherNumber,
		Amount:        voucher.OriginalAmount,
		ProductName:   deref(voucher.ProductName),
		RecipientName: voucher.RecipientName,
		Greeting:      voucher.Greeting,
		ExpiryDate:    voucher.ExpiryDate,
	})
	cancel()
	s.metrics.ObserveSideEffect(metrics.EffectRender, err)
	if err != nil {
		s.error(ctx, "fulfillment.render_failed", err)
		return nil
	}

	if s.images == nil {
		return png
	}
	storeCtx, cancel := s.effectContext(ctx, s.cfg.RenderTimeout)
	defer cancel()
	url, err := s.images.Save(storeCtx, voucher.VoucherNumber, png)
	if err == nil {
		err = s.vouchers.SetImageURL(storeCtx, voucher.ID, url)
	}
	s.metrics.ObserveSideEffect(metrics.EffectStore, err)
	if err != nil {
		s.error(ctx, "fulfillment.store_image_failed", err)
		return png
	}
	voucher.VoucherImageURL = &url
	return png
}

func (s *service) sendVoucherEmail(ctx context.Context, voucher *models.Voucher, png []byte) error {
	to := voucher.BuyerEmail
	if strings.TrimSpace(to) == "" {
		to = voucher.Email
	}
	notifyCtx, cancel := s.effectContext(ctx, s.cfg.NotifyTimeout)
	defer cancel()
	return s.notifier.SendVoucherEmail(notifyCtx, mailer.VoucherEmail{
		To:            to,
		BuyerName:     voucher.BuyerName,
		VoucherNumber: voucher.VoucherNumber,
		Amount:        voucher.OriginalAmount,
		ProductName:   deref(voucher.ProductName),
		RecipientName: voucher.RecipientName,
		Greeting:      voucher.Greeting,
		ExpiryDate:    voucher.ExpiryDate,
		Image:         png,
	})
}

func (s *service) alertUnmatched(ctx context.Context, source string, signals Signals, message string) {
	if s.notifier == nil {
		return
	}
	alertCtx, cancel := s.effectContext(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	fields := map[string]string{}
	for k, v := range signalDetails(source, signals) {
		fields[k] = fmt.Sprint(v)
	}
	err := s.notifier.SendAdminAlert(alertCtx, mailer.AdminAlert{
		Subject: "תשלום לא מזוהה",
		Message: message,
		Fields:  fields,
	})
	s.metrics.ObserveSideEffect(metrics.EffectAlert, err)
	if err != nil {
		s.error(ctx, "reconcile.admin_alert_failed", err)
	}
}

// effectContext detaches side effects from the caller's cancellation; the
// request may end before an email goes out.
func (s *service) effectContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (s *service) withSignals(ctx context.Context, source string, signals Signals) context.Context {
	return s.logg.WithFields(ctx, signalDetails(source, signals))
}

func signalDetails(source string, signals Signals) map[string]any {
	details := map[string]any{"source": source}
	if signals.Phone != "" {
		details["phone"] = signals.Phone
	}
	if signals.Email != "" {
		details["email"] = signals.Email
	}
	if signals.HasAmount {
		details["amount"] = signals.Amount.String()
	}
	if signals.Reference != "" {
		details["reference"] = signals.Reference
	}
	if signals.Name != "" {
		details["name"] = signals.Name
	}
	return details
}

func (s *service) info(ctx context.Context, msg string) {
	s.logg.Info(ctx, msg)
}

func (s *service) warn(ctx context.Context, msg string) {
	s.logg.Warn(ctx, msg)
}

func (s *service) error(ctx context.Context, msg string, err error) {
	s.logg.Error(ctx, msg, err)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
