package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/giftvouchers-backend/api/controllers"
	"github.com/angelmondragon/giftvouchers-backend/api/middleware"
	"github.com/angelmondragon/giftvouchers-backend/internal/auth"
	"github.com/angelmondragon/giftvouchers-backend/internal/lookupguard"
	"github.com/angelmondragon/giftvouchers-backend/internal/purchases"
	"github.com/angelmondragon/giftvouchers-backend/internal/reconciler"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	"github.com/angelmondragon/giftvouchers-backend/pkg/auth/session"
	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/redis"
)

// cacheClient is the Redis surface the HTTP layer needs.
type cacheClient interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type lookupGuard interface {
	Allow(ctx context.Context, source, number string) (lookupguard.Decision, error)
}

type imageStore interface {
	controllers.ImageReader
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache cacheClient,
	images imageStore,
	sessions session.AccessSessionChecker,
	guard lookupGuard,
	authService auth.Service,
	purchaseService purchases.Service,
	voucherService vouchers.Service,
	reconcilerService reconciler.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)
	staffRedeemPolicy := middleware.NewRateLimitPolicy(
		"staff-redeem",
		cfg.RateLimit.StaffRedeemWindow,
		cfg.RateLimit.StaffRedeemIPLimit,
		0,
	)

	// Interface values stay nil when the concrete dependency is missing so
	// middleware can skip itself.
	var (
		limiter     middlewareLimiter
		idempotency redis.IdempotencyStore
	)
	if cache != nil {
		limiter = cache
		idempotency = cache
	}

	var ready = map[string]controllers.Pinger{}
	if dbP != nil {
		ready["db"] = dbP
	}
	if cache != nil {
		ready["redis"] = cache
	}
	if images != nil {
		ready["images"] = images
	}

	var imageReader controllers.ImageReader
	if images != nil {
		imageReader = images
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/purchase", func(r chi.Router) {
		r.Post("/", controllers.PurchaseCreate(purchaseService, logg))
		r.With(middleware.LookupGuard(guard, middleware.NumberFromURLParam("voucherNumber"), logg)).
			Get("/verify/{voucherNumber}", controllers.PurchaseVerify(reconcilerService, logg))
		r.With(middleware.WebhookSecret(cfg.Webhook.Secret, logg)).
			Post("/webhook", controllers.PurchaseWebhook(reconcilerService, logg))
	})

	r.Route("/api/vouchers", func(r chi.Router) {
		r.With(middleware.LookupGuard(guard, middleware.NumberFromQuery("number"), logg)).
			Get("/search", controllers.VoucherSearch(voucherService, logg))
		r.With(middleware.LookupGuard(guard, middleware.NumberFromQuery("card"), logg)).
			Get("/check", controllers.VoucherCheck(voucherService))
		r.With(
			middleware.RateLimit(staffRedeemPolicy, limiter, logg),
			middleware.LookupGuard(guard, middleware.NumberFromJSONBody("voucher_number"), logg),
			middleware.Idempotency(idempotency, logg),
		).Post("/redeem", controllers.VoucherRedeem(voucherService, logg))
	})

	r.Get("/api/voucher/{voucherNumber}/image", controllers.VoucherImage(imageReader, logg))

	r.Route("/api/admin/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, limiter, logg)).
			Post("/login", controllers.AdminAuthLogin(authService, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).
			Post("/logout", controllers.AdminAuthLogout(authService, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/", controllers.AdminVoucherList(voucherService, logg))
			r.Post("/", controllers.AdminVoucherCreate(voucherService, logg))
			r.Get("/{voucherId}", controllers.AdminVoucherGet(voucherService, logg))
			r.Put("/{voucherId}", controllers.AdminVoucherUpdate(voucherService, logg))
			r.With(middleware.Idempotency(idempotency, logg)).
				Post("/{voucherId}/use", controllers.AdminVoucherUse(voucherService, logg))
			r.With(middleware.RequireRole(enums.AdminRoleAdmin, logg)).
				Delete("/{voucherId}", controllers.AdminVoucherDelete(voucherService, logg))
			r.Post("/{voucherNumber}/resend", controllers.AdminResendVoucher(reconcilerService, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/pending", controllers.AdminPendingPurchases(purchaseService, logg))
			r.Post("/{voucherNumber}/complete", controllers.AdminCompletePurchase(reconcilerService, logg))
		})
	})

	return r
}

type middlewareLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}
