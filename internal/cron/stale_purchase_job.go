package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
)

const defaultStalePendingAge = 24 * time.Hour

type stalePurchaseDeleter interface {
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

type StalePurchaseJobParams struct {
	Logger    *logger.Logger
	Purchases stalePurchaseDeleter
	MaxAge    time.Duration
}

// NewStalePurchaseJob removes pending purchases that were never paid.
// Completed purchases are never touched.
func NewStalePurchaseJob(params StalePurchaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultStalePendingAge
	}
	return &stalePurchaseJob{
		logg:      params.Logger,
		purchases: params.Purchases,
		maxAge:    maxAge,
		now:       time.Now,
	}, nil
}

type stalePurchaseJob struct {
	logg      *logger.Logger
	purchases stalePurchaseDeleter
	maxAge    time.Duration
	now       func() time.Time
}

func (j *stalePurchaseJob) Name() string { return "stale-purchase-sweep" }

func (j *stalePurchaseJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	deleted, err := j.purchases.DeleteStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete stale purchases: %w", err)
	}
	if deleted > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		}), "stale pending purchases deleted")
	}
	return nil
}
