package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
)

type lookupSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// NewLookupGuardSweepJob drops idle lookup-guard records. It belongs in the
// process that owns the records.
func NewLookupGuardSweepJob(logg *logger.Logger, guard lookupSweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if guard == nil {
		return nil, fmt.Errorf("lookup guard required")
	}
	return &lookupGuardSweepJob{logg: logg, guard: guard}, nil
}

type lookupGuardSweepJob struct {
	logg  *logger.Logger
	guard lookupSweeper
}

func (j *lookupGuardSweepJob) Name() string { return "lookup-guard-sweep" }

func (j *lookupGuardSweepJob) Run(ctx context.Context) error {
	removed, err := j.guard.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep lookup guard: %w", err)
	}
	if removed > 0 {
		j.logg.Debug(j.logg.WithField(ctx, "records_removed", removed), "lookup guard swept")
	}
	return nil
}
