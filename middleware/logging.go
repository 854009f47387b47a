package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidelang/tide/job"
)

// Logging returns middleware that logs phase start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, phase string, next Handler) error {
		logger.Debug("phase started",
			slog.String("job_id", j.ID().String()),
			slog.String("phase", phase),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("phase failed",
				slog.String("job_id", j.ID().String()),
				slog.String("phase", phase),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("phase completed",
				slog.String("job_id", j.ID().String()),
				slog.String("phase", phase),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
