package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StartOperation tags ctx with an analysis ID (a new UUID unless one is present) and
// returns a finish function that logs the operation's outcome and duration.
func StartOperation(ctx context.Context, operation string) (context.Context, func(err error, fields ...interface{})) {
	start := time.Now()

	id := AnalysisID(ctx)
	if id == "" {
		id = uuid.New().String()
		ctx = WithAnalysisID(ctx, id)
	}

	logger := FromContext(ctx).WithContext(ctx)
	logger.Debug("operation started", "operation", operation)

	return ctx, func(err error, fields ...interface{}) {
		fields = append(fields, "operation", operation, "duration", time.Since(start))
		if err != nil {
			fields = append(fields, "error", err)
			logger.Error("operation failed", fields...)
			return
		}
		logger.Info("operation completed", fields...)
	}
}
