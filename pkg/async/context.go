package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/alatoul/ride-hailing/pkg/logger"
	"go.uber.org/zap"
)

// TaskContext holds the request values that should follow work onto a
// detached goroutine.
type TaskContext struct {
	CorrelationID string
	UserID        string
	StartTime     time.Time
	TaskName      string
}

// CaptureContext snapshots the correlation and user ids carried by ctx.
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		UserID:        logger.UserIDFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext returns a background context carrying the captured values.
// It is not cancelled when the originating request finishes.
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	if tc.UserID != "" {
		ctx = logger.ContextWithUserID(ctx, tc.UserID)
	}
	return ctx
}

// NewContextWithTimeout is NewContext bounded by timeout.
func (tc TaskContext) NewContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(tc.NewContext(), timeout)
}

// Detach returns a context that keeps ctx's correlation and user ids but
// drops its deadline and cancellation.
func Detach(ctx context.Context) context.Context {
	return CaptureContext(ctx, "").NewContext()
}

// Go runs fn on a new goroutine with context propagation and panic recovery.
//
// Usage:
//
//	async.Go(ctx, "publish-pricing-updated", func(ctx context.Context) {
//	    _ = publisher.Publish(ctx, subject, event)
//	})
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		newCtx := tc.NewContext()
		fn(newCtx)

		logger.DebugContext(newCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// GoWithTimeout is Go with fn's context bounded by timeout.
func GoWithTimeout(ctx context.Context, taskName string, timeout time.Duration, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		newCtx, cancel := tc.NewContextWithTimeout(timeout)
		defer cancel()

		fn(newCtx)

		if newCtx.Err() == context.DeadlineExceeded {
			logger.WarnContext(newCtx, "async task timed out",
				zap.String("task", tc.TaskName),
				zap.Duration("timeout", timeout),
			)
		}
	}()
}

func recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(tc.NewContext(), "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
