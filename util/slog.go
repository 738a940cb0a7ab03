package util

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

var slogMeasureID = &atomic.Int64{}

// SLogMeasureFunction logs the entry of a named function and returns a function that logs its exit along with
// the elapsed time.
func SLogMeasureFunction(ctx context.Context, functionName string, args ...any) func(args ...any) {
	var (
		then          = time.Now()
		measurementID = slogMeasureID.Add(1)
		allArgs       = append(args, slog.String("fn", functionName), slog.Int64("measurement_id", measurementID))
	)

	slog.DebugContext(ctx, "SLogMeasureFunction", append(allArgs, slog.String("state", "enter"))...)

	return func(args ...any) {
		exitArgs := append(allArgs, slog.Duration("elapsed", time.Since(then)), slog.String("state", "exit"))
		exitArgs = append(exitArgs, args...)

		slog.InfoContext(ctx, "SLogMeasureFunction", exitArgs...)
	}
}

func SLogError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{slog.String("err", err.Error())}, args...)
	slog.ErrorContext(ctx, msg, allArgs...)
}
