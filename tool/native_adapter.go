package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NativeFunc is an in-process tool implementation.
type NativeFunc func(ctx context.Context, args Args) (any, error)

// NativeAdapter wraps a Go function with the same boundary guarantees as
// HTTPAdapter: errors and panics become a failure Result.
type NativeAdapter struct {
	schema         Schema
	fn             NativeFunc
	failureMessage string
	logger         *slog.Logger
}

// NewNativeAdapter wraps fn as an adapter.
func NewNativeAdapter(schema Schema, failureMessage string, fn NativeFunc, logger *slog.Logger) *NativeAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeAdapter{
		schema:         schema,
		fn:             fn,
		failureMessage: failureMessage,
		logger:         logger,
	}
}

// Schema returns the tool schema.
func (a *NativeAdapter) Schema() Schema {
	return a.schema
}

// Invoke runs the function in-process.
func (a *NativeAdapter) Invoke(ctx context.Context, inv Invocation) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = a.fail(ctx, inv, start, fmt.Errorf("panic: %v", r))
		}
	}()

	if a.fn == nil {
		return a.fail(ctx, inv, start, fmt.Errorf("native tool %q has no implementation", a.schema.Name))
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	value, err := a.fn(ctx, inv.Args)
	if err != nil {
		return a.fail(ctx, inv, start, err)
	}
	emitInvokeObservation(InvokeObservation{
		ToolName:   a.schema.Name,
		RequestID:  inv.RequestID,
		DurationMS: elapsedMS(start),
		Success:    true,
	})
	return Success(value)
}

func (a *NativeAdapter) fail(ctx context.Context, inv Invocation, start time.Time, err error) Result {
	kind := FaultKindOf(err)
	if kind == "" {
		kind = FaultInvalidRequest
	}
	a.logger.ErrorContext(ctx, "tool invocation failed",
		"tool", a.schema.Name,
		"request_id", inv.RequestID,
		"fault", string(kind),
		"error", err,
	)
	emitInvokeObservation(InvokeObservation{
		ToolName:   a.schema.Name,
		RequestID:  inv.RequestID,
		DurationMS: elapsedMS(start),
		FaultKind:  kind,
	})
	return Failure(a.failureMessage)
}

var _ Adapter = (*NativeAdapter)(nil)
