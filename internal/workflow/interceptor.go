package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/sqlsandbox/internal/sandbox"
)

// ErrorTypingInterceptor is a Temporal worker interceptor that gives activity
// errors a type: the sandbox failure kind when there is one, otherwise the
// activity name. Validation and NotFound failures are marked non-retryable.
type ErrorTypingInterceptor struct {
	interceptor.WorkerInterceptorBase
}

func (e *ErrorTypingInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &errorTypingActivityInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{},
		next:                           next,
	}
}

type errorTypingActivityInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	next interceptor.ActivityInboundInterceptor
}

func (e *errorTypingActivityInterceptor) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return e.next.Init(outbound)
}

func (e *errorTypingActivityInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (interface{}, error) {
	result, err := e.next.ExecuteActivity(ctx, in)
	if err != nil {
		return result, typedError(activity.GetInfo(ctx).ActivityType.Name, err)
	}
	return result, nil
}

func typedError(activityName string, err error) error {
	// Don't double-wrap errors that already have a type.
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return err
	}

	var sbErr *sandbox.Error
	if errors.As(err, &sbErr) {
		errType := "sandbox." + sbErr.Kind.String()
		if sbErr.Kind.Validation() || sbErr.Kind == sandbox.KindNotFound {
			return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
		}
		return temporal.NewApplicationErrorWithCause(err.Error(), errType, err)
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), activityName, err)
}
