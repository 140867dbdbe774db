package aws

import (
	"context"
	"time"

	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/smithy-go/middleware"

	"github.com/nicholasgasior/snapprof/internal/logging"
)

// callLogID is the middleware ID registered on every client stack.
const callLogID = "SnapprofCallLog"

// WithCallLogging returns an APIOptions entry that records every SDK
// operation (including its retries) to logger. Append it to
// aws.Config.APIOptions before constructing clients.
func WithCallLogging(logger logging.Logger) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Initialize.Add(callLogMiddleware(logger), middleware.After)
	}
}

func callLogMiddleware(logger logging.Logger) middleware.InitializeMiddleware {
	return middleware.InitializeMiddlewareFunc(callLogID, func(
		ctx context.Context, in middleware.InitializeInput, next middleware.InitializeHandler,
	) (middleware.InitializeOutput, middleware.Metadata, error) {
		start := time.Now()
		out, md, err := next.HandleInitialize(ctx, in)
		logger.Log(awsmiddleware.GetServiceID(ctx), awsmiddleware.GetOperationName(ctx), time.Since(start), err)
		return out, md, err
	})
}
