package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// HandleError logs the error and sends it to Sentry. Values attached by goerr become extras and the failed service becomes a tag.
func HandleError(ctx context.Context, msg string, err error) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range goerr.Values(err) {
			scope.SetExtra(fmt.Sprintf("%v", k), v)
		}

		var opErr *types.ServiceOperationError
		if errors.As(err, &opErr) {
			scope.SetTag("service", opErr.Service.String())
			scope.SetTag("operation", opErr.Operation)
		}
		var credErr *types.CredentialsError
		if errors.As(err, &credErr) {
			scope.SetTag("service", credErr.Service.String())
		}
	})
	evID := hub.CaptureException(err)

	CtxLogger(ctx).Error(msg, ErrLog(err), "sentry.EventID", evID)
}
