package utils

import (
	"context"

	"github.com/mmdatafocus/reconcile_backend/appctx"
)

var ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
