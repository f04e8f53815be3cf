package tasks

import (
	"context"
)

// reconcileBatchSize bounds how many stale records one run touches
const reconcileBatchSize = 100

// ReconcilePendingPayments re-queries the gateway for PENDING payments past
// their expiry window. Whatever canonical status the gateway reports is
// applied through the same mapping as the webhook path; orders the gateway
// never saw are expired locally.
func ReconcilePendingPayments(ctx context.Context, deps *Deps, args map[string]interface{}) (map[string]interface{}, error) {
	limit := reconcileBatchSize
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	reconciled, err := deps.Payments.ReconcileStalePending(ctx, limit)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"reconciled": reconciled}, nil
}
