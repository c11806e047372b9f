package service

import (
	"context"
	"time"
)

// collectorShare is the part of the remaining request time a collector may
// use. The rest is left for fusion and persistence.
const collectorShare = 0.8

// collectorContext derives a context for one collector. Without a parent
// deadline it only inherits cancellation.
func collectorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	budget := time.Duration(float64(time.Until(deadline)) * collectorShare)
	return context.WithTimeout(ctx, budget)
}
