package core

import (
	"context"
	"time"

	"github.com/hma-data/mba-ingest/pkg/logx"
)

// ApplyDelay applies a delay to the execution of the current context.
func ApplyDelay(ctx context.Context, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop() // Ensure the timer is stopped to release resources

		select {
		case <-timer.C:
			// proceed after delay
		case <-ctx.Done():
			logx.As().Warn().Msg("context cancelled during delay")
		}
	}
}
