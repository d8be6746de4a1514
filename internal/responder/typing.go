package responder

import (
	"context"
	"sync"
	"time"
)

// startTyping shows the typing indicator immediately and keeps it alive
// on a fixed interval until the returned stop function is called. stop
// cancels the keepalive and waits for its goroutine to exit, so no
// indicator is refreshed after the reply (or error) has been sent.
// Indicator failures are logged and otherwise ignored.
func (r *Responder) startTyping(ctx context.Context, channelID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.gateway.TriggerTyping(ctx, channelID); err != nil {
			r.logger.Debug("typing indicator failed", "channel_id", channelID, "error", err)
		}

		ticker := time.NewTicker(r.typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.gateway.TriggerTyping(ctx, channelID); err != nil {
					r.logger.Debug("typing indicator failed", "channel_id", channelID, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
