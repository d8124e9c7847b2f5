package tg

import (
	"context"
	"log/slog"
	"time"
)

const (
	pollTimeoutSeconds = 30
	pollRetryDelay     = 2 * time.Second
)

// Poll drops any webhook and long-polls until ctx is done, handing updates
// to handle one at a time in arrival order.
func (c *Client) Poll(ctx context.Context, log *slog.Logger, handle func(context.Context, Update)) error {
	if log == nil {
		log = slog.Default()
	}
	if err := c.DeleteWebhook(ctx, true); err != nil {
		log.Warn("deleteWebhook failed", "error", err)
	}
	log.Info("polling started")

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := c.GetUpdates(ctx, offset, pollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("polling error", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		if len(updates) > 0 {
			log.Debug("polling received updates", "count", len(updates))
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(ctx, upd)
		}
	}
}
