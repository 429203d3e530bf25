// Package subscription keeps a Redis pub/sub subscription alive across
// connection drops.
package subscription

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ReconnectDelay is the pause between subscription attempts.
var ReconnectDelay = time.Second

// Listen subscribes to channel until ctx ends. onReady runs every time the
// subscription is (re)established, before any message of that session is
// delivered; onMessage runs for each payload. Both run on the caller's goroutine.
func Listen(
	ctx context.Context,
	rc *redis.Client,
	logger *log.Logger,
	channel string,
	onReady func(ctx context.Context),
	onMessage func(ctx context.Context, payload string),
) {
	for {
		sub := rc.Subscribe(ctx, channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).WithField("channel", channel).Error("subscribe failed, retrying")
			if !sleep(ctx, ReconnectDelay) {
				return
			}
			continue
		}
		if onReady != nil {
			onReady(ctx)
		}
		ch := sub.Channel()
	session:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break session
				}
				onMessage(ctx, msg.Payload)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.WithField("channel", channel).Error("pubsub channel closed, reconnecting")
		if !sleep(ctx, ReconnectDelay) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
