package cronrunner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/config"
)

type SubscriptionExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

type KeyCleaner interface {
	CleanupExpiredKeys(ctx context.Context) (int64, error)
}

// RegisterMaintenance adds the subscription expiry sweep and expired API key cleanup.
func RegisterMaintenance(r *Runner, cfg config.CronConfig, subs SubscriptionExpirer, keys KeyCleaner) error {
	if subs != nil && cfg.SubscriptionExpiry != "" {
		if _, err := r.Add("subscription_expiry", cfg.SubscriptionExpiry, ExpireSubscriptionsJob(subs, r.logger)); err != nil {
			return fmt.Errorf("register subscription expiry: %w", err)
		}
	}
	if keys != nil && cfg.SessionCleanup != "" {
		if _, err := r.Add("session_cleanup", cfg.SessionCleanup, CleanupKeysJob(keys, r.logger)); err != nil {
			return fmt.Errorf("register session cleanup: %w", err)
		}
	}
	return nil
}

func ExpireSubscriptionsJob(subs SubscriptionExpirer, log *zap.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := subs.ExpireDue(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("subscriptions expired", zap.Int64("count", n))
		}
		return nil
	}
}

func CleanupKeysJob(keys KeyCleaner, log *zap.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := keys.CleanupExpiredKeys(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("expired api keys cleared", zap.Int64("count", n))
		}
		return nil
	}
}
