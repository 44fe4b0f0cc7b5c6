package subscription

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

type PollInput struct {
	// Since overrides the stored cursor for this scan only. The stored cursor
	// still never moves backwards.
	Since *uint64
	Limit int
}

type PollResult struct {
	SubscriptionID uint64              `json:"subscription_id"`
	Records        []models.DataRecord `json:"data"`
	Total          int                 `json:"total"`
	HasMore        bool                `json:"has_more"`
	Cursor         uint64              `json:"cursor"`
}

// Poll scans the ledger past the cursor, filters, and advances the cursor to the
// last scanned record, all under the subscription's row lock. Nothing is
// committed unless the whole step succeeds.
func (r *Registry) Poll(ctx context.Context, p auth.Principal, id uint64, in PollInput) (PollResult, error) {
	if _, err := r.Get(ctx, p, id); err != nil {
		return PollResult{}, err
	}
	limit := r.pageSize(in.Limit)

	var out PollResult
	err := r.repo.WithSubscriptionLock(ctx, id, func(tx repository.PollTx) error {
		sub := tx.Subscription()
		if sub == nil {
			return apperr.NotFound("subscription", id)
		}
		if !ownedBy(sub, p) {
			return apperr.Forbidden("not the owner of this subscription")
		}
		now := r.now()
		if !sub.Active || sub.Expired(now) {
			return apperr.Inactive("subscription", sub.ID)
		}
		filter, err := ParseFilter(sub.Filters)
		if err != nil {
			return apperr.Internal("decode subscription filter", err)
		}

		after := sub.Cursor
		if in.Since != nil {
			after = *in.Since
		}
		scanned, err := tx.ScanDataRecords(ctx, sub.StrategyID, after, limit+1)
		if err != nil {
			return apperr.Internal("scan ledger", err)
		}
		hasMore := len(scanned) > limit
		if hasMore {
			scanned = scanned[:limit]
		}

		records := make([]models.DataRecord, 0, len(scanned))
		for i := range scanned {
			if filter.Match(&scanned[i]) {
				records = append(records, scanned[i])
			}
		}

		next := sub.Cursor
		if n := len(scanned); n > 0 && scanned[n-1].ID > next {
			next = scanned[n-1].ID
		}
		ok, err := tx.AdvanceCursor(ctx, sub.Cursor, next, now)
		if err != nil {
			return apperr.Internal("advance cursor", err)
		}
		if !ok {
			return apperr.Conflict("subscription cursor moved concurrently; retry", map[string]any{"subscription_id": sub.ID})
		}

		out = PollResult{
			SubscriptionID: sub.ID,
			Records:        records,
			Total:          len(records),
			HasMore:        hasMore,
			Cursor:         next,
		}
		return nil
	})
	if errors.Is(err, repository.ErrLockNotAvailable) {
		return PollResult{}, apperr.Conflict("subscription is busy; retry", map[string]any{"subscription_id": id})
	}
	if err != nil {
		return PollResult{}, apperr.Internal("poll subscription", err)
	}
	r.log.Debug("subscription polled",
		zap.Uint64("subscription_id", out.SubscriptionID),
		zap.Int("total", out.Total),
		zap.Bool("has_more", out.HasMore),
		zap.Uint64("cursor", out.Cursor),
	)
	return out, nil
}

func (r *Registry) pageSize(limit int) int {
	if limit <= 0 {
		return r.opts.PageSize
	}
	if limit > r.opts.MaxPageSize {
		return r.opts.MaxPageSize
	}
	return limit
}
