package auth

import (
	"context"
	"errors"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
)

// Janitor purges stored tokens that no longer verify.
type Janitor struct {
	store    Store
	secret   string
	interval time.Duration
	logger   *logging.Logger
}

// NewJanitor creates a janitor that runs every interval.
func NewJanitor(store Store, secret string, interval time.Duration, logger *logging.Logger) *Janitor {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Janitor{
		store:    store,
		secret:   secret,
		interval: interval,
		logger:   logger.With("component", "token-janitor"),
	}
}

// Sweep deletes every stored token that fails verification and returns
// the number removed.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	tokens, err := j.store.ListTokens(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, t := range tokens {
		if _, err := ParseToken(t, j.secret); errors.Is(err, ErrTokenInvalid) {
			stale = append(stale, t)
		}
	}
	return j.store.DeleteTokens(ctx, stale)
}

// Run sweeps every interval until ctx ends.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.Sweep(ctx)
			if err != nil {
				j.logger.Error("token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Info("expired tokens removed", "count", n)
			}
		}
	}
}
