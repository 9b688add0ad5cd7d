package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/sethvargo/go-retry"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// withRetry runs fn until it succeeds, fails with a non-retryable error or the
// configured retries are spent. Only EngineUnavailable failures are retried.
func (a *Auditor) withRetry(ctx context.Context, fn func(context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !core.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt <= a.retryCfg.MaxRetries {
			a.logger.Debug("retrying engine query", "attempt", attempt, "error", err.Error())
		}
		return retry.RetryableError(err)
	})
	var ae *core.AuditError
	if err != nil && !errors.As(err, &ae) && ctx.Err() != nil {
		return core.NewError(core.Cancelled, "retry", err)
	}
	return err
}

// backoff doubles InitialBackoff per retry, capped at MaxBackoff when set.
func (a *Auditor) backoff() retry.Backoff {
	b := retry.NewExponential(a.retryCfg.InitialBackoff)
	if a.retryCfg.MaxBackoff > 0 {
		b = retry.WithCappedDuration(a.retryCfg.MaxBackoff, b)
	}
	return retry.WithMaxRetries(uint64(a.retryCfg.MaxRetries), b) //nolint:gosec // clamped in New
}

// query runs one engine query with retry.
func (a *Auditor) query(ctx context.Context, sql string, args ...any) (*core.Table, error) {
	var out *core.Table
	err := a.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.adapter.Query(ctx, sql, args...)
		return err
	})
	return out, err
}

// progress reports completed query tasks to the configured callback.
type progress struct {
	mu    sync.Mutex
	done  int
	total int
	fn    func(done, total int)
}

func (a *Auditor) newProgress(total int) *progress {
	return &progress{total: total, fn: a.progressFn}
}

func (p *progress) step() {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.fn(p.done, p.total)
}
