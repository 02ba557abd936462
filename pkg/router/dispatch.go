package router

import (
	"context"
	"fmt"
	"time"

	"github.com/zen-systems/cepho/pkg/adapter"
	"go.uber.org/zap"
)

func (r *Router) dispatch(ctx context.Context, providers []string, prompt string) (*adapter.Response, []adapter.CallReport, error) {
	var reports []adapter.CallReport
	var lastErr error

	for idx, id := range providers {
		profile, ok := r.registry.Get(id)
		if !ok {
			lastErr = fmt.Errorf("%w: %s", ErrUnknownProvider, id)
			reports = append(reports, adapter.CallReport{Provider: id, FallbackUsed: idx > 0, Error: lastErr.Error()})
			continue
		}
		adapterImpl, ok := r.adapters[profile.Adapter]
		if !ok || adapterImpl == nil {
			lastErr = fmt.Errorf("adapter %s not available for provider %s", profile.Adapter, id)
			reports = append(reports, adapter.CallReport{Provider: id, Adapter: profile.Adapter, FallbackUsed: idx > 0, Error: lastErr.Error()})
			continue
		}
		model := r.resolveModel(profile.Model)

		for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
			resp, err := adapterImpl.Generate(ctx, model, prompt)
			if err == nil {
				report := adapter.CallReport{
					Provider:     id,
					Adapter:      profile.Adapter,
					Model:        model,
					Retries:      attempt,
					FallbackUsed: idx > 0,
				}
				if resp.Usage != nil {
					report.Usage = *resp.Usage
				}
				reports = append(reports, report)
				return resp, reports, nil
			}

			lastErr = err
			if !adapter.IsTransient(err) || attempt == r.retry.MaxRetries {
				reports = append(reports, adapter.CallReport{
					Provider:     id,
					Adapter:      profile.Adapter,
					Model:        model,
					Retries:      attempt,
					FallbackUsed: idx > 0,
					Status:       adapter.StatusOf(err),
					Error:        err.Error(),
				})
				if adapter.IsCredentialError(err) {
					r.logger.Warn("provider rejected its credential",
						zap.String("provider", id),
						zap.String("adapter", profile.Adapter),
						zap.Int("status", adapter.StatusOf(err)))
				}
				break
			}

			backoff := computeBackoff(r.retry.BaseBackoffMs, r.retry.MaxBackoffMs, attempt)
			r.logger.Warn("transient provider error, retrying",
				zap.String("provider", id),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, reports, err
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider call failed")
	}
	return nil, reports, lastErr
}

func totalUsage(reports []adapter.CallReport) adapter.Usage {
	var total adapter.Usage
	for _, report := range reports {
		if report.Error != "" {
			continue
		}
		total.PromptTokens += report.Usage.PromptTokens
		total.CompletionTokens += report.Usage.CompletionTokens
		total.TotalTokens += report.Usage.TotalTokens
	}
	return total
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	limit := time.Duration(maxMs) * time.Millisecond
	backoff := time.Duration(baseMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	if backoff > limit {
		return limit
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
