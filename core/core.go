// Package core orchestrates querypulse components behind the command layer:
// it owns the Service wiring and the execute functions that bridge commands
// to components and the output writer.
package core

import (
	"context"

	"github.com/querypulse/querypulse/cache"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/internal/outwriter"
	"github.com/querypulse/querypulse/poolplan"
)

// ExecuteAnalyze plan-analyzes one read-only query and writes the result.
func ExecuteAnalyze(ctx context.Context, svc *Service, cfg *contract.Config, query string) error {
	an, err := svc.Analyzer()
	if err != nil {
		return err
	}

	result, err := an.Analyze(ctx, query)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteAnalysis(result, cfg)
}

// ExecuteAdvise derives index suggestions for one table and writes them.
func ExecuteAdvise(ctx context.Context, svc *Service, cfg *contract.Config, table string) error {
	adv, err := svc.Advisor()
	if err != nil {
		return err
	}

	suggestions, err := adv.Suggest(ctx, table)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteSuggestions(table, suggestions, cfg)
}

// ExecutePool snapshots pool counters, derives a sizing recommendation and
// writes both.
func ExecutePool(_ context.Context, svc *Service, cfg *contract.Config) error {
	collector, err := svc.Collector()
	if err != nil {
		return err
	}

	metrics := collector.Snapshot()
	rec := poolplan.Plan(metrics)
	return outwriter.NewOutWriter().WritePool(metrics, rec, cfg)
}

// ExecuteCacheStatus reports status for both tier stores.
func ExecuteCacheStatus(ctx context.Context, svc *Service, cfg *contract.Config) error {
	hot, warm, err := svc.TierStatus(ctx)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteCacheStatus(hot, warm, cfg)
}

// ExecuteCacheInvalidate deletes keys matching pattern from both tiers,
// cascading through registered dependencies when requested.
func ExecuteCacheInvalidate(ctx context.Context, svc *Service, _ *contract.Config, pattern string, cascade bool) error {
	return svc.Manager().Invalidate(ctx, pattern, cache.InvalidateOptions{Cascade: cascade})
}

// ExecuteCacheClear removes every entry from both tiers without cascading.
func ExecuteCacheClear(ctx context.Context, svc *Service, _ *contract.Config) error {
	return svc.Manager().Invalidate(ctx, "*", cache.InvalidateOptions{})
}

// ExecuteMetricsStatus reports status for the durable metrics store.
func ExecuteMetricsStatus(ctx context.Context, svc *Service, cfg *contract.Config) error {
	store, err := svc.Metrics()
	if err != nil {
		return err
	}

	status, err := store.Status(ctx)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteMetricsStatus(status, cfg)
}

// ExecuteMetricsList writes tracked query metrics, most expensive first.
func ExecuteMetricsList(ctx context.Context, svc *Service, cfg *contract.Config) error {
	store, err := svc.Metrics()
	if err != nil {
		return err
	}

	metrics, err := store.List(ctx, cfg.ResultLimit)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteMetrics(metrics, cfg)
}
