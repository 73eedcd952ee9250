// Package dashboard collects the four provider sections for one request.
package dashboard

import (
	"context"
	"time"

	"github.com/yuxishi/service-status-dashboard/internal/logger"
	"github.com/yuxishi/service-status-dashboard/internal/metrics"
	"github.com/yuxishi/service-status-dashboard/internal/model"
	"github.com/yuxishi/service-status-dashboard/internal/provider"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const internalError = "internal error"

type BalanceSource interface {
	Fetch(ctx context.Context) model.BalanceInfo
}

type DatabaseSource interface {
	Fetch(ctx context.Context) model.DatabaseInfo
}

type QuotaSource interface {
	Fetch(ctx context.Context) model.QuotaInfo
}

type SystemSource interface {
	Fetch(ctx context.Context) model.SystemInfo
}

type Dashboard struct {
	balance  BalanceSource
	database DatabaseSource
	quota    QuotaSource
	system   SystemSource
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func New(balance BalanceSource, database DatabaseSource, quota QuotaSource, system SystemSource, m *metrics.Metrics, log *zap.Logger) *Dashboard {
	return &Dashboard{
		balance:  balance,
		database: database,
		quota:    quota,
		system:   system,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (d *Dashboard) Balance(ctx context.Context) model.BalanceInfo {
	return guard(ctx, d, "balance", d.balance.Fetch,
		func() model.BalanceInfo { return provider.BalanceFailure(internalError) },
		func(v model.BalanceInfo) model.Status { return v.Status })
}

func (d *Dashboard) Database(ctx context.Context) model.DatabaseInfo {
	return guard(ctx, d, "database", d.database.Fetch,
		func() model.DatabaseInfo { return provider.DatabaseFailure(internalError) },
		func(v model.DatabaseInfo) model.Status { return v.Status })
}

func (d *Dashboard) Quota(ctx context.Context) model.QuotaInfo {
	return guard(ctx, d, "quota", d.quota.Fetch,
		func() model.QuotaInfo { return provider.QuotaFailure(internalError) },
		func(v model.QuotaInfo) model.Status { return v.Status })
}

func (d *Dashboard) System(ctx context.Context) model.SystemInfo {
	return guard(ctx, d, "system", d.system.Fetch,
		func() model.SystemInfo { return provider.SystemFailure(internalError) },
		func(v model.SystemInfo) model.Status { return v.Status })
}

// Collect queries all four providers concurrently. None of the goroutines
// returns an error, so a failing provider never cancels the others.
func (d *Dashboard) Collect(ctx context.Context) model.AllServicesResponse {
	var resp model.AllServicesResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp.XMLRiver = d.Balance(gctx)
		return nil
	})
	g.Go(func() error {
		resp.Database = d.Database(gctx)
		return nil
	})
	g.Go(func() error {
		resp.DaData = d.Quota(gctx)
		return nil
	})
	g.Go(func() error {
		resp.System = d.System(gctx)
		return nil
	})
	_ = g.Wait()

	resp.FetchedAt = d.now()
	return resp
}

// guard times one provider call and turns a panic into the provider's
// failure record.
func guard[T any](ctx context.Context, d *Dashboard, name string, fetch func(context.Context) T, failure func() T, status func(T) model.Status) (out T) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx, d.log).Error("Provider panicked",
				zap.String("provider", name),
				zap.Any("panic", r))
			out = failure()
		}
		if d.metrics != nil {
			d.metrics.ObserveProvider(name, string(status(out)), time.Since(start))
		}
	}()

	return fetch(ctx)
}
