package dashboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuxishi/service-status-dashboard/internal/metrics"
	"github.com/yuxishi/service-status-dashboard/internal/model"
	"go.uber.org/zap"
)

type balanceFunc func(context.Context) model.BalanceInfo

func (f balanceFunc) Fetch(ctx context.Context) model.BalanceInfo { return f(ctx) }

type databaseFunc func(context.Context) model.DatabaseInfo

func (f databaseFunc) Fetch(ctx context.Context) model.DatabaseInfo { return f(ctx) }

type quotaFunc func(context.Context) model.QuotaInfo

func (f quotaFunc) Fetch(ctx context.Context) model.QuotaInfo { return f(ctx) }

type systemFunc func(context.Context) model.SystemInfo

func (f systemFunc) Fetch(ctx context.Context) model.SystemInfo { return f(ctx) }

func okBalance(context.Context) model.BalanceInfo {
	return model.BalanceInfo{Balance: "1000.00", CostPerRequest: "5", RowsAvailable: "20000", Status: model.StatusSuccess}
}

func okDatabase(context.Context) model.DatabaseInfo {
	n := uint64(7)
	return model.DatabaseInfo{ConnectionStatus: "Connected", ResponseTime: "1.00 ms", UniqueCompaniesCount: &n, Status: model.StatusSuccess}
}

func okQuota(context.Context) model.QuotaInfo {
	return model.QuotaInfo{Accounts: []model.QuotaAccountInfo{{AccountName: "a", Date: "2024-01-01", RemainingRequests: 1}}, Status: model.StatusSuccess}
}

func okSystem(context.Context) model.SystemInfo {
	return model.SystemInfo{CPUPercent: 1, RAMUsedGB: "1.00 GB", DiskUsedGB: "2.00 GB", Status: model.StatusSuccess}
}

func TestCollectAllSucceed(t *testing.T) {
	m := metrics.New()
	d := New(balanceFunc(okBalance), databaseFunc(okDatabase), quotaFunc(okQuota), systemFunc(okSystem), m, zap.NewNop())
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	resp := d.Collect(context.Background())

	assert.Equal(t, okBalance(context.Background()), resp.XMLRiver)
	assert.Equal(t, model.StatusSuccess, resp.Database.Status)
	assert.Equal(t, okQuota(context.Background()), resp.DaData)
	assert.Equal(t, okSystem(context.Background()), resp.System)
	assert.Equal(t, fixed, resp.FetchedAt)
	count, err := testutil.GatherAndCount(m.Registry(), "provider_fetch_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCollectRunsProvidersConcurrently(t *testing.T) {
	var inFlight, peak int32
	track := func() func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return func() { atomic.AddInt32(&inFlight, -1) }
	}

	d := New(
		balanceFunc(func(ctx context.Context) model.BalanceInfo { defer track()(); return okBalance(ctx) }),
		databaseFunc(func(ctx context.Context) model.DatabaseInfo { defer track()(); return okDatabase(ctx) }),
		quotaFunc(func(ctx context.Context) model.QuotaInfo { defer track()(); return okQuota(ctx) }),
		systemFunc(func(ctx context.Context) model.SystemInfo { defer track()(); return okSystem(ctx) }),
		nil, zap.NewNop())

	d.Collect(context.Background())
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestCollectIsolatesFailures(t *testing.T) {
	m := metrics.New()
	d := New(
		balanceFunc(func(context.Context) model.BalanceInfo { panic("nil map") }),
		databaseFunc(func(context.Context) model.DatabaseInfo {
			return model.DatabaseInfo{ConnectionStatus: model.Placeholder, ResponseTime: model.Placeholder, Status: model.StatusError, Error: "could not connect to database"}
		}),
		quotaFunc(func(context.Context) model.QuotaInfo { panic("boom") }),
		systemFunc(okSystem),
		m, zap.NewNop())

	resp := d.Collect(context.Background())

	assert.Equal(t, model.StatusError, resp.XMLRiver.Status)
	assert.Equal(t, model.Placeholder, resp.XMLRiver.Balance)
	assert.Equal(t, model.StatusError, resp.Database.Status)
	assert.Equal(t, model.StatusError, resp.DaData.Status)
	require.NotNil(t, resp.DaData.Accounts)
	assert.Equal(t, model.StatusSuccess, resp.System.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches("balance", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches("system", "success")))
}

func TestSingleProviderMethods(t *testing.T) {
	d := New(balanceFunc(okBalance), databaseFunc(okDatabase), quotaFunc(okQuota), systemFunc(okSystem), nil, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, model.StatusSuccess, d.Balance(ctx).Status)
	assert.Equal(t, model.StatusSuccess, d.Database(ctx).Status)
	assert.Equal(t, model.StatusSuccess, d.Quota(ctx).Status)
	assert.Equal(t, model.StatusSuccess, d.System(ctx).Status)
}
