package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuxishi/service-status-dashboard/internal/dashboard"
	"github.com/yuxishi/service-status-dashboard/internal/metrics"
	"github.com/yuxishi/service-status-dashboard/internal/model"
	"github.com/yuxishi/service-status-dashboard/internal/provider"
	"go.uber.org/zap"
)

type stubSource struct {
	resp model.AllServicesResponse
}

func (s stubSource) Balance(context.Context) model.BalanceInfo   { return s.resp.XMLRiver }
func (s stubSource) Database(context.Context) model.DatabaseInfo { return s.resp.Database }
func (s stubSource) Quota(context.Context) model.QuotaInfo       { return s.resp.DaData }
func (s stubSource) System(context.Context) model.SystemInfo     { return s.resp.System }
func (s stubSource) Collect(context.Context) model.AllServicesResponse {
	return s.resp
}

func sample() model.AllServicesResponse {
	n := uint64(314)
	return model.AllServicesResponse{
		XMLRiver: model.BalanceInfo{Balance: "1000.00", CostPerRequest: "5", RowsAvailable: "20000", Status: model.StatusSuccess},
		Database: model.DatabaseInfo{ConnectionStatus: "Connected", ResponseTime: "3.20 ms", UniqueCompaniesCount: &n, Status: model.StatusSuccess},
		DaData: model.QuotaInfo{
			Accounts: []model.QuotaAccountInfo{{AccountName: "primary", Date: "2024-03-15", RemainingRequests: 9880}},
			Status:   model.StatusSuccess,
		},
		System:    provider.SystemFailure("could not collect system metrics"),
		FetchedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func router(t *testing.T, src Source, cfg RouterConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r, err := NewRouter(New(src), metrics.New(), zap.NewNop(), cfg)
	require.NoError(t, err)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSingleEndpoints(t *testing.T) {
	r := router(t, stubSource{resp: sample()}, RouterConfig{})

	t.Run("balance", func(t *testing.T) {
		w := get(r, "/api/balance")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"balance":"1000.00","cost_per_request":"5","rows_available":"20000","status":"success"}`, w.Body.String())
	})

	t.Run("database", func(t *testing.T) {
		w := get(r, "/api/database")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"connection_status":"Connected","response_time":"3.20 ms","unique_companies_count":314,"status":"success"}`, w.Body.String())
	})

	t.Run("dadata", func(t *testing.T) {
		w := get(r, "/api/dadata")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"accounts":[{"account_name":"primary","date":"2024-03-15","remaining_requests":9880}],"status":"success"}`, w.Body.String())
	})

	t.Run("system error still 200", func(t *testing.T) {
		w := get(r, "/api/system")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ram_percent":0,"disk_percent":0,"cpu_percent":0,"ram_used_gb":"Error","disk_used_gb":"Error","status":"error","error":"could not collect system metrics"}`, w.Body.String())
	})
}

func TestAllEndpoint(t *testing.T) {
	r := router(t, stubSource{resp: sample()}, RouterConfig{})

	w := get(r, "/api/all")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, key := range []string{"xmlriver", "database", "dadata", "system", "fetched_at"} {
		assert.Contains(t, body, key)
	}
}

func TestIndexRendersSections(t *testing.T) {
	r := router(t, stubSource{resp: sample()}, RouterConfig{})

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, page, "1000.00 RUB")
	assert.Contains(t, page, "Rows available: 20000")
	assert.Contains(t, page, "Response time: 3.20 ms")
	assert.Contains(t, page, `<div class="companies-number">314</div>`)
	assert.Contains(t, page, "primary")
	assert.Contains(t, page, "could not collect system metrics")
	assert.Contains(t, page, "2024-03-15 10:00:00")
}

func TestStaticAssets(t *testing.T) {
	r := router(t, stubSource{resp: sample()}, RouterConfig{})

	assert.Equal(t, http.StatusOK, get(r, "/static/js/main.js").Code)
	assert.Equal(t, http.StatusOK, get(r, "/static/css/style.css").Code)
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(r, "/metrics").Code)
}

func TestRateLimitSkipsOperationalRoutes(t *testing.T) {
	r := router(t, stubSource{resp: sample()}, RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, get(r, "/api/balance").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/all").Code)
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(r, "/metrics").Code)
}

// Three of the four upstreams are down; the combined endpoint still answers
// 200 with every section present.
func TestAllWithUpstreamsDown(t *testing.T) {
	log := zap.NewNop()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	balance := provider.NewBalanceProvider(provider.BalanceConfig{BaseURL: down.URL, Timeout: time.Second}, log)
	database := provider.NewDatabaseProvider(provider.DatabaseConfig{Host: "127.0.0.1", Port: "1", Timeout: time.Second}, nil, log)
	quota := provider.NewQuotaProvider(provider.QuotaConfig{
		BaseURL:  down.URL,
		Timeout:  time.Second,
		Accounts: []provider.QuotaAccount{{Name: "a", Token: "t", Secret: "s"}, {Name: "b"}},
	}, log)
	system := provider.NewSystemProvider(fixedSampler{}, log)

	d := dashboard.New(balance, database, quota, system, metrics.New(), log)
	r := router(t, d, RouterConfig{})

	w := get(r, "/api/all")
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.AllServicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, provider.BalanceFailure("could not reach API"), resp.XMLRiver)
	assert.Equal(t, provider.DatabaseFailure("could not connect to database"), resp.Database)
	assert.Equal(t, model.StatusSuccess, resp.DaData.Status)
	require.Len(t, resp.DaData.Accounts, 1)
	assert.Equal(t, int64(0), resp.DaData.Accounts[0].RemainingRequests)
	assert.Equal(t, model.StatusSuccess, resp.System.Status)
	assert.Equal(t, "2.00 GB", resp.System.RAMUsedGB)
}

type fixedSampler struct{}

func (fixedSampler) Sample(context.Context) (provider.HostSample, error) {
	return provider.HostSample{CPUPercent: 5, RAMPercent: 50, RAMUsedBytes: 2 << 30, DiskPercent: 10, DiskUsedBytes: 1 << 30}, nil
}
