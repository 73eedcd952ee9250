package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/yuxishi/service-status-dashboard/internal/model"
	"go.uber.org/zap"
)

const (
	// pingMarker is what ClickHouse answers on GET / of its HTTP port.
	pingMarker = "Ok."

	connConnected  = "Connected"
	connUnexpected = "Unexpected response"

	dbUnreachable = "could not connect to database"
	dbUnexpected  = "unexpected server response"
)

// CompanyCounter runs the duplicate-company aggregate against the
// analytics store.
type CompanyCounter interface {
	CountDuplicateCompanies(ctx context.Context) (uint64, error)
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Timeout time.Duration
}

// DatabaseProvider checks that ClickHouse answers on its HTTP port and then
// reports the duplicate-company count. Reachability and the query are
// reported separately: a failed query leaves the count null but the status
// stays success.
type DatabaseProvider struct {
	pingURL string
	client  *http.Client
	counter CompanyCounter
	log     *zap.Logger
}

func NewDatabaseProvider(cfg DatabaseConfig, counter CompanyCounter, log *zap.Logger) *DatabaseProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &DatabaseProvider{
		pingURL: "http://" + net.JoinHostPort(cfg.Host, cfg.Port) + "/",
		client:  &http.Client{Timeout: cfg.Timeout},
		counter: counter,
		log:     log.Named("database"),
	}
}

func (p *DatabaseProvider) Name() string { return "database" }

func (p *DatabaseProvider) Fetch(ctx context.Context) model.DatabaseInfo {
	latency, err := p.ping(ctx)
	if err != nil {
		p.log.Error("Database health check failed", zap.String("reason", string(ReasonOf(err))), zap.Error(err))
		if ReasonOf(err) == ReasonUnexpectedResponse {
			return model.DatabaseInfo{
				ConnectionStatus: connUnexpected,
				ResponseTime:     FormatLatency(latency),
				Status:           model.StatusError,
				Error:            dbUnexpected,
			}
		}
		return DatabaseFailure(dbUnreachable)
	}

	info := model.DatabaseInfo{
		ConnectionStatus: connConnected,
		ResponseTime:     FormatLatency(latency),
		Status:           model.StatusSuccess,
	}

	count, err := p.count(ctx)
	if err != nil {
		p.log.Warn("Duplicate company query failed", zap.String("reason", string(ReasonOf(err))), zap.Error(err))
		return info
	}
	info.UniqueCompaniesCount = &count
	return info
}

// DatabaseFailure is the record for an unreachable database.
func DatabaseFailure(msg string) model.DatabaseInfo {
	return model.DatabaseInfo{
		ConnectionStatus: model.Placeholder,
		ResponseTime:     model.Placeholder,
		Status:           model.StatusError,
		Error:            msg,
	}
}

// ping returns the round trip of GET / whenever the server answered, so the
// caller can still show it for a wrong status or body.
func (p *DatabaseProvider) ping(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pingURL, nil)
	if err != nil {
		return 0, fail(ReasonNetwork, err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fail(ReasonNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	if err != nil {
		return 0, fail(ReasonNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return latency, fail(ReasonUnexpectedResponse, fmt.Errorf("health check returned %s", resp.Status))
	}
	if !bytes.Contains(body, []byte(pingMarker)) {
		return latency, fail(ReasonUnexpectedResponse, fmt.Errorf("body %q lacks %q", truncate(body, 64), pingMarker))
	}
	return latency, nil
}

func (p *DatabaseProvider) count(ctx context.Context) (uint64, error) {
	if p.counter == nil {
		return 0, fail(ReasonQueryFailure, errors.New("no analytics store configured"))
	}
	n, err := p.counter.CountDuplicateCompanies(ctx)
	if err != nil {
		return 0, fail(ReasonQueryFailure, err)
	}
	return n, nil
}

// FormatLatency renders a duration in milliseconds with two decimals.
func FormatLatency(d time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(d)/float64(time.Millisecond))
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
