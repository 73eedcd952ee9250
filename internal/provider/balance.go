package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yuxishi/service-status-dashboard/internal/model"
	"go.uber.org/zap"
)

const (
	balanceUnreachable   = "could not reach API"
	balanceInvalidFormat = "invalid data format"

	// costDivisor turns the upstream price per 1000 requests into the
	// per-request figure shown on the dashboard.
	costDivisor = 10
)

type BalanceConfig struct {
	BaseURL string
	User    string
	Key     string
	Timeout time.Duration
}

// BalanceProvider reads the prepaid balance and the price per 1000
// requests from XMLRiver and derives how many rows can still be processed.
type BalanceProvider struct {
	cfg    BalanceConfig
	client *http.Client
	log    *zap.Logger
}

func NewBalanceProvider(cfg BalanceConfig, log *zap.Logger) *BalanceProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &BalanceProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Named("balance"),
	}
}

func (p *BalanceProvider) Name() string { return "balance" }

func (p *BalanceProvider) Fetch(ctx context.Context) model.BalanceInfo {
	info, err := p.fetch(ctx)
	if err == nil {
		return info
	}

	msg := balanceUnreachable
	if ReasonOf(err) == ReasonParse {
		msg = balanceInvalidFormat
	}
	p.log.Error("Balance lookup failed", zap.String("reason", string(ReasonOf(err))), zap.Error(err))
	return BalanceFailure(msg)
}

// BalanceFailure is the record shown when the balance cannot be computed.
func BalanceFailure(msg string) model.BalanceInfo {
	return model.BalanceInfo{
		Balance:        model.Placeholder,
		CostPerRequest: model.Placeholder,
		RowsAvailable:  model.Placeholder,
		Status:         model.StatusError,
		Error:          msg,
	}
}

func (p *BalanceProvider) fetch(ctx context.Context) (model.BalanceInfo, error) {
	balanceText, err := p.get(ctx, "/get_balance/yandex/")
	if err != nil {
		return model.BalanceInfo{}, err
	}
	costText, err := p.get(ctx, "/get_cost/yandex/")
	if err != nil {
		return model.BalanceInfo{}, err
	}

	balance, err := parseAmount(balanceText)
	if err != nil {
		return model.BalanceInfo{}, fail(ReasonParse, fmt.Errorf("balance: %w", err))
	}
	costPer1000, err := parseAmount(costText)
	if err != nil {
		return model.BalanceInfo{}, fail(ReasonParse, fmt.Errorf("cost: %w", err))
	}

	rows, perRequest, err := ComputeBalance(balance, costPer1000)
	if err != nil {
		return model.BalanceInfo{}, fail(ReasonParse, err)
	}

	return model.BalanceInfo{
		Balance:        strconv.FormatFloat(balance, 'f', 2, 64),
		CostPerRequest: strconv.FormatInt(perRequest, 10),
		RowsAvailable:  strconv.FormatInt(rows, 10),
		Status:         model.StatusSuccess,
	}, nil
}

// ComputeBalance returns the rows the balance still covers and the rounded
// per-request cost. Halves round to even.
func ComputeBalance(balance, costPer1000 float64) (rows int64, costPerRequest int64, err error) {
	if costPer1000 <= 0 {
		return 0, 0, fmt.Errorf("cost per 1000 must be positive, got %v", costPer1000)
	}
	r := math.Floor(balance / (costPer1000 / 1000))
	if math.IsInf(r, 0) || math.IsNaN(r) || math.Abs(r) > math.MaxInt64/2 {
		return 0, 0, fmt.Errorf("rows available out of range")
	}
	return int64(r), int64(math.RoundToEven(costPer1000 / costDivisor)), nil
}

func (p *BalanceProvider) get(ctx context.Context, path string) (string, error) {
	q := url.Values{}
	q.Set("user", p.cfg.User)
	q.Set("key", p.cfg.Key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.cfg.BaseURL, "/")+path+"?"+q.Encode(), nil)
	if err != nil {
		return "", fail(ReasonNetwork, err)
	}

	body, err := readBody(p.client, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}
