package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuxishi/service-status-dashboard/internal/model"
	"go.uber.org/zap"
)

const quotaFailed = "could not load quota statistics"

type QuotaAccount struct {
	Name   string
	Token  string
	Secret string
}

type QuotaConfig struct {
	BaseURL string
	// Service selects which counter of the "remaining" block is reported.
	Service  string
	Timeout  time.Duration
	Accounts []QuotaAccount
}

// QuotaProvider reports today's remaining DaData requests per account.
type QuotaProvider struct {
	baseURL  string
	service  string
	accounts []QuotaAccount
	client   *http.Client
	log      *zap.Logger
	now      func() time.Time
}

// NewQuotaProvider keeps only the accounts with both a token and a secret.
func NewQuotaProvider(cfg QuotaConfig, log *zap.Logger) *QuotaProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Service == "" {
		cfg.Service = "suggestions"
	}
	log = log.Named("quota")

	active := make([]QuotaAccount, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		switch {
		case acc.Token != "" && acc.Secret != "":
			active = append(active, acc)
		case acc.Token != "" || acc.Secret != "":
			log.Warn("Skipping account with incomplete credentials", zap.String("account", acc.Name))
		default:
			log.Debug("Skipping account without credentials", zap.String("account", acc.Name))
		}
	}

	return &QuotaProvider{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		service:  cfg.Service,
		accounts: active,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
		now:      time.Now,
	}
}

func (p *QuotaProvider) Name() string { return "quota" }

// Accounts returns the names of the accounts that will be queried.
func (p *QuotaProvider) Accounts() []string {
	names := make([]string, len(p.accounts))
	for i, acc := range p.accounts {
		names[i] = acc.Name
	}
	return names
}

// Fetch never aborts on a single account: a failed account is reported with
// zero remaining requests and today's date.
func (p *QuotaProvider) Fetch(ctx context.Context) (info model.QuotaInfo) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Quota lookup panicked", zap.Any("panic", r))
			info = QuotaFailure(quotaFailed)
		}
	}()

	today := p.now().Format("2006-01-02")
	accounts := make([]model.QuotaAccountInfo, 0, len(p.accounts))

	for _, acc := range p.accounts {
		stat, err := p.daily(ctx, acc, today)
		if err != nil {
			p.log.Warn("Quota lookup failed for account",
				zap.String("account", acc.Name),
				zap.String("reason", string(ReasonOf(err))),
				zap.Error(err))
			accounts = append(accounts, model.QuotaAccountInfo{
				AccountName: acc.Name,
				Date:        today,
			})
			continue
		}
		accounts = append(accounts, model.QuotaAccountInfo{
			AccountName:       acc.Name,
			Date:              stat.Date,
			RemainingRequests: stat.Remaining[p.service],
		})
	}

	return model.QuotaInfo{Accounts: accounts, Status: model.StatusSuccess}
}

func QuotaFailure(msg string) model.QuotaInfo {
	return model.QuotaInfo{
		Accounts: []model.QuotaAccountInfo{},
		Status:   model.StatusError,
		Error:    msg,
	}
}

type dailyStat struct {
	Date      string           `json:"date"`
	Services  map[string]int64 `json:"services"`
	Remaining map[string]int64 `json:"remaining"`
}

func (p *QuotaProvider) daily(ctx context.Context, acc QuotaAccount, date string) (dailyStat, error) {
	u := p.baseURL + "/stat/daily?" + url.Values{"date": {date}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return dailyStat{}, fail(ReasonNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+acc.Token)
	req.Header.Set("X-Secret", acc.Secret)

	body, err := readBody(p.client, req)
	if err != nil {
		return dailyStat{}, err
	}

	var stat dailyStat
	if err := json.Unmarshal(body, &stat); err != nil {
		return dailyStat{}, fail(ReasonParse, fmt.Errorf("decode daily stats: %w", err))
	}
	return stat, nil
}
