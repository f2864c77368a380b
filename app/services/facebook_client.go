package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/adwatch/config"
	"github.com/amirphl/adwatch/utils"
	"github.com/go-resty/resty/v2"
)

// Classified Graph API failures. *FacebookError unwraps to one of these when the
// code is recognised, so callers can branch with errors.Is.
var (
	ErrFacebookInvalidToken     = errors.New("facebook access token is invalid or expired")
	ErrFacebookRateLimited      = errors.New("facebook api rate limit reached")
	ErrFacebookPermissionDenied = errors.New("facebook permission denied")
	ErrFacebookNoActivity       = errors.New("facebook reported no activity")
	ErrFacebookTransport        = errors.New("facebook api unreachable")
)

const (
	maxGraphPages = 20

	campaignFields = "id,name,objective,status,effective_status,daily_budget,lifetime_budget,spend_cap,created_time,start_time,stop_time"
	adSetFields    = "id,name,status,effective_status,daily_budget,optimization_goal,campaign_id"
	adFields       = "id,name,status,effective_status,adset_id"
	accountFields  = "id,account_id,name,currency,account_status"
	insightFields  = "impressions,clicks,spend,reach,frequency,ctr,cpc,cpm,actions,cost_per_action_type,date_start,date_stop"

	hourlyBreakdown = "hourly_stats_aggregated_by_advertiser_time_zone"
)

// InsightWindow is a Graph API date_preset
type InsightWindow string

const (
	InsightWindowToday     InsightWindow = "today"
	InsightWindowYesterday InsightWindow = "yesterday"
	InsightWindowLast7d    InsightWindow = "last_7d"
	InsightWindowLast30d   InsightWindow = "last_30d"
)

// Valid checks if the window is one the gateway supports
func (w InsightWindow) Valid() bool {
	switch w {
	case InsightWindowToday, InsightWindowYesterday, InsightWindowLast7d, InsightWindowLast30d:
		return true
	default:
		return false
	}
}

// SingleDay reports whether the window covers exactly one calendar day, so its
// totals can be stored as a daily bucket
func (w InsightWindow) SingleDay() bool {
	return w == InsightWindowToday || w == InsightWindowYesterday
}

// FacebookError is the decoded Graph API error envelope
type FacebookError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	TraceID    string `json:"fbtrace_id"`
	HTTPStatus int    `json:"-"`
}

func (e *FacebookError) Error() string {
	return fmt.Sprintf("facebook api error (status=%d code=%d subcode=%d type=%s): %s",
		e.HTTPStatus, e.Code, e.Subcode, e.Type, e.Message)
}

// Unwrap exposes the classification sentinel, if any
func (e *FacebookError) Unwrap() error {
	return classifyFacebookError(e)
}

// Retryable reports whether the same call may succeed later
func (e *FacebookError) Retryable() bool {
	return errors.Is(e, ErrFacebookRateLimited) || e.HTTPStatus >= http.StatusInternalServerError
}

func classifyFacebookError(e *FacebookError) error {
	switch {
	case e.Code == 190:
		return ErrFacebookInvalidToken
	case e.Code == 4 || e.Code == 17 || e.Code == 32 || e.Code == 613 || (e.Code >= 80000 && e.Code <= 80014):
		return ErrFacebookRateLimited
	case e.Code == 10 || (e.Code >= 200 && e.Code <= 299):
		return ErrFacebookPermissionDenied
	case e.Code == 100 && (e.Subcode == 33 || e.Subcode == 1487534):
		return ErrFacebookNoActivity
	case strings.Contains(strings.ToLower(e.Message), "no activity"),
		strings.Contains(strings.ToLower(e.Message), "no data available"):
		return ErrFacebookNoActivity
	default:
		return nil
	}
}

type graphErrorEnvelope struct {
	Error *FacebookError `json:"error"`
}

type graphPaging struct {
	Next string `json:"next"`
}

type graphList[T any] struct {
	Data   []T          `json:"data"`
	Paging *graphPaging `json:"paging,omitempty"`
}

// FacebookAdAccount is an ad account visible to the token
type FacebookAdAccount struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	AccountStatus int    `json:"account_status"`
}

// FacebookCampaign is a campaign as returned by Graph. Budgets are strings in the
// account currency's minor unit.
type FacebookCampaign struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Objective       string `json:"objective"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	DailyBudget     string `json:"daily_budget,omitempty"`
	LifetimeBudget  string `json:"lifetime_budget,omitempty"`
	SpendCap        string `json:"spend_cap,omitempty"`
	CreatedTime     string `json:"created_time,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	StopTime        string `json:"stop_time,omitempty"`
}

// FacebookAdSet is an ad set under a campaign
type FacebookAdSet struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	EffectiveStatus  string `json:"effective_status"`
	DailyBudget      string `json:"daily_budget,omitempty"`
	OptimizationGoal string `json:"optimization_goal,omitempty"`
	CampaignID       string `json:"campaign_id"`
}

// FacebookAd is an ad under an ad set
type FacebookAd struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	AdSetID         string `json:"adset_id"`
}

// FacebookAction is one entry of the actions / cost_per_action_type lists
type FacebookAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// FacebookInsights is a campaign-level insight row. Graph encodes numbers as strings.
type FacebookInsights struct {
	Impressions       string           `json:"impressions"`
	Clicks            string           `json:"clicks"`
	Spend             string           `json:"spend"`
	Reach             string           `json:"reach"`
	Frequency         string           `json:"frequency"`
	CTR               string           `json:"ctr"`
	CPC               string           `json:"cpc"`
	CPM               string           `json:"cpm"`
	Actions           []FacebookAction `json:"actions,omitempty"`
	CostPerActionType []FacebookAction `json:"cost_per_action_type,omitempty"`
	DateStart         string           `json:"date_start"`
	DateStop          string           `json:"date_stop"`
	HourlyStats       string           `json:"hourly_stats_aggregated_by_advertiser_time_zone,omitempty"`
}

func (i *FacebookInsights) ImpressionsCount() int64 { return parseGraphInt(i.Impressions) }
func (i *FacebookInsights) ClicksCount() int64      { return parseGraphInt(i.Clicks) }
func (i *FacebookInsights) ReachCount() int64       { return parseGraphInt(i.Reach) }
func (i *FacebookInsights) SpendAmount() float64    { return parseGraphFloat(i.Spend) }
func (i *FacebookInsights) FrequencyValue() float64 { return parseGraphFloat(i.Frequency) }
func (i *FacebookInsights) CTRValue() float64       { return parseGraphFloat(i.CTR) }
func (i *FacebookInsights) CPCValue() float64       { return parseGraphFloat(i.CPC) }
func (i *FacebookInsights) CPMValue() float64       { return parseGraphFloat(i.CPM) }

// ActionCount returns the count reported for actionType, or 0 when absent
func (i *FacebookInsights) ActionCount(actionType string) int64 {
	for _, a := range i.Actions {
		if a.ActionType == actionType {
			return int64(parseGraphFloat(a.Value))
		}
	}
	return 0
}

// hasMeaningfulData accepts a row only when at least two of impressions, clicks
// and spend are positive. Rows failing this are treated as "no data".
func (i *FacebookInsights) hasMeaningfulData() bool {
	positive := 0
	if i.ImpressionsCount() > 0 {
		positive++
	}
	if i.ClicksCount() > 0 {
		positive++
	}
	if i.SpendAmount() > 0 {
		positive++
	}
	return positive >= 2
}

// SingleDay reports whether the row covers one calendar day
func (i *FacebookInsights) SingleDay() bool {
	return i.DateStart == "" || i.DateStop == "" || i.DateStart == i.DateStop
}

// Hour returns the hour of an hourly breakdown row ("13:00:00 - 13:59:59" -> 13)
func (i *FacebookInsights) Hour() (int, bool) {
	if len(i.HourlyStats) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(i.HourlyStats[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

func parseGraphInt(s string) int64 {
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return int64(parseGraphFloat(s))
}

func parseGraphFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseMinorUnits converts a Graph budget string (minor units) into currency units
func ParseMinorUnits(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	units := v / 100
	return &units
}

// ParseGraphTime parses the timestamp layout Graph uses (2024-01-31T10:00:00+0000)
func ParseGraphTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// FacebookGateway is the read-only ad platform API surface the pipeline needs
type FacebookGateway interface {
	ListAdAccounts(ctx context.Context, token string) ([]FacebookAdAccount, error)
	ListCampaigns(ctx context.Context, token, accountID string) ([]FacebookCampaign, error)
	ListCampaignsWithFallback(ctx context.Context, token, storedAccountID string) ([]FacebookCampaign, error)
	GetCampaignInsights(ctx context.Context, token, campaignID string, window InsightWindow) (*FacebookInsights, error)
	GetCampaignHourlyInsights(ctx context.Context, token, campaignID string, window InsightWindow) ([]FacebookInsights, error)
	ListAdSets(ctx context.Context, token, campaignID string) ([]FacebookAdSet, error)
	ListAds(ctx context.Context, token, adSetID string) ([]FacebookAd, error)
}

// FacebookClient implements FacebookGateway over the Graph REST API. It holds no
// per-call state and is safe for concurrent use.
type FacebookClient struct {
	client    *resty.Client
	pageLimit int
}

// NewFacebookClient creates a Graph API client from configuration
func NewFacebookClient(cfg config.FacebookConfig) *FacebookClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.APIVersion, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = 100
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return resp.StatusCode() >= http.StatusInternalServerError
		})

	return &FacebookClient{client: client, pageLimit: pageLimit}
}

// ListAdAccounts lists the ad accounts the token can read
func (c *FacebookClient) ListAdAccounts(ctx context.Context, token string) ([]FacebookAdAccount, error) {
	return getAllPages[FacebookAdAccount](ctx, c, token, "/me/adaccounts", map[string]string{
		"fields": accountFields,
	})
}

// ListCampaigns lists campaigns of an ad account addressed exactly as given
func (c *FacebookClient) ListCampaigns(ctx context.Context, token, accountID string) ([]FacebookCampaign, error) {
	return getAllPages[FacebookCampaign](ctx, c, token, "/"+accountID+"/campaigns", map[string]string{
		"fields": campaignFields,
	})
}

// ListCampaignsWithFallback tries each identifier format of the stored account id
// in order. The first non-empty listing wins. Token and throttling failures stop
// the walk because every other format would fail the same way.
func (c *FacebookClient) ListCampaignsWithFallback(ctx context.Context, token, storedAccountID string) ([]FacebookCampaign, error) {
	candidates := AccountIDCandidates(storedAccountID)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("empty facebook account id")
	}

	var lastErr error
	succeeded := false
	for _, candidate := range candidates {
		campaigns, err := c.ListCampaigns(ctx, token, candidate)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrFacebookInvalidToken) || errors.Is(err, ErrFacebookRateLimited) || ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		succeeded = true
		if len(campaigns) > 0 {
			return campaigns, nil
		}
	}

	if succeeded {
		return []FacebookCampaign{}, nil
	}
	return nil, lastErr
}

// accountIDFormat derives one candidate identifier from the stored value
type accountIDFormat func(stored string) string

var accountIDFormats = []accountIDFormat{
	func(stored string) string { return strings.TrimSpace(stored) },
	func(stored string) string { return utils.FacebookAccountPrefix + bareAccountID(stored) },
	func(stored string) string { return bareAccountID(stored) },
	func(stored string) string {
		if digits := utils.DigitsOnly(stored); digits != "" {
			return utils.FacebookAccountPrefix + digits
		}
		return ""
	},
}

func bareAccountID(stored string) string {
	return strings.TrimPrefix(strings.TrimSpace(stored), utils.FacebookAccountPrefix)
}

// AccountIDCandidates returns the distinct identifier formats to try, in order
func AccountIDCandidates(stored string) []string {
	if strings.TrimSpace(stored) == "" {
		return nil
	}
	seen := make(map[string]struct{}, len(accountIDFormats))
	out := make([]string, 0, len(accountIDFormats))
	for _, format := range accountIDFormats {
		candidate := format(stored)
		if candidate == "" || candidate == utils.FacebookAccountPrefix {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
		if len(out) == utils.MaxIdentifierVariants {
			break
		}
	}
	return out
}

// GetCampaignInsights returns the campaign's insight row for the window. It returns
// (nil, nil) when the platform reports no activity or the row carries no meaningful
// numbers; callers must not treat that as zero performance.
func (c *FacebookClient) GetCampaignInsights(ctx context.Context, token, campaignID string, window InsightWindow) (*FacebookInsights, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("unsupported insight window %q", window)
	}

	var out graphList[FacebookInsights]
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_token": token,
			"fields":       insightFields,
			"date_preset":  string(window),
			"level":        "campaign",
		}).
		SetResult(&out).
		SetError(&graphErrorEnvelope{}).
		Get("/" + campaignID + "/insights")
	if err := checkGraphResponse(resp, err); err != nil {
		if errors.Is(err, ErrFacebookNoActivity) {
			return nil, nil
		}
		return nil, err
	}

	if len(out.Data) == 0 {
		return nil, nil
	}
	row := out.Data[0]
	if !row.hasMeaningfulData() {
		return nil, nil
	}
	return &row, nil
}

// GetCampaignHourlyInsights returns one row per hour of a single-day window, in the
// ad account's time zone. Hours without meaningful numbers are left out.
func (c *FacebookClient) GetCampaignHourlyInsights(ctx context.Context, token, campaignID string, window InsightWindow) ([]FacebookInsights, error) {
	if !window.SingleDay() {
		return nil, fmt.Errorf("hourly insights need a single-day window, got %q", window)
	}

	rows, err := getAllPages[FacebookInsights](ctx, c, token, "/"+campaignID+"/insights", map[string]string{
		"fields":      insightFields,
		"date_preset": string(window),
		"level":       "campaign",
		"breakdowns":  hourlyBreakdown,
	})
	if err != nil {
		if errors.Is(err, ErrFacebookNoActivity) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]FacebookInsights, 0, len(rows))
	for _, row := range rows {
		if _, ok := row.Hour(); !ok || !row.hasMeaningfulData() {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// ListAdSets lists ad sets under a campaign
func (c *FacebookClient) ListAdSets(ctx context.Context, token, campaignID string) ([]FacebookAdSet, error) {
	return getAllPages[FacebookAdSet](ctx, c, token, "/"+campaignID+"/adsets", map[string]string{
		"fields": adSetFields,
	})
}

// ListAds lists ads under an ad set
func (c *FacebookClient) ListAds(ctx context.Context, token, adSetID string) ([]FacebookAd, error) {
	return getAllPages[FacebookAd](ctx, c, token, "/"+adSetID+"/ads", map[string]string{
		"fields": adFields,
	})
}

// getAllPages follows paging.next links until exhausted or maxGraphPages is reached
func getAllPages[T any](ctx context.Context, c *FacebookClient, token, path string, params map[string]string) ([]T, error) {
	query := map[string]string{
		"access_token": token,
		"limit":        strconv.Itoa(c.pageLimit),
	}
	for k, v := range params {
		query[k] = v
	}

	items := make([]T, 0)
	req := c.client.R().SetContext(ctx).SetQueryParams(query)
	url := path
	for page := 0; page < maxGraphPages && url != ""; page++ {
		var out graphList[T]
		resp, err := req.SetResult(&out).SetError(&graphErrorEnvelope{}).Get(url)
		if err := checkGraphResponse(resp, err); err != nil {
			return nil, err
		}
		items = append(items, out.Data...)

		url = ""
		if out.Paging != nil && out.Paging.Next != "" {
			// next links are absolute and already carry every query parameter
			url = out.Paging.Next
			req = c.client.R().SetContext(ctx)
		}
	}
	return items, nil
}

func checkGraphResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFacebookTransport, err)
	}
	if !resp.IsError() {
		return nil
	}

	if env, ok := resp.Error().(*graphErrorEnvelope); ok && env != nil && env.Error != nil {
		fe := env.Error
		fe.HTTPStatus = resp.StatusCode()
		return fe
	}
	return &FacebookError{
		HTTPStatus: resp.StatusCode(),
		Message:    strings.TrimSpace(string(resp.Body())),
	}
}
