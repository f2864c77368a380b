package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/adwatch/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFacebookClient(t *testing.T, handler http.HandlerFunc) (*FacebookClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewFacebookClient(config.FacebookConfig{
		BaseURL:    srv.URL,
		APIVersion: "v19.0",
		Timeout:    2 * time.Second,
		PageLimit:  50,
	})
	return client, srv
}

func writeGraphError(w http.ResponseWriter, status, code, subcode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message":       message,
			"type":          "OAuthException",
			"code":          code,
			"error_subcode": subcode,
			"fbtrace_id":    "trace",
		},
	})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func TestAccountIDCandidates(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   []string
	}{
		{name: "prefixed", stored: "act_123", want: []string{"act_123", "123"}},
		{name: "bare", stored: "123", want: []string{"123", "act_123"}},
		{name: "noisy", stored: " act-12 3 ", want: []string{"act-12 3", "act_act-12 3", "act_123"}},
		{name: "empty", stored: "  ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AccountIDCandidates(tt.stored)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 4)
		})
	}
}

func TestFacebookError_Classification(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		subcode int
		message string
		want    error
	}{
		{name: "expired token", code: 190, want: ErrFacebookInvalidToken},
		{name: "app throttled", code: 4, want: ErrFacebookRateLimited},
		{name: "user throttled", code: 17, want: ErrFacebookRateLimited},
		{name: "ads throttled", code: 80004, want: ErrFacebookRateLimited},
		{name: "permission", code: 10, want: ErrFacebookPermissionDenied},
		{name: "permission range", code: 272, want: ErrFacebookPermissionDenied},
		{name: "no activity subcode", code: 100, subcode: 33, want: ErrFacebookNoActivity},
		{name: "no activity message", code: 1, message: "No activity for this period", want: ErrFacebookNoActivity},
		{name: "unknown", code: 1, message: "boom", want: nil},
	}

	sentinels := []error{ErrFacebookInvalidToken, ErrFacebookRateLimited, ErrFacebookPermissionDenied, ErrFacebookNoActivity}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := &FacebookError{Code: tt.code, Subcode: tt.subcode, Message: tt.message, HTTPStatus: 400}
			if tt.want == nil {
				for _, s := range sentinels {
					assert.False(t, errors.Is(fe, s))
				}
				return
			}
			assert.ErrorIs(t, fe, tt.want)
		})
	}

	assert.True(t, (&FacebookError{Code: 17}).Retryable())
	assert.False(t, (&FacebookError{Code: 190, HTTPStatus: 400}).Retryable())
}

func TestFacebookClient_ListCampaigns_FollowsPaging(t *testing.T) {
	var srvURL string
	client, srv := newTestFacebookClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/act_1/campaigns", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		if r.URL.Query().Get("after") == "" {
			writeJSON(w, map[string]any{
				"data":   []map[string]any{{"id": "c1", "name": "One", "status": "ACTIVE", "daily_budget": "1000"}},
				"paging": map[string]any{"next": srvURL + "/v19.0/act_1/campaigns?after=cursor&access_token=tok"},
			})
			return
		}
		writeJSON(w, map[string]any{
			"data": []map[string]any{{"id": "c2", "name": "Two", "status": "PAUSED"}},
		})
	})
	srvURL = srv.URL

	campaigns, err := client.ListCampaigns(context.Background(), "tok", "act_1")
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "c1", campaigns[0].ID)
	assert.Equal(t, "c2", campaigns[1].ID)
	require.NotNil(t, ParseMinorUnits(campaigns[0].DailyBudget))
	assert.InDelta(t, 10.0, *ParseMinorUnits(campaigns[0].DailyBudget), 0.0001)
}

func TestFacebookClient_ListCampaignsWithFallback(t *testing.T) {
	t.Run("second format wins", func(t *testing.T) {
		var mu sync.Mutex
		var seen []string
		client, _ := newTestFacebookClient(t, func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			seen = append(seen, r.URL.Path)
			mu.Unlock()
			if r.URL.Path == "/v19.0/123/campaigns" {
				writeGraphError(w, 400, 100, 0, "Unsupported get request")
				return
			}
			writeJSON(w, map[string]any{"data": []map[string]any{{"id": "c1", "status": "ACTIVE"}}})
		})

		campaigns, err := client.ListCampaignsWithFallback(context.Background(), "tok", "123")
		require.NoError(t, err)
		require.Len(t, campaigns, 1)
		assert.Equal(t, []string{"/v19.0/123/campaigns", "/v19.0/act_123/campaigns"}, seen)
	})

	t.Run("all empty returns empty", func(t *testing.T) {
		client, _ := newTestFacebookClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"data": []any{}})
		})
		campaigns, err := client.ListCampaignsWithFallback(context.Background(), "tok", "act_9")
		require.NoError(t, err)
		assert.Empty(t, campaigns)
	})

	t.Run("all failing returns last error", func(t *testing.T) {
		client, _ := newTestFacebookClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeGraphError(w, 400, 10, 0, "permission")
		})
		_, err := client.ListCampaignsWithFallback(context.Background(), "tok", "act_9")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFacebookPermissionDenied)
	})

	t.Run("invalid token stops early", func(t *testing.T) {
		calls := 0
		client, _ := newTestFacebookClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeGraphError(w, 400, 190, 463, "Session has expired")
		})
		_, err := client.ListCampaignsWithFallback(context.Background(), "tok", "act_9")
		assert.ErrorIs(t, err, ErrFacebookInvalidToken)
		assert.Equal(t, 1, calls)

		var fe *FacebookError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 463, fe.Subcode)
	})
}

func TestFacebookClient_GetCampaignInsights(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantNil bool
		wantErr error
	}{
		{
			name: "meaningful row",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "last_7d", r.URL.Query().Get("date_preset"))
				assert.True(t, strings.Contains(r.URL.Query().Get("fields"), "cost_per_action_type"))
				writeJSON(w, map[string]any{"data": []map[string]any{{
					"impressions": "1000", "clicks": "25", "spend": "12.50", "ctr": "2.5",
					"actions": []map[string]any{{"action_type": "lead", "value": "3"}},
				}}})
			},
		},
		{
			name: "only one positive metric",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"data": []map[string]any{{"impressions": "1000", "clicks": "0", "spend": "0"}}})
			},
			wantNil: true,
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"data": []any{}})
			},
			wantNil: true,
		},
		{
			name: "no activity error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeGraphError(w, 400, 100, 33, "Object does not exist")
			},
			wantNil: true,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeGraphError(w, 400, 17, 0, "User request limit reached")
			},
			wantErr: ErrFacebookRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestFacebookClient(t, tt.handler)
			insights, err := client.GetCampaignInsights(context.Background(), "tok", "c1", InsightWindowLast7d)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, insights)
				return
			}
			require.NotNil(t, insights)
			assert.Equal(t, int64(1000), insights.ImpressionsCount())
			assert.Equal(t, int64(3), insights.ActionCount("lead"))
			assert.InDelta(t, 12.5, insights.SpendAmount(), 0.0001)
		})
	}

	client, _ := newTestFacebookClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.GetCampaignInsights(context.Background(), "tok", "c1", InsightWindow("lifetime"))
	assert.Error(t, err)
}

func TestFacebookClient_GetCampaignHourlyInsights(t *testing.T) {
	client, _ := newTestFacebookClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "today", r.URL.Query().Get("date_preset"))
		assert.Equal(t, "hourly_stats_aggregated_by_advertiser_time_zone", r.URL.Query().Get("breakdowns"))
		writeJSON(w, map[string]any{"data": []map[string]any{
			{"impressions": "300", "clicks": "6", "spend": "2.10", "date_start": "2024-03-04", "date_stop": "2024-03-04",
				"hourly_stats_aggregated_by_advertiser_time_zone": "09:00:00 - 09:59:59"},
			{"impressions": "5", "clicks": "0", "spend": "0", "date_start": "2024-03-04", "date_stop": "2024-03-04",
				"hourly_stats_aggregated_by_advertiser_time_zone": "10:00:00 - 10:59:59"},
			{"impressions": "400", "clicks": "9", "spend": "3.00", "date_start": "2024-03-04", "date_stop": "2024-03-04"},
		}})
	})

	rows, err := client.GetCampaignHourlyInsights(context.Background(), "tok", "c1", InsightWindowToday)
	require.NoError(t, err)
	require.Len(t, rows, 1, "quiet hours and rows without an hour are dropped")
	hour, ok := rows[0].Hour()
	assert.True(t, ok)
	assert.Equal(t, 9, hour)
	assert.Equal(t, int64(6), rows[0].ClicksCount())

	_, err = client.GetCampaignHourlyInsights(context.Background(), "tok", "c1", InsightWindowLast7d)
	assert.Error(t, err)
}

func TestInsightWindowSingleDay(t *testing.T) {
	assert.True(t, InsightWindowToday.SingleDay())
	assert.True(t, InsightWindowYesterday.SingleDay())
	assert.False(t, InsightWindowLast7d.SingleDay())
	assert.False(t, InsightWindowLast30d.SingleDay())

	assert.True(t, (&FacebookInsights{DateStart: "2024-03-04", DateStop: "2024-03-04"}).SingleDay())
	assert.False(t, (&FacebookInsights{DateStart: "2024-02-27", DateStop: "2024-03-04"}).SingleDay())
}

func TestFacebookClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewFacebookClient(config.FacebookConfig{BaseURL: srv.URL, APIVersion: "v19.0", Timeout: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.ListAdAccounts(ctx, "tok")
	assert.ErrorIs(t, err, ErrFacebookTransport)
}

func TestParseGraphTime(t *testing.T) {
	got := ParseGraphTime("2024-03-01T10:00:00+0200")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), *got)
	assert.Nil(t, ParseGraphTime(""))
	assert.Nil(t, ParseGraphTime("yesterday"))
}
