// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SyncRequest triggers reconciliation for one or all connected ad accounts
// Window defaults to the configured sync window (today). Only single-day windows
// are accepted since each sync fills one daily bucket per campaign.
type SyncRequest struct {
	AccountID    *uint  `json:"account_id,omitempty" validate:"omitempty,gt=0"`
	ForceRefresh bool   `json:"force_refresh"`
	Window       string `json:"window,omitempty" validate:"omitempty,oneof=today yesterday"`
}

// Sync run outcomes. Failed means nothing was stored or served from cache: the
// request was rejected or every account and campaign errored.
const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// SyncResponse reports counts and per-campaign errors; it is returned even when
// some or all campaigns failed
type SyncResponse struct {
	Status             string   `json:"status"`
	AccountsProcessed  int      `json:"accounts_processed"`
	AccountsFromCache  int      `json:"accounts_from_cache"`
	CampaignsProcessed int      `json:"campaigns_processed"`
	CampaignsUpdated   int      `json:"campaigns_updated"`
	Errors             []string `json:"errors"`
	DurationMS         int64    `json:"duration_ms"`
}
