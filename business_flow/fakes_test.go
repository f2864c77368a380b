package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var discardLogger = log.New(io.Discard, "", 0)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// gatewayMock is a testify mock of the ad platform gateway
type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) ListAdAccounts(ctx context.Context, token string) ([]services.FacebookAdAccount, error) {
	args := m.Called(ctx, token)
	out, _ := args.Get(0).([]services.FacebookAdAccount)
	return out, args.Error(1)
}

func (m *gatewayMock) ListCampaigns(ctx context.Context, token, accountID string) ([]services.FacebookCampaign, error) {
	args := m.Called(ctx, token, accountID)
	out, _ := args.Get(0).([]services.FacebookCampaign)
	return out, args.Error(1)
}

func (m *gatewayMock) ListCampaignsWithFallback(ctx context.Context, token, accountID string) ([]services.FacebookCampaign, error) {
	args := m.Called(ctx, token, accountID)
	out, _ := args.Get(0).([]services.FacebookCampaign)
	return out, args.Error(1)
}

func (m *gatewayMock) GetCampaignInsights(ctx context.Context, token, campaignID string, window services.InsightWindow) (*services.FacebookInsights, error) {
	args := m.Called(ctx, token, campaignID, window)
	out, _ := args.Get(0).(*services.FacebookInsights)
	return out, args.Error(1)
}

func (m *gatewayMock) GetCampaignHourlyInsights(ctx context.Context, token, campaignID string, window services.InsightWindow) ([]services.FacebookInsights, error) {
	args := m.Called(ctx, token, campaignID, window)
	out, _ := args.Get(0).([]services.FacebookInsights)
	return out, args.Error(1)
}

func (m *gatewayMock) ListAdSets(ctx context.Context, token, campaignID string) ([]services.FacebookAdSet, error) {
	args := m.Called(ctx, token, campaignID)
	out, _ := args.Get(0).([]services.FacebookAdSet)
	return out, args.Error(1)
}

func (m *gatewayMock) ListAds(ctx context.Context, token, adSetID string) ([]services.FacebookAd, error) {
	args := m.Called(ctx, token, adSetID)
	out, _ := args.Get(0).([]services.FacebookAd)
	return out, args.Error(1)
}

var errNotSupported = errors.New("not supported by fake")

// fakeAccountRepo keeps ad accounts in memory
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*models.FacebookAccount
	synced   map[uint]time.Time
}

func newFakeAccountRepo(accounts ...*models.FacebookAccount) *fakeAccountRepo {
	return &fakeAccountRepo{accounts: accounts, synced: map[uint]time.Time{}}
}

func (r *fakeAccountRepo) ByID(_ context.Context, id uint) (*models.FacebookAccount, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ByFilter(_ context.Context, f models.FacebookAccountFilter, _ string, _, _ int) ([]*models.FacebookAccount, error) {
	out := make([]*models.FacebookAccount, 0)
	for _, a := range r.accounts {
		if f.ID != nil && a.ID != *f.ID {
			continue
		}
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		if f.IsActive != nil && (a.IsActive != nil && *a.IsActive) != *f.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAccountRepo) Save(context.Context, *models.FacebookAccount) error        { return errNotSupported }
func (r *fakeAccountRepo) SaveBatch(context.Context, []*models.FacebookAccount) error { return errNotSupported }
func (r *fakeAccountRepo) Count(context.Context, models.FacebookAccountFilter) (int64, error) {
	return int64(len(r.accounts)), nil
}
func (r *fakeAccountRepo) Exists(context.Context, models.FacebookAccountFilter) (bool, error) {
	return len(r.accounts) > 0, nil
}

func (r *fakeAccountRepo) ListActiveByUser(ctx context.Context, userID uint) ([]*models.FacebookAccount, error) {
	active := true
	return r.ByFilter(ctx, models.FacebookAccountFilter{UserID: &userID, IsActive: &active}, "", 0, 0)
}

func (r *fakeAccountRepo) MarkSynced(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced[id] = at
	return nil
}

// fakeSnapshotRepo keeps snapshots in memory with the same latest-row swap as the database
type fakeSnapshotRepo struct {
	mu        sync.Mutex
	rows      []*models.MetricSnapshot
	nextID    uint
	upsertErr error
}

func newFakeSnapshotRepo() *fakeSnapshotRepo { return &fakeSnapshotRepo{nextID: 1} }

func (r *fakeSnapshotRepo) ByID(_ context.Context, id uint) (*models.MetricSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSnapshotRepo) ByFilter(_ context.Context, f models.MetricSnapshotFilter, _ string, _, _ int) ([]*models.MetricSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.MetricSnapshot, 0)
	for _, s := range r.rows {
		if f.CampaignID != nil && s.CampaignID != *f.CampaignID {
			continue
		}
		if f.DateFrom != nil && s.MetricDate.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && s.MetricDate.After(*f.DateTo) {
			continue
		}
		if f.Hourly != nil && s.IsHourly() != *f.Hourly {
			continue
		}
		if f.IsLatest != nil && s.IsLatest != *f.IsLatest {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSnapshotRepo) Save(_ context.Context, s *models.MetricSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.nextID
	r.nextID++
	r.rows = append(r.rows, s)
	return nil
}

func (r *fakeSnapshotRepo) SaveBatch(ctx context.Context, rows []*models.MetricSnapshot) error {
	for _, s := range rows {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSnapshotRepo) Count(ctx context.Context, f models.MetricSnapshotFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeSnapshotRepo) Exists(ctx context.Context, f models.MetricSnapshotFilter) (bool, error) {
	c, _ := r.Count(ctx, f)
	return c > 0, nil
}

func sameHour(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *fakeSnapshotRepo) UpsertLatest(_ context.Context, snapshot *models.MetricSnapshot) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.CampaignID == snapshot.CampaignID {
			s.IsLatest = false
		}
	}
	snapshot.IsLatest = true
	for i, s := range r.rows {
		if s.CampaignID == snapshot.CampaignID && s.MetricDate.Equal(snapshot.MetricDate) && sameHour(s.MetricHour, snapshot.MetricHour) {
			snapshot.ID = s.ID
			r.rows[i] = snapshot
			return nil
		}
	}
	snapshot.ID = r.nextID
	r.nextID++
	r.rows = append(r.rows, snapshot)
	return nil
}

func (r *fakeSnapshotRepo) UpsertBucket(_ context.Context, snapshot *models.MetricSnapshot) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot.IsLatest = false
	for i, s := range r.rows {
		if s.CampaignID == snapshot.CampaignID && s.MetricDate.Equal(snapshot.MetricDate) && sameHour(s.MetricHour, snapshot.MetricHour) {
			snapshot.ID = s.ID
			r.rows[i] = snapshot
			return nil
		}
	}
	snapshot.ID = r.nextID
	r.nextID++
	r.rows = append(r.rows, snapshot)
	return nil
}

func (r *fakeSnapshotRepo) Latest(_ context.Context, campaignID uint) (*models.MetricSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.CampaignID == campaignID && s.IsLatest {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSnapshotRepo) LatestCapturedAt(_ context.Context, ids []uint) (map[uint]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]time.Time)
	for _, id := range ids {
		for _, s := range r.rows {
			if s.CampaignID == id && s.IsLatest {
				out[id] = s.CapturedAt
			}
		}
	}
	return out, nil
}

// fakeCampaignRepo keeps campaigns in memory keyed like the database upsert
type fakeCampaignRepo struct {
	mu        sync.Mutex
	rows      []*models.Campaign
	nextID    uint
	snapshots *fakeSnapshotRepo
	accounts  *fakeAccountRepo
	listErr   error
}

func newFakeCampaignRepo(snapshots *fakeSnapshotRepo, accounts *fakeAccountRepo) *fakeCampaignRepo {
	return &fakeCampaignRepo{nextID: 1, snapshots: snapshots, accounts: accounts}
}

func (r *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, f models.CampaignFilter, _ string, _, _ int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Campaign, 0)
	for _, c := range r.rows {
		if f.UserID != nil && c.UserID != *f.UserID {
			continue
		}
		if f.FacebookAccountID != nil && c.FacebookAccountID != *f.FacebookAccountID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	return r.Upsert(ctx, c)
}

func (r *fakeCampaignRepo) SaveBatch(ctx context.Context, rows []*models.Campaign) error {
	for _, c := range rows {
		if err := r.Upsert(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, f models.CampaignFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeCampaignRepo) Exists(ctx context.Context, f models.CampaignFilter) (bool, error) {
	c, _ := r.Count(ctx, f)
	return c > 0, nil
}

func (r *fakeCampaignRepo) Upsert(_ context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rows {
		if existing.FacebookAccountID == c.FacebookAccountID && existing.FacebookCampaignID == c.FacebookCampaignID {
			c.ID = existing.ID
			c.UUID = existing.UUID
			r.rows[i] = c
			return nil
		}
	}
	c.ID = r.nextID
	c.UUID = uuid.New()
	r.nextID++
	r.rows = append(r.rows, c)
	return nil
}

func (r *fakeCampaignRepo) ByUserAndID(ctx context.Context, userID, campaignID uint) (*models.Campaign, error) {
	c, _ := r.ByID(ctx, campaignID)
	if c == nil || c.UserID != userID {
		return nil, nil
	}
	if r.accounts != nil {
		c.Account, _ = r.accounts.ByID(ctx, c.FacebookAccountID)
	}
	return c, nil
}

func (r *fakeCampaignRepo) ListWithLatestSnapshot(ctx context.Context, userID uint, statuses []models.CampaignStatus) ([]*models.Campaign, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	rows, _ := r.ByFilter(ctx, models.CampaignFilter{UserID: &userID}, "", 0, 0)
	out := make([]*models.Campaign, 0, len(rows))
	for _, c := range rows {
		keep := false
		for _, s := range statuses {
			if c.Status == s {
				keep = true
			}
		}
		if !keep {
			continue
		}
		if r.snapshots != nil {
			c.LatestSnapshot, _ = r.snapshots.Latest(ctx, c.ID)
		}
		out = append(out, c)
	}
	return out, nil
}

// fakeThresholdRepo returns the stored threshold or nil
type fakeThresholdRepo struct {
	byUser map[uint]*models.AlertThreshold
}

func (r *fakeThresholdRepo) ByUserID(_ context.Context, userID uint) (*models.AlertThreshold, error) {
	return r.byUser[userID], nil
}

func (r *fakeThresholdRepo) Save(_ context.Context, t *models.AlertThreshold) error {
	if r.byUser == nil {
		r.byUser = map[uint]*models.AlertThreshold{}
	}
	r.byUser[t.UserID] = t
	return nil
}

// fakeAlertRepo applies the supersede rule in memory
type fakeAlertRepo struct {
	mu     sync.Mutex
	rows   []*models.Alert
	nextID uint
}

func newFakeAlertRepo() *fakeAlertRepo { return &fakeAlertRepo{nextID: 1} }

func (r *fakeAlertRepo) match(a *models.Alert, f models.AlertFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID:
		return false
	case f.UserID != nil && a.UserID != *f.UserID:
		return false
	case f.CampaignID != nil && a.CampaignID != *f.CampaignID:
		return false
	case f.AlertType != nil && a.AlertType != *f.AlertType:
		return false
	case f.IsResolved != nil && a.IsResolved != *f.IsResolved:
		return false
	}
	return true
}

func (r *fakeAlertRepo) ByID(_ context.Context, id uint) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAlertRepo) ByFilter(_ context.Context, f models.AlertFilter, _ string, limit, offset int) ([]*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Alert, 0)
	for _, a := range r.rows {
		if r.match(a, f) {
			out = append(out, a)
		}
	}
	if offset >= len(out) {
		return []*models.Alert{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAlertRepo) Save(ctx context.Context, a *models.Alert) error {
	return r.SupersedeBatch(ctx, []*models.Alert{a})
}

func (r *fakeAlertRepo) SaveBatch(ctx context.Context, rows []*models.Alert) error {
	return r.SupersedeBatch(ctx, rows)
}

func (r *fakeAlertRepo) Count(ctx context.Context, f models.AlertFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeAlertRepo) Exists(ctx context.Context, f models.AlertFilter) (bool, error) {
	c, _ := r.Count(ctx, f)
	return c > 0, nil
}

func (r *fakeAlertRepo) SupersedeBatch(_ context.Context, alerts []*models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range alerts {
		found := false
		for _, existing := range r.rows {
			if existing.CampaignID == a.CampaignID && existing.AlertType == a.AlertType && !existing.IsResolved {
				a.ID = existing.ID
				a.UUID = existing.UUID
				a.CreatedAt = existing.CreatedAt
				a.OccurrenceCount = existing.OccurrenceCount + 1
				*existing = *a
				found = true
				break
			}
		}
		if found {
			continue
		}
		a.ID = r.nextID
		a.UUID = uuid.New()
		r.nextID++
		stored := *a
		r.rows = append(r.rows, &stored)
	}
	return nil
}

func (r *fakeAlertRepo) Close(_ context.Context, userID, alertID uint, resolution models.AlertResolution, at time.Time) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ID != alertID || a.UserID != userID {
			continue
		}
		if a.IsResolved {
			return nil, repository.ErrAlertAlreadyClosed
		}
		a.IsResolved = true
		a.Resolution = &resolution
		a.ResolvedBy = &userID
		a.ResolvedAt = &at
		return a, nil
	}
	return nil, nil
}

// fakePrefRepo serves preferences per user
type fakePrefRepo struct {
	byUser map[uint]*models.NotificationPreference
	err    error
}

func (r *fakePrefRepo) ByUserID(_ context.Context, userID uint) (*models.NotificationPreference, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byUser[userID], nil
}

func (r *fakePrefRepo) Save(_ context.Context, p *models.NotificationPreference) error {
	if r.byUser == nil {
		r.byUser = map[uint]*models.NotificationPreference{}
	}
	r.byUser[p.UserID] = p
	return nil
}

// fakeLogRepo records notification log rows
type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*models.NotificationLog
	err     error
}

func (r *fakeLogRepo) Save(_ context.Context, e *models.NotificationLog) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeLogRepo) CountByStatus(_ context.Context, userID uint, _ time.Time) (map[models.NotificationStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[models.NotificationStatus]int64{}
	for _, e := range r.entries {
		if e.UserID == userID {
			out[e.Status]++
		}
	}
	return out, nil
}

func (r *fakeLogRepo) last() *models.NotificationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[len(r.entries)-1]
}

// fakeNarrativeRepo records narratives
type fakeNarrativeRepo struct {
	mu      sync.Mutex
	records []*models.NarrativeRecord
}

func (r *fakeNarrativeRepo) Save(_ context.Context, rec *models.NarrativeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = uint(len(r.records) + 1)
	rec.UUID = uuid.New()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeNarrativeRepo) ListByUser(_ context.Context, userID uint, _ int) ([]*models.NarrativeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.NarrativeRecord, 0)
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// fakeUserRepo lists the configured active user ids
type fakeUserRepo struct {
	ids []uint
}

func (r *fakeUserRepo) ByID(context.Context, uint) (*models.User, error) { return nil, nil }
func (r *fakeUserRepo) ByFilter(context.Context, models.UserFilter, string, int, int) ([]*models.User, error) {
	return nil, nil
}
func (r *fakeUserRepo) Save(context.Context, *models.User) error        { return errNotSupported }
func (r *fakeUserRepo) SaveBatch(context.Context, []*models.User) error { return errNotSupported }
func (r *fakeUserRepo) Count(context.Context, models.UserFilter) (int64, error) {
	return int64(len(r.ids)), nil
}
func (r *fakeUserRepo) Exists(context.Context, models.UserFilter) (bool, error) {
	return len(r.ids) > 0, nil
}
func (r *fakeUserRepo) ListActiveIDs(context.Context) ([]uint, error) { return r.ids, nil }

// fakeLLM returns a canned reply or error and counts calls
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  services.CompletionOptions
}

func (f *fakeLLM) Complete(_ context.Context, _, _ string, opts services.CompletionOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = opts
	return f.reply, f.err
}

// recordingDispatcher captures dispatch requests
type recordingDispatcher struct {
	mu       sync.Mutex
	requests []DispatchRequest
	result   bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req DispatchRequest) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return d.result
}

func (d *recordingDispatcher) DispatchAlerts(ctx context.Context, userID uint, alerts []*models.Alert) int {
	sent := 0
	for _, a := range alerts {
		if d.Dispatch(ctx, DispatchRequest{UserID: userID, AlertType: a.AlertType.String(), Payload: alertNotificationPayload(a)}) {
			sent++
		}
	}
	return sent
}

func ptrFloat(v float64) *float64 { return &v }

func activeAccount(id, userID uint, fbID string) *models.FacebookAccount {
	active := true
	return &models.FacebookAccount{
		ID:                id,
		UserID:            userID,
		FacebookAccountID: fbID,
		AccessToken:       "token-" + fbID,
		IsActive:          &active,
	}
}
