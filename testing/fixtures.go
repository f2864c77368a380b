package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with a unique email
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	user := &models.User{
		UUID:     uuid.New(),
		Email:    fmt.Sprintf("owner.%d@example.com", rand.Intn(1_000_000_000)),
		Name:     "Test Owner",
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestAccount connects an ad account to the user
func (tf *TestFixtures) CreateTestAccount(userID uint, active bool) (*models.FacebookAccount, error) {
	account := &models.FacebookAccount{
		UserID:            userID,
		FacebookAccountID: fmt.Sprintf("act_%d", rand.Intn(1_000_000_000)),
		AccountName:       "Test Account",
		AccessToken:       "test-token",
		Currency:          "USD",
		IsActive:          utils.ToPtr(active),
	}
	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}
	return account, nil
}

// CreateTestCampaign mirrors a campaign under the account
func (tf *TestFixtures) CreateTestCampaign(account *models.FacebookAccount, name string, status models.CampaignStatus, dailyBudget *float64) (*models.Campaign, error) {
	campaign := &models.Campaign{
		FacebookAccountID:  account.ID,
		FacebookCampaignID: fmt.Sprintf("%d", rand.Intn(1_000_000_000)),
		UserID:             account.UserID,
		Name:               name,
		Objective:          "OUTCOME_TRAFFIC",
		Status:             status,
		DailyBudget:        dailyBudget,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// NewTestSnapshot builds an unsaved daily snapshot with derived ratios filled in
func NewTestSnapshot(campaignID uint, day time.Time, impressions, clicks int64, spend float64) *models.MetricSnapshot {
	return &models.MetricSnapshot{
		CampaignID:  campaignID,
		CapturedAt:  day.Add(12 * time.Hour),
		MetricDate:  utils.TruncateToDay(day),
		Impressions: impressions,
		Clicks:      clicks,
		Spend:       spend,
		Reach:       impressions / 2,
		Frequency:   2,
		CTR:         utils.SafeDivide(float64(clicks)*100, float64(impressions)),
		CPC:         utils.SafeDivide(spend, float64(clicks)),
		CPM:         utils.SafeDivide(spend*1000, float64(impressions)),
		DataSource:  models.DataSourceAPI,
	}
}

// CreateTestPreference stores messaging preferences for the user
func (tf *TestFixtures) CreateTestPreference(userID uint, number string) (*models.NotificationPreference, error) {
	pref := &models.NotificationPreference{
		UserID:             userID,
		WhatsAppNumber:     number,
		Enabled:            true,
		MorningEnabled:     true,
		EveningEnabled:     true,
		DisabledAlertTypes: pq.StringArray{},
		QuietHoursStart:    "22:00",
		QuietHoursEnd:      "07:00",
		Timezone:           "UTC",
		Frequency:          models.NotificationFrequencyDaily,
	}
	if err := tf.DB.DB.Create(pref).Error; err != nil {
		return nil, fmt.Errorf("failed to create test preference: %w", err)
	}
	return pref, nil
}
