package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/amirphl/adwatch/utils"
)

// Suppression and failure reasons recorded in notification_logs
const (
	reasonRateLimited       = "rate_limited"
	reasonNoPreferences     = "no_preferences"
	reasonPreferenceError   = "preference_lookup_failed"
	reasonDisabled          = "notifications_disabled"
	reasonAlertTypeDisabled = "alert_type_disabled"
	reasonNoRecipient       = "no_recipient"
	reasonWeeklyDigest      = "weekly_digest_not_due"
	reasonQuietHours        = "quiet_hours"
	reasonSendFailed        = "send_failed"
)

// DispatchRequest is one notification to deliver. An empty Recipient means the
// number stored in the user's preferences.
type DispatchRequest struct {
	UserID    uint
	Recipient string
	AlertType string
	Payload   map[string]any
}

// NotificationDispatcher gates and sends WhatsApp notifications
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) bool
	DispatchAlerts(ctx context.Context, userID uint, alerts []*models.Alert) int
}

type NotificationDispatcherImpl struct {
	prefRepo repository.NotificationPreferenceRepository
	logRepo  repository.NotificationLogRepository
	limiter  services.RateLimiter
	sender   services.WhatsAppService

	// countryCode completes national numbers before they key the rate limiter
	countryCode string
	logger      *log.Logger
	now         func() time.Time
}

func NewNotificationDispatcher(
	prefRepo repository.NotificationPreferenceRepository,
	logRepo repository.NotificationLogRepository,
	limiter services.RateLimiter,
	sender services.WhatsAppService,
	defaultCountryCode string,
	logger *log.Logger,
) NotificationDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if limiter == nil {
		limiter = services.NewMemoryRateLimiter(utils.DefaultNotificationsPerMinute, time.Minute)
	}
	return &NotificationDispatcherImpl{
		prefRepo:    prefRepo,
		logRepo:     logRepo,
		limiter:     limiter,
		sender:      sender,
		countryCode: defaultCountryCode,
		logger:      logger,
		now:         utils.UTCNow,
	}
}

// Dispatch runs the rate, preference and quiet-hours gates, renders the template
// for the alert type and sends it. It reports whether the message was delivered.
func (d *NotificationDispatcherImpl) Dispatch(ctx context.Context, req DispatchRequest) bool {
	pref, err := d.prefRepo.ByUserID(ctx, req.UserID)
	if err != nil {
		d.logger.Printf("dispatch user=%d type=%s: failed to load preferences: %v", req.UserID, req.AlertType, err)
		d.record(ctx, req, req.Recipient, models.NotificationStatusSuppressed, reasonPreferenceError, nil)
		return false
	}

	recipient := req.Recipient
	if recipient == "" && pref != nil {
		recipient = pref.WhatsAppNumber
	}

	// spellings of one number share a window
	rateKey := utils.NormalizePhoneNumber(recipient, d.countryCode)
	if rateKey == "" {
		rateKey = fmt.Sprintf("user:%d", req.UserID)
	}
	allowed, err := d.limiter.Allow(ctx, rateKey)
	if err != nil {
		d.logger.Printf("dispatch user=%d: rate limiter unavailable, allowing: %v", req.UserID, err)
		allowed = true
	}
	if !allowed {
		d.record(ctx, req, recipient, models.NotificationStatusSuppressed, reasonRateLimited, nil)
		return false
	}

	now := d.now()
	if reason := preferenceGate(pref, req.AlertType, recipient, now); reason != "" {
		d.record(ctx, req, recipient, models.NotificationStatusSuppressed, reason, nil)
		return false
	}

	if inQuietHours(pref, now) {
		d.record(ctx, req, recipient, models.NotificationStatusSuppressed, reasonQuietHours, nil)
		return false
	}

	body := RenderTemplate(templateFor(req.AlertType), req.Payload)

	messageID, err := d.sender.SendText(ctx, recipient, body)
	if err != nil {
		d.logger.Printf("dispatch user=%d type=%s: send failed: %v", req.UserID, req.AlertType, err)
		d.record(ctx, req, recipient, models.NotificationStatusFailed, reasonSendFailed, nil)
		return false
	}

	d.record(ctx, req, recipient, models.NotificationStatusSent, "", &messageID)
	return true
}

// DispatchAlerts sends one notification per alert and returns how many were delivered
func (d *NotificationDispatcherImpl) DispatchAlerts(ctx context.Context, userID uint, alerts []*models.Alert) int {
	sent := 0
	for _, a := range alerts {
		if ctx.Err() != nil {
			break
		}
		if d.Dispatch(ctx, DispatchRequest{
			UserID:    userID,
			AlertType: a.AlertType.String(),
			Payload:   alertNotificationPayload(a),
		}) {
			sent++
		}
	}
	return sent
}

// preferenceGate returns the suppression reason, or "" when the preferences allow sending
func preferenceGate(pref *models.NotificationPreference, alertType, recipient string, now time.Time) string {
	switch {
	case pref == nil:
		return reasonNoPreferences
	case !pref.Enabled:
		return reasonDisabled
	case !pref.AllowsAlertType(alertType):
		return reasonAlertTypeDisabled
	case recipient == "":
		return reasonNoRecipient
	}

	if alertType == models.SourceTypeDailyDigest && pref.Frequency == models.NotificationFrequencyWeekly {
		if utils.InLocation(now, pref.Timezone).Weekday() != time.Monday {
			return reasonWeeklyDigest
		}
	}
	return ""
}

// inQuietHours evaluates the user's quiet window in their own timezone
func inQuietHours(pref *models.NotificationPreference, now time.Time) bool {
	if pref == nil || !pref.QuietHoursEnabled {
		return false
	}
	start, ok := utils.ParseClockHour(pref.QuietHoursStart)
	if !ok {
		return false
	}
	end, ok := utils.ParseClockHour(pref.QuietHoursEnd)
	if !ok {
		return false
	}
	return utils.InQuietHours(utils.InLocation(now, pref.Timezone).Hour(), start, end)
}

// record writes the outcome best-effort; a failing write never changes the result
func (d *NotificationDispatcherImpl) record(ctx context.Context, req DispatchRequest, recipient string, status models.NotificationStatus, reason string, messageID *string) {
	dispatchTotal.WithLabelValues(string(status), reason).Inc()

	if d.logRepo == nil {
		return
	}
	entry := &models.NotificationLog{
		UserID:            req.UserID,
		Recipient:         recipient,
		AlertType:         req.AlertType,
		Status:            status,
		Reason:            reason,
		ProviderMessageID: messageID,
		CreatedAt:         d.now(),
	}
	if err := d.logRepo.Save(ctx, entry); err != nil {
		d.logger.Printf("failed to write notification log for user %d: %v", req.UserID, err)
	}
}
