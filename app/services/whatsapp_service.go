package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/adwatch/config"
	"github.com/amirphl/adwatch/utils"
	"github.com/go-resty/resty/v2"
)

// ErrInvalidRecipient is returned when a phone number cannot be normalized
var ErrInvalidRecipient = errors.New("invalid whatsapp recipient")

// WhatsAppService sends plain text WhatsApp messages
type WhatsAppService interface {
	SendText(ctx context.Context, recipient, message string) (string, error)
}

// WhatsAppCloudService implements WhatsAppService over the Cloud API
type WhatsAppCloudService struct {
	config *config.WhatsAppConfig
	client *resty.Client
}

// whatsAppTextRequest is the payload of POST /<phone_number_id>/messages
type whatsAppTextRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// NewWhatsAppService picks the sender configured by provider
func NewWhatsAppService(cfg *config.WhatsAppConfig) WhatsAppService {
	if strings.EqualFold(cfg.Provider, "cloud") {
		return NewWhatsAppCloudService(cfg)
	}
	return NewMockWhatsAppService(cfg.DefaultCountryCode)
}

// NewWhatsAppCloudService creates a Cloud API sender
func NewWhatsAppCloudService(cfg *config.WhatsAppConfig) *WhatsAppCloudService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.APIVersion, "/")
	return &WhatsAppCloudService{
		config: cfg,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetAuthToken(cfg.AccessToken),
	}
}

// SendText sends a text message and returns the provider message id
func (s *WhatsAppCloudService) SendText(ctx context.Context, recipient, message string) (string, error) {
	to := utils.NormalizePhoneNumber(recipient, s.config.DefaultCountryCode)
	if to == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	var out whatsAppSendResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(whatsAppTextRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "text",
			Text:             whatsAppTextBody{Body: message},
		}).
		SetResult(&out).
		SetError(&graphErrorEnvelope{}).
		Post("/" + s.config.PhoneNumberID + "/messages")
	if err != nil {
		return "", fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	if resp.IsError() {
		if env, ok := resp.Error().(*graphErrorEnvelope); ok && env != nil && env.Error != nil {
			env.Error.HTTPStatus = resp.StatusCode()
			return "", fmt.Errorf("whatsapp delivery failed for %s: %w", to, env.Error)
		}
		return "", fmt.Errorf("whatsapp delivery failed for %s: status %d", to, resp.StatusCode())
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("whatsapp delivery for %s returned no message id", to)
	}
	return out.Messages[0].ID, nil
}

// MockWhatsAppService records messages instead of sending them
type MockWhatsAppService struct {
	mu                 sync.Mutex
	defaultCountryCode string
	SentMessages       []MockWhatsAppMessage
	FailWith           error
}

// MockWhatsAppMessage represents a recorded message
type MockWhatsAppMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// NewMockWhatsAppService creates a new mock sender
func NewMockWhatsAppService(defaultCountryCode string) *MockWhatsAppService {
	return &MockWhatsAppService{
		defaultCountryCode: defaultCountryCode,
		SentMessages:       make([]MockWhatsAppMessage, 0),
	}
}

func (m *MockWhatsAppService) SendText(ctx context.Context, recipient, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return "", m.FailWith
	}
	to := utils.NormalizePhoneNumber(recipient, m.defaultCountryCode)
	if to == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	m.SentMessages = append(m.SentMessages, MockWhatsAppMessage{
		Recipient: to,
		Message:   message,
		SentAt:    utils.UTCNow(),
	})
	log.Printf("Mock WhatsApp message sent to %s (%d chars)", to, len(message))
	return fmt.Sprintf("mock-%d", len(m.SentMessages)), nil
}

// GetSentMessages returns a copy of the recorded messages
func (m *MockWhatsAppService) GetSentMessages() []MockWhatsAppMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockWhatsAppMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// ClearSentMessages clears the recorded messages
func (m *MockWhatsAppService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockWhatsAppMessage, 0)
}
