package utils

import (
	"time"
)

// Context keys carried from handlers into flows
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Pipeline defaults
const (
	// DefaultNarrativeCacheTTL bounds how long an identical narrative payload is served from cache
	DefaultNarrativeCacheTTL = 5 * time.Minute

	// DefaultNotificationsPerMinute is the per-recipient dispatch ceiling
	DefaultNotificationsPerMinute = 10

	// MaxIdentifierVariants caps the number of account id formats tried against the ad platform
	MaxIdentifierVariants = 4

	// FacebookAccountPrefix is the prefix Graph API uses for ad account ids
	FacebookAccountPrefix = "act_"
)
