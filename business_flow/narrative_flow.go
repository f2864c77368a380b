package businessflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/utils"
)

// NarrativeKind selects the prompt and generation settings
type NarrativeKind string

const (
	NarrativeKindCampaign NarrativeKind = "campaign_explanation"
	NarrativeKindAccount  NarrativeKind = models.SourceTypeDailyDigest
)

// NarrativeCampaign is the per-campaign input to a narrative
type NarrativeCampaign struct {
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	DailyBudget     *float64 `json:"daily_budget,omitempty"`
	Spend           float64  `json:"spend"`
	Impressions     int64    `json:"impressions"`
	Reach           int64    `json:"reach"`
	Clicks          int64    `json:"clicks"`
	Conversions     int64    `json:"conversions"`
	MessagingClicks int64    `json:"messaging_clicks"`
	CTR             float64  `json:"ctr"`
	CPC             float64  `json:"cpc"`
	Frequency       float64  `json:"frequency"`
}

// NarrativeContext is what a narrative is written about
type NarrativeContext struct {
	Kind      NarrativeKind
	TimeOfDay models.TimeOfDay
	Campaigns []NarrativeCampaign
}

// NarrativeResult is always usable: Text is never empty. Err carries the primary
// path failure when the fallback was used.
type NarrativeResult struct {
	Text         string
	Summary      string
	ShouldNotify bool
	Source       models.NarrativeSource
	Err          error
}

// NarrativeGenerator writes plain-language performance summaries
type NarrativeGenerator interface {
	Explain(ctx context.Context, nc NarrativeContext) NarrativeResult
}

type NarrativeGeneratorImpl struct {
	llm      services.LLMClient
	cache    services.ResponseCache
	cacheTTL time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

func NewNarrativeGenerator(llm services.LLMClient, cache services.ResponseCache, cacheTTL, timeout time.Duration, logger *log.Logger) NarrativeGenerator {
	if logger == nil {
		logger = log.Default()
	}
	if cache == nil {
		cache = services.NewMemoryResponseCache()
	}
	if cacheTTL <= 0 {
		cacheTTL = utils.DefaultNarrativeCacheTTL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &NarrativeGeneratorImpl{
		llm:      llm,
		cache:    cache,
		cacheTTL: cacheTTL,
		timeout:  timeout,
		logger:   logger,
	}
}

const narrativeSystemPrompt = `You write short performance updates about Facebook ad campaigns for small business owners who are not marketers.
Use plain words: say "people who saw your ads" instead of reach, "times your ads were shown" instead of impressions,
"share of people who clicked" instead of CTR, "cost per click" instead of CPC. Never use the abbreviations CTR, CPC or CPM.
Mention money with a dollar sign and two decimals. Be encouraging but honest, and give at most one concrete suggestion.
Answer with a JSON object: {"content": "<the update, at most 5 sentences>", "summary": "<one short line>", "shouldSendAlert": <true when something needs the owner's attention>}.`

type narrativeReply struct {
	Content         string `json:"content"`
	Summary         string `json:"summary"`
	ShouldSendAlert bool   `json:"shouldSendAlert"`
}

// Explain asks the language model for a narrative and falls back to a rule-based
// text on any failure. Identical payloads are served from the response cache.
func (g *NarrativeGeneratorImpl) Explain(ctx context.Context, nc NarrativeContext) NarrativeResult {
	if nc.Kind == "" {
		nc.Kind = NarrativeKindAccount
	}

	if g.llm == nil {
		res := fallbackNarrative(nc)
		narrativesTotal.WithLabelValues(string(res.Source)).Inc()
		return res
	}

	userPrompt := buildNarrativePrompt(nc)
	opts := completionOptionsFor(nc.Kind)
	key := narrativeCacheKey(userPrompt, opts)

	if cached, ok := g.cache.Get(ctx, key); ok {
		var reply narrativeReply
		if err := json.Unmarshal([]byte(cached), &reply); err == nil && reply.Content != "" {
			narrativesTotal.WithLabelValues(string(models.NarrativeSourceCache)).Inc()
			return NarrativeResult{
				Text:         reply.Content,
				Summary:      reply.Summary,
				ShouldNotify: reply.ShouldSendAlert,
				Source:       models.NarrativeSourceCache,
			}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.llm.Complete(callCtx, narrativeSystemPrompt, userPrompt, opts)
	var reply narrativeReply
	if err == nil {
		reply, err = parseNarrativeReply(raw)
	}
	if err != nil {
		g.logger.Printf("narrative generation failed, using fallback: %v", err)
		res := fallbackNarrative(nc)
		res.Err = err
		narrativesTotal.WithLabelValues(string(res.Source)).Inc()
		return res
	}

	if encoded, err := json.Marshal(reply); err == nil {
		g.cache.Set(ctx, key, string(encoded), g.cacheTTL)
	}

	narrativesTotal.WithLabelValues(string(models.NarrativeSourceLLM)).Inc()
	return NarrativeResult{
		Text:         reply.Content,
		Summary:      reply.Summary,
		ShouldNotify: reply.ShouldSendAlert,
		Source:       models.NarrativeSourceLLM,
	}
}

func completionOptionsFor(kind NarrativeKind) services.CompletionOptions {
	if kind == NarrativeKindCampaign {
		return services.CompletionOptions{Temperature: 0.4, MaxTokens: 300, JSON: true}
	}
	return services.CompletionOptions{Temperature: 0.5, MaxTokens: 600, JSON: true}
}

func narrativeCacheKey(prompt string, opts services.CompletionOptions) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.2f|%d|%s", narrativeSystemPrompt, opts.Temperature, opts.MaxTokens, prompt)))
	return hex.EncodeToString(sum[:])
}

// buildNarrativePrompt renders the campaign numbers with plain-language labels
func buildNarrativePrompt(nc NarrativeContext) string {
	var b strings.Builder
	if nc.Kind == NarrativeKindCampaign {
		b.WriteString("Explain how this campaign is doing.\n")
	} else {
		fmt.Fprintf(&b, "Write the %s update for the owner's ad account.\n", timeOfDayOrDefault(nc.TimeOfDay))
	}

	if len(nc.Campaigns) == 0 {
		b.WriteString("There is no campaign data yet.\n")
		return b.String()
	}

	for _, c := range nc.Campaigns {
		fmt.Fprintf(&b, "\nCampaign %q (status: %s)\n", c.Name, strings.ToLower(c.Status))
		if c.DailyBudget != nil {
			fmt.Fprintf(&b, "- daily budget: $%.2f\n", *c.DailyBudget)
		}
		fmt.Fprintf(&b, "- money spent: $%.2f\n", c.Spend)
		fmt.Fprintf(&b, "- times your ads were shown: %d\n", c.Impressions)
		fmt.Fprintf(&b, "- people who saw your ads: %d\n", c.Reach)
		fmt.Fprintf(&b, "- clicks: %d\n", c.Clicks)
		fmt.Fprintf(&b, "- share of people who clicked: %.2f%%\n", c.CTR)
		fmt.Fprintf(&b, "- cost per click: $%.2f\n", c.CPC)
		fmt.Fprintf(&b, "- average times each person saw the ad: %.2f\n", c.Frequency)
		if c.Conversions > 0 {
			fmt.Fprintf(&b, "- results (leads or purchases): %d\n", c.Conversions)
		}
		if c.MessagingClicks > 0 {
			fmt.Fprintf(&b, "- conversations started: %d\n", c.MessagingClicks)
		}
	}

	if nc.Kind != NarrativeKindCampaign {
		t := totalsOf(nc.Campaigns)
		fmt.Fprintf(&b, "\nAcross all campaigns: $%.2f spent, %d clicks, shown %d times.\n", t.spend, t.clicks, t.impressions)
	}
	return b.String()
}

// parseNarrativeReply reads the JSON answer. A non-JSON answer becomes the content
// as-is with a generic summary. A JSON answer without content, or a blank answer,
// is ErrEmptyNarrative.
func parseNarrativeReply(raw string) (narrativeReply, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return narrativeReply{}, ErrEmptyNarrative
	}

	var reply narrativeReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return narrativeReply{Content: strings.TrimSpace(raw), Summary: "Here is your latest campaign update."}, nil
	}
	reply.Content = strings.TrimSpace(reply.Content)
	if reply.Content == "" {
		return narrativeReply{}, ErrEmptyNarrative
	}
	reply.Summary = strings.TrimSpace(reply.Summary)
	if reply.Summary == "" {
		reply.Summary = "Here is your latest campaign update."
	}
	return reply, nil
}

type narrativeTotals struct {
	spend       float64
	impressions int64
	reach       int64
	clicks      int64
	conversions int64
	messaging   int64
}

func totalsOf(campaigns []NarrativeCampaign) narrativeTotals {
	var t narrativeTotals
	for _, c := range campaigns {
		t.spend += c.Spend
		t.impressions += c.Impressions
		t.reach += c.Reach
		t.clicks += c.Clicks
		t.conversions += c.Conversions
		t.messaging += c.MessagingClicks
	}
	return t
}

// Greeting returns the salutation used for a time-of-day bucket
func Greeting(tod models.TimeOfDay) string {
	switch tod {
	case models.TimeOfDayMorning:
		return "Good morning! ☀️"
	case models.TimeOfDayAfternoon:
		return "Good afternoon! 👋"
	case models.TimeOfDayEvening:
		return "Good evening! 🌙"
	default:
		return "Hello! 👋"
	}
}

func timeOfDayOrDefault(tod models.TimeOfDay) string {
	if tod == "" {
		return "daily"
	}
	return string(tod)
}

// fallbackNarrative builds a rule-based narrative from the raw numbers. It never
// returns empty text.
func fallbackNarrative(nc NarrativeContext) NarrativeResult {
	res := NarrativeResult{Source: models.NarrativeSourceFallback}
	t := totalsOf(nc.Campaigns)

	if len(nc.Campaigns) == 0 || (t.impressions == 0 && t.spend == 0) {
		res.Text = "Your ads have not been shown yet in this period, so there is nothing to report. " +
			"Check that your campaigns are active and have a budget."
		res.Summary = "No ad activity yet."
		return res
	}

	sentences := make([]string, 0, 5)
	if nc.Kind == NarrativeKindCampaign && len(nc.Campaigns) == 1 {
		sentences = append(sentences, fmt.Sprintf("Your campaign %q was shown %d times to %d people and got %d clicks, spending $%.2f.",
			nc.Campaigns[0].Name, t.impressions, t.reach, t.clicks, t.spend))
	} else {
		sentences = append(sentences, fmt.Sprintf("Across %d campaigns your ads were shown %d times to %d people and got %d clicks, spending $%.2f.",
			len(nc.Campaigns), t.impressions, t.reach, t.clicks, t.spend))
	}

	clickShare := utils.SafeDivide(float64(t.clicks), float64(t.impressions)) * 100
	costPerClick := utils.SafeDivide(t.spend, float64(t.clicks))

	if t.clicks > 0 {
		switch {
		case costPerClick < 0.5:
			sentences = append(sentences, fmt.Sprintf("Each click cost about $%.2f, which is very efficient.", costPerClick))
		case costPerClick <= 2:
			sentences = append(sentences, fmt.Sprintf("Each click cost about $%.2f, which is reasonable.", costPerClick))
		default:
			sentences = append(sentences, fmt.Sprintf("Each click cost about $%.2f, which is on the pricey side.", costPerClick))
			res.ShouldNotify = true
		}
	}

	switch {
	case t.impressions == 0:
	case clickShare >= 2:
		sentences = append(sentences, fmt.Sprintf("%.1f%% of the people who saw your ads clicked, a great response.", clickShare))
	case clickShare >= 1:
		sentences = append(sentences, fmt.Sprintf("%.1f%% of the people who saw your ads clicked, a healthy share.", clickShare))
	default:
		sentences = append(sentences, fmt.Sprintf("Only %.1f%% of the people who saw your ads clicked. A fresh image or headline could help.", clickShare))
		res.ShouldNotify = true
	}

	if t.conversions > 0 {
		sentences = append(sentences, fmt.Sprintf("You also got %d results such as leads or purchases.", t.conversions))
	}
	if t.messaging > 0 {
		sentences = append(sentences, fmt.Sprintf("%d people started a conversation with you.", t.messaging))
	}

	res.Text = strings.Join(sentences, " ")
	res.Summary = fmt.Sprintf("$%.2f spent, %d clicks.", t.spend, t.clicks)
	return res
}

// narrativeCampaignFrom combines a stored campaign and its snapshot
func narrativeCampaignFrom(c *models.Campaign, s *models.MetricSnapshot) NarrativeCampaign {
	out := NarrativeCampaign{
		Name:        c.Name,
		Status:      c.Status.String(),
		DailyBudget: c.DailyBudget,
	}
	if s == nil {
		return out
	}
	out.Spend = s.Spend
	out.Impressions = s.Impressions
	out.Reach = s.Reach
	out.Clicks = s.Clicks
	out.Conversions = s.Conversions
	out.MessagingClicks = s.MessagingClicks
	out.CTR = s.CTR
	out.CPC = s.CPC
	out.Frequency = s.Frequency
	return out
}
