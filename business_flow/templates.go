package businessflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// RenderTemplate replaces every {{name}} with vars[name]. Placeholders without a
// value are left untouched.
func RenderTemplate(tpl string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok || v == nil {
			return m
		}
		return formatTemplateValue(v)
	})
}

func formatTemplateValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// messageTemplates maps a notification kind to its WhatsApp body
var messageTemplates = map[string]string{
	"budget_depleted": "⚠️ *Budget alert*\n\nYour campaign \"{{campaign_name}}\" has used {{budget_usage}}% of its daily budget " +
		"(${{spend}} of ${{daily_budget}}). It may stop showing ads soon.",
	"low_ctr": "📉 *Few people are clicking*\n\nOnly {{ctr}}% of the people who saw \"{{campaign_name}}\" clicked on it " +
		"(your target is {{threshold}}%). A fresh image or headline could help.",
	"high_costs": "💸 *Clicks are getting expensive*\n\nEach click on \"{{campaign_name}}\" now costs about ${{cpc}}, " +
		"above your limit of ${{threshold}}.",
	"campaign_paused": "⏸️ *Campaign paused*\n\n\"{{campaign_name}}\" is paused and is not showing ads right now.",
	"high_frequency": "🔁 *Same people, same ad*\n\nPeople have seen \"{{campaign_name}}\" about {{frequency}} times each " +
		"(your limit is {{threshold}}). They may start ignoring it.",
	"daily_digest": "{{greeting}}\n\n{{content}}\n\n_{{summary}}_",
}

const genericMessageTemplate = "*{{title}}*\n\n{{message}}"

// templateFor returns the body used for a notification kind
func templateFor(kind string) string {
	if tpl, ok := messageTemplates[kind]; ok {
		return tpl
	}
	return genericMessageTemplate
}
