package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
		vars map[string]any
		want string
	}{
		{
			name: "substitutes values",
			tpl:  "{{name}} spent ${{spend}}",
			vars: map[string]any{"name": "Spring Sale", "spend": 9.5},
			want: "Spring Sale spent $9.5",
		},
		{
			name: "tolerates inner spaces",
			tpl:  "hello {{ name }}",
			vars: map[string]any{"name": "Ana"},
			want: "hello Ana",
		},
		{
			name: "unknown placeholder left as-is",
			tpl:  "{{name}} and {{missing}}",
			vars: map[string]any{"name": "x"},
			want: "x and {{missing}}",
		},
		{
			name: "nil value left as-is",
			tpl:  "{{v}}",
			vars: map[string]any{"v": nil},
			want: "{{v}}",
		},
		{
			name: "integers",
			tpl:  "{{a}}/{{b}}",
			vars: map[string]any{"a": 3, "b": int64(4)},
			want: "3/4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.tpl, tt.vars))
		})
	}
}

func TestTemplateFor(t *testing.T) {
	assert.Contains(t, templateFor("budget_depleted"), "{{budget_usage}}")
	assert.Contains(t, templateFor("daily_digest"), "{{greeting}}")
	assert.Equal(t, genericMessageTemplate, templateFor("something_new"))
}
