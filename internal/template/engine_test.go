package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	vars := Vars{"suffix": "1700000000000", "lastId": "esc-42"}

	tests := []struct {
		name    string
		in      string
		want    string
		missing []string
	}{
		{"plain", "/escrows", "/escrows", nil},
		{"spaced", "/escrows/{{ lastId }}", "/escrows/esc-42", nil},
		{"dotted", "/escrows/{{.lastId}}/archive", "/escrows/esc-42/archive", nil},
		{"repeated", "{{ suffix }}-{{ .suffix }}", "1700000000000-1700000000000", nil},
		{"missing", "/leads/{{ firstId }}?q={{ nope }}", "", []string{"firstId", "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandString(tt.in, vars)
			if tt.missing != nil {
				var me *MissingError
				require.ErrorAs(t, err, &me)
				assert.Equal(t, tt.missing, me.Names)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandNested(t *testing.T) {
	body := map[string]any{
		"propertyAddress": "{{ suffix }} Test Lane",
		"purchasePrice":   500000,
		"tags":            []any{"health", "{{ today }}"},
		"buyer":           map[string]any{"name": "Buyer {{ suffix }}"},
	}

	got, err := Expand(body, Vars{"suffix": "7", "today": "2026-03-01"})
	require.NoError(t, err)

	out := got.(map[string]any)
	assert.Equal(t, "7 Test Lane", out["propertyAddress"])
	assert.Equal(t, 500000, out["purchasePrice"])
	assert.Equal(t, []any{"health", "2026-03-01"}, out["tags"])
	assert.Equal(t, "Buyer 7", out["buyer"].(map[string]any)["name"])

	// the input is left untouched
	assert.Equal(t, "{{ suffix }} Test Lane", body["propertyAddress"])
}

func TestVariables(t *testing.T) {
	value := map[string]any{
		"a": "{{ lastId }}",
		"b": []any{"{{.suffix}}", 3, "{{ lastId }}"},
	}
	assert.Equal(t, []string{"lastId", "suffix"}, Variables(value))
	assert.True(t, HasPlaceholders(value))
	assert.False(t, HasPlaceholders(map[string]any{"n": 1}))
	assert.Empty(t, Variables(nil))
}
