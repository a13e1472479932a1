package bridge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shhac/bolt/internal/domain"
)

func pairs(kv ...string) []domain.Pair {
	out := make([]domain.Pair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, domain.Pair{Key: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestComposeURL(t *testing.T) {
	tests := []struct {
		name   string
		params []domain.Pair
		want   string
	}{
		{"no params", nil, "u"},
		{"empty params", []domain.Pair{}, "u"},
		{"two pairs", pairs("a", "1", "b", "2"), "u?a=1&b=2"},
		{"trailing empty value keeps separator", pairs("a", "1", "b", ""), "u?a=1&"},
		{"trailing empty key keeps separator", pairs("a", "1", "", "2"), "u?a=1&"},
		{"skipped middle pair", pairs("a", "1", "b", "", "c", "3"), "u?a=1&c=3"},
		{"empty first value", pairs("a", "", "b", "2"), "u?b=2"},
		{"empty first key drops question mark", pairs("", "x", "a", "1"), "ua=1"},
		{"all pairs skipped", pairs("a", "", "b", ""), "u?"},
		{"single blank row", pairs("", ""), "u"},
		{"no escaping", pairs("q", "a b&c", "emoji", "⚡"), "u?q=a b&c&emoji=⚡"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeURL("u", tt.params))
		})
	}
}

func TestComposeURL_NonEmptyPairsJoin(t *testing.T) {
	// With no empty keys or values the result is a plain query string
	for n := 1; n <= 8; n++ {
		params := make([]domain.Pair, n)
		parts := make([]string, n)
		for i := range params {
			params[i] = domain.Pair{Key: fmt.Sprintf("k%d", i), Value: fmt.Sprintf("v%d", i)}
			parts[i] = params[i].Key + "=" + params[i].Value
		}

		got := ComposeURL("http://host/path", params)
		assert.Equal(t, "http://host/path?"+strings.Join(parts, "&"), got)
	}
}
