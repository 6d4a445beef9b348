package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text unchanged",
			in:   "BUY XAUUSD @ 2345.5",
			want: "BUY XAUUSD @ 2345.5",
		},
		{
			name: "superscripts removed before nfkc",
			in:   "BUY⁵ XAUUSD 2345",
			want: "BUY XAUUSD 2345",
		},
		{
			name: "styled letters folded to ascii",
			in:   "\U0001d417\U0001d400\U0001d414\U0001d414\U0001d412\U0001d403 buy 2345",
			want: "XAUUSD buy 2345",
		},
		{
			name: "horizontal whitespace collapsed newlines kept",
			in:   "buy   2345\t\t@ gold\nsl:  2330",
			want: "buy 2345 @ gold\nsl: 2330",
		},
		{
			name: "decorations stripped",
			in:   "☑ buy 2345 ❌",
			want: "buy 2345",
		},
		{
			name: "emoji outside allow list dropped",
			in:   "🚀🚀 buy gold 2345 💰",
			want: "buy gold 2345",
		},
		{
			name: "persian text survives",
			in:   "خرید طلا 2345 حد 2330",
			want: "خرید طلا 2345 حد 2330",
		},
		{
			name: "leading and trailing space trimmed",
			in:   "  buy 2345  ",
			want: "buy 2345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	corpus := []string{
		"BUY XAUUSD @ 2345.5\nSL: 2330\nTP: 2350, 2360",
		"خرید طلا 2345 و 2340\nحد ضرر: 2330\nتی پی 2350 2360",
		"☑ SELL US30 45.000 🚀\t\tsl 45100",
		"",
		"   \n   ",
		"𝐗𝐀𝐔𝐔𝐒𝐃 ²³ buy ❌",
	}

	for _, raw := range corpus {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(once), "normalize not idempotent for %q", raw)
	}
}
