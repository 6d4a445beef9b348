package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolResolverResolve(t *testing.T) {
	tests := []struct {
		name     string
		symbols  []string
		mappings map[string]string
		strict   bool
		text     string
		want     string
	}{
		{
			name:    "direct symbol mention",
			symbols: []string{"EURUSD", "XAUUSD", "DJIUSD"},
			text:    "buy eurusd 1.0850",
			want:    "EURUSD",
		},
		{
			name:    "slash form canonicalized",
			symbols: []string{"XAUUSD", "EURUSD"},
			text:    "sell xau/usd 2345",
			want:    "XAUUSD",
		},
		{
			name:    "plain spelling preferred over variants",
			symbols: []string{"XAUUSD!", "#XAUUSD", "XAUUSD"},
			text:    "buy xauusd",
			want:    "XAUUSD",
		},
		{
			name:    "variant used when plain missing",
			symbols: []string{"XAUUSD!", "#XAUUSD"},
			text:    "buy xauusd",
			want:    "XAUUSD!",
		},
		{
			name:     "user mapping overrides spelling choice",
			symbols:  []string{"XAUUSD", "XAUUSD!"},
			mappings: map[string]string{"XAUUSD": "XAUUSD!"},
			text:     "buy xauusd",
			want:     "XAUUSD!",
		},
		{
			name:     "mapping naming a dead symbol is ignored",
			symbols:  []string{"XAUUSD"},
			mappings: map[string]string{"XAUUSD": "GOLDCFD"},
			text:     "buy xauusd",
			want:     "XAUUSD",
		},
		{
			name:    "persian gold alias",
			symbols: []string{"XAUUSD", "EURUSD"},
			text:    "خرید طلا 2345",
			want:    "XAUUSD",
		},
		{
			name:    "ounce alias",
			symbols: []string{"XAUUSD"},
			text:    "فروش انس",
			want:    "XAUUSD",
		},
		{
			name:    "us30 alias",
			symbols: []string{"DJIUSD", "XAUUSD"},
			text:    "buy us30 45000",
			want:    "DJIUSD",
		},
		{
			name:    "persian dow alias",
			symbols: []string{"DJIUSD", "XAUUSD"},
			text:    "خرید داوجونز",
			want:    "DJIUSD",
		},
		{
			name:    "persian euro alias",
			symbols: []string{"EURUSD", "XAUUSD"},
			text:    "خرید یورو 1.0850",
			want:    "EURUSD",
		},
		{
			name:    "nasdaq alias picks broker spelling",
			symbols: []string{"NDAQ100", "XAUUSD"},
			text:    "buy nasdaq",
			want:    "NDAQ100",
		},
		{
			name:    "gold default when nothing matches",
			symbols: []string{"XAUUSD", "EURUSD"},
			text:    "buy 2345 sl 2330",
			want:    "XAUUSD",
		},
		{
			name:    "strict mode returns absent instead of gold",
			symbols: []string{"XAUUSD", "EURUSD"},
			strict:  true,
			text:    "buy 2345 sl 2330",
			want:    "",
		},
		{
			name:    "default canonical survives empty symbol set",
			symbols: nil,
			text:    "buy 2345",
			want:    "XAUUSD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSymbolResolver(tt.symbols, tt.mappings, tt.strict)
			assert.Equal(t, tt.want, r.Resolve(tt.text))
		})
	}
}
