package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFirstPrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"price after at sign", "buy xauusd @ 2345.5 sl 2330", 2345.5},
		{"integer price", "sell djiusd 45000", 45000},
		{"us30 digits are not a price", "buy us30 @ 45000", 45000},
		{"tp index is matched first", "tp1: 2350", 1},
		{"no numbers", "buy gold now", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFirstPrice(tt.text))
		})
	}
}

func TestExtractSecondPrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"triple slash", "2345///2350", 2350},
		{"at range", "@2345 - 2350", 2350},
		{"second limit", "2nd limit @ 2350", 2350},
		{"underscore run", "2345__2350", 2350},
		{"at range spaced", "@ 2345 - 2350", 2350},
		{"colon range", "entry: 2345 - 2350", 2350},
		{"bare range", "2345 - 2350", 2350},
		{"persian sell pair", "2345 و 2350 فروش", 2350},
		{"persian buy pair", "2345 و 2350 خرید", 2350},
		{"single slash", "2345/2350", 2350},
		{"equals", "entry = 2350", 2350},
		{"two consecutive decimals", "buy 2345.5 now sl 2330.5", 2330.5},
		{"integers without delimiter", "buy 2345 sl 2330", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSecondPrice(tt.text))
		})
	}
}

func TestExtractTakeProfits(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []float64
	}{
		{
			name: "single tp",
			text: "tp: 2350",
			want: []float64{2350},
		},
		{
			name: "comma list after tp label",
			text: "tp: 1.0900, 1.0950",
			want: []float64{1.09, 1.095},
		},
		{
			name: "take profit comma list",
			text: "take profit: 1960.00, 1970.00, 1980.00",
			want: []float64{1960, 1970, 1980},
		},
		{
			name: "numbered tps on separate lines",
			text: "tp1: 2350\ntp2: 2355\ntp3: 2360",
			want: []float64{2350, 2355, 2360},
		},
		{
			name: "numbered tps on one line",
			text: "tp1: 2350 tp2: 2355",
			want: []float64{2350, 2355},
		},
		{
			name: "take profit with index",
			text: "take profit 1: 2350\ntake profit 2: 2360",
			want: []float64{2350, 2360},
		},
		{
			name: "takeprofit equals",
			text: "takeprofit 1 = 2350",
			want: []float64{2350},
		},
		{
			name: "persian separator list is the complete set",
			text: "تی پی 2350 2355 2360",
			want: []float64{2350, 2355, 2360},
		},
		{
			name: "persian tp with colon and decimal",
			text: "تی پی: 1.0900",
			want: []float64{1.09},
		},
		{
			name: "open checkpoint aborts extraction",
			text: "checkpoint 1: open",
			want: nil,
		},
		{
			name: "zero tokens dropped",
			text: "tp: 0",
			want: nil,
		},
		{
			name: "index one filtered as noise",
			text: "tp: 1",
			want: nil,
		},
		{
			name: "duplicates removed",
			text: "tp: 2350\ntp1: 2350",
			want: []float64{2350},
		},
		{
			name: "bare tp word without value",
			text: "no tp here",
			want: nil,
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTakeProfits(tt.text))
		})
	}
}

func TestExtractStopLoss(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"sl colon decimal", "sl: 2330.5", 2330.5},
		{"sl colon integer", "sl: 2330", 2330},
		{"sl bare", "sl 2330", 2330},
		{"stop bare", "stop 2330", 2330},
		{"persian had", "حد 2330", 2330},
		{"persian had zarar with colon", "حد ضرر: 1.0800", 1.08},
		{"persian stop", "استاپ 2330", 2330},
		{"stop loss colon", "stop loss: 1945.00", 1945},
		{"sl dash", "sl - 2330", 2330},
		{"stoploss equals", "stoploss = 2330", 2330},
		{"sl at sign", "sl @ 2330", 2330},
		{"stop loss bare", "stop loss 2330", 2330},
		{"number before sl marker", "2330 sl", 2330},
		{"first line wins", "sl: 2330\nsl: 2340", 2330},
		{"skips lines without sl", "tp: 2350\nsl: 2330", 2330},
		{"uppercase input", "SL: 2330", 2330},
		{"absent", "buy gold now", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractStopLoss(tt.text))
		})
	}
}

func TestExtractSimplePrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"tight", "@2345.5", 2345.5},
		{"spaced", "edit @  2331", 2331},
		{"integer", "@ 2345", 2345},
		{"absent", "edit 2331", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSimplePrice(tt.text))
		})
	}
}
