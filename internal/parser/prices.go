package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// The extraction patterns are ordered: the first one that yields a value
// wins. The ordering is load-bearing and mirrors the message corpus this
// parser was tuned on, so edits here need corpus coverage in the tests.

var (
	newlineRe    = regexp.MustCompile(`\n+`)
	firstPriceRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	intTokenRe   = regexp.MustCompile(`\b\d+\b`)

	simplePriceRe = regexp.MustCompile(`@\s*([0-9]+(?:\.[0-9]+)?)`)
)

var secondPriceRes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+\.?\d*///(\d+\.?\d*)`),
	regexp.MustCompile(`@\d+\.?\d*\s*-\s*(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)2(?:nd)?\s+limit\s*@\s*(\d+\.?\d*)`),
	regexp.MustCompile(`\b\d+\.?\d*__+(\d+\.?\d*)`),
	regexp.MustCompile(`@\s*\d+\.?\d*\s*-\s*(\d+\.?\d*)`),
	regexp.MustCompile(`@\s*\d+\.?\d*\s*-\s*(\d+\.?\d*)|:\s*\d+\.?\d*\s*-\s*(\d+\.?\d*)`),
	regexp.MustCompile(`\b\d+\.?\d*\s*-\s*(\d+\.?\d*)`),
	regexp.MustCompile(`\b\d+\b\s*و\s*(\d+)\s*فروش`),
	regexp.MustCompile(`\b\d+\b\s*و\s*(\d+)\s*خرید`),
	regexp.MustCompile(`\b\d+\.?\d*/(\d+\.?\d*)`),
	regexp.MustCompile(`=\s*(\d+\.?\d*)`),
	regexp.MustCompile(`(?:\d+\.\d+)[^\d]+(\d+\.\d+)`),
}

var tpPrimaryRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)tp\s*\d*\s*[@:.\-]?\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`(?i)tp\s*(?:\d*\s*:\s*)?(\d+\.\d+)`),
	regexp.MustCompile(`(?i)\btp\b\s*[:\-@.]?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)tp\s*:\s*(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)tp1\s*:\s*(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)tp1\s*(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)tp\s*[-:]\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`(?i)tp\s*1\s*[-:]\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`(?i)checkpoint\s*1\s*:\s*(\d+\.?\d*|open)`),
	regexp.MustCompile(`(?i)takeprofit\s*1\s*=\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`(?i)take\s*profit\s*\d*\s*:\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`تی پی\s*:?\s*(\d+(?:\.\d+)?)`),
}

var (
	tpNumberedRe    = regexp.MustCompile(`(?i)tp(\d+)\s*[:\-]?\s*(\d+\.\d+|\d+)`)
	tpTakeProfitNRe = regexp.MustCompile(`(?i)take\s*profit\s*\d+\s*[-:]\s*(\d+\.\d+|\d+)`)
	tpPersianListRe = regexp.MustCompile(`تی پی\s*:?\s*([\d.\s,،]+)`)
	persianSepRe    = regexp.MustCompile(`[,\s،]+`)
	// Comma-separated values trailing a matched TP ("tp: 1.09, 1.095")
	// continue the same level list.
	tpCommaContRe = regexp.MustCompile(`^\s*[,،]\s*(\d+(?:\.\d+)?)`)
)

var stopLossRes = []*regexp.Regexp{
	regexp.MustCompile(`sl\s*:\s*(\d+\.\d+)`),
	regexp.MustCompile(`sl\s*:\s*(\d+\.?\d*)`),
	regexp.MustCompile(`stop\s*(\d+\.?\d*)`),
	regexp.MustCompile(`حد\s*(?:ضرر)?\s*:?\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`استاپ\s*:?\s*(\d+\.?\d*)`),
	regexp.MustCompile(`stop loss\s*:\s*(\d+\.?\d*)`),
	regexp.MustCompile(`sl\s*[-:]\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`sl\s*(\d+\.?\d*)`),
	regexp.MustCompile(`stop\s*loss\s*[:\-@]\s*(\d+\.?\d*)`),
	regexp.MustCompile(`stoploss\s*=\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`sl\s*@\s*(\d+\.\d+|\d+)`),
	regexp.MustCompile(`stop\s*loss\s*(?:point)?\s*[:\-]?\s*(\d+\.\d+|\d+)`),
}

// ExtractFirstPrice returns the first decimal number in the text, or zero
// when there is none. US30 is renamed first so its digits are not taken for
// a price.
func ExtractFirstPrice(text string) float64 {
	s := strings.ReplaceAll(strings.ToUpper(text), "US30", "DJIUSD")
	m := firstPriceRe.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractSecondPrice returns the second entry level of a two-limit signal,
// or zero when the text carries none.
func ExtractSecondPrice(text string) float64 {
	for _, re := range secondPriceRes {
		if v, ok := firstGroupValue(re, text); ok {
			return v
		}
	}
	return 0
}

// ExtractTakeProfits returns the take-profit levels named by the text, in
// first-seen order with duplicates removed, or nil when there are none. A
// captured non-numeric token (the corpus has "checkpoint 1: OPEN") makes the
// whole extraction absent. Values equal to 1.0 are dropped as TP indexes
// mistaken for prices.
func ExtractTakeProfits(text string) []float64 {
	var tps []float64
	for _, line := range newlineRe.Split(text, -1) {
		for _, re := range tpPrimaryRes {
			ms := re.FindAllStringSubmatchIndex(line, -1)
			if len(ms) == 0 {
				continue
			}
			for _, loc := range ms {
				tok := line[loc[2]:loc[3]]
				if tok != "0" {
					v, err := strconv.ParseFloat(tok, 64)
					if err != nil {
						return nil
					}
					tps = append(tps, v)
				}
				tps = append(tps, commaContinuation(line[loc[3]:])...)
			}
			break
		}

		// Numbered TPs (tp1, tp2, ...) contribute regardless of which
		// primary pattern claimed the line.
		for _, m := range tpNumberedRe.FindAllStringSubmatch(line, -1) {
			if m[2] == "0" {
				continue
			}
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return nil
			}
			tps = append(tps, v)
		}

		// A Persian separator list after the TP keyword is the complete
		// set; it overrides whatever else accumulated.
		if m := tpPersianListRe.FindStringSubmatch(line); m != nil {
			var persian []float64
			for _, tok := range persianSepRe.Split(strings.TrimSpace(m[1]), -1) {
				if tok == "" || tok == "0" || tok == "." {
					continue
				}
				v, err := strconv.ParseFloat(tok, 64)
				if err != nil {
					continue
				}
				persian = append(persian, v)
			}
			if len(persian) > 0 {
				return finishTakeProfits(persian)
			}
		}
	}

	for _, m := range tpTakeProfitNRe.FindAllStringSubmatch(text, -1) {
		if m[1] == "0" {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		tps = append(tps, v)
	}

	return finishTakeProfits(tps)
}

// commaContinuation collects ", 1.0950, 1.0970" style values that extend a
// matched take-profit level.
func commaContinuation(rest string) []float64 {
	var vals []float64
	for {
		m := tpCommaContRe.FindStringSubmatch(rest)
		if m == nil {
			return vals
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return vals
		}
		if m[1] != "0" {
			vals = append(vals, v)
		}
		rest = rest[len(m[0]):]
	}
}

func finishTakeProfits(tps []float64) []float64 {
	seen := make(map[float64]struct{}, len(tps))
	out := make([]float64, 0, len(tps))
	for _, tp := range tps {
		if tp == 1.0 {
			continue
		}
		if _, ok := seen[tp]; ok {
			continue
		}
		seen[tp] = struct{}{}
		out = append(out, tp)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ExtractStopLoss returns the stop-loss level, or zero when the text carries
// none. Lines are scanned in order and the first line with a hit wins.
func ExtractStopLoss(text string) float64 {
	lower := strings.ToLower(text)
	lines := newlineRe.Split(lower, -1)
	for _, line := range lines {
		for _, re := range stopLossRes {
			if m := re.FindStringSubmatch(line); m != nil {
				v, err := strconv.ParseFloat(m[1], 64)
				if err == nil {
					return v
				}
			}
		}
	}

	// Corpus fallback: a bare number placed before an "sl" marker on the
	// same line ("2330 sl").
	for _, line := range lines {
		idx := strings.Index(line, "sl")
		if idx < 0 {
			continue
		}
		for _, loc := range intTokenRe.FindAllStringIndex(line, -1) {
			if loc[0] < idx {
				v, err := strconv.ParseFloat(line[loc[0]:loc[1]], 64)
				if err == nil {
					return v
				}
			}
		}
	}
	return 0
}

// ExtractSimplePrice reads the "@ 2345.5" shorthand used by inline stop-loss
// edits. Zero means absent.
func ExtractSimplePrice(text string) float64 {
	m := simplePriceRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// firstGroupValue returns the first non-empty capture group of re's first
// match, parsed as a float.
func firstGroupValue(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		v, err := strconv.ParseFloat(g, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
