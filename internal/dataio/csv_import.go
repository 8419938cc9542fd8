package dataio

import (
	"fmt"
	"iter"
	"math"
	"regexp"
	"strconv"
	"strings"

	"trading-journal/internal/models"
)

const bom = "\ufeff"

// Header aliases per field, Portuguese first. The first alias with a
// non-empty value wins.
var (
	dateAliases         = []string{"data", "date"}
	pairAliases         = []string{"paridade", "pair"}
	positionAliases     = []string{"tipo", "position"}
	typeAliases         = []string{"resultado", "type"}
	percentAliases      = []string{"pnl (%)", "percent"}
	resultAliases       = []string{"pnl ($)", "result"}
	valueTradeAliases   = []string{"valor trade", "value_trade"}
	newValueAliases     = []string{"novo valor", "new_value"}
	observationsAliases = []string{"observações", "observations"}
)

var (
	isoDate     = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	slashDate   = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`)
	dashedDate  = regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`)
	numberNoise = regexp.MustCompile(`[^\d.\-]`)
)

// ParseResult is the outcome of parsing a whole CSV document.
// Skipped counts data rows that produced no candidate.
type ParseResult struct {
	Trades  []models.Trade
	Skipped int
}

// Candidates yields one trade candidate per valid data row of text.
// Rows are parsed lazily; ranging again parses from the start.
// Candidates carry neither ID nor UserID.
func Candidates(text string) iter.Seq[models.Trade] {
	return func(yield func(models.Trade) bool) {
		scan(text, yield, func() {})
	}
}

// ParseCSV parses every row of text, counting the ones it drops.
func ParseCSV(text string) ParseResult {
	var res ParseResult
	scan(text, func(t models.Trade) bool {
		res.Trades = append(res.Trades, t)
		return true
	}, func() { res.Skipped++ })
	return res
}

func scan(text string, yield func(models.Trade) bool, skip func()) {
	text = strings.TrimPrefix(text, bom)

	var headers []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if headers == nil {
			for _, h := range strings.Split(line, ",") {
				headers = append(headers, strings.ToLower(strings.TrimSpace(h)))
			}
			continue
		}

		values := SplitLine(line)
		if len(values) != len(headers) {
			skip()
			continue
		}

		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = strings.TrimSpace(values[i])
		}

		t, ok := normalizeRow(row)
		if !ok {
			skip()
			continue
		}
		if !yield(t) {
			return
		}
	}
}

// SplitLine splits one CSV line on commas outside double quotes.
// A quote toggles quoted mode; "" inside quotes is a literal quote.
func SplitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case r == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, current.String())
}

func normalizeRow(row map[string]string) (models.Trade, bool) {
	t := models.Trade{
		TradeDate:    NormalizeDate(first(row, dateAliases)),
		Pair:         strings.ToUpper(first(row, pairAliases)),
		Position:     NormalizePosition(first(row, positionAliases)),
		Type:         NormalizeType(first(row, typeAliases)),
		Percent:      math.Abs(ParseNumber(first(row, percentAliases))),
		Result:       ParseNumber(first(row, resultAliases)),
		ValueTrade:   ParseNumber(first(row, valueTradeAliases)),
		NewValue:     ParseNumber(first(row, newValueAliases)),
		Observations: first(row, observationsAliases),
	}
	if t.TradeDate == "" || t.Pair == "" || t.Type == "" {
		return models.Trade{}, false
	}
	return t, true
}

func first(row map[string]string, aliases []string) string {
	for _, a := range aliases {
		if v := row[a]; v != "" {
			return v
		}
	}
	return ""
}

// NormalizeDate rewrites YYYY-MM-DD, DD/MM/YYYY or DD-MM-YYYY to YYYY-MM-DD.
// Any other shape yields "".
func NormalizeDate(s string) string {
	if s == "" {
		return ""
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}
	for _, re := range []*regexp.Regexp{slashDate, dashedDate} {
		if m := re.FindStringSubmatch(s); m != nil {
			return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
		}
	}
	return ""
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// NormalizePosition maps anything mentioning "short" to short, else long.
func NormalizePosition(s string) models.Position {
	if strings.Contains(strings.ToLower(s), "short") {
		return models.PositionShort
	}
	return models.PositionLong
}

// NormalizeType maps "prejuízo" or "loss" to loss, else profit.
func NormalizeType(s string) models.Outcome {
	v := strings.ToLower(s)
	if strings.Contains(v, "prejuízo") || strings.Contains(v, "loss") {
		return models.OutcomeLoss
	}
	return models.OutcomeProfit
}

// ParseNumber reads a loosely formatted amount ("$1,5", "10 %", "-3.2").
// Empty or unparseable input is 0.
func ParseNumber(s string) float64 {
	if s == "" {
		return 0
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '%', ' ', '\t', '\n', '\r', '\f', '\v':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	cleaned = numberNoise.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
