package explorer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Account holding the treasury funds on mainnet.
const TreasuryAccount Address = "5EYCAe5ijiYfyeZ2JJCGq56LmPyNRAKzpG4QkoQkkQNB5e6Z"

const SecondsPerBlock = 12

const (
	day   = 86_400
	week  = 7 * day
	month = 30 * day
	year  = 12 * month
)

var compactSuffixes = []string{"", "K", "M", "B", "T", "P"}
var thousand = decimal.NewFromInt(1000)

// FormatCompact renders an amount with at most two decimals and a magnitude suffix,
// e.g. 1_500_000 units as "1.5M". The symbol is appended when not empty.
func FormatCompact(amount AmountBlockchain, decimals int32, symbol string) string {
	value := amount.ToHuman(decimals).Decimal()
	idx := 0
	for value.GreaterThanOrEqual(thousand) && idx < len(compactSuffixes)-1 {
		value = value.Div(thousand)
		idx++
	}
	formatted := value.Round(2).String() + compactSuffixes[idx]
	if symbol != "" {
		formatted += " " + symbol
	}
	return formatted
}

// FormatBlocksDuration renders a block count as a rough human duration.
func FormatBlocksDuration(blocks uint32) string {
	if blocks == 0 {
		return "None"
	}
	secs := float64(blocks) * SecondsPerBlock
	units := []struct {
		secs float64
		name string
	}{
		{year, "years"},
		{month, "months"},
		{week, "weeks"},
		{day, "days"},
	}
	for _, u := range units {
		if secs >= u.secs {
			v := strconv.FormatFloat(secs/u.secs, 'f', 1, 64)
			return fmt.Sprintf("%s %s", strings.TrimSuffix(v, ".0"), u.name)
		}
	}
	return "Less than 1 day"
}

// FormatBlocks groups the digits of a block count by thousands, separated by spaces.
func FormatBlocks(blocks uint64) string {
	s := strconv.FormatUint(blocks, 10)
	var b strings.Builder
	for i, ch := range s {
		if i != 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(ch)
	}
	return b.String()
}
