package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)

	groupPrinter = message.NewPrinter(language.English)
)

// smallPriceDigits is the number of significant digits shown for prices
// below one dollar.
const smallPriceDigits = 4

// FormatPrice renders a USD price for display. Prices below 1 keep four
// significant digits, prices below 1000 show cents and larger prices are
// locale-grouped whole dollars.
func FormatPrice(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + formatUnsignedPrice(d)
}

func formatUnsignedPrice(d decimal.Decimal) string {
	if d.IsZero() {
		return "0.00"
	}

	if d.LessThan(decimal.NewFromInt(1)) {
		// digits left of the point; negative counts leading fractional zeros
		magnitude := len(d.Coefficient().String()) + int(d.Exponent())
		places := int32(smallPriceDigits - magnitude)
		rounded := d.Round(places)
		if rounded.LessThan(decimal.NewFromInt(1)) {
			return trimFraction(rounded.StringFixed(places), 2)
		}
		d = rounded
	}

	if d.Round(2).LessThan(thousand) {
		return d.StringFixed(2)
	}

	return groupPrinter.Sprintf("%d", d.Round(0).IntPart())
}

// trimFraction strips trailing zeros from a fixed-point string but keeps at
// least minPlaces fractional digits.
func trimFraction(s string, minPlaces int) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	end := len(s)
	for end > dot+1+minPlaces && s[end-1] == '0' {
		end--
	}
	return s[:end]
}

// FormatCompact renders large USD amounts with a B/M/k suffix at one
// decimal. A value that rounds up to 1000 of one unit is shown in the next
// unit ("$1.0M", never "$1000.0k"). Amounts under 1000 fall back to
// FormatPrice.
func FormatCompact(d decimal.Decimal) string {
	abs := d.Abs()
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}

	if abs.LessThan(thousand) {
		return FormatPrice(d)
	}

	units := []struct {
		size   decimal.Decimal
		suffix string
	}{
		{billion, "B"},
		{million, "M"},
		{thousand, "k"},
	}
	i := 0
	for i < len(units)-1 && abs.LessThan(units[i].size) {
		i++
	}
	q := abs.Div(units[i].size).Round(1)
	if i > 0 && q.GreaterThanOrEqual(thousand) {
		i--
		q = abs.Div(units[i].size).Round(1)
	}
	return sign + "$" + q.StringFixed(1) + units[i].suffix
}

// FormatPercent renders a 24h change such as "+2.35%". Missing values render
// as "n/a".
func FormatPercent(p decimal.NullDecimal) string {
	if !p.Valid {
		return "n/a"
	}
	s := p.Decimal.StringFixed(2) + "%"
	if p.Decimal.IsPositive() {
		return "+" + s
	}
	return s
}
