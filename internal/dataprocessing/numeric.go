package dataprocessing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberNoise = strings.NewReplacer(`"`, "", "+", "", ",", "", "$", "", "%", "")
	// leadingFloat accepts the longest decimal prefix, so "12.5k" reads as 12.5.
	leadingFloat = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)
)

// ParseValue converts a formatted spreadsheet number to float64. Quotes,
// plus signs, thousands separators, currency and percent symbols and all
// whitespace are removed; "(500)" is read as -500. Anything that does not
// start with a number yields 0, and the result is always finite.
func ParseValue(raw string) float64 {
	s := numberNoise.Replace(raw)
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return 0
	}
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	num := leadingFloat.FindString(s)
	if num == "" {
		return 0
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
