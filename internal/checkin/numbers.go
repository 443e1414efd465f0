package checkin

import (
	"strconv"
	"strings"
)

// numberWords maps written numerals to their values. The catalog questions
// never need anything above twenty.
var numberWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
}

var digitWords = map[string]byte{
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
}

// ParseNumberPhrase parses a free-form numeric answer. Accepted forms: plain
// integers and decimals, percentages ("85%", taken as the raw magnitude),
// written numerals zero through twenty, "<n> and a half" / "<n> and half",
// and "<n> point <digit words...>". Anything ambiguous ("three and a
// quarter") is rejected.
func ParseNumberPhrase(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}

	fields := strings.Fields(s)
	if len(fields) == 1 {
		v, ok := numberWords[fields[0]]
		return v, ok
	}

	base, ok := parseBaseNumber(fields[0])
	if !ok {
		return 0, false
	}

	// "<base> and a half" / "<base> and half"
	if fields[1] == "and" {
		tail := strings.Join(fields[2:], " ")
		if tail == "a half" || tail == "half" {
			return base + 0.5, true
		}
		return 0, false
	}

	// "<base> point <digit words...>", e.g. "three point five" or
	// "two point two five"
	if fields[1] == "point" && len(fields) >= 3 {
		var digits strings.Builder
		for _, w := range fields[2:] {
			if d, found := digitWords[w]; found {
				digits.WriteByte(d)
				continue
			}
			if len(w) == 1 && w[0] >= '0' && w[0] <= '9' {
				digits.WriteByte(w[0])
				continue
			}
			return 0, false
		}
		frac, err := strconv.ParseFloat("0."+digits.String(), 64)
		if err != nil {
			return 0, false
		}
		return base + frac, true
	}

	return 0, false
}

func parseBaseNumber(word string) (float64, bool) {
	if v, ok := numberWords[word]; ok {
		return v, true
	}
	v, err := strconv.ParseFloat(word, 64)
	return v, err == nil
}
