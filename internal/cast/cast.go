// Package cast implements the value coercions used by block implementations.
//
// Block values are dynamically typed: numbers (float64), strings, booleans and
// nil. Every primitive and the branch-distance evaluator coerce through this
// package so that a comparison block and its distance never disagree.
package cast

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ToNumber converts v to a number. Values that do not parse yield 0.
func ToNumber(v any) float64 {
	n := jsNumber(v)
	if math.IsNaN(n) {
		return 0
	}
	return n
}

// ToBoolean converts v to a boolean. The strings "", "0" and "false" (any
// case) are false.
func ToBoolean(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		if x == "" || x == "0" || strings.EqualFold(x, "false") {
			return false
		}
		return true
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	default:
		return true
	}
}

// ToString converts v to its display string.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return FormatNumber(x)
	case int:
		return strconv.Itoa(x)
	case []any:
		parts := make([]string, len(x))
		single := true
		for i, item := range x {
			parts[i] = ToString(item)
			if len([]rune(parts[i])) != 1 {
				single = false
			}
		}
		if single {
			return strings.Join(parts, "")
		}
		return strings.Join(parts, " ")
	case interface{ String() string }:
		return x.String()
	default:
		return ""
	}
}

// FormatNumber renders n the way the block language prints numbers.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(n, 'e', -1, 64)
		// Go writes e+07, the block language writes e+7
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		digits := strings.TrimLeft(exp[1:], "0")
		return mant + "e" + string(sign) + digits
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// IsWhiteSpace reports whether v is a string made only of whitespace.
func IsWhiteSpace(v any) bool {
	s, ok := v.(string)
	if !ok {
		return v == nil
	}
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

// IsNumeric reports whether v converts to a number that is not NaN. The empty
// and whitespace-only strings count as numeric (they convert to 0).
func IsNumeric(v any) bool {
	return !math.IsNaN(jsNumber(v))
}

// IsInt reports whether v should be treated as an integer.
func IsInt(v any) bool {
	switch x := v.(type) {
	case float64:
		return x == math.Trunc(x)
	case int, bool:
		return true
	case string:
		return !strings.Contains(x, ".")
	}
	return false
}

// ComparesNumerically reports whether Compare orders a and b as numbers.
func ComparesNumerically(a, b any) bool {
	n1, n2 := jsNumber(a), jsNumber(b)
	if n1 == 0 && IsWhiteSpace(a) {
		return false
	}
	if n2 == 0 && IsWhiteSpace(b) {
		return false
	}
	return !math.IsNaN(n1) && !math.IsNaN(n2)
}

// Compare returns a negative number if a < b, zero if equal and a positive
// number if a > b. Non-numeric operands compare as case-insensitive strings.
func Compare(a, b any) float64 {
	if !ComparesNumerically(a, b) {
		// a Caser keeps state, so each call gets its own
		lower := cases.Lower(language.Und)
		s1 := lower.String(ToString(a))
		s2 := lower.String(ToString(b))
		switch {
		case s1 < s2:
			return -1
		case s1 > s2:
			return 1
		default:
			return 0
		}
	}
	n1, n2 := jsNumber(a), jsNumber(b)
	if (math.IsInf(n1, 1) && math.IsInf(n2, 1)) || (math.IsInf(n1, -1) && math.IsInf(n2, -1)) {
		return 0
	}
	return n1 - n2
}

// jsNumber converts v to a float64, returning NaN for text that is not a
// number literal.
func jsNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case int:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return parseNumber(x)
	default:
		return math.NaN()
	}
}

func parseNumber(s string) float64 {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	for _, r := range s {
		// ParseFloat accepts inf/nan spellings and underscores that are not
		// number literals here.
		if r == '_' || r == 'i' || r == 'I' || r == 'n' || r == 'N' || r == 'x' || r == 'X' || r == 'p' || r == 'P' {
			return math.NaN()
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return n
}
