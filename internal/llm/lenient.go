package llm

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reNumeric = regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`)

// currencyMarks are stripped from numeric strings before parsing ("$25", "₹1,200.50").
var currencyMarks = []string{"$", "€", "£", "₹", "¥", "₦", "USD", "EUR", "GBP", "INR", "Rs.", "Rs"}

// coerceNumber turns a numeric string into a float64. Values that are already
// numbers or null are returned unchanged. ok is false for anything else.
func coerceNumber(v any) (any, bool) {
	switch t := v.(type) {
	case nil, float64:
		return t, true
	case int:
		return float64(t), true
	case bool:
		return nil, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return nil, true
		}
		for _, mark := range currencyMarks {
			s = strings.TrimPrefix(s, mark)
			s = strings.TrimSuffix(s, mark)
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		s = strings.ReplaceAll(s, " ", "")
		if !reNumeric.MatchString(s) {
			return nil, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

// coerceInteger is coerceNumber rounded to the nearest whole number.
func coerceInteger(v any) (any, bool) {
	n, ok := coerceNumber(v)
	if !ok {
		return nil, false
	}
	if f, isFloat := n.(float64); isFloat {
		return math.Round(f), true
	}
	return n, true
}

// coerceString renders scalar values as strings; phone numbers and serials
// sometimes arrive as bare numbers.
func coerceString(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return nil, false
	}
}
