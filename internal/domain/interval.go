package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Interval is a numeric range with explicit inclusivity on each side.
// Its textual form is standard interval notation: "[6, 12]", "(500, +inf)", "[0, 40)".
type Interval struct {
	Lower          float64
	Upper          float64
	LowerInclusive bool
	UpperInclusive bool
}

// ParseInterval parses interval notation. Infinite bounds must be open.
func ParseInterval(s string) (Interval, error) {
	text := strings.TrimSpace(s)
	if len(text) < 5 {
		return Interval{}, fmt.Errorf("interval %q: too short", s)
	}

	var iv Interval
	switch text[0] {
	case '[':
		iv.LowerInclusive = true
	case '(':
	default:
		return Interval{}, fmt.Errorf("interval %q: must start with '[' or '('", s)
	}
	switch text[len(text)-1] {
	case ']':
		iv.UpperInclusive = true
	case ')':
	default:
		return Interval{}, fmt.Errorf("interval %q: must end with ']' or ')'", s)
	}

	parts := strings.Split(text[1:len(text)-1], ",")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("interval %q: expected two comma-separated bounds", s)
	}

	lower, err := parseBound(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: lower bound: %w", s, err)
	}
	upper, err := parseBound(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: upper bound: %w", s, err)
	}
	iv.Lower, iv.Upper = lower, upper

	if math.IsInf(iv.Lower, 1) || math.IsInf(iv.Upper, -1) {
		return Interval{}, fmt.Errorf("interval %q: bounds are reversed", s)
	}
	if math.IsInf(iv.Lower, -1) && iv.LowerInclusive {
		return Interval{}, fmt.Errorf("interval %q: -inf cannot be inclusive", s)
	}
	if math.IsInf(iv.Upper, 1) && iv.UpperInclusive {
		return Interval{}, fmt.Errorf("interval %q: +inf cannot be inclusive", s)
	}
	if iv.Lower > iv.Upper {
		return Interval{}, fmt.Errorf("interval %q: lower bound exceeds upper bound", s)
	}
	if iv.Lower == iv.Upper && !(iv.LowerInclusive && iv.UpperInclusive) {
		return Interval{}, fmt.Errorf("interval %q: empty interval", s)
	}

	return iv, nil
}

// MustParseInterval is ParseInterval for literals known to be valid.
func MustParseInterval(s string) Interval {
	iv, err := ParseInterval(s)
	if err != nil {
		panic(err)
	}
	return iv
}

func parseBound(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	case "+inf", "inf", "+infinity", "infinity":
		return math.Inf(1), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("NaN bound")
	}
	return v, nil
}

// Contains reports whether v lies within the interval, honoring both inclusivity flags.
func (iv Interval) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if iv.LowerInclusive {
		if v < iv.Lower {
			return false
		}
	} else if v <= iv.Lower {
		return false
	}
	if iv.UpperInclusive {
		if v > iv.Upper {
			return false
		}
	} else if v >= iv.Upper {
		return false
	}
	return true
}

// String renders the interval in the same notation ParseInterval accepts.
func (iv Interval) String() string {
	var b strings.Builder
	if iv.LowerInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	b.WriteString(formatBound(iv.Lower))
	b.WriteString(", ")
	b.WriteString(formatBound(iv.Upper))
	if iv.UpperInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "+inf"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// MarshalJSON encodes the interval as its notation string.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(iv.String())
}

// UnmarshalJSON decodes interval notation.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*iv = parsed
	return nil
}
