package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ValueKind tags which field of a Value is populated.
type ValueKind int

const (
	VALUE_CHOICE ValueKind = iota + 1
	VALUE_NUMBER
	VALUE_FLAG
)

// Value is one supplied answer: an option value, a number, or a yes/no flag.
type Value struct {
	kind   ValueKind
	choice string
	number float64
	flag   bool
}

// Choice builds an option-value answer.
func Choice(v string) Value { return Value{kind: VALUE_CHOICE, choice: v} }

// Number builds a numeric answer.
func Number(n float64) Value { return Value{kind: VALUE_NUMBER, number: n} }

// Int builds an integer answer.
func Int(n int) Value { return Number(float64(n)) }

// Flag builds a boolean answer.
func Flag(b bool) Value { return Value{kind: VALUE_FLAG, flag: b} }

// Kind returns which representation the value carries.
func (v Value) Kind() ValueKind { return v.kind }

// AsChoice returns the value as an option value.
func (v Value) AsChoice() (string, bool) {
	switch v.kind {
	case VALUE_CHOICE:
		return v.choice, true
	case VALUE_FLAG:
		return FlagWord(v.flag), true
	default:
		return "", false
	}
}

// AsNumber returns the value as a number. Numeric strings are accepted.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case VALUE_NUMBER:
		return v.number, true
	case VALUE_CHOICE:
		n, err := strconv.ParseFloat(v.choice, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsFlag returns the value as a boolean. "yes"/"no" style strings and 0/1 are accepted.
func (v Value) AsFlag() (bool, bool) {
	switch v.kind {
	case VALUE_FLAG:
		return v.flag, true
	case VALUE_CHOICE:
		return ParseFlagWord(v.choice)
	case VALUE_NUMBER:
		switch v.number {
		case 0:
			return false, true
		case 1:
			return true, true
		}
	}
	return false, false
}

// String renders the value for reports and logs.
func (v Value) String() string {
	switch v.kind {
	case VALUE_CHOICE:
		return v.choice
	case VALUE_NUMBER:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case VALUE_FLAG:
		return FlagWord(v.flag)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a JSON string, number or bool.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case VALUE_CHOICE:
		return json.Marshal(v.choice)
	case VALUE_NUMBER:
		return json.Marshal(v.number)
	case VALUE_FLAG:
		return json.Marshal(v.flag)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON string, number or bool.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded JSON/YAML scalar into a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return Choice(x), nil
	case bool:
		return Flag(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Int(x), nil
	case int64:
		return Number(float64(x)), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Number(n), nil
	default:
		return Value{}, fmt.Errorf("unsupported answer type %T", raw)
	}
}

// ResponseSet maps item ids to supplied answers. It changes only through Set, Clear and
// Reset; the engine reads it and never modifies it.
type ResponseSet struct {
	answers map[string]Value
}

// NewResponseSet returns an empty response set.
func NewResponseSet() *ResponseSet {
	return &ResponseSet{answers: make(map[string]Value)}
}

// ResponsesFromMap builds a response set from decoded JSON/YAML answers.
func ResponsesFromMap(raw map[string]any) (*ResponseSet, error) {
	rs := NewResponseSet()
	for id, v := range raw {
		if v == nil {
			continue
		}
		val, err := ValueOf(v)
		if err != nil {
			return nil, NewInvalidAnswerError(id, err.Error())
		}
		rs.Set(id, val)
	}
	return rs, nil
}

// Set records an answer, replacing any earlier answer for the item.
func (r *ResponseSet) Set(itemID string, v Value) {
	if r.answers == nil {
		r.answers = make(map[string]Value)
	}
	r.answers[itemID] = v
}

// Clear removes the answer for an item.
func (r *ResponseSet) Clear(itemID string) {
	delete(r.answers, itemID)
}

// Reset discards every answer.
func (r *ResponseSet) Reset() {
	r.answers = make(map[string]Value)
}

// Get returns the answer for an item.
func (r *ResponseSet) Get(itemID string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.answers[itemID]
	return v, ok
}

// Has reports whether the item has been answered.
func (r *ResponseSet) Has(itemID string) bool {
	_, ok := r.Get(itemID)
	return ok
}

// Len returns the number of answered items.
func (r *ResponseSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.answers)
}

// ItemIDs returns the answered item ids in sorted order.
func (r *ResponseSet) ItemIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.answers))
	for id := range r.answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy.
func (r *ResponseSet) Clone() *ResponseSet {
	c := NewResponseSet()
	if r == nil {
		return c
	}
	for id, v := range r.answers {
		c.answers[id] = v
	}
	return c
}

// MarshalJSON encodes the answers as a JSON object with sorted keys.
func (r *ResponseSet) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.answers)
}

// UnmarshalJSON decodes a JSON object of answers. A null answer leaves the item
// unanswered.
func (r *ResponseSet) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rs, err := ResponsesFromMap(raw)
	if err != nil {
		return err
	}
	r.answers = rs.answers
	return nil
}
