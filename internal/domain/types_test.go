package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestEnumValidity(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"single-choice", ItemKind("single-choice").IsValid()},
		{"integer-range", INTEGER_RANGE.IsValid()},
		{"lookup strategy", LOOKUP.IsValid()},
		{"term-sum strategy", TERM_SUM.IsValid()},
		{"ge operator", OP_GE.IsValid()},
		{"not-assessable", OUTCOME_NOT_ASSESSABLE.IsValid()},
		{"empty match mode", MatchMode("").IsValid()},
		{"half-up", ROUND_HALF_UP.IsValid()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.valid {
				t.Errorf("Expected %s to be valid", tt.name)
			}
		})
	}

	if ItemKind("free-text").IsValid() {
		t.Error("free-text should not be a valid item kind")
	}
	if Strategy("average").IsValid() {
		t.Error("average should not be a valid strategy")
	}
	if GateOperator("between").IsValid() {
		t.Error("between should not be a valid operator")
	}
}

func TestGateOperatorCompare(t *testing.T) {
	tests := []struct {
		op        GateOperator
		value     float64
		threshold float64
		expected  bool
	}{
		{OP_LT, 11, 12, true},
		{OP_LT, 12, 12, false},
		{OP_LE, 11, 11, true},
		{OP_GT, 12, 11, true},
		{OP_GE, -3, -3, true},
		{OP_GE, -4, -3, false},
		{OP_EQ, 2, 2, true},
		{OP_NE, 2, 2, false},
	}
	for _, tt := range tests {
		if got := tt.op.Compare(tt.value, tt.threshold); got != tt.expected {
			t.Errorf("%g %s %g: expected %v, got %v", tt.value, tt.op, tt.threshold, tt.expected, got)
		}
	}
}

func TestParseFlagWord(t *testing.T) {
	for _, s := range []string{"yes", "Y", "true", "1"} {
		if v, ok := ParseFlagWord(s); !ok || !v {
			t.Errorf("%q should parse as yes", s)
		}
	}
	for _, s := range []string{"no", "N", "false", "0"} {
		if v, ok := ParseFlagWord(s); !ok || v {
			t.Errorf("%q should parse as no", s)
		}
	}
	if _, ok := ParseFlagWord("maybe"); ok {
		t.Error("maybe should not parse")
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		notation string
		inside   []float64
		outside  []float64
	}{
		{"[6, 12]", []float64{6, 9, 12}, []float64{5.999, 12.001}},
		{"(500, +inf)", []float64{500.0001, 1e9}, []float64{500, -1}},
		{"(-inf, -500)", []float64{-501, -1e9}, []float64{-500, 0}},
		{"[0, 40)", []float64{0, 39.99}, []float64{40, -0.01}},
		{"[2, 2]", []float64{2}, []float64{1.99, 2.01}},
	}
	for _, tt := range tests {
		t.Run(tt.notation, func(t *testing.T) {
			iv, err := ParseInterval(tt.notation)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, v := range tt.inside {
				if !iv.Contains(v) {
					t.Errorf("%s should contain %g", tt.notation, v)
				}
			}
			for _, v := range tt.outside {
				if iv.Contains(v) {
					t.Errorf("%s should not contain %g", tt.notation, v)
				}
			}
			if iv.String() != tt.notation {
				t.Errorf("expected round trip %s, got %s", tt.notation, iv.String())
			}
		})
	}

	if MustParseInterval("[0, 1]").Contains(math.NaN()) {
		t.Error("NaN must never be contained")
	}
}

func TestParseIntervalRejects(t *testing.T) {
	for _, s := range []string{"", "6, 12", "[6 12]", "[12, 6]", "[1, 1)", "[-inf, 0]", "[0, +inf]", "[a, 2]", "{0, 1}"} {
		if _, err := ParseInterval(s); err == nil {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestResponseSetJSON(t *testing.T) {
	var rs ResponseSet
	if err := json.Unmarshal([]byte(`{"oral_intake": 500, "previous_falls": true, "mobility": "very_limited"}`), &rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	oral, ok := rs.Get("oral_intake")
	if !ok || oral.Kind() != VALUE_NUMBER {
		t.Fatalf("oral_intake should be a number, got %+v", oral)
	}
	falls, _ := rs.Get("previous_falls")
	if b, ok := falls.AsFlag(); !ok || !b {
		t.Error("previous_falls should be a yes flag")
	}
	mobility, _ := rs.Get("mobility")
	if c, ok := mobility.AsChoice(); !ok || c != "very_limited" {
		t.Errorf("unexpected mobility %q", c)
	}

	ids := rs.ItemIDs()
	if len(ids) != 3 || ids[0] != "mobility" || ids[2] != "previous_falls" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestResponseSetJSONNullLeavesItemUnanswered(t *testing.T) {
	var rs ResponseSet
	if err := json.Unmarshal([]byte(`{"age": null, "smoker": false}`), &rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Has("age") {
		t.Error("a null answer should leave age unanswered")
	}
	if rs.Len() != 1 || !rs.Has("smoker") {
		t.Errorf("unexpected answers %v", rs.ItemIDs())
	}

	var invalid *InvalidAnswerError
	err := json.Unmarshal([]byte(`{"age": {"years": 40}}`), &rs)
	if !errors.As(err, &invalid) || invalid.Item != "age" {
		t.Errorf("expected an invalid answer for age, got %v", err)
	}
}

func TestResponseSetCloneIsIndependent(t *testing.T) {
	rs := NewResponseSet()
	rs.Set("a", Int(1))
	clone := rs.Clone()
	clone.Set("a", Int(2))
	clone.Set("b", Flag(true))

	a, _ := rs.Get("a")
	if n, _ := a.AsNumber(); n != 1 {
		t.Errorf("original mutated: %g", n)
	}
	if rs.Has("b") {
		t.Error("original gained an answer")
	}

	rs.Clear("a")
	if rs.Len() != 0 {
		t.Error("clear should remove the answer")
	}
}

func TestValueConversions(t *testing.T) {
	if n, ok := Choice("12").AsNumber(); !ok || n != 12 {
		t.Error("numeric strings should convert to numbers")
	}
	if _, ok := Choice("twelve").AsNumber(); ok {
		t.Error("non-numeric strings should not convert")
	}
	if b, ok := Choice("no").AsFlag(); !ok || b {
		t.Error("\"no\" should convert to false")
	}
	if c, ok := Flag(true).AsChoice(); !ok || c != "yes" {
		t.Error("flags convert to yes/no choices")
	}
	if _, ok := Number(2).AsFlag(); ok {
		t.Error("2 is not a flag")
	}
}
