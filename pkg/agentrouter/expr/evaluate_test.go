package expr

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"testing"
)

func creditVars() map[string]any {
	return map[string]any{
		"credit_score":           720,
		"approved":               false,
		"last_worker":            "credit_score_checker",
		"last_error":             "",
		"iterations":             2,
		"visited_validate_kyc":   false,
		"visited_final_decision": false,
	}
}

func TestEval_Comparisons(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"greater than", "credit_score > 700", creditVars(), true},
		{"greater than false", "credit_score > 800", creditVars(), false},
		{"less than", "credit_score < 600", creditVars(), false},
		{"at least", "credit_score >= 720", creditVars(), true},
		{"at most", "credit_score <= 719", creditVars(), false},
		{"string equality", "last_worker == 'credit_score_checker'", creditVars(), true},
		{"double quoted", `last_worker == "credit_score_checker"`, creditVars(), true},
		{"inequality", "last_worker != 'final_decision'", creditVars(), true},
		{"bool equality", "approved == false", creditVars(), true},
		{"int against float literal", "credit_score == 720.0", creditVars(), true},
		{"float field", "ratio > 0.5", map[string]any{"ratio": 0.75}, true},
		{"json number field", "credit_score > 700", map[string]any{"credit_score": json.Number("701")}, true},
		{"numeric string field", "credit_score > 700", map[string]any{"credit_score": "705"}, true},
		{"contains", "last_error contains 'timeout'", map[string]any{"last_error": "error: timeout after 5s"}, true},
		{"contains false", "last_error contains 'refused'", map[string]any{"last_error": "error: timeout"}, false},
		{"operator inside literal", "last_error contains 'x >= 5'", map[string]any{"last_error": "unrelated"}, false},
		{"operator inside literal matches", "last_error contains 'x >= 5'", map[string]any{"last_error": "want x >= 5 here"}, true},
		{"equals literal with operator", `note == "a < b"`, map[string]any{"note": "a < b"}, true},
		{"two variables", "iterations < credit_score", creditVars(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_ExistsAndMissing(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"exists", "credit_score exists", creditVars(), true},
		{"exists absent", "score exists", creditVars(), false},
		{"exists nil", "score exists", map[string]any{"score": nil}, false},
		{"missing absent", "score missing", creditVars(), true},
		{"missing present", "credit_score missing", creditVars(), false},
		{"guarded comparison", "score exists and score > 700", creditVars(), false},
		{"missing with nil vars", "score missing", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Logical(t *testing.T) {
	vars := map[string]any{"a": true, "b": false, "c": false, "score": 650}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"and", "a and b", false},
		{"or", "a or b", true},
		{"or binds loosest", "a or b and c", true},
		{"and chain", "score >= 600 and score <= 700 and a", true},
		{"not applies to one operand", "not b and a", true},
		{"bang", "!b", true},
		{"double negation", "not not a", true},
		{"not comparison", "not score > 700", true},
		{"keyword inside quotes", "label == 'this or that'", true},
	}

	vars["label"] = "this or that"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Truthiness(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want bool
	}{
		{"nil", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"empty string", "", false},
		{"string", "x", true},
		{"zero int", 0, false},
		{"int", 3, true},
		{"zero float", 0.0, false},
		{"map", map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval("v", map[string]any{"v": tt.val})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(v=%v) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestEval_Empty(t *testing.T) {
	got, err := Eval("   ", nil)
	if err != nil || got {
		t.Errorf("Eval(blank) = %v, %v; want false, nil", got, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"credit_score > 700", false},
		{"credit_score missing", false},
		{"approved == true and last_worker != 'gate'", false},
		{"", false},
		{"credit_score >", true},
		{"== 5", true},
		{"status == 'open", true},
		{"a and b >", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := Validate(tt.expr)
			if tt.wantErr {
				if !errors.Is(err, ErrSyntax) {
					t.Errorf("Validate(%q) = %v, want ErrSyntax", tt.expr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate(%q) = %v, want nil", tt.expr, err)
			}
		})
	}
}

func TestEvaluator_WithCustomOperator(t *testing.T) {
	e := New(WithCustomOperator("matches", func(left, right any) bool {
		ok, err := regexp.MatchString(fmt.Sprint(right), fmt.Sprint(left))
		return err == nil && ok
	}))

	tests := []struct {
		expr string
		want bool
	}{
		{"last_error matches 'timeout|refused'", true},
		{"last_error matches '^ok'", false},
		{"last_error matches 'refused' or iterations > 1", true},
	}

	vars := map[string]any{"last_error": "error: connection refused", "iterations": 2}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}

	if err := e.Validate("last_error matches"); err != nil {
		t.Errorf("trailing word is a bare value, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	vars := map[string]any{"name": "kyc"}

	tests := []struct {
		in   string
		want any
	}{
		{"'hello'", "hello"},
		{`"hello"`, "hello"},
		{"''", ""},
		{"TRUE", true},
		{"false", false},
		{"null", nil},
		{"nil", nil},
		{"42", int64(42)},
		{"-1", int64(-1)},
		{"3.5", 3.5},
		{"name", "kyc"},
		{"unknown_field", "unknown_field"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Resolve(tt.in, vars); got != tt.want {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{720, 720},
		{int64(5), 5},
		{int32(5), 5},
		{float32(1.5), 1.5},
		{"12.5", 12.5},
		{"abc", 0},
		{json.Number("9"), 9},
		{true, 0},
		{nil, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T/%v", tt.in, tt.in), func(t *testing.T) {
			if got := ToFloat64(tt.in); got != tt.want {
				t.Errorf("ToFloat64(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		left, right any
		op          string
		want        bool
		wantErr     bool
	}{
		{720, 700, ">", true, false},
		{"a", "a", "==", true, false},
		{"abc", "b", "contains", true, false},
		{1, 2, "<=", true, false},
		{1, 2, "~", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, err := Compare(tt.left, tt.right, tt.op)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compare error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Compare(%v %s %v) = %v, want %v", tt.left, tt.op, tt.right, got, tt.want)
			}
		})
	}
}
