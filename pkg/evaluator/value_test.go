package evaluator_test

import (
	"testing"

	"github.com/thomasrohde/zeal/pkg/evaluator"
)

func TestRendering(t *testing.T) {
	tests := []struct {
		value    evaluator.ZValue
		typeName string
		display  string
		debug    string
	}{
		{evaluator.NewUnit(), "Unit", "()", "Unit"},
		{evaluator.NewInt(-12), "Int", "-12", "Int(-12)"},
		{evaluator.NewBool(true), "Bool", "true", "Bool(true)"},
		{evaluator.NewString("fizz buzz"), "String", "fizz buzz", `String("fizz buzz")`},
		{evaluator.ZLambda{Params: []string{"a", "b"}}, "Lambda", "<fn a b>", "Lambda(a b)"},
		{evaluator.ZLambda{}, "Lambda", "<fn>", "Lambda()"},
		{evaluator.ZBuiltin{Name: "print"}, "Builtin", "<builtin print>", "Builtin(print)"},
	}

	for _, tt := range tests {
		t.Run(tt.debug, func(t *testing.T) {
			if got := evaluator.TypeName(tt.value); got != tt.typeName {
				t.Errorf("TypeName = %q, want %q", got, tt.typeName)
			}
			if got := evaluator.Display(tt.value); got != tt.display {
				t.Errorf("Display = %q, want %q", got, tt.display)
			}
			if got := evaluator.Debug(tt.value); got != tt.debug {
				t.Errorf("Debug = %q, want %q", got, tt.debug)
			}
		})
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name           string
		a, b           evaluator.ZValue
		equal, compare bool
	}{
		{"same ints", evaluator.NewInt(3), evaluator.NewInt(3), true, true},
		{"different ints", evaluator.NewInt(3), evaluator.NewInt(4), false, true},
		{"bools", evaluator.NewBool(false), evaluator.NewBool(false), true, true},
		{"strings", evaluator.NewString("a"), evaluator.NewString("b"), false, true},
		{"int and string", evaluator.NewInt(1), evaluator.NewString("1"), false, false},
		{"units", evaluator.NewUnit(), evaluator.NewUnit(), false, false},
		{"builtins", evaluator.ZBuiltin{Name: "print"}, evaluator.ZBuiltin{Name: "print"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq, ok := evaluator.ValuesEqual(tt.a, tt.b)
			if eq != tt.equal || ok != tt.compare {
				t.Errorf("ValuesEqual = (%v, %v), want (%v, %v)", eq, ok, tt.equal, tt.compare)
			}
		})
	}
}

func TestValuesToJSON(t *testing.T) {
	got, err := evaluator.ValuesToJSON([]evaluator.ZValue{
		evaluator.NewUnit(),
		evaluator.NewInt(7),
		evaluator.NewBool(false),
		evaluator.NewString(`say "hi"`),
		evaluator.ZLambda{Params: []string{"x"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `[null,7,false,"say \"hi\"","<fn x>"]`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}

	single, err := evaluator.ValueToJSON(evaluator.NewInt(-1))
	if err != nil {
		t.Fatal(err)
	}
	if string(single) != "-1" {
		t.Errorf("got %s", single)
	}
}
