package evaluator

import (
	"encoding/json"
)

// ValueToJSON marshals a ZValue to JSON bytes.
// Unit becomes null; lambdas and builtins are rendered as their display text.
func ValueToJSON(v ZValue) ([]byte, error) {
	return json.Marshal(valueToRaw(v))
}

// ValuesToJSON marshals a statement value sequence as a JSON array.
func ValuesToJSON(vals []ZValue) ([]byte, error) {
	raw := make([]any, len(vals))
	for i, v := range vals {
		raw[i] = valueToRaw(v)
	}
	return json.Marshal(raw)
}

func valueToRaw(v ZValue) any {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case ZUnit:
		return nil
	case ZInt:
		return val.Value
	case ZBool:
		return val.Value
	case ZString:
		return val.Value
	case ZLambda, ZBuiltin:
		return Display(val)
	}
	return nil
}
