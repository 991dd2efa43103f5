package policy

import "encoding/json"

// FromJSON decodes a single JSON value into the SPL Value universe: null ->
// Nil, bool -> Bool, number -> Number, string -> Str, array -> List
// (recursively); any other JSON value (an object) has no SPL literal form
// and becomes Nil. Used to build env.Req/env.Vars from JSON request bodies,
// both over HTTP (internal/gatewayhttp) and from the offline CLI
// (cmd/policy-cli).
func FromJSON(raw json.RawMessage) (Value, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Value{}, err
	}
	return valueFromAny(generic), nil
}

func valueFromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Nil()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return Str(t)
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, valueFromAny(item))
		}
		return List(items)
	default:
		return Nil()
	}
}

// MapFromJSON converts a map of raw JSON messages — typically a decoded
// req/vars object from a mint/verify request — into a map of SPL Values.
func MapFromJSON(raw map[string]json.RawMessage) (map[string]Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]Value, len(raw))
	for k, v := range raw {
		val, err := FromJSON(v)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}
