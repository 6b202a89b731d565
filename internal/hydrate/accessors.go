package hydrate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

// FirstOf runs accessors in ranked order and returns the first usable
// value. It is the explicit form of "probe an arbitrary response shape":
// each attempt is typed and isolated, and a failing attempt simply yields
// to the next.
func FirstOf(accessors ...model.ExtractorFunc) model.ExtractorFunc {
	return func(rec *model.CallRecord) (any, error) {
		for _, acc := range accessors {
			v, err := acc(rec)
			if err == nil && usable(v) {
				return v, nil
			}
		}
		return nil, nil
	}
}

// Alias returns the first non-empty named argument among keys. Providers
// spell the same field differently (model, model_name, deployment_name);
// the ranked key list resolves the spelling per call site.
func Alias(keys ...string) model.ExtractorFunc {
	return func(rec *model.CallRecord) (any, error) {
		for _, key := range keys {
			if v := rec.Kwarg(key); usable(v) {
				return v, nil
			}
		}
		return nil, nil
	}
}

// Const ignores the record and returns a fixed value.
func Const(v any) model.ExtractorFunc {
	return func(*model.CallRecord) (any, error) { return v, nil }
}

// Nested probes a value along a path of map keys, struct field names, and
// list indices ("choices", "0", "finish_reason"). Returns nil when any hop
// is missing — probing never panics on unexpected shapes.
func Nested(value any, path ...string) any {
	cur := value
	for _, key := range path {
		if cur == nil {
			return nil
		}
		cur = step(cur, key)
	}
	return cur
}

func step(value any, key string) any {
	switch v := value.(type) {
	case map[string]any:
		return v[key]
	case map[string]string:
		if s, ok := v[key]; ok {
			return s
		}
		return nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, strings.ReplaceAll(key, "_", ""))
		})
		if f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
	case reflect.Slice, reflect.Array:
		var idx int
		if _, err := fmt.Sscanf(key, "%d", &idx); err == nil && idx >= 0 && idx < rv.Len() {
			return rv.Index(idx).Interface()
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			mv := rv.MapIndex(reflect.ValueOf(key))
			if mv.IsValid() {
				return mv.Interface()
			}
		}
	}
	return nil
}

// usable reports whether an extracted value counts as present: nil, empty
// strings, empty collections, and zero counts do not.
func usable(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []string:
		return len(t) > 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// RoleMessage renders one role-tagged message as the compact JSON form the
// data.input/data.output schema uses: {"user": "..."}.
func RoleMessage(role, content string) string {
	b, err := json.Marshal(map[string]string{role: content})
	if err != nil {
		return fmt.Sprintf("{%q: %q}", role, content)
	}
	return string(b)
}

// JSONString renders any value as a JSON string, falling back to fmt when
// the value does not marshal.
func JSONString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
