package rpc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Decoding rules for typed params:
//   - object keys match json field names exactly; a key that differs from a
//     field only by case is rejected
//   - a field is required unless it is a pointer or interface, or its tag
//     carries omitempty, or it is marked `rpc:"optional"`
//   - a required field may not be absent or null
//   - absent or null params are accepted only when the input (or the struct
//     it points to) has no required fields, or it is a slice, map or interface
//   - keys that match no field are ignored

// inputSchema lists the top-level fields of a struct input type.
type inputSchema struct {
	required []string
	// folded maps a lower-cased field name to its exact name.
	folded map[string]string
}

var schemaCache sync.Map // reflect.Type -> *inputSchema

func schemaFor(t reflect.Type) *inputSchema {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*inputSchema)
	}
	s := &inputSchema{folded: make(map[string]string)}
	collectFields(t, s)
	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*inputSchema)
}

func collectFields(t reflect.Type, s *inputSchema) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectFields(ft, s)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		s.folded[strings.ToLower(name)] = name

		switch {
		case f.Type.Kind() == reflect.Pointer, f.Type.Kind() == reflect.Interface:
		case hasOption(opts, "omitempty"), f.Tag.Get("rpc") == "optional":
		default:
			s.required = append(s.required, name)
		}
	}
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

// structType returns the struct behind t, dereferencing one pointer.
func structType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

// checkAbsent reports whether a value of type t may be built from absent or
// null params.
func checkAbsent(t reflect.Type) error {
	if st, ok := structType(t); ok {
		if req := schemaFor(st).required; len(req) > 0 {
			return fmt.Errorf("missing required field %q", req[0])
		}
		return nil
	}
	switch t.Kind() {
	case reflect.Interface, reflect.Map, reflect.Slice:
		return nil
	case reflect.Pointer:
		return checkAbsent(t.Elem())
	default:
		return fmt.Errorf("params are required (expected %s)", t)
	}
}

// checkObject enforces exact key names and required fields when t is a
// struct. Payloads that are not objects are left to json.Unmarshal.
func checkObject(t reflect.Type, raw json.RawMessage) error {
	st, ok := structType(t)
	if !ok {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}

	schema := schemaFor(st)
	for key := range obj {
		if exact, ok := schema.folded[strings.ToLower(key)]; ok && exact != key {
			return fmt.Errorf("unknown field %q (field names are case-sensitive, expected %q)", key, exact)
		}
	}
	for _, name := range schema.required {
		v, ok := obj[name]
		if !ok {
			return fmt.Errorf("missing required field %q", name)
		}
		if isNull(v) {
			return fmt.Errorf("field %q must not be null", name)
		}
	}
	return nil
}

// validate runs the Validator hook whether it is declared on I or, when I is a
// pointer type, on the pointed-to value.
func validate[I any](in *I) error {
	if v, ok := any(in).(Validator); ok {
		return v.Validate()
	}
	if v, ok := any(*in).(Validator); ok {
		if rv := reflect.ValueOf(*in); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return v.Validate()
	}
	return nil
}
