package model

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// requiredKeyer is implemented by documents whose zero-valued fields are
// indistinguishable from absent ones once decoded
type requiredKeyer interface {
	requiredKeys() []string
}

var (
	requiredKeyerType   = reflect.TypeOf((*requiredKeyer)(nil)).Elem()
	jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// DecodeStrict decodes a single JSON document into v, rejecting fields the
// target type does not declare, required keys that are missing and any
// trailing data.
func DecodeStrict(r io.Reader, document string, v interface{}) error {
	dec := json.NewDecoder(r)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return NewDecodeError(document, "invalid JSON", err)
	}
	if dec.More() {
		return NewDecodeError(document, "unexpected data after document", nil)
	}

	strict := json.NewDecoder(bytes.NewReader(raw))
	strict.DisallowUnknownFields()
	if err := strict.Decode(v); err != nil {
		if field, ok := unknownField(err); ok {
			return NewValidationError(field, nil, RuleUnknownField, "field is not part of "+document)
		}
		return NewDecodeError(document, "invalid JSON", err)
	}
	return missingKeys(raw, reflect.TypeOf(v), "").orNil()
}

// DecodeStrictBytes is DecodeStrict over an in-memory payload
func DecodeStrictBytes(data []byte, document string, v interface{}) error {
	return DecodeStrict(bytes.NewReader(data), document, v)
}

// unknownField extracts the field name from encoding/json's unknown field error
func unknownField(err error) (string, bool) {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "", false
	}
	const prefix = "json: unknown field "
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return "", false
	}
	return strings.Trim(strings.TrimPrefix(msg, prefix), `"`), true
}

// missingKeys walks raw alongside t and reports required keys absent from
// any object along the way. raw has already decoded into t.
func missingKeys(raw json.RawMessage, t reflect.Type, path string) ValidationErrors {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(jsonUnmarshalerType) || reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		var elems []json.RawMessage
		if json.Unmarshal(raw, &elems) != nil {
			return nil
		}
		var errs ValidationErrors
		for i, elem := range elems {
			errs = append(errs, missingKeys(elem, t.Elem(), fmt.Sprintf("%s[%d]", path, i))...)
		}
		return errs
	case reflect.Struct:
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil || obj == nil {
			return nil
		}
		// encoding/json matches keys case-insensitively
		keys := make(map[string]json.RawMessage, len(obj))
		for k, v := range obj {
			keys[strings.ToLower(k)] = v
		}

		var errs ValidationErrors
		if t.Implements(requiredKeyerType) {
			for _, key := range reflect.Zero(t).Interface().(requiredKeyer).requiredKeys() {
				if _, ok := keys[strings.ToLower(key)]; !ok {
					errs = append(errs, NewValidationError(joinPath(path, key), nil, RuleRequired, "field is missing"))
				}
			}
		}
		return append(errs, missingFieldKeys(keys, t, path)...)
	}
	return nil
}

// missingFieldKeys descends into the fields of t present in keys. Embedded
// structs share their parent's object.
func missingFieldKeys(keys map[string]json.RawMessage, t reflect.Type, path string) ValidationErrors {
	var errs ValidationErrors
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if f.Anonymous && name == "" {
			ft := f.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				errs = append(errs, missingFieldKeys(keys, ft, path)...)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if v, ok := keys[strings.ToLower(name)]; ok {
			errs = append(errs, missingKeys(v, f.Type, joinPath(path, name))...)
		}
	}
	return errs
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
