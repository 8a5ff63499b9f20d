// Package clone copies values across the boundary of an isolated execution
// context. Only plain data survives the trip: values are encoded to JSON text
// on one side and decoded on the other, so the two sides never share memory.
package clone

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ErrUnclonable is returned when a value cannot cross the message boundary.
var ErrUnclonable = errors.New("value cannot be copied across the context boundary")

// Raw is a value that is already encoded as JSON text. Encode passes it
// through unchanged after checking it is valid JSON. Being a string, two Raw
// values compare equal when their text is equal.
type Raw string

// UnclonableError describes the first element of a value that cannot be copied.
type UnclonableError struct {
	// Path locates the offending element, e.g. "input.handlers[2]"
	Path string
	// Reason is a short description of why the element was rejected
	Reason string
}

func (e *UnclonableError) Error() string {
	return fmt.Sprintf("%s: %s at %s", ErrUnclonable.Error(), e.Reason, e.Path)
}

// Unwrap allows errors.Is(err, ErrUnclonable).
func (e *UnclonableError) Unwrap() error {
	return ErrUnclonable
}

// Encode converts v into its boundary representation. The root of the value
// is named by root in error paths.
func Encode(root string, v any) (json.RawMessage, error) {
	if raw, ok := v.(Raw); ok {
		if !json.Valid([]byte(raw)) {
			return nil, &UnclonableError{Path: root, Reason: "raw value is not valid JSON"}
		}
		return json.RawMessage(raw), nil
	}

	if err := Check(root, v); err != nil {
		return nil, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, &UnclonableError{Path: root, Reason: err.Error()}
	}
	return data, nil
}

// Decode copies a boundary representation into out.
func Decode(data json.RawMessage, out any) error {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode boundary value: %w", err)
	}
	return nil
}

// Check walks v and reports the first element that cannot be copied.
func Check(root string, v any) error {
	w := walker{seen: make(map[uintptr]bool)}
	return w.walk(root, reflect.ValueOf(v))
}

type walker struct {
	// seen holds pointers on the current path, for cycle detection
	seen map[uintptr]bool
}

func (w *walker) walk(path string, v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}

	// Types with their own JSON encoding decide for themselves.
	if v.Type().Implements(marshalerType) {
		return nil
	}

	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return &UnclonableError{Path: path, Reason: fmt.Sprintf("nil %s value", v.Kind())}
		}
		return &UnclonableError{Path: path, Reason: fmt.Sprintf("%s value", v.Kind())}

	case reflect.Complex64, reflect.Complex128:
		return &UnclonableError{Path: path, Reason: "complex number"}

	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return w.walk(path, v.Elem())

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if w.seen[ptr] {
			return &UnclonableError{Path: path, Reason: "cyclic reference"}
		}
		w.seen[ptr] = true
		defer delete(w.seen, ptr)
		return w.walk(path, v.Elem())

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("json") == "-" {
				continue
			}
			if err := w.walk(path+"."+f.Name, v.Field(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		// []byte encodes as base64 text.
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		ptr := v.Pointer()
		if w.seen[ptr] {
			return &UnclonableError{Path: path, Reason: "cyclic reference"}
		}
		w.seen[ptr] = true
		defer delete(w.seen, ptr)
		fallthrough

	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := w.walk(path+"["+strconv.Itoa(i)+"]", v.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		if !validMapKey(v.Type().Key()) {
			return &UnclonableError{Path: path, Reason: fmt.Sprintf("map key type %s", v.Type().Key())}
		}
		ptr := v.Pointer()
		if w.seen[ptr] {
			return &UnclonableError{Path: path, Reason: "cyclic reference"}
		}
		w.seen[ptr] = true
		defer delete(w.seen, ptr)
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			if err := w.walk(path+"["+strconv.Quote(key)+"]", iter.Value()); err != nil {
				return err
			}
		}
		return nil
	}

	return nil
}

var (
	marshalerType     = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*interface{ MarshalText() ([]byte, error) })(nil)).Elem()
)

// validMapKey mirrors the key types encoding/json accepts.
func validMapKey(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return t.Implements(textMarshalerType)
}
