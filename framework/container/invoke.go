package container

import (
	"fmt"
	"math"
	"reflect"
	"runtime"

	"github.com/go-viper/mapstructure/v2"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// validateFunc checks fn has the shape func(args...) T or func(args...) (T, error).
func validateFunc(fn reflect.Value) error {
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return ErrInvalidFactory
	}
	typ := fn.Type()
	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return ErrInvalidFactory
	}
	if typ.NumOut() == 2 && !typ.Out(1).Implements(errorType) {
		return fmt.Errorf("%w: second return value must implement error", ErrInvalidFactory)
	}
	return nil
}

func funcName(fn reflect.Value) string {
	if f := runtime.FuncForPC(fn.Pointer()); f != nil {
		return f.Name()
	}
	return fn.Type().String()
}

// call invokes fn with args converted to its parameter types. A trailing
// error result is returned as the error; a panic is converted into one.
func call(fn reflect.Value, args []any) (result any, err error) {
	in, err := arguments(fn.Type(), args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("panic in %s: %v", funcName(fn), rec)
		}
	}()

	out := fn.Call(in)
	if n := len(out); n > 0 && fn.Type().Out(n-1).Implements(errorType) {
		if e := out[n-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func arguments(typ reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := typ.NumIn()
	if typ.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("%s expects at least %d arguments, got %d", typ, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", typ, fixed, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var want reflect.Type
		if i < fixed {
			want = typ.In(i)
		} else {
			want = typ.In(typ.NumIn() - 1).Elem()
		}
		v, err := convert(arg, want)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

// convert adapts a resolved value to the parameter type t. Assignable values
// pass through, numbers convert between kinds and plain maps or slices are
// decoded into structs, typed maps and slices.
func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		return convertNumber(rv, t)
	}
	switch v.(type) {
	case map[string]any, []any:
		out := reflect.New(t)
		if err := decode(v, out.Interface()); err != nil {
			return reflect.Value{}, err
		}
		return out.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

// decode copies a plain map or slice into the value pointed to by target.
func decode(input, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// convertNumber converts between numeric kinds, refusing conversions that
// would drop a fraction, flip a sign or overflow the target.
func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	target := reflect.Zero(t)
	lossy := fmt.Errorf("cannot use %v (%s) as %s", rv.Interface(), rv.Type(), t)

	switch {
	case isFloat(rv.Kind()):
		f := rv.Float()
		switch {
		case isFloat(t.Kind()):
			if target.OverflowFloat(f) {
				return reflect.Value{}, lossy
			}
		case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f):
			return reflect.Value{}, lossy
		case isUint(t.Kind()):
			if f < 0 || f >= math.MaxUint64 || target.OverflowUint(uint64(f)) {
				return reflect.Value{}, lossy
			}
		default:
			if f < math.MinInt64 || f >= math.MaxInt64 || target.OverflowInt(int64(f)) {
				return reflect.Value{}, lossy
			}
		}

	case isUint(rv.Kind()):
		u := rv.Uint()
		switch {
		case isFloat(t.Kind()):
		case isUint(t.Kind()):
			if target.OverflowUint(u) {
				return reflect.Value{}, lossy
			}
		default:
			if u > math.MaxInt64 || target.OverflowInt(int64(u)) {
				return reflect.Value{}, lossy
			}
		}

	default:
		i := rv.Int()
		switch {
		case isFloat(t.Kind()):
		case isUint(t.Kind()):
			if i < 0 || target.OverflowUint(uint64(i)) {
				return reflect.Value{}, lossy
			}
		default:
			if target.OverflowInt(i) {
				return reflect.Value{}, lossy
			}
		}
	}
	return rv.Convert(t), nil
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// invokeMethod calls the exported method name on instance. A method taking
// one parameter receives args as is; a method taking several expects args
// to be a []any spread over them.
func invokeMethod(instance any, name string, args any) error {
	rv := reflect.ValueOf(instance)
	if !rv.IsValid() {
		return fmt.Errorf("cannot call %q on a nil instance", name)
	}
	m := rv.MethodByName(name)
	if !m.IsValid() {
		return fmt.Errorf("%T has no method %q", instance, name)
	}
	var list []any
	switch n := m.Type().NumIn(); {
	case n == 0:
		if args != nil {
			return fmt.Errorf("method %q takes no arguments", name)
		}
	case n == 1 && !m.Type().IsVariadic():
		list = []any{args}
	default:
		spread, ok := args.([]any)
		if !ok {
			return fmt.Errorf("method %q takes %d arguments, got %T", name, n, args)
		}
		list = spread
	}
	_, err := call(m, list)
	return err
}
