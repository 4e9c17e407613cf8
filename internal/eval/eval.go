package eval

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrUnevaluable is returned when a node cannot be resolved to a value.
var ErrUnevaluable = errors.New("unevaluable expression")

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Scope holds named static bindings.
type Scope struct {
	bindings sync.Map
}

// Bind sets a named static value.
func (s *Scope) Bind(name string, value interface{}) {
	s.bindings.Store(name, value)
}

// Lookup returns the value bound to name.
func (s *Scope) Lookup(name string) (interface{}, bool) {
	return s.bindings.Load(name)
}

// Global is the scope used by Evaluate.
var Global = &Scope{}

// Bind sets a named static value in the Global scope.
func Bind(name string, value interface{}) {
	Global.Bind(name, value)
}

// Evaluate resolves n using the Global scope.
func Evaluate(n Node) (interface{}, error) {
	return EvaluateIn(Global, n)
}

// EvaluateIn resolves n, looking up static bindings in scope.
func EvaluateIn(scope *Scope, n Node) (interface{}, error) {
	return (&evaluator{scope: scope}).eval(n)
}

type evaluator struct {
	scope *Scope
}

func unevaluable(n Node, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrUnevaluable, n, fmt.Sprintf(format, args...))
}

//nolint:cyclop // One case per node shape.
func (e *evaluator) eval(n Node) (interface{}, error) {
	switch x := n.(type) {
	case nil:
		return nil, nil
	case Const:
		return x.Value, nil
	case *Const:
		return x.Value, nil
	case Func:
		return x(), nil
	case Static:
		return e.static(x)
	case Member:
		return e.member(x)
	case *Member:
		return e.member(*x)
	case Index:
		return e.index(x)
	case Array:
		return e.array(x)
	case New:
		return e.construct(x)
	case Call:
		return e.call(x)
	case *Call:
		return e.call(*x)
	case Lazy:
		fn, err := x.C.Compile()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnevaluable, n, err)
		}
		return fn()
	default:
		return nil, unevaluable(n, "unsupported node %T", n)
	}
}

func (e *evaluator) evalAll(nodes []Node) ([]interface{}, error) {
	out := make([]interface{}, len(nodes))
	for i, n := range nodes {
		v, err := e.eval(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *evaluator) static(s Static) (interface{}, error) {
	if e.scope != nil {
		if v, ok := e.scope.Lookup(s.Name); ok {
			return v, nil
		}
	}
	return nil, unevaluable(s, "static member %q is not bound", s.Name)
}

// member walks the chain from the outermost access down to its root, then
// resolves the names inside-out starting from the root value.
func (e *evaluator) member(m Member) (interface{}, error) {
	chain := []Member{m}
	root := m.X
	for {
		inner, ok := root.(Member)
		if !ok {
			break
		}
		chain = append(chain, inner)
		root = inner.X
	}

	v, err := e.eval(root)
	if err != nil {
		return nil, err
	}

	for i := len(chain) - 1; i >= 0; i-- {
		v, err = selectMember(chain[i], v)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// selectMember resolves one name on v: exported field, then method, then map key.
func selectMember(m Member, v interface{}) (interface{}, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, unevaluable(m, "nil receiver for member %q", m.Name)
	}

	if method := rv.MethodByName(m.Name); method.IsValid() {
		return callMethod(m, method)
	}

	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, unevaluable(m, "nil dereference at member %q", m.Name)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if f, ok := rv.Type().FieldByName(m.Name); ok && f.IsExported() {
			return rv.FieldByIndex(f.Index).Interface(), nil
		}
		if method := rv.MethodByName(m.Name); method.IsValid() {
			return callMethod(m, method)
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			val := rv.MapIndex(reflect.ValueOf(m.Name).Convert(rv.Type().Key()))
			if val.IsValid() {
				return val.Interface(), nil
			}
		}
	}
	return nil, unevaluable(m, "no member %q on %s", m.Name, rv.Type())
}

func callMethod(m Member, method reflect.Value) (interface{}, error) {
	if method.Type().NumIn() != 0 {
		return nil, unevaluable(m, "method %q takes arguments", m.Name)
	}
	return results(m, method.Call(nil))
}

func (e *evaluator) index(ix Index) (interface{}, error) {
	x, err := e.eval(ix.X)
	if err != nil {
		return nil, err
	}
	i, err := e.eval(ix.I)
	if err != nil {
		return nil, err
	}

	rv := reflect.Indirect(reflect.ValueOf(x))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		iv := reflect.ValueOf(i)
		if !iv.IsValid() || !iv.CanConvert(reflect.TypeOf(0)) || iv.Kind() == reflect.String {
			return nil, unevaluable(ix, "index %v is not an integer", i)
		}
		pos := int(iv.Convert(reflect.TypeOf(0)).Int())
		if pos < 0 || pos >= rv.Len() {
			return nil, unevaluable(ix, "index %d out of range [0:%d]", pos, rv.Len())
		}
		return rv.Index(pos).Interface(), nil
	case reflect.Map:
		key, err := convert(reflect.ValueOf(i), rv.Type().Key())
		if err != nil {
			return nil, unevaluable(ix, "%v", err)
		}
		val := rv.MapIndex(key)
		if !val.IsValid() {
			return reflect.Zero(rv.Type().Elem()).Interface(), nil
		}
		return val.Interface(), nil
	}
	return nil, unevaluable(ix, "cannot index %T", x)
}

func (e *evaluator) array(a Array) (interface{}, error) {
	elems, err := e.evalAll(a.Elems)
	if err != nil {
		return nil, err
	}

	elemType := a.Elem
	if elemType == nil {
		return elems, nil
	}

	out := reflect.MakeSlice(reflect.SliceOf(elemType), len(elems), len(elems))
	for i, v := range elems {
		cv, err := convert(reflect.ValueOf(v), elemType)
		if err != nil {
			return nil, unevaluable(a, "element %d: %v", i, err)
		}
		out.Index(i).Set(cv)
	}
	return out.Interface(), nil
}

func (e *evaluator) construct(n New) (interface{}, error) {
	if n.Type == nil {
		return nil, unevaluable(n, "missing type")
	}
	args, err := e.evalAll(n.Args)
	if err != nil {
		return nil, err
	}

	typ := n.Type
	ptr := typ.Kind() == reflect.Ptr
	if ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, unevaluable(n, "cannot construct %s", typ)
	}

	obj := reflect.New(typ)
	fields := make([]int, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		if typ.Field(i).IsExported() {
			fields = append(fields, i)
		}
	}
	if len(args) > len(fields) {
		return nil, unevaluable(n, "too many values: %d for %d fields", len(args), len(fields))
	}
	for i, v := range args {
		f := obj.Elem().Field(fields[i])
		cv, err := convert(reflect.ValueOf(v), f.Type())
		if err != nil {
			return nil, unevaluable(n, "field %s: %v", typ.Field(fields[i]).Name, err)
		}
		f.Set(cv)
	}

	if ptr {
		return obj.Interface(), nil
	}
	return obj.Elem().Interface(), nil
}

func (e *evaluator) call(c Call) (interface{}, error) {
	var fn reflect.Value
	switch {
	case c.Fn != nil:
		fn = reflect.ValueOf(c.Fn)
	case c.Recv != nil:
		recv, err := e.eval(c.Recv)
		if err != nil {
			return nil, err
		}
		rv := reflect.ValueOf(recv)
		if !rv.IsValid() {
			return nil, unevaluable(c, "nil receiver")
		}
		fn = rv.MethodByName(c.Method)
		if !fn.IsValid() {
			return nil, unevaluable(c, "no method %q on %T", c.Method, recv)
		}
	default:
		return nil, unevaluable(c, "nothing to call")
	}
	if fn.Kind() != reflect.Func {
		return nil, unevaluable(c, "%s is not a function", fn.Type())
	}

	args, err := e.evalAll(c.Args)
	if err != nil {
		return nil, err
	}

	ft := fn.Type()
	if (!ft.IsVariadic() && len(args) != ft.NumIn()) || (ft.IsVariadic() && len(args) < ft.NumIn()-1) {
		return nil, unevaluable(c, "want %d arguments, got %d", ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, v := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		cv, err := convert(reflect.ValueOf(v), pt)
		if err != nil {
			return nil, unevaluable(c, "argument %d: %v", i, err)
		}
		in[i] = cv
	}

	return results(c, fn.Call(in))
}

// results maps call results to (value, error): a trailing error result is
// returned as the error, the first other result as the value.
func results(n Node, out []reflect.Value) (interface{}, error) {
	if len(out) > 0 && out[len(out)-1].Type().Implements(errorType) {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnevaluable, n, errv.Interface().(error))
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// convert adapts v to type t, mapping an invalid value to t's zero value.
func convert(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}
