package aop

import (
	"fmt"
	"reflect"
	"sync"
)

// MethodKind classifies a method by synchronicity and by whether it produces a value.
type MethodKind int

const (
	// SyncAction returns nothing besides an optional trailing error.
	SyncAction MethodKind = iota
	// SyncFunction returns a value.
	SyncFunction
	// AsyncAction returns a channel that only signals completion.
	AsyncAction
	// AsyncFunction returns a channel carrying a payload.
	AsyncFunction
)

func (k MethodKind) String() string {
	switch k {
	case SyncAction:
		return "SyncAction"
	case SyncFunction:
		return "SyncFunction"
	case AsyncAction:
		return "AsyncAction"
	case AsyncFunction:
		return "AsyncFunction"
	}
	return fmt.Sprintf("MethodKind(%d)", int(k))
}

// IsAsync reports whether the kind completes through a returned channel.
func (k MethodKind) IsAsync() bool {
	return k == AsyncAction || k == AsyncFunction
}

// HasResult reports whether the kind produces a value.
func (k MethodKind) HasResult() bool {
	return k == SyncFunction || k == AsyncFunction
}

var emptyStruct = reflect.TypeOf(struct{}{})

// Classify determines the MethodKind of a func type from its results.
// A trailing error result is ignored. A single receivable channel result makes
// the method asynchronous; its element decides whether it carries a payload.
func Classify(fn reflect.Type) MethodKind {
	if fn == nil || fn.Kind() != reflect.Func {
		return SyncAction
	}
	n := valueResults(fn)
	if n == 0 {
		return SyncAction
	}
	if n == 1 {
		out := fn.Out(0)
		if out.Kind() == reflect.Chan && out.ChanDir()&reflect.RecvDir != 0 {
			if elem := out.Elem(); elem == emptyStruct || elem == errorInterface {
				return AsyncAction
			}
			return AsyncFunction
		}
	}
	return SyncFunction
}

// valueResults counts the results of fn excluding a trailing error.
func valueResults(fn reflect.Type) int {
	n := fn.NumOut()
	if n > 0 && fn.Out(n-1) == errorInterface {
		n--
	}
	return n
}

// Method identifies one method declared on a contract interface.
// The zero Method is the nil method and is rejected wherever a method is required.
type Method struct {
	contract reflect.Type
	name     string
	typ      reflect.Type
}

// Contract returns the interface declaring the method.
func (m Method) Contract() reflect.Type { return m.contract }

// Name returns the method name.
func (m Method) Name() string { return m.name }

// Type returns the method's func type without receiver.
func (m Method) Type() reflect.Type { return m.typ }

// Kind classifies the method's signature.
func (m Method) Kind() MethodKind { return Classify(m.typ) }

// IsZero reports whether m is the nil method.
func (m Method) IsZero() bool { return m.contract == nil && m.name == "" }

func (m Method) String() string {
	if m.IsZero() {
		return "<nil method>"
	}
	return m.contract.String() + "." + m.name
}

// methodCache memoizes declared methods per contract.
var methodCache sync.Map // map[reflect.Type][]Method

// MethodsOf returns every method declared on contract, in reflect's method order.
func MethodsOf(contract reflect.Type) []Method {
	if contract == nil {
		return nil
	}
	if cached, ok := methodCache.Load(contract); ok {
		return append([]Method(nil), cached.([]Method)...)
	}
	methods := make([]Method, 0, contract.NumMethod())
	for i := 0; i < contract.NumMethod(); i++ {
		rm := contract.Method(i)
		typ := rm.Type
		if contract.Kind() != reflect.Interface {
			typ = withoutReceiver(rm.Type)
		}
		methods = append(methods, Method{contract: contract, name: rm.Name, typ: typ})
	}
	methodCache.Store(contract, methods)
	return append([]Method(nil), methods...)
}

// MethodOf returns the method called name on contract.
func MethodOf(contract reflect.Type, name string) (Method, error) {
	if contract == nil {
		return Method{}, &NilArgumentError{Name: "contract"}
	}
	for _, m := range MethodsOf(contract) {
		if m.name == name {
			return m, nil
		}
	}
	return Method{}, &MethodNotFoundError{Contract: contract.String(), Method: name}
}

// MustMethod is like MethodOf for the contract T but panics when the method is missing.
func MustMethod[T any](name string) Method {
	m, err := MethodOf(TypeOf[T](), name)
	if err != nil {
		panic(err)
	}
	return m
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// TypeName returns the package-qualified name of t, looking through pointers.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func withoutReceiver(fn reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, fn.NumIn()-1)
	for i := 1; i < fn.NumIn(); i++ {
		in = append(in, fn.In(i))
	}
	out := make([]reflect.Type, 0, fn.NumOut())
	for i := 0; i < fn.NumOut(); i++ {
		out = append(out, fn.Out(i))
	}
	return reflect.FuncOf(in, out, fn.IsVariadic())
}
