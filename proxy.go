package aop

import (
	"reflect"
	"sync"
)

// Interceptor pairs an aspect with the factory type it was configured under.
type Interceptor struct {
	FactoryType reflect.Type
	Aspect      Aspect
}

type proxyMethod struct {
	method   Method
	instance reflect.Method
	fn       reflect.Value
	aspects  []Aspect
}

// Proxy forwards calls on a contract to a target instance through the aspects
// configured for each method. Typed wrappers registered with RegisterProxy embed a
// Proxy and implement the contract by delegating to Call.
//
// Interception decisions are taken once, in NewProxy; later configuration changes do
// not affect an existing proxy.
type Proxy struct {
	contract   reflect.Type
	target     any
	targetType reflect.Type
	methods    map[string]*proxyMethod
}

// NewProxy builds a proxy for target. Interceptors are given outermost first. For every
// contract method the provider decides which interceptors apply; a nil provider applies
// all of them.
func NewProxy(contract reflect.Type, target any, provider Provider, interceptors ...Interceptor) (*Proxy, error) {
	if err := validateContract(contract); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &NilArgumentError{Name: "target"}
	}
	targetType := reflect.TypeOf(target)
	if !targetType.Implements(contract) {
		return nil, &InvalidTypeError{Name: "target", Type: targetType.String(), Reason: "does not implement " + contract.String()}
	}

	p := &Proxy{
		contract:   contract,
		target:     target,
		targetType: targetType,
		methods:    make(map[string]*proxyMethod, contract.NumMethod()),
	}
	value := reflect.ValueOf(target)
	for _, m := range MethodsOf(contract) {
		pm := &proxyMethod{method: m, fn: value.MethodByName(m.Name())}
		pm.instance, _ = targetType.MethodByName(m.Name())
		for _, ic := range interceptors {
			if ic.Aspect == nil {
				return nil, &NilArgumentError{Name: "interceptor.Aspect"}
			}
			ok := true
			if provider != nil {
				var err error
				ok, err = provider.ShouldIntercept(ic.FactoryType, contract, targetType, m)
				if err != nil {
					return nil, err
				}
			}
			if ok {
				pm.aspects = append(pm.aspects, ic.Aspect)
			}
		}
		p.methods[m.Name()] = pm
	}
	return p, nil
}

// Contract returns the proxied interface.
func (p *Proxy) Contract() reflect.Type { return p.contract }

// Target returns the wrapped instance.
func (p *Proxy) Target() any { return p.target }

// Intercepted reports whether any aspect applies to the named method.
func (p *Proxy) Intercepted(name string) bool {
	pm, ok := p.methods[name]
	return ok && len(pm.aspects) > 0
}

// Call invokes the named contract method with args and returns its results.
// Variadic arguments are passed as a single slice. Call panics if the contract has no
// such method.
func (p *Proxy) Call(name string, args ...any) []any {
	pm, ok := p.methods[name]
	if !ok {
		panic(&MethodNotFoundError{Contract: p.contract.String(), Method: name})
	}
	if len(pm.aspects) == 0 {
		return toAny(pm.call(args))
	}

	inv, _ := NewInvocation(pm.method, args)
	inv.InstanceMethod = pm.instance
	inv.Description = describe(p.targetType, pm.method.Name(), args)

	entered := 0
	for _, aspect := range pm.aspects {
		aspect.PreInvoke(inv)
		entered++
		if !inv.Proceed {
			break
		}
	}
	exit := func() {
		for i := entered - 1; i >= 0; i-- {
			pm.aspects[i].PostInvoke(inv)
		}
	}

	typ := pm.method.Type()
	if !inv.Proceed {
		if inv.Kind.IsAsync() {
			exit()
			out := zeroResults(typ)
			out[0] = completed(typ.Out(0), inv)
			if n := valueResults(typ); n < typ.NumOut() {
				out[n] = inv.Err
			}
			return out
		}
		exit()
		return pm.results(inv)
	}

	results := pm.call(inv.Args)
	inv.Results = toAny(results)
	record(inv, typ, results)

	if inv.Kind.IsAsync() {
		inner := results[0]
		if inner.IsNil() {
			exit()
			return inv.Results
		}
		out := append([]any(nil), inv.Results...)
		out[0] = await(typ.Out(0), inner, inv, exit)
		return out
	}

	exit()
	return pm.results(inv)
}

func (pm *proxyMethod) call(args []any) []reflect.Value {
	ft := pm.fn.Type()
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(ft.In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	if ft.IsVariadic() {
		return pm.fn.CallSlice(in)
	}
	return pm.fn.Call(in)
}

// results assembles the return values of a synchronous call from inv, so that
// aspects can replace ReturnValue and Err.
func (pm *proxyMethod) results(inv *Invocation) []any {
	typ := pm.method.Type()
	out := zeroResults(typ)
	n := valueResults(typ)
	switch {
	case n == 1:
		if inv.ReturnValue != nil {
			out[0] = inv.ReturnValue
		}
	case n > 1:
		for i := 0; i < n && i < len(inv.Results); i++ {
			out[i] = inv.Results[i]
		}
	}
	if n < typ.NumOut() {
		out[n] = inv.Err
	}
	return out
}

// record copies the outcome of a completed call into inv.
func record(inv *Invocation, typ reflect.Type, results []reflect.Value) {
	n := valueResults(typ)
	if n == 1 && !inv.Kind.IsAsync() {
		inv.ReturnValue = results[0].Interface()
	}
	if n < len(results) {
		if err, ok := results[n].Interface().(error); ok {
			inv.Err = err
		}
	}
}

// await forwards the first value received from inner to a new channel of type out once
// the post-invoke hooks have seen it.
func await(out reflect.Type, inner reflect.Value, inv *Invocation, exit func()) any {
	elem := out.Elem()
	ch := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, elem), 1)
	go func() {
		v, ok := inner.Recv()
		if ok {
			settle(inv, elem, v.Interface())
		}
		exit()
		if ok {
			ch.Send(payload(inv, elem))
		}
		ch.Close()
	}()
	return ch.Convert(out).Interface()
}

// completed returns a closed channel of type out carrying the invocation's outcome.
func completed(out reflect.Type, inv *Invocation) any {
	elem := out.Elem()
	ch := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, elem), 1)
	switch {
	case elem == errorInterface && inv.Err != nil:
		ch.Send(reflect.ValueOf(&inv.Err).Elem())
	case elem != errorInterface && elem != emptyStruct && inv.ReturnValue != nil:
		ch.Send(payload(inv, elem))
	}
	ch.Close()
	return ch.Convert(out).Interface()
}

func settle(inv *Invocation, elem reflect.Type, v any) {
	switch elem {
	case errorInterface:
		if err, ok := v.(error); ok {
			inv.Err = err
		}
	case emptyStruct:
	default:
		inv.ReturnValue = v
	}
}

func payload(inv *Invocation, elem reflect.Type) reflect.Value {
	var v any
	switch elem {
	case errorInterface:
		v = inv.Err
	case emptyStruct:
		v = struct{}{}
	default:
		v = inv.ReturnValue
	}
	if v == nil {
		return reflect.Zero(elem)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != elem && rv.Type().AssignableTo(elem) {
		converted := reflect.New(elem).Elem()
		converted.Set(rv)
		return converted
	}
	return rv
}

func zeroResults(typ reflect.Type) []any {
	out := make([]any, typ.NumOut())
	for i := range out {
		out[i] = reflect.Zero(typ.Out(i)).Interface()
	}
	return out
}

func toAny(values []reflect.Value) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v.Interface()
	}
	return out
}

var proxyConstructors sync.Map // map[reflect.Type]func(*Proxy) any

// RegisterProxy registers the typed wrapper used to expose proxies of contract T.
// It is usually called from an init function next to the contract.
func RegisterProxy[T any](ctor func(*Proxy) T) {
	contract := TypeOf[T]()
	proxyConstructors.Store(contract, func(p *Proxy) any { return ctor(p) })
}

func (p *Proxy) typed() (any, error) {
	ctor, ok := proxyConstructors.Load(p.contract)
	if !ok {
		return nil, &ProxyNotRegisteredError{Contract: p.contract.String()}
	}
	return ctor.(func(*Proxy) any)(p), nil
}

// Err converts a result returned by Proxy.Call to an error.
func Err(v any) error {
	if v == nil {
		return nil
	}
	return v.(error)
}

// As converts a result returned by Proxy.Call to T. A nil result yields the zero T.
func As[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}
