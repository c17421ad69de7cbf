package aop

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

var contextInterface = reflect.TypeOf((*context.Context)(nil)).Elem()

// Invocation is the per-call record shared by the aspects intercepting one call.
// It is created when the call enters the proxy and discarded when it returns.
type Invocation struct {
	// ID uniquely identifies the call.
	ID string

	// TargetMethod is the contract method that was called.
	TargetMethod Method

	// InstanceMethod is the implementation's method the call is forwarded to.
	// It is the zero reflect.Method when the implementation is unknown.
	InstanceMethod reflect.Method

	// Kind classifies TargetMethod.
	Kind MethodKind

	// Args holds the call arguments. Aspects may replace them before the call proceeds.
	Args []any

	// Description is a readable rendering of the call, e.g. "*svc.Impl.Get(1)".
	Description string

	// Proceed controls whether the wrapped method runs. It starts out true.
	Proceed bool

	// ReturnValue is the value produced by the call. For async functions it is the
	// payload received from the returned channel.
	ReturnValue any

	// Err is the trailing error result of the call, if the method has one.
	Err error

	// Results holds every result of the call as returned by the implementation.
	Results []any

	items map[any]any
}

// NewInvocation creates the record for a call of target with args.
func NewInvocation(target Method, args []any) (*Invocation, error) {
	if target.IsZero() {
		return nil, &NilArgumentError{Name: "targetMethod"}
	}
	return &Invocation{
		ID:           uuid.NewString(),
		TargetMethod: target,
		Kind:         target.Kind(),
		Args:         args,
		Description:  describe(target.Contract(), target.Name(), args),
		Proceed:      true,
	}, nil
}

// Set stores a per-call value, typically state carried from PreInvoke to PostInvoke.
func (inv *Invocation) Set(key, val any) {
	if inv.items == nil {
		inv.items = make(map[any]any)
	}
	inv.items[key] = val
}

// Get returns a value stored with Set.
func (inv *Invocation) Get(key any) (any, bool) {
	val, ok := inv.items[key]
	return val, ok
}

// Context returns the call's leading context.Context argument, or context.Background.
func (inv *Invocation) Context() context.Context {
	if i := inv.contextArg(); i >= 0 {
		if ctx, ok := inv.Args[i].(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// WithContext replaces the call's leading context.Context argument.
// It reports false when the method takes no context.
func (inv *Invocation) WithContext(ctx context.Context) bool {
	i := inv.contextArg()
	if i < 0 {
		return false
	}
	inv.Args[i] = ctx
	return true
}

func (inv *Invocation) contextArg() int {
	typ := inv.TargetMethod.Type()
	if typ == nil || typ.NumIn() == 0 || len(inv.Args) == 0 {
		return -1
	}
	if typ.In(0) != contextInterface {
		return -1
	}
	return 0
}

// describe renders owner.name(args) with string arguments quoted.
func describe(owner reflect.Type, name string, args []any) string {
	var b strings.Builder
	if owner != nil {
		b.WriteString(owner.String())
		b.WriteByte('.')
	}
	b.WriteString(name)
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v := arg.(type) {
		case string:
			fmt.Fprintf(&b, "%q", v)
		case context.Context:
			b.WriteString("ctx")
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	b.WriteByte(')')
	return b.String()
}
