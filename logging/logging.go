// Package logging provides an aspect that logs the start and end of every
// intercepted call through zap.
package logging

import (
	"github.com/centraunit/aop"
	"go.uber.org/zap"
)

// FactoryType is the key the logging aspect is configured under.
var FactoryType = aop.TypeOf[*Factory]()

// Factory creates logging aspects writing to Logger.
type Factory struct {
	Logger *zap.Logger
}

// NewFactory returns a Factory writing to logger. A nil logger discards output.
func NewFactory(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{Logger: logger}
}

// Create returns an Aspect whose logger is named after the service implementation.
func (f *Factory) Create(b aop.Binding, _ *aop.ContainerContext) (aop.Aspect, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	service := aop.TypeName(b.Implementation)
	if service == "" {
		service = aop.TypeName(b.Contract)
	}
	return &Aspect{logger: logger.With(zap.String("service", service))}, nil
}

// Aspect logs "Start" before and "End" after each call, plus the return value of
// value-producing methods and any error.
type Aspect struct {
	logger *zap.Logger
}

func (a *Aspect) PreInvoke(inv *aop.Invocation) {
	a.logger.Info(inv.Description+" Start",
		zap.String("invocation_id", inv.ID),
		zap.String("kind", inv.Kind.String()),
	)
}

func (a *Aspect) PostInvoke(inv *aop.Invocation) {
	if inv.Kind.HasResult() {
		a.logger.Info("Return value", zap.String("invocation_id", inv.ID), zap.Any("return_value", inv.ReturnValue))
	}
	if inv.Err != nil {
		a.logger.Error(inv.Description+" End", zap.String("invocation_id", inv.ID), zap.Error(inv.Err))
		return
	}
	a.logger.Info(inv.Description+" End", zap.String("invocation_id", inv.ID), zap.Bool("proceeded", inv.Proceed))
}

// AddLoggingAspect attaches a logging aspect writing to logger to the last registered
// service. Each service keeps the logger it was configured with; the most recent one
// also serves entries loaded from a file.
func AddLoggingAspect(b *aop.RegistrationBuilder, logger *zap.Logger, opts ...aop.EntryOption) error {
	return b.AddAspectFactory(NewFactory(logger), opts...)
}
