// Package chain runs an ordered list of alternative providers for the same
// capability and returns the first usable result.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lecture-pipeline/chain")

// ErrEmptyOutput marks a stage that returned without error but produced nothing usable.
var ErrEmptyOutput = errors.New("empty output")

type Provider[In, Out any] interface {
	Name() string
	Attempt(ctx context.Context, in In) (Out, error)
}

// Func adapts a function to Provider.
type Func[In, Out any] struct {
	ProviderName string
	Fn           func(ctx context.Context, in In) (Out, error)
}

func (f Func[In, Out]) Name() string { return f.ProviderName }

func (f Func[In, Out]) Attempt(ctx context.Context, in In) (Out, error) {
	return f.Fn(ctx, in)
}

type StageError struct {
	Provider string
	Err      error
}

func (e StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// ExhaustedError is returned when every provider failed.
type ExhaustedError struct {
	Chain  string
	Stages []StageError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Stages))
	for _, s := range e.Stages {
		parts = append(parts, s.Error())
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s chain: no providers configured", e.Chain)
	}
	return fmt.Sprintf("%s chain: all providers failed: %s", e.Chain, strings.Join(parts, "; "))
}

// Unwrap exposes the stage errors to errors.Is / errors.As.
func (e *ExhaustedError) Unwrap() []error {
	ret := make([]error, 0, len(e.Stages))
	for _, s := range e.Stages {
		ret = append(ret, s.Err)
	}
	return ret
}

type Result[Out any] struct {
	Value    Out
	Provider string
	Failures []StageError
}

type Chain[In, Out any] struct {
	name      string
	providers []Provider[In, Out]
	isEmpty   func(Out) bool
}

// New builds a chain. isEmpty may be nil when every returned value is usable.
func New[In, Out any](name string, isEmpty func(Out) bool, providers ...Provider[In, Out]) *Chain[In, Out] {
	return &Chain[In, Out]{
		name:      name,
		providers: providers,
		isEmpty:   isEmpty,
	}
}

func (c *Chain[In, Out]) Name() string { return c.name }

func (c *Chain[In, Out]) Providers() []string {
	ret := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		ret = append(ret, p.Name())
	}
	return ret
}

// Run attempts providers strictly in order and stops at the first one that
// returns a non-empty value. A cancelled context stops the iteration.
func (c *Chain[In, Out]) Run(ctx context.Context, in In) (Result[Out], error) {
	var failures []StageError
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return Result[Out]{Failures: failures}, err
		}

		out, err := c.attempt(ctx, p, in)
		if err == nil {
			return Result[Out]{Value: out, Provider: p.Name(), Failures: failures}, nil
		}
		log.Warn("%s chain: provider %s failed, trying next: %v", c.name, p.Name(), err)
		failures = append(failures, StageError{Provider: p.Name(), Err: err})
	}
	var zero Out
	return Result[Out]{Value: zero, Failures: failures}, &ExhaustedError{Chain: c.name, Stages: failures}
}

func (c *Chain[In, Out]) attempt(ctx context.Context, p Provider[In, Out], in In) (out Out, err error) {
	ctx, span := tracer.Start(ctx, c.name+".attempt", trace.WithAttributes(
		attribute.String("provider", p.Name()),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
		span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	out, err = p.Attempt(ctx, in)
	if err != nil {
		return out, err
	}
	if c.isEmpty != nil && c.isEmpty(out) {
		return out, ErrEmptyOutput
	}
	log.Debug("%s chain: provider %s succeeded in %s", c.name, p.Name(), time.Since(start).Round(time.Millisecond))
	return out, nil
}

// BlankString reports whether s has no non-space content.
func BlankString(s string) bool {
	return strings.TrimSpace(s) == ""
}
