// Package action wraps form-driven mutations with schema validation and an
// optional authenticated-user check.
package action

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Marga-Ghale/statement-saas/internal/auth"
	validation "github.com/go-ozzo/ozzo-validation"
)

// ErrUnauthorized is returned, never rendered as a form error, when an
// action needs a user and the request has none.
var ErrUnauthorized = errors.New("user is not authenticated")

// Form is the submitted key/value data. url.Values satisfies it.
type Form interface {
	Get(key string) string
}

// Values is a plain map Form, handy for JSON bodies and tests.
type Values map[string]string

func (v Values) Get(key string) string {
	return v[key]
}

// Result is the user-facing outcome of an action. Error and Success are
// rendered to the user; everything else is applied by the transport.
type Result struct {
	Error        string
	Success      string
	Fields       map[string]string
	Redirect     string
	Session      *auth.IssuedSession
	ClearSession bool
}

func Fail(message string, fields map[string]string) *Result {
	return &Result{Error: message, Fields: fields}
}

func Succeed(message string) *Result {
	return &Result{Success: message}
}

func RedirectTo(location string) *Result {
	return &Result{Redirect: location}
}

// Failed reports whether the result carries a user-facing error.
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// Func is a fully wrapped action ready to be called by a transport.
type Func func(ctx context.Context, form Form) (*Result, error)

// Schema binds a form into T and names the fields in the order their
// violations should be reported.
type Schema[T validation.Validatable] struct {
	Fields []string
	Bind   func(Form) T
}

// Echo copies the schema's fields from form so they can be re-populated.
func (s Schema[T]) Echo(form Form) map[string]string {
	fields := make(map[string]string, len(s.Fields))
	for _, name := range s.Fields {
		fields[name] = form.Get(name)
	}
	return fields
}

// Handler runs after validation succeeded.
type Handler[T any] func(ctx context.Context, input T, form Form) (*Result, error)

// UserHandler runs after the user was resolved and validation succeeded.
type UserHandler[T any, U any] func(ctx context.Context, input T, form Form, user *U) (*Result, error)

// UserResolver returns the current user, or nil when there is none.
type UserResolver[U any] func(ctx context.Context) (*U, error)

// Validated returns an action that validates the form before calling handler.
// Validation failures become a Result with the first violation and the
// echoed fields; handler is not called.
func Validated[T validation.Validatable](schema Schema[T], handler Handler[T]) Func {
	return func(ctx context.Context, form Form) (*Result, error) {
		input, failure, err := schema.validate(form)
		if err != nil || failure != nil {
			return failure, err
		}
		return handler(ctx, input, form)
	}
}

// ValidatedWithUser is Validated preceded by a user lookup. A missing user
// yields ErrUnauthorized before the form is inspected.
func ValidatedWithUser[T validation.Validatable, U any](schema Schema[T], resolve UserResolver[U], handler UserHandler[T, U]) Func {
	return func(ctx context.Context, form Form) (*Result, error) {
		user, err := resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user: %w", err)
		}
		if user == nil {
			return nil, ErrUnauthorized
		}

		input, failure, err := schema.validate(form)
		if err != nil || failure != nil {
			return failure, err
		}
		return handler(ctx, input, form, user)
	}
}

func (s Schema[T]) validate(form Form) (T, *Result, error) {
	input := s.Bind(form)
	err := input.Validate()
	if err == nil {
		return input, nil, nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return input, nil, fmt.Errorf("validation failed: %w", err)
	}
	return input, Fail(s.firstViolation(errs), s.Echo(form)), nil
}

func (s Schema[T]) firstViolation(errs validation.Errors) string {
	for _, name := range s.Fields {
		if fieldErr, ok := errs[name]; ok && fieldErr != nil {
			return fieldErr.Error()
		}
	}

	keys := make([]string, 0, len(errs))
	for k, v := range errs {
		if v != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "Invalid input"
	}
	sort.Strings(keys)
	return errs[keys[0]].Error()
}
