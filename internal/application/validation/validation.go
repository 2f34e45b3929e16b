package validation

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// Validatable lets a request carry its own invariant checks beyond what
// struct tags can express
type Validatable interface {
	Validate() error
}

// Middleware rejects malformed requests before they reach a handler.
// Struct-tag rules run first, then the request's own Validate method when it
// implements Validatable. Failures wrap shared.ErrInvalidConfig so callers
// can map them to the invalid-input exit path.
func Middleware() mediator.Middleware {
	validate := validator.New()

	return func(ctx context.Context, request mediator.Request, next mediator.HandlerFunc) (mediator.Response, error) {
		if err := validateTags(validate, request); err != nil {
			return nil, fmt.Errorf("%w: %s", shared.ErrInvalidConfig, err)
		}

		if v, ok := request.(Validatable); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %s", shared.ErrInvalidConfig, err)
			}
		}

		return next(ctx, request)
	}
}

func validateTags(validate *validator.Validate, request mediator.Request) error {
	v := reflect.ValueOf(request)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("request cannot be nil")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	if err := validate.Struct(v.Interface()); err != nil {
		if validationErrs, ok := err.(validator.ValidationErrors); ok {
			messages := make([]string, 0, len(validationErrs))
			for _, e := range validationErrs {
				messages = append(messages, fmt.Sprintf("field '%s' failed '%s'", e.Field(), e.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(messages, "; "))
		}
		return err
	}
	return nil
}
