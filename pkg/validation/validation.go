// Package validation runs endpoint parameter checks concurrently and
// reports the earliest-in-order failure.
package validation

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/types"
)

// Validation checks one parameter. It returns the empty string when
// the parameter is acceptable.
type Validation func(ctx context.Context) errcode.Code

// FirstError runs every validation concurrently and returns the code
// of the earliest failing validation in argument order, or the empty
// code when all pass. Order is deterministic regardless of which
// goroutine finishes first.
func FirstError(ctx context.Context, checks ...Validation) errcode.Code {
	if len(checks) == 0 {
		return ""
	}
	results := make([]errcode.Code, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()
	for _, code := range results {
		if code != "" {
			return code
		}
	}
	return ""
}

// AllPass reports whether every validation passes, returning the first
// failing code otherwise.
func AllPass(ctx context.Context, checks ...Validation) (bool, errcode.Code) {
	code := FirstError(ctx, checks...)
	return code == "", code
}

// Name validates a human-chosen entity name against the name rules.
func Name(name string) Validation {
	return func(context.Context) errcode.Code {
		if !types.IsValidName(name) {
			return errcode.InvalidName
		}
		return ""
	}
}

// Required rejects an empty string parameter.
func Required(value string) Validation {
	return func(context.Context) errcode.Code {
		if value == "" {
			return errcode.MissingParameter
		}
		return ""
	}
}

// CorrelationID requires a non-empty correlation id.
func CorrelationID(correlationID string) Validation {
	return func(context.Context) errcode.Code {
		if correlationID == "" {
			return errcode.MissingCorrelationID
		}
		return ""
	}
}

// UUID requires a well-formed, non-nil UUID string.
func UUID(value string) Validation {
	return func(context.Context) errcode.Code {
		parsed, err := uuid.Parse(value)
		if err != nil || parsed == uuid.Nil {
			return errcode.InvalidUUID
		}
		return ""
	}
}

// OptionalUUID accepts an empty string, otherwise requires a
// well-formed UUID.
func OptionalUUID(value string) Validation {
	return func(context.Context) errcode.Code {
		if value == "" {
			return ""
		}
		if _, err := uuid.Parse(value); err != nil {
			return errcode.InvalidUUID
		}
		return ""
	}
}

// OneOf requires value to be a member of the admissible set.
func OneOf[T comparable](value T, admissible []T) Validation {
	return func(context.Context) errcode.Code {
		for _, a := range admissible {
			if value == a {
				return ""
			}
		}
		return errcode.InvalidEnumValue
	}
}

// NonNegative rejects negative numeric parameters.
func NonNegative(value float64) Validation {
	return func(context.Context) errcode.Code {
		if value < 0 {
			return errcode.ValueOutOfRange
		}
		return ""
	}
}
