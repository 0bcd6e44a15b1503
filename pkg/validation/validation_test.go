package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/types"
)

func TestFirstErrorOrderIsDeterministic(t *testing.T) {
	// The slow check fails first in argument order; its code must win
	// even though the fast check fails long before it finishes.
	slow := func(ctx context.Context) errcode.Code {
		time.Sleep(20 * time.Millisecond)
		return errcode.InvalidName
	}
	fast := func(ctx context.Context) errcode.Code {
		return errcode.InvalidUUID
	}

	code := FirstError(context.Background(), slow, fast)
	assert.Equal(t, errcode.InvalidName, code)
}

func TestFirstErrorAllPass(t *testing.T) {
	ok := func(ctx context.Context) errcode.Code { return "" }
	assert.Equal(t, errcode.Code(""), FirstError(context.Background(), ok, ok, ok))
	assert.Equal(t, errcode.Code(""), FirstError(context.Background()))
}

func TestAllPass(t *testing.T) {
	pass, code := AllPass(context.Background(), Required("x"), CorrelationID("c"))
	assert.True(t, pass)
	assert.Empty(t, code)

	pass, code = AllPass(context.Background(), Required(""), CorrelationID("c"))
	assert.False(t, pass)
	assert.Equal(t, errcode.MissingParameter, code)
}

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  errcode.Code
	}{
		{"simple", "main", ""},
		{"with dash", "feature-x", ""},
		{"empty", "", errcode.InvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.value)(context.Background()))
		})
	}
}

func TestUUID(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  errcode.Code
	}{
		{"valid", "5c4a7d0e-41a1-4b55-bb58-4c1c13e13f42", ""},
		{"nil uuid rejected", "00000000-0000-0000-0000-000000000000", errcode.InvalidUUID},
		{"garbage", "not-a-uuid", errcode.InvalidUUID},
		{"empty", "", errcode.InvalidUUID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UUID(tt.value)(context.Background()))
		})
	}
}

func TestOptionalUUID(t *testing.T) {
	assert.Equal(t, errcode.Code(""), OptionalUUID("")(context.Background()))
	assert.Equal(t, errcode.Code(""), OptionalUUID("5c4a7d0e-41a1-4b55-bb58-4c1c13e13f42")(context.Background()))
	assert.Equal(t, errcode.InvalidUUID, OptionalUUID("nope")(context.Background()))
}

func TestOneOf(t *testing.T) {
	admissible := []types.OwnerType{types.OwnerTypeUser, types.OwnerTypeOrganization}
	assert.Equal(t, errcode.Code(""), OneOf(types.OwnerTypeUser, admissible)(context.Background()))
	assert.Equal(t, errcode.InvalidEnumValue, OneOf(types.OwnerType("Robot"), admissible)(context.Background()))
}

func TestNonNegative(t *testing.T) {
	assert.Equal(t, errcode.Code(""), NonNegative(0)(context.Background()))
	assert.Equal(t, errcode.Code(""), NonNegative(7.5)(context.Background()))
	assert.Equal(t, errcode.ValueOutOfRange, NonNegative(-0.1)(context.Background()))
}
