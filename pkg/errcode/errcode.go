package errcode

import (
	"fmt"
	"net/http"
)

// Code is a stable, string-keyed error code. The set of codes is closed;
// clients switch on the code, never on the message.
type Code string

const (
	// Validation
	InvalidName          Code = "InvalidName"
	InvalidUUID          Code = "InvalidUUID"
	InvalidEnumValue     Code = "InvalidEnumValue"
	ValueOutOfRange      Code = "ValueOutOfRange"
	MissingCorrelationID Code = "MissingCorrelationId"
	MissingParameter     Code = "MissingParameter"

	// NotFound
	OwnerNotFound            Code = "OwnerNotFound"
	OrganizationNotFound     Code = "OrganizationNotFound"
	RepositoryNotFound       Code = "RepositoryNotFound"
	BranchNotFound           Code = "BranchNotFound"
	ReferenceNotFound        Code = "ReferenceNotFound"
	DirectoryVersionNotFound Code = "DirectoryVersionNotFound"
	EntityDoesNotExist       Code = "EntityDoesNotExist"

	// Conflict
	DuplicateCorrelationID Code = "DuplicateCorrelationId"
	EntityAlreadyExists    Code = "EntityAlreadyExists"
	NameAlreadyExists      Code = "NameAlreadyExists"
	EntityDeleted          Code = "EntityDeleted"
	EntityNotDeleted       Code = "EntityNotDeleted"

	// PreconditionFailed
	AssignIsDisabled          Code = "AssignIsDisabled"
	PromotionIsDisabled       Code = "PromotionIsDisabled"
	CommitIsDisabled          Code = "CommitIsDisabled"
	CheckpointIsDisabled      Code = "CheckpointIsDisabled"
	SaveIsDisabled            Code = "SaveIsDisabled"
	TagIsDisabled             Code = "TagIsDisabled"
	ExternalIsDisabled        Code = "ExternalIsDisabled"
	AutoRebaseIsDisabled      Code = "AutoRebaseIsDisabled"
	NotBasedOnLatestPromotion Code = "NotBasedOnLatestPromotion"
	RepositoryNotEmpty        Code = "RepositoryNotEmpty"
	BranchNotEmpty            Code = "BranchNotEmpty"
	InvalidReferenceType      Code = "InvalidReferenceType"

	// Integrity
	Sha256Mismatch Code = "Sha256Mismatch"
	SizeMismatch   Code = "SizeMismatch"

	// Dependency
	StateStoreUnavailable Code = "StateStoreUnavailable"
	EventBusUnavailable   Code = "EventBusUnavailable"

	// Internal
	InternalError Code = "InternalError"
)

// Kind groups codes into the stable taxonomy.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindPreconditionFailed Kind = "PreconditionFailed"
	KindIntegrity          Kind = "IntegrityError"
	KindDependency         Kind = "DependencyFailure"
	KindInternal           Kind = "Internal"
)

var kinds = map[Code]Kind{
	InvalidName:          KindValidation,
	InvalidUUID:          KindValidation,
	InvalidEnumValue:     KindValidation,
	ValueOutOfRange:      KindValidation,
	MissingCorrelationID: KindValidation,
	MissingParameter:     KindValidation,

	OwnerNotFound:            KindNotFound,
	OrganizationNotFound:     KindNotFound,
	RepositoryNotFound:       KindNotFound,
	BranchNotFound:           KindNotFound,
	ReferenceNotFound:        KindNotFound,
	DirectoryVersionNotFound: KindNotFound,
	EntityDoesNotExist:       KindNotFound,

	DuplicateCorrelationID: KindConflict,
	EntityAlreadyExists:    KindConflict,
	NameAlreadyExists:      KindConflict,
	EntityDeleted:          KindConflict,
	EntityNotDeleted:       KindConflict,

	AssignIsDisabled:          KindPreconditionFailed,
	PromotionIsDisabled:       KindPreconditionFailed,
	CommitIsDisabled:          KindPreconditionFailed,
	CheckpointIsDisabled:      KindPreconditionFailed,
	SaveIsDisabled:            KindPreconditionFailed,
	TagIsDisabled:             KindPreconditionFailed,
	ExternalIsDisabled:        KindPreconditionFailed,
	AutoRebaseIsDisabled:      KindPreconditionFailed,
	NotBasedOnLatestPromotion: KindPreconditionFailed,
	RepositoryNotEmpty:        KindPreconditionFailed,
	BranchNotEmpty:            KindPreconditionFailed,
	InvalidReferenceType:      KindPreconditionFailed,

	Sha256Mismatch: KindIntegrity,
	SizeMismatch:   KindIntegrity,

	StateStoreUnavailable: KindDependency,
	EventBusUnavailable:   KindDependency,

	InternalError: KindInternal,
}

// KindOf returns the taxonomy kind for a code. Unknown codes are Internal.
func KindOf(c Code) Kind {
	if k, ok := kinds[c]; ok {
		return k
	}
	return KindInternal
}

// HTTPStatus maps a code's kind to the HTTP status the pipeline returns.
func HTTPStatus(c Code) int {
	switch KindOf(c) {
	case KindDependency, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is a structured failure carrying the code, the correlation id of
// the request that failed, and a property bag for context.
type Error struct {
	Code          Code              `json:"error"`
	CorrelationID string            `json:"correlationId"`
	Properties    map[string]string `json:"properties,omitempty"`
	Cause         error             `json:"-"`
}

// New builds an Error for a code and correlation id.
func New(code Code, correlationID string) *Error {
	return &Error{
		Code:          code,
		CorrelationID: correlationID,
		Properties:    make(map[string]string),
	}
}

// Wrap attaches an underlying cause to the error.
func Wrap(code Code, correlationID string, cause error) *Error {
	e := New(code, correlationID)
	e.Cause = cause
	if cause != nil {
		e.Properties["exception"] = cause.Error()
	}
	return e
}

// WithProperty adds a property and returns the error for chaining.
func (e *Error) WithProperty(key, value string) *Error {
	e.Properties[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, Message(e.Code), e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, Message(e.Code))
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match on the code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf extracts the code from an error, or InternalError.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return InternalError
}
