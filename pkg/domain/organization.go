package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/types"
)

// OrganizationEvent is the closed union of organization events.
type OrganizationEvent interface {
	Event
	isOrganizationEvent()
}

type OrganizationCreated struct {
	OrganizationID uuid.UUID              `json:"organizationId"`
	OwnerID        uuid.UUID              `json:"ownerId"`
	Name           string                 `json:"name"`
	Type           types.OrganizationType `json:"type"`
	CreatedAt      time.Time              `json:"createdAt"`
}

type OrganizationNameSet struct {
	Name string `json:"name"`
}

type OrganizationTypeSet struct {
	Type types.OrganizationType `json:"type"`
}

type OrganizationSearchVisibilitySet struct {
	SearchVisibility types.SearchVisibility `json:"searchVisibility"`
}

type OrganizationLogicalDeleted struct {
	DeleteReason string    `json:"deleteReason"`
	DeletedAt    time.Time `json:"deletedAt"`
}

type OrganizationUndeleted struct{}

type OrganizationPhysicalDeleted struct {
	DeleteReason string `json:"deleteReason"`
}

func (*OrganizationCreated) EventType() string             { return "Created" }
func (*OrganizationNameSet) EventType() string             { return "NameSet" }
func (*OrganizationTypeSet) EventType() string             { return "TypeSet" }
func (*OrganizationSearchVisibilitySet) EventType() string { return "SearchVisibilitySet" }
func (*OrganizationLogicalDeleted) EventType() string      { return "LogicalDeleted" }
func (*OrganizationUndeleted) EventType() string           { return "Undeleted" }
func (*OrganizationPhysicalDeleted) EventType() string     { return "PhysicalDeleted" }

func (*OrganizationCreated) isOrganizationEvent()             {}
func (*OrganizationNameSet) isOrganizationEvent()             {}
func (*OrganizationTypeSet) isOrganizationEvent()             {}
func (*OrganizationSearchVisibilitySet) isOrganizationEvent() {}
func (*OrganizationLogicalDeleted) isOrganizationEvent()      {}
func (*OrganizationUndeleted) isOrganizationEvent()           {}
func (*OrganizationPhysicalDeleted) isOrganizationEvent()     {}

// OrganizationEventRegistry maps stable case names to constructors.
var OrganizationEventRegistry = map[string]func() OrganizationEvent{
	"Created":             func() OrganizationEvent { return &OrganizationCreated{} },
	"NameSet":             func() OrganizationEvent { return &OrganizationNameSet{} },
	"TypeSet":             func() OrganizationEvent { return &OrganizationTypeSet{} },
	"SearchVisibilitySet": func() OrganizationEvent { return &OrganizationSearchVisibilitySet{} },
	"LogicalDeleted":      func() OrganizationEvent { return &OrganizationLogicalDeleted{} },
	"Undeleted":           func() OrganizationEvent { return &OrganizationUndeleted{} },
	"PhysicalDeleted":     func() OrganizationEvent { return &OrganizationPhysicalDeleted{} },
}

// DefaultOrganizationDto is the fold seed.
func DefaultOrganizationDto() types.OrganizationDto {
	return types.OrganizationDto{
		Type:             types.OrganizationTypePublic,
		SearchVisibility: types.SearchVisible,
	}
}

// UpdateOrganizationDto is the pure fold of one event into the dto.
func UpdateOrganizationDto(e OrganizationEvent, dto types.OrganizationDto) types.OrganizationDto {
	switch ev := e.(type) {
	case *OrganizationCreated:
		dto.OrganizationID = ev.OrganizationID
		dto.OwnerID = ev.OwnerID
		dto.Name = ev.Name
		dto.Type = ev.Type
		dto.CreatedAt = ev.CreatedAt
		dto.UpdatedAt = ev.CreatedAt
	case *OrganizationNameSet:
		dto.Name = ev.Name
	case *OrganizationTypeSet:
		dto.Type = ev.Type
	case *OrganizationSearchVisibilitySet:
		dto.SearchVisibility = ev.SearchVisibility
	case *OrganizationLogicalDeleted:
		deletedAt := ev.DeletedAt
		dto.DeletedAt = &deletedAt
		dto.DeleteReason = ev.DeleteReason
	case *OrganizationUndeleted:
		dto.DeletedAt = nil
		dto.DeleteReason = ""
	case *OrganizationPhysicalDeleted:
		dto = DefaultOrganizationDto()
	}
	return dto
}

// OrganizationCommand is the closed union of organization commands.
type OrganizationCommand interface {
	Command
	isOrganizationCommand()
}

type OrganizationCreate struct {
	OrganizationID uuid.UUID
	OwnerID        uuid.UUID
	Name           string
	Type           types.OrganizationType
}

type OrganizationSetName struct{ Name string }

type OrganizationSetType struct{ Type types.OrganizationType }

type OrganizationSetSearchVisibility struct {
	SearchVisibility types.SearchVisibility
}

type OrganizationDeleteLogical struct {
	DeleteReason string
	Force        bool
}

type OrganizationDeletePhysical struct{ DeleteReason string }

type OrganizationUndelete struct{}

func (*OrganizationCreate) CommandType() string              { return "Create" }
func (*OrganizationSetName) CommandType() string             { return "SetName" }
func (*OrganizationSetType) CommandType() string             { return "SetType" }
func (*OrganizationSetSearchVisibility) CommandType() string { return "SetSearchVisibility" }
func (*OrganizationDeleteLogical) CommandType() string       { return "DeleteLogical" }
func (*OrganizationDeletePhysical) CommandType() string      { return "DeletePhysical" }
func (*OrganizationUndelete) CommandType() string            { return "Undelete" }

func (*OrganizationCreate) isOrganizationCommand()              {}
func (*OrganizationSetName) isOrganizationCommand()             {}
func (*OrganizationSetType) isOrganizationCommand()             {}
func (*OrganizationSetSearchVisibility) isOrganizationCommand() {}
func (*OrganizationDeleteLogical) isOrganizationCommand()       {}
func (*OrganizationDeletePhysical) isOrganizationCommand()      {}
func (*OrganizationUndelete) isOrganizationCommand()            {}
