package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/types"
)

// OwnerEvent is the closed union of owner events.
type OwnerEvent interface {
	Event
	isOwnerEvent()
}

type OwnerCreated struct {
	OwnerID   uuid.UUID       `json:"ownerId"`
	Name      string          `json:"name"`
	Type      types.OwnerType `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
}

type OwnerNameSet struct {
	Name string `json:"name"`
}

type OwnerTypeSet struct {
	Type types.OwnerType `json:"type"`
}

type OwnerDescriptionSet struct {
	Description string `json:"description"`
}

type OwnerSearchVisibilitySet struct {
	SearchVisibility types.SearchVisibility `json:"searchVisibility"`
}

type OwnerLogicalDeleted struct {
	DeleteReason string    `json:"deleteReason"`
	DeletedAt    time.Time `json:"deletedAt"`
}

type OwnerUndeleted struct{}

// OwnerPhysicalDeleted is published when the owner's event log is
// removed; it is never persisted.
type OwnerPhysicalDeleted struct {
	DeleteReason string `json:"deleteReason"`
}

func (*OwnerCreated) EventType() string             { return "Created" }
func (*OwnerNameSet) EventType() string             { return "NameSet" }
func (*OwnerTypeSet) EventType() string             { return "TypeSet" }
func (*OwnerDescriptionSet) EventType() string      { return "DescriptionSet" }
func (*OwnerSearchVisibilitySet) EventType() string { return "SearchVisibilitySet" }
func (*OwnerLogicalDeleted) EventType() string      { return "LogicalDeleted" }
func (*OwnerUndeleted) EventType() string           { return "Undeleted" }
func (*OwnerPhysicalDeleted) EventType() string     { return "PhysicalDeleted" }

func (*OwnerCreated) isOwnerEvent()             {}
func (*OwnerNameSet) isOwnerEvent()             {}
func (*OwnerTypeSet) isOwnerEvent()             {}
func (*OwnerDescriptionSet) isOwnerEvent()      {}
func (*OwnerSearchVisibilitySet) isOwnerEvent() {}
func (*OwnerLogicalDeleted) isOwnerEvent()      {}
func (*OwnerUndeleted) isOwnerEvent()           {}
func (*OwnerPhysicalDeleted) isOwnerEvent()     {}

// OwnerEventRegistry maps stable case names to constructors.
var OwnerEventRegistry = map[string]func() OwnerEvent{
	"Created":             func() OwnerEvent { return &OwnerCreated{} },
	"NameSet":             func() OwnerEvent { return &OwnerNameSet{} },
	"TypeSet":             func() OwnerEvent { return &OwnerTypeSet{} },
	"DescriptionSet":      func() OwnerEvent { return &OwnerDescriptionSet{} },
	"SearchVisibilitySet": func() OwnerEvent { return &OwnerSearchVisibilitySet{} },
	"LogicalDeleted":      func() OwnerEvent { return &OwnerLogicalDeleted{} },
	"Undeleted":           func() OwnerEvent { return &OwnerUndeleted{} },
	"PhysicalDeleted":     func() OwnerEvent { return &OwnerPhysicalDeleted{} },
}

// DefaultOwnerDto is the fold seed.
func DefaultOwnerDto() types.OwnerDto {
	return types.OwnerDto{
		Type:             types.OwnerTypeUser,
		SearchVisibility: types.SearchVisible,
	}
}

// UpdateOwnerDto is the pure fold of one owner event into the dto.
func UpdateOwnerDto(e OwnerEvent, dto types.OwnerDto) types.OwnerDto {
	switch ev := e.(type) {
	case *OwnerCreated:
		dto.OwnerID = ev.OwnerID
		dto.Name = ev.Name
		dto.Type = ev.Type
		dto.CreatedAt = ev.CreatedAt
		dto.UpdatedAt = ev.CreatedAt
	case *OwnerNameSet:
		dto.Name = ev.Name
	case *OwnerTypeSet:
		dto.Type = ev.Type
	case *OwnerDescriptionSet:
		dto.Description = ev.Description
	case *OwnerSearchVisibilitySet:
		dto.SearchVisibility = ev.SearchVisibility
	case *OwnerLogicalDeleted:
		deletedAt := ev.DeletedAt
		dto.DeletedAt = &deletedAt
		dto.DeleteReason = ev.DeleteReason
	case *OwnerUndeleted:
		dto.DeletedAt = nil
		dto.DeleteReason = ""
	case *OwnerPhysicalDeleted:
		dto = DefaultOwnerDto()
	}
	return dto
}

// OwnerCommand is the closed union of owner commands.
type OwnerCommand interface {
	Command
	isOwnerCommand()
}

type OwnerCreate struct {
	OwnerID uuid.UUID
	Name    string
	Type    types.OwnerType
}

type OwnerSetName struct{ Name string }

type OwnerSetType struct{ Type types.OwnerType }

type OwnerSetDescription struct{ Description string }

type OwnerSetSearchVisibility struct{ SearchVisibility types.SearchVisibility }

type OwnerDeleteLogical struct {
	DeleteReason string
	Force        bool
}

type OwnerDeletePhysical struct{ DeleteReason string }

type OwnerUndelete struct{}

func (*OwnerCreate) CommandType() string              { return "Create" }
func (*OwnerSetName) CommandType() string             { return "SetName" }
func (*OwnerSetType) CommandType() string             { return "SetType" }
func (*OwnerSetDescription) CommandType() string      { return "SetDescription" }
func (*OwnerSetSearchVisibility) CommandType() string { return "SetSearchVisibility" }
func (*OwnerDeleteLogical) CommandType() string       { return "DeleteLogical" }
func (*OwnerDeletePhysical) CommandType() string      { return "DeletePhysical" }
func (*OwnerUndelete) CommandType() string            { return "Undelete" }

func (*OwnerCreate) isOwnerCommand()              {}
func (*OwnerSetName) isOwnerCommand()             {}
func (*OwnerSetType) isOwnerCommand()             {}
func (*OwnerSetDescription) isOwnerCommand()      {}
func (*OwnerSetSearchVisibility) isOwnerCommand() {}
func (*OwnerDeleteLogical) isOwnerCommand()       {}
func (*OwnerDeletePhysical) isOwnerCommand()      {}
func (*OwnerUndelete) isOwnerCommand()            {}
