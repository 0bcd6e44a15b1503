package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/types"
)

// ReferenceEvent is the closed union of reference events. A reference
// is immutable once created apart from (un)deletion.
type ReferenceEvent interface {
	Event
	isReferenceEvent()
}

type ReferenceCreated struct {
	ReferenceID        uuid.UUID           `json:"referenceId"`
	RepositoryID       uuid.UUID           `json:"repositoryId"`
	BranchID           uuid.UUID           `json:"branchId"`
	DirectoryVersionID uuid.UUID           `json:"directoryVersionId"`
	Sha256Hash         string              `json:"sha256Hash"`
	ReferenceType      types.ReferenceType `json:"referenceType"`
	Text               string              `json:"text"`
	CreatedAt          time.Time           `json:"createdAt"`
}

type ReferenceLogicalDeleted struct {
	DeleteReason string    `json:"deleteReason"`
	DeletedAt    time.Time `json:"deletedAt"`
}

type ReferenceUndeleted struct{}

type ReferencePhysicalDeleted struct {
	DeleteReason string `json:"deleteReason"`
}

func (*ReferenceCreated) EventType() string         { return "Created" }
func (*ReferenceLogicalDeleted) EventType() string  { return "LogicalDeleted" }
func (*ReferenceUndeleted) EventType() string       { return "Undeleted" }
func (*ReferencePhysicalDeleted) EventType() string { return "PhysicalDeleted" }

func (*ReferenceCreated) isReferenceEvent()         {}
func (*ReferenceLogicalDeleted) isReferenceEvent()  {}
func (*ReferenceUndeleted) isReferenceEvent()       {}
func (*ReferencePhysicalDeleted) isReferenceEvent() {}

// ReferenceEventRegistry maps stable case names to constructors.
var ReferenceEventRegistry = map[string]func() ReferenceEvent{
	"Created":         func() ReferenceEvent { return &ReferenceCreated{} },
	"LogicalDeleted":  func() ReferenceEvent { return &ReferenceLogicalDeleted{} },
	"Undeleted":       func() ReferenceEvent { return &ReferenceUndeleted{} },
	"PhysicalDeleted": func() ReferenceEvent { return &ReferencePhysicalDeleted{} },
}

// DefaultReferenceDto is the fold seed.
func DefaultReferenceDto() types.ReferenceDto {
	return types.ReferenceDto{}
}

// UpdateReferenceDto is the pure fold of one event into the dto.
func UpdateReferenceDto(e ReferenceEvent, dto types.ReferenceDto) types.ReferenceDto {
	switch ev := e.(type) {
	case *ReferenceCreated:
		dto.ReferenceID = ev.ReferenceID
		dto.RepositoryID = ev.RepositoryID
		dto.BranchID = ev.BranchID
		dto.DirectoryVersionID = ev.DirectoryVersionID
		dto.Sha256Hash = ev.Sha256Hash
		dto.ReferenceType = ev.ReferenceType
		dto.Text = ev.Text
		dto.CreatedAt = ev.CreatedAt
		dto.UpdatedAt = ev.CreatedAt
	case *ReferenceLogicalDeleted:
		deletedAt := ev.DeletedAt
		dto.DeletedAt = &deletedAt
		dto.DeleteReason = ev.DeleteReason
	case *ReferenceUndeleted:
		dto.DeletedAt = nil
		dto.DeleteReason = ""
	case *ReferencePhysicalDeleted:
		dto = DefaultReferenceDto()
	}
	return dto
}

// ReferenceCommand is the closed union of reference commands.
type ReferenceCommand interface {
	Command
	isReferenceCommand()
}

type ReferenceCreate struct {
	ReferenceID        uuid.UUID
	RepositoryID       uuid.UUID
	BranchID           uuid.UUID
	DirectoryVersionID uuid.UUID
	Sha256Hash         string
	ReferenceType      types.ReferenceType
	Text               string
}

type ReferenceDeleteLogical struct{ DeleteReason string }

type ReferenceDeletePhysical struct{ DeleteReason string }

type ReferenceUndelete struct{}

func (*ReferenceCreate) CommandType() string         { return "Create" }
func (*ReferenceDeleteLogical) CommandType() string  { return "DeleteLogical" }
func (*ReferenceDeletePhysical) CommandType() string { return "DeletePhysical" }
func (*ReferenceUndelete) CommandType() string       { return "Undelete" }

func (*ReferenceCreate) isReferenceCommand()         {}
func (*ReferenceDeleteLogical) isReferenceCommand()  {}
func (*ReferenceDeletePhysical) isReferenceCommand() {}
func (*ReferenceUndelete) isReferenceCommand()       {}
