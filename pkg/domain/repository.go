package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/types"
)

// RepositoryEvent is the closed union of repository events.
type RepositoryEvent interface {
	Event
	isRepositoryEvent()
}

type RepositoryCreated struct {
	RepositoryID   uuid.UUID             `json:"repositoryId"`
	OwnerID        uuid.UUID             `json:"ownerId"`
	OrganizationID uuid.UUID             `json:"organizationId"`
	Name           string                `json:"name"`
	Retention      types.RetentionPolicy `json:"retention"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// RepositoryInitialized marks the repository's initial branch and
// directory version as established.
type RepositoryInitialized struct{}

type RepositoryNameSet struct {
	Name string `json:"name"`
}

type RepositoryVisibilitySet struct {
	Visibility types.RepositoryVisibility `json:"visibility"`
}

type RepositoryStatusSet struct {
	Status types.RepositoryStatus `json:"status"`
}

type RepositoryRecordSavesSet struct {
	RecordSaves bool `json:"recordSaves"`
}

type RepositoryDefaultServerAPIVersionSet struct {
	DefaultServerAPIVersion string `json:"defaultServerApiVersion"`
}

type RepositorySaveDaysSet struct {
	SaveDays float64 `json:"saveDays"`
}

type RepositoryCheckpointDaysSet struct {
	CheckpointDays float64 `json:"checkpointDays"`
}

type RepositoryDiffCacheDaysSet struct {
	DiffCacheDays float64 `json:"diffCacheDays"`
}

type RepositoryDirectoryVersionCacheDaysSet struct {
	DirectoryVersionCacheDays float64 `json:"directoryVersionCacheDays"`
}

type RepositoryLogicalDeleteDaysSet struct {
	LogicalDeleteDays float64 `json:"logicalDeleteDays"`
}

type RepositoryLogicalDeleted struct {
	DeleteReason string    `json:"deleteReason"`
	DeletedAt    time.Time `json:"deletedAt"`
}

type RepositoryUndeleted struct{}

type RepositoryPhysicalDeleted struct {
	DeleteReason string `json:"deleteReason"`
}

func (*RepositoryCreated) EventType() string                      { return "Created" }
func (*RepositoryInitialized) EventType() string                  { return "Initialized" }
func (*RepositoryNameSet) EventType() string                      { return "NameSet" }
func (*RepositoryVisibilitySet) EventType() string                { return "VisibilitySet" }
func (*RepositoryStatusSet) EventType() string                    { return "StatusSet" }
func (*RepositoryRecordSavesSet) EventType() string               { return "RecordSavesSet" }
func (*RepositoryDefaultServerAPIVersionSet) EventType() string   { return "DefaultServerApiVersionSet" }
func (*RepositorySaveDaysSet) EventType() string                  { return "SaveDaysSet" }
func (*RepositoryCheckpointDaysSet) EventType() string            { return "CheckpointDaysSet" }
func (*RepositoryDiffCacheDaysSet) EventType() string             { return "DiffCacheDaysSet" }
func (*RepositoryDirectoryVersionCacheDaysSet) EventType() string { return "DirectoryVersionCacheDaysSet" }
func (*RepositoryLogicalDeleteDaysSet) EventType() string         { return "LogicalDeleteDaysSet" }
func (*RepositoryLogicalDeleted) EventType() string               { return "LogicalDeleted" }
func (*RepositoryUndeleted) EventType() string                    { return "Undeleted" }
func (*RepositoryPhysicalDeleted) EventType() string              { return "PhysicalDeleted" }

func (*RepositoryCreated) isRepositoryEvent()                      {}
func (*RepositoryInitialized) isRepositoryEvent()                  {}
func (*RepositoryNameSet) isRepositoryEvent()                      {}
func (*RepositoryVisibilitySet) isRepositoryEvent()                {}
func (*RepositoryStatusSet) isRepositoryEvent()                    {}
func (*RepositoryRecordSavesSet) isRepositoryEvent()               {}
func (*RepositoryDefaultServerAPIVersionSet) isRepositoryEvent()   {}
func (*RepositorySaveDaysSet) isRepositoryEvent()                  {}
func (*RepositoryCheckpointDaysSet) isRepositoryEvent()            {}
func (*RepositoryDiffCacheDaysSet) isRepositoryEvent()             {}
func (*RepositoryDirectoryVersionCacheDaysSet) isRepositoryEvent() {}
func (*RepositoryLogicalDeleteDaysSet) isRepositoryEvent()         {}
func (*RepositoryLogicalDeleted) isRepositoryEvent()               {}
func (*RepositoryUndeleted) isRepositoryEvent()                    {}
func (*RepositoryPhysicalDeleted) isRepositoryEvent()              {}

// RepositoryEventRegistry maps stable case names to constructors.
var RepositoryEventRegistry = map[string]func() RepositoryEvent{
	"Created":                      func() RepositoryEvent { return &RepositoryCreated{} },
	"Initialized":                  func() RepositoryEvent { return &RepositoryInitialized{} },
	"NameSet":                      func() RepositoryEvent { return &RepositoryNameSet{} },
	"VisibilitySet":                func() RepositoryEvent { return &RepositoryVisibilitySet{} },
	"StatusSet":                    func() RepositoryEvent { return &RepositoryStatusSet{} },
	"RecordSavesSet":               func() RepositoryEvent { return &RepositoryRecordSavesSet{} },
	"DefaultServerApiVersionSet":   func() RepositoryEvent { return &RepositoryDefaultServerAPIVersionSet{} },
	"SaveDaysSet":                  func() RepositoryEvent { return &RepositorySaveDaysSet{} },
	"CheckpointDaysSet":            func() RepositoryEvent { return &RepositoryCheckpointDaysSet{} },
	"DiffCacheDaysSet":             func() RepositoryEvent { return &RepositoryDiffCacheDaysSet{} },
	"DirectoryVersionCacheDaysSet": func() RepositoryEvent { return &RepositoryDirectoryVersionCacheDaysSet{} },
	"LogicalDeleteDaysSet":         func() RepositoryEvent { return &RepositoryLogicalDeleteDaysSet{} },
	"LogicalDeleted":               func() RepositoryEvent { return &RepositoryLogicalDeleted{} },
	"Undeleted":                    func() RepositoryEvent { return &RepositoryUndeleted{} },
	"PhysicalDeleted":              func() RepositoryEvent { return &RepositoryPhysicalDeleted{} },
}

// DefaultRepositoryDto is the fold seed.
func DefaultRepositoryDto() types.RepositoryDto {
	return types.RepositoryDto{
		Visibility:              types.RepositoryVisibilityPrivate,
		RepositoryStatus:        types.RepositoryStatusActive,
		DefaultServerAPIVersion: "v1",
		RecordSaves:             true,
		Retention:               types.DefaultRetentionPolicy(),
	}
}

// UpdateRepositoryDto is the pure fold of one event into the dto.
func UpdateRepositoryDto(e RepositoryEvent, dto types.RepositoryDto) types.RepositoryDto {
	switch ev := e.(type) {
	case *RepositoryCreated:
		dto.RepositoryID = ev.RepositoryID
		dto.OwnerID = ev.OwnerID
		dto.OrganizationID = ev.OrganizationID
		dto.Name = ev.Name
		dto.Retention = ev.Retention
		dto.CreatedAt = ev.CreatedAt
		dto.UpdatedAt = ev.CreatedAt
	case *RepositoryInitialized:
		dto.Initialized = true
	case *RepositoryNameSet:
		dto.Name = ev.Name
	case *RepositoryVisibilitySet:
		dto.Visibility = ev.Visibility
	case *RepositoryStatusSet:
		dto.RepositoryStatus = ev.Status
	case *RepositoryRecordSavesSet:
		dto.RecordSaves = ev.RecordSaves
	case *RepositoryDefaultServerAPIVersionSet:
		dto.DefaultServerAPIVersion = ev.DefaultServerAPIVersion
	case *RepositorySaveDaysSet:
		dto.Retention.SaveDays = ev.SaveDays
	case *RepositoryCheckpointDaysSet:
		dto.Retention.CheckpointDays = ev.CheckpointDays
	case *RepositoryDiffCacheDaysSet:
		dto.Retention.DiffCacheDays = ev.DiffCacheDays
	case *RepositoryDirectoryVersionCacheDaysSet:
		dto.Retention.DirectoryVersionCacheDays = ev.DirectoryVersionCacheDays
	case *RepositoryLogicalDeleteDaysSet:
		dto.Retention.LogicalDeleteDays = ev.LogicalDeleteDays
	case *RepositoryLogicalDeleted:
		deletedAt := ev.DeletedAt
		dto.DeletedAt = &deletedAt
		dto.DeleteReason = ev.DeleteReason
	case *RepositoryUndeleted:
		dto.DeletedAt = nil
		dto.DeleteReason = ""
	case *RepositoryPhysicalDeleted:
		dto = DefaultRepositoryDto()
	}
	return dto
}

// RepositoryCommand is the closed union of repository commands.
type RepositoryCommand interface {
	Command
	isRepositoryCommand()
}

type RepositoryCreate struct {
	RepositoryID   uuid.UUID
	OwnerID        uuid.UUID
	OrganizationID uuid.UUID
	Name           string
}

type RepositoryInitialize struct{}

type RepositorySetName struct{ Name string }

type RepositorySetVisibility struct{ Visibility types.RepositoryVisibility }

type RepositorySetStatus struct{ Status types.RepositoryStatus }

type RepositorySetRecordSaves struct{ RecordSaves bool }

type RepositorySetDefaultServerAPIVersion struct{ DefaultServerAPIVersion string }

type RepositorySetSaveDays struct{ SaveDays float64 }

type RepositorySetCheckpointDays struct{ CheckpointDays float64 }

type RepositorySetDiffCacheDays struct{ DiffCacheDays float64 }

type RepositorySetDirectoryVersionCacheDays struct{ DirectoryVersionCacheDays float64 }

type RepositorySetLogicalDeleteDays struct{ LogicalDeleteDays float64 }

type RepositoryDeleteLogical struct {
	DeleteReason string
	Force        bool
}

type RepositoryDeletePhysical struct{ DeleteReason string }

type RepositoryUndelete struct{}

func (*RepositoryCreate) CommandType() string                     { return "Create" }
func (*RepositoryInitialize) CommandType() string                 { return "Initialize" }
func (*RepositorySetName) CommandType() string                    { return "SetName" }
func (*RepositorySetVisibility) CommandType() string              { return "SetVisibility" }
func (*RepositorySetStatus) CommandType() string                  { return "SetStatus" }
func (*RepositorySetRecordSaves) CommandType() string             { return "SetRecordSaves" }
func (*RepositorySetDefaultServerAPIVersion) CommandType() string { return "SetDefaultServerApiVersion" }
func (*RepositorySetSaveDays) CommandType() string                { return "SetSaveDays" }
func (*RepositorySetCheckpointDays) CommandType() string          { return "SetCheckpointDays" }
func (*RepositorySetDiffCacheDays) CommandType() string           { return "SetDiffCacheDays" }
func (*RepositorySetDirectoryVersionCacheDays) CommandType() string {
	return "SetDirectoryVersionCacheDays"
}
func (*RepositorySetLogicalDeleteDays) CommandType() string { return "SetLogicalDeleteDays" }
func (*RepositoryDeleteLogical) CommandType() string        { return "DeleteLogical" }
func (*RepositoryDeletePhysical) CommandType() string       { return "DeletePhysical" }
func (*RepositoryUndelete) CommandType() string             { return "Undelete" }

func (*RepositoryCreate) isRepositoryCommand()                       {}
func (*RepositoryInitialize) isRepositoryCommand()                   {}
func (*RepositorySetName) isRepositoryCommand()                      {}
func (*RepositorySetVisibility) isRepositoryCommand()                {}
func (*RepositorySetStatus) isRepositoryCommand()                    {}
func (*RepositorySetRecordSaves) isRepositoryCommand()               {}
func (*RepositorySetDefaultServerAPIVersion) isRepositoryCommand()   {}
func (*RepositorySetSaveDays) isRepositoryCommand()                  {}
func (*RepositorySetCheckpointDays) isRepositoryCommand()            {}
func (*RepositorySetDiffCacheDays) isRepositoryCommand()             {}
func (*RepositorySetDirectoryVersionCacheDays) isRepositoryCommand() {}
func (*RepositorySetLogicalDeleteDays) isRepositoryCommand()         {}
func (*RepositoryDeleteLogical) isRepositoryCommand()                {}
func (*RepositoryDeletePhysical) isRepositoryCommand()               {}
func (*RepositoryUndelete) isRepositoryCommand()                     {}
