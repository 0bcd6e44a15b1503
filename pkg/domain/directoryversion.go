package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/types"
)

// DirectoryVersionEvent is the closed union of directory version events.
type DirectoryVersionEvent interface {
	Event
	isDirectoryVersionEvent()
}

type DirectoryVersionCreated struct {
	DirectoryVersionID uuid.UUID         `json:"directoryVersionId"`
	RepositoryID       uuid.UUID         `json:"repositoryId"`
	RelativePath       string            `json:"relativePath"`
	Sha256Hash         string            `json:"sha256Hash"`
	Files              []types.FileEntry `json:"files"`
	Size               int64             `json:"size"`
	Directories        []uuid.UUID       `json:"directories,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

type DirectoryVersionLogicalDeleted struct {
	DeletedAt time.Time `json:"deletedAt"`
}

type DirectoryVersionPhysicalDeleted struct{}

func (*DirectoryVersionCreated) EventType() string         { return "Created" }
func (*DirectoryVersionLogicalDeleted) EventType() string  { return "LogicalDeleted" }
func (*DirectoryVersionPhysicalDeleted) EventType() string { return "PhysicalDeleted" }

func (*DirectoryVersionCreated) isDirectoryVersionEvent()         {}
func (*DirectoryVersionLogicalDeleted) isDirectoryVersionEvent()  {}
func (*DirectoryVersionPhysicalDeleted) isDirectoryVersionEvent() {}

// DirectoryVersionEventRegistry maps stable case names to constructors.
var DirectoryVersionEventRegistry = map[string]func() DirectoryVersionEvent{
	"Created":         func() DirectoryVersionEvent { return &DirectoryVersionCreated{} },
	"LogicalDeleted":  func() DirectoryVersionEvent { return &DirectoryVersionLogicalDeleted{} },
	"PhysicalDeleted": func() DirectoryVersionEvent { return &DirectoryVersionPhysicalDeleted{} },
}

// DefaultDirectoryVersionDto is the fold seed.
func DefaultDirectoryVersionDto() types.DirectoryVersionDto {
	return types.DirectoryVersionDto{}
}

// UpdateDirectoryVersionDto is the pure fold of one event into the dto.
func UpdateDirectoryVersionDto(e DirectoryVersionEvent, dto types.DirectoryVersionDto) types.DirectoryVersionDto {
	switch ev := e.(type) {
	case *DirectoryVersionCreated:
		dto.DirectoryVersionID = ev.DirectoryVersionID
		dto.RepositoryID = ev.RepositoryID
		dto.RelativePath = ev.RelativePath
		dto.Sha256Hash = ev.Sha256Hash
		dto.Files = ev.Files
		dto.Size = ev.Size
		dto.Directories = ev.Directories
		dto.CreatedAt = ev.CreatedAt
	case *DirectoryVersionLogicalDeleted:
		deletedAt := ev.DeletedAt
		dto.DeletedAt = &deletedAt
	case *DirectoryVersionPhysicalDeleted:
		dto = DefaultDirectoryVersionDto()
	}
	return dto
}

// DirectoryVersionCommand is the closed union of directory version
// commands.
type DirectoryVersionCommand interface {
	Command
	isDirectoryVersionCommand()
}

type DirectoryVersionCreate struct {
	DirectoryVersionID uuid.UUID
	RepositoryID       uuid.UUID
	RelativePath       string
	Sha256Hash         string
	Files              []types.FileEntry
	Size               int64
	Directories        []uuid.UUID
}

type DirectoryVersionDeleteLogical struct{}

type DirectoryVersionDeletePhysical struct{}

func (*DirectoryVersionCreate) CommandType() string         { return "Create" }
func (*DirectoryVersionDeleteLogical) CommandType() string  { return "DeleteLogical" }
func (*DirectoryVersionDeletePhysical) CommandType() string { return "DeletePhysical" }

func (*DirectoryVersionCreate) isDirectoryVersionCommand()         {}
func (*DirectoryVersionDeleteLogical) isDirectoryVersionCommand()  {}
func (*DirectoryVersionDeletePhysical) isDirectoryVersionCommand() {}
