package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/types"
)

// BranchEvent is the closed union of branch events.
//
// The pointer-update events (Assigned, Promoted, Committed,
// Checkpointed, Saved, Tagged, ExternalCreated) are applied in memory
// only: the reference actor has already persisted and published the
// authoritative event, and the branch's Latest* pointers are re-derived
// from the reference read-model on Activate.
type BranchEvent interface {
	Event
	isBranchEvent()
}

type BranchCreated struct {
	BranchID       uuid.UUID                   `json:"branchId"`
	RepositoryID   uuid.UUID                   `json:"repositoryId"`
	ParentBranchID *uuid.UUID                  `json:"parentBranchId,omitempty"`
	Name           string                      `json:"name"`
	BasedOn        uuid.UUID                   `json:"basedOn"`
	Features       types.BranchEnabledFeatures `json:"features"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

type BranchRebased struct {
	// BasedOn is the id of the promotion reference the branch was
	// rebased onto, not the id of the new Rebase reference.
	BasedOn     uuid.UUID `json:"basedOn"`
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchNameSet struct {
	Name string `json:"name"`
}

type BranchAssignEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchPromotionEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchCommitEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchCheckpointEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchSaveEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchTagEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchExternalEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchAutoRebaseEnabledSet struct {
	Enabled bool `json:"enabled"`
}

type BranchAssigned struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchPromoted struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchCommitted struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchCheckpointed struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchSaved struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchTagged struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchExternalCreated struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchReferenceRemoved struct {
	ReferenceID uuid.UUID `json:"referenceId"`
}

type BranchLogicalDeleted struct {
	DeleteReason string    `json:"deleteReason"`
	DeletedAt    time.Time `json:"deletedAt"`
}

type BranchUndeleted struct{}

type BranchPhysicalDeleted struct {
	DeleteReason string `json:"deleteReason"`
}

func (*BranchCreated) EventType() string              { return "Created" }
func (*BranchRebased) EventType() string              { return "Rebased" }
func (*BranchNameSet) EventType() string              { return "NameSet" }
func (*BranchAssignEnabledSet) EventType() string     { return "AssignEnabledSet" }
func (*BranchPromotionEnabledSet) EventType() string  { return "PromotionEnabledSet" }
func (*BranchCommitEnabledSet) EventType() string     { return "CommitEnabledSet" }
func (*BranchCheckpointEnabledSet) EventType() string { return "CheckpointEnabledSet" }
func (*BranchSaveEnabledSet) EventType() string       { return "SaveEnabledSet" }
func (*BranchTagEnabledSet) EventType() string        { return "TagEnabledSet" }
func (*BranchExternalEnabledSet) EventType() string   { return "ExternalEnabledSet" }
func (*BranchAutoRebaseEnabledSet) EventType() string { return "AutoRebaseEnabledSet" }
func (*BranchAssigned) EventType() string             { return "Assigned" }
func (*BranchPromoted) EventType() string             { return "Promoted" }
func (*BranchCommitted) EventType() string            { return "Committed" }
func (*BranchCheckpointed) EventType() string         { return "Checkpointed" }
func (*BranchSaved) EventType() string                { return "Saved" }
func (*BranchTagged) EventType() string               { return "Tagged" }
func (*BranchExternalCreated) EventType() string      { return "ExternalCreated" }
func (*BranchReferenceRemoved) EventType() string     { return "ReferenceRemoved" }
func (*BranchLogicalDeleted) EventType() string       { return "LogicalDeleted" }
func (*BranchUndeleted) EventType() string            { return "Undeleted" }
func (*BranchPhysicalDeleted) EventType() string      { return "PhysicalDeleted" }

func (*BranchCreated) isBranchEvent()              {}
func (*BranchRebased) isBranchEvent()              {}
func (*BranchNameSet) isBranchEvent()              {}
func (*BranchAssignEnabledSet) isBranchEvent()     {}
func (*BranchPromotionEnabledSet) isBranchEvent()  {}
func (*BranchCommitEnabledSet) isBranchEvent()     {}
func (*BranchCheckpointEnabledSet) isBranchEvent() {}
func (*BranchSaveEnabledSet) isBranchEvent()       {}
func (*BranchTagEnabledSet) isBranchEvent()        {}
func (*BranchExternalEnabledSet) isBranchEvent()   {}
func (*BranchAutoRebaseEnabledSet) isBranchEvent() {}
func (*BranchAssigned) isBranchEvent()             {}
func (*BranchPromoted) isBranchEvent()             {}
func (*BranchCommitted) isBranchEvent()            {}
func (*BranchCheckpointed) isBranchEvent()         {}
func (*BranchSaved) isBranchEvent()                {}
func (*BranchTagged) isBranchEvent()               {}
func (*BranchExternalCreated) isBranchEvent()      {}
func (*BranchReferenceRemoved) isBranchEvent()     {}
func (*BranchLogicalDeleted) isBranchEvent()       {}
func (*BranchUndeleted) isBranchEvent()            {}
func (*BranchPhysicalDeleted) isBranchEvent()      {}

// BranchEventRegistry maps stable case names to constructors.
var BranchEventRegistry = map[string]func() BranchEvent{
	"Created":              func() BranchEvent { return &BranchCreated{} },
	"Rebased":              func() BranchEvent { return &BranchRebased{} },
	"NameSet":              func() BranchEvent { return &BranchNameSet{} },
	"AssignEnabledSet":     func() BranchEvent { return &BranchAssignEnabledSet{} },
	"PromotionEnabledSet":  func() BranchEvent { return &BranchPromotionEnabledSet{} },
	"CommitEnabledSet":     func() BranchEvent { return &BranchCommitEnabledSet{} },
	"CheckpointEnabledSet": func() BranchEvent { return &BranchCheckpointEnabledSet{} },
	"SaveEnabledSet":       func() BranchEvent { return &BranchSaveEnabledSet{} },
	"TagEnabledSet":        func() BranchEvent { return &BranchTagEnabledSet{} },
	"ExternalEnabledSet":   func() BranchEvent { return &BranchExternalEnabledSet{} },
	"AutoRebaseEnabledSet": func() BranchEvent { return &BranchAutoRebaseEnabledSet{} },
	"Assigned":             func() BranchEvent { return &BranchAssigned{} },
	"Promoted":             func() BranchEvent { return &BranchPromoted{} },
	"Committed":            func() BranchEvent { return &BranchCommitted{} },
	"Checkpointed":         func() BranchEvent { return &BranchCheckpointed{} },
	"Saved":                func() BranchEvent { return &BranchSaved{} },
	"Tagged":               func() BranchEvent { return &BranchTagged{} },
	"ExternalCreated":      func() BranchEvent { return &BranchExternalCreated{} },
	"ReferenceRemoved":     func() BranchEvent { return &BranchReferenceRemoved{} },
	"LogicalDeleted":       func() BranchEvent { return &BranchLogicalDeleted{} },
	"Undeleted":            func() BranchEvent { return &BranchUndeleted{} },
	"PhysicalDeleted":      func() BranchEvent { return &BranchPhysicalDeleted{} },
}

// DefaultBranchDto is the fold seed.
func DefaultBranchDto() types.BranchDto {
	return types.BranchDto{
		Features: types.DefaultBranchFeatures(),
	}
}

// UpdateBranchDto is the pure fold of one branch event into the dto.
func UpdateBranchDto(e BranchEvent, dto types.BranchDto) types.BranchDto {
	switch ev := e.(type) {
	case *BranchCreated:
		dto.BranchID = ev.BranchID
		dto.RepositoryID = ev.RepositoryID
		dto.ParentBranchID = ev.ParentBranchID
		dto.Name = ev.Name
		dto.BasedOn = ev.BasedOn
		dto.Features = ev.Features
		dto.CreatedAt = ev.CreatedAt
		dto.UpdatedAt = ev.CreatedAt
	case *BranchRebased:
		dto.BasedOn = ev.BasedOn
	case *BranchNameSet:
		dto.Name = ev.Name
	case *BranchAssignEnabledSet:
		dto.Features.AssignEnabled = ev.Enabled
	case *BranchPromotionEnabledSet:
		dto.Features.PromotionEnabled = ev.Enabled
	case *BranchCommitEnabledSet:
		dto.Features.CommitEnabled = ev.Enabled
	case *BranchCheckpointEnabledSet:
		dto.Features.CheckpointEnabled = ev.Enabled
	case *BranchSaveEnabledSet:
		dto.Features.SaveEnabled = ev.Enabled
	case *BranchTagEnabledSet:
		dto.Features.TagEnabled = ev.Enabled
	case *BranchExternalEnabledSet:
		dto.Features.ExternalEnabled = ev.Enabled
	case *BranchAutoRebaseEnabledSet:
		dto.Features.AutoRebaseEnabled = ev.Enabled
	case *BranchAssigned:
		dto.BasedOn = ev.ReferenceID
		dto.LatestPromotion = ev.ReferenceID
	case *BranchPromoted:
		dto.LatestPromotion = ev.ReferenceID
		dto.BasedOn = ev.ReferenceID
	case *BranchCommitted:
		dto.LatestCommit = ev.ReferenceID
	case *BranchCheckpointed:
		dto.LatestCheckpoint = ev.ReferenceID
	case *BranchSaved:
		dto.LatestSave = ev.ReferenceID
	case *BranchTagged, *BranchExternalCreated:
		// No pointer to update; the reference event is authoritative.
	case *BranchReferenceRemoved:
		// Conservatively clear any pointer to the removed reference;
		// Activate re-derives the pointers from the reference index.
		if dto.LatestPromotion == ev.ReferenceID {
			dto.LatestPromotion = uuid.Nil
		}
		if dto.LatestCommit == ev.ReferenceID {
			dto.LatestCommit = uuid.Nil
		}
		if dto.LatestCheckpoint == ev.ReferenceID {
			dto.LatestCheckpoint = uuid.Nil
		}
		if dto.LatestSave == ev.ReferenceID {
			dto.LatestSave = uuid.Nil
		}
	case *BranchLogicalDeleted:
		deletedAt := ev.DeletedAt
		dto.DeletedAt = &deletedAt
		dto.DeleteReason = ev.DeleteReason
	case *BranchUndeleted:
		dto.DeletedAt = nil
		dto.DeleteReason = ""
	case *BranchPhysicalDeleted:
		dto = DefaultBranchDto()
	}
	return dto
}

// IsTransientBranchEvent reports whether the event is a pointer-update
// event that must not be persisted or republished by the branch.
func IsTransientBranchEvent(e BranchEvent) bool {
	switch e.(type) {
	case *BranchAssigned, *BranchPromoted, *BranchCommitted,
		*BranchCheckpointed, *BranchSaved, *BranchTagged,
		*BranchExternalCreated:
		return true
	}
	return false
}

// BranchCommand is the closed union of branch commands.
type BranchCommand interface {
	Command
	isBranchCommand()
}

type BranchCreate struct {
	BranchID       uuid.UUID
	RepositoryID   uuid.UUID
	ParentBranchID *uuid.UUID
	Name           string
	BasedOn        uuid.UUID
}

type BranchRebase struct {
	// ReferenceID names a promotion reference on the parent branch.
	ReferenceID uuid.UUID
}

type BranchSetName struct{ Name string }

type BranchEnableAssign struct{ Enabled bool }
type BranchEnablePromotion struct{ Enabled bool }
type BranchEnableCommit struct{ Enabled bool }
type BranchEnableCheckpoint struct{ Enabled bool }
type BranchEnableSave struct{ Enabled bool }
type BranchEnableTag struct{ Enabled bool }
type BranchEnableExternal struct{ Enabled bool }
type BranchEnableAutoRebase struct{ Enabled bool }

// ReferenceSpec carries the payload shared by every reference-producing
// branch command.
type ReferenceSpec struct {
	DirectoryVersionID uuid.UUID
	Sha256Hash         string
	Text               string
}

type BranchAssign struct{ ReferenceSpec }
type BranchPromote struct{ ReferenceSpec }
type BranchCommit struct{ ReferenceSpec }
type BranchCheckpoint struct{ ReferenceSpec }
type BranchSave struct{ ReferenceSpec }
type BranchTag struct{ ReferenceSpec }
type BranchCreateExternal struct{ ReferenceSpec }

type BranchRemoveReference struct{ ReferenceID uuid.UUID }

type BranchDeleteLogical struct {
	DeleteReason string
	Force        bool
}

type BranchDeletePhysical struct{ DeleteReason string }

type BranchUndelete struct{}

func (*BranchCreate) CommandType() string           { return "Create" }
func (*BranchRebase) CommandType() string           { return "Rebase" }
func (*BranchSetName) CommandType() string          { return "SetName" }
func (*BranchEnableAssign) CommandType() string     { return "EnableAssign" }
func (*BranchEnablePromotion) CommandType() string  { return "EnablePromotion" }
func (*BranchEnableCommit) CommandType() string     { return "EnableCommit" }
func (*BranchEnableCheckpoint) CommandType() string { return "EnableCheckpoint" }
func (*BranchEnableSave) CommandType() string       { return "EnableSave" }
func (*BranchEnableTag) CommandType() string        { return "EnableTag" }
func (*BranchEnableExternal) CommandType() string   { return "EnableExternal" }
func (*BranchEnableAutoRebase) CommandType() string { return "EnableAutoRebase" }
func (*BranchAssign) CommandType() string           { return "Assign" }
func (*BranchPromote) CommandType() string          { return "Promote" }
func (*BranchCommit) CommandType() string           { return "Commit" }
func (*BranchCheckpoint) CommandType() string       { return "Checkpoint" }
func (*BranchSave) CommandType() string             { return "Save" }
func (*BranchTag) CommandType() string              { return "Tag" }
func (*BranchCreateExternal) CommandType() string   { return "CreateExternal" }
func (*BranchRemoveReference) CommandType() string  { return "RemoveReference" }
func (*BranchDeleteLogical) CommandType() string    { return "DeleteLogical" }
func (*BranchDeletePhysical) CommandType() string   { return "DeletePhysical" }
func (*BranchUndelete) CommandType() string         { return "Undelete" }

func (*BranchCreate) isBranchCommand()           {}
func (*BranchRebase) isBranchCommand()           {}
func (*BranchSetName) isBranchCommand()          {}
func (*BranchEnableAssign) isBranchCommand()     {}
func (*BranchEnablePromotion) isBranchCommand()  {}
func (*BranchEnableCommit) isBranchCommand()     {}
func (*BranchEnableCheckpoint) isBranchCommand() {}
func (*BranchEnableSave) isBranchCommand()       {}
func (*BranchEnableTag) isBranchCommand()        {}
func (*BranchEnableExternal) isBranchCommand()   {}
func (*BranchEnableAutoRebase) isBranchCommand() {}
func (*BranchAssign) isBranchCommand()           {}
func (*BranchPromote) isBranchCommand()          {}
func (*BranchCommit) isBranchCommand()           {}
func (*BranchCheckpoint) isBranchCommand()       {}
func (*BranchSave) isBranchCommand()             {}
func (*BranchTag) isBranchCommand()              {}
func (*BranchCreateExternal) isBranchCommand()   {}
func (*BranchRemoveReference) isBranchCommand()  {}
func (*BranchDeleteLogical) isBranchCommand()    {}
func (*BranchDeletePhysical) isBranchCommand()   {}
func (*BranchUndelete) isBranchCommand()         {}
