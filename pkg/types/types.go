package types

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// EntityName is the regex every human-chosen entity name must match.
var EntityName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{1,63}$`)

// IsValidName reports whether name is an admissible entity name.
func IsValidName(name string) bool {
	return EntityName.MatchString(name)
}

// EventMetadata accompanies every command and every published event.
// CorrelationID is required and is the per-entity idempotency key.
type EventMetadata struct {
	CorrelationID string            `json:"correlationId"`
	Timestamp     time.Time         `json:"timestamp"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// NewEventMetadata builds metadata stamped with the current time.
func NewEventMetadata(correlationID string) EventMetadata {
	return EventMetadata{
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Properties:    make(map[string]string),
	}
}

// ReturnValue is the enriched Ok result of a handled command.
type ReturnValue struct {
	EventType     string            `json:"eventType"`
	CorrelationID string            `json:"correlationId"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// Well-known property keys on return values and event envelopes.
const (
	PropOwnerID            = "ownerId"
	PropOrganizationID     = "organizationId"
	PropRepositoryID       = "repositoryId"
	PropBranchID           = "branchId"
	PropReferenceID        = "referenceId"
	PropDirectoryVersionID = "directoryVersionId"
)

// LifecycleStatus describes where an entity is in its life.
type LifecycleStatus string

const (
	StatusNonexistent      LifecycleStatus = "nonexistent"
	StatusActive           LifecycleStatus = "active"
	StatusLogicallyDeleted LifecycleStatus = "logically-deleted"
)

// OwnerType classifies an owner.
type OwnerType string

const (
	OwnerTypeUser         OwnerType = "User"
	OwnerTypeOrganization OwnerType = "Organization"
)

// SearchVisibility controls whether an entity appears in search.
type SearchVisibility string

const (
	SearchVisible    SearchVisibility = "Visible"
	SearchNotVisible SearchVisibility = "NotVisible"
)

// OrganizationType classifies an organization.
type OrganizationType string

const (
	OrganizationTypePublic  OrganizationType = "Public"
	OrganizationTypePrivate OrganizationType = "Private"
)

// RepositoryVisibility controls who can see a repository.
type RepositoryVisibility string

const (
	RepositoryVisibilityPrivate RepositoryVisibility = "Private"
	RepositoryVisibilityPublic  RepositoryVisibility = "Public"
)

// RepositoryStatus is the operational status of a repository.
type RepositoryStatus string

const (
	RepositoryStatusActive    RepositoryStatus = "Active"
	RepositoryStatusSuspended RepositoryStatus = "Suspended"
)

// ReferenceType is the kind of a reference, fixed at creation.
type ReferenceType string

const (
	ReferencePromotion  ReferenceType = "Promotion"
	ReferenceCommit     ReferenceType = "Commit"
	ReferenceCheckpoint ReferenceType = "Checkpoint"
	ReferenceSave       ReferenceType = "Save"
	ReferenceTag        ReferenceType = "Tag"
	ReferenceExternal   ReferenceType = "External"
	ReferenceRebase     ReferenceType = "Rebase"
)

// ReferenceTypes lists every admissible reference type.
var ReferenceTypes = []ReferenceType{
	ReferencePromotion,
	ReferenceCommit,
	ReferenceCheckpoint,
	ReferenceSave,
	ReferenceTag,
	ReferenceExternal,
	ReferenceRebase,
}

// RetentionPolicy holds per-repository retention windows in days.
// Fractional days are allowed; zero means immediate expiration.
type RetentionPolicy struct {
	SaveDays                  float64 `json:"saveDays" yaml:"saveDays"`
	CheckpointDays            float64 `json:"checkpointDays" yaml:"checkpointDays"`
	DiffCacheDays             float64 `json:"diffCacheDays" yaml:"diffCacheDays"`
	DirectoryVersionCacheDays float64 `json:"directoryVersionCacheDays" yaml:"directoryVersionCacheDays"`
	LogicalDeleteDays         float64 `json:"logicalDeleteDays" yaml:"logicalDeleteDays"`
}

// DefaultRetentionPolicy returns the retention applied to new repositories.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		SaveDays:                  7,
		CheckpointDays:            365,
		DiffCacheDays:             7,
		DirectoryVersionCacheDays: 7,
		LogicalDeleteDays:         30,
	}
}

// DaysToDuration converts a fractional day count to a duration.
func DaysToDuration(days float64) time.Duration {
	return time.Duration(days * float64(24*time.Hour))
}

// OwnerDto is the derived read-model of an owner.
type OwnerDto struct {
	OwnerID          uuid.UUID        `json:"ownerId"`
	Name             string           `json:"name"`
	Type             OwnerType        `json:"type"`
	Description      string           `json:"description"`
	SearchVisibility SearchVisibility `json:"searchVisibility"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	DeletedAt        *time.Time       `json:"deletedAt,omitempty"`
	DeleteReason     string           `json:"deleteReason,omitempty"`
}

// Status derives the lifecycle status from the dto.
func (d OwnerDto) Status() LifecycleStatus { return status(d.OwnerID, d.DeletedAt) }

// OrganizationDto is the derived read-model of an organization.
type OrganizationDto struct {
	OrganizationID   uuid.UUID        `json:"organizationId"`
	OwnerID          uuid.UUID        `json:"ownerId"`
	Name             string           `json:"name"`
	Type             OrganizationType `json:"type"`
	SearchVisibility SearchVisibility `json:"searchVisibility"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	DeletedAt        *time.Time       `json:"deletedAt,omitempty"`
	DeleteReason     string           `json:"deleteReason,omitempty"`
}

func (d OrganizationDto) Status() LifecycleStatus { return status(d.OrganizationID, d.DeletedAt) }

// RepositoryDto is the derived read-model of a repository.
type RepositoryDto struct {
	RepositoryID            uuid.UUID            `json:"repositoryId"`
	OwnerID                 uuid.UUID            `json:"ownerId"`
	OrganizationID          uuid.UUID            `json:"organizationId"`
	Name                    string               `json:"name"`
	Visibility              RepositoryVisibility `json:"visibility"`
	RepositoryStatus        RepositoryStatus     `json:"status"`
	DefaultServerAPIVersion string               `json:"defaultServerApiVersion"`
	RecordSaves             bool                 `json:"recordSaves"`
	Retention               RetentionPolicy      `json:"retention"`
	Initialized             bool                 `json:"initialized"`
	CreatedAt               time.Time            `json:"createdAt"`
	UpdatedAt               time.Time            `json:"updatedAt"`
	DeletedAt               *time.Time           `json:"deletedAt,omitempty"`
	DeleteReason            string               `json:"deleteReason,omitempty"`
}

func (d RepositoryDto) Status() LifecycleStatus { return status(d.RepositoryID, d.DeletedAt) }

// BranchEnabledFeatures holds the per-reference-type enable flags.
type BranchEnabledFeatures struct {
	AssignEnabled     bool `json:"assignEnabled"`
	PromotionEnabled  bool `json:"promotionEnabled"`
	CommitEnabled     bool `json:"commitEnabled"`
	CheckpointEnabled bool `json:"checkpointEnabled"`
	SaveEnabled       bool `json:"saveEnabled"`
	TagEnabled        bool `json:"tagEnabled"`
	ExternalEnabled   bool `json:"externalEnabled"`
	AutoRebaseEnabled bool `json:"autoRebaseEnabled"`
}

// DefaultBranchFeatures enables everything except external references.
func DefaultBranchFeatures() BranchEnabledFeatures {
	return BranchEnabledFeatures{
		AssignEnabled:     true,
		PromotionEnabled:  true,
		CommitEnabled:     true,
		CheckpointEnabled: true,
		SaveEnabled:       true,
		TagEnabled:        true,
		ExternalEnabled:   false,
		AutoRebaseEnabled: true,
	}
}

// BranchDto is the derived read-model of a branch.
type BranchDto struct {
	BranchID         uuid.UUID             `json:"branchId"`
	RepositoryID     uuid.UUID             `json:"repositoryId"`
	ParentBranchID   *uuid.UUID            `json:"parentBranchId,omitempty"`
	Name             string                `json:"name"`
	BasedOn          uuid.UUID             `json:"basedOn"`
	LatestPromotion  uuid.UUID             `json:"latestPromotion"`
	LatestCommit     uuid.UUID             `json:"latestCommit"`
	LatestCheckpoint uuid.UUID             `json:"latestCheckpoint"`
	LatestSave       uuid.UUID             `json:"latestSave"`
	Features         BranchEnabledFeatures `json:"features"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	DeletedAt        *time.Time            `json:"deletedAt,omitempty"`
	DeleteReason     string                `json:"deleteReason,omitempty"`
}

func (d BranchDto) Status() LifecycleStatus { return status(d.BranchID, d.DeletedAt) }

// ReferenceDto is the derived read-model of a reference.
type ReferenceDto struct {
	ReferenceID        uuid.UUID     `json:"referenceId"`
	RepositoryID       uuid.UUID     `json:"repositoryId"`
	BranchID           uuid.UUID     `json:"branchId"`
	DirectoryVersionID uuid.UUID     `json:"directoryVersionId"`
	Sha256Hash         string        `json:"sha256Hash"`
	ReferenceType      ReferenceType `json:"referenceType"`
	Text               string        `json:"text"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
	DeletedAt          *time.Time    `json:"deletedAt,omitempty"`
	DeleteReason       string        `json:"deleteReason,omitempty"`
}

func (d ReferenceDto) Status() LifecycleStatus { return status(d.ReferenceID, d.DeletedAt) }

// FileEntry is one file within a directory version.
type FileEntry struct {
	RelativePath string `json:"relativePath"`
	Sha256Hash   string `json:"sha256Hash"`
	Size         int64  `json:"size"`
}

// DirectoryVersionDto is the derived read-model of a directory version.
// (RepositoryID, Sha256Hash) is unique: directory versions are
// content-addressed.
type DirectoryVersionDto struct {
	DirectoryVersionID uuid.UUID   `json:"directoryVersionId"`
	RepositoryID       uuid.UUID   `json:"repositoryId"`
	RelativePath       string      `json:"relativePath"`
	Sha256Hash         string      `json:"sha256Hash"`
	Files              []FileEntry `json:"files"`
	Size               int64       `json:"size"`
	Directories        []uuid.UUID `json:"directories,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	DeletedAt          *time.Time  `json:"deletedAt,omitempty"`
}

func (d DirectoryVersionDto) Status() LifecycleStatus {
	return status(d.DirectoryVersionID, d.DeletedAt)
}

func status(id uuid.UUID, deletedAt *time.Time) LifecycleStatus {
	if id == uuid.Nil {
		return StatusNonexistent
	}
	if deletedAt != nil {
		return StatusLogicallyDeleted
	}
	return StatusActive
}
