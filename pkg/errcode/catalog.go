package errcode

// catalog maps each code to its default English message. A localized
// catalog can be layered in by the transport; the codes themselves are
// the stable contract.
var catalog = map[Code]string{
	InvalidName:          "the name is not a valid entity name",
	InvalidUUID:          "the value is not a valid UUID",
	InvalidEnumValue:     "the value is not a member of the expected enumeration",
	ValueOutOfRange:      "the value is outside the allowed range",
	MissingCorrelationID: "a correlation id is required",
	MissingParameter:     "a required parameter is missing",

	OwnerNotFound:            "the owner does not exist",
	OrganizationNotFound:     "the organization does not exist",
	RepositoryNotFound:       "the repository does not exist",
	BranchNotFound:           "the branch does not exist",
	ReferenceNotFound:        "the reference does not exist",
	DirectoryVersionNotFound: "the directory version does not exist",
	EntityDoesNotExist:       "the entity does not exist",

	DuplicateCorrelationID: "this correlation id was already used against this entity",
	EntityAlreadyExists:    "the entity already exists",
	NameAlreadyExists:      "an entity with this name already exists",
	EntityDeleted:          "the entity has been deleted",
	EntityNotDeleted:       "the entity is not deleted",

	AssignIsDisabled:          "assign is not enabled on this branch",
	PromotionIsDisabled:       "promotion is not enabled on this branch",
	CommitIsDisabled:          "commits are not enabled on this branch",
	CheckpointIsDisabled:      "checkpoints are not enabled on this branch",
	SaveIsDisabled:            "saves are not enabled on this branch",
	TagIsDisabled:             "tags are not enabled on this branch",
	ExternalIsDisabled:        "external references are not enabled on this branch",
	AutoRebaseIsDisabled:      "auto-rebase is not enabled on this branch",
	NotBasedOnLatestPromotion: "the branch is not based on the latest promotion of its parent",
	RepositoryNotEmpty:        "the repository still contains branches",
	BranchNotEmpty:            "the branch still contains references",
	InvalidReferenceType:      "the reference has the wrong reference type for this operation",

	Sha256Mismatch: "the computed sha256 hash does not match the provided hash",
	SizeMismatch:   "the declared size does not match the sum of file sizes",

	StateStoreUnavailable: "the state store is unavailable",
	EventBusUnavailable:   "the event bus is unavailable",

	InternalError: "an unexpected internal error occurred",
}

// Message resolves a code through the catalog.
func Message(c Code) string {
	if m, ok := catalog[c]; ok {
		return m
	}
	return catalog[InternalError]
}
