package timers

import "encoding/json"

// DeletionPayloadVersion is the current schema version of
// DeletionPayload. Decoders reject versions they do not know rather
// than misreading fields.
const DeletionPayloadVersion = 1

// DeletionPayload is the canonical payload of every PhysicalDeletion
// reminder, shared by the scheduling site and the decode site. Fields
// not applicable to the entity kind are left empty.
type DeletionPayload struct {
	Version        int    `json:"version"`
	OwnerID        string `json:"ownerId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	RepositoryID   string `json:"repositoryId,omitempty"`
	BranchID       string `json:"branchId,omitempty"`
	ReferenceID    string `json:"referenceId,omitempty"`
	DeleteReason   string `json:"deleteReason,omitempty"`
	CorrelationID  string `json:"correlationId"`
}

// Encode serializes the payload, stamping the current version.
func (p DeletionPayload) Encode() ([]byte, error) {
	p.Version = DeletionPayloadVersion
	return json.Marshal(p)
}

// DecodeDeletionPayload parses a payload and checks its version.
func DecodeDeletionPayload(data []byte) (DeletionPayload, error) {
	var p DeletionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return DeletionPayload{}, err
	}
	if p.Version != DeletionPayloadVersion {
		return DeletionPayload{}, ErrUnknownPayloadVersion
	}
	return p, nil
}
