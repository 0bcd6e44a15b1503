package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gracevcs/grace-server/pkg/types"
)

func TestUpdateOwnerDto(t *testing.T) {
	ownerID := uuid.New()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dto := DefaultOwnerDto()
	dto = UpdateOwnerDto(&OwnerCreated{OwnerID: ownerID, Name: "alice", Type: types.OwnerTypeUser, CreatedAt: createdAt}, dto)

	assert.Equal(t, ownerID, dto.OwnerID)
	assert.Equal(t, "alice", dto.Name)
	assert.Equal(t, types.OwnerTypeUser, dto.Type)
	assert.Equal(t, createdAt, dto.CreatedAt)
	assert.Equal(t, types.StatusActive, dto.Status())

	dto = UpdateOwnerDto(&OwnerNameSet{Name: "alice2"}, dto)
	dto = UpdateOwnerDto(&OwnerDescriptionSet{Description: "hi"}, dto)
	dto = UpdateOwnerDto(&OwnerSearchVisibilitySet{SearchVisibility: types.SearchNotVisible}, dto)
	assert.Equal(t, "alice2", dto.Name)
	assert.Equal(t, "hi", dto.Description)
	assert.Equal(t, types.SearchNotVisible, dto.SearchVisibility)

	deletedAt := createdAt.Add(time.Hour)
	dto = UpdateOwnerDto(&OwnerLogicalDeleted{DeleteReason: "gone", DeletedAt: deletedAt}, dto)
	assert.Equal(t, types.StatusLogicallyDeleted, dto.Status())
	assert.Equal(t, "gone", dto.DeleteReason)

	dto = UpdateOwnerDto(&OwnerUndeleted{}, dto)
	assert.Equal(t, types.StatusActive, dto.Status())
	assert.Empty(t, dto.DeleteReason)

	dto = UpdateOwnerDto(&OwnerPhysicalDeleted{DeleteReason: "purge"}, dto)
	assert.Equal(t, DefaultOwnerDto(), dto)
	assert.Equal(t, types.StatusNonexistent, dto.Status())
}

// Folding the same log twice from the seed must produce identical dtos.
func TestOwnerFoldIsDeterministic(t *testing.T) {
	ownerID := uuid.New()
	log := []OwnerEvent{
		&OwnerCreated{OwnerID: ownerID, Name: "alice", Type: types.OwnerTypeUser, CreatedAt: time.Now().UTC()},
		&OwnerNameSet{Name: "renamed"},
		&OwnerTypeSet{Type: types.OwnerTypeOrganization},
	}

	fold := func() types.OwnerDto {
		dto := DefaultOwnerDto()
		for _, e := range log {
			dto = UpdateOwnerDto(e, dto)
		}
		return dto
	}
	assert.Equal(t, fold(), fold())
}

func TestOwnerRecordsRoundTrip(t *testing.T) {
	ownerID := uuid.New()
	records := []Record[OwnerEvent]{
		{Event: &OwnerCreated{OwnerID: ownerID, Name: "alice", Type: types.OwnerTypeUser}, Metadata: types.NewEventMetadata("corr-1")},
		{Event: &OwnerLogicalDeleted{DeleteReason: "bye", DeletedAt: time.Now().UTC()}, Metadata: types.NewEventMetadata("corr-2")},
	}

	data, err := MarshalRecords(records)
	assert.NoError(t, err)

	decoded, err := UnmarshalRecords(data, OwnerEventRegistry)
	assert.NoError(t, err)
	assert.Len(t, decoded, 2)

	created, ok := decoded[0].Event.(*OwnerCreated)
	assert.True(t, ok)
	assert.Equal(t, ownerID, created.OwnerID)
	assert.Equal(t, "corr-1", decoded[0].Metadata.CorrelationID)

	deleted, ok := decoded[1].Event.(*OwnerLogicalDeleted)
	assert.True(t, ok)
	assert.Equal(t, "bye", deleted.DeleteReason)
}

func TestUnmarshalUnknownEventType(t *testing.T) {
	_, err := UnmarshalOwnerEventWire([]byte(`{"type":"Exploded","data":{}}`))
	assert.Error(t, err)
}
