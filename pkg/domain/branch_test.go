package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gracevcs/grace-server/pkg/types"
)

func newBranchDto(t *testing.T) types.BranchDto {
	t.Helper()
	dto := DefaultBranchDto()
	return UpdateBranchDto(&BranchCreated{
		BranchID:     uuid.New(),
		RepositoryID: uuid.New(),
		Name:         "main",
		Features:     types.DefaultBranchFeatures(),
		CreatedAt:    time.Now().UTC(),
	}, dto)
}

func TestBranchPointerEvents(t *testing.T) {
	dto := newBranchDto(t)
	promotion := uuid.New()
	commit := uuid.New()
	checkpoint := uuid.New()
	save := uuid.New()

	dto = UpdateBranchDto(&BranchPromoted{ReferenceID: promotion}, dto)
	assert.Equal(t, promotion, dto.LatestPromotion)
	// A promotion moves the base along with the pointer.
	assert.Equal(t, promotion, dto.BasedOn)

	dto = UpdateBranchDto(&BranchCommitted{ReferenceID: commit}, dto)
	dto = UpdateBranchDto(&BranchCheckpointed{ReferenceID: checkpoint}, dto)
	dto = UpdateBranchDto(&BranchSaved{ReferenceID: save}, dto)
	assert.Equal(t, commit, dto.LatestCommit)
	assert.Equal(t, checkpoint, dto.LatestCheckpoint)
	assert.Equal(t, save, dto.LatestSave)

	// Tags and externals carry no branch pointer.
	before := dto
	dto = UpdateBranchDto(&BranchTagged{ReferenceID: uuid.New()}, dto)
	dto = UpdateBranchDto(&BranchExternalCreated{ReferenceID: uuid.New()}, dto)
	assert.Equal(t, before, dto)
}

func TestBranchAssignedMovesBase(t *testing.T) {
	dto := newBranchDto(t)
	assigned := uuid.New()

	dto = UpdateBranchDto(&BranchAssigned{ReferenceID: assigned}, dto)
	assert.Equal(t, assigned, dto.BasedOn)
	assert.Equal(t, assigned, dto.LatestPromotion)
}

func TestBranchReferenceRemovedClearsPointers(t *testing.T) {
	dto := newBranchDto(t)
	commit := uuid.New()
	other := uuid.New()

	dto = UpdateBranchDto(&BranchCommitted{ReferenceID: commit}, dto)
	dto = UpdateBranchDto(&BranchSaved{ReferenceID: other}, dto)

	dto = UpdateBranchDto(&BranchReferenceRemoved{ReferenceID: commit}, dto)
	assert.Equal(t, uuid.Nil, dto.LatestCommit)
	assert.Equal(t, other, dto.LatestSave)
}

func TestBranchFeatureToggles(t *testing.T) {
	dto := newBranchDto(t)
	assert.True(t, dto.Features.SaveEnabled)

	dto = UpdateBranchDto(&BranchSaveEnabledSet{Enabled: false}, dto)
	assert.False(t, dto.Features.SaveEnabled)
	dto = UpdateBranchDto(&BranchSaveEnabledSet{Enabled: true}, dto)
	assert.True(t, dto.Features.SaveEnabled)
}

func TestBranchRebasedMovesBase(t *testing.T) {
	dto := newBranchDto(t)
	promotion := uuid.New()

	dto = UpdateBranchDto(&BranchRebased{BasedOn: promotion, ReferenceID: uuid.New()}, dto)
	assert.Equal(t, promotion, dto.BasedOn)
}

func TestIsTransientBranchEvent(t *testing.T) {
	transient := []BranchEvent{
		&BranchAssigned{}, &BranchPromoted{}, &BranchCommitted{},
		&BranchCheckpointed{}, &BranchSaved{}, &BranchTagged{},
		&BranchExternalCreated{},
	}
	for _, e := range transient {
		assert.True(t, IsTransientBranchEvent(e), e.EventType())
	}

	durable := []BranchEvent{
		&BranchCreated{}, &BranchNameSet{}, &BranchRebased{},
		&BranchReferenceRemoved{}, &BranchLogicalDeleted{},
		&BranchUndeleted{}, &BranchSaveEnabledSet{},
	}
	for _, e := range durable {
		assert.False(t, IsTransientBranchEvent(e), e.EventType())
	}
}

func TestBranchPhysicalDeletedResetsDto(t *testing.T) {
	dto := newBranchDto(t)
	dto = UpdateBranchDto(&BranchPhysicalDeleted{DeleteReason: "purge"}, dto)
	assert.Equal(t, DefaultBranchDto(), dto)
	assert.Equal(t, types.StatusNonexistent, dto.Status())
}
