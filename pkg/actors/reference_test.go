package actors

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/timers"
	"github.com/gracevcs/grace-server/pkg/types"
)

func (e *testEnv) handleReference(t *testing.T, refID uuid.UUID, cmd domain.ReferenceCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	t.Helper()
	var rv *types.ReturnValue
	var handleErr error
	callErr := actorhost.Call(context.Background(), e.host, KindReference, refID.String(), cmd.CommandType(),
		func(ctx context.Context, a *ReferenceActor) error {
			rv, handleErr = a.Handle(ctx, cmd, md)
			return nil
		})
	require.NoError(t, callErr)
	return rv, handleErr
}

func TestReferenceCreateOnce(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	refID := uuid.New()
	s := spec()

	_, err := env.handleReference(t, refID, &domain.ReferenceCreate{
		ReferenceID:        refID,
		DirectoryVersionID: s.DirectoryVersionID,
		Sha256Hash:         s.Sha256Hash,
		ReferenceType:      types.ReferenceTag,
		Text:               s.Text,
	}, corr())
	require.NoError(t, err)

	_, err = env.handleReference(t, refID, &domain.ReferenceCreate{ReferenceID: refID}, corr())
	assert.Equal(t, errcode.EntityAlreadyExists, errcode.CodeOf(err))

	_, err = env.handleReference(t, uuid.New(), &domain.ReferenceDeleteLogical{DeleteReason: "x"}, corr())
	assert.Equal(t, errcode.ReferenceNotFound, errcode.CodeOf(err))
}

func TestReferenceSaveExpiresImmediately(t *testing.T) {
	retention := types.DefaultRetentionPolicy()
	retention.SaveDays = 0
	env := newTestEnv(t, retention)
	repoID := env.createRepository(t, env.createOwner(t))
	branchID := env.createBranch(t, repoID, "main", nil, uuid.Nil)

	rv, err := env.handleBranch(t, branchID, &domain.BranchSave{ReferenceSpec: spec()}, corr())
	require.NoError(t, err)
	refID := referenceIDFrom(t, rv)

	// SaveDays of zero arms an immediately-due reminder; the next tick
	// wipes the reference.
	env.waitFor(t, func() bool { return !env.referenceExists(t, refID) })
}

func TestReferenceCheckpointArmsExpiry(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := env.createRepository(t, env.createOwner(t))
	branchID := env.createBranch(t, repoID, "main", nil, uuid.Nil)

	rv, err := env.handleBranch(t, branchID, &domain.BranchCheckpoint{ReferenceSpec: spec()}, corr())
	require.NoError(t, err)
	refID := referenceIDFrom(t, rv)

	pending, err := env.reminders.Pending(KindReference, refID.String(), timers.ReminderPhysicalDeletion)
	require.NoError(t, err)
	assert.True(t, pending)
	assert.True(t, env.referenceExists(t, refID))
}

func TestReferenceLogicalDeleteAndUndelete(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := env.createRepository(t, env.createOwner(t))
	branchID := env.createBranch(t, repoID, "main", nil, uuid.Nil)

	rv, err := env.handleBranch(t, branchID, &domain.BranchCommit{ReferenceSpec: spec()}, corr())
	require.NoError(t, err)
	refID := referenceIDFrom(t, rv)

	_, err = env.handleReference(t, refID, &domain.ReferenceDeleteLogical{DeleteReason: "stale"}, corr())
	require.NoError(t, err)
	assert.NotNil(t, env.referenceDto(t, refID).DeletedAt)

	pending, err := env.reminders.Pending(KindReference, refID.String(), timers.ReminderPhysicalDeletion)
	require.NoError(t, err)
	assert.True(t, pending)

	_, err = env.handleReference(t, refID, &domain.ReferenceUndelete{}, corr())
	require.NoError(t, err)
	assert.Nil(t, env.referenceDto(t, refID).DeletedAt)

	pending, err = env.reminders.Pending(KindReference, refID.String(), timers.ReminderPhysicalDeletion)
	require.NoError(t, err)
	assert.False(t, pending)

	_, err = env.handleReference(t, refID, &domain.ReferenceUndelete{}, corr())
	assert.Equal(t, errcode.EntityNotDeleted, errcode.CodeOf(err))
}
