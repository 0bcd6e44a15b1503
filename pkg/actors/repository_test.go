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
	"github.com/gracevcs/grace-server/pkg/types"
)

func TestRepositoryCreateAppliesDefaultRetention(t *testing.T) {
	retention := types.DefaultRetentionPolicy()
	retention.SaveDays = 3
	env := newTestEnv(t, retention)
	ownerID := env.createOwner(t)
	repoID := env.createRepository(t, ownerID)

	var dto types.RepositoryDto
	require.NoError(t, actorhost.Call(context.Background(), env.host, KindRepository, repoID.String(), "Get",
		func(ctx context.Context, a *RepositoryActor) error {
			dto = a.Get()
			return nil
		}))
	assert.Equal(t, ownerID, dto.OwnerID)
	assert.Equal(t, 3.0, dto.Retention.SaveDays)
	assert.False(t, dto.Initialized)
}

func TestRepositoryInitializeOnce(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := env.createRepository(t, env.createOwner(t))

	_, err := env.handleRepository(t, repoID, &domain.RepositoryInitialize{}, corr())
	require.NoError(t, err)

	_, err = env.handleRepository(t, repoID, &domain.RepositoryInitialize{}, corr())
	assert.Equal(t, errcode.EntityAlreadyExists, errcode.CodeOf(err))
}

func TestRepositoryRetentionSetters(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := env.createRepository(t, env.createOwner(t))

	_, err := env.handleRepository(t, repoID, &domain.RepositorySetSaveDays{SaveDays: 1.5}, corr())
	require.NoError(t, err)
	_, err = env.handleRepository(t, repoID, &domain.RepositorySetLogicalDeleteDays{LogicalDeleteDays: 0}, corr())
	require.NoError(t, err)

	var policy types.RetentionPolicy
	require.NoError(t, actorhost.Call(context.Background(), env.host, KindRepository, repoID.String(), "GetRetention",
		func(ctx context.Context, a *RepositoryActor) error {
			policy = a.Retention()
			return nil
		}))
	assert.Equal(t, 1.5, policy.SaveDays)
	assert.Equal(t, 0.0, policy.LogicalDeleteDays)
}

func TestRepositoryNegativeRetentionRejected(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := env.createRepository(t, env.createOwner(t))

	_, err := env.handleRepository(t, repoID, &domain.RepositorySetCheckpointDays{CheckpointDays: -1}, corr())
	assert.Equal(t, errcode.ValueOutOfRange, errcode.CodeOf(err))
}

func TestRepositoryDeleteBlockedByBranches(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := env.createRepository(t, env.createOwner(t))
	env.createBranch(t, repoID, "main", nil, uuid.Nil)

	// Wait for the branch projection to land; the emptiness guard reads
	// the index.
	env.waitFor(t, func() bool {
		rows, err := env.index.ListBranches(repoID)
		require.NoError(t, err)
		return len(rows) == 1
	})

	_, err := env.handleRepository(t, repoID, &domain.RepositoryDeleteLogical{DeleteReason: "bye"}, corr())
	assert.Equal(t, errcode.RepositoryNotEmpty, errcode.CodeOf(err))

	_, err = env.handleRepository(t, repoID, &domain.RepositoryDeleteLogical{DeleteReason: "bye", Force: true}, corr())
	assert.NoError(t, err)
}

func TestRepositoryPhysicalDeleteCascades(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := env.createRepository(t, env.createOwner(t))
	branchID := env.createBranch(t, repoID, "main", nil, uuid.Nil)

	rv, err := env.handleBranch(t, branchID, &domain.BranchCommit{ReferenceSpec: spec()}, corr())
	require.NoError(t, err)
	refID := referenceIDFrom(t, rv)

	env.waitFor(t, func() bool {
		rows, err := env.index.ListBranches(repoID)
		require.NoError(t, err)
		refs, refErr := env.index.ListReferences(branchID, 0)
		require.NoError(t, refErr)
		return len(rows) == 1 && len(refs) == 1
	})

	_, err = env.handleRepository(t, repoID, &domain.RepositoryDeletePhysical{DeleteReason: "purge"}, corr())
	require.NoError(t, err)

	// The branch, its reference, and the projections are all gone.
	assert.False(t, env.referenceExists(t, refID))
	dto := env.branchDto(t, branchID)
	assert.Equal(t, types.StatusNonexistent, dto.Status())

	env.waitFor(t, func() bool {
		rows, err := env.index.ListBranches(repoID)
		require.NoError(t, err)
		refs, refErr := env.index.ListReferences(branchID, 0)
		require.NoError(t, refErr)
		return len(rows) == 0 && len(refs) == 0
	})
}
