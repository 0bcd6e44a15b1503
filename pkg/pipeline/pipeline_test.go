package pipeline

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/actors"
	"github.com/gracevcs/grace-server/pkg/cache"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/readmodel"
	"github.com/gracevcs/grace-server/pkg/resolve"
	"github.com/gracevcs/grace-server/pkg/storage"
	"github.com/gracevcs/grace-server/pkg/timers"
	"github.com/gracevcs/grace-server/pkg/types"
)

type pipelineEnv struct {
	pipeline *Pipeline
	index    *readmodel.Index
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	broker := events.NewBroker()
	broker.Start()
	index, err := readmodel.NewIndex(store.DB(), broker)
	require.NoError(t, err)
	index.Start()
	host := actorhost.NewHost(time.Hour)
	host.Start()
	reminders, err := timers.NewReminderService(store.DB(), host, 10*time.Millisecond)
	require.NoError(t, err)
	reminders.Start()

	actors.Register(host, &actors.Deps{
		Store:            store,
		Broker:           broker,
		Host:             host,
		Reminders:        reminders,
		Index:            index,
		DefaultRetention: types.DefaultRetentionPolicy(),
	})

	resolver := resolve.New(host, cache.NewExistenceCache(time.Minute))
	t.Cleanup(func() {
		reminders.Stop()
		host.Stop()
		index.Stop()
		broker.Stop()
		store.Close()
	})
	return &pipelineEnv{pipeline: New(host, resolver, index), index: index}
}

func (e *pipelineEnv) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// createHierarchy walks the full front door: owner, organization,
// repository, branch, all addressed by name afterwards.
func (e *pipelineEnv) createHierarchy(t *testing.T) (ownerID, orgID, repoID, branchID string) {
	t.Helper()
	ctx := context.Background()

	ownerID = uuid.NewString()
	resp := e.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       ownerID,
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)

	orgID = uuid.NewString()
	resp = e.pipeline.CreateOrganization(ctx, CreateOrganizationRequest{
		OrganizationID: orgID,
		Name:           "engineering",
		Type:           string(types.OrganizationTypePublic),
		OwnerID:        ownerID,
		CorrelationID:  uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)

	repoID = uuid.NewString()
	resp = e.pipeline.CreateRepository(ctx, CreateRepositoryRequest{
		RepositoryID:   repoID,
		Name:           "vault",
		OwnerID:        ownerID,
		OrganizationID: orgID,
		CorrelationID:  uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)

	branchID = uuid.NewString()
	resp = e.pipeline.CreateBranch(ctx, CreateBranchRequest{
		BranchID:      branchID,
		Name:          "main",
		RepositoryID:  repoID,
		CorrelationID: uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)
	return ownerID, orgID, repoID, branchID
}

func TestCreateOwnerAndGetByName(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	ownerID := uuid.NewString()
	resp := env.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       ownerID,
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)
	assert.Equal(t, "Created", resp.ReturnValue.EventType)

	got := env.pipeline.GetOwner(ctx, OwnerRequest{OwnerName: "alice", CorrelationID: uuid.NewString()})
	require.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, ownerID, got.Result.OwnerID.String())
	assert.Equal(t, types.OwnerTypeUser, got.Result.Type)
}

func TestCreateOwnerNameConflict(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	first := env.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       uuid.NewString(),
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	require.True(t, first.Ok())

	second := env.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       uuid.NewString(),
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	assert.False(t, second.Ok())
	assert.Equal(t, http.StatusBadRequest, second.Status)
	assert.Equal(t, string(errcode.NameAlreadyExists), second.Properties["errorCode"])
}

func TestRenameOwnerFreesOldName(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	ownerID := uuid.NewString()
	resp := env.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       ownerID,
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	require.True(t, resp.Ok())

	resp = env.pipeline.SetOwnerName(ctx, SetOwnerNameRequest{
		OwnerRequest: OwnerRequest{OwnerID: ownerID, CorrelationID: uuid.NewString()},
		NewName:      "alicia",
	})
	require.True(t, resp.Ok(), resp.Error)

	got := env.pipeline.GetOwner(ctx, OwnerRequest{OwnerName: "alicia", CorrelationID: uuid.NewString()})
	require.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, ownerID, got.Result.OwnerID.String())

	// The old name is released and can be claimed again.
	resp = env.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       uuid.NewString(),
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	assert.True(t, resp.Ok(), resp.Error)
}

func TestValidationFailureShape(t *testing.T) {
	env := newPipelineEnv(t)

	resp := env.pipeline.CreateOwner(context.Background(), CreateOwnerRequest{
		OwnerID:       "not-a-uuid",
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	assert.False(t, resp.Ok())
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, string(errcode.InvalidUUID), resp.Properties["errorCode"])
	assert.Equal(t, "not-a-uuid", resp.Properties["ownerId"])
	assert.NotEmpty(t, resp.Error)
}

func TestMissingCorrelationRejected(t *testing.T) {
	env := newPipelineEnv(t)

	resp := env.pipeline.CreateOwner(context.Background(), CreateOwnerRequest{
		OwnerID: uuid.NewString(),
		Name:    "alice",
		Type:    string(types.OwnerTypeUser),
	})
	assert.False(t, resp.Ok())
	assert.Equal(t, string(errcode.MissingCorrelationID), resp.Properties["errorCode"])
}

func TestCreateRepositoryFullPath(t *testing.T) {
	env := newPipelineEnv(t)
	ownerID, orgID, repoID, _ := env.createHierarchy(t)
	ctx := context.Background()

	// Resolvable by the (name, owner, organization) path.
	got := env.pipeline.GetRepository(ctx, RepositoryRequest{
		RepositoryName:   "vault",
		OwnerName:        "alice",
		OrganizationName: "engineering",
		CorrelationID:    uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, repoID, got.Result.RepositoryID.String())
	assert.Equal(t, ownerID, got.Result.OwnerID.String())
	assert.Equal(t, orgID, got.Result.OrganizationID.String())
	assert.Equal(t, types.DefaultRetentionPolicy(), got.Result.Retention)
}

func TestCommitThroughPipeline(t *testing.T) {
	env := newPipelineEnv(t)
	_, _, repoID, branchID := env.createHierarchy(t)
	ctx := context.Background()

	resp := env.pipeline.Commit(ctx, ReferenceRequest{
		BranchRequest: BranchRequest{
			BranchID:      branchID,
			CorrelationID: uuid.NewString(),
		},
		DirectoryVersionID: uuid.NewString(),
		Sha256Hash:         "3b7a1f",
		Text:               "first commit",
	})
	require.True(t, resp.Ok(), resp.Error)
	assert.Equal(t, "Committed", resp.ReturnValue.EventType)
	refID := resp.ReturnValue.Properties[types.PropReferenceID]
	require.NotEmpty(t, refID)
	assert.Equal(t, repoID, resp.ReturnValue.Properties[types.PropRepositoryID])

	env.waitFor(t, func() bool {
		rows, err := env.index.ListReferences(uuid.MustParse(branchID), 0)
		require.NoError(t, err)
		return len(rows) == 1
	})

	list := env.pipeline.ListReferences(ctx, ListReferencesRequest{
		BranchRequest: BranchRequest{BranchID: branchID, CorrelationID: uuid.NewString()},
	})
	require.Equal(t, http.StatusOK, list.Status)
	require.Len(t, list.Result, 1)
	assert.Equal(t, refID, list.Result[0].ReferenceID.String())

	ref := env.pipeline.GetReference(ctx, GetReferenceRequest{
		ReferenceID:   refID,
		CorrelationID: uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, ref.Status)
	assert.Equal(t, types.ReferenceCommit, ref.Result.ReferenceType)
}

func TestBranchResolvedByName(t *testing.T) {
	env := newPipelineEnv(t)
	_, _, repoID, branchID := env.createHierarchy(t)

	got := env.pipeline.GetBranch(context.Background(), BranchRequest{
		BranchName:    "main",
		RepositoryID:  repoID,
		CorrelationID: uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, branchID, got.Result.BranchID.String())
}

func TestRepositoryNameReusableAfterPhysicalDelete(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()
	ownerID, orgID, repoID, _ := env.createHierarchy(t)

	env.waitFor(t, func() bool {
		branches, err := env.index.ListBranches(uuid.MustParse(repoID))
		return err == nil && len(branches) == 1
	})
	callErr := actorhost.Call(ctx, env.pipeline.host, actors.KindRepository, repoID, "DeletePhysical",
		func(ctx context.Context, a *actors.RepositoryActor) error {
			_, handleErr := a.Handle(ctx, &domain.RepositoryDeletePhysical{DeleteReason: "purge"}, types.NewEventMetadata(uuid.NewString()))
			return handleErr
		})
	require.NoError(t, callErr)

	recreated := uuid.NewString()
	resp := env.pipeline.CreateRepository(ctx, CreateRepositoryRequest{
		RepositoryID:   recreated,
		Name:           "vault",
		OwnerID:        ownerID,
		OrganizationID: orgID,
		CorrelationID:  uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)

	got := env.pipeline.GetRepository(ctx, RepositoryRequest{
		RepositoryName: "vault",
		OwnerID:        ownerID,
		OrganizationID: orgID,
		CorrelationID:  uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, recreated, got.Result.RepositoryID.String())
}

func TestLogicallyDeletedOwnerKeepsName(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	ownerID := uuid.NewString()
	resp := env.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       ownerID,
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)

	resp = env.pipeline.DeleteOwner(ctx, DeleteOwnerRequest{
		OwnerRequest: OwnerRequest{OwnerID: ownerID, CorrelationID: uuid.NewString()},
		DeleteReason: "cleanup",
	})
	require.True(t, resp.Ok(), resp.Error)

	resp = env.pipeline.CreateOwner(ctx, CreateOwnerRequest{
		OwnerID:       uuid.NewString(),
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, string(errcode.NameAlreadyExists), resp.Properties["errorCode"])
}

func TestGetUnknownOwner(t *testing.T) {
	env := newPipelineEnv(t)

	got := env.pipeline.GetOwner(context.Background(), OwnerRequest{
		OwnerName:     "nobody",
		CorrelationID: uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.NotEmpty(t, got.Error)
}
