package actors

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/readmodel"
	"github.com/gracevcs/grace-server/pkg/storage"
	"github.com/gracevcs/grace-server/pkg/timers"
	"github.com/gracevcs/grace-server/pkg/types"
)

// testEnv wires a full in-process runtime: bolt store, broker, index,
// reminder service, and a host with every entity kind registered.
type testEnv struct {
	store     *storage.BoltStore
	broker    *events.Broker
	host      *actorhost.Host
	reminders *timers.ReminderService
	index     *readmodel.Index
	deps      *Deps
}

func newTestEnv(t *testing.T, retention types.RetentionPolicy) *testEnv {
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

	deps := &Deps{
		Store:            store,
		Broker:           broker,
		Host:             host,
		Reminders:        reminders,
		Index:            index,
		DefaultRetention: retention,
	}
	Register(host, deps)

	t.Cleanup(func() {
		reminders.Stop()
		host.Stop()
		index.Stop()
		broker.Stop()
		store.Close()
	})
	return &testEnv{
		store:     store,
		broker:    broker,
		host:      host,
		reminders: reminders,
		index:     index,
		deps:      deps,
	}
}

func (e *testEnv) waitFor(t *testing.T, cond func() bool) {
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

func corr() types.EventMetadata { return types.NewEventMetadata(uuid.NewString()) }

// Entity helpers used across the scenario tests.

func (e *testEnv) handleOwner(t *testing.T, ownerID uuid.UUID, cmd domain.OwnerCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	t.Helper()
	var rv *types.ReturnValue
	var handleErr error
	callErr := actorhost.Call(context.Background(), e.host, KindOwner, ownerID.String(), cmd.CommandType(),
		func(ctx context.Context, a *OwnerActor) error {
			rv, handleErr = a.Handle(ctx, cmd, md)
			return nil
		})
	require.NoError(t, callErr)
	return rv, handleErr
}

func (e *testEnv) handleRepository(t *testing.T, repoID uuid.UUID, cmd domain.RepositoryCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	t.Helper()
	var rv *types.ReturnValue
	var handleErr error
	callErr := actorhost.Call(context.Background(), e.host, KindRepository, repoID.String(), cmd.CommandType(),
		func(ctx context.Context, a *RepositoryActor) error {
			rv, handleErr = a.Handle(ctx, cmd, md)
			return nil
		})
	require.NoError(t, callErr)
	return rv, handleErr
}

func (e *testEnv) handleBranch(t *testing.T, branchID uuid.UUID, cmd domain.BranchCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	t.Helper()
	var rv *types.ReturnValue
	var handleErr error
	callErr := actorhost.Call(context.Background(), e.host, KindBranch, branchID.String(), cmd.CommandType(),
		func(ctx context.Context, a *BranchActor) error {
			rv, handleErr = a.Handle(ctx, cmd, md)
			return nil
		})
	require.NoError(t, callErr)
	return rv, handleErr
}

func (e *testEnv) ownerDto(t *testing.T, ownerID uuid.UUID) types.OwnerDto {
	t.Helper()
	var dto types.OwnerDto
	require.NoError(t, actorhost.Call(context.Background(), e.host, KindOwner, ownerID.String(), "Get",
		func(ctx context.Context, a *OwnerActor) error {
			dto = a.Get()
			return nil
		}))
	return dto
}

func (e *testEnv) branchDto(t *testing.T, branchID uuid.UUID) types.BranchDto {
	t.Helper()
	var dto types.BranchDto
	require.NoError(t, actorhost.Call(context.Background(), e.host, KindBranch, branchID.String(), "Get",
		func(ctx context.Context, a *BranchActor) error {
			dto = a.Get()
			return nil
		}))
	return dto
}

func (e *testEnv) referenceDto(t *testing.T, refID uuid.UUID) types.ReferenceDto {
	t.Helper()
	var dto types.ReferenceDto
	require.NoError(t, actorhost.Call(context.Background(), e.host, KindReference, refID.String(), "Get",
		func(ctx context.Context, a *ReferenceActor) error {
			dto = a.Get()
			return nil
		}))
	return dto
}

func (e *testEnv) referenceExists(t *testing.T, refID uuid.UUID) bool {
	t.Helper()
	var exists bool
	require.NoError(t, actorhost.Call(context.Background(), e.host, KindReference, refID.String(), "Get",
		func(ctx context.Context, a *ReferenceActor) error {
			exists = a.Exists()
			return nil
		}))
	return exists
}

func (e *testEnv) createOwner(t *testing.T) uuid.UUID {
	t.Helper()
	ownerID := uuid.New()
	_, err := e.handleOwner(t, ownerID, &domain.OwnerCreate{OwnerID: ownerID, Name: "alice", Type: types.OwnerTypeUser}, corr())
	require.NoError(t, err)
	return ownerID
}

func (e *testEnv) createRepository(t *testing.T, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	repoID := uuid.New()
	_, err := e.handleRepository(t, repoID, &domain.RepositoryCreate{
		RepositoryID: repoID,
		OwnerID:      ownerID,
		Name:         "vault",
	}, corr())
	require.NoError(t, err)
	return repoID
}

func (e *testEnv) createBranch(t *testing.T, repoID uuid.UUID, name string, parent *uuid.UUID, basedOn uuid.UUID) uuid.UUID {
	t.Helper()
	branchID := uuid.New()
	_, err := e.handleBranch(t, branchID, &domain.BranchCreate{
		BranchID:       branchID,
		RepositoryID:   repoID,
		ParentBranchID: parent,
		Name:           name,
		BasedOn:        basedOn,
	}, corr())
	require.NoError(t, err)
	return branchID
}

func spec() domain.ReferenceSpec {
	return domain.ReferenceSpec{
		DirectoryVersionID: uuid.New(),
		Sha256Hash:         "3b7a1f",
		Text:               "snapshot",
	}
}

func referenceIDFrom(t *testing.T, rv *types.ReturnValue) uuid.UUID {
	t.Helper()
	refID, err := uuid.Parse(rv.Properties[types.PropReferenceID])
	require.NoError(t, err)
	return refID
}
