package actors

import (
	"context"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/storage"
)

// idKey is the single state-store key of a name-index cell.
const idKey = "id"

// NameIndexActor is a persisted name → entity-id cell. It is not
// event-sourced: the cell holds at most one id and enforces the rule
// that a name maps to at most one active entity under its ancestors.
// The actor id is the composite name key, e.g.
// "{repo-name}|{owner-id}|{org-id}" for repository names.
type NameIndexActor struct {
	kind     string
	id       string
	store    storage.Store
	entityID uuid.UUID
	disposed bool
}

// NewNameIndexActorFactory returns the host factory for one of the
// name-index kinds.
func NewNameIndexActorFactory(kind string, deps *Deps) actorhost.Factory {
	return func(id string) actorhost.Actor {
		return &NameIndexActor{kind: kind, id: id, store: deps.Store}
	}
}

func (a *NameIndexActor) Kind() string   { return a.kind }
func (a *NameIndexActor) ID() string     { return a.id }
func (a *NameIndexActor) Poisoned() bool { return a.disposed }

func (a *NameIndexActor) actorID() string { return a.kind + "|" + a.id }

func (a *NameIndexActor) Activate(ctx context.Context) error {
	data, err := a.store.Retrieve(a.actorID(), idKey)
	if err != nil {
		return err
	}
	a.entityID = uuid.Nil
	if len(data) > 0 {
		parsed, err := uuid.ParseBytes(data)
		if err != nil {
			return err
		}
		a.entityID = parsed
	}
	a.disposed = false
	return nil
}

// EntityID reports the mapped id; ok is false for an unclaimed name.
func (a *NameIndexActor) EntityID() (uuid.UUID, bool) {
	return a.entityID, a.entityID != uuid.Nil
}

// SetEntityID claims or reassigns the name.
func (a *NameIndexActor) SetEntityID(ctx context.Context, entityID uuid.UUID) error {
	if err := a.store.Save(a.actorID(), idKey, []byte(entityID.String())); err != nil {
		a.disposed = true
		return err
	}
	a.entityID = entityID
	return nil
}

// ClearEntityID releases the name.
func (a *NameIndexActor) ClearEntityID(ctx context.Context) error {
	if _, err := a.store.Delete(a.actorID(), idKey); err != nil {
		a.disposed = true
		return err
	}
	a.entityID = uuid.Nil
	return nil
}
