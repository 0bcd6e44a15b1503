// Package resolve maps owner/organization/repository/branch names to
// their stable ids, consulting the existence cache before the actors.
package resolve

import (
	"context"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/actors"
	"github.com/gracevcs/grace-server/pkg/cache"
	"github.com/gracevcs/grace-server/pkg/errcode"
)

// Resolver resolves an admissible mix of ids and names to canonical
// ids, level by level. A provided id wins over a provided name. The
// cache is advisory: misses and contradictions fall through to the
// actors.
type Resolver struct {
	host  *actorhost.Host
	cache *cache.ExistenceCache
}

// New builds a resolver over the actor host and the existence cache.
func New(host *actorhost.Host, existence *cache.ExistenceCache) *Resolver {
	return &Resolver{host: host, cache: existence}
}

// RepositoryNameKey is the composite key of the RepositoryName index.
func RepositoryNameKey(name string, ownerID, organizationID uuid.UUID) string {
	return name + "|" + ownerID.String() + "|" + organizationID.String()
}

// BranchNameKey is the composite key of the BranchName index.
func BranchNameKey(name string, repositoryID uuid.UUID) string {
	return name + "|" + repositoryID.String()
}

// OrganizationNameKey is the composite key of the OrganizationName index.
func OrganizationNameKey(name string, ownerID uuid.UUID) string {
	return name + "|" + ownerID.String()
}

// OwnerNameKey is the key of the OwnerName index.
func OwnerNameKey(name string) string {
	return name
}

// Owner resolves an owner by id or name.
func (r *Resolver) Owner(ctx context.Context, ownerID, ownerName, correlationID string) (uuid.UUID, error) {
	if ownerID != "" {
		return r.verify(ctx, actors.KindOwner, ownerID, correlationID, errcode.OwnerNotFound)
	}
	if ownerName != "" {
		return r.byName(ctx, actors.KindOwnerName, OwnerNameKey(ownerName), correlationID, errcode.OwnerNotFound)
	}
	return uuid.Nil, errcode.New(errcode.OwnerNotFound, correlationID)
}

// Organization resolves an organization by id or by name under owner.
func (r *Resolver) Organization(ctx context.Context, organizationID, organizationName, correlationID string, ownerID uuid.UUID) (uuid.UUID, error) {
	if organizationID != "" {
		return r.verify(ctx, actors.KindOrganization, organizationID, correlationID, errcode.OrganizationNotFound)
	}
	if organizationName != "" {
		return r.byName(ctx, actors.KindOrganizationName, OrganizationNameKey(organizationName, ownerID), correlationID, errcode.OrganizationNotFound)
	}
	return uuid.Nil, errcode.New(errcode.OrganizationNotFound, correlationID)
}

// Repository resolves a repository by id or by name under its owner
// and organization.
func (r *Resolver) Repository(ctx context.Context, repositoryID, repositoryName, correlationID string, ownerID, organizationID uuid.UUID) (uuid.UUID, error) {
	if repositoryID != "" {
		return r.verify(ctx, actors.KindRepository, repositoryID, correlationID, errcode.RepositoryNotFound)
	}
	if repositoryName != "" {
		return r.byName(ctx, actors.KindRepositoryName, RepositoryNameKey(repositoryName, ownerID, organizationID), correlationID, errcode.RepositoryNotFound)
	}
	return uuid.Nil, errcode.New(errcode.RepositoryNotFound, correlationID)
}

// Branch resolves a branch by id or by name under its repository.
func (r *Resolver) Branch(ctx context.Context, branchID, branchName, correlationID string, repositoryID uuid.UUID) (uuid.UUID, error) {
	if branchID != "" {
		return r.verify(ctx, actors.KindBranch, branchID, correlationID, errcode.BranchNotFound)
	}
	if branchName != "" {
		return r.byName(ctx, actors.KindBranchName, BranchNameKey(branchName, repositoryID), correlationID, errcode.BranchNotFound)
	}
	return uuid.Nil, errcode.New(errcode.BranchNotFound, correlationID)
}

// LookupName reports the id a name index currently maps to, uuid.Nil
// when the name is unclaimed.
func (r *Resolver) LookupName(ctx context.Context, indexKind, nameKey string) (uuid.UUID, error) {
	cacheKey := indexKind + "|" + nameKey
	if presence, id := r.cache.Lookup(cacheKey); presence == cache.PresenceExists {
		if parsed, err := uuid.Parse(id); err == nil {
			return parsed, nil
		}
	} else if presence == cache.PresenceNotExists {
		return uuid.Nil, nil
	}

	var entityID uuid.UUID
	callErr := actorhost.Call(ctx, r.host, indexKind, nameKey, "EntityID",
		func(ctx context.Context, cell *actors.NameIndexActor) error {
			entityID, _ = cell.EntityID()
			return nil
		})
	if callErr != nil {
		return uuid.Nil, callErr
	}
	if entityID == uuid.Nil {
		r.cache.MarkNotExists(cacheKey)
	} else {
		r.cache.MarkExists(cacheKey, entityID.String())
	}
	return entityID, nil
}

// BindName claims or moves a name binding and refreshes the cache.
func (r *Resolver) BindName(ctx context.Context, indexKind, nameKey string, entityID uuid.UUID) error {
	callErr := actorhost.Call(ctx, r.host, indexKind, nameKey, "SetEntityID",
		func(ctx context.Context, cell *actors.NameIndexActor) error {
			return cell.SetEntityID(ctx, entityID)
		})
	if callErr != nil {
		return callErr
	}
	r.cache.MarkExists(indexKind+"|"+nameKey, entityID.String())
	return nil
}

// UnbindName releases a name binding and drops it from the cache.
func (r *Resolver) UnbindName(ctx context.Context, indexKind, nameKey string) error {
	callErr := actorhost.Call(ctx, r.host, indexKind, nameKey, "ClearEntityID",
		func(ctx context.Context, cell *actors.NameIndexActor) error {
			return cell.ClearEntityID(ctx)
		})
	if callErr != nil {
		return callErr
	}
	r.cache.Invalidate(indexKind + "|" + nameKey)
	return nil
}

// byName routes a name through its index actor, then verifies the
// mapped entity still exists.
func (r *Resolver) byName(ctx context.Context, indexKind, nameKey, correlationID string, notFound errcode.Code) (uuid.UUID, error) {
	entityID, err := r.LookupName(ctx, indexKind, nameKey)
	if err != nil {
		return uuid.Nil, errcode.Wrap(errcode.InternalError, correlationID, err)
	}
	if entityID == uuid.Nil {
		return uuid.Nil, errcode.New(notFound, correlationID)
	}
	return r.verify(ctx, entityKindFor(indexKind), entityID.String(), correlationID, notFound)
}

// entityKindFor maps a name-index kind to the entity kind it binds.
func entityKindFor(indexKind string) string {
	return map[string]string{
		actors.KindOwnerName:        actors.KindOwner,
		actors.KindOrganizationName: actors.KindOrganization,
		actors.KindRepositoryName:   actors.KindRepository,
		actors.KindBranchName:       actors.KindBranch,
	}[indexKind]
}

// NameHolderExists reports whether the entity a name index binds is
// still present, logically deleted or not. Physical deletion leaves
// the binding behind, and a stale binding may be reclaimed.
func (r *Resolver) NameHolderExists(ctx context.Context, indexKind string, entityID uuid.UUID) (bool, error) {
	present, _, err := r.lifecycle(ctx, entityKindFor(indexKind), entityID.String())
	return present, err
}

// verify confirms the entity behind id exists, using the cache first.
func (r *Resolver) verify(ctx context.Context, kind, id, correlationID string, notFound errcode.Code) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errcode.New(errcode.InvalidUUID, correlationID)
	}

	cacheKey := kind + "|" + id
	switch presence, _ := r.cache.Lookup(cacheKey); presence {
	case cache.PresenceExists:
		return parsed, nil
	case cache.PresenceNotExists:
		return uuid.Nil, errcode.New(notFound, correlationID)
	}

	exists, callErr := r.exists(ctx, kind, id)
	if callErr != nil {
		return uuid.Nil, errcode.Wrap(errcode.InternalError, correlationID, callErr)
	}
	if !exists {
		r.cache.MarkNotExists(cacheKey)
		return uuid.Nil, errcode.New(notFound, correlationID)
	}
	r.cache.MarkExists(cacheKey, id)
	return parsed, nil
}

func (r *Resolver) exists(ctx context.Context, kind, id string) (bool, error) {
	present, deleted, err := r.lifecycle(ctx, kind, id)
	return present && !deleted, err
}

func (r *Resolver) lifecycle(ctx context.Context, kind, id string) (present, deleted bool, err error) {
	switch kind {
	case actors.KindOwner:
		err = actorhost.Call(ctx, r.host, kind, id, "Exists",
			func(ctx context.Context, a *actors.OwnerActor) error {
				present, deleted = a.Exists(), a.IsDeleted()
				return nil
			})
	case actors.KindOrganization:
		err = actorhost.Call(ctx, r.host, kind, id, "Exists",
			func(ctx context.Context, a *actors.OrganizationActor) error {
				present, deleted = a.Exists(), a.IsDeleted()
				return nil
			})
	case actors.KindRepository:
		err = actorhost.Call(ctx, r.host, kind, id, "Exists",
			func(ctx context.Context, a *actors.RepositoryActor) error {
				present, deleted = a.Exists(), a.IsDeleted()
				return nil
			})
	case actors.KindBranch:
		err = actorhost.Call(ctx, r.host, kind, id, "Exists",
			func(ctx context.Context, a *actors.BranchActor) error {
				present, deleted = a.Exists(), a.IsDeleted()
				return nil
			})
	}
	return present, deleted, err
}
