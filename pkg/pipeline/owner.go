package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/actors"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/resolve"
	"github.com/gracevcs/grace-server/pkg/types"
	"github.com/gracevcs/grace-server/pkg/validation"
)

// OwnerRequest addresses an existing owner by id or name.
type OwnerRequest struct {
	OwnerID       string
	OwnerName     string
	CorrelationID string
}

func (r OwnerRequest) snapshot() map[string]string {
	return map[string]string{"ownerId": r.OwnerID, "ownerName": r.OwnerName}
}

// CreateOwnerRequest creates a new owner with a client-minted id.
type CreateOwnerRequest struct {
	OwnerID       string
	Name          string
	Type          string
	CorrelationID string
}

// CreateOwner registers a new owner and claims its name.
func (p *Pipeline) CreateOwner(ctx context.Context, req CreateOwnerRequest) *Response {
	snapshot := map[string]string{"ownerId": req.OwnerID, "name": req.Name, "type": req.Type}
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.UUID(req.OwnerID),
		validation.Name(req.Name),
		validation.OneOf(types.OwnerType(req.Type), []types.OwnerType{types.OwnerTypeUser, types.OwnerTypeOrganization}),
	}
	return p.run(ctx, "owner", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		ownerID := uuid.MustParse(req.OwnerID)
		nameKey := resolve.OwnerNameKey(req.Name)
		if err := p.claimName(ctx, actors.KindOwnerName, nameKey, ownerID, req.CorrelationID); err != nil {
			return nil, err
		}
		var rv *types.ReturnValue
		callErr := actorhost.Call(ctx, p.host, actors.KindOwner, req.OwnerID, "Create",
			func(ctx context.Context, a *actors.OwnerActor) error {
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.OwnerCreate{
					OwnerID: ownerID,
					Name:    req.Name,
					Type:    types.OwnerType(req.Type),
				}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		if err := p.resolver.BindName(ctx, actors.KindOwnerName, nameKey, ownerID); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, req.CorrelationID, err)
		}
		return rv, nil
	})
}

// SetOwnerNameRequest renames an owner.
type SetOwnerNameRequest struct {
	OwnerRequest
	NewName string
}

// SetOwnerName renames an owner, moving the name-index binding.
func (p *Pipeline) SetOwnerName(ctx context.Context, req SetOwnerNameRequest) *Response {
	snapshot := req.snapshot()
	snapshot["newName"] = req.NewName
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OwnerID),
		validation.Name(req.NewName),
	}
	return p.run(ctx, "owner", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		ownerID, err := p.resolver.Owner(ctx, req.OwnerID, req.OwnerName, req.CorrelationID)
		if err != nil {
			return nil, err
		}
		newKey := resolve.OwnerNameKey(req.NewName)
		if err := p.claimName(ctx, actors.KindOwnerName, newKey, ownerID, req.CorrelationID); err != nil {
			return nil, err
		}
		var rv *types.ReturnValue
		var oldName string
		callErr := actorhost.Call(ctx, p.host, actors.KindOwner, ownerID.String(), "SetName",
			func(ctx context.Context, a *actors.OwnerActor) error {
				oldName = a.Get().Name
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.OwnerSetName{Name: req.NewName}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		if err := p.rebindName(ctx, actors.KindOwnerName, resolve.OwnerNameKey(oldName), newKey, ownerID, req.CorrelationID); err != nil {
			return nil, err
		}
		return rv, nil
	})
}

// SetOwnerTypeRequest changes an owner's type.
type SetOwnerTypeRequest struct {
	OwnerRequest
	Type string
}

func (p *Pipeline) SetOwnerType(ctx context.Context, req SetOwnerTypeRequest) *Response {
	snapshot := req.snapshot()
	snapshot["type"] = req.Type
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OwnerID),
		validation.OneOf(types.OwnerType(req.Type), []types.OwnerType{types.OwnerTypeUser, types.OwnerTypeOrganization}),
	}
	return p.run(ctx, "owner", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOwner(ctx, req.OwnerRequest, "SetType", &domain.OwnerSetType{Type: types.OwnerType(req.Type)})
	})
}

// SetOwnerDescriptionRequest changes an owner's description.
type SetOwnerDescriptionRequest struct {
	OwnerRequest
	Description string
}

func (p *Pipeline) SetOwnerDescription(ctx context.Context, req SetOwnerDescriptionRequest) *Response {
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OwnerID),
	}
	return p.run(ctx, "owner", req.CorrelationID, req.snapshot(), checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOwner(ctx, req.OwnerRequest, "SetDescription", &domain.OwnerSetDescription{Description: req.Description})
	})
}

// SetOwnerSearchVisibilityRequest changes search visibility.
type SetOwnerSearchVisibilityRequest struct {
	OwnerRequest
	SearchVisibility string
}

func (p *Pipeline) SetOwnerSearchVisibility(ctx context.Context, req SetOwnerSearchVisibilityRequest) *Response {
	snapshot := req.snapshot()
	snapshot["searchVisibility"] = req.SearchVisibility
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OwnerID),
		validation.OneOf(types.SearchVisibility(req.SearchVisibility), []types.SearchVisibility{types.SearchVisible, types.SearchNotVisible}),
	}
	return p.run(ctx, "owner", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOwner(ctx, req.OwnerRequest, "SetSearchVisibility", &domain.OwnerSetSearchVisibility{SearchVisibility: types.SearchVisibility(req.SearchVisibility)})
	})
}

// DeleteOwnerRequest logically deletes an owner.
type DeleteOwnerRequest struct {
	OwnerRequest
	DeleteReason string
	Force        bool
}

func (p *Pipeline) DeleteOwner(ctx context.Context, req DeleteOwnerRequest) *Response {
	snapshot := req.snapshot()
	snapshot["deleteReason"] = req.DeleteReason
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OwnerID),
		validation.Required(req.DeleteReason),
	}
	return p.run(ctx, "owner", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOwner(ctx, req.OwnerRequest, "DeleteLogical", &domain.OwnerDeleteLogical{DeleteReason: req.DeleteReason, Force: req.Force})
	})
}

// UndeleteOwner reverses a logical deletion.
func (p *Pipeline) UndeleteOwner(ctx context.Context, req OwnerRequest) *Response {
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OwnerID),
	}
	return p.run(ctx, "owner", req.CorrelationID, req.snapshot(), checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOwner(ctx, req, "Undelete", &domain.OwnerUndelete{})
	})
}

// GetOwner returns the owner's current dto.
func (p *Pipeline) GetOwner(ctx context.Context, req OwnerRequest) *QueryResponse[types.OwnerDto] {
	ownerID, err := p.resolver.Owner(ctx, req.OwnerID, req.OwnerName, req.CorrelationID)
	if err != nil {
		return queryFail[types.OwnerDto](err, req.CorrelationID)
	}
	var dto types.OwnerDto
	callErr := actorhost.Call(ctx, p.host, actors.KindOwner, ownerID.String(), "Get",
		func(ctx context.Context, a *actors.OwnerActor) error {
			dto = a.Get()
			return nil
		})
	if callErr != nil {
		return queryFail[types.OwnerDto](errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr), req.CorrelationID)
	}
	return queryOk(dto)
}

// dispatchOwner resolves the target and hands the command to its actor.
func (p *Pipeline) dispatchOwner(ctx context.Context, req OwnerRequest, op string, cmd domain.OwnerCommand) (*types.ReturnValue, error) {
	ownerID, err := p.resolver.Owner(ctx, req.OwnerID, req.OwnerName, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	var rv *types.ReturnValue
	callErr := actorhost.Call(ctx, p.host, actors.KindOwner, ownerID.String(), op,
		func(ctx context.Context, a *actors.OwnerActor) error {
			var handleErr error
			rv, handleErr = a.Handle(ctx, cmd, types.NewEventMetadata(req.CorrelationID))
			return handleErr
		})
	if callErr != nil {
		return nil, callErr
	}
	return enrich(rv, map[string]string{types.PropOwnerID: ownerID.String()}), nil
}

// claimName rejects a name already bound to a different entity.
// Physical deletion wipes entities without touching their name cells,
// so a binding whose holder is gone is released here on the next claim.
func (p *Pipeline) claimName(ctx context.Context, indexKind, nameKey string, entityID uuid.UUID, correlationID string) error {
	current, err := p.resolver.LookupName(ctx, indexKind, nameKey)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, correlationID, err)
	}
	if current == uuid.Nil || current == entityID {
		return nil
	}
	held, err := p.resolver.NameHolderExists(ctx, indexKind, current)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, correlationID, err)
	}
	if held {
		return errcode.New(errcode.NameAlreadyExists, correlationID)
	}
	if err := p.resolver.UnbindName(ctx, indexKind, nameKey); err != nil {
		return errcode.Wrap(errcode.InternalError, correlationID, err)
	}
	return nil
}

// rebindName moves a binding from the old key to the new one.
func (p *Pipeline) rebindName(ctx context.Context, indexKind, oldKey, newKey string, entityID uuid.UUID, correlationID string) error {
	if oldKey != newKey {
		if err := p.resolver.UnbindName(ctx, indexKind, oldKey); err != nil {
			return errcode.Wrap(errcode.InternalError, correlationID, err)
		}
	}
	if err := p.resolver.BindName(ctx, indexKind, newKey, entityID); err != nil {
		return errcode.Wrap(errcode.InternalError, correlationID, err)
	}
	return nil
}
