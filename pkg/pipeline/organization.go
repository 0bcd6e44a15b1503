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

// OrganizationRequest addresses an organization by id or by
// owner+name path.
type OrganizationRequest struct {
	OrganizationID   string
	OrganizationName string
	OwnerID          string
	OwnerName        string
	CorrelationID    string
}

func (r OrganizationRequest) snapshot() map[string]string {
	return map[string]string{
		"organizationId":   r.OrganizationID,
		"organizationName": r.OrganizationName,
		"ownerId":          r.OwnerID,
		"ownerName":        r.OwnerName,
	}
}

// CreateOrganizationRequest creates an organization under an owner.
type CreateOrganizationRequest struct {
	OrganizationID string
	Name           string
	Type           string
	OwnerID        string
	OwnerName      string
	CorrelationID  string
}

// CreateOrganization registers a new organization and claims its name
// under the owner.
func (p *Pipeline) CreateOrganization(ctx context.Context, req CreateOrganizationRequest) *Response {
	snapshot := map[string]string{
		"organizationId": req.OrganizationID,
		"name":           req.Name,
		"type":           req.Type,
		"ownerId":        req.OwnerID,
		"ownerName":      req.OwnerName,
	}
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.UUID(req.OrganizationID),
		validation.Name(req.Name),
		validation.OneOf(types.OrganizationType(req.Type), []types.OrganizationType{types.OrganizationTypePublic, types.OrganizationTypePrivate}),
		validation.OptionalUUID(req.OwnerID),
	}
	return p.run(ctx, "organization", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		ownerID, err := p.resolver.Owner(ctx, req.OwnerID, req.OwnerName, req.CorrelationID)
		if err != nil {
			return nil, err
		}
		organizationID := uuid.MustParse(req.OrganizationID)
		nameKey := resolve.OrganizationNameKey(req.Name, ownerID)
		if err := p.claimName(ctx, actors.KindOrganizationName, nameKey, organizationID, req.CorrelationID); err != nil {
			return nil, err
		}
		var rv *types.ReturnValue
		callErr := actorhost.Call(ctx, p.host, actors.KindOrganization, req.OrganizationID, "Create",
			func(ctx context.Context, a *actors.OrganizationActor) error {
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.OrganizationCreate{
					OrganizationID: organizationID,
					OwnerID:        ownerID,
					Name:           req.Name,
					Type:           types.OrganizationType(req.Type),
				}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		if err := p.resolver.BindName(ctx, actors.KindOrganizationName, nameKey, organizationID); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, req.CorrelationID, err)
		}
		return enrich(rv, map[string]string{types.PropOwnerID: ownerID.String()}), nil
	})
}

// SetOrganizationNameRequest renames an organization.
type SetOrganizationNameRequest struct {
	OrganizationRequest
	NewName string
}

func (p *Pipeline) SetOrganizationName(ctx context.Context, req SetOrganizationNameRequest) *Response {
	snapshot := req.snapshot()
	snapshot["newName"] = req.NewName
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OrganizationID),
		validation.Name(req.NewName),
	}
	return p.run(ctx, "organization", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		ownerID, organizationID, err := p.resolveOrganization(ctx, req.OrganizationRequest)
		if err != nil {
			return nil, err
		}
		newKey := resolve.OrganizationNameKey(req.NewName, ownerID)
		if err := p.claimName(ctx, actors.KindOrganizationName, newKey, organizationID, req.CorrelationID); err != nil {
			return nil, err
		}
		var rv *types.ReturnValue
		var oldName string
		callErr := actorhost.Call(ctx, p.host, actors.KindOrganization, organizationID.String(), "SetName",
			func(ctx context.Context, a *actors.OrganizationActor) error {
				oldName = a.Get().Name
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.OrganizationSetName{Name: req.NewName}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		if err := p.rebindName(ctx, actors.KindOrganizationName, resolve.OrganizationNameKey(oldName, ownerID), newKey, organizationID, req.CorrelationID); err != nil {
			return nil, err
		}
		return enrich(rv, map[string]string{types.PropOwnerID: ownerID.String()}), nil
	})
}

// SetOrganizationTypeRequest changes an organization's type.
type SetOrganizationTypeRequest struct {
	OrganizationRequest
	Type string
}

func (p *Pipeline) SetOrganizationType(ctx context.Context, req SetOrganizationTypeRequest) *Response {
	snapshot := req.snapshot()
	snapshot["type"] = req.Type
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OrganizationID),
		validation.OneOf(types.OrganizationType(req.Type), []types.OrganizationType{types.OrganizationTypePublic, types.OrganizationTypePrivate}),
	}
	return p.run(ctx, "organization", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOrganization(ctx, req.OrganizationRequest, "SetType", &domain.OrganizationSetType{Type: types.OrganizationType(req.Type)})
	})
}

// SetOrganizationSearchVisibilityRequest changes search visibility.
type SetOrganizationSearchVisibilityRequest struct {
	OrganizationRequest
	SearchVisibility string
}

func (p *Pipeline) SetOrganizationSearchVisibility(ctx context.Context, req SetOrganizationSearchVisibilityRequest) *Response {
	snapshot := req.snapshot()
	snapshot["searchVisibility"] = req.SearchVisibility
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OrganizationID),
		validation.OneOf(types.SearchVisibility(req.SearchVisibility), []types.SearchVisibility{types.SearchVisible, types.SearchNotVisible}),
	}
	return p.run(ctx, "organization", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOrganization(ctx, req.OrganizationRequest, "SetSearchVisibility", &domain.OrganizationSetSearchVisibility{SearchVisibility: types.SearchVisibility(req.SearchVisibility)})
	})
}

// DeleteOrganizationRequest logically deletes an organization.
type DeleteOrganizationRequest struct {
	OrganizationRequest
	DeleteReason string
	Force        bool
}

func (p *Pipeline) DeleteOrganization(ctx context.Context, req DeleteOrganizationRequest) *Response {
	snapshot := req.snapshot()
	snapshot["deleteReason"] = req.DeleteReason
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OrganizationID),
		validation.Required(req.DeleteReason),
	}
	return p.run(ctx, "organization", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOrganization(ctx, req.OrganizationRequest, "DeleteLogical", &domain.OrganizationDeleteLogical{DeleteReason: req.DeleteReason, Force: req.Force})
	})
}

// UndeleteOrganization reverses a logical deletion.
func (p *Pipeline) UndeleteOrganization(ctx context.Context, req OrganizationRequest) *Response {
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.OrganizationID),
	}
	return p.run(ctx, "organization", req.CorrelationID, req.snapshot(), checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchOrganization(ctx, req, "Undelete", &domain.OrganizationUndelete{})
	})
}

// GetOrganization returns the organization's current dto.
func (p *Pipeline) GetOrganization(ctx context.Context, req OrganizationRequest) *QueryResponse[types.OrganizationDto] {
	_, organizationID, err := p.resolveOrganization(ctx, req)
	if err != nil {
		return queryFail[types.OrganizationDto](err, req.CorrelationID)
	}
	var dto types.OrganizationDto
	callErr := actorhost.Call(ctx, p.host, actors.KindOrganization, organizationID.String(), "Get",
		func(ctx context.Context, a *actors.OrganizationActor) error {
			dto = a.Get()
			return nil
		})
	if callErr != nil {
		return queryFail[types.OrganizationDto](errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr), req.CorrelationID)
	}
	return queryOk(dto)
}

// resolveOrganization resolves the owner first (when named paths are
// used), then the organization itself.
func (p *Pipeline) resolveOrganization(ctx context.Context, req OrganizationRequest) (uuid.UUID, uuid.UUID, error) {
	var ownerID uuid.UUID
	if req.OwnerID != "" || req.OwnerName != "" {
		resolved, err := p.resolver.Owner(ctx, req.OwnerID, req.OwnerName, req.CorrelationID)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		ownerID = resolved
	}
	organizationID, err := p.resolver.Organization(ctx, req.OrganizationID, req.OrganizationName, req.CorrelationID, ownerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if ownerID == uuid.Nil {
		callErr := actorhost.Call(ctx, p.host, actors.KindOrganization, organizationID.String(), "Get",
			func(ctx context.Context, a *actors.OrganizationActor) error {
				ownerID = a.Get().OwnerID
				return nil
			})
		if callErr != nil {
			return uuid.Nil, uuid.Nil, errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr)
		}
	}
	return ownerID, organizationID, nil
}

func (p *Pipeline) dispatchOrganization(ctx context.Context, req OrganizationRequest, op string, cmd domain.OrganizationCommand) (*types.ReturnValue, error) {
	ownerID, organizationID, err := p.resolveOrganization(ctx, req)
	if err != nil {
		return nil, err
	}
	var rv *types.ReturnValue
	callErr := actorhost.Call(ctx, p.host, actors.KindOrganization, organizationID.String(), op,
		func(ctx context.Context, a *actors.OrganizationActor) error {
			var handleErr error
			rv, handleErr = a.Handle(ctx, cmd, types.NewEventMetadata(req.CorrelationID))
			return handleErr
		})
	if callErr != nil {
		return nil, callErr
	}
	return enrich(rv, map[string]string{
		types.PropOwnerID:        ownerID.String(),
		types.PropOrganizationID: organizationID.String(),
	}), nil
}
