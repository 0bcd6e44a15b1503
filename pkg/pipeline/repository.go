package pipeline

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/actors"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/readmodel"
	"github.com/gracevcs/grace-server/pkg/resolve"
	"github.com/gracevcs/grace-server/pkg/types"
	"github.com/gracevcs/grace-server/pkg/validation"
)

// RepositoryRequest addresses a repository by id or by
// owner/organization/name path.
type RepositoryRequest struct {
	RepositoryID     string
	RepositoryName   string
	OwnerID          string
	OwnerName        string
	OrganizationID   string
	OrganizationName string
	CorrelationID    string
}

func (r RepositoryRequest) snapshot() map[string]string {
	return map[string]string{
		"repositoryId":     r.RepositoryID,
		"repositoryName":   r.RepositoryName,
		"ownerId":          r.OwnerID,
		"ownerName":        r.OwnerName,
		"organizationId":   r.OrganizationID,
		"organizationName": r.OrganizationName,
	}
}

func (r RepositoryRequest) baseChecks() []validation.Validation {
	return []validation.Validation{
		validation.CorrelationID(r.CorrelationID),
		validation.OptionalUUID(r.RepositoryID),
		validation.OptionalUUID(r.OwnerID),
		validation.OptionalUUID(r.OrganizationID),
	}
}

// CreateRepositoryRequest creates a repository under an owner and
// organization.
type CreateRepositoryRequest struct {
	RepositoryID     string
	Name             string
	OwnerID          string
	OwnerName        string
	OrganizationID   string
	OrganizationName string
	CorrelationID    string
}

// CreateRepository registers a new repository with the default
// retention policy and claims its name.
func (p *Pipeline) CreateRepository(ctx context.Context, req CreateRepositoryRequest) *Response {
	snapshot := map[string]string{
		"repositoryId":   req.RepositoryID,
		"name":           req.Name,
		"ownerId":        req.OwnerID,
		"organizationId": req.OrganizationID,
	}
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.UUID(req.RepositoryID),
		validation.Name(req.Name),
		validation.OptionalUUID(req.OwnerID),
		validation.OptionalUUID(req.OrganizationID),
	}
	return p.run(ctx, "repository", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		ownerID, err := p.resolver.Owner(ctx, req.OwnerID, req.OwnerName, req.CorrelationID)
		if err != nil {
			return nil, err
		}
		organizationID, err := p.resolver.Organization(ctx, req.OrganizationID, req.OrganizationName, req.CorrelationID, ownerID)
		if err != nil {
			return nil, err
		}
		repositoryID := uuid.MustParse(req.RepositoryID)
		nameKey := resolve.RepositoryNameKey(req.Name, ownerID, organizationID)
		if err := p.claimName(ctx, actors.KindRepositoryName, nameKey, repositoryID, req.CorrelationID); err != nil {
			return nil, err
		}
		var rv *types.ReturnValue
		callErr := actorhost.Call(ctx, p.host, actors.KindRepository, req.RepositoryID, "Create",
			func(ctx context.Context, a *actors.RepositoryActor) error {
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.RepositoryCreate{
					RepositoryID:   repositoryID,
					OwnerID:        ownerID,
					OrganizationID: organizationID,
					Name:           req.Name,
				}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		if err := p.resolver.BindName(ctx, actors.KindRepositoryName, nameKey, repositoryID); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, req.CorrelationID, err)
		}
		return enrich(rv, map[string]string{
			types.PropOwnerID:        ownerID.String(),
			types.PropOrganizationID: organizationID.String(),
		}), nil
	})
}

// InitializeRepository marks the repository's initial structures as
// established.
func (p *Pipeline) InitializeRepository(ctx context.Context, req RepositoryRequest) *Response {
	return p.run(ctx, "repository", req.CorrelationID, req.snapshot(), req.baseChecks(), func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req, "Initialize", &domain.RepositoryInitialize{})
	})
}

// SetRepositoryNameRequest renames a repository.
type SetRepositoryNameRequest struct {
	RepositoryRequest
	NewName string
}

func (p *Pipeline) SetRepositoryName(ctx context.Context, req SetRepositoryNameRequest) *Response {
	snapshot := req.snapshot()
	snapshot["newName"] = req.NewName
	checks := append(req.baseChecks(), validation.Name(req.NewName))
	return p.run(ctx, "repository", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		path, err := p.resolveRepository(ctx, req.RepositoryRequest)
		if err != nil {
			return nil, err
		}
		newKey := resolve.RepositoryNameKey(req.NewName, path.ownerID, path.organizationID)
		if err := p.claimName(ctx, actors.KindRepositoryName, newKey, path.repositoryID, req.CorrelationID); err != nil {
			return nil, err
		}
		var rv *types.ReturnValue
		var oldName string
		callErr := actorhost.Call(ctx, p.host, actors.KindRepository, path.repositoryID.String(), "SetName",
			func(ctx context.Context, a *actors.RepositoryActor) error {
				oldName = a.Get().Name
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.RepositorySetName{Name: req.NewName}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		oldKey := resolve.RepositoryNameKey(oldName, path.ownerID, path.organizationID)
		if err := p.rebindName(ctx, actors.KindRepositoryName, oldKey, newKey, path.repositoryID, req.CorrelationID); err != nil {
			return nil, err
		}
		return enrich(rv, path.props()), nil
	})
}

// SetRepositoryVisibilityRequest changes who can see a repository.
type SetRepositoryVisibilityRequest struct {
	RepositoryRequest
	Visibility string
}

func (p *Pipeline) SetRepositoryVisibility(ctx context.Context, req SetRepositoryVisibilityRequest) *Response {
	snapshot := req.snapshot()
	snapshot["visibility"] = req.Visibility
	checks := append(req.baseChecks(),
		validation.OneOf(types.RepositoryVisibility(req.Visibility), []types.RepositoryVisibility{types.RepositoryVisibilityPrivate, types.RepositoryVisibilityPublic}))
	return p.run(ctx, "repository", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req.RepositoryRequest, "SetVisibility", &domain.RepositorySetVisibility{Visibility: types.RepositoryVisibility(req.Visibility)})
	})
}

// SetRepositoryStatusRequest changes operational status.
type SetRepositoryStatusRequest struct {
	RepositoryRequest
	Status string
}

func (p *Pipeline) SetRepositoryStatus(ctx context.Context, req SetRepositoryStatusRequest) *Response {
	snapshot := req.snapshot()
	snapshot["status"] = req.Status
	checks := append(req.baseChecks(),
		validation.OneOf(types.RepositoryStatus(req.Status), []types.RepositoryStatus{types.RepositoryStatusActive, types.RepositoryStatusSuspended}))
	return p.run(ctx, "repository", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req.RepositoryRequest, "SetStatus", &domain.RepositorySetStatus{Status: types.RepositoryStatus(req.Status)})
	})
}

// SetRecordSavesRequest toggles save recording.
type SetRecordSavesRequest struct {
	RepositoryRequest
	RecordSaves bool
}

func (p *Pipeline) SetRecordSaves(ctx context.Context, req SetRecordSavesRequest) *Response {
	snapshot := req.snapshot()
	snapshot["recordSaves"] = strconv.FormatBool(req.RecordSaves)
	return p.run(ctx, "repository", req.CorrelationID, snapshot, req.baseChecks(), func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req.RepositoryRequest, "SetRecordSaves", &domain.RepositorySetRecordSaves{RecordSaves: req.RecordSaves})
	})
}

// SetDefaultServerAPIVersionRequest pins the API default.
type SetDefaultServerAPIVersionRequest struct {
	RepositoryRequest
	DefaultServerAPIVersion string
}

func (p *Pipeline) SetDefaultServerAPIVersion(ctx context.Context, req SetDefaultServerAPIVersionRequest) *Response {
	snapshot := req.snapshot()
	snapshot["defaultServerApiVersion"] = req.DefaultServerAPIVersion
	checks := append(req.baseChecks(), validation.Required(req.DefaultServerAPIVersion))
	return p.run(ctx, "repository", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req.RepositoryRequest, "SetDefaultServerApiVersion", &domain.RepositorySetDefaultServerAPIVersion{DefaultServerAPIVersion: req.DefaultServerAPIVersion})
	})
}

// SetRetentionDaysRequest updates one retention window.
type SetRetentionDaysRequest struct {
	RepositoryRequest
	Days float64
}

func (p *Pipeline) SetSaveDays(ctx context.Context, req SetRetentionDaysRequest) *Response {
	return p.setRetention(ctx, req, "SetSaveDays", &domain.RepositorySetSaveDays{SaveDays: req.Days})
}

func (p *Pipeline) SetCheckpointDays(ctx context.Context, req SetRetentionDaysRequest) *Response {
	return p.setRetention(ctx, req, "SetCheckpointDays", &domain.RepositorySetCheckpointDays{CheckpointDays: req.Days})
}

func (p *Pipeline) SetDiffCacheDays(ctx context.Context, req SetRetentionDaysRequest) *Response {
	return p.setRetention(ctx, req, "SetDiffCacheDays", &domain.RepositorySetDiffCacheDays{DiffCacheDays: req.Days})
}

func (p *Pipeline) SetDirectoryVersionCacheDays(ctx context.Context, req SetRetentionDaysRequest) *Response {
	return p.setRetention(ctx, req, "SetDirectoryVersionCacheDays", &domain.RepositorySetDirectoryVersionCacheDays{DirectoryVersionCacheDays: req.Days})
}

func (p *Pipeline) SetLogicalDeleteDays(ctx context.Context, req SetRetentionDaysRequest) *Response {
	return p.setRetention(ctx, req, "SetLogicalDeleteDays", &domain.RepositorySetLogicalDeleteDays{LogicalDeleteDays: req.Days})
}

func (p *Pipeline) setRetention(ctx context.Context, req SetRetentionDaysRequest, op string, cmd domain.RepositoryCommand) *Response {
	snapshot := req.snapshot()
	snapshot["days"] = strconv.FormatFloat(req.Days, 'f', -1, 64)
	checks := append(req.baseChecks(), validation.NonNegative(req.Days))
	return p.run(ctx, "repository", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req.RepositoryRequest, op, cmd)
	})
}

// DeleteRepositoryRequest logically deletes a repository.
type DeleteRepositoryRequest struct {
	RepositoryRequest
	DeleteReason string
	Force        bool
}

func (p *Pipeline) DeleteRepository(ctx context.Context, req DeleteRepositoryRequest) *Response {
	snapshot := req.snapshot()
	snapshot["deleteReason"] = req.DeleteReason
	checks := append(req.baseChecks(), validation.Required(req.DeleteReason))
	return p.run(ctx, "repository", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req.RepositoryRequest, "DeleteLogical", &domain.RepositoryDeleteLogical{DeleteReason: req.DeleteReason, Force: req.Force})
	})
}

// UndeleteRepository reverses a logical deletion.
func (p *Pipeline) UndeleteRepository(ctx context.Context, req RepositoryRequest) *Response {
	return p.run(ctx, "repository", req.CorrelationID, req.snapshot(), req.baseChecks(), func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchRepository(ctx, req, "Undelete", &domain.RepositoryUndelete{})
	})
}

// GetRepository returns the repository's current dto.
func (p *Pipeline) GetRepository(ctx context.Context, req RepositoryRequest) *QueryResponse[types.RepositoryDto] {
	path, err := p.resolveRepository(ctx, req)
	if err != nil {
		return queryFail[types.RepositoryDto](err, req.CorrelationID)
	}
	var dto types.RepositoryDto
	callErr := actorhost.Call(ctx, p.host, actors.KindRepository, path.repositoryID.String(), "Get",
		func(ctx context.Context, a *actors.RepositoryActor) error {
			dto = a.Get()
			return nil
		})
	if callErr != nil {
		return queryFail[types.RepositoryDto](errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr), req.CorrelationID)
	}
	return queryOk(dto)
}

// ListBranches returns the read-model rows of a repository's branches.
func (p *Pipeline) ListBranches(ctx context.Context, req RepositoryRequest) *QueryResponse[[]readmodel.BranchRow] {
	path, err := p.resolveRepository(ctx, req)
	if err != nil {
		return queryFail[[]readmodel.BranchRow](err, req.CorrelationID)
	}
	rows, listErr := p.index.ListBranches(path.repositoryID)
	if listErr != nil {
		return queryFail[[]readmodel.BranchRow](errcode.Wrap(errcode.InternalError, req.CorrelationID, listErr), req.CorrelationID)
	}
	return queryOk(rows)
}

// repositoryPath carries the resolved ancestry of one repository.
type repositoryPath struct {
	ownerID        uuid.UUID
	organizationID uuid.UUID
	repositoryID   uuid.UUID
}

func (rp repositoryPath) props() map[string]string {
	return map[string]string{
		types.PropOwnerID:        rp.ownerID.String(),
		types.PropOrganizationID: rp.organizationID.String(),
		types.PropRepositoryID:   rp.repositoryID.String(),
	}
}

// resolveRepository resolves owner → organization → repository,
// backfilling ancestor ids from the repository dto when the request
// came with a bare repository id.
func (p *Pipeline) resolveRepository(ctx context.Context, req RepositoryRequest) (repositoryPath, error) {
	var path repositoryPath
	if req.OwnerID != "" || req.OwnerName != "" {
		ownerID, err := p.resolver.Owner(ctx, req.OwnerID, req.OwnerName, req.CorrelationID)
		if err != nil {
			return path, err
		}
		path.ownerID = ownerID
	}
	if req.OrganizationID != "" || req.OrganizationName != "" {
		organizationID, err := p.resolver.Organization(ctx, req.OrganizationID, req.OrganizationName, req.CorrelationID, path.ownerID)
		if err != nil {
			return path, err
		}
		path.organizationID = organizationID
	}
	repositoryID, err := p.resolver.Repository(ctx, req.RepositoryID, req.RepositoryName, req.CorrelationID, path.ownerID, path.organizationID)
	if err != nil {
		return path, err
	}
	path.repositoryID = repositoryID

	if path.ownerID == uuid.Nil || path.organizationID == uuid.Nil {
		callErr := actorhost.Call(ctx, p.host, actors.KindRepository, repositoryID.String(), "Get",
			func(ctx context.Context, a *actors.RepositoryActor) error {
				dto := a.Get()
				if path.ownerID == uuid.Nil {
					path.ownerID = dto.OwnerID
				}
				if path.organizationID == uuid.Nil {
					path.organizationID = dto.OrganizationID
				}
				return nil
			})
		if callErr != nil {
			return path, errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr)
		}
	}
	return path, nil
}

func (p *Pipeline) dispatchRepository(ctx context.Context, req RepositoryRequest, op string, cmd domain.RepositoryCommand) (*types.ReturnValue, error) {
	path, err := p.resolveRepository(ctx, req)
	if err != nil {
		return nil, err
	}
	var rv *types.ReturnValue
	callErr := actorhost.Call(ctx, p.host, actors.KindRepository, path.repositoryID.String(), op,
		func(ctx context.Context, a *actors.RepositoryActor) error {
			var handleErr error
			rv, handleErr = a.Handle(ctx, cmd, types.NewEventMetadata(req.CorrelationID))
			return handleErr
		})
	if callErr != nil {
		return nil, callErr
	}
	return enrich(rv, path.props()), nil
}
