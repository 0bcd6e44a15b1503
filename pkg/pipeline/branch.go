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

// BranchRequest addresses a branch by id or by repository path + name.
type BranchRequest struct {
	BranchID         string
	BranchName       string
	RepositoryID     string
	RepositoryName   string
	OwnerID          string
	OwnerName        string
	OrganizationID   string
	OrganizationName string
	CorrelationID    string
}

func (r BranchRequest) snapshot() map[string]string {
	return map[string]string{
		"branchId":       r.BranchID,
		"branchName":     r.BranchName,
		"repositoryId":   r.RepositoryID,
		"repositoryName": r.RepositoryName,
		"ownerId":        r.OwnerID,
		"organizationId": r.OrganizationID,
	}
}

func (r BranchRequest) repositoryRequest() RepositoryRequest {
	return RepositoryRequest{
		RepositoryID:     r.RepositoryID,
		RepositoryName:   r.RepositoryName,
		OwnerID:          r.OwnerID,
		OwnerName:        r.OwnerName,
		OrganizationID:   r.OrganizationID,
		OrganizationName: r.OrganizationName,
		CorrelationID:    r.CorrelationID,
	}
}

func (r BranchRequest) baseChecks() []validation.Validation {
	return []validation.Validation{
		validation.CorrelationID(r.CorrelationID),
		validation.OptionalUUID(r.BranchID),
		validation.OptionalUUID(r.RepositoryID),
		validation.OptionalUUID(r.OwnerID),
		validation.OptionalUUID(r.OrganizationID),
	}
}

// CreateBranchRequest creates a branch in a repository.
type CreateBranchRequest struct {
	BranchID         string
	Name             string
	ParentBranchID   string
	BasedOn          string
	RepositoryID     string
	RepositoryName   string
	OwnerID          string
	OwnerName        string
	OrganizationID   string
	OrganizationName string
	CorrelationID    string
}

// CreateBranch registers a new branch and claims its name within the
// repository.
func (p *Pipeline) CreateBranch(ctx context.Context, req CreateBranchRequest) *Response {
	snapshot := map[string]string{
		"branchId":       req.BranchID,
		"name":           req.Name,
		"parentBranchId": req.ParentBranchID,
		"basedOn":        req.BasedOn,
		"repositoryId":   req.RepositoryID,
	}
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.UUID(req.BranchID),
		validation.Name(req.Name),
		validation.OptionalUUID(req.ParentBranchID),
		validation.OptionalUUID(req.BasedOn),
		validation.OptionalUUID(req.RepositoryID),
	}
	return p.run(ctx, "branch", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		path, err := p.resolveRepository(ctx, RepositoryRequest{
			RepositoryID:     req.RepositoryID,
			RepositoryName:   req.RepositoryName,
			OwnerID:          req.OwnerID,
			OwnerName:        req.OwnerName,
			OrganizationID:   req.OrganizationID,
			OrganizationName: req.OrganizationName,
			CorrelationID:    req.CorrelationID,
		})
		if err != nil {
			return nil, err
		}
		branchID := uuid.MustParse(req.BranchID)
		nameKey := resolve.BranchNameKey(req.Name, path.repositoryID)
		if err := p.claimName(ctx, actors.KindBranchName, nameKey, branchID, req.CorrelationID); err != nil {
			return nil, err
		}

		var parentBranchID *uuid.UUID
		if req.ParentBranchID != "" {
			parsed := uuid.MustParse(req.ParentBranchID)
			parentBranchID = &parsed
		}
		var basedOn uuid.UUID
		if req.BasedOn != "" {
			basedOn = uuid.MustParse(req.BasedOn)
		}

		var rv *types.ReturnValue
		callErr := actorhost.Call(ctx, p.host, actors.KindBranch, req.BranchID, "Create",
			func(ctx context.Context, a *actors.BranchActor) error {
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.BranchCreate{
					BranchID:       branchID,
					RepositoryID:   path.repositoryID,
					ParentBranchID: parentBranchID,
					Name:           req.Name,
					BasedOn:        basedOn,
				}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		if err := p.resolver.BindName(ctx, actors.KindBranchName, nameKey, branchID); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, req.CorrelationID, err)
		}
		return enrich(rv, path.props()), nil
	})
}

// SetBranchNameRequest renames a branch.
type SetBranchNameRequest struct {
	BranchRequest
	NewName string
}

func (p *Pipeline) SetBranchName(ctx context.Context, req SetBranchNameRequest) *Response {
	snapshot := req.snapshot()
	snapshot["newName"] = req.NewName
	checks := append(req.baseChecks(), validation.Name(req.NewName))
	return p.run(ctx, "branch", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		bp, err := p.resolveBranch(ctx, req.BranchRequest)
		if err != nil {
			return nil, err
		}
		newKey := resolve.BranchNameKey(req.NewName, bp.repositoryID)
		if err := p.claimName(ctx, actors.KindBranchName, newKey, bp.branchID, req.CorrelationID); err != nil {
			return nil, err
		}
		var rv *types.ReturnValue
		var oldName string
		callErr := actorhost.Call(ctx, p.host, actors.KindBranch, bp.branchID.String(), "SetName",
			func(ctx context.Context, a *actors.BranchActor) error {
				oldName = a.Get().Name
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.BranchSetName{Name: req.NewName}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		oldKey := resolve.BranchNameKey(oldName, bp.repositoryID)
		if err := p.rebindName(ctx, actors.KindBranchName, oldKey, newKey, bp.branchID, req.CorrelationID); err != nil {
			return nil, err
		}
		return enrich(rv, bp.props()), nil
	})
}

// EnableBranchFeatureRequest toggles one reference-type flag.
type EnableBranchFeatureRequest struct {
	BranchRequest
	Enabled bool
}

func (p *Pipeline) EnableAssign(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnableAssign", &domain.BranchEnableAssign{Enabled: req.Enabled})
}

func (p *Pipeline) EnablePromotion(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnablePromotion", &domain.BranchEnablePromotion{Enabled: req.Enabled})
}

func (p *Pipeline) EnableCommit(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnableCommit", &domain.BranchEnableCommit{Enabled: req.Enabled})
}

func (p *Pipeline) EnableCheckpoint(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnableCheckpoint", &domain.BranchEnableCheckpoint{Enabled: req.Enabled})
}

func (p *Pipeline) EnableSave(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnableSave", &domain.BranchEnableSave{Enabled: req.Enabled})
}

func (p *Pipeline) EnableTag(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnableTag", &domain.BranchEnableTag{Enabled: req.Enabled})
}

func (p *Pipeline) EnableExternal(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnableExternal", &domain.BranchEnableExternal{Enabled: req.Enabled})
}

func (p *Pipeline) EnableAutoRebase(ctx context.Context, req EnableBranchFeatureRequest) *Response {
	return p.enableFeature(ctx, req, "EnableAutoRebase", &domain.BranchEnableAutoRebase{Enabled: req.Enabled})
}

func (p *Pipeline) enableFeature(ctx context.Context, req EnableBranchFeatureRequest, op string, cmd domain.BranchCommand) *Response {
	snapshot := req.snapshot()
	snapshot["enabled"] = strconv.FormatBool(req.Enabled)
	return p.run(ctx, "branch", req.CorrelationID, snapshot, req.baseChecks(), func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchBranch(ctx, req.BranchRequest, op, cmd)
	})
}

// ReferenceRequest carries the payload of a reference-producing
// branch command.
type ReferenceRequest struct {
	BranchRequest
	DirectoryVersionID string
	Sha256Hash         string
	Text               string
}

func (r ReferenceRequest) referenceChecks() []validation.Validation {
	return append(r.baseChecks(),
		validation.UUID(r.DirectoryVersionID),
		validation.Required(r.Sha256Hash),
	)
}

func (r ReferenceRequest) spec() domain.ReferenceSpec {
	return domain.ReferenceSpec{
		DirectoryVersionID: uuid.MustParse(r.DirectoryVersionID),
		Sha256Hash:         r.Sha256Hash,
		Text:               r.Text,
	}
}

func (p *Pipeline) Assign(ctx context.Context, req ReferenceRequest) *Response {
	return p.produceReference(ctx, req, "Assign", func(spec domain.ReferenceSpec) domain.BranchCommand {
		return &domain.BranchAssign{ReferenceSpec: spec}
	})
}

func (p *Pipeline) Promote(ctx context.Context, req ReferenceRequest) *Response {
	return p.produceReference(ctx, req, "Promote", func(spec domain.ReferenceSpec) domain.BranchCommand {
		return &domain.BranchPromote{ReferenceSpec: spec}
	})
}

func (p *Pipeline) Commit(ctx context.Context, req ReferenceRequest) *Response {
	return p.produceReference(ctx, req, "Commit", func(spec domain.ReferenceSpec) domain.BranchCommand {
		return &domain.BranchCommit{ReferenceSpec: spec}
	})
}

func (p *Pipeline) Checkpoint(ctx context.Context, req ReferenceRequest) *Response {
	return p.produceReference(ctx, req, "Checkpoint", func(spec domain.ReferenceSpec) domain.BranchCommand {
		return &domain.BranchCheckpoint{ReferenceSpec: spec}
	})
}

func (p *Pipeline) Save(ctx context.Context, req ReferenceRequest) *Response {
	return p.produceReference(ctx, req, "Save", func(spec domain.ReferenceSpec) domain.BranchCommand {
		return &domain.BranchSave{ReferenceSpec: spec}
	})
}

func (p *Pipeline) Tag(ctx context.Context, req ReferenceRequest) *Response {
	return p.produceReference(ctx, req, "Tag", func(spec domain.ReferenceSpec) domain.BranchCommand {
		return &domain.BranchTag{ReferenceSpec: spec}
	})
}

func (p *Pipeline) CreateExternal(ctx context.Context, req ReferenceRequest) *Response {
	return p.produceReference(ctx, req, "CreateExternal", func(spec domain.ReferenceSpec) domain.BranchCommand {
		return &domain.BranchCreateExternal{ReferenceSpec: spec}
	})
}

func (p *Pipeline) produceReference(ctx context.Context, req ReferenceRequest, op string, build func(domain.ReferenceSpec) domain.BranchCommand) *Response {
	snapshot := req.snapshot()
	snapshot["directoryVersionId"] = req.DirectoryVersionID
	snapshot["sha256Hash"] = req.Sha256Hash
	return p.run(ctx, "branch", req.CorrelationID, snapshot, req.referenceChecks(), func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchBranch(ctx, req.BranchRequest, op, build(req.spec()))
	})
}

// RebaseBranchRequest rebases a branch onto a parent promotion.
type RebaseBranchRequest struct {
	BranchRequest
	PromotionReferenceID string
}

func (p *Pipeline) RebaseBranch(ctx context.Context, req RebaseBranchRequest) *Response {
	snapshot := req.snapshot()
	snapshot["promotionReferenceId"] = req.PromotionReferenceID
	checks := append(req.baseChecks(), validation.UUID(req.PromotionReferenceID))
	return p.run(ctx, "branch", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchBranch(ctx, req.BranchRequest, "Rebase", &domain.BranchRebase{ReferenceID: uuid.MustParse(req.PromotionReferenceID)})
	})
}

// RemoveReferenceRequest detaches and logically deletes a reference.
type RemoveReferenceRequest struct {
	BranchRequest
	ReferenceID string
}

func (p *Pipeline) RemoveReference(ctx context.Context, req RemoveReferenceRequest) *Response {
	snapshot := req.snapshot()
	snapshot["referenceId"] = req.ReferenceID
	checks := append(req.baseChecks(), validation.UUID(req.ReferenceID))
	return p.run(ctx, "branch", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchBranch(ctx, req.BranchRequest, "RemoveReference", &domain.BranchRemoveReference{ReferenceID: uuid.MustParse(req.ReferenceID)})
	})
}

// DeleteBranchRequest logically deletes a branch.
type DeleteBranchRequest struct {
	BranchRequest
	DeleteReason string
	Force        bool
}

func (p *Pipeline) DeleteBranch(ctx context.Context, req DeleteBranchRequest) *Response {
	snapshot := req.snapshot()
	snapshot["deleteReason"] = req.DeleteReason
	checks := append(req.baseChecks(), validation.Required(req.DeleteReason))
	return p.run(ctx, "branch", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchBranch(ctx, req.BranchRequest, "DeleteLogical", &domain.BranchDeleteLogical{DeleteReason: req.DeleteReason, Force: req.Force})
	})
}

// UndeleteBranch reverses a logical deletion.
func (p *Pipeline) UndeleteBranch(ctx context.Context, req BranchRequest) *Response {
	return p.run(ctx, "branch", req.CorrelationID, req.snapshot(), req.baseChecks(), func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchBranch(ctx, req, "Undelete", &domain.BranchUndelete{})
	})
}

// GetBranch returns the branch's current dto, Latest* pointers
// repaired.
func (p *Pipeline) GetBranch(ctx context.Context, req BranchRequest) *QueryResponse[types.BranchDto] {
	bp, err := p.resolveBranch(ctx, req)
	if err != nil {
		return queryFail[types.BranchDto](err, req.CorrelationID)
	}
	var dto types.BranchDto
	callErr := actorhost.Call(ctx, p.host, actors.KindBranch, bp.branchID.String(), "Get",
		func(ctx context.Context, a *actors.BranchActor) error {
			dto = a.Get()
			return nil
		})
	if callErr != nil {
		return queryFail[types.BranchDto](errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr), req.CorrelationID)
	}
	return queryOk(dto)
}

// ListReferencesRequest bounds a newest-first reference listing.
type ListReferencesRequest struct {
	BranchRequest
	ReferenceType string
	MaxCount      int
}

// ListReferences returns the branch's references, newest first,
// optionally filtered by type and bounded by MaxCount.
func (p *Pipeline) ListReferences(ctx context.Context, req ListReferencesRequest) *QueryResponse[[]readmodel.ReferenceRow] {
	bp, err := p.resolveBranch(ctx, req.BranchRequest)
	if err != nil {
		return queryFail[[]readmodel.ReferenceRow](err, req.CorrelationID)
	}
	var rows []readmodel.ReferenceRow
	var listErr error
	if req.ReferenceType != "" {
		rows, listErr = p.index.ListReferencesByType(bp.branchID, types.ReferenceType(req.ReferenceType), req.MaxCount)
	} else {
		rows, listErr = p.index.ListReferences(bp.branchID, req.MaxCount)
	}
	if listErr != nil {
		return queryFail[[]readmodel.ReferenceRow](errcode.Wrap(errcode.InternalError, req.CorrelationID, listErr), req.CorrelationID)
	}
	return queryOk(rows)
}

// LatestReferences returns the newest reference per reference type.
func (p *Pipeline) LatestReferences(ctx context.Context, req BranchRequest) *QueryResponse[map[types.ReferenceType]readmodel.ReferenceRow] {
	bp, err := p.resolveBranch(ctx, req)
	if err != nil {
		return queryFail[map[types.ReferenceType]readmodel.ReferenceRow](err, req.CorrelationID)
	}
	latest, lookErr := p.index.LatestReferences(bp.branchID)
	if lookErr != nil {
		return queryFail[map[types.ReferenceType]readmodel.ReferenceRow](errcode.Wrap(errcode.InternalError, req.CorrelationID, lookErr), req.CorrelationID)
	}
	return queryOk(latest)
}

// GetReferenceRequest fetches one reference dto by id.
type GetReferenceRequest struct {
	ReferenceID   string
	CorrelationID string
}

func (p *Pipeline) GetReference(ctx context.Context, req GetReferenceRequest) *QueryResponse[types.ReferenceDto] {
	refID, err := uuid.Parse(req.ReferenceID)
	if err != nil {
		return queryFail[types.ReferenceDto](errcode.New(errcode.InvalidUUID, req.CorrelationID), req.CorrelationID)
	}
	var dto types.ReferenceDto
	callErr := actorhost.Call(ctx, p.host, actors.KindReference, refID.String(), "Get",
		func(ctx context.Context, a *actors.ReferenceActor) error {
			if !a.Exists() {
				return errcode.New(errcode.ReferenceNotFound, req.CorrelationID)
			}
			dto = a.Get()
			return nil
		})
	if callErr != nil {
		return queryFail[types.ReferenceDto](callErr, req.CorrelationID)
	}
	return queryOk(dto)
}

// branchPath carries a branch id plus its repository ancestry.
type branchPath struct {
	repositoryPath
	branchID uuid.UUID
}

func (bp branchPath) props() map[string]string {
	props := bp.repositoryPath.props()
	props[types.PropBranchID] = bp.branchID.String()
	return props
}

// resolveBranch resolves the repository path first (needed for named
// branch lookups), then the branch, backfilling the repository id
// from the branch dto when only a branch id was given.
func (p *Pipeline) resolveBranch(ctx context.Context, req BranchRequest) (branchPath, error) {
	var bp branchPath
	if req.BranchID != "" {
		branchID, err := p.resolver.Branch(ctx, req.BranchID, "", req.CorrelationID, uuid.Nil)
		if err != nil {
			return bp, err
		}
		bp.branchID = branchID
		callErr := actorhost.Call(ctx, p.host, actors.KindBranch, branchID.String(), "Get",
			func(ctx context.Context, a *actors.BranchActor) error {
				bp.repositoryID = a.Get().RepositoryID
				return nil
			})
		if callErr != nil {
			return bp, errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr)
		}
	} else {
		path, err := p.resolveRepository(ctx, req.repositoryRequest())
		if err != nil {
			return bp, err
		}
		bp.repositoryPath = path
		branchID, err := p.resolver.Branch(ctx, "", req.BranchName, req.CorrelationID, path.repositoryID)
		if err != nil {
			return bp, err
		}
		bp.branchID = branchID
	}

	if bp.ownerID == uuid.Nil && bp.repositoryID != uuid.Nil {
		callErr := actorhost.Call(ctx, p.host, actors.KindRepository, bp.repositoryID.String(), "Get",
			func(ctx context.Context, a *actors.RepositoryActor) error {
				dto := a.Get()
				bp.ownerID = dto.OwnerID
				bp.organizationID = dto.OrganizationID
				return nil
			})
		if callErr != nil {
			return bp, errcode.Wrap(errcode.InternalError, req.CorrelationID, callErr)
		}
	}
	return bp, nil
}

func (p *Pipeline) dispatchBranch(ctx context.Context, req BranchRequest, op string, cmd domain.BranchCommand) (*types.ReturnValue, error) {
	bp, err := p.resolveBranch(ctx, req)
	if err != nil {
		return nil, err
	}
	var rv *types.ReturnValue
	callErr := actorhost.Call(ctx, p.host, actors.KindBranch, bp.branchID.String(), op,
		func(ctx context.Context, a *actors.BranchActor) error {
			var handleErr error
			rv, handleErr = a.Handle(ctx, cmd, types.NewEventMetadata(req.CorrelationID))
			return handleErr
		})
	if callErr != nil {
		return nil, callErr
	}
	return enrich(rv, bp.props()), nil
}
