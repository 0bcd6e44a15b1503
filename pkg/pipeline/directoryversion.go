package pipeline

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/actors"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/types"
	"github.com/gracevcs/grace-server/pkg/validation"
)

// CreateDirectoryVersionRequest records a content-addressed directory
// snapshot. The id is derived from (repository, sha256) when the
// caller leaves it empty.
type CreateDirectoryVersionRequest struct {
	DirectoryVersionID string
	RepositoryID       string
	RelativePath       string
	Sha256Hash         string
	Files              []types.FileEntry
	Size               int64
	Directories        []string
	CorrelationID      string
}

func (p *Pipeline) CreateDirectoryVersion(ctx context.Context, req CreateDirectoryVersionRequest) *Response {
	snapshot := map[string]string{
		"directoryVersionId": req.DirectoryVersionID,
		"repositoryId":       req.RepositoryID,
		"relativePath":       req.RelativePath,
		"sha256Hash":         req.Sha256Hash,
		"size":               strconv.FormatInt(req.Size, 10),
	}
	checks := []validation.Validation{
		validation.CorrelationID(req.CorrelationID),
		validation.OptionalUUID(req.DirectoryVersionID),
		validation.UUID(req.RepositoryID),
		validation.Required(req.Sha256Hash),
		validation.NonNegative(float64(req.Size)),
	}
	for _, dir := range req.Directories {
		checks = append(checks, validation.UUID(dir))
	}
	return p.run(ctx, "directoryVersion", req.CorrelationID, snapshot, checks, func(ctx context.Context) (*types.ReturnValue, error) {
		repositoryID, err := p.resolver.Repository(ctx, req.RepositoryID, "", req.CorrelationID, uuid.Nil, uuid.Nil)
		if err != nil {
			return nil, err
		}
		dvID := actors.DirectoryVersionID(repositoryID, req.Sha256Hash)
		if req.DirectoryVersionID != "" {
			dvID = uuid.MustParse(req.DirectoryVersionID)
		}
		directories := make([]uuid.UUID, 0, len(req.Directories))
		for _, dir := range req.Directories {
			directories = append(directories, uuid.MustParse(dir))
		}

		var rv *types.ReturnValue
		callErr := actorhost.Call(ctx, p.host, actors.KindDirectoryVersion, dvID.String(), "Create",
			func(ctx context.Context, a *actors.DirectoryVersionActor) error {
				var handleErr error
				rv, handleErr = a.Handle(ctx, &domain.DirectoryVersionCreate{
					DirectoryVersionID: dvID,
					RepositoryID:       repositoryID,
					RelativePath:       req.RelativePath,
					Sha256Hash:         req.Sha256Hash,
					Files:              req.Files,
					Size:               req.Size,
					Directories:        directories,
				}, types.NewEventMetadata(req.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, callErr
		}
		return enrich(rv, map[string]string{types.PropRepositoryID: repositoryID.String()}), nil
	})
}

// DirectoryVersionRequest addresses a version by id, or by repository
// plus content hash.
type DirectoryVersionRequest struct {
	DirectoryVersionID string
	RepositoryID       string
	Sha256Hash         string
	CorrelationID      string
}

func (r DirectoryVersionRequest) snapshot() map[string]string {
	return map[string]string{
		"directoryVersionId": r.DirectoryVersionID,
		"repositoryId":       r.RepositoryID,
		"sha256Hash":         r.Sha256Hash,
	}
}

func (r DirectoryVersionRequest) baseChecks() []validation.Validation {
	return []validation.Validation{
		validation.CorrelationID(r.CorrelationID),
		validation.OptionalUUID(r.DirectoryVersionID),
		validation.OptionalUUID(r.RepositoryID),
	}
}

func (p *Pipeline) DeleteDirectoryVersion(ctx context.Context, req DirectoryVersionRequest) *Response {
	return p.run(ctx, "directoryVersion", req.CorrelationID, req.snapshot(), req.baseChecks(), func(ctx context.Context) (*types.ReturnValue, error) {
		return p.dispatchDirectoryVersion(ctx, req, "DeleteLogical", &domain.DirectoryVersionDeleteLogical{})
	})
}

// GetDirectoryVersion returns the stored dto, including its file
// entries.
func (p *Pipeline) GetDirectoryVersion(ctx context.Context, req DirectoryVersionRequest) *QueryResponse[types.DirectoryVersionDto] {
	dvID, err := p.directoryVersionID(req)
	if err != nil {
		return queryFail[types.DirectoryVersionDto](err, req.CorrelationID)
	}
	var dto types.DirectoryVersionDto
	callErr := actorhost.Call(ctx, p.host, actors.KindDirectoryVersion, dvID.String(), "Get",
		func(ctx context.Context, a *actors.DirectoryVersionActor) error {
			if !a.Exists() || a.IsDeleted() {
				return errcode.New(errcode.DirectoryVersionNotFound, req.CorrelationID)
			}
			dto = a.Get()
			return nil
		})
	if callErr != nil {
		return queryFail[types.DirectoryVersionDto](callErr, req.CorrelationID)
	}
	return queryOk(dto)
}

func (p *Pipeline) directoryVersionID(req DirectoryVersionRequest) (uuid.UUID, error) {
	if req.DirectoryVersionID != "" {
		dvID, err := uuid.Parse(req.DirectoryVersionID)
		if err != nil {
			return uuid.Nil, errcode.New(errcode.InvalidUUID, req.CorrelationID)
		}
		return dvID, nil
	}
	if req.RepositoryID == "" || req.Sha256Hash == "" {
		return uuid.Nil, errcode.New(errcode.DirectoryVersionNotFound, req.CorrelationID)
	}
	repositoryID, err := uuid.Parse(req.RepositoryID)
	if err != nil {
		return uuid.Nil, errcode.New(errcode.InvalidUUID, req.CorrelationID)
	}
	return actors.DirectoryVersionID(repositoryID, req.Sha256Hash), nil
}

func (p *Pipeline) dispatchDirectoryVersion(ctx context.Context, req DirectoryVersionRequest, op string, cmd domain.DirectoryVersionCommand) (*types.ReturnValue, error) {
	dvID, err := p.directoryVersionID(req)
	if err != nil {
		return nil, err
	}
	var rv *types.ReturnValue
	callErr := actorhost.Call(ctx, p.host, actors.KindDirectoryVersion, dvID.String(), op,
		func(ctx context.Context, a *actors.DirectoryVersionActor) error {
			var handleErr error
			rv, handleErr = a.Handle(ctx, cmd, types.NewEventMetadata(req.CorrelationID))
			return handleErr
		})
	if callErr != nil {
		return nil, callErr
	}
	return rv, nil
}
