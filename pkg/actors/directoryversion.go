package actors

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/timers"
	"github.com/gracevcs/grace-server/pkg/types"
)

// directoryVersionNamespace seeds the content-addressed actor id
// derived from (repository id, sha256).
var directoryVersionNamespace = uuid.MustParse("9f2c1b68-4b7a-4f36-a7c5-3d2c9a31e8d4")

// DirectoryVersionID derives the deterministic actor id for a
// directory snapshot. The same content in the same repository always
// lands on the same actor, which makes Create a natural cache probe.
func DirectoryVersionID(repositoryID uuid.UUID, sha256Hash string) uuid.UUID {
	return uuid.NewSHA1(directoryVersionNamespace, []byte(repositoryID.String()+"|"+sha256Hash))
}

// DirectoryVersionActor is the event-sourced state machine for one
// directory snapshot.
type DirectoryVersionActor struct {
	core core[domain.DirectoryVersionEvent]
	dto  types.DirectoryVersionDto
}

// NewDirectoryVersionActorFactory returns the host factory for
// directory version actors.
func NewDirectoryVersionActorFactory(deps *Deps) actorhost.Factory {
	return func(id string) actorhost.Actor {
		return &DirectoryVersionActor{
			core: newCore(KindDirectoryVersion, id, deps, events.TagDirectoryVersionEvent, events.TopicDirectoryVersions, domain.DirectoryVersionEventRegistry),
			dto:  domain.DefaultDirectoryVersionDto(),
		}
	}
}

func (a *DirectoryVersionActor) Kind() string   { return KindDirectoryVersion }
func (a *DirectoryVersionActor) ID() string     { return a.core.id }
func (a *DirectoryVersionActor) Poisoned() bool { return a.core.disposed }

func (a *DirectoryVersionActor) Activate(ctx context.Context) error {
	records, err := a.core.load()
	if err != nil {
		return err
	}
	dto := domain.DefaultDirectoryVersionDto()
	for _, r := range records {
		dto = domain.UpdateDirectoryVersionDto(r.Event, dto)
	}
	a.core.records = records
	a.dto = dto
	a.core.disposed = false
	return nil
}

func (a *DirectoryVersionActor) Exists() bool                   { return a.dto.Status() != types.StatusNonexistent }
func (a *DirectoryVersionActor) IsDeleted() bool                { return a.dto.Status() == types.StatusLogicallyDeleted }
func (a *DirectoryVersionActor) Get() types.DirectoryVersionDto { return a.dto }

func (a *DirectoryVersionActor) props(dto types.DirectoryVersionDto) map[string]string {
	p := map[string]string{types.PropDirectoryVersionID: a.core.id}
	if dto.RepositoryID != uuid.Nil {
		p[types.PropRepositoryID] = dto.RepositoryID.String()
	}
	return p
}

// Handle runs the command pipeline for one directory version command.
func (a *DirectoryVersionActor) Handle(ctx context.Context, cmd domain.DirectoryVersionCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	if err := a.core.checkMetadata(md); err != nil {
		return nil, err
	}

	_, isCreate := cmd.(*domain.DirectoryVersionCreate)
	if isCreate && a.Exists() {
		return nil, errcode.New(errcode.EntityAlreadyExists, md.CorrelationID)
	}
	if !isCreate && !a.Exists() {
		return nil, errcode.New(errcode.DirectoryVersionNotFound, md.CorrelationID)
	}

	switch c := cmd.(type) {
	case *domain.DirectoryVersionCreate:
		var total int64
		for _, f := range c.Files {
			total += f.Size
		}
		if total != c.Size {
			return nil, errcode.New(errcode.SizeMismatch, md.CorrelationID)
		}
		return a.applyEvent(ctx, &domain.DirectoryVersionCreated{
			DirectoryVersionID: c.DirectoryVersionID,
			RepositoryID:       c.RepositoryID,
			RelativePath:       c.RelativePath,
			Sha256Hash:         c.Sha256Hash,
			Files:              c.Files,
			Size:               c.Size,
			Directories:        c.Directories,
			CreatedAt:          md.Timestamp,
		}, md)

	case *domain.DirectoryVersionDeleteLogical:
		if a.IsDeleted() {
			return nil, errcode.New(errcode.EntityDeleted, md.CorrelationID)
		}
		return a.applyEvent(ctx, &domain.DirectoryVersionLogicalDeleted{DeletedAt: md.Timestamp}, md)

	case *domain.DirectoryVersionDeletePhysical:
		result, appErr := a.core.wipe(ctx, &domain.DirectoryVersionPhysicalDeleted{}, md, a.props(a.dto))
		if appErr != nil {
			return nil, appErr
		}
		a.dto = domain.DefaultDirectoryVersionDto()
		return result, nil

	default:
		return nil, errcode.New(errcode.InternalError, md.CorrelationID)
	}
}

func (a *DirectoryVersionActor) applyEvent(ctx context.Context, event domain.DirectoryVersionEvent, md types.EventMetadata) (*types.ReturnValue, error) {
	next := domain.UpdateDirectoryVersionDto(event, a.dto)
	result, appErr := a.core.apply(ctx, event, md, a.props(next))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = next
	return result, nil
}

// ReceiveReminder satisfies the reminder surface; directory versions
// are cache entries, so expiry arrives as an explicit DeletePhysical.
func (a *DirectoryVersionActor) ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error {
	if name != timers.ReminderPhysicalDeletion {
		return nil
	}
	if !a.Exists() {
		return nil
	}
	p, err := timers.DecodeDeletionPayload(payload)
	if err != nil {
		return err
	}
	md := types.NewEventMetadata(p.CorrelationID)
	_, handleErr := a.Handle(ctx, &domain.DirectoryVersionDeletePhysical{}, md)
	return handleErr
}
