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

// RepositoryActor is the event-sourced state machine for one repository.
// It owns the retention policy consulted by reference actors and drives
// the branch cascade on physical deletion.
type RepositoryActor struct {
	core core[domain.RepositoryEvent]
	dto  types.RepositoryDto
}

// NewRepositoryActorFactory returns the host factory for repository actors.
func NewRepositoryActorFactory(deps *Deps) actorhost.Factory {
	return func(id string) actorhost.Actor {
		return &RepositoryActor{
			core: newCore(KindRepository, id, deps, events.TagRepositoryEvent, events.TopicRepositories, domain.RepositoryEventRegistry),
			dto:  domain.DefaultRepositoryDto(),
		}
	}
}

func (a *RepositoryActor) Kind() string   { return KindRepository }
func (a *RepositoryActor) ID() string     { return a.core.id }
func (a *RepositoryActor) Poisoned() bool { return a.core.disposed }

func (a *RepositoryActor) Activate(ctx context.Context) error {
	records, err := a.core.load()
	if err != nil {
		return err
	}
	dto := domain.DefaultRepositoryDto()
	for _, r := range records {
		dto = domain.UpdateRepositoryDto(r.Event, dto)
	}
	a.core.records = records
	a.dto = dto
	a.core.disposed = false
	return nil
}

func (a *RepositoryActor) Exists() bool             { return a.dto.Status() != types.StatusNonexistent }
func (a *RepositoryActor) IsDeleted() bool          { return a.dto.Status() == types.StatusLogicallyDeleted }
func (a *RepositoryActor) Get() types.RepositoryDto { return a.dto }

// Retention reports the policy applied to this repository's references.
func (a *RepositoryActor) Retention() types.RetentionPolicy { return a.dto.Retention }

func (a *RepositoryActor) props(dto types.RepositoryDto) map[string]string {
	p := map[string]string{types.PropRepositoryID: a.core.id}
	if dto.OwnerID != uuid.Nil {
		p[types.PropOwnerID] = dto.OwnerID.String()
	}
	if dto.OrganizationID != uuid.Nil {
		p[types.PropOrganizationID] = dto.OrganizationID.String()
	}
	return p
}

// Handle runs the command pipeline for one repository command.
func (a *RepositoryActor) Handle(ctx context.Context, cmd domain.RepositoryCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	if err := a.core.checkMetadata(md); err != nil {
		return nil, err
	}

	_, isCreate := cmd.(*domain.RepositoryCreate)
	if isCreate && a.Exists() {
		return nil, errcode.New(errcode.EntityAlreadyExists, md.CorrelationID)
	}
	if !isCreate && !a.Exists() {
		return nil, errcode.New(errcode.RepositoryNotFound, md.CorrelationID)
	}

	switch c := cmd.(type) {
	case *domain.RepositoryCreate:
		return a.applyEvent(ctx, &domain.RepositoryCreated{
			RepositoryID:   c.RepositoryID,
			OwnerID:        c.OwnerID,
			OrganizationID: c.OrganizationID,
			Name:           c.Name,
			Retention:      a.core.deps.DefaultRetention,
			CreatedAt:      md.Timestamp,
		}, md)

	case *domain.RepositoryInitialize:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		if a.dto.Initialized {
			return nil, errcode.New(errcode.EntityAlreadyExists, md.CorrelationID)
		}
		return a.applyEvent(ctx, &domain.RepositoryInitialized{}, md)

	case *domain.RepositorySetName:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryNameSet{Name: c.Name}, md)

	case *domain.RepositorySetVisibility:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryVisibilitySet{Visibility: c.Visibility}, md)

	case *domain.RepositorySetStatus:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryStatusSet{Status: c.Status}, md)

	case *domain.RepositorySetRecordSaves:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryRecordSavesSet{RecordSaves: c.RecordSaves}, md)

	case *domain.RepositorySetDefaultServerAPIVersion:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryDefaultServerAPIVersionSet{DefaultServerAPIVersion: c.DefaultServerAPIVersion}, md)

	case *domain.RepositorySetSaveDays:
		if err := a.retentionGuard(c.SaveDays, md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositorySaveDaysSet{SaveDays: c.SaveDays}, md)

	case *domain.RepositorySetCheckpointDays:
		if err := a.retentionGuard(c.CheckpointDays, md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryCheckpointDaysSet{CheckpointDays: c.CheckpointDays}, md)

	case *domain.RepositorySetDiffCacheDays:
		if err := a.retentionGuard(c.DiffCacheDays, md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryDiffCacheDaysSet{DiffCacheDays: c.DiffCacheDays}, md)

	case *domain.RepositorySetDirectoryVersionCacheDays:
		if err := a.retentionGuard(c.DirectoryVersionCacheDays, md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryDirectoryVersionCacheDaysSet{DirectoryVersionCacheDays: c.DirectoryVersionCacheDays}, md)

	case *domain.RepositorySetLogicalDeleteDays:
		if err := a.retentionGuard(c.LogicalDeleteDays, md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.RepositoryLogicalDeleteDaysSet{LogicalDeleteDays: c.LogicalDeleteDays}, md)

	case *domain.RepositoryDeleteLogical:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		if !c.Force {
			empty, lookErr := a.hasNoBranches()
			if lookErr != nil {
				return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, lookErr)
			}
			if !empty {
				return nil, errcode.New(errcode.RepositoryNotEmpty, md.CorrelationID)
			}
		}
		result, err := a.applyEvent(ctx, &domain.RepositoryLogicalDeleted{
			DeleteReason: c.DeleteReason,
			DeletedAt:    md.Timestamp,
		}, md)
		if err != nil {
			return nil, err
		}
		if err := a.schedulePhysicalDeletion(c.DeleteReason, md); err != nil {
			return nil, err
		}
		return result, nil

	case *domain.RepositoryUndelete:
		if !a.IsDeleted() {
			return nil, errcode.New(errcode.EntityNotDeleted, md.CorrelationID)
		}
		if err := a.core.deps.Reminders.Unregister(KindRepository, a.core.id, timers.ReminderPhysicalDeletion); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
		}
		return a.applyEvent(ctx, &domain.RepositoryUndeleted{}, md)

	case *domain.RepositoryDeletePhysical:
		return a.deletePhysical(ctx, c.DeleteReason, md)

	default:
		return nil, errcode.New(errcode.InternalError, md.CorrelationID)
	}
}

func (a *RepositoryActor) rejectDeleted(md types.EventMetadata) *errcode.Error {
	if a.IsDeleted() {
		return errcode.New(errcode.EntityDeleted, md.CorrelationID)
	}
	return nil
}

func (a *RepositoryActor) retentionGuard(days float64, md types.EventMetadata) *errcode.Error {
	if err := a.rejectDeleted(md); err != nil {
		return err
	}
	if days < 0 {
		return errcode.New(errcode.ValueOutOfRange, md.CorrelationID)
	}
	return nil
}

func (a *RepositoryActor) hasNoBranches() (bool, error) {
	repoID, err := uuid.Parse(a.core.id)
	if err != nil {
		return false, err
	}
	branches, err := a.core.deps.Index.ListBranches(repoID)
	if err != nil {
		return false, err
	}
	return len(branches) == 0, nil
}

func (a *RepositoryActor) applyEvent(ctx context.Context, event domain.RepositoryEvent, md types.EventMetadata) (*types.ReturnValue, error) {
	next := domain.UpdateRepositoryDto(event, a.dto)
	result, appErr := a.core.apply(ctx, event, md, a.props(next))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = next
	return result, nil
}

func (a *RepositoryActor) schedulePhysicalDeletion(reason string, md types.EventMetadata) *errcode.Error {
	payload, err := timers.DeletionPayload{
		RepositoryID:  a.core.id,
		DeleteReason:  reason,
		CorrelationID: md.CorrelationID,
	}.Encode()
	if err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	due := md.Timestamp.Add(types.DaysToDuration(a.dto.Retention.LogicalDeleteDays))
	if err := a.core.deps.Reminders.Register(KindRepository, a.core.id, timers.ReminderPhysicalDeletion, payload, due, 0); err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	return nil
}

// deletePhysical removes the repository and cascades to every branch
// the read-model index knows about.
func (a *RepositoryActor) deletePhysical(ctx context.Context, reason string, md types.EventMetadata) (*types.ReturnValue, error) {
	repoID, err := uuid.Parse(a.core.id)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	branches, err := a.core.deps.Index.ListBranches(repoID)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	for _, b := range branches {
		callErr := actorhost.Call(ctx, a.core.deps.Host, KindBranch, b.BranchID.String(), "DeletePhysical",
			func(ctx context.Context, branch *BranchActor) error {
				_, handleErr := branch.Handle(ctx, &domain.BranchDeletePhysical{DeleteReason: reason}, types.NewEventMetadata(md.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, callErr)
		}
	}

	_ = a.core.deps.Reminders.Unregister(KindRepository, a.core.id, timers.ReminderPhysicalDeletion)
	result, appErr := a.core.wipe(ctx, &domain.RepositoryPhysicalDeleted{DeleteReason: reason}, md, a.props(a.dto))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = domain.DefaultRepositoryDto()
	return result, nil
}

// ReceiveReminder performs the deferred physical deletion.
func (a *RepositoryActor) ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error {
	if name != timers.ReminderPhysicalDeletion {
		return nil
	}
	p, err := timers.DecodeDeletionPayload(payload)
	if err != nil {
		return err
	}
	if !a.Exists() || !a.IsDeleted() {
		return nil
	}
	md := types.NewEventMetadata(p.CorrelationID)
	_, handleErr := a.deletePhysical(ctx, p.DeleteReason, md)
	return handleErr
}
