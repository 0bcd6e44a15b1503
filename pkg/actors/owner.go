package actors

import (
	"context"
	"time"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/timers"
	"github.com/gracevcs/grace-server/pkg/types"
)

// OwnerActor is the event-sourced state machine for one owner.
type OwnerActor struct {
	core core[domain.OwnerEvent]
	dto  types.OwnerDto
}

// NewOwnerActorFactory returns the host factory for owner actors.
func NewOwnerActorFactory(deps *Deps) actorhost.Factory {
	return func(id string) actorhost.Actor {
		return &OwnerActor{
			core: newCore(KindOwner, id, deps, events.TagOwnerEvent, events.TopicOwners, domain.OwnerEventRegistry),
			dto:  domain.DefaultOwnerDto(),
		}
	}
}

func (a *OwnerActor) Kind() string   { return KindOwner }
func (a *OwnerActor) ID() string     { return a.core.id }
func (a *OwnerActor) Poisoned() bool { return a.core.disposed }

// Activate rebuilds dto and event list by replaying durable state.
func (a *OwnerActor) Activate(ctx context.Context) error {
	records, err := a.core.load()
	if err != nil {
		return err
	}
	dto := domain.DefaultOwnerDto()
	for _, r := range records {
		dto = domain.UpdateOwnerDto(r.Event, dto)
	}
	a.core.records = records
	a.dto = dto
	a.core.disposed = false
	return nil
}

func (a *OwnerActor) Exists() bool        { return a.dto.Status() != types.StatusNonexistent }
func (a *OwnerActor) IsDeleted() bool     { return a.dto.Status() == types.StatusLogicallyDeleted }
func (a *OwnerActor) Get() types.OwnerDto { return a.dto }

func (a *OwnerActor) props() map[string]string {
	return map[string]string{types.PropOwnerID: a.core.id}
}

// Handle runs the command pipeline for one owner command.
func (a *OwnerActor) Handle(ctx context.Context, cmd domain.OwnerCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	if err := a.core.checkMetadata(md); err != nil {
		return nil, err
	}

	_, isCreate := cmd.(*domain.OwnerCreate)
	if isCreate && a.Exists() {
		return nil, errcode.New(errcode.EntityAlreadyExists, md.CorrelationID)
	}
	if !isCreate && !a.Exists() {
		return nil, errcode.New(errcode.OwnerNotFound, md.CorrelationID)
	}

	switch c := cmd.(type) {
	case *domain.OwnerCreate:
		return a.applyEvent(ctx, &domain.OwnerCreated{
			OwnerID:   c.OwnerID,
			Name:      c.Name,
			Type:      c.Type,
			CreatedAt: md.Timestamp,
		}, md)

	case *domain.OwnerSetName:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.OwnerNameSet{Name: c.Name}, md)

	case *domain.OwnerSetType:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.OwnerTypeSet{Type: c.Type}, md)

	case *domain.OwnerSetDescription:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.OwnerDescriptionSet{Description: c.Description}, md)

	case *domain.OwnerSetSearchVisibility:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.OwnerSearchVisibilitySet{SearchVisibility: c.SearchVisibility}, md)

	case *domain.OwnerDeleteLogical:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		result, err := a.applyEvent(ctx, &domain.OwnerLogicalDeleted{
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

	case *domain.OwnerUndelete:
		if !a.IsDeleted() {
			return nil, errcode.New(errcode.EntityNotDeleted, md.CorrelationID)
		}
		if err := a.core.deps.Reminders.Unregister(KindOwner, a.core.id, timers.ReminderPhysicalDeletion); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
		}
		return a.applyEvent(ctx, &domain.OwnerUndeleted{}, md)

	case *domain.OwnerDeletePhysical:
		return a.deletePhysical(ctx, c.DeleteReason, md)

	default:
		return nil, errcode.New(errcode.InternalError, md.CorrelationID)
	}
}

func (a *OwnerActor) rejectDeleted(md types.EventMetadata) *errcode.Error {
	if a.IsDeleted() {
		return errcode.New(errcode.EntityDeleted, md.CorrelationID)
	}
	return nil
}

func (a *OwnerActor) applyEvent(ctx context.Context, event domain.OwnerEvent, md types.EventMetadata) (*types.ReturnValue, error) {
	result, appErr := a.core.apply(ctx, event, md, a.props())
	if appErr != nil {
		return nil, appErr
	}
	a.dto = domain.UpdateOwnerDto(event, a.dto)
	return result, nil
}

func (a *OwnerActor) schedulePhysicalDeletion(reason string, md types.EventMetadata) *errcode.Error {
	payload, err := timers.DeletionPayload{
		OwnerID:       a.core.id,
		DeleteReason:  reason,
		CorrelationID: md.CorrelationID,
	}.Encode()
	if err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	due := md.Timestamp.Add(types.DaysToDuration(a.core.deps.DefaultRetention.LogicalDeleteDays))
	if err := a.core.deps.Reminders.Register(KindOwner, a.core.id, timers.ReminderPhysicalDeletion, payload, due, 0); err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	return nil
}

func (a *OwnerActor) deletePhysical(ctx context.Context, reason string, md types.EventMetadata) (*types.ReturnValue, error) {
	_ = a.core.deps.Reminders.Unregister(KindOwner, a.core.id, timers.ReminderPhysicalDeletion)
	result, appErr := a.core.wipe(ctx, &domain.OwnerPhysicalDeleted{DeleteReason: reason}, md, a.props())
	if appErr != nil {
		return nil, appErr
	}
	a.dto = domain.DefaultOwnerDto()
	return result, nil
}

// ReceiveReminder performs the deferred physical deletion.
func (a *OwnerActor) ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error {
	if name != timers.ReminderPhysicalDeletion {
		return nil
	}
	p, err := timers.DecodeDeletionPayload(payload)
	if err != nil {
		return err
	}
	if !a.Exists() || !a.IsDeleted() {
		// Undeleted or already gone; the reminder is stale.
		return nil
	}
	md := types.NewEventMetadata(p.CorrelationID)
	_, handleErr := a.deletePhysical(ctx, p.DeleteReason, md)
	return handleErr
}
