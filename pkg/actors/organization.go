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

// OrganizationActor is the event-sourced state machine for one organization.
type OrganizationActor struct {
	core core[domain.OrganizationEvent]
	dto  types.OrganizationDto
}

// NewOrganizationActorFactory returns the host factory for organization actors.
func NewOrganizationActorFactory(deps *Deps) actorhost.Factory {
	return func(id string) actorhost.Actor {
		return &OrganizationActor{
			core: newCore(KindOrganization, id, deps, events.TagOrganizationEvent, events.TopicOrganizations, domain.OrganizationEventRegistry),
			dto:  domain.DefaultOrganizationDto(),
		}
	}
}

func (a *OrganizationActor) Kind() string   { return KindOrganization }
func (a *OrganizationActor) ID() string     { return a.core.id }
func (a *OrganizationActor) Poisoned() bool { return a.core.disposed }

func (a *OrganizationActor) Activate(ctx context.Context) error {
	records, err := a.core.load()
	if err != nil {
		return err
	}
	dto := domain.DefaultOrganizationDto()
	for _, r := range records {
		dto = domain.UpdateOrganizationDto(r.Event, dto)
	}
	a.core.records = records
	a.dto = dto
	a.core.disposed = false
	return nil
}

func (a *OrganizationActor) Exists() bool               { return a.dto.Status() != types.StatusNonexistent }
func (a *OrganizationActor) IsDeleted() bool            { return a.dto.Status() == types.StatusLogicallyDeleted }
func (a *OrganizationActor) Get() types.OrganizationDto { return a.dto }

func (a *OrganizationActor) props(dto types.OrganizationDto) map[string]string {
	p := map[string]string{types.PropOrganizationID: a.core.id}
	if dto.OwnerID != uuid.Nil {
		p[types.PropOwnerID] = dto.OwnerID.String()
	}
	return p
}

// Handle runs the command pipeline for one organization command.
func (a *OrganizationActor) Handle(ctx context.Context, cmd domain.OrganizationCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	if err := a.core.checkMetadata(md); err != nil {
		return nil, err
	}

	_, isCreate := cmd.(*domain.OrganizationCreate)
	if isCreate && a.Exists() {
		return nil, errcode.New(errcode.EntityAlreadyExists, md.CorrelationID)
	}
	if !isCreate && !a.Exists() {
		return nil, errcode.New(errcode.OrganizationNotFound, md.CorrelationID)
	}

	switch c := cmd.(type) {
	case *domain.OrganizationCreate:
		return a.applyEvent(ctx, &domain.OrganizationCreated{
			OrganizationID: c.OrganizationID,
			OwnerID:        c.OwnerID,
			Name:           c.Name,
			Type:           c.Type,
			CreatedAt:      md.Timestamp,
		}, md)

	case *domain.OrganizationSetName:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.OrganizationNameSet{Name: c.Name}, md)

	case *domain.OrganizationSetType:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.OrganizationTypeSet{Type: c.Type}, md)

	case *domain.OrganizationSetSearchVisibility:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.OrganizationSearchVisibilitySet{SearchVisibility: c.SearchVisibility}, md)

	case *domain.OrganizationDeleteLogical:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		result, err := a.applyEvent(ctx, &domain.OrganizationLogicalDeleted{
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

	case *domain.OrganizationUndelete:
		if !a.IsDeleted() {
			return nil, errcode.New(errcode.EntityNotDeleted, md.CorrelationID)
		}
		if err := a.core.deps.Reminders.Unregister(KindOrganization, a.core.id, timers.ReminderPhysicalDeletion); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
		}
		return a.applyEvent(ctx, &domain.OrganizationUndeleted{}, md)

	case *domain.OrganizationDeletePhysical:
		return a.deletePhysical(ctx, c.DeleteReason, md)

	default:
		return nil, errcode.New(errcode.InternalError, md.CorrelationID)
	}
}

func (a *OrganizationActor) rejectDeleted(md types.EventMetadata) *errcode.Error {
	if a.IsDeleted() {
		return errcode.New(errcode.EntityDeleted, md.CorrelationID)
	}
	return nil
}

func (a *OrganizationActor) applyEvent(ctx context.Context, event domain.OrganizationEvent, md types.EventMetadata) (*types.ReturnValue, error) {
	next := domain.UpdateOrganizationDto(event, a.dto)
	result, appErr := a.core.apply(ctx, event, md, a.props(next))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = next
	return result, nil
}

func (a *OrganizationActor) schedulePhysicalDeletion(reason string, md types.EventMetadata) *errcode.Error {
	payload, err := timers.DeletionPayload{
		OrganizationID: a.core.id,
		DeleteReason:   reason,
		CorrelationID:  md.CorrelationID,
	}.Encode()
	if err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	due := md.Timestamp.Add(types.DaysToDuration(a.core.deps.DefaultRetention.LogicalDeleteDays))
	if err := a.core.deps.Reminders.Register(KindOrganization, a.core.id, timers.ReminderPhysicalDeletion, payload, due, 0); err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	return nil
}

func (a *OrganizationActor) deletePhysical(ctx context.Context, reason string, md types.EventMetadata) (*types.ReturnValue, error) {
	_ = a.core.deps.Reminders.Unregister(KindOrganization, a.core.id, timers.ReminderPhysicalDeletion)
	result, appErr := a.core.wipe(ctx, &domain.OrganizationPhysicalDeleted{DeleteReason: reason}, md, a.props(a.dto))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = domain.DefaultOrganizationDto()
	return result, nil
}

// ReceiveReminder performs the deferred physical deletion.
func (a *OrganizationActor) ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error {
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
