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

// ReferenceActor is the event-sourced state machine for one reference.
// References are immutable apart from (un)deletion; the interesting
// behavior is the retention-driven physical-deletion reminder.
type ReferenceActor struct {
	core core[domain.ReferenceEvent]
	dto  types.ReferenceDto
}

// NewReferenceActorFactory returns the host factory for reference actors.
func NewReferenceActorFactory(deps *Deps) actorhost.Factory {
	return func(id string) actorhost.Actor {
		return &ReferenceActor{
			core: newCore(KindReference, id, deps, events.TagReferenceEvent, events.TopicReferences, domain.ReferenceEventRegistry),
			dto:  domain.DefaultReferenceDto(),
		}
	}
}

func (a *ReferenceActor) Kind() string   { return KindReference }
func (a *ReferenceActor) ID() string     { return a.core.id }
func (a *ReferenceActor) Poisoned() bool { return a.core.disposed }

func (a *ReferenceActor) Activate(ctx context.Context) error {
	records, err := a.core.load()
	if err != nil {
		return err
	}
	dto := domain.DefaultReferenceDto()
	for _, r := range records {
		dto = domain.UpdateReferenceDto(r.Event, dto)
	}
	a.core.records = records
	a.dto = dto
	a.core.disposed = false
	return nil
}

func (a *ReferenceActor) Exists() bool            { return a.dto.Status() != types.StatusNonexistent }
func (a *ReferenceActor) IsDeleted() bool         { return a.dto.Status() == types.StatusLogicallyDeleted }
func (a *ReferenceActor) Get() types.ReferenceDto { return a.dto }

func (a *ReferenceActor) props(dto types.ReferenceDto) map[string]string {
	p := map[string]string{types.PropReferenceID: a.core.id}
	if dto.BranchID != uuid.Nil {
		p[types.PropBranchID] = dto.BranchID.String()
	}
	if dto.RepositoryID != uuid.Nil {
		p[types.PropRepositoryID] = dto.RepositoryID.String()
	}
	if dto.DirectoryVersionID != uuid.Nil {
		p[types.PropDirectoryVersionID] = dto.DirectoryVersionID.String()
	}
	return p
}

// Handle runs the command pipeline for one reference command.
func (a *ReferenceActor) Handle(ctx context.Context, cmd domain.ReferenceCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	if err := a.core.checkMetadata(md); err != nil {
		return nil, err
	}

	_, isCreate := cmd.(*domain.ReferenceCreate)
	if isCreate && a.Exists() {
		return nil, errcode.New(errcode.EntityAlreadyExists, md.CorrelationID)
	}
	if !isCreate && !a.Exists() {
		return nil, errcode.New(errcode.ReferenceNotFound, md.CorrelationID)
	}

	switch c := cmd.(type) {
	case *domain.ReferenceCreate:
		result, err := a.applyEvent(ctx, &domain.ReferenceCreated{
			ReferenceID:        c.ReferenceID,
			RepositoryID:       c.RepositoryID,
			BranchID:           c.BranchID,
			DirectoryVersionID: c.DirectoryVersionID,
			Sha256Hash:         c.Sha256Hash,
			ReferenceType:      c.ReferenceType,
			Text:               c.Text,
			CreatedAt:          md.Timestamp,
		}, md)
		if err != nil {
			return nil, err
		}
		// Saves and checkpoints are ephemeral by policy; arm their
		// expiry as soon as they exist.
		switch c.ReferenceType {
		case types.ReferenceSave:
			if schedErr := a.scheduleExpiry(ctx, "retention expired", md, func(r types.RetentionPolicy) float64 { return r.SaveDays }); schedErr != nil {
				return nil, schedErr
			}
		case types.ReferenceCheckpoint:
			if schedErr := a.scheduleExpiry(ctx, "retention expired", md, func(r types.RetentionPolicy) float64 { return r.CheckpointDays }); schedErr != nil {
				return nil, schedErr
			}
		}
		return result, nil

	case *domain.ReferenceDeleteLogical:
		if a.IsDeleted() {
			return nil, errcode.New(errcode.EntityDeleted, md.CorrelationID)
		}
		result, err := a.applyEvent(ctx, &domain.ReferenceLogicalDeleted{
			DeleteReason: c.DeleteReason,
			DeletedAt:    md.Timestamp,
		}, md)
		if err != nil {
			return nil, err
		}
		if schedErr := a.scheduleExpiry(ctx, c.DeleteReason, md, func(r types.RetentionPolicy) float64 { return r.LogicalDeleteDays }); schedErr != nil {
			return nil, schedErr
		}
		return result, nil

	case *domain.ReferenceUndelete:
		if !a.IsDeleted() {
			return nil, errcode.New(errcode.EntityNotDeleted, md.CorrelationID)
		}
		if err := a.core.deps.Reminders.Unregister(KindReference, a.core.id, timers.ReminderPhysicalDeletion); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
		}
		return a.applyEvent(ctx, &domain.ReferenceUndeleted{}, md)

	case *domain.ReferenceDeletePhysical:
		return a.deletePhysical(ctx, c.DeleteReason, md)

	default:
		return nil, errcode.New(errcode.InternalError, md.CorrelationID)
	}
}

func (a *ReferenceActor) applyEvent(ctx context.Context, event domain.ReferenceEvent, md types.EventMetadata) (*types.ReturnValue, error) {
	next := domain.UpdateReferenceDto(event, a.dto)
	result, appErr := a.core.apply(ctx, event, md, a.props(next))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = next
	return result, nil
}

// scheduleExpiry registers the physical-deletion reminder using the
// owning repository's retention window selected by pick.
func (a *ReferenceActor) scheduleExpiry(ctx context.Context, reason string, md types.EventMetadata, pick func(types.RetentionPolicy) float64) *errcode.Error {
	retention, err := a.retention(ctx)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	payload, err := timers.DeletionPayload{
		ReferenceID:   a.core.id,
		DeleteReason:  reason,
		CorrelationID: md.CorrelationID,
	}.Encode()
	if err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	due := md.Timestamp.Add(types.DaysToDuration(pick(retention)))
	if err := a.core.deps.Reminders.Register(KindReference, a.core.id, timers.ReminderPhysicalDeletion, payload, due, 0); err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	return nil
}

func (a *ReferenceActor) retention(ctx context.Context) (types.RetentionPolicy, error) {
	if a.dto.RepositoryID == uuid.Nil {
		return a.core.deps.DefaultRetention, nil
	}
	var policy types.RetentionPolicy
	callErr := actorhost.Call(ctx, a.core.deps.Host, KindRepository, a.dto.RepositoryID.String(), "GetRetention",
		func(ctx context.Context, repo *RepositoryActor) error {
			policy = repo.Retention()
			return nil
		})
	if callErr != nil {
		return types.RetentionPolicy{}, callErr
	}
	return policy, nil
}

func (a *ReferenceActor) deletePhysical(ctx context.Context, reason string, md types.EventMetadata) (*types.ReturnValue, error) {
	_ = a.core.deps.Reminders.Unregister(KindReference, a.core.id, timers.ReminderPhysicalDeletion)
	result, appErr := a.core.wipe(ctx, &domain.ReferencePhysicalDeleted{DeleteReason: reason}, md, a.props(a.dto))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = domain.DefaultReferenceDto()
	return result, nil
}

// ReceiveReminder performs the deferred physical deletion.
func (a *ReferenceActor) ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error {
	if name != timers.ReminderPhysicalDeletion {
		return nil
	}
	p, err := timers.DecodeDeletionPayload(payload)
	if err != nil {
		return err
	}
	if !a.Exists() {
		return nil
	}
	md := types.NewEventMetadata(p.CorrelationID)
	_, handleErr := a.deletePhysical(ctx, p.DeleteReason, md)
	return handleErr
}
