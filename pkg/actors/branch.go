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

// BranchActor is the event-sourced state machine for one branch. The
// reference-producing commands mint a reference actor and then fold a
// transient pointer event that is never persisted or republished; the
// reference actor's Created event is the authoritative record.
type BranchActor struct {
	core core[domain.BranchEvent]
	dto  types.BranchDto
}

// NewBranchActorFactory returns the host factory for branch actors.
func NewBranchActorFactory(deps *Deps) actorhost.Factory {
	return func(id string) actorhost.Actor {
		return &BranchActor{
			core: newCore(KindBranch, id, deps, events.TagBranchEvent, events.TopicBranches, domain.BranchEventRegistry),
			dto:  domain.DefaultBranchDto(),
		}
	}
}

func (a *BranchActor) Kind() string   { return KindBranch }
func (a *BranchActor) ID() string     { return a.core.id }
func (a *BranchActor) Poisoned() bool { return a.core.disposed }

// Activate replays persisted events and then repairs the Latest*
// pointers from the reference index, since pointer events are
// transient and never reach durable branch state.
func (a *BranchActor) Activate(ctx context.Context) error {
	records, err := a.core.load()
	if err != nil {
		return err
	}
	dto := domain.DefaultBranchDto()
	for _, r := range records {
		dto = domain.UpdateBranchDto(r.Event, dto)
	}
	if dto.BranchID != uuid.Nil {
		latest, err := a.core.deps.Index.LatestReferences(dto.BranchID)
		if err != nil {
			return err
		}
		if row, ok := latest[types.ReferencePromotion]; ok {
			dto.LatestPromotion = row.ReferenceID
		}
		if row, ok := latest[types.ReferenceCommit]; ok {
			dto.LatestCommit = row.ReferenceID
		}
		if row, ok := latest[types.ReferenceCheckpoint]; ok {
			dto.LatestCheckpoint = row.ReferenceID
		}
		if row, ok := latest[types.ReferenceSave]; ok {
			dto.LatestSave = row.ReferenceID
		}
	}
	a.core.records = records
	a.dto = dto
	a.core.disposed = false
	return nil
}

func (a *BranchActor) Exists() bool         { return a.dto.Status() != types.StatusNonexistent }
func (a *BranchActor) IsDeleted() bool      { return a.dto.Status() == types.StatusLogicallyDeleted }
func (a *BranchActor) Get() types.BranchDto { return a.dto }

func (a *BranchActor) props(dto types.BranchDto) map[string]string {
	p := map[string]string{types.PropBranchID: a.core.id}
	if dto.RepositoryID != uuid.Nil {
		p[types.PropRepositoryID] = dto.RepositoryID.String()
	}
	return p
}

// Handle runs the command pipeline for one branch command.
func (a *BranchActor) Handle(ctx context.Context, cmd domain.BranchCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	if err := a.core.checkMetadata(md); err != nil {
		return nil, err
	}

	_, isCreate := cmd.(*domain.BranchCreate)
	if isCreate && a.Exists() {
		return nil, errcode.New(errcode.EntityAlreadyExists, md.CorrelationID)
	}
	if !isCreate && !a.Exists() {
		return nil, errcode.New(errcode.BranchNotFound, md.CorrelationID)
	}

	switch c := cmd.(type) {
	case *domain.BranchCreate:
		return a.applyEvent(ctx, &domain.BranchCreated{
			BranchID:       c.BranchID,
			RepositoryID:   c.RepositoryID,
			ParentBranchID: c.ParentBranchID,
			Name:           c.Name,
			BasedOn:        c.BasedOn,
			Features:       types.DefaultBranchFeatures(),
			CreatedAt:      md.Timestamp,
		}, md)

	case *domain.BranchSetName:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchNameSet{Name: c.Name}, md)

	case *domain.BranchEnableAssign:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchAssignEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchEnablePromotion:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchPromotionEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchEnableCommit:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchCommitEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchEnableCheckpoint:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchCheckpointEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchEnableSave:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchSaveEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchEnableTag:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchTagEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchEnableExternal:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchExternalEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchEnableAutoRebase:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.applyEvent(ctx, &domain.BranchAutoRebaseEnabledSet{Enabled: c.Enabled}, md)

	case *domain.BranchAssign:
		if !a.dto.Features.AssignEnabled {
			return nil, errcode.New(errcode.AssignIsDisabled, md.CorrelationID)
		}
		return a.produceReference(ctx, types.ReferencePromotion, c.ReferenceSpec, md,
			func(refID uuid.UUID) domain.BranchEvent { return &domain.BranchAssigned{ReferenceID: refID} })

	case *domain.BranchPromote:
		if !a.dto.Features.PromotionEnabled {
			return nil, errcode.New(errcode.PromotionIsDisabled, md.CorrelationID)
		}
		if err := a.promoteGuard(ctx, md); err != nil {
			return nil, err
		}
		return a.produceReference(ctx, types.ReferencePromotion, c.ReferenceSpec, md,
			func(refID uuid.UUID) domain.BranchEvent { return &domain.BranchPromoted{ReferenceID: refID} })

	case *domain.BranchCommit:
		if !a.dto.Features.CommitEnabled {
			return nil, errcode.New(errcode.CommitIsDisabled, md.CorrelationID)
		}
		return a.produceReference(ctx, types.ReferenceCommit, c.ReferenceSpec, md,
			func(refID uuid.UUID) domain.BranchEvent { return &domain.BranchCommitted{ReferenceID: refID} })

	case *domain.BranchCheckpoint:
		if !a.dto.Features.CheckpointEnabled {
			return nil, errcode.New(errcode.CheckpointIsDisabled, md.CorrelationID)
		}
		return a.produceReference(ctx, types.ReferenceCheckpoint, c.ReferenceSpec, md,
			func(refID uuid.UUID) domain.BranchEvent { return &domain.BranchCheckpointed{ReferenceID: refID} })

	case *domain.BranchSave:
		if !a.dto.Features.SaveEnabled {
			return nil, errcode.New(errcode.SaveIsDisabled, md.CorrelationID)
		}
		return a.produceReference(ctx, types.ReferenceSave, c.ReferenceSpec, md,
			func(refID uuid.UUID) domain.BranchEvent { return &domain.BranchSaved{ReferenceID: refID} })

	case *domain.BranchTag:
		if !a.dto.Features.TagEnabled {
			return nil, errcode.New(errcode.TagIsDisabled, md.CorrelationID)
		}
		return a.produceReference(ctx, types.ReferenceTag, c.ReferenceSpec, md,
			func(refID uuid.UUID) domain.BranchEvent { return &domain.BranchTagged{ReferenceID: refID} })

	case *domain.BranchCreateExternal:
		if !a.dto.Features.ExternalEnabled {
			return nil, errcode.New(errcode.ExternalIsDisabled, md.CorrelationID)
		}
		return a.produceReference(ctx, types.ReferenceExternal, c.ReferenceSpec, md,
			func(refID uuid.UUID) domain.BranchEvent { return &domain.BranchExternalCreated{ReferenceID: refID} })

	case *domain.BranchRebase:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.rebase(ctx, c.ReferenceID, md)

	case *domain.BranchRemoveReference:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		return a.removeReference(ctx, c.ReferenceID, md)

	case *domain.BranchDeleteLogical:
		if err := a.rejectDeleted(md); err != nil {
			return nil, err
		}
		if !c.Force {
			empty, lookErr := a.hasNoReferences()
			if lookErr != nil {
				return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, lookErr)
			}
			if !empty {
				return nil, errcode.New(errcode.BranchNotEmpty, md.CorrelationID)
			}
		}
		result, err := a.applyEvent(ctx, &domain.BranchLogicalDeleted{
			DeleteReason: c.DeleteReason,
			DeletedAt:    md.Timestamp,
		}, md)
		if err != nil {
			return nil, err
		}
		if err := a.schedulePhysicalDeletion(ctx, c.DeleteReason, md); err != nil {
			return nil, err
		}
		return result, nil

	case *domain.BranchUndelete:
		if !a.IsDeleted() {
			return nil, errcode.New(errcode.EntityNotDeleted, md.CorrelationID)
		}
		if err := a.core.deps.Reminders.Unregister(KindBranch, a.core.id, timers.ReminderPhysicalDeletion); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
		}
		return a.applyEvent(ctx, &domain.BranchUndeleted{}, md)

	case *domain.BranchDeletePhysical:
		return a.deletePhysical(ctx, c.DeleteReason, md)

	default:
		return nil, errcode.New(errcode.InternalError, md.CorrelationID)
	}
}

func (a *BranchActor) rejectDeleted(md types.EventMetadata) *errcode.Error {
	if a.IsDeleted() {
		return errcode.New(errcode.EntityDeleted, md.CorrelationID)
	}
	return nil
}

func (a *BranchActor) applyEvent(ctx context.Context, event domain.BranchEvent, md types.EventMetadata) (*types.ReturnValue, error) {
	next := domain.UpdateBranchDto(event, a.dto)
	result, appErr := a.core.apply(ctx, event, md, a.props(next))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = next
	return result, nil
}

// produceReference mints a reference, sends Create to the reference
// actor, and on success folds the transient pointer event in memory.
func (a *BranchActor) produceReference(ctx context.Context, refType types.ReferenceType, spec domain.ReferenceSpec, md types.EventMetadata, pointer func(uuid.UUID) domain.BranchEvent) (*types.ReturnValue, error) {
	if err := a.rejectDeleted(md); err != nil {
		return nil, err
	}
	branchID, err := uuid.Parse(a.core.id)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}

	refID := uuid.New()
	createErr := actorhost.Call(ctx, a.core.deps.Host, KindReference, refID.String(), "Create",
		func(ctx context.Context, ref *ReferenceActor) error {
			_, handleErr := ref.Handle(ctx, &domain.ReferenceCreate{
				ReferenceID:        refID,
				RepositoryID:       a.dto.RepositoryID,
				BranchID:           branchID,
				DirectoryVersionID: spec.DirectoryVersionID,
				Sha256Hash:         spec.Sha256Hash,
				ReferenceType:      refType,
				Text:               spec.Text,
			}, types.NewEventMetadata(md.CorrelationID))
			return handleErr
		})
	if createErr != nil {
		return nil, createErr
	}

	event := pointer(refID)
	a.dto = domain.UpdateBranchDto(event, a.dto)

	props := a.props(a.dto)
	props[types.PropReferenceID] = refID.String()
	return &types.ReturnValue{
		EventType:     event.EventType(),
		CorrelationID: md.CorrelationID,
		Properties:    props,
	}, nil
}

// promoteGuard rejects a promotion when the branch is not based on its
// parent's latest promotion.
func (a *BranchActor) promoteGuard(ctx context.Context, md types.EventMetadata) error {
	if a.dto.ParentBranchID == nil {
		return nil
	}
	var parentLatest uuid.UUID
	callErr := actorhost.Call(ctx, a.core.deps.Host, KindBranch, a.dto.ParentBranchID.String(), "GetLatestPromotion",
		func(ctx context.Context, parent *BranchActor) error {
			parentLatest = parent.Get().LatestPromotion
			return nil
		})
	if callErr != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, callErr)
	}
	if parentLatest != uuid.Nil && a.dto.BasedOn != parentLatest {
		return errcode.New(errcode.NotBasedOnLatestPromotion, md.CorrelationID)
	}
	return nil
}

// rebase creates a Rebase-type reference copying the promotion's
// directory version, hash, and text, then persists the BasedOn move.
func (a *BranchActor) rebase(ctx context.Context, promotionID uuid.UUID, md types.EventMetadata) (*types.ReturnValue, error) {
	promotion, err := a.core.deps.Index.GetReference(promotionID)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	if promotion == nil || promotion.DeletedAt != nil {
		return nil, errcode.New(errcode.ReferenceNotFound, md.CorrelationID)
	}
	if promotion.ReferenceType != types.ReferencePromotion {
		return nil, errcode.New(errcode.InvalidReferenceType, md.CorrelationID)
	}

	branchID, err := uuid.Parse(a.core.id)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	refID := uuid.New()
	createErr := actorhost.Call(ctx, a.core.deps.Host, KindReference, refID.String(), "Create",
		func(ctx context.Context, ref *ReferenceActor) error {
			_, handleErr := ref.Handle(ctx, &domain.ReferenceCreate{
				ReferenceID:        refID,
				RepositoryID:       a.dto.RepositoryID,
				BranchID:           branchID,
				DirectoryVersionID: promotion.DirectoryVersionID,
				Sha256Hash:         promotion.Sha256Hash,
				ReferenceType:      types.ReferenceRebase,
				Text:               promotion.Text,
			}, types.NewEventMetadata(md.CorrelationID))
			return handleErr
		})
	if createErr != nil {
		return nil, createErr
	}

	result, applyErr := a.applyEvent(ctx, &domain.BranchRebased{
		BasedOn:     promotionID,
		ReferenceID: refID,
	}, md)
	if applyErr != nil {
		return nil, applyErr
	}
	result.Properties[types.PropReferenceID] = refID.String()
	return result, nil
}

// removeReference logically deletes the reference through its own
// actor and persists the pointer clear on the branch.
func (a *BranchActor) removeReference(ctx context.Context, refID uuid.UUID, md types.EventMetadata) (*types.ReturnValue, error) {
	callErr := actorhost.Call(ctx, a.core.deps.Host, KindReference, refID.String(), "DeleteLogical",
		func(ctx context.Context, ref *ReferenceActor) error {
			_, handleErr := ref.Handle(ctx, &domain.ReferenceDeleteLogical{DeleteReason: "removed from branch"}, types.NewEventMetadata(md.CorrelationID))
			return handleErr
		})
	if callErr != nil {
		return nil, callErr
	}
	result, applyErr := a.applyEvent(ctx, &domain.BranchReferenceRemoved{ReferenceID: refID}, md)
	if applyErr != nil {
		return nil, applyErr
	}
	result.Properties[types.PropReferenceID] = refID.String()
	return result, nil
}

func (a *BranchActor) hasNoReferences() (bool, error) {
	branchID, err := uuid.Parse(a.core.id)
	if err != nil {
		return false, err
	}
	refs, err := a.core.deps.Index.ListReferences(branchID, 1)
	if err != nil {
		return false, err
	}
	return len(refs) == 0, nil
}

func (a *BranchActor) schedulePhysicalDeletion(ctx context.Context, reason string, md types.EventMetadata) *errcode.Error {
	days, err := a.logicalDeleteDays(ctx)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	payload, err := timers.DeletionPayload{
		BranchID:      a.core.id,
		DeleteReason:  reason,
		CorrelationID: md.CorrelationID,
	}.Encode()
	if err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	due := md.Timestamp.Add(types.DaysToDuration(days))
	if err := a.core.deps.Reminders.Register(KindBranch, a.core.id, timers.ReminderPhysicalDeletion, payload, due, 0); err != nil {
		return errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	return nil
}

// logicalDeleteDays reads the owning repository's retention window.
func (a *BranchActor) logicalDeleteDays(ctx context.Context) (float64, error) {
	if a.dto.RepositoryID == uuid.Nil {
		return a.core.deps.DefaultRetention.LogicalDeleteDays, nil
	}
	var days float64
	callErr := actorhost.Call(ctx, a.core.deps.Host, KindRepository, a.dto.RepositoryID.String(), "GetRetention",
		func(ctx context.Context, repo *RepositoryActor) error {
			days = repo.Retention().LogicalDeleteDays
			return nil
		})
	if callErr != nil {
		return 0, callErr
	}
	return days, nil
}

// deletePhysical removes the branch and cascades to every reference
// the read-model index holds for it.
func (a *BranchActor) deletePhysical(ctx context.Context, reason string, md types.EventMetadata) (*types.ReturnValue, error) {
	branchID, err := uuid.Parse(a.core.id)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	refs, err := a.core.deps.Index.ListReferences(branchID, 0)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	for _, r := range refs {
		callErr := actorhost.Call(ctx, a.core.deps.Host, KindReference, r.ReferenceID.String(), "DeletePhysical",
			func(ctx context.Context, ref *ReferenceActor) error {
				_, handleErr := ref.Handle(ctx, &domain.ReferenceDeletePhysical{DeleteReason: reason}, types.NewEventMetadata(md.CorrelationID))
				return handleErr
			})
		if callErr != nil {
			return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, callErr)
		}
	}

	_ = a.core.deps.Reminders.Unregister(KindBranch, a.core.id, timers.ReminderPhysicalDeletion)
	result, appErr := a.core.wipe(ctx, &domain.BranchPhysicalDeleted{DeleteReason: reason}, md, a.props(a.dto))
	if appErr != nil {
		return nil, appErr
	}
	a.dto = domain.DefaultBranchDto()
	return result, nil
}

// ReceiveReminder performs the deferred physical deletion.
func (a *BranchActor) ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error {
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
