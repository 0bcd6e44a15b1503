package actors

import (
	"context"

	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/metrics"
	"github.com/gracevcs/grace-server/pkg/types"
)

// eventsKey is the single state-store key holding an actor's ordered
// event list. One key per actor keeps replay trivial and preserves the
// rule that the dto is a pure fold of the list.
const eventsKey = "events"

// core carries the event-sourced state machinery shared by every
// entity actor: the ordered event list, the idempotency guard, the
// persist-then-publish apply step, and poisoning on uncertain failure.
type core[E domain.Event] struct {
	kind     string
	id       string
	deps     *Deps
	tag      events.Tag
	topic    string
	registry map[string]func() E

	records  []domain.Record[E]
	disposed bool
}

func newCore[E domain.Event](kind, id string, deps *Deps, tag events.Tag, topic string, registry map[string]func() E) core[E] {
	return core[E]{
		kind:     kind,
		id:       id,
		deps:     deps,
		tag:      tag,
		topic:    topic,
		registry: registry,
	}
}

func (c *core[E]) actorID() string { return c.kind + "|" + c.id }

// load retrieves and decodes the persisted event list.
func (c *core[E]) load() ([]domain.Record[E], error) {
	data, err := c.deps.Store.Retrieve(c.actorID(), eventsKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return domain.UnmarshalRecords(data, c.registry)
}

// checkMetadata enforces the command envelope rules: a correlation id
// is required and may not repeat an already-recorded event's id.
func (c *core[E]) checkMetadata(md types.EventMetadata) *errcode.Error {
	if md.CorrelationID == "" {
		return errcode.New(errcode.MissingCorrelationID, "")
	}
	for _, r := range c.records {
		if r.Metadata.CorrelationID == md.CorrelationID {
			return errcode.New(errcode.DuplicateCorrelationID, md.CorrelationID)
		}
	}
	return nil
}

// apply is step (d) of the Handle pipeline: append the event, persist
// the whole list, publish the envelope, and shape the enriched return.
// A persistence or publication failure poisons the actor so the next
// turn rebuilds from durable state.
func (c *core[E]) apply(ctx context.Context, event E, md types.EventMetadata, props map[string]string) (*types.ReturnValue, *errcode.Error) {
	md.Properties = mergeProps(md.Properties, props)
	c.records = append(c.records, domain.Record[E]{Event: event, Metadata: md})

	data, err := domain.MarshalRecords(c.records)
	if err != nil {
		c.records = c.records[:len(c.records)-1]
		return nil, errcode.Wrap(errcode.InternalError, md.CorrelationID, err)
	}
	if err := c.deps.Store.Save(c.actorID(), eventsKey, data); err != nil {
		c.disposed = true
		return nil, errcode.Wrap(errcode.StateStoreUnavailable, md.CorrelationID, err)
	}
	metrics.EventsPersistedTotal.WithLabelValues(c.kind).Inc()

	if err := c.publish(ctx, event, md); err != nil {
		c.disposed = true
		return nil, errcode.Wrap(errcode.EventBusUnavailable, md.CorrelationID, err)
	}

	return c.returnValue(event, md), nil
}

// publish sends one event envelope on the entity's topic. Publishing
// happens after persistence; a crash in between loses the publish and
// consumers treat the stream as advisory.
func (c *core[E]) publish(ctx context.Context, event E, md types.EventMetadata) error {
	payload, err := domain.MarshalEvent(event)
	if err != nil {
		return err
	}
	if err := c.deps.Broker.Publish(ctx, c.topic, events.NewEnvelope(c.tag, payload, md)); err != nil {
		return err
	}
	metrics.EventsPublishedTotal.WithLabelValues(c.topic).Inc()
	return nil
}

func (c *core[E]) returnValue(event E, md types.EventMetadata) *types.ReturnValue {
	return &types.ReturnValue{
		EventType:     event.EventType(),
		CorrelationID: md.CorrelationID,
		Properties:    mergeProps(nil, md.Properties),
	}
}

// wipe removes the actor's durable event log and poisons the instance
// so the next turn reactivates to the entity's Default. The advisory
// PhysicalDeleted envelope is published best-effort: the deletion has
// already happened and reminder-path failures are logged, not raised.
func (c *core[E]) wipe(ctx context.Context, event E, md types.EventMetadata, props map[string]string) (*types.ReturnValue, *errcode.Error) {
	md.Properties = mergeProps(md.Properties, props)

	if _, err := c.deps.Store.Delete(c.actorID(), eventsKey); err != nil {
		c.disposed = true
		return nil, errcode.Wrap(errcode.StateStoreUnavailable, md.CorrelationID, err)
	}
	c.records = nil
	c.disposed = true

	logger := log.WithActor(c.kind, c.id)
	if err := c.publish(ctx, event, md); err != nil {
		logger.Error().Err(err).Msg("physical-deletion publish failed")
	}
	logger.Info().Str("correlation_id", md.CorrelationID).Msg("physically deleted")

	return c.returnValue(event, md), nil
}

func mergeProps(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
