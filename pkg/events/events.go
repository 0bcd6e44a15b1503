package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/metrics"
	"github.com/gracevcs/grace-server/pkg/types"
)

// subscriberPatience bounds how long the distribution loop waits for a
// full subscriber before giving the envelope up.
const subscriberPatience = 5 * time.Second

// Tag discriminates the payload of an envelope.
type Tag string

const (
	TagOwnerEvent            Tag = "OwnerEvent"
	TagOrganizationEvent     Tag = "OrganizationEvent"
	TagRepositoryEvent       Tag = "RepositoryEvent"
	TagBranchEvent           Tag = "BranchEvent"
	TagReferenceEvent        Tag = "ReferenceEvent"
	TagDirectoryVersionEvent Tag = "DirectoryVersionEvent"
)

// Topics, one per entity class.
const (
	TopicOwners            = "grace.owners"
	TopicOrganizations     = "grace.organizations"
	TopicRepositories      = "grace.repositories"
	TopicBranches          = "grace.branches"
	TopicReferences        = "grace.references"
	TopicDirectoryVersions = "grace.directoryversions"
)

// Envelope is the wire form of a domain event: a tagged payload plus the
// full metadata record of the command that produced it.
type Envelope struct {
	ID       uuid.UUID           `json:"id"`
	Tag      Tag                 `json:"tag"`
	Event    json.RawMessage     `json:"event"`
	Metadata types.EventMetadata `json:"metadata"`
}

// NewEnvelope wraps an already-serialized event payload.
func NewEnvelope(tag Tag, event json.RawMessage, metadata types.EventMetadata) *Envelope {
	return &Envelope{
		ID:       uuid.New(),
		Tag:      tag,
		Event:    event,
		Metadata: metadata,
	}
}

// Subscriber is a channel that receives envelopes
type Subscriber chan *Envelope

type subscription struct {
	ch     Subscriber
	topics map[string]bool // empty = all topics
}

type published struct {
	topic    string
	envelope *Envelope
}

// Broker manages topic subscriptions and at-least-once distribution of
// domain events to in-process subscribers. Delivery is best-effort
// ordered per publisher; subscribers tolerate duplicates downstream.
type Broker struct {
	subscribers map[Subscriber]*subscription
	mu          sync.RWMutex
	eventCh     chan published
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]*subscription),
		eventCh:     make(chan published, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a subscription and returns its channel. With no
// topics, every topic is delivered.
func (b *Broker) Subscribe(topics ...string) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	topicSet := make(map[string]bool, len(topics))
	for _, t := range topics {
		topicSet[t] = true
	}
	b.subscribers[sub] = &subscription{ch: sub, topics: topicSet}
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish hands an envelope to the distribution loop. When the loop is
// saturated, Publish retries with bounded backoff before reporting the
// bus unavailable; the caller decides what a lost publish means.
func (b *Broker) Publish(ctx context.Context, topic string, envelope *Envelope) error {
	if envelope.Metadata.Timestamp.IsZero() {
		envelope.Metadata.Timestamp = time.Now().UTC()
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		select {
		case b.eventCh <- published{topic: topic, envelope: envelope}:
			return nil
		case <-b.stopCh:
			return ErrBrokerStopped
		case <-ctx.Done():
			return ctx.Err()
		default:
			return retry.RetryableError(ErrBrokerSaturated)
		}
	})
}

func (b *Broker) run() {
	for {
		select {
		case p := <-b.eventCh:
			b.broadcast(p.topic, p.envelope)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(topic string, envelope *Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.topics) > 0 && !sub.topics[topic] {
			continue
		}
		b.deliver(topic, sub.ch, envelope)
	}
}

// deliver applies backpressure on a full subscriber channel instead of
// dropping: projections fold these envelopes and a silent loss would
// desync them. A subscriber that stays full past the patience window
// still loses the envelope, and the loss is counted and logged.
func (b *Broker) deliver(topic string, ch Subscriber, envelope *Envelope) {
	select {
	case ch <- envelope:
		return
	case <-b.stopCh:
		return
	default:
	}

	patience := time.NewTimer(subscriberPatience)
	defer patience.Stop()
	select {
	case ch <- envelope:
	case <-b.stopCh:
	case <-patience.C:
		metrics.EventsDroppedTotal.WithLabelValues(topic).Inc()
		logger := log.WithComponent("events")
		logger.Error().
			Str("topic", topic).
			Str("envelope_id", envelope.ID.String()).
			Msg("subscriber stalled, envelope dropped")
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
