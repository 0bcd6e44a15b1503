package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracevcs/grace-server/pkg/types"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker()
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func envelope(tag Tag) *Envelope {
	return NewEnvelope(tag, json.RawMessage(`{"type":"Created"}`), types.NewEventMetadata("corr-1"))
}

func receive(t *testing.T, sub Subscriber) *Envelope {
	t.Helper()
	select {
	case env := <-sub:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(TopicOwners)

	sent := envelope(TagOwnerEvent)
	require.NoError(t, b.Publish(context.Background(), TopicOwners, sent))

	got := receive(t, sub)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, TagOwnerEvent, got.Tag)
	assert.Equal(t, "corr-1", got.Metadata.CorrelationID)
}

func TestTopicFiltering(t *testing.T) {
	b := newTestBroker(t)
	branches := b.Subscribe(TopicBranches)
	all := b.Subscribe()

	require.NoError(t, b.Publish(context.Background(), TopicOwners, envelope(TagOwnerEvent)))
	require.NoError(t, b.Publish(context.Background(), TopicBranches, envelope(TagBranchEvent)))

	// The filtered subscriber only sees the branch event.
	got := receive(t, branches)
	assert.Equal(t, TagBranchEvent, got.Tag)
	select {
	case extra := <-branches:
		t.Fatalf("unexpected envelope %s", extra.Tag)
	case <-time.After(50 * time.Millisecond):
	}

	// The unfiltered subscriber sees both.
	assert.Equal(t, TagOwnerEvent, receive(t, all).Tag)
	assert.Equal(t, TagBranchEvent, receive(t, all).Tag)
}

func TestMultipleSubscribersOnOneTopic(t *testing.T) {
	b := newTestBroker(t)
	first := b.Subscribe(TopicReferences)
	second := b.Subscribe(TopicReferences)

	require.NoError(t, b.Publish(context.Background(), TopicReferences, envelope(TagReferenceEvent)))

	assert.Equal(t, TagReferenceEvent, receive(t, first).Tag)
	assert.Equal(t, TagReferenceEvent, receive(t, second).Tag)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(TopicOwners)
	require.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestSlowSubscriberGetsBackpressure(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(TopicBranches)

	// More envelopes than the subscriber channel buffers. A reader
	// that only starts draining later must still see every one.
	const total = 60
	sent := make(map[uuid.UUID]bool, total)
	for i := 0; i < total; i++ {
		env := envelope(TagBranchEvent)
		sent[env.ID] = true
		require.NoError(t, b.Publish(context.Background(), TopicBranches, env))
	}

	time.Sleep(100 * time.Millisecond)
	for i := 0; i < total; i++ {
		got := receive(t, sub)
		assert.True(t, sent[got.ID], got.ID)
		delete(sent, got.ID)
	}
	assert.Empty(t, sent)
}

func TestPublishAfterStop(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()

	// Stop closes the loop; once the channel buffer fills the publish
	// surfaces the stopped broker.
	var err error
	for i := 0; i < 200 && err == nil; i++ {
		err = b.Publish(context.Background(), TopicOwners, envelope(TagOwnerEvent))
	}
	assert.ErrorIs(t, err, ErrBrokerStopped)
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(TopicOwners)

	env := NewEnvelope(TagOwnerEvent, json.RawMessage(`{}`), types.EventMetadata{CorrelationID: "corr-2"})
	require.NoError(t, b.Publish(context.Background(), TopicOwners, env))

	got := receive(t, sub)
	assert.False(t, got.Metadata.Timestamp.IsZero())
}
