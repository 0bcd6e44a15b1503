package timers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/gracevcs/grace-server/pkg/actorhost"
)

// recordingActor collects reminder deliveries.
type recordingActor struct {
	id string

	mu       sync.Mutex
	received []string
	payloads [][]byte
}

func (a *recordingActor) Kind() string                       { return "Recorder" }
func (a *recordingActor) ID() string                         { return a.id }
func (a *recordingActor) Activate(ctx context.Context) error { return nil }
func (a *recordingActor) Poisoned() bool                     { return false }

func (a *recordingActor) ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.received = append(a.received, name)
	a.payloads = append(a.payloads, payload)
	return nil
}

func (a *recordingActor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.received)
}

func newTestService(t *testing.T) (*ReminderService, *recordingActor) {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "reminders.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	actor := &recordingActor{id: "r-1"}
	host := actorhost.NewHost(time.Hour)
	host.RegisterKind("Recorder", func(id string) actorhost.Actor { return actor })

	svc, err := NewReminderService(db, host, 10*time.Millisecond)
	require.NoError(t, err)
	svc.Start()
	t.Cleanup(svc.Stop)
	return svc, actor
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestOneShotReminderFiresOnce(t *testing.T) {
	svc, actor := newTestService(t)

	payload, err := DeletionPayload{CorrelationID: "corr-1", DeleteReason: "expired"}.Encode()
	require.NoError(t, err)
	require.NoError(t, svc.Register("Recorder", "r-1", ReminderPhysicalDeletion, payload, time.Now(), 0))

	waitFor(t, func() bool { return actor.count() >= 1 })

	// One-shot: the row is gone and no further delivery happens.
	pending, err := svc.Pending("Recorder", "r-1", ReminderPhysicalDeletion)
	require.NoError(t, err)
	assert.False(t, pending)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, actor.count())
	assert.Equal(t, ReminderPhysicalDeletion, actor.received[0])
}

func TestFutureReminderWaits(t *testing.T) {
	svc, actor := newTestService(t)

	require.NoError(t, svc.Register("Recorder", "r-1", "later", nil, time.Now().Add(time.Hour), 0))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, actor.count())

	pending, err := svc.Pending("Recorder", "r-1", "later")
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestUnregisterCancels(t *testing.T) {
	svc, actor := newTestService(t)

	require.NoError(t, svc.Register("Recorder", "r-1", "cancelled", nil, time.Now().Add(time.Hour), 0))
	require.NoError(t, svc.Unregister("Recorder", "r-1", "cancelled"))

	pending, err := svc.Pending("Recorder", "r-1", "cancelled")
	require.NoError(t, err)
	assert.False(t, pending)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, actor.count())
}

func TestUnregisterAbsentIsNoError(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NoError(t, svc.Unregister("Recorder", "r-1", "never-registered"))
}

func TestRegisterReplacesExisting(t *testing.T) {
	svc, actor := newTestService(t)

	require.NoError(t, svc.Register("Recorder", "r-1", "slot", []byte("old"), time.Now().Add(time.Hour), 0))
	require.NoError(t, svc.Register("Recorder", "r-1", "slot", []byte("new"), time.Now(), 0))

	waitFor(t, func() bool { return actor.count() >= 1 })
	assert.Equal(t, []byte("new"), actor.payloads[0])
}

func TestPeriodicReminderRearms(t *testing.T) {
	svc, actor := newTestService(t)

	require.NoError(t, svc.Register("Recorder", "r-1", "tick", nil, time.Now(), 20*time.Millisecond))

	waitFor(t, func() bool { return actor.count() >= 2 })

	pending, err := svc.Pending("Recorder", "r-1", "tick")
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestAllDueRemindersFireInOneScan(t *testing.T) {
	svc, actor := newTestService(t)

	// A dense batch stresses the scan: every due row must be
	// delivered exactly once and removed, with none skipped.
	past := time.Now().Add(-time.Second)
	names := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("expire-%d", i)
		names = append(names, name)
		require.NoError(t, svc.Register("Recorder", "r-1", name, nil, past, 0))
	}

	waitFor(t, func() bool { return actor.count() >= len(names) })
	assert.Equal(t, len(names), actor.count())

	for _, name := range names {
		pending, err := svc.Pending("Recorder", "r-1", name)
		require.NoError(t, err)
		assert.False(t, pending, name)
	}
}

func TestDeletionPayloadRoundTrip(t *testing.T) {
	payload, err := DeletionPayload{CorrelationID: "corr-9", DeleteReason: "retention expired"}.Encode()
	require.NoError(t, err)

	decoded, err := DecodeDeletionPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "corr-9", decoded.CorrelationID)
	assert.Equal(t, "retention expired", decoded.DeleteReason)
}
