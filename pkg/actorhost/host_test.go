package actorhost

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingActor tracks activations and concurrent turns.
type countingActor struct {
	id string

	mu          sync.Mutex
	activations int
	inTurn      int
	maxInTurn   int
	poisoned    bool
}

func (a *countingActor) Kind() string { return "Counter" }
func (a *countingActor) ID() string   { return a.id }

func (a *countingActor) Activate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activations++
	a.poisoned = false
	return nil
}

func (a *countingActor) Poisoned() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.poisoned
}

func (a *countingActor) enter() {
	a.mu.Lock()
	a.inTurn++
	if a.inTurn > a.maxInTurn {
		a.maxInTurn = a.inTurn
	}
	a.mu.Unlock()
}

func (a *countingActor) exit() {
	a.mu.Lock()
	a.inTurn--
	a.mu.Unlock()
}

func newTestHost(t *testing.T) (*Host, map[string]*countingActor) {
	t.Helper()
	actors := make(map[string]*countingActor)
	var mu sync.Mutex

	h := NewHost(time.Hour)
	h.RegisterKind("Counter", func(id string) Actor {
		mu.Lock()
		defer mu.Unlock()
		if a, ok := actors[id]; ok {
			return a
		}
		a := &countingActor{id: id}
		actors[id] = a
		return a
	})
	h.Start()
	t.Cleanup(h.Stop)
	return h, actors
}

func TestSingleInstancePerIdentity(t *testing.T) {
	h, _ := newTestHost(t)

	first, err := h.Proxy("Counter", "a")
	require.NoError(t, err)
	second, err := h.Proxy("Counter", "a")
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := h.Proxy("Counter", "b")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestUnknownKind(t *testing.T) {
	h, _ := newTestHost(t)
	_, err := h.Proxy("Nope", "a")
	assert.Error(t, err)
}

func TestActivateRunsOnceBeforeFirstTurn(t *testing.T) {
	h, actors := newTestHost(t)

	for turn := 0; turn < 3; turn++ {
		err := Call(context.Background(), h, "Counter", "a", "noop",
			func(ctx context.Context, a *countingActor) error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 1, actors["a"].activations)
}

func TestPoisonedActorReactivates(t *testing.T) {
	h, actors := newTestHost(t)

	require.NoError(t, Call(context.Background(), h, "Counter", "a", "poison",
		func(ctx context.Context, a *countingActor) error {
			a.mu.Lock()
			a.poisoned = true
			a.mu.Unlock()
			return nil
		}))

	require.NoError(t, Call(context.Background(), h, "Counter", "a", "noop",
		func(ctx context.Context, a *countingActor) error { return nil }))
	assert.Equal(t, 2, actors["a"].activations)
}

func TestTurnsAreSerialized(t *testing.T) {
	h, actors := newTestHost(t)

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Call(context.Background(), h, "Counter", "a", "work",
				func(ctx context.Context, a *countingActor) error {
					a.enter()
					time.Sleep(time.Millisecond)
					a.exit()
					return nil
				})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, actors["a"].maxInTurn)
}

func TestCallTypeMismatch(t *testing.T) {
	h, _ := newTestHost(t)
	err := Call(context.Background(), h, "Counter", "a", "noop",
		func(ctx context.Context, a *wrongActor) error { return nil })
	assert.Error(t, err)
}

type wrongActor struct{ countingActor }

func TestCorrelationContext(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "corr-77")
	assert.Equal(t, "corr-77", CorrelationFrom(ctx))
	assert.Empty(t, CorrelationFrom(context.Background()))
}
