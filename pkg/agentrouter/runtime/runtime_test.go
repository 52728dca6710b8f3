package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/agent"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/checkpoint"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/dispatch"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/extract"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/lock"
)

// approval scores the application, then asks a human below 700.
func approval(t *testing.T) *agentrouter.CompiledWorkflow {
	t.Helper()
	compiled, err := agentrouter.NewWorkflow("approval").
		AddWorker("scorer", agent.Static("scorer", "credit score: ${requested_score}")).
		AddGate("manual_approver", "Approve the application now?").
		AddWorker("final_decision", agent.Static("final_decision", "done")).
		AddExtractor(extract.CreditScore()).
		SetDispatcher(dispatch.MustRules(
			dispatch.Rule{When: "last_worker == 'final_decision'", Next: agentrouter.FinishToken},
			dispatch.Rule{When: "credit_score missing", Next: "scorer"},
			dispatch.Rule{When: "credit_score > 700", Next: "final_decision"},
			dispatch.Rule{When: "approved exists", Next: "final_decision"},
			dispatch.Rule{Next: "manual_approver"},
		)).
		Compile()
	require.NoError(t, err)
	return compiled
}

func loop(t *testing.T) *agentrouter.CompiledWorkflow {
	t.Helper()
	compiled, err := agentrouter.NewWorkflow("loop").
		AddWorker("again", agent.Static("again", "once more")).
		SetDispatcher(dispatch.MustRules(dispatch.Rule{Next: "again"})).
		SetMaxIterations(3).
		Compile()
	require.NoError(t, err)
	return compiled
}

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt := New(checkpoint.NewMemoryStore(), opts...)
	require.NoError(t, rt.Register(approval(t)))
	require.NoError(t, rt.Register(loop(t)))
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestRuntime_Workflows(t *testing.T) {
	rt := newRuntime(t)
	assert.Equal(t, []string{"approval", "loop"}, rt.Workflows())
	assert.Error(t, rt.Register(loop(t)), "duplicate names are rejected")
}

func TestRuntime_StartFinishes(t *testing.T) {
	rt := newRuntime(t)

	snap, err := rt.Start(t.Context(), "approval", Seed{
		Content: "Process application APP1",
		Fields:  map[string]any{"requested_score": 720},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, snap.WorkflowID, "an id is generated")
	assert.Equal(t, agentrouter.StatusDone, snap.Status)
	assert.Equal(t, 720, snap.Fields["credit_score"])
	assert.Len(t, snap.Log, 3)
	assert.Equal(t, 2, snap.Iterations)

	status, err := rt.Status(t.Context(), snap.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, status.Status)
	assert.Len(t, status.Log, 3)
}

func TestRuntime_GateAndResume(t *testing.T) {
	rt := newRuntime(t)
	ctx := t.Context()

	snap, err := rt.Start(ctx, "approval", Seed{
		Content:    "Process application APP2",
		Fields:     map[string]any{"requested_score": 640},
		WorkflowID: "app-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "app-2", snap.WorkflowID)
	assert.Equal(t, agentrouter.StatusAwaitingInput, snap.Status)
	require.NotNil(t, snap.Interrupt)
	assert.Equal(t, "Approve the application now?", snap.Interrupt.Prompt)

	snap, err = rt.Resume(ctx, "app-2", map[string]any{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, snap.Status)
	assert.Nil(t, snap.Interrupt)
	assert.Equal(t, true, snap.Fields["approved"])

	_, err = rt.Resume(ctx, "app-2", map[string]any{"approved": true})
	assert.ErrorIs(t, err, ErrNotAwaitingInput)
}

func TestRuntime_Errors(t *testing.T) {
	rt := newRuntime(t)
	ctx := t.Context()

	_, err := rt.Start(ctx, "missing", Seed{Content: "hi"})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = rt.Start(ctx, "approval", Seed{Content: "  "})
	assert.ErrorIs(t, err, agentrouter.ErrEmptySeed)

	_, err = rt.Resume(ctx, "nope", "yes")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	_, err = rt.Status(ctx, "nope")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	_, err = rt.Start(ctx, "approval", Seed{Content: "a", WorkflowID: "dup", Fields: map[string]any{"requested_score": 800}})
	require.NoError(t, err)
	_, err = rt.Start(ctx, "approval", Seed{Content: "b", WorkflowID: "dup"})
	assert.ErrorIs(t, err, ErrRunExists)
}

func TestRuntime_FailedRunKeepsSnapshot(t *testing.T) {
	rt := newRuntime(t)

	snap, err := rt.Start(t.Context(), "loop", Seed{Content: "spin", WorkflowID: "spin-1"})

	var limitErr *agentrouter.RecursionLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, agentrouter.StatusError, snap.Status)
	assert.Equal(t, 3, snap.Iterations)
	assert.NotEmpty(t, snap.Error)

	status, err := rt.Status(t.Context(), "spin-1")
	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusError, status.Status)

	_, err = rt.Resume(t.Context(), "spin-1", "continue")
	assert.ErrorIs(t, err, ErrNotAwaitingInput)
}

func TestRuntime_MaxIterationsOverride(t *testing.T) {
	rt := newRuntime(t, WithMaxIterations(1))

	snap, err := rt.Start(t.Context(), "loop", Seed{Content: "spin"})

	require.Error(t, err)
	assert.Equal(t, 1, snap.Iterations)
}

func TestRuntime_ConcurrentResumeOnlyOneWins(t *testing.T) {
	rt := newRuntime(t)
	ctx := t.Context()

	_, err := rt.Start(ctx, "approval", Seed{Content: "apply", WorkflowID: "race", Fields: map[string]any{"requested_score": 500}})
	require.NoError(t, err)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = rt.Resume(ctx, "race", map[string]any{"approved": true})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNotAwaitingInput):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)

	snap, err := rt.Status(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, snap.Status)
	assert.Len(t, snap.Log, 4, "the payload is appended once")
}

func TestRuntime_IndependentRuns(t *testing.T) {
	rt := newRuntime(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			score := 650 + i*10
			snap, err := rt.Start(context.Background(), "approval", Seed{Content: "apply", Fields: map[string]any{"requested_score": score}})
			assert.NoError(t, err)
			assert.Equal(t, score, snap.Fields["credit_score"])
		}()
	}
	wg.Wait()

	runs, err := rt.Runs(t.Context())
	require.NoError(t, err)
	assert.Len(t, runs, 10)
}

func TestRuntime_WithRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rt := newRuntime(t, WithLocker(lock.NewRedisLocker(client)))

	snap, err := rt.Start(t.Context(), "approval", Seed{Content: "apply", WorkflowID: "locked", Fields: map[string]any{"requested_score": 710}})

	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, snap.Status)
	assert.False(t, mr.Exists("agentrouter:lock:locked"), "lock released after the run")
}

func TestRuntime_LockHeldThroughLongRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	const key = "agentrouter:lock:slow"
	var ttls []time.Duration
	slow := agentrouter.WorkerFunc(func(ctx agentrouter.Context, s agentrouter.State) (agentrouter.Message, error) {
		ttls = append(ttls, mr.TTL(key))
		// Longer than the lock TTL in store time; the holder keeps refreshing.
		mr.FastForward(400 * time.Millisecond)
		time.Sleep(300 * time.Millisecond)
		ttls = append(ttls, mr.TTL(key))
		return agentrouter.AssistantMessage("slow done"), nil
	})
	compiled, err := agentrouter.NewWorkflow("slow").
		AddWorker("slow", slow).
		SetDispatcher(dispatch.MustRules(
			dispatch.Rule{When: "last_worker == 'slow'", Next: agentrouter.FinishToken},
			dispatch.Rule{Next: "slow"},
		)).
		Compile()
	require.NoError(t, err)

	rt := New(checkpoint.NewMemoryStore(),
		WithLocker(lock.NewRedisLocker(client)),
		WithLockTTL(500*time.Millisecond))
	require.NoError(t, rt.Register(compiled))
	t.Cleanup(func() { _ = rt.Close() })

	snap, err := rt.Start(t.Context(), "slow", Seed{Content: "go", WorkflowID: "slow"})

	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, snap.Status)
	require.Len(t, ttls, 2)
	assert.Equal(t, 500*time.Millisecond, ttls[0])
	assert.Greater(t, ttls[1], 100*time.Millisecond, "lock refreshed while the worker ran")
	assert.False(t, mr.Exists(key))
}

// flakyStore fails only the save numbered failAt.
type flakyStore struct {
	*checkpoint.MemoryStore
	mu     sync.Mutex
	saves  int
	failAt int
}

func (s *flakyStore) Save(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	s.saves++
	fail := s.saves == s.failAt
	s.mu.Unlock()
	if fail {
		return errors.New("store unavailable")
	}
	return s.MemoryStore.Save(ctx, id, data)
}

func TestRuntime_StartRetryAfterSuspendSaveFailure(t *testing.T) {
	// Save 1 is the scorer step, save 2 parks at the gate.
	rt := New(&flakyStore{MemoryStore: checkpoint.NewMemoryStore(), failAt: 2})
	require.NoError(t, rt.Register(approval(t)))
	seed := Seed{Content: "apply", WorkflowID: "app-1", Fields: map[string]any{"requested_score": 650}}

	snap, err := rt.Start(t.Context(), "approval", seed)
	var cpErr *agentrouter.CheckpointError
	require.True(t, errors.As(err, &cpErr))
	assert.Equal(t, agentrouter.StatusError, snap.Status)

	snap, err = rt.Start(t.Context(), "approval", seed)
	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusAwaitingInput, snap.Status)

	snap, err = rt.Resume(t.Context(), "app-1", map[string]any{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, snap.Status)
}
