package agentrouter

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// scripted replays a drawn list of candidate indexes; -1 finishes.
func scripted(choices []int, snapshots *[]Log) Dispatcher {
	i := 0
	return DispatcherFunc(func(ctx Context, s State, candidates []string) (Decision, error) {
		*snapshots = append(*snapshots, s.Log)
		if i >= len(choices) || choices[i] < 0 {
			return Finish(), nil
		}
		c := choices[i]
		i++
		return Route(candidates[c%len(candidates)]), nil
	})
}

func TestProperty_RunStaysWithinBudget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numWorkers := rapid.IntRange(1, 4).Draw(rt, "numWorkers")
		maxIter := rapid.IntRange(1, 8).Draw(rt, "maxIter")
		choices := rapid.SliceOfN(rapid.IntRange(-1, 10), 0, 12).Draw(rt, "choices")

		names := make([]string, numWorkers)
		wf := NewWorkflow("prop")
		for i := range names {
			names[i] = fmt.Sprintf("w%d", i)
			wf.AddWorker(names[i], static(names[i]))
		}

		var snapshots []Log
		compiled, err := wf.SetDispatcher(scripted(choices, &snapshots)).Compile()
		require.NoError(rt, err)

		state, err := compiled.Run(testCtx(), UserMessage("seed"), WithMaxIterations(maxIter))

		if err != nil {
			var limitErr *RecursionLimitError
			require.True(rt, errors.As(err, &limitErr), "unexpected error: %v", err)
			require.Equal(rt, maxIter, limitErr.Max)
			require.Equal(rt, StatusError, state.Status)
		} else {
			require.Equal(rt, StatusDone, state.Status)
		}

		require.LessOrEqual(rt, state.Iterations, maxIter)
		require.Equal(rt, 1+state.Iterations, state.Log.Len())

		for _, author := range authors(state)[1:] {
			require.True(rt, slices.Contains(names, author), "author %q is not a worker", author)
		}
	})
}

func TestProperty_LogIsAppendOnly(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		choices := rapid.SliceOfN(rapid.IntRange(0, 5), 0, 10).Draw(rt, "choices")

		var snapshots []Log
		compiled, err := NewWorkflow("prop").
			AddWorker("a", static("a")).
			AddWorker("b", makeFailingWorker(errors.New("b failed"))).
			AddWorker("c", makePanicWorker("c panicked")).
			SetDispatcher(scripted(choices, &snapshots)).
			Compile()
		require.NoError(rt, err)

		state, err := compiled.Run(testCtx(), UserMessage("seed"), WithMaxIterations(len(choices)+1))
		require.NoError(rt, err)

		require.NotEmpty(rt, snapshots)
		for i := 1; i < len(snapshots); i++ {
			require.True(rt, snapshots[i].HasPrefix(snapshots[i-1]), "snapshot %d rewrote history", i)
			require.Equal(rt, snapshots[i-1].Len()+1, snapshots[i].Len())
		}
		require.True(rt, state.Log.HasPrefix(snapshots[len(snapshots)-1]))
	})
}

func TestProperty_ParseDecisionMembership(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		candidates := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z][a-z_]{0,8}`), 1, 5, rapid.ID[string],
		).Draw(rt, "candidates")
		raw := rapid.StringMatching(`[a-z_]{1,10}`).Draw(rt, "raw")

		d, err := ParseDecision(raw, candidates)

		switch {
		case slices.Contains(terminalTokens, raw):
			require.NoError(rt, err)
			require.True(rt, d.IsTerminal())
		case slices.Contains(candidates, raw):
			require.NoError(rt, err)
			require.Equal(rt, raw, d.Worker())
		default:
			var cfgErr *ConfigError
			require.True(rt, errors.As(err, &cfgErr))
			require.ErrorIs(rt, err, ErrUnknownWorker)
			require.Equal(rt, raw, cfgErr.Returned)
		}
	})
}
