package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/agent"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/dispatch"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/extract"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/tool"
)

const creditSeed = "Process application APP1 for customer C1, amount 5000"

func creditWorkflow(t *testing.T, score int) *agentrouter.CompiledWorkflow {
	t.Helper()

	bureau := tool.Func("credit_bureau", "Look up an applicant's credit score", nil,
		func(ctx context.Context, args struct {
			Applicant string `json:"applicant"`
		}) (any, error) {
			return map[string]any{"credit_score": score, "applicant": args.Applicant}, nil
		})

	compiled, err := agentrouter.NewWorkflow("credit_approval").
		AddWorker("credit_score_checker", agent.ToolWorker("credit_score_checker", bureau,
			agent.WithArgs(map[string]any{"applicant": "${application_id}"}),
			agent.WithContent("Credit score: ${credit_score} for ${applicant}"))).
		AddWorker("background_checker", agent.Static("background_checker", "Background check clear.")).
		AddWorker("final_decision", agent.Static("final_decision", "Decision recorded for score ${credit_score}.")).
		AddExtractor(extract.CreditScore()).
		AddExtractor(extract.MustRegex("application_id", `application\s+(\w+)`, extract.KindString)).
		AddExtractor(extract.MustRegex("customer_id", `customer\s+(\w+)`, extract.KindString)).
		AddExtractor(extract.MustRegex("amount", `amount\s+(\d+(?:\.\d+)?)`, extract.KindFloat)).
		SetDispatcher(dispatch.MustRules(
			dispatch.Rule{When: "last_worker == 'final_decision'", Next: agentrouter.FinishToken},
			dispatch.Rule{When: "credit_score missing", Next: "credit_score_checker"},
			dispatch.Rule{When: "credit_score > 700", Next: "final_decision"},
			dispatch.Rule{When: "not visited_background_checker", Next: "background_checker"},
			dispatch.Rule{Next: "final_decision"},
		)).
		Compile()
	require.NoError(t, err)
	return compiled
}

func authors(s agentrouter.State) []string {
	var out []string
	for _, m := range s.Log.Messages() {
		if m.AuthorName != "" {
			out = append(out, m.AuthorName)
		}
	}
	return out
}

func TestCreditApproval_HighScore(t *testing.T) {
	state, err := creditWorkflow(t, 720).Run(agentrouter.NewContext(t.Context()), agentrouter.UserMessage(creditSeed))

	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, state.Status)
	assert.Equal(t, []string{"credit_score_checker", "final_decision"}, authors(state))
	assert.Equal(t, 720, state.Fields["credit_score"])
	assert.Equal(t, "APP1", state.Fields["application_id"])
	assert.Equal(t, "C1", state.Fields["customer_id"])
	assert.Equal(t, 5000.0, state.Fields["amount"])

	checker := state.Log.Messages()[1]
	assert.Equal(t, "Credit score: 720 for APP1", checker.Content)

	last, _ := state.Log.Last()
	assert.Equal(t, "Decision recorded for score 720.", last.Content)
}

func TestCreditApproval_LowScore(t *testing.T) {
	state, err := creditWorkflow(t, 550).Run(agentrouter.NewContext(t.Context()), agentrouter.UserMessage(creditSeed))

	require.NoError(t, err)
	assert.Equal(t, agentrouter.StatusDone, state.Status)
	assert.Equal(t, []string{"credit_score_checker", "background_checker", "final_decision"}, authors(state))
	assert.Equal(t, 3, state.Iterations)
}
