// Package dispatch provides the two stock dispatchers.
//
// LLM asks a completion model to act as supervisor: it is shown the whole
// conversation and the member names and answers with the next one or
// FINISH. Rules evaluates an ordered list of conditions over the extracted
// fields and routes to the first match, which makes routing deterministic
// and testable without a model.
//
//	rules := dispatch.MustRules(
//	    dispatch.Rule{When: "last_worker == 'final_decision'", Next: agentrouter.FinishToken},
//	    dispatch.Rule{When: "credit_score missing", Next: "credit_score_checker"},
//	    dispatch.Rule{When: "credit_score > 700", Next: "final_decision"},
//	    dispatch.Rule{Next: "manual_approver"},
//	)
package dispatch
