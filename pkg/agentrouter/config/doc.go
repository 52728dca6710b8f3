/*
Package config loads workflow definitions and compiles them into runnable
workflows.

# Definitions

A definition is YAML or JSON naming the dispatcher, the workers, the tools
they share and the field extractors:

	name: credit_approval
	dispatcher:
	  kind: rules
	  rules:
	    - when: credit_score missing
	      next: credit_score_checker
	    - when: credit_score > 700
	      next: final_decision
	workers:
	  - name: credit_score_checker
	    kind: tool
	    tool: check_credit_score
	    args: {customer_id: "${customer_id}"}
	    content: "Credit score: ${credit_score}"
	  - name: final_decision
	    kind: static
	    content: Approved.
	tools:
	  - name: check_credit_score
	    kind: http
	    path: /credit-score/${customer_id}
	extractors:
	  - builtin: credit_score

Load and build it:

	def, err := config.LoadFile("credit_approval.yaml")
	if err != nil {
	    return err
	}
	compiled, err := config.Build(def, config.Deps{
	    ToolBaseURL: "https://credit.internal",
	    ToolToken:   os.Getenv("CREDIT_API_TOKEN"),
	})

Unknown keys are rejected so typos fail at load time rather than
silently changing routing.

# Worker options

Each worker may carry a free-form options block. Config gives typed access
to it with defaults for missing or mistyped values:

	opts := config.New(w.Options)
	rounds := opts.Int("max_tool_rounds", agent.DefaultMaxToolRounds)
	model := opts.String("model", "")

Durations accept "30s" style strings or bare seconds. Int accepts whole
floats, since JSON numbers decode as float64.
*/
package config
