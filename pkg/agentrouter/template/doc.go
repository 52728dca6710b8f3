/*
Package template expands ${field} placeholders in worker instructions, tool
argument mappings and response templates.

Variables usually come from a workflow's extracted fields, so a worker
instruction can mention values earlier workers produced:

	instr := template.Expand("The applicant's credit score is ${credit_score}.", state.Fields)

# Placeholders

	${name}            value of name
	${result.score}    nested lookup through map[string]any values
	${name:-unknown}   fallback text when name is missing

$name without braces is off by default because prompts routinely contain
dollar amounts and shell snippets. Enable it with WithDollarStyle(true).

# Missing variables

Missing variables without a fallback are kept as written. Change that with
WithMissingAction:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	_, err := exp.Expand("score ${credit_score}", nil)
	// err: undefined variable: credit_score

# Tool arguments

ExpandArgs builds a tool's argument object from a declared mapping. A value
that is exactly one placeholder keeps the variable's type, so numbers stay
numbers in the JSON sent to the tool:

	args, _ := exp.ExpandArgs(map[string]any{
	    "customer_id": "${customer_id}",
	    "amount":      "${amount}",
	    "note":        "loan for ${customer_id}",
	}, fields)

Expander is safe for concurrent use after construction.
*/
package template
