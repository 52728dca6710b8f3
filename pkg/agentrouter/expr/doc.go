/*
Package expr evaluates the boolean conditions used by rule-based dispatchers.

A routing rule pairs a condition with the worker to run next. Conditions are
evaluated against a flat variable map built from the workflow's extracted
fields plus a few router-supplied values (last_worker, iterations and so on).

# Syntax

	<expr> := <expr> 'or' <expr>
	        | <expr> 'and' <expr>
	        | 'not' <expr> | '!' <expr>
	        | <ident> 'exists' | <ident> 'missing'
	        | <value> <op> <value>
	        | <value>

	<op>    := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'
	<value> := 'string' | "string" | number | true | false | null | identifier

'or' binds loosest, then 'and', then negation. There are no parentheses.

Equality compares the printed form of both sides, so 720 == 720.0 holds.
Ordering operators compare numerically; a value that isn't a number counts
as zero, which is why missing fields should be guarded with 'exists':

	credit_score exists and credit_score > 700
	credit_score missing
	approved == true
	last_worker == 'final_decision'
	credit_score >= 600 and credit_score <= 700 and not visited_validate_kyc

An identifier that isn't in the variable map resolves to its own name as a
string literal.

# Truthiness

A bare value is true unless it is nil, false, the empty string or a zero
number.

# Custom operators

	e := expr.New(expr.WithCustomOperator("matches", func(l, r any) bool {
	    ok, _ := regexp.MatchString(fmt.Sprint(r), fmt.Sprint(l))
	    return ok
	}))
	ok, err := e.Evaluate("last_error matches 'timeout|refused'", vars)

Use Validate to reject malformed conditions when a workflow is loaded rather
than when the rule first fires.
*/
package expr
