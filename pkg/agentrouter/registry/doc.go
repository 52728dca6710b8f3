// Package registry provides a generic concurrency-safe name lookup.
//
// The runtime keeps compiled workflows in one and the config loader keeps
// tools in another:
//
//	tools := registry.New[string, tool.Tool]()
//	if err := tools.Add("check_credit_score", creditTool); err != nil {
//	    return err // registry.ErrDuplicate
//	}
//	t, ok := tools.Get("check_credit_score")
//
// SortedKeys gives a stable listing for APIs and error messages.
package registry
