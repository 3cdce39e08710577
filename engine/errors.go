package engine

import "fmt"

// ToolsWithFanOutError reports a request combining active tools with more
// than one completion. Multi-completion fan-out plus autonomous tool use
// would branch combinatorially, so the combination is rejected before any
// provider call.
type ToolsWithFanOutError struct {
	N int
}

func (e *ToolsWithFanOutError) Error() string {
	return fmt.Sprintf("tools require exactly one completion, got n=%d", e.N)
}

// ToolLoopLimitError reports a tool loop that reached its iteration budget.
// Nodes persisted before the limit remain valid conversation history.
type ToolLoopLimitError struct {
	Limit int
}

func (e *ToolLoopLimitError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d iterations", e.Limit)
}

// AbortError is the terminal condition of an aborted generation. It is not a
// vendor or tool failure: work persisted before the abort was observed
// remains valid.
type AbortError struct {
	Reason string
	Cause  error
}

func (e *AbortError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("generation aborted: %s", e.Reason)
	}
	return "generation aborted"
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}
