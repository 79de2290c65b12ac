package evaluator

// DefaultMaxCallDepth bounds lambda call nesting when Options leaves it unset.
const DefaultMaxCallDepth = 10000

// Budget holds the resource limits for an evaluation session.
// A zero MaxIterations means loops are unbounded.
type Budget struct {
	MaxCallDepth  int
	MaxIterations int64
}

// BudgetTracker tracks resource consumption during evaluation.
type BudgetTracker struct {
	Depth      int
	Iterations int64
	Calls      int64
}
