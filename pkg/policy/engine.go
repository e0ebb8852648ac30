package policy

import (
	"github.com/researchportal/pubportal/pkg/scope"
)

// Engine evaluates hierarchy-dependent rules against one scope hierarchy
type Engine struct {
	hierarchy *scope.Hierarchy
}

// NewEngine creates an engine. A nil hierarchy behaves as an empty one.
func NewEngine(h *scope.Hierarchy) *Engine {
	return &Engine{hierarchy: h}
}

// Hierarchy returns the hierarchy the engine evaluates against
func (e *Engine) Hierarchy() *scope.Hierarchy {
	return e.hierarchy
}

// institutesMatter reports whether the institute takes part in scope
// comparisons for a college. Unknown colleges are compared strictly.
func (e *Engine) institutesMatter(college string) bool {
	if !e.hierarchy.Known(college) {
		return true
	}
	return e.hierarchy.HasInstitutes(college)
}
