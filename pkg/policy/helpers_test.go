package policy

import (
	"testing"

	"github.com/researchportal/pubportal/pkg/scope"
	"github.com/stretchr/testify/require"
)

const (
	ramapuram = "SRMIST RAMAPURAM"
	trichy    = "SRM TRICHY"
	easwari   = "EASWARI ENGINEERING COLLEGE"
	research  = "SRM RESEARCH"
	engg      = "Engineering and Technology"
)

func defaultEngine() *Engine {
	return NewEngine(scope.Default())
}

// flatEngine has one college split into institutes and one without
func flatEngine(t *testing.T) *Engine {
	t.Helper()
	h, err := scope.New(scope.Definition{
		Colleges: []scope.College{
			{Name: "SPLIT", HasInstitutes: true, Institutes: []scope.Institute{
				{Name: "I1", Departments: []string{"D1"}},
				{Name: "I2", Departments: []string{"D2"}},
			}},
			{Name: "FLAT", Departments: []string{"F1"}},
		},
	})
	require.NoError(t, err)
	return NewEngine(h)
}
