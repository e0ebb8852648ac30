package scope

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	h := Default()
	require.NotNil(t, h)

	assert.Same(t, h, Default())
	assert.Equal(t, "SRM RESEARCH", h.ResearchInstitute())
	assert.Equal(t, "srmist.edu.in", h.DomainOf("SRMIST RAMAPURAM"))
	assert.Equal(t, "Ramapuram Research", h.ResearchDepartment("SRMIST RAMAPURAM"))
	assert.Equal(t, "Trichy Research", h.ResearchDepartment("SRM TRICHY"))
	assert.Len(t, h.ResearchDomains(), 4)

	for _, c := range h.Colleges() {
		if !h.HasInstitutes(c) {
			assert.Equal(t, []string{NA}, h.InstitutesOf(c), c)
		}
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
version: "1"
colleges:
  - name: FLAT
    domain: flat.edu
    departments: [A, B]
`)

	h, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{NA, "FLAT"}, h.Colleges())
	assert.Equal(t, []string{"A", "B"}, h.DepartmentsOf("FLAT", NA))
	assert.Equal(t, DefaultResearchInstitute, h.ResearchInstitute())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("colleges: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse hierarchy")

	_, err = Parse([]byte("version: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no colleges")
}

func TestLoad(t *testing.T) {
	h, err := Load("")
	require.NoError(t, err)
	assert.Same(t, Default(), h)

	path := filepath.Join(t.TempDir(), "hierarchy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("colleges:\n  - name: ONE\n"), 0o600))

	h, err = Load(path)
	require.NoError(t, err)
	assert.True(t, h.Known("ONE"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read hierarchy file")
}
