package scope

import (
	"fmt"
	"strings"
)

// Hierarchy answers structural queries against the college tree
type Hierarchy struct {
	version           string
	researchInstitute string
	colleges          []College
	byName            map[string]int
}

// New validates a definition and builds an immutable hierarchy from it
func New(def Definition) (*Hierarchy, error) {
	h := &Hierarchy{
		version:           def.Version,
		researchInstitute: strings.TrimSpace(def.Research.Institute),
		byName:            make(map[string]int, len(def.Colleges)+1),
	}
	if h.researchInstitute == "" {
		h.researchInstitute = DefaultResearchInstitute
	}

	hasNA := false
	for _, c := range def.Colleges {
		if c.Name == NA {
			hasNA = true
			break
		}
	}
	if !hasNA {
		h.add(College{Name: NA})
	}

	for i, c := range def.Colleges {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("colleges[%d]: name is required", i)
		}
		if _, dup := h.byName[c.Name]; dup {
			return nil, fmt.Errorf("colleges[%d]: duplicate college %q", i, c.Name)
		}
		if err := validateCollege(c, h.researchInstitute); err != nil {
			return nil, fmt.Errorf("college %q: %w", c.Name, err)
		}
		h.add(c)
	}

	return h, nil
}

func validateCollege(c College, researchInstitute string) error {
	if c.HasInstitutes && len(c.Institutes) == 0 {
		return fmt.Errorf("has_institutes is set but no institutes are listed")
	}
	if !c.HasInstitutes && len(c.Institutes) > 0 {
		return fmt.Errorf("institutes are listed but has_institutes is not set")
	}
	if c.HasInstitutes && len(c.Departments) > 0 {
		return fmt.Errorf("flat departments are not allowed when the college has institutes")
	}

	seen := make(map[string]bool, len(c.Institutes))
	for _, inst := range c.Institutes {
		if inst.Name == "" || inst.Name == NA {
			return fmt.Errorf("institute name %q is not allowed", inst.Name)
		}
		if seen[inst.Name] {
			return fmt.Errorf("duplicate institute %q", inst.Name)
		}
		seen[inst.Name] = true
	}

	if c.ResearchEnabled {
		if c.ShortName == "" {
			return fmt.Errorf("research-enabled college needs a short_name")
		}
		if !seen[researchInstitute] {
			return fmt.Errorf("research-enabled college must list the %q institute", researchInstitute)
		}
	}
	return nil
}

func (h *Hierarchy) add(c College) {
	h.byName[c.Name] = len(h.colleges)
	h.colleges = append(h.colleges, c)
}

func (h *Hierarchy) lookup(name string) (*College, bool) {
	if h == nil {
		return nil, false
	}
	i, ok := h.byName[name]
	if !ok {
		return nil, false
	}
	return &h.colleges[i], true
}

// Version returns the version string of the loaded definition
func (h *Hierarchy) Version() string {
	if h == nil {
		return ""
	}
	return h.version
}

// ResearchInstitute returns the sentinel institute name of the research wing
func (h *Hierarchy) ResearchInstitute() string {
	if h == nil {
		return DefaultResearchInstitute
	}
	return h.researchInstitute
}

// Colleges returns every college name in definition order, N/A included
func (h *Hierarchy) Colleges() []string {
	if h == nil {
		return []string{NA}
	}
	names := make([]string, 0, len(h.colleges))
	for _, c := range h.colleges {
		names = append(names, c.Name)
	}
	return names
}

// SelectableColleges returns the colleges a new user can be placed in
func (h *Hierarchy) SelectableColleges() []string {
	names := h.Colleges()
	out := names[:0]
	for _, n := range names {
		if n != NA {
			out = append(out, n)
		}
	}
	return out
}

// College returns a copy of the named college
func (h *Hierarchy) College(name string) (College, bool) {
	c, ok := h.lookup(name)
	if !ok {
		return College{}, false
	}
	return *c, true
}

// Known reports whether the college exists in the hierarchy
func (h *Hierarchy) Known(college string) bool {
	_, ok := h.lookup(college)
	return ok
}

// HasInstitutes reports whether the college is split into institutes.
// Unknown colleges have none.
func (h *Hierarchy) HasInstitutes(college string) bool {
	c, ok := h.lookup(college)
	return ok && c.HasInstitutes
}

// InstitutesOf lists the institutes of a college, or ["N/A"] when it has none
func (h *Hierarchy) InstitutesOf(college string) []string {
	c, ok := h.lookup(college)
	if !ok || !c.HasInstitutes {
		return []string{NA}
	}
	names := make([]string, 0, len(c.Institutes))
	for _, inst := range c.Institutes {
		names = append(names, inst.Name)
	}
	return names
}

// DepartmentsOf lists the departments under a college/institute pair. The
// institute is ignored for colleges without institutes.
func (h *Hierarchy) DepartmentsOf(college, institute string) []string {
	c, ok := h.lookup(college)
	if !ok {
		return []string{NA}
	}

	var depts []string
	if !c.HasInstitutes {
		depts = c.Departments
	} else {
		for _, inst := range c.Institutes {
			if inst.Name == institute {
				depts = inst.Departments
				break
			}
		}
	}

	if len(depts) == 0 {
		return []string{NA}
	}
	return append([]string(nil), depts...)
}

// ContainsDepartment reports whether dept is a department of the pair
func (h *Hierarchy) ContainsDepartment(college, institute, dept string) bool {
	for _, d := range h.DepartmentsOf(college, institute) {
		if d == dept {
			return true
		}
	}
	return false
}

// IsResearchEnabled reports whether the college hosts the research institute
func (h *Hierarchy) IsResearchEnabled(college string) bool {
	c, ok := h.lookup(college)
	return ok && c.ResearchEnabled
}

// IsResearch reports whether the pair denotes the research wing of a
// research-enabled college
func (h *Hierarchy) IsResearch(college, institute string) bool {
	return institute == h.ResearchInstitute() && h.IsResearchEnabled(college)
}

// ResearchDepartment returns the fixed department name of a research-enabled
// college ("<ShortName> Research"), or "" for any other college.
func (h *Hierarchy) ResearchDepartment(college string) string {
	c, ok := h.lookup(college)
	if !ok || !c.ResearchEnabled {
		return ""
	}
	return c.ShortName + " Research"
}

// DomainOf returns the email domain tied to a college, "" if none
func (h *Hierarchy) DomainOf(college string) string {
	c, ok := h.lookup(college)
	if !ok {
		return ""
	}
	return strings.ToLower(c.Domain)
}

// ResearchDomains returns the union of research domains across all
// research-enabled colleges, in definition order without duplicates.
func (h *Hierarchy) ResearchDomains() []string {
	if h == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, c := range h.colleges {
		if !c.ResearchEnabled {
			continue
		}
		for _, d := range c.ResearchDomains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" || seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
