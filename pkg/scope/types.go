package scope

// NA marks a level of the hierarchy that does not apply to a record.
const NA = "N/A"

// DefaultResearchInstitute is the institute name shared by the research wing
// of every research-enabled college.
const DefaultResearchInstitute = "SRM RESEARCH"

// Institute groups departments inside a college
type Institute struct {
	Name        string   `yaml:"name" json:"name"`
	Departments []string `yaml:"departments" json:"departments"`
}

// College is the top level of the hierarchy. A college either has
// institutes (each with departments) or a flat list of departments.
type College struct {
	Name            string      `yaml:"name" json:"name"`
	ShortName       string      `yaml:"short_name,omitempty" json:"short_name,omitempty"`
	Domain          string      `yaml:"domain,omitempty" json:"domain,omitempty"`
	HasInstitutes   bool        `yaml:"has_institutes" json:"has_institutes"`
	Institutes      []Institute `yaml:"institutes,omitempty" json:"institutes,omitempty"`
	Departments     []string    `yaml:"departments,omitempty" json:"departments,omitempty"`
	ResearchEnabled bool        `yaml:"research_enabled,omitempty" json:"research_enabled,omitempty"`
	ResearchDomains []string    `yaml:"research_domains,omitempty" json:"research_domains,omitempty"`
}

// Definition is the on-disk shape of a hierarchy file
type Definition struct {
	Version  string `yaml:"version"`
	Research struct {
		Institute string `yaml:"institute"`
	} `yaml:"research"`
	Colleges []College `yaml:"colleges"`
}
