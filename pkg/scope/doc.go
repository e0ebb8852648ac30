// Package scope holds the institutional hierarchy used by the portal:
// colleges, their institutes and departments, the email domain of each
// college and the research institute that spans the research-enabled colleges.
//
// The hierarchy is static reference data. It is loaded once at startup from a
// YAML file (or the embedded default) and never mutated afterwards, so a
// *Hierarchy can be shared freely between goroutines.
//
// Every lookup is total. Unknown colleges or institutes degrade to the
// single-element list ["N/A"] instead of returning an error:
//
//	h := scope.Default()
//	h.InstitutesOf("EASWARI ENGINEERING COLLEGE")  // ["N/A"]
//	h.DepartmentsOf("SRMIST RAMAPURAM", "Management") // ["Business Administration"]
//	h.DepartmentsOf("NOWHERE", "X")                // ["N/A"]
package scope
