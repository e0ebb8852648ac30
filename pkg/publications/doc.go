// Package publications stores journal papers, conference papers and book
// chapters.
//
// A publication is owned by the faculty member whose faculty id it carries.
// Its college, institute and department are copied from the owner when it is
// created and never change afterwards. Visibility and the edit, delete and
// bulk-select affordances of each row come from the policy engine.
package publications
