// Package validation checks request payloads against their struct tags.
//
// Payload structs declare their rules with go-playground/validator tags:
//
//	type Draft struct {
//		Email string      `json:"email" validate:"required,email,max=254"`
//		Role  policy.Role `json:"role" validate:"required,role"`
//	}
//
// Struct returns a *policy.ValidationError keyed by the json field name, so
// tag failures and policy failures reach the client in the same shape.
//
// Custom tags:
//
//	role       - one of the four portal roles
//	notna      - non-empty and not the "N/A" sentinel
//	author_id  - printable identifier without spaces
package validation
