package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchportal/pubportal/pkg/policy"
)

type sample struct {
	Email    string      `json:"email" validate:"required,email"`
	Role     policy.Role `json:"role" validate:"required,role"`
	College  string      `json:"college" validate:"notna"`
	Scopus   string      `json:"scopus" validate:"omitempty,author_id"`
	Password string      `json:"password" validate:"omitempty,min=8"`
	Nested   nested      `json:"nested"`
}

type nested struct {
	Year int `json:"year" validate:"gte=1900,lte=2100"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(sample{
		Email:   "a@srmist.edu.in",
		Role:    policy.RoleFaculty,
		College: "EASWARI ENGINEERING COLLEGE",
		Scopus:  "57200-1",
		Nested:  nested{Year: 2024},
	})
	assert.NoError(t, err)
}

func TestStruct_FieldErrors(t *testing.T) {
	err := Struct(sample{
		Email:    "not-an-email",
		Role:     "dean",
		College:  "N/A",
		Scopus:   "has space",
		Password: "short",
		Nested:   nested{Year: 1800},
	})

	var verr *policy.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "must be a valid role", verr.Fields["role"])
	assert.Equal(t, "is required", verr.Fields["college"])
	assert.Equal(t, "must not contain spaces or symbols", verr.Fields["scopus"])
	assert.Equal(t, "must be at least 8 characters", verr.Fields["password"])
	assert.Contains(t, verr.Fields, "nested.year")
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
