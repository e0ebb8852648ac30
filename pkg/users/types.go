package users

import (
	"strings"
	"time"

	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/policy"
)

// MaxBulkRows caps one bulk upload
const MaxBulkRows = 500

// User is a stored portal account
type User struct {
	ID           int64            `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	Phone        string           `json:"phone,omitempty"`
	Role         policy.Role      `json:"role"`
	College      string           `json:"college"`
	Institute    string           `json:"institute"`
	Department   string           `json:"department"`
	FacultyID    string           `json:"faculty_id,omitempty"`
	AuthorIDs    policy.AuthorIDs `json:"author_ids"`
	PasswordHash string           `json:"-"`
	CreatedBy    *int64           `json:"created_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Target returns the policy view of u
func (u *User) Target() policy.TargetUser {
	return policy.TargetUser{
		ID:         u.ID,
		Role:       u.Role,
		College:    u.College,
		Institute:  u.Institute,
		Department: u.Department,
		FacultyID:  u.FacultyID,
		Email:      u.Email,
	}
}

// Actor returns u as a policy actor
func (u *User) Actor() policy.Actor {
	return policy.Actor{
		UserID:     u.ID,
		Role:       u.Role,
		College:    u.College,
		Institute:  u.Institute,
		Department: u.Department,
		FacultyID:  u.FacultyID,
		Email:      u.Email,
	}
}

// Account returns the login view of u
func (u *User) Account() *auth.Account {
	return &auth.Account{
		ID:           u.ID,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Actor:        u.Actor(),
		AuthorIDs:    u.AuthorIDs,
	}
}

// Draft is a user to be created, as submitted by an administrator
type Draft struct {
	Email      string      `json:"email" validate:"required,email,max=254"`
	Password   string      `json:"password" validate:"required,min=8,max=128"`
	Name       string      `json:"name" validate:"required,max=255"`
	Phone      string      `json:"phone" validate:"omitempty,max=32"`
	Role       policy.Role `json:"role" validate:"required,role"`
	College    string      `json:"college" validate:"omitempty,max=255"`
	Institute  string      `json:"institute" validate:"omitempty,max=255"`
	Department string      `json:"department" validate:"omitempty,max=255"`
	FacultyID  string      `json:"faculty_id" validate:"omitempty,max=64,author_id"`
}

func (d *Draft) normalize() {
	d.Email = normalizeEmail(d.Email)
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	d.FacultyID = strings.TrimSpace(d.FacultyID)
	d.Role = policy.Role(strings.ToLower(strings.TrimSpace(string(d.Role))))
}

func (d *Draft) selection() policy.Selection {
	return policy.Selection{College: d.College, Institute: d.Institute, Department: d.Department}
}

// Patch is a partial update made by an administrator. Nil fields are left
// unchanged.
type Patch struct {
	Email      *string      `json:"email" validate:"omitempty,email,max=254"`
	Name       *string      `json:"name" validate:"omitempty,min=1,max=255"`
	Phone      *string      `json:"phone" validate:"omitempty,max=32"`
	Role       *policy.Role `json:"role" validate:"omitempty,role"`
	College    *string      `json:"college" validate:"omitempty,max=255"`
	Institute  *string      `json:"institute" validate:"omitempty,max=255"`
	Department *string      `json:"department" validate:"omitempty,max=255"`
	FacultyID  *string      `json:"faculty_id" validate:"omitempty,max=64,author_id"`
	Password   *string      `json:"password" validate:"omitempty,min=8,max=128"`
}

// touchesScope reports whether the patch changes role or placement
func (p *Patch) touchesScope() bool {
	return p.Role != nil || p.College != nil || p.Institute != nil || p.Department != nil
}

// SettingsUpdate is what users change about themselves
type SettingsUpdate struct {
	Name      *string           `json:"name" validate:"omitempty,min=1,max=255"`
	Phone     *string           `json:"phone" validate:"omitempty,max=32"`
	AuthorIDs *AuthorIDsRequest `json:"author_ids"`
}

// AuthorIDsRequest carries the three external author identifiers
type AuthorIDsRequest struct {
	Scopus       string `json:"scopus" validate:"max=64,author_id"`
	SCI          string `json:"sci" validate:"max=64,author_id"`
	WebOfScience string `json:"web_of_science" validate:"max=64,author_id"`
}

func (a AuthorIDsRequest) toPolicy() policy.AuthorIDs {
	return policy.AuthorIDs{
		Scopus:       strings.TrimSpace(a.Scopus),
		SCI:          strings.TrimSpace(a.SCI),
		WebOfScience: strings.TrimSpace(a.WebOfScience),
	}
}

// PasswordChange is the body of PUT /me/password
type PasswordChange struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// ListQuery narrows a user listing inside the actor's visibility scope
type ListQuery struct {
	Search     string
	Role       policy.Role
	College    string
	Institute  string
	Department string
	Limit      int
	Offset     int
}

// Row is one user in a listing together with what the actor may do to it
type Row struct {
	User
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// ListResult is one page of users
type ListResult struct {
	Users  []Row `json:"users"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// BulkRowResult reports the outcome of one bulk row. Row is 1-based.
type BulkRowResult struct {
	Row    int               `json:"row"`
	Email  string            `json:"email"`
	ID     int64             `json:"id,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// BulkResult summarizes a bulk upload
type BulkResult struct {
	Created int             `json:"created"`
	Failed  int             `json:"failed"`
	Rows    []BulkRowResult `json:"rows"`
}

// UniquenessQuery is the body of POST /users/uniqueness. OriginalID names the
// record being edited, if any.
type UniquenessQuery struct {
	Email      string `json:"email"`
	FacultyID  string `json:"faculty_id"`
	OriginalID int64  `json:"original_id"`
}

// UniquenessResult reports which values are already taken
type UniquenessResult struct {
	EmailTaken     bool              `json:"email_taken"`
	FacultyIDTaken bool              `json:"faculty_id_taken"`
	Fields         map[string]string `json:"fields,omitempty"`
}

// FormResponse is the create-user form for one role and selection
type FormResponse struct {
	policy.Form
	CreatableRoles []policy.Role `json:"creatable_roles"`
	DomainHints    []string      `json:"domain_hints"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
