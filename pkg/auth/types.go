package auth

import (
	"context"

	"github.com/researchportal/pubportal/pkg/contextkeys"
	"github.com/researchportal/pubportal/pkg/policy"
)

// AuthContext holds the authenticated caller for one request
type AuthContext struct {
	Actor  policy.Actor
	Claims *Claims
}

// HasRole reports whether the caller holds one of roles
func (ac *AuthContext) HasRole(roles ...policy.Role) bool {
	if ac == nil {
		return false
	}
	for _, r := range roles {
		if ac.Actor.Role == r {
			return true
		}
	}
	return false
}

// WithAuthContext stores ac in ctx
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return contextkeys.WithAuth(ctx, ac)
}

// FromContext returns the AuthContext stored in ctx, or nil
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return ac
}

// Account is the login view of a user record
type Account struct {
	ID           int64
	Name         string
	PasswordHash string
	Actor        policy.Actor
	AuthorIDs    policy.AuthorIDs
}

// AccountStore looks up accounts for login. Implementations return
// storage.ErrNotFound for unknown users.
type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByID(ctx context.Context, id int64) (*Account, error)
}

// Profile is the public shape of the signed-in user
type Profile struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Role       policy.Role      `json:"role"`
	College    string           `json:"college"`
	Institute  string           `json:"institute"`
	Department string           `json:"department"`
	FacultyID  string           `json:"faculty_id,omitempty"`
	AuthorIDs  policy.AuthorIDs `json:"author_ids"`

	CreatableRoles []policy.Role      `json:"creatable_roles"`
	Upload         policy.Eligibility `json:"upload"`
}

// NewProfile builds the profile of an account
func NewProfile(a *Account) Profile {
	return Profile{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Actor.Email,
		Role:           a.Actor.Role,
		College:        a.Actor.College,
		Institute:      a.Actor.Institute,
		Department:     a.Actor.Department,
		FacultyID:      a.Actor.FacultyID,
		AuthorIDs:      a.AuthorIDs,
		CreatableRoles: policy.CreatableRoles(a.Actor),
		Upload:         policy.UploadEligibility(a.Actor, a.AuthorIDs),
	}
}
