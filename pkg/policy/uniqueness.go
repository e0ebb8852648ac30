package policy

import (
	"strings"
)

// Snapshot is the set of emails and faculty ids known at some point in time
type Snapshot struct {
	Emails     []string `json:"emails"`
	FacultyIDs []string `json:"faculty_ids"`
}

// Exists reports whether value is in set, ignoring case and surrounding space
func Exists(value string, set []string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), value) {
			return true
		}
	}
	return false
}

// CheckUniqueness flags the candidate's email and faculty id when they already
// appear in snap. In edit mode (original != nil) a value equal to the original
// is never flagged. The result is advisory; the write path decides.
func CheckUniqueness(snap Snapshot, candidate TargetUser, original *TargetUser) error {
	verr := NewValidationError()

	if changed(candidate.Email, original, func(u *TargetUser) string { return u.Email }) &&
		Exists(candidate.Email, snap.Emails) {
		verr.Add("email", "is already registered")
	}
	if changed(candidate.FacultyID, original, func(u *TargetUser) string { return u.FacultyID }) &&
		Exists(candidate.FacultyID, snap.FacultyIDs) {
		verr.Add("faculty_id", "is already registered")
	}

	return verr.OrNil()
}

func changed(value string, original *TargetUser, field func(*TargetUser) string) bool {
	if original == nil {
		return true
	}
	return !strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(field(original)))
}
