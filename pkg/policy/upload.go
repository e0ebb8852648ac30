package policy

// SettingsPath is where a faculty member adds author ids
const SettingsPath = "/settings"

// Eligibility is the result of the upload gate
type Eligibility struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// CanUpload reports whether actor may open the upload flow. Only faculty are
// gated, on having at least one author id.
func CanUpload(actor Actor, ids AuthorIDs) bool {
	if actor.Role != RoleFaculty {
		return true
	}
	return ids.Any()
}

// UploadEligibility is CanUpload with a reason and the page that fixes it
func UploadEligibility(actor Actor, ids AuthorIDs) Eligibility {
	if CanUpload(actor, ids) {
		return Eligibility{Allowed: true}
	}
	return Eligibility{
		Reason:      ErrUploadIneligible.Error(),
		Remediation: SettingsPath,
	}
}
