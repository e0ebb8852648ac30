package policy

import (
	"strings"
)

// splitEmail splits an address into local and domain parts. Exactly one '@'
// with text on both sides is required.
func splitEmail(email string) (local, domain string, ok bool) {
	email = strings.TrimSpace(email)
	if strings.Count(email, "@") != 1 {
		return "", "", false
	}
	local, domain, _ = strings.Cut(email, "@")
	if local == "" || domain == "" {
		return "", "", false
	}
	return local, strings.ToLower(domain), true
}

// researchCondition holds when either the target's or the actor's institute
// is the research institute
func (e *Engine) researchCondition(institute string, actor Actor) bool {
	ri := e.hierarchy.ResearchInstitute()
	return institute == ri || actor.Institute == ri
}

// DomainHints returns the email domains allowed for a user placed at
// college/institute: the research domain set when the research condition
// holds, else the college's own domain, else nothing.
func (e *Engine) DomainHints(college, institute string, actor Actor) []string {
	if e.researchCondition(institute, actor) {
		if domains := e.hierarchy.ResearchDomains(); len(domains) > 0 {
			return domains
		}
	}
	if d := e.hierarchy.DomainOf(college); d != "" {
		return []string{d}
	}
	return []string{}
}

// ValidateEmailDomain reports whether email is acceptable for a user placed at
// college/institute. A college without a domain imposes no restriction, but
// the address must still contain exactly one '@'.
func (e *Engine) ValidateEmailDomain(email, college, institute string, actor Actor) bool {
	_, domain, ok := splitEmail(email)
	if !ok {
		return false
	}

	allowed := e.DomainHints(college, institute, actor)
	if len(allowed) == 0 {
		return true
	}
	for _, d := range allowed {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
