package grant

import "strings"

// FindDuplicate returns the id of the first existing record that describes the
// same programme as candidate, or "" when none does.
//
// An exact case-insensitive name match anywhere in existing wins outright.
// Otherwise the first record whose name contains the candidate's name and
// whose organization contains the candidate's organization (or whose url is
// identical) is reported.
func FindDuplicate(candidate *Grant, existing []Grant) string {
	if candidate == nil {
		return ""
	}
	name := strings.ToLower(candidate.Name)

	for i := range existing {
		if strings.ToLower(existing[i].Name) == name {
			return existing[i].ID
		}
	}

	org := strings.ToLower(candidate.Organization)
	for i := range existing {
		e := &existing[i]
		if !strings.Contains(strings.ToLower(e.Name), name) {
			continue
		}
		if strings.Contains(strings.ToLower(e.Organization), org) || e.URL == candidate.URL {
			return e.ID
		}
	}
	return ""
}
