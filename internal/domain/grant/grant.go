package grant

import (
	"context"
	"strings"
	"time"
)

// SourceManual is the provenance label for records saved through save_item.
const SourceManual = "manual entry"

// Fields holds every mutable attribute of a grant record.
type Fields struct {
	Name               string  `json:"name"`
	Organization       string  `json:"organization"`
	Description        string  `json:"description"`
	Eligibility        string  `json:"eligibility"`
	Amount             string  `json:"amount"`
	Deadline           string  `json:"deadline"`
	ApplicationProcess string  `json:"applicationProcess"`
	URL                string  `json:"url"`
	Category           string  `json:"category"`
	RequirementDetails *string `json:"requirementDetails,omitempty"`
	Exclusions         *string `json:"exclusions,omitempty"`
	ContactInfo        *string `json:"contactInfo,omitempty"`
	Source             string  `json:"source"`
}

// Grant is a funding programme record. ID and CreatedAt never change once the
// record has been saved.
type Grant struct {
	ID string `json:"id"`
	Fields
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// MatchesCategory reports whether the record's category contains filter,
// ignoring case. An empty filter matches everything.
func (g *Grant) MatchesCategory(filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(g.Category), strings.ToLower(filter))
}

// FilterByCategory returns the records whose category contains filter.
func FilterByCategory(grants []Grant, filter string) []Grant {
	if filter == "" {
		return grants
	}
	filtered := make([]Grant, 0, len(grants))
	for i := range grants {
		if grants[i].MatchesCategory(filter) {
			filtered = append(filtered, grants[i])
		}
	}
	return filtered
}

// Repository persists grant records. Lookups that find nothing return a nil
// record and a nil error.
type Repository interface {
	Save(ctx context.Context, g *Grant) error
	Get(ctx context.Context, id string) (*Grant, error)
	Update(ctx context.Context, id string, fields Fields) (*Grant, error)
	List(ctx context.Context) ([]Grant, error)
	ListByCategory(ctx context.Context, category string) ([]Grant, error)
	FindDuplicate(ctx context.Context, candidate *Grant) (string, error)
}
