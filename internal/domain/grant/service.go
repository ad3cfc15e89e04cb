package grant

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/utils/grantid"
)

// GrantService handles manually registered records and category listings.
type GrantService struct {
	repo Repository
	now  func() time.Time
}

// NewGrantService creates a new grant service
func NewGrantService(repo Repository) *GrantService {
	return &GrantService{
		repo: repo,
		now:  time.Now,
	}
}

// Save stores a manually entered record under a fresh id. It does not check
// for duplicates.
func (s *GrantService) Save(ctx context.Context, fields Fields) (*Grant, error) {
	fields.Source = SourceManual
	g := &Grant{
		ID:        grantid.New(grantid.PrefixManual),
		Fields:    fields,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Save(ctx, g); err != nil {
		return nil, err
	}

	log.Info().
		Str("grant_id", g.ID).
		Str("category", g.Category).
		Msg("manual grant saved")
	return g, nil
}

// ListByCategory returns stored records whose category contains category.
// An empty category lists everything.
func (s *GrantService) ListByCategory(ctx context.Context, category string) ([]Grant, error) {
	return s.repo.ListByCategory(ctx, category)
}
