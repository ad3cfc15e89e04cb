package domain

import (
	"github.com/google/wire"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/internal/domain/search"
	"jan-server/services/grant-scout/internal/domain/summary"
)

// DomainProvider provides all domain services
var DomainProvider = wire.NewSet(
	grant.NewGrantService,
	search.NewSearchService,
	summary.NewSummaryService,
)
