package summary

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/domain/grant"
)

// NoGrantsMessage is returned instead of a summary when no records match.
const NoGrantsMessage = "No grant information found for the requested category."

// Request describes a generate_markdown_summary call.
type Request struct {
	Title             string
	Category          string
	IncludeIntro      *bool // nil means true
	IncludeConclusion *bool // nil means true
}

// Input is what the summariser receives.
type Input struct {
	Title             string
	Grants            []grant.Grant
	IncludeIntro      bool
	IncludeConclusion bool
}

// Summarizer renders records as a markdown document.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// SummaryService renders stored records as markdown.
type SummaryService struct {
	repo       grant.Repository
	summarizer Summarizer
}

// NewSummaryService creates a new summary service.
func NewSummaryService(repo grant.Repository, summarizer Summarizer) *SummaryService {
	return &SummaryService{
		repo:       repo,
		summarizer: summarizer,
	}
}

// Generate summarises every stored record in req.Category (all records when
// empty). The summariser is not called when there is nothing to summarise.
func (s *SummaryService) Generate(ctx context.Context, req Request) (string, error) {
	grants, err := s.repo.ListByCategory(ctx, req.Category)
	if err != nil {
		return "", fmt.Errorf("list grants: %w", err)
	}
	if len(grants) == 0 {
		log.Info().Str("category", req.Category).Msg("no grants to summarise")
		return NoGrantsMessage, nil
	}

	in := Input{
		Title:             req.Title,
		Grants:            grants,
		IncludeIntro:      req.IncludeIntro == nil || *req.IncludeIntro,
		IncludeConclusion: req.IncludeConclusion == nil || *req.IncludeConclusion,
	}
	markdown, err := s.summarizer.Summarize(ctx, in)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("category", req.Category).
		Int("grants", len(grants)).
		Int("length", len(markdown)).
		Msg("summary generated")
	return markdown, nil
}
