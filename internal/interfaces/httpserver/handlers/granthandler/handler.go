package granthandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/internal/domain/search"
	"jan-server/services/grant-scout/internal/domain/summary"
	"jan-server/services/grant-scout/internal/infrastructure/metrics"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/requests"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/responses"
	"jan-server/services/grant-scout/utils/platformerrors"
)

// Tool names shared by the HTTP and MCP transports.
const (
	ToolSearchItems             = "search_items"
	ToolSaveItem                = "save_item"
	ToolGetItemsByCategory      = "get_items_by_category"
	ToolGenerateMarkdownSummary = "generate_markdown_summary"
)

// Transport labels for metrics.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

type Searcher interface {
	Search(ctx context.Context, req search.Request) *search.Result
}

type Store interface {
	Save(ctx context.Context, fields grant.Fields) (*grant.Grant, error)
	ListByCategory(ctx context.Context, category string) ([]grant.Grant, error)
}

type Summarizer interface {
	Generate(ctx context.Context, req summary.Request) (string, error)
}

// SearchPayload is the data of a search_items envelope.
type SearchPayload struct {
	Items    []grant.Grant `json:"items"`
	Count    int           `json:"count"`
	Outcome  string        `json:"outcome"`
	Updated  int           `json:"updated"`
	Appended int           `json:"appended"`
}

// ListPayload is the data of a get_items_by_category envelope.
type ListPayload struct {
	Items    []grant.Grant `json:"items"`
	Count    int           `json:"count"`
	Category string        `json:"category,omitempty"`
}

// GrantHandler runs the four grant operations and renders their envelopes.
// A returned error is always a validation failure; every other outcome is
// carried in the envelope.
type GrantHandler struct {
	searcher   Searcher
	store      Store
	summarizer Summarizer
}

func NewGrantHandler(
	searchService *search.SearchService,
	grantService *grant.GrantService,
	summaryService *summary.SummaryService,
) *GrantHandler {
	gate := searchService.Gate()
	metrics.RegisterSearchesInFlight(func() float64 {
		return float64(gate.InFlight())
	})
	return New(searchService, grantService, summaryService)
}

// New builds a handler from its collaborators.
func New(searcher Searcher, store Store, summarizer Summarizer) *GrantHandler {
	return &GrantHandler{searcher: searcher, store: store, summarizer: summarizer}
}

func (h *GrantHandler) SearchItems(ctx context.Context, transport string, req requests.SearchItemsRequest) (responses.ToolResponse, error) {
	req.Normalize()
	if err := requests.Validate(ctx, &req); err != nil {
		h.record(ToolSearchItems, transport, "invalid", time.Now())
		return responses.ToolResponse{}, err
	}

	start := time.Now()
	result := h.searcher.Search(ctx, req.ToDomain())
	metrics.RecordSearchOutcome(string(result.Outcome))
	metrics.RecordMerge("updated", result.Updated)
	metrics.RecordMerge("appended", result.Appended)
	h.record(ToolSearchItems, transport, "success", start)

	items := nonNil(result.Grants)
	return responses.Success(
		countMessage(len(items), "grant", fmt.Sprintf("matching %q", req.Query)),
		SearchPayload{
			Items:    items,
			Count:    len(items),
			Outcome:  string(result.Outcome),
			Updated:  result.Updated,
			Appended: result.Appended,
		},
	), nil
}

func (h *GrantHandler) SaveItem(ctx context.Context, transport string, req requests.SaveItemRequest) (responses.ToolResponse, error) {
	req.Normalize()
	if err := requests.Validate(ctx, &req); err != nil {
		h.record(ToolSaveItem, transport, "invalid", time.Now())
		return responses.ToolResponse{}, err
	}

	start := time.Now()
	saved, err := h.store.Save(ctx, req.ToDomain())
	if err != nil {
		h.record(ToolSaveItem, transport, "error", start)
		logFailure(ToolSaveItem, err)
		return responses.Failure("Failed to save grant", errors.New(message(err))), nil
	}
	h.record(ToolSaveItem, transport, "success", start)
	return responses.Success(fmt.Sprintf("Saved grant %q with id %s", saved.Name, saved.ID), saved), nil
}

func (h *GrantHandler) GetItemsByCategory(ctx context.Context, transport string, req requests.ItemsByCategoryRequest) (responses.ToolResponse, error) {
	req.Normalize()
	if err := requests.Validate(ctx, &req); err != nil {
		h.record(ToolGetItemsByCategory, transport, "invalid", time.Now())
		return responses.ToolResponse{}, err
	}

	start := time.Now()
	grants, err := h.store.ListByCategory(ctx, req.Category)
	if err != nil {
		h.record(ToolGetItemsByCategory, transport, "error", start)
		logFailure(ToolGetItemsByCategory, err)
		return responses.Failure("Failed to load grants", errors.New(message(err))), nil
	}
	h.record(ToolGetItemsByCategory, transport, "success", start)

	items := nonNil(grants)
	qualifier := ""
	if req.Category != "" {
		qualifier = fmt.Sprintf("in category %q", req.Category)
	}
	return responses.Success(
		countMessage(len(items), "saved grant", qualifier),
		ListPayload{Items: items, Count: len(items), Category: req.Category},
	), nil
}

func (h *GrantHandler) GenerateMarkdownSummary(ctx context.Context, transport string, req requests.SummaryRequest) (responses.ToolResponse, error) {
	req.Normalize()
	if err := requests.Validate(ctx, &req); err != nil {
		h.record(ToolGenerateMarkdownSummary, transport, "invalid", time.Now())
		return responses.ToolResponse{}, err
	}

	start := time.Now()
	markdown, err := h.summarizer.Generate(ctx, req.ToDomain())
	if err != nil {
		h.record(ToolGenerateMarkdownSummary, transport, "error", start)
		logFailure(ToolGenerateMarkdownSummary, err)
		return responses.Failure("Failed to generate summary", errors.New(message(err))), nil
	}
	h.record(ToolGenerateMarkdownSummary, transport, "success", start)
	return responses.Success(markdown, nil), nil
}

func (h *GrantHandler) record(tool, transport, status string, start time.Time) {
	metrics.RecordToolCall(tool, transport, status, time.Since(start).Seconds())
}

// ValidationMessage returns the client-facing text of a validation error.
func ValidationMessage(err error) string {
	return message(err)
}

func message(err error) string {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.Message
	}
	return err.Error()
}

func logFailure(tool string, err error) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		platformerrors.LogError(log.Logger, platformErr)
		return
	}
	log.Error().Err(err).Str("tool", tool).Msg("tool call failed")
}

func countMessage(n int, noun, qualifier string) string {
	if n != 1 {
		noun += "s"
	}
	msg := fmt.Sprintf("Found %d %s", n, noun)
	if qualifier != "" {
		msg += " " + qualifier
	}
	return msg
}

func nonNil(grants []grant.Grant) []grant.Grant {
	if grants == nil {
		return []grant.Grant{}
	}
	return grants
}
