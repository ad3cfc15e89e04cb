package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/interfaces/httpserver/handlers/granthandler"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/requests"
	"jan-server/services/grant-scout/internal/interfaces/httpserver/responses"
)

const (
	searchItemsDescription = "Search for funding programmes, grants and subsidies. Combines a language model's answer with results from the web and configured funding sites; web results matching a saved grant refresh it. Returns the grants in data.items."
	saveItemDescription    = "Save a grant record. name, organization, description, eligibility, amount, deadline, applicationProcess, url and category are required; requirementDetails, exclusions and contactInfo are optional."
	getItemsDescription    = "List saved grants whose category contains the given text (case-insensitive). Omit category to list every saved grant."
	summaryDescription     = "Write a markdown report about the saved grants of a category, or all saved grants, with an optional introduction and conclusion."
)

// GrantMCP registers the grant tools on an MCP server.
type GrantMCP struct {
	handler *granthandler.GrantHandler
}

func NewGrantMCP(handler *granthandler.GrantHandler) *GrantMCP {
	return &GrantMCP{handler: handler}
}

func (g *GrantMCP) RegisterTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        granthandler.ToolSearchItems,
		Description: searchItemsDescription,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input requests.SearchItemsRequest) (*mcp.CallToolResult, responses.ToolResponse, error) {
		logCall(ctx, granthandler.ToolSearchItems)
		return toolResult(g.handler.SearchItems(ctx, granthandler.TransportMCP, input))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        granthandler.ToolSaveItem,
		Description: saveItemDescription,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input requests.SaveItemRequest) (*mcp.CallToolResult, responses.ToolResponse, error) {
		logCall(ctx, granthandler.ToolSaveItem)
		return toolResult(g.handler.SaveItem(ctx, granthandler.TransportMCP, input))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        granthandler.ToolGetItemsByCategory,
		Description: getItemsDescription,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input requests.ItemsByCategoryRequest) (*mcp.CallToolResult, responses.ToolResponse, error) {
		logCall(ctx, granthandler.ToolGetItemsByCategory)
		return toolResult(g.handler.GetItemsByCategory(ctx, granthandler.TransportMCP, input))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        granthandler.ToolGenerateMarkdownSummary,
		Description: summaryDescription,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input requests.SummaryRequest) (*mcp.CallToolResult, responses.ToolResponse, error) {
		logCall(ctx, granthandler.ToolGenerateMarkdownSummary)
		return toolResult(g.handler.GenerateMarkdownSummary(ctx, granthandler.TransportMCP, input))
	})
}

// toolResult renders an envelope as a tool result. Validation failures
// become error envelopes; the protocol has no status codes.
func toolResult(resp responses.ToolResponse, err error) (*mcp.CallToolResult, responses.ToolResponse, error) {
	if err != nil {
		resp = responses.ToolResponse{
			Text:    "Invalid arguments",
			Error:   granthandler.ValidationMessage(err),
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: resp.Text}},
		IsError: resp.IsError,
	}, resp, nil
}

func logCall(ctx context.Context, tool string) {
	userID, _ := ctx.Value(UserIDKey).(string)
	log.Info().
		Str("tool", tool).
		Str("user_id", userID).
		Msg("MCP tool call received")
}
